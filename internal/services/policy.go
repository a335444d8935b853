package services

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"alfredoptarigan/cv-profiler/internal/models"
)

// LanguagePolicy holds the language rules handed to the model: how free-text
// proficiency wording maps onto CEFR levels, and which native language to assume
// for a nationality when the CV does not name one.
type LanguagePolicy struct {
	Levels              []LevelRule       `yaml:"levels"`
	NativeLabel         string            `yaml:"native_label"`
	NationalityLanguage map[string]string `yaml:"nationality_language"`
}

type LevelRule struct {
	Level    string   `yaml:"level"`
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

const defaultPolicyYAML = `
native_label: Muttersprache
levels:
  - level: C2
    label: verhandlungssicher
    keywords: [fließend, fluent, plynule, expert, perfekt]
  - level: C1
    label: sehr gute Kenntnisse
    keywords: [sehr gut, very good, advanced, pokročilý]
  - level: B2
    label: gute Kenntnisse
    keywords: [gut, good, upper intermediate, dobre]
  - level: B1
    label: Grundkenntnisse erweitert
    keywords: [intermediate, mittel, stredne pokročilý, komunikatívne]
  - level: A2
    label: Grundkenntnisse
    keywords: [basic, grundlagen, základy, elementary]
  - level: A1
    label: Anfänger
    keywords: [beginner, anfänger, začiatočník]
nationality_language:
  slowakisch: Slowakisch
  tschechisch: Tschechisch
  polnisch: Polnisch
  ungarisch: Ungarisch
  rumänisch: Rumänisch
  ukrainisch: Ukrainisch
  deutsch: Deutsch
  österreichisch: Deutsch
`

func DefaultLanguagePolicy() *LanguagePolicy {
	policy, err := ParseLanguagePolicy([]byte(defaultPolicyYAML))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in language policy: %v", err))
	}
	return policy
}

// LoadLanguagePolicy reads a policy file, or returns the built-in table for an empty path.
func LoadLanguagePolicy(path string) (*LanguagePolicy, error) {
	if path == "" {
		return DefaultLanguagePolicy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read language policy: %w", err)
	}
	return ParseLanguagePolicy(data)
}

func ParseLanguagePolicy(data []byte) (*LanguagePolicy, error) {
	var policy LanguagePolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse language policy: %w", err)
	}
	if len(policy.Levels) == 0 {
		return nil, fmt.Errorf("language policy defines no levels")
	}
	for _, rule := range policy.Levels {
		if !isCEFRLevel(rule.Level) {
			return nil, fmt.Errorf("language policy: %q is not a CEFR level", rule.Level)
		}
	}
	if policy.NativeLabel == "" {
		policy.NativeLabel = "Muttersprache"
	}
	return &policy, nil
}

// LevelFor returns the CEFR level of the longest keyword found in the
// description, so "stredne pokročilý" wins over "pokročilý".
func (p *LanguagePolicy) LevelFor(description string) (string, bool) {
	lower := strings.ToLower(description)
	level, longest := "", 0
	for _, rule := range p.Levels {
		for _, keyword := range rule.Keywords {
			keyword = strings.ToLower(keyword)
			if len(keyword) > longest && strings.Contains(lower, keyword) {
				level, longest = rule.Level, len(keyword)
			}
		}
	}
	return level, longest > 0
}

// NativeLanguage returns the default language for a nationality, if known.
func (p *LanguagePolicy) NativeLanguage(nationality string) (string, bool) {
	lang, ok := p.NationalityLanguage[strings.ToLower(strings.TrimSpace(nationality))]
	return lang, ok
}

// PromptRules renders the policy as prompt lines.
func (p *LanguagePolicy) PromptRules() string {
	var b strings.Builder
	b.WriteString("   CEFR-Skala (A1-C2) für alle Sprachen, Format \"Sprache - Niveau (Bezeichnung)\":\n")
	for _, rule := range p.Levels {
		fmt.Fprintf(&b, "   - %s (%s): %s\n", rule.Level, rule.Label, strings.Join(rule.Keywords, ", "))
	}

	fmt.Fprintf(&b, "   Muttersprache als \"Sprache - %s\". Fehlt sie im CV, leite sie aus der Nationalität ab:\n", p.NativeLabel)
	nationalities := make([]string, 0, len(p.NationalityLanguage))
	for nationality := range p.NationalityLanguage {
		nationalities = append(nationalities, nationality)
	}
	sort.Strings(nationalities)
	for _, nationality := range nationalities {
		fmt.Fprintf(&b, "   - %s → %s\n", nationality, p.NationalityLanguage[nationality])
	}
	return b.String()
}

// Review reports where the model's language list deviates from the policy.
// Deviations are not corrected; they are surfaced as warnings.
func (p *LanguagePolicy) Review(profile *models.CandidateProfile) []string {
	if profile == nil {
		return nil
	}

	var warnings []string
	for _, language := range profile.Languages {
		stated, ok := statedCEFRLevel(language)
		if !ok {
			if !strings.Contains(strings.ToLower(language), strings.ToLower(p.NativeLabel)) {
				warnings = append(warnings, fmt.Sprintf("language %q has no CEFR level", language))
			}
			continue
		}
		if worded, found := p.LevelFor(language); found && worded != stated {
			warnings = append(warnings, fmt.Sprintf("language %q states %s but its wording suggests %s", language, stated, worded))
		}
	}

	if native, ok := p.NativeLanguage(profile.Personal.Nationality); ok {
		found := false
		for _, language := range profile.Languages {
			if strings.Contains(strings.ToLower(language), strings.ToLower(native)) {
				found = true
				break
			}
		}
		if !found {
			warnings = append(warnings, fmt.Sprintf("native language %s for nationality %q is missing", native, profile.Personal.Nationality))
		}
	}
	return warnings
}

func statedCEFRLevel(text string) (string, bool) {
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '-' || r == '(' || r == ')' || r == ',' || r == '/'
	}) {
		if level := strings.ToUpper(field); isCEFRLevel(level) {
			return level, true
		}
	}
	return "", false
}

func isCEFRLevel(level string) bool {
	switch level {
	case "A1", "A2", "B1", "B2", "C1", "C2":
		return true
	}
	return false
}
