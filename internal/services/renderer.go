package services

import (
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"alfredoptarigan/cv-profiler/internal/apperrors"
	"alfredoptarigan/cv-profiler/internal/docx"
	"alfredoptarigan/cv-profiler/internal/models"
)

// PlaceholderName stands in for a profile without a candidate name.
const PlaceholderName = "Kandidat"

type TemplateRenderer interface {
	Render(profile *models.CandidateProfile) ([]byte, error)
}

type templateRenderer struct {
	template *docx.Template
	style    BulletStyle
}

// NewTemplateRenderer loads the template at path, or the built-in one when path is empty.
func NewTemplateRenderer(path string, style BulletStyle) (TemplateRenderer, error) {
	var (
		tmpl *docx.Template
		err  error
	)
	if path == "" {
		tmpl, err = docx.Parse(docx.DefaultTemplate())
	} else {
		tmpl, err = docx.ParseFile(path)
	}
	if err != nil {
		return nil, apperrors.New(apperrors.KindConfiguration, "failed to load document template", err)
	}

	log.Info().Str("template", templateLabel(path)).Strs("parts", tmpl.Parts()).Msg("📄 Document template loaded")
	return &templateRenderer{template: tmpl, style: style}, nil
}

// NewTemplateRendererFromBytes parses an in-memory .docx template.
func NewTemplateRendererFromBytes(data []byte, style BulletStyle) (TemplateRenderer, error) {
	tmpl, err := docx.Parse(data)
	if err != nil {
		return nil, apperrors.New(apperrors.KindConfiguration, "failed to load document template", err)
	}
	return &templateRenderer{template: tmpl, style: style}, nil
}

func (r *templateRenderer) Render(profile *models.CandidateProfile) ([]byte, error) {
	if profile == nil {
		return nil, apperrors.New(apperrors.KindTemplate, "no profile to render", nil)
	}

	out, err := r.template.Execute(BuildRenderContext(profile, r.style))
	if err != nil {
		return nil, apperrors.New(apperrors.KindTemplate, "failed to render profile document", err)
	}
	return out, nil
}

// BuildRenderContext binds a profile to the template keys. details_flat is
// computed here on every call and never written back to the profile.
func BuildRenderContext(profile *models.CandidateProfile, style BulletStyle) map[string]any {
	experience := make([]map[string]any, 0, len(profile.Experience))
	for _, job := range profile.Experience {
		experience = append(experience, map[string]any{
			"title":        docx.Text(job.Title),
			"company":      docx.Text(job.Company),
			"period":       docx.Text(job.Period),
			"details":      texts(job.Details),
			"details_flat": FlattenDetails(job.Details, style),
		})
	}

	education := make([]map[string]any, 0, len(profile.Education))
	for _, school := range profile.Education {
		education = append(education, map[string]any{
			"school":         docx.Text(school.School),
			"specialization": docx.Text(school.Specialization),
			"period":         docx.Text(school.Period),
			"location":       docx.Text(school.Location),
		})
	}

	return map[string]any{
		"personal": map[string]any{
			"name":        docx.Text(profile.Personal.Name),
			"birth_date":  docx.Text(profile.Personal.BirthDate),
			"nationality": docx.Text(profile.Personal.Nationality),
			"gender":      docx.Text(profile.Personal.Gender),
		},
		"experience": experience,
		"education":  education,
		"languages":  texts(profile.Languages),
		"skills":     texts(profile.Skills),
	}
}

func texts(values []string) []docx.Text {
	out := make([]docx.Text, 0, len(values))
	for _, v := range values {
		out = append(out, docx.Text(v))
	}
	return out
}

// OutputFilename names the rendered document after the candidate,
// e.g. "Profil_Jan_Novák.docx".
func OutputFilename(profile *models.CandidateProfile) string {
	name := ""
	if profile != nil {
		name = SanitizeName(profile.Personal.Name)
	}
	if name == "" {
		name = PlaceholderName
	}
	return "Profil_" + name + ".docx"
}

// SanitizeName replaces whitespace runs with underscores and drops path
// separators, reserved file name characters and control characters.
func SanitizeName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return -1
		case unicode.IsControl(r):
			return ' '
		}
		return r
	}, name)

	sanitized := strings.Join(strings.Fields(cleaned), "_")
	return strings.Trim(sanitized, "._")
}

func templateLabel(path string) string {
	if path == "" {
		return "built-in"
	}
	return path
}
