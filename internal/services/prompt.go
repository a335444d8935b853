package services

import (
	"fmt"
	"strings"

	"alfredoptarigan/cv-profiler/internal/models"
)

// Prompt is one request for the AI client. System holds the role and rules,
// User the notes and document content.
type Prompt struct {
	System     string
	User       string
	Attachment *Attachment
}

// Attachment is an image the model has to read itself.
type Attachment struct {
	MIMEType string
	Data     []byte
	Encoded  string
}

// Text joins system and user parts for transports that take a single text.
func (p Prompt) Text() string {
	return p.System + "\n" + p.User
}

type PromptBuilder struct {
	policy *LanguagePolicy
}

func NewPromptBuilder(policy *LanguagePolicy) *PromptBuilder {
	if policy == nil {
		policy = DefaultLanguagePolicy()
	}
	return &PromptBuilder{policy: policy}
}

// Build assembles role, rules, notes and document content in that order.
func (pb *PromptBuilder) Build(notes string, doc *models.Document) Prompt {
	prompt := Prompt{
		System: pb.BuildInstructions(),
	}

	var user strings.Builder
	user.WriteString("NOTIZEN DES RECRUITERS (haben Vorrang vor dem CV):\n")
	if strings.TrimSpace(notes) == "" {
		user.WriteString("(keine)\n")
	} else {
		user.WriteString(strings.TrimSpace(notes))
		user.WriteString("\n")
	}
	user.WriteString("\n")

	if doc != nil && doc.Kind == models.DocumentKindImage {
		user.WriteString("CV: Der Lebenslauf ist als Bild angehängt. Lies den gesamten Text aus dem Bild (OCR) und analysiere ihn.\n")
		prompt.Attachment = &Attachment{
			MIMEType: doc.MIMEType,
			Data:     doc.Data,
			Encoded:  doc.Encoded,
		}
	} else {
		user.WriteString("CV TEXT:\n")
		if doc != nil {
			user.WriteString(doc.Text)
		}
	}

	prompt.User = user.String()
	return prompt
}

// BuildInstructions returns the fixed role and rule block.
func (pb *PromptBuilder) BuildInstructions() string {
	return fmt.Sprintf(`Du bist ein Senior HR-Spezialist und bereitest die Daten für ein deutsches Kandidatenprofil vor.

DIE AUSGABE MUSS AUSSCHLIESSLICH REINES JSON SEIN (kein Markdown, keine Erklärungen).

REGELN:
1. Ausgabesprache: Deutsch (Business German).
2. Schulen, Fachrichtungen und Positionen: ins Deutsche übersetzen.
3. Firmennamen: unverändert im Original lassen (z. B. "Acme s.r.o.").
4. Geburtsdatum: Fehlt es, schätze das Geburtsjahr (z. B. "1990").
5. Geschlecht: Mann = "%s", Frau = "%s". Keine anderen Werte.
6. Datentypen:
   - "details" in experience MUSS ein ARRAY von Strings sein.
   - "languages" MUSS ein ARRAY von Strings sein.
   - "skills" MUSS ein ARRAY von Strings sein.
7. Sprachen:
%s8. Adressen: keine Straßen oder Hausnummern, nur Stadt. Länder als ISO-Code (z. B. "SK", "CZ", "DE").
9. Reihenfolge: experience und education umgekehrt chronologisch (neueste zuerst).
10. Hinweise aus den Notizen (z. B. Führerschein, Zertifikate) gehören in "skills".

JSON-STRUKTUR:
{
    "personal": {
        "name": "Vorname Nachname",
        "birth_date": "DD. Monat YYYY",
        "nationality": "Nationalität (DE)",
        "gender": "%s / %s"
    },
    "experience": [
        {
            "title": "Position (DE)",
            "company": "Firma",
            "period": "MM/YYYY - MM/YYYY",
            "details": ["Punkt 1", "Punkt 2", "Punkt 3"]
        }
    ],
    "education": [
        {
            "school": "Schule (DE)",
            "specialization": "Fachrichtung (DE)",
            "period": "Jahr - Jahr",
            "location": "Stadt, ISO"
        }
    ],
    "languages": ["Sprache 1", "Sprache 2"],
    "skills": ["Kenntnis 1", "Kenntnis 2"]
}
`, models.GenderMale, models.GenderFemale, pb.policy.PromptRules(), models.GenderMale, models.GenderFemale)
}
