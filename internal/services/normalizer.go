package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"alfredoptarigan/cv-profiler/internal/apperrors"
	"alfredoptarigan/cv-profiler/internal/docx"
	"alfredoptarigan/cv-profiler/internal/models"
)

// profileSchema checks the shape the template binds to. Values inside personal
// are not constrained beyond being strings.
const profileSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["personal", "experience", "education", "languages", "skills"],
  "properties": {
    "personal": {
      "type": "object",
      "properties": {
        "name": {"type": ["string", "null"]},
        "birth_date": {"type": ["string", "null"]},
        "nationality": {"type": ["string", "null"]},
        "gender": {"type": ["string", "null"]}
      }
    },
    "experience": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": ["string", "null"]},
          "company": {"type": ["string", "null"]},
          "period": {"type": ["string", "null"]},
          "details": {"type": ["array", "null"], "items": {"type": "string"}}
        }
      }
    },
    "education": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "school": {"type": ["string", "null"]},
          "specialization": {"type": ["string", "null"]},
          "period": {"type": ["string", "null"]},
          "location": {"type": ["string", "null"]}
        }
      }
    },
    "languages": {"type": "array", "items": {"type": "string"}},
    "skills": {"type": "array", "items": {"type": "string"}}
  }
}`

type BulletStyle string

const (
	BulletIndent BulletStyle = "indent"
	BulletTab    BulletStyle = "tab"
)

// Marker is the prefix written in front of every detail line.
func (s BulletStyle) Marker() string {
	if s == BulletTab {
		return "•\t"
	}
	return "      o  "
}

func ParseBulletStyle(value string) (BulletStyle, error) {
	switch BulletStyle(strings.ToLower(strings.TrimSpace(value))) {
	case "", BulletIndent:
		return BulletIndent, nil
	case BulletTab:
		return BulletTab, nil
	default:
		return "", apperrors.Newf(apperrors.KindConfiguration, "unknown bullet style %q (indent or tab expected)", value)
	}
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// FlattenDetails joins the detail list into one bullet block, one line per item.
// Line breaks inside an item are folded to spaces.
func FlattenDetails(details []string, style BulletStyle) docx.RichText {
	if len(details) == 0 {
		return ""
	}

	marker := style.Marker()
	lines := make([]string, 0, len(details))
	for _, item := range details {
		lines = append(lines, marker+strings.TrimSpace(lineBreaks.Replace(item)))
	}
	return docx.RichText(strings.Join(lines, "\n"))
}

// StripFences removes surrounding whitespace, Markdown code fences and any text
// around the outermost JSON object. Applying it twice changes nothing.
func StripFences(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```JSON")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if !strings.HasPrefix(text, "{") {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start != -1 && end > start {
			text = text[start : end+1]
		}
	}
	return text
}

type ResponseNormalizer interface {
	Normalize(raw string) (*models.CandidateProfile, error)
	ParseEdited(text string) (*models.CandidateProfile, error)
}

type responseNormalizer struct {
	schema *gojsonschema.Schema
}

func NewResponseNormalizer() ResponseNormalizer {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(profileSchema))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in profile schema: %v", err))
	}
	return &responseNormalizer{schema: schema}
}

// Normalize turns a raw model answer into a profile. Any failure is a
// malformed response and is not retried.
func (n *responseNormalizer) Normalize(raw string) (*models.CandidateProfile, error) {
	text := StripFences(raw)
	if text == "" {
		return nil, apperrors.New(apperrors.KindMalformedResponse, "AI response is empty", nil)
	}

	profile, err := n.decode(text)
	if err != nil {
		return nil, apperrors.New(apperrors.KindMalformedResponse, "AI response is not a valid candidate profile", err)
	}
	return profile, nil
}

// ParseEdited validates a profile edited by hand before it replaces the stored one.
func (n *responseNormalizer) ParseEdited(text string) (*models.CandidateProfile, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.New(apperrors.KindInvalidInput, "edited profile is empty", nil)
	}

	profile, err := n.decode(text)
	if err != nil {
		return nil, apperrors.New(apperrors.KindInvalidInput, "edited profile rejected", err)
	}
	return profile, nil
}

func (n *responseNormalizer) decode(text string) (*models.CandidateProfile, error) {
	result, err := n.schema.Validate(gojsonschema.NewStringLoader(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return nil, fmt.Errorf("schema validation failed: %s", strings.Join(messages, "; "))
	}

	var profile models.CandidateProfile
	if err := json.Unmarshal([]byte(text), &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &profile, nil
}
