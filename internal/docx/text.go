package docx

import (
	"encoding/xml"
	"io"
	"strings"
)

const (
	runBreak = `</w:t><w:br/><w:t xml:space="preserve">`
	runTab   = `</w:t><w:tab/><w:t xml:space="preserve">`
)

// Text is a plain value; it prints XML-escaped.
type Text string

func (t Text) String() string {
	return escape(string(t))
}

// RichText prints XML-escaped with newlines turned into line breaks and tabs
// into tab stops of the surrounding run.
type RichText string

func (r RichText) String() string {
	escaped := escape(string(r))
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	escaped = strings.ReplaceAll(escaped, "\n", runBreak)
	return strings.ReplaceAll(escaped, "\t", runTab)
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	// EscapeText encodes newlines and tabs as character references; keep them raw
	// so RichText can turn them into run markup.
	out := b.String()
	out = strings.ReplaceAll(out, "&#xA;", "\n")
	out = strings.ReplaceAll(out, "&#x9;", "\t")
	out = strings.ReplaceAll(out, "&#xD;", "\r")
	return out
}

func extractText(content string) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(content))
	var sb strings.Builder
	inText := false
	paragraphs := 0

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "p":
				if paragraphs > 0 {
					sb.WriteString("\n")
				}
				paragraphs++
			case "t":
				inText = true
			case "br":
				sb.WriteString("\n")
			case "tab":
				sb.WriteString("\t")
			}
		case xml.EndElement:
			if el.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				sb.Write(el)
			}
		}
	}
	return sb.String(), nil
}
