package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const documentHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

const documentFooter = `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1134" w:right="1134" w:bottom="1134" w:left="1134" w:header="709" w:footer="709" w:gutter="0"/></w:sectPr></w:body></w:document>`

// DefaultTemplate returns the built-in German candidate profile template.
func DefaultTemplate() []byte {
	var body strings.Builder
	body.WriteString(documentHeader)

	body.WriteString(paragraph(run("Kandidatenprofil", true, 32)))
	body.WriteString(paragraph(run("{{.personal.name}}", true, 28)))

	body.WriteString(heading("Persönliche Daten"))
	body.WriteString(paragraph(run("Geburtsdatum:", true, 0) + tab() + run("{{.personal.birth_date}}", false, 0)))
	body.WriteString(paragraph(run("Nationalität:", true, 0) + tab() + run("{{.personal.nationality}}", false, 0)))
	body.WriteString(paragraph(run("Geschlecht:", true, 0) + tab() + run("{{.personal.gender}}", false, 0)))

	body.WriteString(heading("Berufserfahrung"))
	body.WriteString("{{range .experience}}")
	body.WriteString(paragraph(run("{{.period}}", true, 0) + tab() + run("{{.title}}", true, 0)))
	body.WriteString(paragraph(tab() + run("{{.company}}", false, 0)))
	body.WriteString("{{if .details_flat}}")
	body.WriteString(paragraph(run("{{.details_flat}}", false, 0)))
	body.WriteString("{{end}}")
	body.WriteString("{{end}}")

	body.WriteString(heading("Ausbildung"))
	body.WriteString("{{range .education}}")
	body.WriteString(paragraph(run("{{.period}}", true, 0) + tab() + run("{{.school}}", true, 0)))
	body.WriteString(paragraph(tab() + run("{{.specialization}}", false, 0)))
	body.WriteString(paragraph(tab() + run("{{.location}}", false, 0)))
	body.WriteString("{{end}}")

	body.WriteString(heading("Sprachen"))
	body.WriteString("{{range .languages}}")
	body.WriteString(paragraph(run("{{.}}", false, 0)))
	body.WriteString("{{end}}")

	body.WriteString(heading("Kenntnisse"))
	body.WriteString("{{range .skills}}")
	body.WriteString(paragraph(run("{{.}}", false, 0)))
	body.WriteString("{{end}}")

	body.WriteString(documentFooter)

	data, err := BuildPackage(map[string]string{
		"[Content_Types].xml": contentTypesXML,
		"_rels/.rels":         relsXML,
		"word/document.xml":   body.String(),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to build default template: %v", err))
	}
	return data
}

// BuildPackage zips the given parts into a .docx container, writing the
// content types part first as Word expects.
func BuildPackage(parts map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	order := []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml"}
	written := make(map[string]bool, len(parts))
	write := func(name string) error {
		content, ok := parts[name]
		if !ok || written[name] {
			return nil
		}
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte(content)); err != nil {
			return err
		}
		written[name] = true
		return nil
	}

	for _, name := range order {
		if err := write(name); err != nil {
			return nil, err
		}
	}
	for name := range parts {
		if err := write(name); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func heading(text string) string {
	return `<w:p><w:pPr><w:spacing w:before="240" w:after="120"/></w:pPr>` + run(text, true, 26) + `</w:p>`
}

func paragraph(runs string) string {
	return `<w:p>` + runs + `</w:p>`
}

func run(text string, bold bool, size int) string {
	var props strings.Builder
	if bold {
		props.WriteString(`<w:b/>`)
	}
	if size > 0 {
		fmt.Fprintf(&props, `<w:sz w:val="%d"/>`, size)
	}

	r := `<w:r>`
	if props.Len() > 0 {
		r += `<w:rPr>` + props.String() + `</w:rPr>`
	}
	return r + `<w:t xml:space="preserve">` + text + `</w:t></w:r>`
}

func tab() string {
	return `<w:r><w:tab/></w:r>`
}
