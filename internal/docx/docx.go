// Package docx renders Word documents from a .docx template whose XML parts
// contain text/template actions, e.g. {{.personal.name}} or
// {{range .experience}}...{{end}}. Actions that print values must sit inside a
// text run (<w:t>) of a single run; Word splits runs when formatting changes
// mid-placeholder, so placeholders should be typed in one go.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"text/template"
)

const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Template is a parsed .docx file. Parts without template actions are copied through.
type Template struct {
	files []*zip.File
	parts map[string]*template.Template
}

// ParseFile reads a template from disk.
func ParseFile(filename string) (*Template, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return Parse(data)
}

// Parse reads a template from the bytes of a .docx file.
func Parse(data []byte) (*Template, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open template archive: %w", err)
	}

	t := &Template{
		files: zr.File,
		parts: make(map[string]*template.Template),
	}

	hasDocument := false
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			hasDocument = true
		}
		if !isTemplatedPart(f.Name) {
			continue
		}

		content, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		if !strings.Contains(content, "{{") {
			continue
		}

		tmpl, err := template.New(f.Name).Option("missingkey=error").Parse(content)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template part %s: %w", f.Name, err)
		}
		t.parts[f.Name] = tmpl
	}

	if !hasDocument {
		return nil, fmt.Errorf("template has no word/document.xml")
	}
	return t, nil
}

// Execute renders every templated part with data and returns the new document.
func (t *Template) Execute(data any) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range t.files {
		header := f.FileHeader
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     header.Name,
			Method:   zip.Deflate,
			Modified: header.Modified,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create part %s: %w", f.Name, err)
		}

		if tmpl, ok := t.parts[f.Name]; ok {
			if err := tmpl.Execute(w, data); err != nil {
				return nil, fmt.Errorf("failed to render part %s: %w", f.Name, err)
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open part %s: %w", f.Name, err)
		}
		_, err = io.Copy(w, rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to copy part %s: %w", f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize document: %w", err)
	}
	return buf.Bytes(), nil
}

// Parts lists the names of the parts that contain template actions.
func (t *Template) Parts() []string {
	names := make([]string, 0, len(t.parts))
	for _, f := range t.files {
		if _, ok := t.parts[f.Name]; ok {
			names = append(names, f.Name)
		}
	}
	return names
}

func isTemplatedPart(name string) bool {
	return strings.HasPrefix(name, "word/") && path.Ext(name) == ".xml"
}

func readZipFile(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open part %s: %w", f.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read part %s: %w", f.Name, err)
	}
	return string(content), nil
}

// ReadText extracts the visible text of word/document.xml, one line per paragraph.
// Line breaks become "\n" and tabs "\t".
func ReadText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open document: %w", err)
	}
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			content, err := readZipFile(f)
			if err != nil {
				return "", err
			}
			return extractText(content)
		}
	}
	return "", fmt.Errorf("word/document.xml not found in docx")
}
