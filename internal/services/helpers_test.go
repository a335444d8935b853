package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const janProfileJSON = `{
  "personal": {"name": "Jan Novák", "birth_date": "1990", "nationality": "Slowakisch", "gender": "Mann ♂"},
  "experience": [
    {"title": "Lagerarbeiter", "company": "Acme s.r.o.", "period": "2015 - 2020",
     "details": ["Kommissionierung", "  Staplerfahren  "]}
  ],
  "education": [
    {"school": "Berufsschule", "specialization": "Logistik", "period": "2005 - 2009", "location": "Žilina, SK"}
  ],
  "languages": ["Slowakisch - Muttersprache", "Deutsch - B1 (Grundkenntnisse erweitert)"],
  "skills": ["Führerschein Klasse B"]
}`

func profileJSON(name string) string {
	return strings.Replace(janProfileJSON, "Jan Novák", name, 1)
}

// pngBytes returns data that sniffs as PNG.
func pngBytes(tag string) []byte {
	return append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), []byte(tag)...)
}

// buildPDF writes a minimal PDF with one page per text. An empty text yields a
// page without a text layer.
func buildPDF(pages ...string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
	}

	kids := make([]string, 0, len(pages))
	for i := range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", 4+2*i))
	}
	objects = append(objects,
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)

	for i, text := range pages {
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			5+2*i))

		content := ""
		if text != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

type transportCall struct {
	Model  string
	Prompt Prompt
}

type transportReply struct {
	Text string
	Err  error
}

// scriptedTransport answers calls from a per-model queue of replies. The last
// reply of a queue repeats once the queue is exhausted.
type scriptedTransport struct {
	mu      sync.Mutex
	replies map[string][]transportReply
	calls   []transportCall
}

func newScriptedTransport(replies map[string][]transportReply) *scriptedTransport {
	return &scriptedTransport{replies: replies}
}

func (s *scriptedTransport) Name() string {
	return "scripted"
}

func (s *scriptedTransport) Generate(ctx context.Context, model string, prompt Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, transportCall{Model: model, Prompt: prompt})
	queue := s.replies[model]
	if len(queue) == 0 {
		return "", fmt.Errorf("no reply scripted for %s", model)
	}
	reply := queue[0]
	if len(queue) > 1 {
		s.replies[model] = queue[1:]
	}
	return reply.Text, reply.Err
}

func (s *scriptedTransport) models() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		out = append(out, c.Model)
	}
	return out
}

type sleepRecorder struct {
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.sleeps = append(r.sleeps, d)
	return ctx.Err()
}

// sequenceAI returns its replies in call order.
type sequenceAI struct {
	replies []transportReply
	prompts []Prompt
}

func (s *sequenceAI) Generate(ctx context.Context, prompt Prompt) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.replies) == 0 {
		return "", fmt.Errorf("unexpected AI call")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply.Text, reply.Err
}
