package notifications

import (
	"embed"
	"fmt"
	"strings"

	"github.com/aymerick/raymond"
)

//go:embed templates/*.hbs
var templateFS embed.FS

// Rendered is a rendered email
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

// Templates renders the new-application email with Handlebars
type Templates struct {
	subject *raymond.Template
	text    *raymond.Template
	html    *raymond.Template
	baseURL string
}

// NewTemplates parses the embedded templates. baseURL prefixes links back
// to the API.
func NewTemplates(baseURL string) (*Templates, error) {
	t := &Templates{baseURL: strings.TrimRight(baseURL, "/")}
	for name, dst := range map[string]**raymond.Template{
		"new_application.subject.hbs": &t.subject,
		"new_application.txt.hbs":     &t.text,
		"new_application.html.hbs":    &t.html,
	} {
		content, err := templateFS.ReadFile("templates/" + name)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", name, err)
		}
		tmpl, err := raymond.Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		*dst = tmpl
	}
	return t, nil
}

func (t *Templates) Render(msg Message) (*Rendered, error) {
	ctx := map[string]any{
		"jobId":          msg.JobID,
		"candidateName":  msg.CandidateName,
		"candidateEmail": msg.CandidateEmail,
		"baseUrl":        t.baseURL,
	}

	subject, err := t.subject.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("render subject: %w", err)
	}
	text, err := t.text.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("render text: %w", err)
	}
	html, err := t.html.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	return &Rendered{
		Subject: strings.TrimSpace(subject),
		Text:    text,
		HTML:    html,
	}, nil
}
