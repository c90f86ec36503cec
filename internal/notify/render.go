package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	summaryTemplate  = "summary.html"
	reminderTemplate = "reminder.html"
)

// TextFallback is the plain text part of every mail.
const TextFallback = "This message is only available as HTML. Please use an HTML capable mail client."

// Renderer renders view data with the embedded templates.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing mail templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Summary renders the operator summary.
func (r *Renderer) Summary(data SummaryData) (string, error) {
	return r.render(summaryTemplate, data)
}

// Reminder renders a rotation reminder.
func (r *Renderer) Reminder(data ReminderData) (string, error) {
	return r.render(reminderTemplate, data)
}

func (r *Renderer) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}
