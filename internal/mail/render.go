// Package mail renders the embedded email templates and delivers them over
// SMTP.
package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/skyhub/auth-service/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer executes templates with the job context merged over the site
// context (appName, appUrl).
type Renderer struct {
	tmpl *template.Template
	site map[string]any
}

func NewRenderer(cfg config.MailConfig) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &Renderer{
		tmpl: tmpl,
		site: map[string]any{"appName": cfg.AppName, "appUrl": cfg.AppURL},
	}, nil
}

// Render executes the template called name (without the .html suffix).
// Job values win over site values on key collisions.
func (r *Renderer) Render(name string, data map[string]any) (string, error) {
	t := r.tmpl.Lookup(name + ".html")
	if t == nil {
		return "", fmt.Errorf("unknown mail template %q", name)
	}
	merged := make(map[string]any, len(r.site)+len(data))
	for k, v := range r.site {
		merged[k] = v
	}
	for k, v := range data {
		merged[k] = v
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, merged); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
