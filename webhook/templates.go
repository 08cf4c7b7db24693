package webhook

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// TemplateRegistry holds the notification templates loaded at startup.
// Templates are keyed by file name ("workflow_run__completed.md") and
// rendered against the full decoded payload.
type TemplateRegistry struct {
	templates map[string]*template.Template
}

// LoadTemplates parses every *.md file in dir. A missing directory
// yields an empty registry so deployments without template files fall
// back to the built-in formatters.
func LoadTemplates(dir string) (*TemplateRegistry, error) {
	registry := &TemplateRegistry{templates: make(map[string]*template.Template)}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return registry, nil
	}
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		tmpl, err := template.New(entry.Name()).Parse(string(raw))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", entry.Name(), err)
		}
		registry.templates[entry.Name()] = tmpl
	}

	return registry, nil
}

// Has reports whether a template with the given name was loaded.
func (r *TemplateRegistry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.templates[name]
	return ok
}

// Render executes the named template against ctx.
func (r *TemplateRegistry) Render(name string, ctx interface{}) (string, error) {
	if r == nil {
		return "", fmt.Errorf("no template registry")
	}
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("no template %s", name)
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, ctx); err != nil {
		return "", err
	}
	return out.String(), nil
}

// TemplateName computes the lookup key for an event. The action, when
// present, is appended before the extension so one event type can carry
// per-action templates.
func TemplateName(eventType, action string) string {
	if action != "" {
		return eventType + "__" + action + ".md"
	}
	return eventType + ".md"
}
