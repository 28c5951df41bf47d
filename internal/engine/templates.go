package engine

import (
	"fmt"
	"strings"
	"sync"

	"notify-service/internal/models"
)

// templateRegistry holds type-keyed templates. Registration replaces any
// existing template for the same type.
type templateRegistry struct {
	mu        sync.RWMutex
	templates map[string]models.Template
}

func newTemplateRegistry() *templateRegistry {
	return &templateRegistry{templates: make(map[string]models.Template)}
}

func (r *templateRegistry) register(tmpl models.Template) {
	r.mu.Lock()
	r.templates[tmpl.Type] = tmpl
	r.mu.Unlock()
}

func (r *templateRegistry) get(notifType string) (models.Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tmpl, ok := r.templates[notifType]
	return tmpl, ok
}

// apply fills empty Title/Body/Category from the template for the input's
// type. Explicit values on the input always win.
func (r *templateRegistry) apply(input models.NotificationInput) models.NotificationInput {
	tmpl, ok := r.get(input.Type)
	if !ok {
		return input
	}
	if input.Title == "" {
		input.Title = renderTemplate(tmpl.Title, input.Data)
	}
	if input.Body == "" {
		input.Body = renderTemplate(tmpl.Body, input.Data)
	}
	if input.Category == "" {
		input.Category = tmpl.DefaultCategory
	}
	return input
}

// renderTemplate substitutes {{key}} placeholders from data.
func renderTemplate(text string, data map[string]interface{}) string {
	if len(data) == 0 || !strings.Contains(text, "{{") {
		return text
	}
	for key, value := range data {
		text = strings.ReplaceAll(text, "{{"+key+"}}", fmt.Sprintf("%v", value))
	}
	return text
}
