// Package catalog holds the built-in notification templates and renders them.
// Stored templates take precedence; the catalogue is the fallback that keeps
// detectors working on an empty database.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"

	"budgetme-notifications/internal/domain"
)

//go:embed templates.yaml
var builtin []byte

type entry struct {
	Title      string          `yaml:"title"`
	Message    string          `yaml:"message"`
	Priority   domain.Priority `yaml:"priority"`
	Severity   domain.Severity `yaml:"severity"`
	Actionable bool            `yaml:"actionable"`
	ActionText string          `yaml:"action_text"`
	ActionURL  string          `yaml:"action_url"`
}

type key struct {
	typ   domain.NotificationType
	event domain.EventType
}

type Catalog struct {
	mu        sync.RWMutex
	templates map[key]*domain.NotificationTemplate
}

// Default parses the embedded catalogue.
func Default() (*Catalog, error) {
	return Parse(builtin)
}

// Parse reads a catalogue document. Every entry must name a known event that
// belongs to the enclosing notification type.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Templates map[domain.NotificationType]map[domain.EventType]entry `yaml:"TEMPLATES"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse template catalogue: %w", err)
	}

	c := &Catalog{templates: make(map[key]*domain.NotificationTemplate)}
	for typ, events := range doc.Templates {
		if !typ.IsValid() {
			return nil, fmt.Errorf("unknown notification type %q in catalogue", typ)
		}
		for event, e := range events {
			if cat, ok := event.Category(); !ok || cat != typ {
				return nil, fmt.Errorf("event %q does not belong to %q", event, typ)
			}
			t := &domain.NotificationTemplate{
				NotificationType: typ,
				EventType:        event,
				TitleTemplate:    e.Title,
				MessageTemplate:  e.Message,
				DefaultPriority:  e.Priority,
				DefaultSeverity:  e.Severity,
				IsActionable:     e.Actionable,
				IsActive:         true,
			}
			if e.ActionText != "" {
				text := e.ActionText
				t.ActionText = &text
			}
			if e.ActionURL != "" {
				url := e.ActionURL
				t.ActionURLTemplate = &url
			}
			c.templates[key{typ, event}] = t
		}
	}
	return c, nil
}

func (c *Catalog) Lookup(typ domain.NotificationType, event domain.EventType) (*domain.NotificationTemplate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.templates[key{typ, event}]
	return t, ok
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.templates)
}

// Render substitutes data into the template. A placeholder without a value is
// a template error rather than a silently blank field.
func Render(t *domain.NotificationTemplate, data map[string]any) (*domain.RenderedTemplate, error) {
	title, err := execute("title", t.TitleTemplate, data)
	if err != nil {
		return nil, err
	}
	message, err := execute("message", t.MessageTemplate, data)
	if err != nil {
		return nil, err
	}

	out := &domain.RenderedTemplate{
		Title:        title,
		Message:      message,
		Priority:     t.DefaultPriority,
		Severity:     t.DefaultSeverity,
		IsActionable: t.IsActionable,
	}
	if !out.Priority.IsValid() {
		out.Priority = domain.PriorityMedium
	}
	if !out.Severity.IsValid() {
		out.Severity = domain.SeverityInfo
	}
	if t.ActionText != nil {
		text := *t.ActionText
		out.ActionText = &text
	}
	if t.ActionURLTemplate != nil {
		url, err := execute("action_url", *t.ActionURLTemplate, data)
		if err != nil {
			return nil, err
		}
		out.ActionURL = &url
	}
	return out, nil
}

func execute(name, text string, data map[string]any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", domain.NewTemplateError("invalid "+name+" template", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", domain.NewTemplateError("failed to render "+name, err)
	}
	return buf.String(), nil
}
