// Package templates manages the predefined task templates shown to the user,
// plus any custom templates they add.
package templates

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var builtinYAML []byte

// Template is one predefined task.
type Template struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Prompt      string `yaml:"prompt"`
	Category    string `yaml:"category"`
}

type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// Manager holds the built-in templates and the user's custom ones.
type Manager struct {
	userPath  string
	templates []Template
	custom    []Template
}

// Load builds a manager from the embedded built-ins plus, when userPath
// exists, the user's template file.
func Load(userPath string) (*Manager, error) {
	var builtin templateFile
	if err := yaml.Unmarshal(builtinYAML, &builtin); err != nil {
		return nil, fmt.Errorf("parse built-in templates: %w", err)
	}

	m := &Manager{
		userPath:  userPath,
		templates: builtin.Templates,
	}

	if userPath == "" {
		return m, nil
	}

	data, err := os.ReadFile(userPath)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read template file %s: %w", userPath, err)
	}

	var user templateFile
	if err := yaml.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("parse template file %s: %w", userPath, err)
	}
	m.custom = user.Templates
	m.templates = append(m.templates, user.Templates...)

	return m, nil
}

// All returns every template, built-in first.
func (m *Manager) All() []Template {
	return append([]Template{}, m.templates...)
}

// ByID returns the template with the given id, nil when absent.
func (m *Manager) ByID(id string) *Template {
	for i := range m.templates {
		if m.templates[i].ID == id {
			return &m.templates[i]
		}
	}
	return nil
}

// ByCategory returns the templates in a category.
func (m *Manager) ByCategory(category string) []Template {
	var out []Template
	for _, t := range m.templates {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// Categories returns the sorted set of category names.
func (m *Manager) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range m.templates {
		if !seen[t.Category] {
			seen[t.Category] = true
			out = append(out, t.Category)
		}
	}
	sort.Strings(out)
	return out
}

// AddCustom creates a custom template with a unique id derived from its name.
func (m *Manager) AddCustom(name, description, prompt, category string) Template {
	if category == "" {
		category = "Custom"
	}

	id := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
	base := id
	for counter := 1; m.ByID(id) != nil; counter++ {
		id = fmt.Sprintf("%s_%d", base, counter)
	}

	t := Template{
		ID:          id,
		Name:        name,
		Description: description,
		Prompt:      prompt,
		Category:    category,
	}
	m.custom = append(m.custom, t)
	m.templates = append(m.templates, t)
	return t
}

// Save writes the custom templates to the user file.
func (m *Manager) Save() error {
	if m.userPath == "" {
		return fmt.Errorf("no template file configured")
	}

	data, err := yaml.Marshal(templateFile{Templates: m.custom})
	if err != nil {
		return fmt.Errorf("marshal templates: %w", err)
	}

	if err := os.WriteFile(m.userPath, data, 0600); err != nil {
		return fmt.Errorf("write template file %s: %w", m.userPath, err)
	}
	return nil
}
