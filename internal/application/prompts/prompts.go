// Package prompts renders the fixed prompt templates sent to the model.
package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

var ErrUnknownTemplate = errors.New("unknown prompt template")

// Context is the set of values substituted into a template. The owning
// user is deliberately absent: it never reaches the prompt.
type Context struct {
	Name        string
	Description string
	Area        string
	City        string
	Images      []string
	Logo        string
	MapAPIKey   string
}

// Compiler holds the parsed, versioned templates.
type Compiler struct {
	templates map[string]*template.Template
}

// NewCompiler parses every built-in template. It panics on a malformed
// template since those are compiled-in constants.
func NewCompiler() *Compiler {
	c := &Compiler{templates: make(map[string]*template.Template)}
	c.mustAdd(ListingSiteV1, listingSiteV1)
	return c
}

func (c *Compiler) mustAdd(id, text string) {
	c.templates[id] = template.Must(template.New(id).Option("missingkey=error").Parse(text))
}

// Render substitutes ctx into the template registered under templateID.
// Every placeholder is mandatory; an empty value is reported as an error.
func (c *Compiler) Render(templateID string, ctx Context) (string, error) {
	tmpl, ok := c.templates[templateID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, templateID)
	}
	vars, err := ctx.vars()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("render %s: %w", templateID, err)
	}
	return b.String(), nil
}

func (ctx Context) vars() (map[string]string, error) {
	if len(ctx.Images) == 0 {
		return nil, fmt.Errorf("prompt placeholder %q is empty", "Images")
	}
	images, err := json.Marshal(ctx.Images)
	if err != nil {
		return nil, err
	}
	vars := map[string]string{
		"Name":        ctx.Name,
		"Description": ctx.Description,
		"Area":        ctx.Area,
		"City":        ctx.City,
		"Images":      string(images),
		"Logo":        ctx.Logo,
		"Map":         ctx.MapAPIKey,
	}
	for k, v := range vars {
		if v == "" {
			return nil, fmt.Errorf("prompt placeholder %q is empty", k)
		}
	}
	return vars, nil
}
