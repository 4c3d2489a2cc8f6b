// Package prompt renders the instruction text sent to the analysis tool:
// a base review template, zero or more topical add-ons, and any persistent
// context the caller carries between reviews.
package prompt

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/reva-dev/reva/internal/model"
)

//go:embed templates/base.md
var baseTmpl string

// Addons are the built-in topical instruction blocks selectable by name.
var Addons = map[string]string{
	"security": "Pay particular attention to security: injection, secrets in code, " +
		"unvalidated input, authn/authz mistakes, and unsafe deserialization.",
	"performance": "Pay particular attention to performance: allocations in hot paths, " +
		"unnecessary copies, N+1 query patterns, and unbounded growth.",
	"tests": "Pay particular attention to test coverage: new behavior without tests, " +
		"assertions that cannot fail, and missing edge cases.",
}

// Builder composes review prompts.
type Builder struct {
	addons  []string
	context string
}

// NewBuilder creates a builder with the given add-on names and persistent
// context. Unknown add-on names are rejected.
func NewBuilder(addons []string, persistentContext string) (*Builder, error) {
	for _, name := range addons {
		if _, ok := Addons[name]; !ok {
			return nil, fmt.Errorf("unknown prompt add-on %q", name)
		}
	}
	return &Builder{addons: addons, context: persistentContext}, nil
}

// Build renders the full prompt for one item.
func (b *Builder) Build(item *model.Item) (string, error) {
	tmpl, err := template.New("base").Option("missingkey=error").Parse(baseTmpl)
	if err != nil {
		return "", fmt.Errorf("parse base template: %w", err)
	}

	vars := map[string]any{
		"repo":   item.Owner + "/" + item.Repo,
		"title":  item.Title,
		"author": item.Author,
		"base":   item.BaseRef,
		"head":   item.HeadRef,
		"diff":   item.Diff,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	var sections []string
	sections = append(sections, buf.String())
	for _, name := range b.addons {
		sections = append(sections, "## Focus: "+name+"\n\n"+Addons[name])
	}
	if b.context != "" {
		sections = append(sections, "## Project context\n\n"+b.context)
	}

	return strings.Join(sections, "\n\n"), nil
}
