// Package compiler provides template compilers the render pipeline can drive.
package compiler

import (
	"context"
	"fmt"
	"html/template"
	"strings"
)

// Template compiles markup with html/template. Data values are escaped for
// the context they appear in.
type Template struct {
	funcs template.FuncMap
}

// NewTemplate returns a compiler with the built-in functions plus extra.
// Entries in extra override built-ins of the same name.
func NewTemplate(extra template.FuncMap) *Template {
	fm := template.FuncMap{
		"upper":    strings.ToUpper,
		"lower":    strings.ToLower,
		"trim":     strings.TrimSpace,
		"join":     strings.Join,
		"contains": strings.Contains,
		"replace":  strings.ReplaceAll,
		"add":      add,
		"sub":      sub,
		"inc":      inc,
		"default":  defaultValue,
		"safeHTML": safeHTML,
	}
	for k, v := range extra {
		fm[k] = v
	}
	return &Template{funcs: fm}
}

// Compile parses fragment and executes it against data.
func (t *Template) Compile(ctx context.Context, fragment string, data map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tmpl, err := template.New("fragment").Option("missingkey=zero").Funcs(t.funcs).Parse(fragment)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	var sb strings.Builder
	sb.Grow(len(fragment))
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Passthrough returns markup unchanged.
type Passthrough struct{}

func (Passthrough) Compile(ctx context.Context, fragment string, _ map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fragment, nil
}

// add returns a + b.
func add(a, b int) int { return a + b }

// sub returns a - b.
func sub(a, b int) int { return a - b }

// inc returns i + 1. Handy for 1-based chunk numbering.
func inc(i int) int { return i + 1 }

// defaultValue returns fallback when v is nil or an empty string.
func defaultValue(fallback, v any) any {
	if v == nil {
		return fallback
	}
	if s, ok := v.(string); ok && s == "" {
		return fallback
	}
	return v
}

// safeHTML marks s as trusted markup.
func safeHTML(s string) template.HTML { return template.HTML(s) }
