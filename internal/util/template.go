package util

import (
	"bytes"
	"strings"
	"text/template"
)

// RenderTemplate expands {{.var}} markers in prompt templates using Go's
// text/template. Text without markers is returned as-is.
func RenderTemplate(text string, vars map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := template.New("prompt").Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}
