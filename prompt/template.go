// Copyright 2025 The Marketscribe Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package prompt loads markdown prompt templates and fills their
// ${name} placeholders with literal text.
package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
)

//go:embed templates
var defaultTemplates embed.FS

// Placeholder identifiers are word characters between ${ and }.
// There is no escape mechanism for a literal "${...}".
var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}`)

// Template is an immutable prompt template.
type Template struct {
	Name string
	Text string

	// Distinct placeholder names, in order of first appearance.
	Placeholders []string
}

// TemplateNotFoundError is returned when a named template is missing
// or unreadable.
type TemplateNotFoundError struct {
	Name string
	Err  error
}

func (err TemplateNotFoundError) Error() string {
	return fmt.Sprintf("prompt template %q not found: %v", err.Name, err.Err)
}

func (err TemplateNotFoundError) Unwrap() error { return err.Err }

// Load reads the built-in template with the given name.
func Load(name string) (*Template, error) {
	sub, err := fs.Sub(defaultTemplates, "templates")
	if err != nil {
		return nil, TemplateNotFoundError{Name: name, Err: err}
	}
	return LoadFS(sub, name)
}

// LoadFS reads the template stored as "<name>.md" in fsys.
func LoadFS(fsys fs.FS, name string) (*Template, error) {
	data, err := fs.ReadFile(fsys, name+".md")
	if err != nil {
		return nil, TemplateNotFoundError{Name: name, Err: err}
	}
	text := string(data)
	return &Template{
		Name:         name,
		Text:         text,
		Placeholders: extractPlaceholders(text),
	}, nil
}

// Fill replaces every occurrence of ${key} for each key present in values.
// Substitution is literal and single-pass: a substituted value is never
// re-scanned for further placeholders. Placeholders without a supplied
// value are left verbatim.
func (t *Template) Fill(values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(t.Text, func(match string) string {
		name := match[2 : len(match)-1]
		if v, ok := values[name]; ok {
			return v
		}
		return match
	})
}

func extractPlaceholders(text string) []string {
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if !slices.Contains(names, m[1]) {
			names = append(names, m[1])
		}
	}
	return names
}
