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

package prompt_test

import (
	"testing"
	"testing/fstest"

	"github.com/marketscribe/marketscribe/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBuiltinTemplates(t *testing.T) {
	for _, name := range []string{"research", "reevaluate", "chat_init", "update", "checker"} {
		t.Run(name, func(t *testing.T) {
			tpl, err := prompt.Load(name)
			require.NoError(t, err)
			assert.Equal(t, name, tpl.Name)
			assert.NotEmpty(t, tpl.Text)
			assert.Contains(t, tpl.Placeholders, "ticker")
			assert.Contains(t, tpl.Placeholders, "currentDate")
		})
	}
}

func TestLoadMissingTemplate(t *testing.T) {
	_, err := prompt.Load("nope")
	var target prompt.TemplateNotFoundError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "nope", target.Name)
}

func TestFillSubstitutesEveryOccurrence(t *testing.T) {
	fsys := fstest.MapFS{
		"greet.md": {Data: []byte("Hi ${name}, again: ${name}. Date: ${date}.")},
	}
	tpl, err := prompt.LoadFS(fsys, "greet")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "date"}, tpl.Placeholders)

	got := tpl.Fill(map[string]string{"name": "Ada", "date": "2025-11-03"})
	assert.Equal(t, "Hi Ada, again: Ada. Date: 2025-11-03.", got)
	assert.NotContains(t, got, "${name}")
	assert.NotContains(t, got, "${date}")
}

func TestFillLeavesUnknownPlaceholdersVerbatim(t *testing.T) {
	fsys := fstest.MapFS{"t.md": {Data: []byte("${known} and ${unknown}")}}
	tpl, err := prompt.LoadFS(fsys, "t")
	require.NoError(t, err)

	got := tpl.Fill(map[string]string{"known": "yes"})
	assert.Equal(t, "yes and ${unknown}", got)
}

func TestFillIsNotRecursive(t *testing.T) {
	fsys := fstest.MapFS{"t.md": {Data: []byte("value: ${a}")}}
	tpl, err := prompt.LoadFS(fsys, "t")
	require.NoError(t, err)

	// A substituted value that itself looks like a placeholder must not
	// be expanded again.
	got := tpl.Fill(map[string]string{"a": "${b}", "b": "leaked"})
	assert.Equal(t, "value: ${b}", got)
}

func TestFillLeavesSurroundingTextUntouched(t *testing.T) {
	text := "# Title\n\nPlain text, a $dollar, ${x}, and {braces}.\n"
	fsys := fstest.MapFS{"t.md": {Data: []byte(text)}}
	tpl, err := prompt.LoadFS(fsys, "t")
	require.NoError(t, err)

	got := tpl.Fill(map[string]string{"x": "X"})
	assert.Equal(t, "# Title\n\nPlain text, a $dollar, X, and {braces}.\n", got)
}

func TestPlaceholdersRecordedOnce(t *testing.T) {
	fsys := fstest.MapFS{"t.md": {Data: []byte("${a} ${b} ${a} ${c} ${b}")}}
	tpl, err := prompt.LoadFS(fsys, "t")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, tpl.Placeholders)
}
