/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package prompt

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	FrontMatterDelimiter = "---"
	SystemHeading        = "## system"
	UserHeading          = "## user"
	TemplateExt          = ".md"
)

type frontmatter struct {
	Name        string   `yaml:"name"`
	Kind        string   `yaml:"kind"`
	Description string   `yaml:"description"`
	Sources     []string `yaml:"sources"`
	Targets     []string `yaml:"targets"`
}

// Parse reads one template file. base is the file name without extension
// and must equal the frontmatter name.
func Parse(base string, data []byte) (*Template, error) {
	head, body, err := extractFrontmatter(string(data))
	if err != nil {
		return nil, errors.Wrapf(err, "template %s", base)
	}
	var meta frontmatter
	if err := yaml.Unmarshal([]byte(head), &meta); err != nil {
		return nil, errors.Wrapf(err, "template %s: parse frontmatter", base)
	}
	if err := validateName(meta.Name, base); err != nil {
		return nil, err
	}
	kind := Kind(strings.ToLower(meta.Kind))
	if !kind.valid() {
		return nil, errors.Errorf("template %s: unknown kind %q", base, meta.Kind)
	}

	sysText, userText, err := splitSections(body)
	if err != nil {
		return nil, errors.Wrapf(err, "template %s", base)
	}
	sys, err := template.New(meta.Name + "/system").Funcs(funcs).Parse(sysText)
	if err != nil {
		return nil, errors.Wrapf(err, "template %s", base)
	}
	usr, err := template.New(meta.Name + "/user").Funcs(funcs).Parse(userText)
	if err != nil {
		return nil, errors.Wrapf(err, "template %s", base)
	}
	return &Template{
		Name:        meta.Name,
		Kind:        kind,
		Description: meta.Description,
		Sources:     lowerAll(meta.Sources),
		Targets:     lowerAll(meta.Targets),
		system:      sys,
		user:        usr,
	}, nil
}

// LoadDir parses every *.md file directly under dir.
func LoadDir(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read prompt dir %s", dir)
	}
	var out []*Template
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != TemplateExt {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		t, err := Parse(strings.TrimSuffix(e.Name(), TemplateExt), data)
		if err != nil {
			return nil, err
		}
		t.Path = path
		out = append(out, t)
	}
	return out, nil
}

func extractFrontmatter(content string) (head, body string, err error) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, FrontMatterDelimiter) {
		return "", content, errors.New("no frontmatter found (expected '---' at start)")
	}
	rest := content[len(FrontMatterDelimiter):]
	end := strings.Index(rest, "\n"+FrontMatterDelimiter)
	if end == -1 {
		return "", content, errors.New("unterminated frontmatter")
	}
	head = rest[:end]
	body = rest[end+1+len(FrontMatterDelimiter):]
	return strings.TrimSpace(head), strings.TrimSpace(body), nil
}

// splitSections cuts the body at the system and user headings. Text before
// the first heading is ignored.
func splitSections(body string) (system, user string, err error) {
	var cur *strings.Builder
	var sys, usr strings.Builder
	var seenSys, seenUser bool
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch strings.ToLower(strings.TrimSpace(line)) {
		case SystemHeading:
			cur, seenSys = &sys, true
			continue
		case UserHeading:
			cur, seenUser = &usr, true
			continue
		}
		if cur != nil {
			cur.WriteString(line)
			cur.WriteByte('\n')
		}
	}
	if err := sc.Err(); err != nil {
		return "", "", err
	}
	if !seenSys || !seenUser {
		return "", "", errors.New("body needs both '## system' and '## user' sections")
	}
	return strings.TrimSpace(sys.String()), strings.TrimSpace(usr.String()), nil
}

// validateName accepts lowercase letters, digits and single hyphens, and
// requires the name to match the file it was read from.
func validateName(name, base string) error {
	if name == "" {
		return errors.New("template name cannot be empty")
	}
	for _, r := range name {
		if !unicode.IsLower(r) && !unicode.IsDigit(r) && r != '-' {
			return errors.Errorf("template name can only contain lowercase letters, numbers, and hyphens, got '%c'", r)
		}
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") || strings.Contains(name, "--") {
		return errors.Errorf("template name %q has misplaced hyphens", name)
	}
	if name != base {
		return errors.Errorf("template name '%s' must match file name '%s'", name, base)
	}
	return nil
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
