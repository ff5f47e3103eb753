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
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/cloudwego/abmigrate/lang/dialect"
	"github.com/cloudwego/abmigrate/lang/log"
)

//go:embed templates/*.md
var embedded embed.FS

var ErrNoTemplate = errors.New("no prompt template")

// Registry holds the known templates by name. Templates loaded later replace
// earlier ones of the same name.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry returns a registry preloaded with the built-in templates.
func NewRegistry() (*Registry, error) {
	r := &Registry{templates: make(map[string]*Template)}
	files, err := fs.Glob(embedded, "templates/*"+TemplateExt)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		data, err := embedded.ReadFile(f)
		if err != nil {
			return nil, errors.Wrapf(err, "read embedded %s", f)
		}
		t, err := Parse(strings.TrimSuffix(path.Base(f), TemplateExt), data)
		if err != nil {
			return nil, err
		}
		t.Path = "embedded:" + f
		r.templates[t.Name] = t
	}
	return r, nil
}

// LoadDir overlays the templates found in dir.
func (r *Registry) LoadDir(dir string) error {
	ts, err := LoadDir(dir)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range ts {
		if _, ok := r.templates[t.Name]; ok {
			log.Info("prompt template %s overridden by %s", t.Name, t.Path)
		}
		r.templates[t.Name] = t
	}
	return nil
}

func (r *Registry) Get(name string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	return t, ok
}

// List returns all templates sorted by name.
func (r *Registry) List() []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Select picks the most specific template of kind for the pair: one naming
// both dialects beats one naming the target, which beats one naming the
// source, which beats a catch-all. Ties go to the lexically first name.
func (r *Registry) Select(kind Kind, source, target string) (*Template, error) {
	var best *Template
	bestScore := -1
	for _, t := range r.List() {
		if t.Kind != kind {
			continue
		}
		if s := t.score(source, target); s > bestScore {
			best, bestScore = t, s
		}
	}
	if best == nil {
		return nil, errors.Wrapf(ErrNoTemplate, "%s for %s->%s", kind, source, target)
	}
	return best, nil
}

// Builder renders the templates chosen once for a dialect pair.
type Builder struct {
	pair     dialect.Pair
	convert  *Template
	feedback *Template
	optimize *Template
}

func (r *Registry) Builder(p dialect.Pair) (*Builder, error) {
	b := &Builder{pair: p}
	var err error
	src, tgt := string(p.Source), string(p.Target)
	if b.convert, err = r.Select(KindConvert, src, tgt); err != nil {
		return nil, err
	}
	if b.feedback, err = r.Select(KindFeedback, src, tgt); err != nil {
		return nil, err
	}
	if b.optimize, err = r.Select(KindOptimize, src, tgt); err != nil {
		return nil, err
	}
	log.Debug("prompts for %s: convert=%s feedback=%s optimize=%s", p, b.convert.Name, b.feedback.Name, b.optimize.Name)
	return b, nil
}

func (b *Builder) data() Data {
	return Data{Source: string(b.pair.Source), Target: string(b.pair.Target), DDL: b.pair.DDL}
}

// ConvertName is the name of the template used for conversion.
func (b *Builder) ConvertName() string { return b.convert.Name }

func (b *Builder) Convert(id, blockType, code string) (Package, error) {
	d := b.data()
	d.BlockID, d.BlockType, d.Code = id, blockType, code
	return b.convert.Render(d)
}

// Feedback renders a repair request from the original source, the previous
// output and the reason it was rejected.
func (b *Builder) Feedback(id, code, previous, reason string) (Package, error) {
	d := b.data()
	d.BlockID, d.Code, d.Previous, d.Error = id, code, previous, reason
	return b.feedback.Render(d)
}

func (b *Builder) Optimize(code string) (Package, error) {
	d := b.data()
	d.Code = code
	d.Lang = Lang(b.pair.Target)
	return b.optimize.Render(d)
}

// Lang names the language of a target's merged artifact.
func Lang(t dialect.Target) string {
	switch t {
	case dialect.PySpark:
		return "PySpark"
	case dialect.Snowpark:
		return "Snowpark (Python)"
	case dialect.Python:
		return "Python"
	case dialect.Matillion:
		return "Matillion"
	case dialect.DBT:
		return "DBT"
	}
	return "SQL"
}
