// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cloudwego/abmigrate/internal/report"
	"github.com/cloudwego/abmigrate/lang/segment"
)

// defaults returns the built-in settings as the nested layout of the YAML
// file. Durations are strings so the same map serves viper and WriteDefault.
func defaults() map[string]any {
	rates := map[string]any{}
	for name, r := range report.DefaultRates() {
		rates[name] = map[string]any{"input": r.Input, "output": r.Output}
	}
	return map[string]any{
		"llm": map[string]any{
			"api_type":    "openai",
			"model_name":  report.DefaultModel,
			"base_url":    "",
			"api_key":     "${OPENAI_API_KEY}",
			"temperature": 0.0,
			"max_tokens":  4096,
			"timeout":     "120s",
			"retries":     0,
		},
		"pipeline": map[string]any{
			"max_steps":              50,
			"workers":                4,
			"block_ceiling":          segment.DefaultMaxLines,
			"chunk_lines":            0,
			"call_timeout":           "120s",
			"retry_attempts":         3,
			"retry_delay":            "2s",
			"stage_retries":          2,
			"optimize":               true,
			"abort_on_manual_review": false,
			"prompts_dir":            "",
		},
		"output": map[string]any{
			"dir": "output",
		},
		"pricing": map[string]any{
			"default_model": report.DefaultModel,
			"rates":         rates,
			"formula":       report.DefaultFormula,
		},
		"history": map[string]any{
			"dsn": "",
		},
		"metrics": map[string]any{
			"addr": "",
		},
		"log": map[string]any{
			"level": "info",
			"json":  false,
		},
	}
}

// flatten turns nested sections into dotted viper keys. Pricing rates stay
// a single map value since the model names are data, not keys.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok && key != "pricing.rates" {
			for fk, fv := range flatten(key, sub) {
				out[fk] = fv
			}
			continue
		}
		out[key] = v
	}
	return out
}

const defaultHeader = `# abmigrate configuration
# Every key can be overridden with an ABMIGRATE_ environment variable,
# e.g. ABMIGRATE_LLM_MODEL_NAME or ABMIGRATE_PIPELINE_WORKERS.
# ${VAR} in llm.api_key is read from the environment.

`

// WriteDefault writes the default configuration to path. An existing file
// is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errors.Errorf("config file %s already exists", path)
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create config dir %s", dir)
		}
	}

	var buf bytes.Buffer
	buf.WriteString(defaultHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(ordered(defaults())); err != nil {
		return errors.Wrap(err, "encode default config")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "encode default config")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "write config file %s", path)
	}
	return nil
}

var sectionOrder = []string{"llm", "pipeline", "output", "pricing", "history", "metrics", "log"}

// ordered builds a yaml node so sections come out in a stable, readable
// order instead of map order.
func ordered(m map[string]any) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	rank := func(k string) int {
		for i, s := range sectionOrder {
			if s == k {
				return i
			}
		}
		return len(sectionOrder)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := rank(keys[i]), rank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return strings.Compare(keys[i], keys[j]) < 0
	})
	for _, k := range keys {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: k}
		var val *yaml.Node
		if sub, ok := m[k].(map[string]any); ok {
			val = ordered(sub)
		} else {
			val = &yaml.Node{}
			if err := val.Encode(m[k]); err != nil {
				val = &yaml.Node{Kind: yaml.ScalarNode, Value: ""}
			}
		}
		node.Content = append(node.Content, key, val)
	}
	return node
}
