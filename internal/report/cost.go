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

package report

import (
	"math"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/pkg/errors"
)

// Rate is the USD price per 1k tokens.
type Rate struct {
	Input  float64 `json:"input" mapstructure:"input"`
	Output float64 `json:"output" mapstructure:"output"`
}

const (
	DefaultModel   = "gpt-4o"
	DefaultFormula = "(input/1000)*input_rate + (output/1000)*output_rate"
)

// DefaultRates is the built-in price table, matched by substring of the
// lowercased model name.
func DefaultRates() map[string]Rate {
	return map[string]Rate{
		"gpt-4o": {Input: 0.005, Output: 0.015},
		"gpt-4":  {Input: 0.03, Output: 0.06},
		"gpt-35": {Input: 0.001, Output: 0.002},
		"gemini": {Input: 0.0015, Output: 0.0015},
	}
}

// Pricing prices token counts with a rate table and a formula over the
// parameters input, output, input_rate and output_rate.
type Pricing struct {
	rates        map[string]Rate
	keys         []string
	defaultModel string
	formula      *govaluate.EvaluableExpression
}

func NewPricing(rates map[string]Rate, defaultModel, formula string) (*Pricing, error) {
	if len(rates) == 0 {
		rates = DefaultRates()
	}
	if defaultModel == "" {
		defaultModel = DefaultModel
	}
	if strings.TrimSpace(formula) == "" {
		formula = DefaultFormula
	}
	if _, ok := rates[defaultModel]; !ok {
		return nil, errors.Errorf("default model %q has no rate", defaultModel)
	}
	expr, err := govaluate.NewEvaluableExpression(formula)
	if err != nil {
		return nil, errors.Wrapf(err, "parse pricing formula %q", formula)
	}
	for _, v := range expr.Vars() {
		switch v {
		case "input", "output", "input_rate", "output_rate":
		default:
			return nil, errors.Errorf("pricing formula: unknown parameter %q", v)
		}
	}

	p := &Pricing{rates: make(map[string]Rate, len(rates)), defaultModel: defaultModel, formula: expr}
	for k, r := range rates {
		k = strings.ToLower(k)
		p.rates[k] = r
		p.keys = append(p.keys, k)
	}
	// longer keys first so "gpt-4o" wins over "gpt-4"
	sort.Slice(p.keys, func(i, j int) bool {
		if len(p.keys[i]) != len(p.keys[j]) {
			return len(p.keys[i]) > len(p.keys[j])
		}
		return p.keys[i] < p.keys[j]
	})
	p.defaultModel = strings.ToLower(defaultModel)
	return p, nil
}

// DefaultPricing never fails.
func DefaultPricing() *Pricing {
	p, err := NewPricing(nil, "", "")
	if err != nil {
		panic(err)
	}
	return p
}

// RateFor returns the rate of the first table key contained in model, or the
// default model's rate.
func (p *Pricing) RateFor(model string) Rate {
	m := strings.ToLower(model)
	for _, k := range p.keys {
		if strings.Contains(m, k) {
			return p.rates[k]
		}
	}
	return p.rates[p.defaultModel]
}

// Cost prices input and output tokens for model, rounded to 6 decimals.
func (p *Pricing) Cost(model string, input, output int) (float64, error) {
	r := p.RateFor(model)
	v, err := p.formula.Evaluate(map[string]interface{}{
		"input":       float64(input),
		"output":      float64(output),
		"input_rate":  r.Input,
		"output_rate": r.Output,
	})
	if err != nil {
		return 0, errors.Wrap(err, "evaluate pricing formula")
	}
	f, ok := v.(float64)
	if !ok {
		return 0, errors.Errorf("pricing formula returned %T, want number", v)
	}
	return round(f, 6), nil
}

func round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
