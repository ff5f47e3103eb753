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
	"strings"
)

// Ratios used to extrapolate token counts from source size.
const (
	TokensPerLine = 17.5
	LLMOutRatio   = 0.12
	OptInRatio    = 0.04
	OptOutRatio   = 0.60
)

// Estimate is a pre-run cost projection.
type Estimate struct {
	Model          string  `json:"model"`
	Lines          int     `json:"lines"`
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	OptimizeInput  int     `json:"optimize_input_tokens"`
	OptimizeOutput int     `json:"optimize_output_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	Rate           Rate    `json:"rate_per_1k"`
	CostUSD        float64 `json:"estimated_cost_usd"`
}

// EstimateCost projects the token use of converting code with model. Every
// physical line counts, blank or not; partial tokens are truncated.
func EstimateCost(code, model string, p *Pricing) (Estimate, error) {
	lines := strings.Count(code, "\n") + 1
	in := int(float64(lines) * TokensPerLine)
	out := int(float64(in) * LLMOutRatio)
	optIn := int(float64(in) * OptInRatio)
	optOut := int(float64(optIn) * OptOutRatio)

	totalIn, totalOut := in+optIn, out+optOut
	cost, err := p.Cost(model, totalIn, totalOut)
	if err != nil {
		return Estimate{}, err
	}
	if model == "" {
		model = p.defaultModel
	}
	return Estimate{
		Model:          model,
		Lines:          lines,
		InputTokens:    in,
		OutputTokens:   out,
		OptimizeInput:  optIn,
		OptimizeOutput: optOut,
		TotalTokens:    totalIn + totalOut,
		Rate:           p.RateFor(model),
		CostUSD:        cost,
	}, nil
}
