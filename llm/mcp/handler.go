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

package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"

	"github.com/cloudwego/abmigrate/internal/report"
	"github.com/cloudwego/abmigrate/lang/dialect"
	"github.com/cloudwego/abmigrate/lang/segment"
	"github.com/cloudwego/abmigrate/lang/validate"
	"github.com/cloudwego/abmigrate/llm/prompt"
)

type Tool = server.ServerTool

// InputSchema reflects the argument schema of a tool request type.
func InputSchema[R any]() json.RawMessage {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(new(R))
	s.Version = ""
	js, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return js
}

// NewTool binds a typed handler. Handler errors become tool results with
// IsError set, not protocol errors.
func NewTool[R any, T any](name string, desc string, handler func(ctx context.Context, req R) (*T, error)) Tool {
	return Tool{
		Tool: mcp.NewToolWithRawSchema(name, desc, InputSchema[R]()),
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var req R
			if err := request.BindArguments(&req); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			var final string
			var isError bool
			if resp, err := handler(ctx, req); err != nil {
				isError = true
				final = err.Error()
			} else if js, err := json.MarshalIndent(resp, "", "  "); err != nil {
				isError = true
				final = err.Error()
			} else {
				final = string(js)
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(final),
				},
				IsError: isError,
			}, nil
		},
	}
}

const (
	ToolSegmentSource = "segment_source"
	ToolValidateCode  = "validate_code"
	ToolEstimateCost  = "estimate_cost"

	PromptConvertBlock = "convert_block"
)

type SegmentRequest struct {
	Source string `json:"source" jsonschema:"required,description=source dialect, e.g. sas or plsql"`
	Code   string `json:"code" jsonschema:"required,description=legacy script text"`
	// MaxLines overrides the overflow ceiling.
	MaxLines int `json:"max_lines,omitempty" jsonschema:"minimum=0,description=overflow line ceiling"`
}

type ValidateRequest struct {
	Target string `json:"target" jsonschema:"required,description=target dialect, e.g. pyspark or snowflake"`
	Code   string `json:"code" jsonschema:"required,description=converted code to check"`
}

type EstimateRequest struct {
	Code  string `json:"code" jsonschema:"required,description=legacy script text"`
	Model string `json:"model,omitempty" jsonschema:"description=model name used for pricing"`
}

type handlers struct {
	segment segment.Options
	pricing *report.Pricing
	prompts *prompt.Registry
}

func (h *handlers) tools() []Tool {
	return []Tool{
		NewTool(ToolSegmentSource, "Split a legacy script into ordered, dependency-annotated blocks.", h.Segment),
		NewTool(ToolValidateCode, "Check converted code the way the migration pipeline validates a block.", h.Validate),
		NewTool(ToolEstimateCost, "Estimate the token use and USD cost of converting a script.", h.Estimate),
	}
}

func (h *handlers) Segment(_ context.Context, req SegmentRequest) (*segment.Result, error) {
	src, err := dialect.NewSource(req.Source)
	if err != nil {
		return nil, err
	}
	opts := h.segment
	if req.MaxLines > 0 {
		opts.MaxLines = req.MaxLines
	}
	res := segment.New(src, opts).Segment(req.Code)
	return &res, nil
}

func (h *handlers) Validate(_ context.Context, req ValidateRequest) (*validate.Result, error) {
	t, err := dialect.NewTarget(req.Target)
	if err != nil {
		return nil, err
	}
	res := validate.Validate("", req.Code, t)
	return &res, nil
}

func (h *handlers) Estimate(_ context.Context, req EstimateRequest) (*report.Estimate, error) {
	est, err := report.EstimateCost(req.Code, req.Model, h.pricing)
	if err != nil {
		return nil, err
	}
	return &est, nil
}

func (h *handlers) convertPrompt() (mcp.Prompt, server.PromptHandlerFunc) {
	p := mcp.NewPrompt(PromptConvertBlock,
		mcp.WithPromptDescription("The conversion prompt the pipeline sends for one block"),
		mcp.WithArgument("source", mcp.RequiredArgument(), mcp.ArgumentDescription("source dialect")),
		mcp.WithArgument("target", mcp.RequiredArgument(), mcp.ArgumentDescription("target dialect")),
		mcp.WithArgument("code", mcp.RequiredArgument(), mcp.ArgumentDescription("block code")),
		mcp.WithArgument("block_type", mcp.ArgumentDescription("block type, e.g. DATA or PROC")),
		mcp.WithArgument("ddl", mcp.ArgumentDescription("script kind shown in the prompt, default general")),
	)
	return p, h.handleConvertPrompt
}

func (h *handlers) handleConvertPrompt(_ context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := request.Params.Arguments
	pair, err := dialect.NewPair(args["source"], args["target"], args["ddl"])
	if err != nil {
		return nil, err
	}
	b, err := h.prompts.Builder(pair)
	if err != nil {
		return nil, err
	}
	code := args["code"]
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("code argument is required")
	}
	blockType := args["block_type"]
	if blockType == "" {
		blockType = segment.New(pair.Source, h.segment).Classify(code)
	}
	pkg, err := b.Convert("block_1", blockType, code)
	if err != nil {
		return nil, err
	}
	return mcp.NewGetPromptResult(
		"Conversion prompt for "+pair.String(),
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(pkg.System)),
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(pkg.User)),
		},
	), nil
}
