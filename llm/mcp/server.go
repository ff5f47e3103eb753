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
	"io"
	stdlog "log"

	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"

	"github.com/cloudwego/abmigrate/internal/report"
	"github.com/cloudwego/abmigrate/lang/log"
	"github.com/cloudwego/abmigrate/lang/segment"
	"github.com/cloudwego/abmigrate/llm/prompt"
)

type ServerOptions struct {
	ServerName    string
	ServerVersion string
	Segment       segment.Options
	// Pricing defaults to the built-in price table.
	Pricing *report.Pricing
	// Prompts defaults to the built-in templates.
	Prompts *prompt.Registry
	// Verbose keeps the transport's own error log on stderr.
	Verbose bool
}

// Server exposes segmentation, validation and cost estimation as MCP tools.
type Server struct {
	*server.MCPServer
	opts ServerOptions
}

func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Pricing == nil {
		opts.Pricing = report.DefaultPricing()
	}
	if opts.Prompts == nil {
		reg, err := prompt.NewRegistry()
		if err != nil {
			return nil, errors.Wrap(err, "load prompt templates")
		}
		opts.Prompts = reg
	}
	svr := server.NewMCPServer(opts.ServerName, opts.ServerVersion,
		server.WithToolCapabilities(false),
		server.WithPromptCapabilities(false),
		server.WithRecovery(),
	)
	h := &handlers{segment: opts.Segment, pricing: opts.Pricing, prompts: opts.Prompts}
	svr.AddTools(h.tools()...)
	svr.AddPrompt(h.convertPrompt())
	return &Server{MCPServer: svr, opts: opts}, nil
}

// ServeStdio serves JSON-RPC over in and out until ctx is done or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.MCPServer)
	if !s.opts.Verbose {
		stdio.SetErrorLogger(stdlog.New(io.Discard, "", 0))
	}
	log.Info("mcp server %s %s listening on stdio", s.opts.ServerName, s.opts.ServerVersion)
	err := stdio.Listen(ctx, in, out)
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	return errors.Wrap(err, "mcp stdio server")
}
