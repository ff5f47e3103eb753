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

package llm

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
)

type ModelConfig struct {
	Name        string        `json:"name" mapstructure:"name"` // alias of the config, not endpoint!
	APIType     ModelType     `json:"type" mapstructure:"api_type"`
	BaseURL     string        `json:"base_url" mapstructure:"base_url"`
	APIKey      string        `json:"-" mapstructure:"api_key"`
	ModelName   string        `json:"model_name" mapstructure:"model_name"` // the endpoint of the model, like `gpt-4o`
	Temperature *float32      `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int           `json:"max_tokens" mapstructure:"max_tokens"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"` // HTTP request timeout, default: 600s
	Retries     int           `json:"retries" mapstructure:"retries"` // Number of retries on failure, default: 3
}

type ModelType string

func NewModelType(t string) ModelType {
	switch strings.ToLower(t) {
	case "ollama":
		return ModelTypeOllama
	case "ark", "doubao":
		return ModelTypeARK
	case "openai", "gpt", "azure":
		return ModelTypeOpenAI
	case "claude", "anthropic":
		return ModelTypeClaude
	case "dashscope", "qwen", "tongyi":
		return ModelTypeDashScope
	case "deepseek":
		return ModelTypeDeepSeek
	}
	return ModelTypeUnknown
}

const (
	ModelTypeUnknown   ModelType = ""
	ModelTypeOllama    ModelType = "ollama"
	ModelTypeARK       ModelType = "ark"
	ModelTypeOpenAI    ModelType = "openai"
	ModelTypeClaude    ModelType = "claude"
	ModelTypeDashScope ModelType = "dashscope" // 阿里云 DashScope (通义千问)
	ModelTypeDeepSeek  ModelType = "deepseek"
)

// ChatModel is the interface for making LLM backend.
type ChatModel interface {
	model.ToolCallingChatModel
}

// Completion is one answer from the transformation service.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

func (c Completion) TotalTokens() int { return c.InputTokens + c.OutputTokens }

// Service is the external code-transformation boundary. Any error it
// returns is an ordinary failure outcome for the caller.
type Service interface {
	Transform(ctx context.Context, system, user string) (Completion, error)
	// Model names the backing model, for reports and pricing.
	Model() string
}

// ServiceFunc adapts a function; mostly for tests and offline runs.
type ServiceFunc func(ctx context.Context, system, user string) (Completion, error)

func (f ServiceFunc) Transform(ctx context.Context, system, user string) (Completion, error) {
	return f(ctx, system, user)
}

func (f ServiceFunc) Model() string { return "func" }
