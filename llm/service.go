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

	"github.com/avast/retry-go/v4"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"

	"github.com/cloudwego/abmigrate/lang/log"
)

const (
	DefaultCallTimeout = 120 * time.Second
	DefaultAttempts    = 3
	DefaultRetryDelay  = time.Second
)

var ErrEmptyResponse = errors.New("LLM returned nil response")

// ServiceOptions bounds every call made through a ChatService.
type ServiceOptions struct {
	// Timeout caps a single attempt. The transformation service has no
	// deadline of its own, so one is always applied.
	Timeout  time.Duration
	Attempts int
	Delay    time.Duration
}

// ChatService sends (system, user) pairs to an eino chat model.
type ChatService struct {
	model model.BaseChatModel
	name  string
	opts  ServiceOptions
}

func NewChatService(m model.BaseChatModel, modelName string, opts ServiceOptions) *ChatService {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCallTimeout
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultRetryDelay
	}
	return &ChatService{model: m, name: modelName, opts: opts}
}

func (s *ChatService) Model() string { return s.name }

// Transform calls Generate with a per-attempt deadline. Transient transport
// errors are retried with exponential backoff; anything else is returned at
// once.
func (s *ChatService) Transform(ctx context.Context, system, user string) (Completion, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}
	log.Debug("[User] %d chars", len(user))

	out, err := retry.DoWithData(
		func() (*schema.Message, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
			defer cancel()
			resp, err := s.model.Generate(attemptCtx, msgs)
			if err != nil {
				return nil, err
			}
			if resp == nil {
				return nil, retry.Unrecoverable(ErrEmptyResponse)
			}
			return resp, nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(s.opts.Attempts)),
		retry.Delay(s.opts.Delay),
		retry.MaxDelay(10*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			log.Info("Retryable error occurred (attempt %d/%d): %v", n+1, s.opts.Attempts, err)
		}),
	)
	if err != nil {
		return Completion{}, errors.Wrap(err, "transform")
	}

	c := Completion{Text: out.Content}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		c.InputTokens = out.ResponseMeta.Usage.PromptTokens
		c.OutputTokens = out.ResponseMeta.Usage.CompletionTokens
	} else {
		c.InputTokens = CountTokens(user)
		c.OutputTokens = CountTokens(out.Content)
	}
	return c, nil
}

// IsRetryable reports whether err looks like a transient transport failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{
		"timeout",
		"timed out",
		"connection reset",
		"connection refused",
		"temporary failure",
		"read tcp",
		"write tcp",
		"EOF",
		"429",
		"503",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// CountTokens approximates a token count by whitespace-separated words. It is
// only used when the provider reports no usage.
func CountTokens(s string) int {
	return len(strings.Fields(s))
}
