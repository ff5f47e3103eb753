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

package translate

import (
	"fmt"
)

const (
	// DefaultWorkers bounds concurrent service calls per job.
	DefaultWorkers = 4

	EmptyMarker       = "# LLM returned empty"
	EmptyResponse     = "empty response"
	errorMarkerPrefix = "# LLM ERROR: "
)

// ErrorMarker is the code recorded for a block whose service call failed.
func ErrorMarker(err error) string {
	return fmt.Sprintf("%s%v", errorMarkerPrefix, err)
}

// Options configures a Translator.
type Options struct {
	// Workers is the number of blocks converted concurrently (default: 4).
	Workers int
	// Stopped, if set, is polled before each block. Once it reports true no
	// new block is started.
	Stopped func() bool
	// Progress is optional; called after each block finishes.
	Progress ProgressCallbackFunc
}

// ProgressCallbackFunc is called after each block. done counts finished
// blocks, total is the number of blocks submitted.
type ProgressCallbackFunc func(done, total int, blockID string)

// Result is the outcome of one service call for one block. A later attempt
// for the same id supersedes it.
type Result struct {
	ID           string `json:"id"`
	OK           bool   `json:"success"`
	Code         string `json:"code"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	// Err holds the service error message of a failed call.
	Err string `json:"error,omitempty"`
}

func (r Result) TotalTokens() int { return r.InputTokens + r.OutputTokens }

// Usage sums token counts over results.
func Usage(results []Result) (input, output int) {
	for _, r := range results {
		input += r.InputTokens
		output += r.OutputTokens
	}
	return input, output
}

// Failed returns the results whose call did not succeed.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.OK {
			out = append(out, r)
		}
	}
	return out
}
