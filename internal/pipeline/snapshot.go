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

package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// Snapshot identifies one version of an artifact a stage wrote to disk.
// Rewriting the same kind replaces the snapshot.
type Snapshot struct {
	Kind string // e.g. "block_table", "optimized_file"
	Path string
	Hash string // hex-encoded sha256 of the written bytes
}

// NewSnapshot creates a snapshot of raw as written to path.
func NewSnapshot(kind, path string, raw []byte) *Snapshot {
	h := sha256.Sum256(raw)
	return &Snapshot{
		Kind: kind,
		Path: path,
		Hash: hex.EncodeToString(h[:]),
	}
}

// Name is the base name of the artifact, as listed in reports.
func (s *Snapshot) Name() string {
	if s == nil {
		return ""
	}
	return filepath.Base(s.Path)
}
