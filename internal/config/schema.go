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
	_ "embed"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "abmigrate://config.schema.json"

var configSchema = jsonschema.MustCompileString(schemaURL, string(schemaJSON))

// Schema returns the JSON Schema config files are checked against.
func Schema() []byte {
	return schemaJSON
}

// Validate checks a decoded config document (as produced by yaml or json
// unmarshalling into any) against the schema.
func Validate(doc any) error {
	if doc == nil {
		return nil
	}
	// round-trip so yaml ints and nested maps reach the validator as JSON values
	raw, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "encode config for validation")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return errors.Wrap(err, "decode config for validation")
	}
	if err := configSchema.Validate(v); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// ValidateFile validates a YAML config file.
func ValidateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config file %s", path)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.Wrapf(err, "parse config file %s", path)
	}
	return Validate(doc)
}
