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

// Package config loads abmigrate settings from defaults, a YAML file and
// ABMIGRATE_* environment variables.
package config

import (
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/cloudwego/abmigrate/internal/report"
	"github.com/cloudwego/abmigrate/lang/log"
	"github.com/cloudwego/abmigrate/lang/segment"
	"github.com/cloudwego/abmigrate/llm"
)

// EnvPrefix prefixes every environment override, e.g. ABMIGRATE_LLM_API_KEY.
const EnvPrefix = "ABMIGRATE"

type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Output   OutputConfig   `mapstructure:"output"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	History  HistoryConfig  `mapstructure:"history"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

type LLMConfig struct {
	APIType   string `mapstructure:"api_type"`
	ModelName string `mapstructure:"model_name"`
	BaseURL   string `mapstructure:"base_url"`
	// APIKey may reference the environment as ${VAR}.
	APIKey      string        `mapstructure:"api_key"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Retries     int           `mapstructure:"retries"`
}

type PipelineConfig struct {
	MaxSteps int `mapstructure:"max_steps"`
	Workers  int `mapstructure:"workers"`
	// BlockCeiling is the overflow line ceiling; ChunkLines the first-pass
	// one (0 picks the dialect default).
	BlockCeiling        int           `mapstructure:"block_ceiling"`
	ChunkLines          int           `mapstructure:"chunk_lines"`
	CallTimeout         time.Duration `mapstructure:"call_timeout"`
	RetryAttempts       int           `mapstructure:"retry_attempts"`
	RetryDelay          time.Duration `mapstructure:"retry_delay"`
	StageRetries        int           `mapstructure:"stage_retries"`
	Optimize            bool          `mapstructure:"optimize"`
	AbortOnManualReview bool          `mapstructure:"abort_on_manual_review"`
	PromptsDir          string        `mapstructure:"prompts_dir"`
}

type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

type PricingConfig struct {
	DefaultModel string                 `mapstructure:"default_model"`
	Rates        map[string]report.Rate `mapstructure:"rates"`
	Formula      string                 `mapstructure:"formula"`
}

type HistoryConfig struct {
	// DSN is a sqlite file path; empty disables history.
	DSN string `mapstructure:"dsn"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. ":9090".
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// ModelConfig is the provider configuration with the API key resolved.
func (c *Config) ModelConfig() llm.ModelConfig {
	temp := c.LLM.Temperature
	return llm.ModelConfig{
		Name:        c.LLM.ModelName,
		APIType:     llm.NewModelType(c.LLM.APIType),
		BaseURL:     c.LLM.BaseURL,
		APIKey:      ResolveEnvVars(c.LLM.APIKey),
		ModelName:   c.LLM.ModelName,
		Temperature: &temp,
		MaxTokens:   c.LLM.MaxTokens,
		Timeout:     c.LLM.Timeout,
		Retries:     c.LLM.Retries,
	}
}

func (c *Config) ServiceOptions() llm.ServiceOptions {
	return llm.ServiceOptions{
		Timeout:  c.Pipeline.CallTimeout,
		Attempts: c.Pipeline.RetryAttempts,
		Delay:    c.Pipeline.RetryDelay,
	}
}

func (c *Config) SegmentOptions() segment.Options {
	return segment.Options{
		ChunkLines: c.Pipeline.ChunkLines,
		MaxLines:   c.Pipeline.BlockCeiling,
	}
}

func (c *Config) PricingTable() (*report.Pricing, error) {
	return report.NewPricing(c.Pricing.Rates, c.Pricing.DefaultModel, c.Pricing.Formula)
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v *viper.Viper

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager loads cfgFile, or ./abmigrate.yaml and ~/.abmigrate/abmigrate.yaml
// when cfgFile is empty. A missing default file is not an error.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{v: viper.New()}
	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}
	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg
	return cm, nil
}

func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	for key, value := range flatten("", defaults()) {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("abmigrate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.abmigrate")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return errors.Wrap(err, "read config file")
		}
	}
	return nil
}

// load validates the config file, then decodes the merged settings.
// Environment values are strings and are only type-checked by the decoder.
func (cm *Manager) load() (*Config, error) {
	if file := cm.v.ConfigFileUsed(); file != "" {
		if err := ValidateFile(file); err != nil {
			return nil, err
		}
	}
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) check() error {
	switch {
	case c.Pipeline.Workers < 1:
		return errors.Errorf("invalid config: pipeline.workers must be at least 1, got %d", c.Pipeline.Workers)
	case c.Pipeline.MaxSteps < 1:
		return errors.Errorf("invalid config: pipeline.max_steps must be at least 1, got %d", c.Pipeline.MaxSteps)
	case c.Output.Dir == "":
		return errors.New("invalid config: output.dir is empty")
	}
	if _, err := c.PricingTable(); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// File is the config file in use, or "" when running on defaults.
func (cm *Manager) File() string {
	return cm.v.ConfigFileUsed()
}

// Get returns the current configuration.
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig reloads the file on change. An invalid edit is logged and
// the previous configuration stays in effect.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			log.Warn("config %s changed but is invalid, keeping previous: %v", e.Name, err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		log.Info("config reloaded from %s", e.Name)
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envRef.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}
