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

package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cloudwego/abmigrate/internal/config"
	"github.com/cloudwego/abmigrate/lang/log"
	"github.com/cloudwego/abmigrate/version"
)

var (
	cfgFile  string
	logLevel string
	logJSON  bool

	// cfgManager is loaded by the root pre-run hook.
	cfgManager *config.Manager
)

var rootCmd = &cobra.Command{
	Use:   "abmigrate",
	Short: "Migrate legacy SAS and PL/SQL scripts to modern dialects with an LLM",
	Long: `abmigrate converts legacy scripts (SAS, PL/SQL and other SQL dialects) into
PySpark, Snowpark, Python or warehouse SQL.

A job segments the input into ordered blocks, converts each block through a
language model, validates the output, retries failed blocks once with the
validator's feedback and merges the result into one optimised file plus a
cost report. Blocks that still fail are left for manual review.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfgManager = mgr
		setupLogging(cmd, mgr.Get())
		if f := mgr.File(); f != "" {
			log.Debug("using config file %s", f)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./abmigrate.yaml or ~/.abmigrate/abmigrate.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (overrides log.level)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON (overrides log.json)")

	rootCmd.AddCommand(
		convertCmd,
		segmentCmd,
		validateCmd,
		estimateCmd,
		revalidateCmd,
		reviewCmd,
		historyCmd,
		mcpCmd,
		schemaCmd,
		configCmd,
		versionCmd,
	)
}

// setupLogging applies the config, letting explicit flags win.
func setupLogging(cmd *cobra.Command, cfg *config.Config) {
	level, json := cfg.Log.Level, cfg.Log.JSON
	if cmd.Flags().Changed("log-level") {
		level = logLevel
	}
	if cmd.Flags().Changed("log-json") {
		json = logJSON
	}
	log.Configure(json)
	log.SetLogLevel(log.ParseLevel(level))
}

// watchConfig hot-reloads the log level for long-running commands.
func watchConfig(cmd *cobra.Command) {
	cfgManager.OnChange(func(c *config.Config) {
		if !cmd.Flags().Changed("log-level") {
			log.SetLogLevel(log.ParseLevel(c.Log.Level))
		}
	})
	cfgManager.WatchConfig()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), errors.Wrap(err, "read stdin")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "read input %s", path)
	}
	return string(data), nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		log.Error("%v", err)
	}
	log.Sync()
	if err != nil {
		os.Exit(1)
	}
}
