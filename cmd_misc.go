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
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cloudwego/abmigrate/internal/config"
	"github.com/cloudwego/abmigrate/lang/log"
	"github.com/cloudwego/abmigrate/llm/mcp"
	"github.com/cloudwego/abmigrate/llm/prompt"
	"github.com/cloudwego/abmigrate/version"
)

var mcpVerbose bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve segmentation, validation and cost estimation as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := cfgManager.Get()
		watchConfig(cmd)

		prompts, err := prompt.NewRegistry()
		if err != nil {
			return err
		}
		if dir := cfg.Pipeline.PromptsDir; dir != "" {
			if err := prompts.LoadDir(dir); err != nil {
				return errors.Wrapf(err, "load prompts from %s", dir)
			}
		}
		pricing, err := cfg.PricingTable()
		if err != nil {
			return err
		}
		svr, err := mcp.NewServer(mcp.ServerOptions{
			ServerName:    "abmigrate",
			ServerVersion: version.Version,
			Segment:       cfg.SegmentOptions(),
			Pricing:       pricing,
			Prompts:       prompts,
			Verbose:       mcpVerbose,
		})
		if err != nil {
			return err
		}
		return svr.ServeStdio(cmd.Context(), os.Stdin, os.Stdout)
	},
}

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	// config init must work without a loadable config.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.SetLogLevel(log.ParseLevel(logLevel))
		log.Configure(logJSON)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write the default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "abmigrate.yaml"
		if len(args) == 1 {
			path = args[0]
		} else if cfgFile != "" {
			path = cfgFile
		}
		if err := config.WriteDefault(path, configForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check PATH",
	Short: "Validate a configuration file against the config schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ValidateFile(args[0]); err != nil {
			return err
		}
		if _, err := config.NewManager(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", args[0])
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	mcpCmd.Flags().BoolVar(&mcpVerbose, "verbose", false, "keep the transport error log on stderr")

	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configCheckCmd)
}
