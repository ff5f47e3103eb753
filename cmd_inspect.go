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

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cloudwego/abmigrate/internal/config"
	"github.com/cloudwego/abmigrate/internal/report"
	"github.com/cloudwego/abmigrate/lang/dialect"
	"github.com/cloudwego/abmigrate/lang/segment"
	"github.com/cloudwego/abmigrate/lang/validate"
)

var (
	segmentSource  string
	segmentCeiling int
	validateTarget string
	estimateModel  string
	schemaKind     string
)

var segmentCmd = &cobra.Command{
	Use:   "segment FILE",
	Short: "Print the ordered blocks of a script as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := dialect.NewSource(segmentSource)
		if err != nil {
			return err
		}
		code, err := readInput(args[0])
		if err != nil {
			return err
		}
		opts := cfgManager.Get().SegmentOptions()
		if segmentCeiling > 0 {
			opts.MaxLines = segmentCeiling
		}
		return printJSON(cmd.OutOrStdout(), segment.New(src, opts).Segment(code))
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Validate converted code the way the pipeline does",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := dialect.NewTarget(validateTarget)
		if err != nil {
			return err
		}
		code, err := readInput(args[0])
		if err != nil {
			return err
		}
		res := validate.Validate(args[0], code, t)
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if !res.Validated {
			return errors.Errorf("%s: %s", args[0], res.Reason)
		}
		return nil
	},
}

var estimateCmd = &cobra.Command{
	Use:   "estimate FILE",
	Short: "Estimate the token use and cost of converting a script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := readInput(args[0])
		if err != nil {
			return err
		}
		pricing, err := cfgManager.Get().PricingTable()
		if err != nil {
			return err
		}
		model := estimateModel
		if model == "" {
			model = cfgManager.Get().LLM.ModelName
		}
		est, err := report.EstimateCost(code, model, pricing)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), est)
	},
}

var schemaCmd = &cobra.Command{
	Use:       "schema",
	Short:     "Print the JSON Schema of the job report or of the config file",
	Args:      cobra.NoArgs,
	ValidArgs: []string{"report", "config"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			out []byte
			err error
		)
		switch schemaKind {
		case "report":
			out, err = report.Schema()
		case "config":
			out = config.Schema()
		default:
			return errors.Errorf("unknown schema %q, want report or config", schemaKind)
		}
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return err
	},
}

func init() {
	segmentCmd.Flags().StringVarP(&segmentSource, "source", "s", "", "source dialect")
	segmentCmd.Flags().IntVar(&segmentCeiling, "max-lines", 0, "overflow line ceiling (overrides pipeline.block_ceiling)")
	_ = segmentCmd.MarkFlagRequired("source")

	validateCmd.Flags().StringVarP(&validateTarget, "target", "t", "", "target dialect")
	_ = validateCmd.MarkFlagRequired("target")

	estimateCmd.Flags().StringVarP(&estimateModel, "model", "m", "", "model to price (default llm.model_name)")

	schemaCmd.Flags().StringVar(&schemaKind, "kind", "report", "schema to print: report or config")
}
