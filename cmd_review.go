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
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cloudwego/abmigrate/internal/artifacts"
	"github.com/cloudwego/abmigrate/internal/history"
	"github.com/cloudwego/abmigrate/lang/log"
	"github.com/cloudwego/abmigrate/lang/validate"
)

var historyLimit int

var reviewCmd = &cobra.Command{
	Use:   "review JOB_DIR",
	Short: "List the blocks of a job that are awaiting manual review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := artifacts.Locate(args[0])
		if err != nil {
			return err
		}
		entries, err := store.ReadManualReview()
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []artifacts.ManualReviewEntry{}
		}
		return printJSON(cmd.OutOrStdout(), entries)
	},
}

var revalidateCmd = &cobra.Command{
	Use:   "revalidate JOB_DIR BLOCK_ID FIXED_FILE",
	Short: "Validate a manual fix and release the block from manual review",
	Long: `Validate a manually fixed block. When the fix passes, the block is removed
from the manual-review list and its row in the block table is marked
successful. When it fails, the entry keeps the new code and the reason.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := artifacts.Locate(args[0])
		if err != nil {
			return err
		}
		code, err := readInput(args[2])
		if err != nil {
			return err
		}
		res, err := store.Revalidate(args[1], code, validate.For(store.Target))
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if !res.Validated {
			return errors.Errorf("block %s still fails: %s", args[1], res.Reason)
		}
		log.Info("block %s released from manual review", args[1])
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past jobs from the history store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn := cfgManager.Get().History.DSN
		if dsn == "" {
			return errors.New("history is disabled, set history.dsn")
		}
		store, err := history.Open(dsn)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tPAIR\tINPUT\tBLOCKS\tREVIEW\tCOST\tSTARTED\tDURATION")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s->%s\t%s\t%d\t%d\t$%.4f\t%s\t%s\n",
				e.ID, e.Status, e.Source, e.Target, e.Input, e.Blocks, e.ManualReview, e.CostUSD,
				e.Started.Local().Format(time.DateTime), e.Duration().Round(time.Second))
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of jobs to show, 0 for all")
}
