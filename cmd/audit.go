/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit store and translation memory",
	Long: `List runs and results, show the per-attempt audit trail of a result,
and manage the SQLite translation memory.`,
}

var auditRunsLimit int

var auditRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List translate runs, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), auditRunsLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tPAIR\tMODEL\tSYNSETS\tDEGRADED\tINPUT")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s→%s\t%s\t%d\t%d\t%s\n",
				r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Status, r.SourceLang, r.TargetLang,
				r.Model, r.Synsets, r.Degraded, r.InputFile)
		}
		return w.Flush()
	},
}

var auditListRun string

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored results",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		results, err := db.ListResults(context.Background(), auditListRun)
		if err != nil {
			return fmt.Errorf("failed to list results: %w", err)
		}
		if len(results) == 0 {
			fmt.Println("No results stored.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tRUN\tSYNSET\tREPRESENTATIVE\tSYNONYMS\tREVIEW\tDEGRADED")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%v\n",
				r.ID, r.RunID, r.SynsetID, r.Representative, r.Synonyms, r.ReviewStatus, r.Degraded)
		}
		return w.Flush()
	},
}

var auditShowRaw bool

var auditShowCmd = &cobra.Command{
	Use:   "show <result-id>",
	Short: "Show a result with its stage records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		res, err := db.GetResult(context.Background(), args[0])
		if err != nil {
			return err
		}

		fmt.Println(res.CuratorSummary)
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tSTAGE\tITER\tATTEMPT\tTIER\tVALID\tUSEFUL\tDEGRADED\tERRORS")
		for i, rec := range res.Records {
			v := rec.Validation
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\t%v\t%v\t%v\t%s\n",
				i+1, rec.Stage, rec.Iteration, rec.Attempt, orDash(string(v.DecodeTier)),
				v.Valid, v.Useful, v.Degraded, orDash(strings.Join(v.Errors, "; ")))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if auditShowRaw {
			for i, rec := range res.Records {
				fmt.Printf("\n--- #%d %s (attempt %d) ---\n", i+1, rec.Stage, rec.Attempt)
				fmt.Printf("[prompt]\n%s\n[response]\n%s\n", rec.Prompt, rec.RawResponse)
			}
		}
		return nil
	},
}

var auditStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show audit store and translation memory statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Printf("Runs:             %d\n", stats.Runs)
		fmt.Printf("Results:          %d (%d degraded)\n", stats.Results, stats.DegradedResults)
		fmt.Printf("Stage records:    %d (%d degraded)\n", stats.StageRecords, stats.DegradedStages)
		fmt.Printf("Memory entries:   %d\n", stats.MemoryEntries)
		fmt.Printf("Active entries:   %d\n", stats.ActiveEntries)
		fmt.Printf("Invalid entries:  %d\n", stats.InvalidEntries)
		fmt.Printf("Memory usage:     %d\n", stats.MemoryUsage)
		return nil
	},
}

var auditMemoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "List translation memory entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := db.ListMemory(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No entries in translation memory.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSYNSET\tSOURCE\tTARGET\tMODEL\tUSED\tLAST USED\tINVALID\tREPRESENTATIVE")
		for _, e := range entries {
			key := e.SynsetKey
			if len(key) > 40 {
				key = key[:37] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%v\t%s\n",
				e.ID, key, e.SourceLang, e.TargetLang, e.Model,
				e.UsageCount, e.LastUsed.Format("2006-01-02 15:04"),
				e.Invalidated, e.Representative)
		}
		return w.Flush()
	},
}

var auditInvalidateCmd = &cobra.Command{
	Use:   "invalidate <id>",
	Short: "Mark a translation memory entry as invalid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.InvalidateMemory(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to invalidate entry: %w", err)
		}
		fmt.Printf("Invalidated entry: %s\n", args[0])
		return nil
	},
}

var auditDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a translation memory entry by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteMemory(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
		fmt.Printf("Deleted entry: %s\n", args[0])
		return nil
	},
}

var auditClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all entries from translation memory",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.ClearMemory(context.Background())
		if err != nil {
			return fmt.Errorf("failed to clear memory: %w", err)
		}
		fmt.Printf("Cleared %d entries from translation memory.\n", n)
		return nil
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditRunsCmd.Flags().IntVar(&auditRunsLimit, "limit", 20, "Number of runs to show (0 = all)")
	auditListCmd.Flags().StringVar(&auditListRun, "run", "", "Only list results of this run")
	auditShowCmd.Flags().BoolVar(&auditShowRaw, "raw", false, "Print every prompt and raw response")

	auditCmd.AddCommand(auditRunsCmd)
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditShowCmd)
	auditCmd.AddCommand(auditStatsCmd)
	auditCmd.AddCommand(auditMemoryCmd)
	auditCmd.AddCommand(auditInvalidateCmd)
	auditCmd.AddCommand(auditDeleteCmd)
	auditCmd.AddCommand(auditClearCmd)
}
