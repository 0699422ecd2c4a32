package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-recompose/internal/duckdb"
	"github.com/inodb/vibe-recompose/internal/output"
	"github.com/inodb/vibe-recompose/internal/vcf"
)

var errNoStore = &usageError{
	err:  errors.New("no run store given"),
	hint: "Use --store or: vibe-recompose config set store <path>",
}

func newQueryCmd() *cobra.Command {
	var runID int64

	cmd := &cobra.Command{
		Use:   "query --store <db> <chrom:start-end>",
		Short: "List stored recomposed records in a region",
		Example: `  vibe-recompose query --store runs.duckdb chr12:25245270-25245400
  vibe-recompose query --store runs.duckdb --run 3 chr7:140753336`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd, map[string]string{"store": "store"}); err != nil {
				return err
			}
			storePath := viper.GetString("store")
			if storePath == "" {
				return errNoStore
			}
			chrom, start, end, err := parseRegion(args[0])
			if err != nil {
				return &usageError{err: err, hint: "Regions look like chr1:1000-2000 or chr1:1000"}
			}

			store, err := duckdb.Open(storePath)
			if err != nil {
				return err
			}
			defer store.Close()

			return runQuery(cmd.OutOrStdout(), store, runID, chrom, start, end)
		},
	}

	cmd.Flags().String("store", "", "DuckDB run store")
	cmd.Flags().Int64Var(&runID, "run", 0, "Restrict to one run (default: all runs)")

	return cmd
}

// runQuery writes the stored records of the region as a tab report.
func runQuery(w io.Writer, store *duckdb.Store, runID int64, chrom string, start, end int64) error {
	variants, err := store.RecomposedInRegion(runID, chrom, start, end)
	if err != nil {
		return err
	}

	tw := output.NewTabWriter(w)
	if err := tw.WriteHeader(); err != nil {
		return err
	}
	for _, v := range variants {
		p, err := vcf.NewRecomposedPosition(v.Fields())
		if err != nil {
			return fmt.Errorf("stored record %s:%d: %w", v.Chrom, v.Pos, err)
		}
		if err := tw.Write(p); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// parseRegion parses chrom:start-end or chrom:pos (1-based, inclusive).
func parseRegion(region string) (string, int64, int64, error) {
	chrom, span, ok := strings.Cut(region, ":")
	if !ok || chrom == "" || span == "" {
		return "", 0, 0, fmt.Errorf("invalid region %q", region)
	}

	startStr, endStr, hasEnd := strings.Cut(strings.ReplaceAll(span, ",", ""), "-")
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 1 {
		return "", 0, 0, fmt.Errorf("invalid region start in %q", region)
	}
	end := start
	if hasEnd {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return "", 0, 0, fmt.Errorf("invalid region end in %q", region)
		}
	}
	return chrom, start, end, nil
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs --store <db>",
		Short: "List recomposition runs recorded in a run store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd, map[string]string{"store": "store"}); err != nil {
				return err
			}
			storePath := viper.GetString("store")
			if storePath == "" {
				return errNoStore
			}

			store, err := duckdb.Open(storePath)
			if err != nil {
				return err
			}
			defer store.Close()

			return runRuns(cmd.OutOrStdout(), store)
		},
	}

	cmd.Flags().String("store", "", "DuckDB run store")
	return cmd
}

func runRuns(w io.Writer, store *duckdb.Store) error {
	runs, err := store.Runs()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tINPUT\tSTARTED\tSTATUS\tPOSITIONS\tRECOMPOSED\tSUBSUMED\tSKIPPED")
	for _, r := range runs {
		status := "running"
		if !r.FinishedAt.IsZero() {
			status = "done"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.Input.Path, r.StartedAt.Format("2006-01-02 15:04:05"), status,
			r.Stats.Positions, r.Stats.Recomposed, r.Stats.Subsumed, r.Stats.SkippedCandidates)
	}
	return tw.Flush()
}
