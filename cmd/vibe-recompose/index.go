package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-recompose/internal/cache"
)

func newIndexCmd() *cobra.Command {
	var gtfPath, outPath string

	cmd := &cobra.Command{
		Use:   "index --gtf <gtf> --output <transcripts.duckdb>",
		Short: "Build a DuckDB transcript store from a GENCODE GTF",
		Example: `  vibe-recompose index --gtf gencode.v46.annotation.gtf.gz --output gencode.duckdb
  vibe-recompose config set transcripts gencode.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if gtfPath == "" || outPath == "" {
				return &usageError{err: errors.New("--gtf and --output are required")}
			}
			return runIndex(cmd.OutOrStdout(), gtfPath, outPath)
		},
	}

	cmd.Flags().StringVar(&gtfPath, "gtf", "", "GENCODE GTF annotation (plain or gzipped)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "DuckDB database to create")

	return cmd
}

// runIndex loads gtfPath and writes its transcripts to a fresh DuckDB store.
func runIndex(w io.Writer, gtfPath, outPath string) error {
	c := cache.New()
	if err := cache.NewGTFLoader(gtfPath).Load(c); err != nil {
		return fmt.Errorf("loading GTF: %w", err)
	}

	if _, err := os.Stat(outPath); err == nil {
		return withHint(fmt.Errorf("%s already exists", outPath), "Remove it or choose another --output path")
	}

	loader, err := cache.NewDuckDBLoader(outPath)
	if err != nil {
		return err
	}
	defer loader.Close()

	if err := loader.CreateSchema(); err != nil {
		return err
	}
	n, err := loader.InsertCache(c)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Indexed %d transcripts from %s into %s\n", n, gtfPath, outPath)
	return nil
}
