package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-recompose/internal/cache"
	"github.com/inodb/vibe-recompose/internal/duckdb"
	"github.com/inodb/vibe-recompose/internal/output"
	"github.com/inodb/vibe-recompose/internal/recompose"
	"github.com/inodb/vibe-recompose/internal/vcf"
)

// storeBatchSize is the number of output records collected before they are
// appended to the run store.
const storeBatchSize = 1000

type recomposeOptions struct {
	Reference         string
	Transcripts       string
	Output            string
	Format            string
	Store             string
	IncludeRecomposed bool
	Progress          bool
}

func newRecomposeCmd() *cobra.Command {
	var excludeRecomposed, progress bool

	cmd := &cobra.Command{
		Use:   "recompose [flags] <input.vcf[.gz]|->",
		Short: "Merge phased SNVs into multi-nucleotide variant records",
		Long: `Read a coordinate-sorted VCF and write it back with recomposed records
for phased SNVs that share a haplotype within a codon of an annotated
transcript. Original records whose calls are fully represented by a
recomposed record are replaced by it. With --exclude-recomposed the
original records are written unchanged.`,
		Example: `  vibe-recompose recompose --reference GRCh38.fa --transcripts gencode.gtf.gz input.vcf.gz
  vibe-recompose recompose -f tab -o report.tsv input.vcf
  cat input.vcf | vibe-recompose recompose --store runs.duckdb -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd, map[string]string{
				"reference":     "reference",
				"transcripts":   "transcripts",
				"store":         "store",
				"output.format": "output-format",
			}); err != nil {
				return err
			}

			opts := recomposeOptions{
				Reference:         viper.GetString("reference"),
				Transcripts:       viper.GetString("transcripts"),
				Output:            cmd.Flag("output").Value.String(),
				Format:            viper.GetString("output.format"),
				Store:             viper.GetString("store"),
				IncludeRecomposed: viper.GetBool("output.include_recomposed") && !excludeRecomposed,
				Progress:          progress,
			}
			if err := opts.validate(); err != nil {
				return err
			}

			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			_, err = runRecompose(args[0], opts, logger)
			return err
		},
	}

	cmd.Flags().String("reference", "", "Reference FASTA (plain with optional .fai, or gzipped)")
	cmd.Flags().String("transcripts", "", "Transcript source: GENCODE GTF or DuckDB from 'vibe-recompose index'")
	cmd.Flags().StringP("output", "o", "-", "Output file (default: stdout, .gz for BGZF)")
	cmd.Flags().StringP("output-format", "f", "vcf", "Output format: vcf, tab, arrow")
	cmd.Flags().String("store", "", "DuckDB run store for recomposed records (optional)")
	cmd.Flags().BoolVar(&excludeRecomposed, "exclude-recomposed", false, "Write only original records")
	cmd.Flags().BoolVar(&progress, "progress", false, "Show a progress bar over the input file")

	return cmd
}

func (o recomposeOptions) validate() error {
	if o.Reference == "" {
		return &usageError{
			err:  errors.New("no reference FASTA given"),
			hint: "Use --reference or: vibe-recompose config set reference <path>",
		}
	}
	if o.Transcripts == "" {
		return &usageError{
			err:  errors.New("no transcript source given"),
			hint: "Use --transcripts or: vibe-recompose config set transcripts <path>",
		}
	}
	switch o.Format {
	case output.FormatVCF, output.FormatTab, output.FormatArrow:
	default:
		return &usageError{
			err:  fmt.Errorf("unknown output format %q", o.Format),
			hint: "Use --output-format vcf, tab or arrow",
		}
	}
	return nil
}

// runRecompose streams inputPath through the processor into the selected
// writer and, when configured, the run store.
func runRecompose(inputPath string, opts recomposeOptions, logger *zap.Logger) (stats recompose.Stats, err error) {
	parser, closeInput, err := openInput(inputPath, opts.Progress)
	if err != nil {
		return stats, err
	}
	defer closeInput()

	c, err := cache.Load(opts.Transcripts)
	if err != nil {
		return stats, withHint(err, "Build a transcript store with: vibe-recompose index --gtf <gtf> --output <db>")
	}
	logger.Info("loaded transcripts",
		zap.String("path", opts.Transcripts),
		zap.Int("count", c.TranscriptCount()))

	ref, err := cache.OpenReference(opts.Reference)
	if err != nil {
		return stats, fmt.Errorf("open reference: %w", err)
	}
	defer ref.Close()

	proc := recompose.NewProcessor(ref, c, c)
	proc.SetLogger(logger)
	proc.SetKeepOriginals(!opts.IncludeRecomposed)

	writer, err := output.Create(opts.Output, opts.Format, parser.Header())
	if err != nil {
		return stats, err
	}
	defer func() {
		if cerr := writer.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()
	writer.SetIncludeRecomposed(opts.IncludeRecomposed)
	if err := writer.WriteHeader(); err != nil {
		return stats, fmt.Errorf("write header: %w", err)
	}

	sink := &recordSink{writer: writer}
	if opts.Store != "" {
		store, runID, err := startRun(opts, inputPath)
		if err != nil {
			return stats, err
		}
		defer store.Close()
		sink.store, sink.runID = store, runID
	}

	if err := drain(parser, proc, sink); err != nil {
		if sink.store != nil {
			if cerr := sink.store.ClearRun(sink.runID); cerr != nil {
				logger.Warn("could not clear incomplete run", zap.Int64("run_id", sink.runID), zap.Error(cerr))
			}
		}
		return stats, fmt.Errorf("recomposing %s: %w", inputPath, err)
	}

	stats = proc.Stats()
	logger.Info("recomposition finished",
		zap.Int("positions", stats.Positions),
		zap.Int("windows", stats.Windows),
		zap.Int("recomposable_windows", stats.RecomposableWindows),
		zap.Int("recomposed", stats.Recomposed),
		zap.Int("subsumed", stats.Subsumed),
		zap.Int("skipped_candidates", stats.SkippedCandidates))

	if sink.store != nil {
		if err := sink.store.FinishRun(sink.runID, stats); err != nil {
			return stats, err
		}
		logger.Info("stored run", zap.String("store", opts.Store), zap.Int64("run_id", sink.runID))
	}
	return stats, nil
}

// drain feeds every position of reader through proc into sink.
func drain(reader vcf.PositionReader, proc *recompose.Processor, sink *recordSink) error {
	for {
		pos, err := reader.Next()
		if err != nil {
			return err
		}
		if pos == nil {
			break
		}

		records, err := proc.ProcessPosition(pos)
		if err != nil {
			return fmt.Errorf("line %d: %w", reader.LineNumber(), err)
		}
		if err := sink.write(records); err != nil {
			return err
		}
	}

	records, err := proc.Flush()
	if err != nil {
		return err
	}
	if err := sink.write(records); err != nil {
		return err
	}
	return sink.flush()
}

// openInput opens the VCF, optionally behind a progress bar over file bytes.
func openInput(path string, progress bool) (*vcf.Parser, func(), error) {
	if path == "-" || !progress {
		p, err := vcf.NewParser(path)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { p.Close() }, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open vcf file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	bar := pb.Full.Start64(info.Size())
	bar.Set(pb.Bytes, true)

	p, err := vcf.NewParserFromReader(bar.NewProxyReader(f))
	if err != nil {
		bar.Finish()
		f.Close()
		return nil, nil, err
	}
	return p, func() {
		p.Close()
		bar.Finish()
		f.Close()
	}, nil
}

func startRun(opts recomposeOptions, inputPath string) (*duckdb.Store, int64, error) {
	store, err := duckdb.Open(opts.Store)
	if err != nil {
		return nil, 0, fmt.Errorf("open run store: %w", err)
	}

	input := duckdb.FileFingerprint{Path: inputPath}
	if inputPath != "-" {
		if input, err = duckdb.StatFile(inputPath); err != nil {
			store.Close()
			return nil, 0, err
		}
	}

	runID, err := store.StartRun(input, opts.Reference, opts.Transcripts)
	if err != nil {
		store.Close()
		return nil, 0, err
	}
	return store, runID, nil
}

// recordSink writes processor output and batches recomposed records for the
// run store.
type recordSink struct {
	writer  output.RecordWriter
	store   *duckdb.Store
	runID   int64
	pending []*vcf.Position
}

func (s *recordSink) write(records []*vcf.Position) error {
	for _, r := range records {
		if err := s.writer.Write(r); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		if s.store != nil && r.IsRecomposed() {
			s.pending = append(s.pending, r)
		}
	}
	if len(s.pending) >= storeBatchSize {
		return s.flush()
	}
	return nil
}

func (s *recordSink) flush() error {
	if s.store == nil || len(s.pending) == 0 {
		return nil
	}
	if err := s.store.WriteRecomposed(s.runID, s.pending); err != nil {
		return err
	}
	s.pending = s.pending[:0]
	return nil
}
