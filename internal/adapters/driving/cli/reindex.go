package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/logger"
)

var (
	reindexColumn     string
	reindexDataset    string
	reindexWatch      bool
	reindexDirectDocs bool
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search indexes",
	Long: `Rebuilds the sentence, document and lexical indexes from the dataset.

Each index is written to a temporary file and swapped in when complete, so
searches running during a rebuild keep using the previous index.

By default document vectors are the mean of their sentence vectors; use
--direct-docs to embed each document as a whole instead.

With --watch the indexes are rebuilt whenever the dataset file changes.`,
	Args: cobra.NoArgs,
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().StringVarP(&reindexColumn, "column", "c", "", "dataset column to index (default search.column)")
	reindexCmd.Flags().StringVar(&reindexDataset, "dataset", "", "dataset CSV (default <data-dir>/1_interim/etl.csv)")
	reindexCmd.Flags().BoolVarP(&reindexWatch, "watch", "w", false, "rebuild when the dataset changes")
	reindexCmd.Flags().BoolVar(&reindexDirectDocs, "direct-docs", false, "embed whole documents instead of averaging sentences")
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(cmd, Options{Dataset: reindexDataset, DirectDocs: reindexDirectDocs}); err != nil {
		return err
	}
	if reindexService == nil {
		return errors.New("reindex service not configured")
	}

	ctx := cmd.Context()
	if err := reindexOnce(ctx, cmd); err != nil {
		if !reindexWatch {
			return err
		}
		cmd.PrintErrf("Reindex failed: %v\n", err)
	}
	if !reindexWatch {
		return nil
	}
	return watchDataset(ctx, cmd)
}

func reindexOnce(ctx context.Context, cmd *cobra.Command) error {
	progress := newProgressPrinter(cmd.OutOrStdout())

	report, err := reindexService.Reindex(ctx, reindexColumn, progress.report)
	progress.finish()
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDatasetNotFound):
			return fmt.Errorf("dataset not found: %w. Run the extraction pipeline first or pass --dataset", err)
		case errors.Is(err, domain.ErrReindexInProgress):
			return errors.New("a reindex is already running")
		default:
			return fmt.Errorf("reindex failed: %w", err)
		}
	}

	printReport(cmd, report)
	return nil
}

func printReport(cmd *cobra.Command, report *domain.ReindexReport) {
	cmd.Printf("Indexed %d rows (build %s)\n", report.Rows, report.BuildID)
	for _, s := range report.Stats {
		line := fmt.Sprintf("  %-15s %d indexed", s.Kind, s.Indexed)
		if s.Sentences > 0 {
			line += fmt.Sprintf(", %d sentences", s.Sentences)
		}
		line += fmt.Sprintf(", %d skipped", s.Skipped)
		if len(s.Failed) > 0 {
			line += fmt.Sprintf(", %d failed", len(s.Failed))
		}
		line += fmt.Sprintf(" (%s)", s.Duration.Round(time.Millisecond))
		cmd.Println(line)
		for _, id := range s.Failed {
			logger.Warn("%s: skipped %s after embedding failure", s.Kind, id)
		}
	}
}

func watchDataset(ctx context.Context, cmd *cobra.Command) error {
	if newWatcher == nil {
		return errors.New("watching is not available")
	}
	w, err := newWatcher(datasetPath)
	if err != nil {
		return err
	}
	defer w.Close()

	cmd.Printf("Watching %s for changes (Ctrl+C to stop)\n", w.Path())
	err = w.Run(ctx, func(ctx context.Context) {
		cmd.Printf("%s changed, reindexing\n", w.Path())
		if err := reindexOnce(ctx, cmd); err != nil {
			cmd.PrintErrf("Reindex failed: %v\n", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// progressPrinter renders reindex progress on a terminal. On any other
// writer it prints nothing.
type progressPrinter struct {
	w      io.Writer
	tty    bool
	active bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	p := &progressPrinter{w: w}
	if f, ok := w.(*os.File); ok {
		p.tty = term.IsTerminal(int(f.Fd()))
	}
	return p
}

func (p *progressPrinter) report(pr domain.Progress) {
	if !p.tty {
		return
	}
	fmt.Fprintf(p.w, "\r  %-15s %d/%d", pr.Kind, pr.Done, pr.Total)
	p.active = true
	if pr.Done >= pr.Total {
		fmt.Fprintln(p.w)
		p.active = false
	}
}

func (p *progressPrinter) finish() {
	if p.active {
		fmt.Fprintln(p.w)
		p.active = false
	}
}
