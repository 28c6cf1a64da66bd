package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
)

func TestReindexCmd_Use(t *testing.T) {
	assert.Equal(t, "reindex", reindexCmd.Use)
}

func TestReindexCmd_Flags(t *testing.T) {
	for _, name := range []string{"column", "dataset", "watch", "direct-docs"} {
		assert.NotNil(t, reindexCmd.Flags().Lookup(name), name)
	}
}

func TestReindexCmd_PrintsReport(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mock := reindexService.(*mockReindexService)
	mock.report = &domain.ReindexReport{
		BuildID: "build-42",
		Rows:    3,
		Stats: []domain.ReindexStats{
			{Kind: domain.IndexKindSentences, Indexed: 3, Sentences: 12, Skipped: 1, Duration: 1500 * time.Millisecond},
			{Kind: domain.IndexKindDocuments, Indexed: 2, Failed: []string{"doc-3"}},
			{Kind: domain.IndexKindLexical, Indexed: 3},
		},
	}

	out, err := execute(t, "reindex", "--column", "summary")

	require.NoError(t, err)
	assert.Equal(t, "summary", mock.column)
	assert.Contains(t, out, "Indexed 3 rows (build build-42)")
	assert.Contains(t, out, "semindex_sents")
	assert.Contains(t, out, "12 sentences")
	assert.Contains(t, out, "1 failed")
	assert.Contains(t, out, "1.5s")
}

func TestReindexCmd_ProgressHiddenWithoutTerminal(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mock := reindexService.(*mockReindexService)
	mock.progress = []domain.Progress{{Kind: domain.IndexKindLexical, Done: 1, Total: 2}}

	out, err := execute(t, "reindex")

	require.NoError(t, err)
	assert.NotContains(t, out, "1/2")
}

func TestReindexCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"missing dataset", fmt.Errorf("reading dataset: %w", domain.ErrDatasetNotFound), "--dataset"},
		{"already running", domain.ErrReindexInProgress, "already running"},
		{"other", errors.New("disk full"), "reindex failed: disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := setupTestServices()
			defer cleanup()
			reindexService.(*mockReindexService).err = tt.err

			_, err := execute(t, "reindex")

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// fakeWatcher fires onChange a fixed number of times, then waits for ctx.
type fakeWatcher struct {
	changes int
	cancel  context.CancelFunc
	closed  bool
}

func (w *fakeWatcher) Run(ctx context.Context, onChange func(ctx context.Context)) error {
	for i := 0; i < w.changes; i++ {
		onChange(ctx)
	}
	w.cancel()
	<-ctx.Done()
	return ctx.Err()
}

func (w *fakeWatcher) Path() string { return "data/1_interim/etl.csv" }

func (w *fakeWatcher) Close() error {
	w.closed = true
	return nil
}

func TestReindexCmd_Watch(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	t.Cleanup(resetFlags)
	mock := reindexService.(*mockReindexService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &fakeWatcher{changes: 2, cancel: cancel}
	datasetPath = "data/1_interim/etl.csv"
	newWatcher = func(path string) (driven.DatasetWatcher, error) {
		assert.Equal(t, "data/1_interim/etl.csv", path)
		return w, nil
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"reindex", "--watch"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(ctx)

	require.NoError(t, err)
	assert.Equal(t, 3, mock.calls)
	assert.True(t, w.closed)
	assert.Contains(t, buf.String(), "Watching data/1_interim/etl.csv")
	assert.Contains(t, buf.String(), "changed, reindexing")
}

func TestReindexCmd_WatchUnavailable(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	newWatcher = nil

	_, err := execute(t, "reindex", "--watch")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "watching is not available")
}

func TestProgressPrinter_Terminal(t *testing.T) {
	buf := new(bytes.Buffer)
	p := &progressPrinter{w: buf, tty: true}

	p.report(domain.Progress{Kind: domain.IndexKindSentences, Done: 1, Total: 2})
	p.report(domain.Progress{Kind: domain.IndexKindSentences, Done: 2, Total: 2})
	p.finish()

	assert.Contains(t, buf.String(), "\r  semindex_sents  1/2")
	assert.Contains(t, buf.String(), "2/2\n")
	assert.False(t, p.active)
}
