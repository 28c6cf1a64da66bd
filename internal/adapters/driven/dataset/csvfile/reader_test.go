package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingsdigitallab/refida/internal/core/domain"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "etl.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReader_Read(t *testing.T) {
	path := writeCSV(t, "id,title,text\n"+
		"A,Cats,the cat sat on the mat\n"+
		"B,Dogs,\"dogs are loyal, and \"\"good\"\" companions\"\n"+
		"C,Multi,\"line one\nline two\"\n")

	ds, err := New(path).Read(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "title", "text"}, ds.Columns)
	require.Equal(t, 3, ds.Len())
	assert.Equal(t, "A", ds.Rows[0].ID)
	assert.Equal(t, "the cat sat on the mat", ds.Rows[0].Text("text"))
	assert.Equal(t, `dogs are loyal, and "good" companions`, ds.Rows[1].Text("text"))
	assert.Equal(t, "line one\nline two", ds.Rows[2].Text("text"))
	assert.Equal(t, "Cats", ds.Rows[0].Text("title"))
	assert.True(t, ds.HasColumn("text"))
}

func TestReader_Missing(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "etl.csv")).Read(context.Background())
	assert.ErrorIs(t, err, domain.ErrDatasetNotFound)
}

func TestReader_NoIDColumn(t *testing.T) {
	_, err := New(writeCSV(t, "name,text\nA,x\n")).Read(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReader_Empty(t *testing.T) {
	ds, err := New(writeCSV(t, "")).Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Len())

	ds, err = New(writeCSV(t, "id,text\n")).Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Len())
	assert.True(t, ds.HasColumn("text"))
}

func TestReader_BOMAndShortRows(t *testing.T) {
	ds, err := New(writeCSV(t, "\ufeffid, text ,extra\nA,hello\n")).Read(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "text", "extra"}, ds.Columns)
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, "hello", ds.Rows[0].Text("text"))
	assert.Equal(t, "", ds.Rows[0].Text("extra"))
}

func TestReader_SkipsRowsWithoutID(t *testing.T) {
	ds, err := New(writeCSV(t, "id,text\n,orphan\nA,kept\n")).Read(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, ds.Len())
	assert.Equal(t, "A", ds.Rows[0].ID)
}

func TestReader_DuplicateIDReplaces(t *testing.T) {
	ds, err := New(writeCSV(t, "id,text\nA,first\nB,other\nA,second\n")).Read(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, ds.Len())
	assert.Equal(t, "A", ds.Rows[0].ID)
	assert.Equal(t, "second", ds.Rows[0].Text("text"))
	assert.Equal(t, "B", ds.Rows[1].ID)
}

func TestReader_Malformed(t *testing.T) {
	_, err := New(writeCSV(t, "id,text\nA,\"unterminated\n")).Read(context.Background())
	assert.Error(t, err)
}

func TestReader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := parse(ctx, strings.NewReader("id,text\nA,x\n"), "test")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewDefault(t *testing.T) {
	r := NewDefault("/data")
	assert.Equal(t, filepath.Join("/data", "1_interim", "etl.csv"), r.Path())
}
