package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/kingsdigitallab/refida/internal/adapters/driven/storage/sqlite/migrations"
)

// VectorRecord is one persisted vector store entry.
type VectorRecord struct {
	ID     string
	DocID  string
	Text   string
	Vector []float32
}

// VectorFileMeta describes a persisted vector store.
type VectorFileMeta struct {
	Dimensions    int
	Model         string
	BuildID       string
	BuiltAt       string
	SchemaVersion int
}

// WriteVectorFile replaces the vector file at path with records. Records are
// read back in the order given.
func WriteVectorFile(ctx context.Context, path string, meta VectorFileMeta, records []VectorRecord) error {
	values := buildMeta(ctx)
	if meta.BuildID != "" {
		values[metaBuildID] = meta.BuildID
	}
	values[metaDimensions] = strconv.Itoa(meta.Dimensions)
	values[metaModel] = meta.Model
	values[metaRows] = strconv.Itoa(len(records))

	return buildFile(ctx, path, migrations.Vectors, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO vectors (seq, id, doc_id, text, embedding) VALUES (?, ?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for i, r := range records {
			if len(r.Vector) != meta.Dimensions {
				return fmt.Errorf("vector %s has %d dimensions, want %d", r.ID, len(r.Vector), meta.Dimensions)
			}
			if _, err := stmt.ExecContext(ctx, i, r.ID, r.DocID, r.Text, float32SliceToBytes(r.Vector)); err != nil {
				return fmt.Errorf("inserting %s: %w", r.ID, err)
			}
		}
		return writeMeta(ctx, tx, values)
	})
}

// ReadVectorFile loads every record of the vector file at path.
// Returns domain.ErrIndexNotFound if the file does not exist.
func ReadVectorFile(ctx context.Context, path string) (VectorFileMeta, []VectorRecord, error) {
	var meta VectorFileMeta

	db, err := openExisting(path)
	if err != nil {
		return meta, nil, err
	}
	defer db.Close()

	values, err := readMeta(ctx, db)
	if err != nil {
		return meta, nil, fmt.Errorf("%s is not a vector index: %w", path, err)
	}
	meta.Dimensions, _ = strconv.Atoi(values[metaDimensions])
	meta.Model = values[metaModel]
	meta.BuildID = values[metaBuildID]
	meta.BuiltAt = values[metaBuiltAt]
	meta.SchemaVersion = schemaVersion(ctx, db)

	rows, err := db.QueryContext(ctx, "SELECT id, doc_id, text, embedding FROM vectors ORDER BY seq")
	if err != nil {
		return meta, nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var records []VectorRecord
	for rows.Next() {
		var (
			r   VectorRecord
			raw []byte
		)
		if err := rows.Scan(&r.ID, &r.DocID, &r.Text, &raw); err != nil {
			return meta, nil, fmt.Errorf("scanning vector: %w", err)
		}
		r.Vector = bytesToFloat32Slice(raw)
		if len(r.Vector) != meta.Dimensions {
			return meta, nil, fmt.Errorf("vector %s has %d dimensions, want %d", r.ID, len(r.Vector), meta.Dimensions)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return meta, nil, fmt.Errorf("reading vectors: %w", err)
	}
	return meta, records, nil
}
