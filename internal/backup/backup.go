// Package backup exports the database to a gzipped JSON archive and restores
// it.
//
// An archive is one gzip-compressed JSON object:
//
//	{"tables": {"users": [...], ...}, "manifest": {...}}
//
// Rows are raw column maps, so columns hidden from the API (password hashes,
// OAuth tokens) survive a round trip. Each table's JSON is checksummed in the
// manifest.
package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/clickstudio/click/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// FormatVersion is bumped when the archive layout changes.
const FormatVersion = 1

const batchSize = 500

// Manifest describes an archive.
type Manifest struct {
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	Driver    string            `json:"driver"`
	Tables    map[string]int    `json:"tables"`
	Checksums map[string]string `json:"checksums"`
}

// Total returns the number of rows across all tables.
func (m Manifest) Total() int {
	n := 0
	for _, c := range m.Tables {
		n += c
	}
	return n
}

type archive struct {
	Tables   map[string]json.RawMessage `json:"tables"`
	Manifest *Manifest                  `json:"manifest"`
}

type table struct {
	model  interface{}
	schema *schema.Schema
}

func tables(gdb *gorm.DB) ([]table, error) {
	var out []table
	for _, m := range db.AllModels() {
		stmt := &gorm.Statement{DB: gdb}
		if err := stmt.Parse(m); err != nil {
			return nil, fmt.Errorf("backup: parse %T: %w", m, err)
		}
		out = append(out, table{model: m, schema: stmt.Schema})
	}
	return out, nil
}

// Create writes an archive of every table to w.
func Create(ctx context.Context, gdb *gorm.DB, w io.Writer) (*Manifest, error) {
	tbls, err := tables(gdb)
	if err != nil {
		return nil, err
	}
	m := &Manifest{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		Driver:    gdb.Dialector.Name(),
		Tables:    make(map[string]int),
		Checksums: make(map[string]string),
	}

	zw := gzip.NewWriter(w)
	if _, err := io.WriteString(zw, `{"tables":{`); err != nil {
		return nil, fmt.Errorf("backup: write: %w", err)
	}
	for i, t := range tbls {
		data, count, err := dumpTable(ctx, gdb, t)
		if err != nil {
			return nil, err
		}
		sum := sha256.Sum256(data)
		m.Tables[t.schema.Table] = count
		m.Checksums[t.schema.Table] = hex.EncodeToString(sum[:])

		name, _ := json.Marshal(t.schema.Table)
		if i > 0 {
			zw.Write([]byte{','})
		}
		zw.Write(name)
		zw.Write([]byte{':'})
		if _, err := zw.Write(data); err != nil {
			return nil, fmt.Errorf("backup: write %s: %w", t.schema.Table, err)
		}
	}
	manifest, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("backup: encode manifest: %w", err)
	}
	if _, err := fmt.Fprintf(zw, `},"manifest":%s}`, manifest); err != nil {
		return nil, fmt.Errorf("backup: write manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("backup: finish gzip: %w", err)
	}
	return m, nil
}

// dumpTable encodes all rows of t as a JSON array, paging by primary key.
func dumpTable(ctx context.Context, gdb *gorm.DB, t table) ([]byte, int, error) {
	order := strings.Join(t.schema.PrimaryFieldDBNames, ", ")
	if order == "" {
		return nil, 0, fmt.Errorf("backup: table %s has no primary key", t.schema.Table)
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	count := 0
	for offset := 0; ; offset += batchSize {
		var rows []map[string]interface{}
		err := gdb.WithContext(ctx).Model(t.model).
			Order(order).Limit(batchSize).Offset(offset).
			Find(&rows).Error
		if err != nil {
			return nil, 0, fmt.Errorf("backup: read %s: %w", t.schema.Table, err)
		}
		for _, row := range rows {
			b, err := json.Marshal(row)
			if err != nil {
				return nil, 0, fmt.Errorf("backup: encode %s row: %w", t.schema.Table, err)
			}
			if count > 0 {
				buf.WriteByte(',')
			}
			buf.Write(b)
			count++
		}
		if len(rows) < batchSize {
			break
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), count, nil
}

// ErrChecksum is returned when a table's data does not match the manifest.
var ErrChecksum = errors.New("backup: checksum mismatch")

// Read decodes and verifies an archive without touching the database.
func Read(r io.Reader) (*Manifest, map[string]json.RawMessage, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("backup: open gzip: %w", err)
	}
	defer zr.Close()

	var a archive
	if err := json.NewDecoder(zr).Decode(&a); err != nil {
		return nil, nil, fmt.Errorf("backup: decode archive: %w", err)
	}
	if a.Manifest == nil {
		return nil, nil, errors.New("backup: archive has no manifest")
	}
	if a.Manifest.Version != FormatVersion {
		return nil, nil, fmt.Errorf("backup: unsupported archive version %d", a.Manifest.Version)
	}
	for name, data := range a.Tables {
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != a.Manifest.Checksums[name] {
			return nil, nil, fmt.Errorf("%w: table %s", ErrChecksum, name)
		}
	}
	return a.Manifest, a.Tables, nil
}

// Restore replaces the contents of every table with the archive's rows in
// a single transaction. Tables missing from the archive are emptied.
func Restore(ctx context.Context, gdb *gorm.DB, r io.Reader) (*Manifest, error) {
	m, data, err := Read(r)
	if err != nil {
		return nil, err
	}
	tbls, err := tables(gdb)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(tbls))
	for _, t := range tbls {
		known[t.schema.Table] = true
	}
	for name := range data {
		if !known[name] {
			return nil, fmt.Errorf("backup: archive has unknown table %q", name)
		}
	}

	err = gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := len(tbls) - 1; i >= 0; i-- {
			t := tbls[i]
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
				Delete(t.model).Error; err != nil {
				return fmt.Errorf("backup: clear %s: %w", t.schema.Table, err)
			}
		}
		for _, t := range tbls {
			raw, ok := data[t.schema.Table]
			if !ok {
				continue
			}
			rows, err := decodeRows(raw, t.schema)
			if err != nil {
				return fmt.Errorf("backup: decode %s: %w", t.schema.Table, err)
			}
			if len(rows) == 0 {
				continue
			}
			if err := tx.Table(t.schema.Table).CreateInBatches(rows, 100).Error; err != nil {
				return fmt.Errorf("backup: insert %s: %w", t.schema.Table, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
