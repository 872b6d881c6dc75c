package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/relionhq/queryengine/pkg/record"
	"github.com/relionhq/queryengine/pkg/wal"
)

func TestFileStoreSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	fs, err := NewFileStore(dir, "accounts")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := fs.Load(); err != nil {
		t.Fatalf("initial Load: %v", err)
	}

	err = fs.Save(func(file *record.DataFile) {
		file.Data = append(file.Data, record.NewDataRecord("acct_1", 1, 1, map[string]any{
			"owner":   "ada",
			"balance": 100.0,
		}))
	})
	if err != nil {
		t.Fatalf("Save insert: %v", err)
	}

	rows, err := fs.GetAll()
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "acct_1" {
		t.Fatalf("GetAll after insert = %+v, want one acct_1 row", rows)
	}

	err = fs.Save(func(file *record.DataFile) {
		for i, r := range file.Data {
			if r.ID == "acct_1" {
				file.Data[i] = r.Merge(map[string]any{"balance": 150.0}, 2)
			}
		}
	})
	if err != nil {
		t.Fatalf("Save update: %v", err)
	}

	fs2, err := NewFileStore(dir, "accounts")
	if err != nil {
		t.Fatalf("reopening NewFileStore: %v", err)
	}
	if err := fs2.Load(); err != nil {
		t.Fatalf("reload Load: %v", err)
	}
	rows, err = fs2.GetAll()
	if err != nil {
		t.Fatalf("GetAll after reload: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("reloaded rows = %d, want 1", len(rows))
	}
	if got, _ := rows[0].Get("balance"); got != 150.0 {
		t.Fatalf("reloaded balance = %v, want 150.0", got)
	}

	err = fs.Save(func(file *record.DataFile) {
		kept := file.Data[:0]
		for _, r := range file.Data {
			if r.ID != "acct_1" {
				kept = append(kept, r)
			}
		}
		file.Data = kept
	})
	if err != nil {
		t.Fatalf("Save delete: %v", err)
	}
	rows, err = fs.GetAll()
	if err != nil {
		t.Fatalf("GetAll after delete: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("GetAll after delete = %d rows, want 0", len(rows))
	}
}

// TestFileStoreWritesAheadToWAL confirms every Save mutation lands in the
// table's WAL file before (and in addition to) the heap, and that the
// entries decode with the insert, update and delete entry types, in that
// order.
func TestFileStoreWritesAheadToWAL(t *testing.T) {
	dir := t.TempDir()

	fs, err := NewFileStore(dir, "ledger")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := fs.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	err = fs.Save(func(file *record.DataFile) {
		file.Data = append(file.Data, record.NewDataRecord("row_1", 1, 1, map[string]any{"amount": 10.0}))
	})
	if err != nil {
		t.Fatalf("Save insert: %v", err)
	}
	err = fs.Save(func(file *record.DataFile) {
		for i, r := range file.Data {
			if r.ID == "row_1" {
				file.Data[i] = r.Merge(map[string]any{"amount": 20.0}, 2)
			}
		}
	})
	if err != nil {
		t.Fatalf("Save update: %v", err)
	}
	err = fs.Save(func(file *record.DataFile) {
		file.Data = file.Data[:0]
	})
	if err != nil {
		t.Fatalf("Save delete: %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	walPath := filepath.Join(dir, "ledger.wal")
	if _, err := os.Stat(walPath); err != nil {
		t.Fatalf("wal file missing: %v", err)
	}

	reader, err := wal.NewWALReader(walPath)
	if err != nil {
		t.Fatalf("NewWALReader: %v", err)
	}
	defer reader.Close()

	var entryTypes []uint8
	for {
		entry, err := reader.ReadEntry()
		if err != nil {
			break
		}
		entryTypes = append(entryTypes, entry.Header.EntryType)
		wal.ReleaseEntry(entry)
	}
	if len(entryTypes) != 3 {
		t.Fatalf("wal entries = %d, want 3 (insert, update, delete)", len(entryTypes))
	}
	if entryTypes[0] != wal.EntryInsert || entryTypes[1] != wal.EntryUpdate || entryTypes[2] != wal.EntryDelete {
		t.Fatalf("wal entry types = %v, want [insert update delete]", entryTypes)
	}
}

func TestFileStoreCompression(t *testing.T) {
	dir := t.TempDir()

	fs, err := NewFileStore(dir, "notes", WithCompression())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := fs.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	err = fs.Save(func(file *record.DataFile) {
		file.Data = append(file.Data, record.NewDataRecord("note_1", 1, 1, map[string]any{
			"body": "a compressible note body repeated repeated repeated",
		}))
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	fs2, err := NewFileStore(dir, "notes", WithCompression())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := fs2.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	rows, err := fs2.GetAll()
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if got, _ := rows[0].Get("body"); got != "a compressible note body repeated repeated repeated" {
		t.Fatalf("body = %v", got)
	}
}
