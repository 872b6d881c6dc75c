package store

import (
	"path/filepath"
	"testing"

	"github.com/relionhq/queryengine/pkg/record"
)

func TestPebbleStoreSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	provider, closeDB, err := OpenPebbleStores(filepath.Join(dir, "pebble"))
	if err != nil {
		t.Fatalf("OpenPebbleStores: %v", err)
	}
	defer closeDB()

	orders, err := provider("orders")
	if err != nil {
		t.Fatalf("provider(orders): %v", err)
	}

	err = orders.Save(func(file *record.DataFile) {
		file.Data = append(file.Data, record.NewDataRecord("order_1", 1, 1, map[string]any{
			"status": "placed",
		}))
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	customers, err := provider("customers")
	if err != nil {
		t.Fatalf("provider(customers): %v", err)
	}
	custRows, err := customers.GetAll()
	if err != nil {
		t.Fatalf("GetAll(customers): %v", err)
	}
	if len(custRows) != 0 {
		t.Fatalf("customers should be empty, table keys must not leak across prefixes, got %d rows", len(custRows))
	}

	rows, err := orders.GetAll()
	if err != nil {
		t.Fatalf("GetAll(orders): %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "order_1" {
		t.Fatalf("GetAll(orders) = %+v, want one order_1 row", rows)
	}

	err = orders.Save(func(file *record.DataFile) {
		file.Data = file.Data[:0]
	})
	if err != nil {
		t.Fatalf("Save delete: %v", err)
	}
	rows, err = orders.GetAll()
	if err != nil {
		t.Fatalf("GetAll after delete: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("GetAll after delete = %d rows, want 0", len(rows))
	}
}
