package heap

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesFirstSegment(t *testing.T) {
	base := filepath.Join(t.TempDir(), "accounts")
	rh, err := Open(base)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rh.Close()

	if rh.Path() != base {
		t.Fatalf("Path() = %q, want %q", rh.Path(), base)
	}
	if _, err := os.Stat(base + "_001.data"); err != nil {
		t.Fatalf("segment file missing: %v", err)
	}
}

func TestOpen_ReopensExistingSegment(t *testing.T) {
	base := filepath.Join(t.TempDir(), "accounts")
	rh, err := Open(base)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := rh.Write([]byte("row-1"), 1, -1); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := rh.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(base)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	payload, header, _, err := readFirst(t, reopened)
	if err != nil {
		t.Fatalf("readFirst: %v", err)
	}
	if string(payload) != "row-1" || !header.Valid {
		t.Fatalf("got payload=%q valid=%v, want row-1/true", payload, header.Valid)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	rh, err := Open(filepath.Join(t.TempDir(), "orders"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rh.Close()

	offset1, err := rh.Write([]byte("v1"), 10, -1)
	if err != nil {
		t.Fatalf("Write v1: %v", err)
	}
	offset2, err := rh.Write([]byte("v2"), 11, offset1)
	if err != nil {
		t.Fatalf("Write v2: %v", err)
	}

	payload, header, err := rh.Read(offset2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(payload) != "v2" || header.PrevOffset != offset1 || header.CreateLSN != 11 {
		t.Fatalf("Read(offset2) = %q/%+v, want v2 chained onto %d", payload, header, offset1)
	}
}

func TestDelete_MarksInvalidAndStampsDeleteLSN(t *testing.T) {
	rh, err := Open(filepath.Join(t.TempDir(), "orders"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rh.Close()

	offset, err := rh.Write([]byte("doomed"), 1, -1)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := rh.Delete(offset, 2); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	payload, header, err := rh.Read(offset)
	if err != nil {
		t.Fatalf("Read after delete: %v", err)
	}
	if header.Valid || header.DeleteLSN != 2 || string(payload) != "doomed" {
		t.Fatalf("Read after delete = %q/%+v, want invalid with DeleteLSN=2", payload, header)
	}
}

func TestDelete_UnknownOffset(t *testing.T) {
	rh, err := Open(filepath.Join(t.TempDir(), "orders"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rh.Close()

	if err := rh.Delete(99999, 1); err == nil {
		t.Fatalf("Delete on unknown offset should fail")
	}
}

func TestIterator_WalksEveryEntryInOrder(t *testing.T) {
	rh, err := Open(filepath.Join(t.TempDir(), "orders"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rh.Close()

	for i, doc := range [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")} {
		if _, err := rh.Write(doc, uint64(i+1), -1); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	it, err := rh.NewIterator()
	if err != nil {
		t.Fatalf("NewIterator: %v", err)
	}
	defer it.Close()

	var seen []string
	for {
		payload, _, _, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		seen = append(seen, string(payload))
	}
	if len(seen) != 3 || seen[0] != "a" || seen[1] != "bb" || seen[2] != "ccc" {
		t.Fatalf("iterated %v, want [a bb ccc]", seen)
	}
}

func TestOpen_RejectsBadMagic(t *testing.T) {
	base := filepath.Join(t.TempDir(), "broken")
	if err := os.WriteFile(base+"_001.data", make([]byte, HeaderSize), 0666); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if _, err := Open(base); err == nil {
		t.Fatalf("Open should reject a segment with a bad magic number")
	}
}

func TestWrite_RotatesSegmentPastMaxSize(t *testing.T) {
	base := filepath.Join(t.TempDir(), "big")
	rh, err := Open(base)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rh.Close()
	rh.maxSegmentSize = HeaderSize + EntryHeaderSize + 4 // room for exactly one small entry

	if _, err := rh.Write([]byte("abcd"), 1, -1); err != nil {
		t.Fatalf("first write: %v", err)
	}
	offset2, err := rh.Write([]byte("efgh"), 2, -1)
	if err != nil {
		t.Fatalf("second write (expected rotation): %v", err)
	}
	if len(rh.segments) != 2 {
		t.Fatalf("segments = %d, want 2 after rotation", len(rh.segments))
	}
	if _, err := os.Stat(base + "_002.data"); err != nil {
		t.Fatalf("second segment file missing: %v", err)
	}

	payload, _, err := rh.Read(offset2)
	if err != nil || string(payload) != "efgh" {
		t.Fatalf("Read after rotation = %q, %v", payload, err)
	}
}

func readFirst(t *testing.T, rh *RecordHeap) ([]byte, *RecordHeader, int64, error) {
	t.Helper()
	it, err := rh.NewIterator()
	if err != nil {
		t.Fatalf("NewIterator: %v", err)
	}
	defer it.Close()
	return it.Next()
}
