// Package heap implements the append-only, segmented record store a
// FileStore persists its DataRecord payloads into: every write appends a
// new version at the tail of the active segment, so recovery is a single
// forward scan with no free-list or in-place update logic to get wrong.
package heap

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	Magic                 = 0x48454150       // ASCII "HEAP"
	FormatVersion         = 3                // adds the MVCC version-chain header fields
	HeaderSize            = 14               // Magic(4) + Version(2) + NextOffset(8)
	EntryHeaderSize       = 29               // Length(4) + Valid(1) + CreateLSN(8) + DeleteLSN(8) + PrevOffset(8)
	DefaultMaxSegmentSize = 64 * 1024 * 1024 // 64MB before rotating to a new segment file
)

// RecordHeader is the fixed-size metadata written immediately before every
// entry's payload bytes.
type RecordHeader struct {
	Valid      bool
	CreateLSN  uint64
	DeleteLSN  uint64 // meaningful only when Valid is false
	PrevOffset int64  // previous version's global offset, -1 if none
}

// segment is one `<base>_NNN.data` file and its position in the heap's
// global offset space.
type segment struct {
	id          int
	path        string
	startOffset int64
	size        int64
	file        *os.File
}

// RecordHeap is a segmented, append-only byte-oriented store: callers write
// and read opaque payloads (FileStore's encoded DataRecord bytes) addressed
// by the global offset Write returns.
type RecordHeap struct {
	basePath       string
	segments       []*segment
	active         *segment
	nextOffset     int64 // next global offset across every segment
	maxSegmentSize int64
	mu             sync.RWMutex
}

// Open opens the segment chain rooted at basePath, creating the first
// segment if none exists yet.
func Open(basePath string) (*RecordHeap, error) {
	rh := &RecordHeap{
		basePath:       basePath,
		maxSegmentSize: DefaultMaxSegmentSize,
	}

	var globalOffset int64
	for id := 1; ; id++ {
		segPath := fmt.Sprintf("%s_%03d.data", basePath, id)
		file, err := os.OpenFile(segPath, os.O_RDWR, 0666)
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("heap: opening segment %s: %w", segPath, err)
		}
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, err
		}
		seg := &segment{id: id, path: segPath, startOffset: globalOffset, size: info.Size(), file: file}
		rh.segments = append(rh.segments, seg)
		globalOffset += seg.size
	}

	if len(rh.segments) == 0 {
		return rh, rh.createSegment(1, 0)
	}

	rh.active = rh.segments[len(rh.segments)-1]
	if err := rh.loadActiveState(); err != nil {
		return nil, err
	}
	return rh, nil
}

func (rh *RecordHeap) createSegment(id int, startOffset int64) error {
	segPath := fmt.Sprintf("%s_%03d.data", rh.basePath, id)
	file, err := os.OpenFile(segPath, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return fmt.Errorf("heap: creating segment %s: %w", segPath, err)
	}
	seg := &segment{id: id, path: segPath, startOffset: startOffset, file: file}
	rh.segments = append(rh.segments, seg)
	rh.active = seg

	if err := rh.writeHeader(seg); err != nil {
		return err
	}
	seg.size = int64(HeaderSize)
	rh.nextOffset = startOffset + int64(HeaderSize)
	return nil
}

// loadActiveState reads the active segment's header to recover the write
// pointer, falling back to the file's actual size if the header is stale
// (a write landed but the header update that follows it did not).
func (rh *RecordHeap) loadActiveState() error {
	seg := rh.active
	if _, err := seg.file.Seek(0, 0); err != nil {
		return err
	}

	var magic uint32
	if err := binary.Read(seg.file, binary.LittleEndian, &magic); err != nil {
		return err
	}
	if magic != Magic {
		return fmt.Errorf("heap: bad magic in segment %d", seg.id)
	}
	var version uint16
	if err := binary.Read(seg.file, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version != FormatVersion {
		return fmt.Errorf("heap: unsupported format version %d", version)
	}
	var localNext int64
	if err := binary.Read(seg.file, binary.LittleEndian, &localNext); err != nil {
		return err
	}
	rh.nextOffset = seg.startOffset + localNext

	if stat, err := seg.file.Stat(); err == nil && stat.Size() > localNext {
		rh.nextOffset = seg.startOffset + stat.Size()
		_ = rh.persistNextOffset()
	}
	return nil
}

func (rh *RecordHeap) writeHeader(seg *segment) error {
	if _, err := seg.file.Seek(0, 0); err != nil {
		return err
	}
	if err := binary.Write(seg.file, binary.LittleEndian, uint32(Magic)); err != nil {
		return err
	}
	if err := binary.Write(seg.file, binary.LittleEndian, uint16(FormatVersion)); err != nil {
		return err
	}
	if err := binary.Write(seg.file, binary.LittleEndian, int64(HeaderSize)); err != nil {
		return err
	}
	return seg.file.Sync()
}

// persistNextOffset rewrites the active segment's write-pointer field; must
// be called with rh.mu held.
func (rh *RecordHeap) persistNextOffset() error {
	seg := rh.active
	if _, err := seg.file.Seek(6, 0); err != nil { // past Magic(4)+Version(2)
		return err
	}
	return binary.Write(seg.file, binary.LittleEndian, rh.nextOffset-seg.startOffset)
}

// Write appends payload as a new version in the active segment, chained
// onto prevOffset (-1 if this id has no earlier version), and returns its
// global offset. Rotates to a fresh segment first if payload would cross
// maxSegmentSize.
func (rh *RecordHeap) Write(payload []byte, createLSN uint64, prevOffset int64) (int64, error) {
	rh.mu.Lock()
	defer rh.mu.Unlock()

	needed := int64(EntryHeaderSize + len(payload))
	localOffset := rh.nextOffset - rh.active.startOffset
	if localOffset+needed > rh.maxSegmentSize {
		if err := rh.createSegment(rh.active.id+1, rh.nextOffset); err != nil {
			return 0, fmt.Errorf("heap: rotating segment: %w", err)
		}
		localOffset = HeaderSize
	}

	offset := rh.nextOffset
	seg := rh.active
	if _, err := seg.file.Seek(offset-seg.startOffset, 0); err != nil {
		return 0, err
	}

	fields := []any{
		uint32(len(payload)),
		uint8(1), // Valid
		createLSN,
		uint64(0), // DeleteLSN, unset until tombstoned
		prevOffset,
	}
	for _, f := range fields {
		if err := binary.Write(seg.file, binary.LittleEndian, f); err != nil {
			return 0, err
		}
	}
	if _, err := seg.file.Write(payload); err != nil {
		return 0, err
	}

	rh.nextOffset += needed
	seg.size = rh.nextOffset - seg.startOffset
	if err := rh.persistNextOffset(); err != nil {
		return 0, err
	}
	return offset, nil
}

func (rh *RecordHeap) segmentFor(offset int64) (*segment, error) {
	for _, seg := range rh.segments {
		if offset >= seg.startOffset && offset < seg.startOffset+seg.size {
			return seg, nil
		}
	}
	if offset < rh.nextOffset && offset >= rh.active.startOffset {
		return rh.active, nil
	}
	return nil, fmt.Errorf("heap: no segment contains offset %d", offset)
}

// Read returns the payload and header stored at offset.
func (rh *RecordHeap) Read(offset int64) ([]byte, *RecordHeader, error) {
	rh.mu.RLock()
	defer rh.mu.RUnlock()

	seg, err := rh.segmentFor(offset)
	if err != nil {
		return nil, nil, err
	}
	if _, err := seg.file.Seek(offset-seg.startOffset, 0); err != nil {
		return nil, nil, err
	}
	header, payloadLen, err := readEntryHeader(seg.file)
	if err != nil {
		return nil, nil, err
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(seg.file, payload); err != nil {
		return nil, nil, err
	}
	return payload, header, nil
}

// Delete flips the Valid flag at offset and stamps deleteLSN, leaving the
// payload bytes in place (lazy deletion; reclaimed only by a compaction
// rewrite elsewhere).
func (rh *RecordHeap) Delete(offset int64, deleteLSN uint64) error {
	rh.mu.Lock()
	defer rh.mu.Unlock()

	seg, err := rh.segmentFor(offset)
	if err != nil {
		return err
	}
	local := offset - seg.startOffset
	if _, err := seg.file.Seek(local+4, 0); err != nil { // past Length(4) -> Valid
		return err
	}
	if err := binary.Write(seg.file, binary.LittleEndian, uint8(0)); err != nil {
		return err
	}
	if _, err := seg.file.Seek(local+4+1+8, 0); err != nil { // past Length+Valid+CreateLSN -> DeleteLSN
		return err
	}
	return binary.Write(seg.file, binary.LittleEndian, deleteLSN)
}

func (rh *RecordHeap) Close() error {
	rh.mu.Lock()
	defer rh.mu.Unlock()

	var firstErr error
	for _, seg := range rh.segments {
		if seg.file != nil {
			if err := seg.file.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Path returns the heap's base path (its segment files are `<Path()>_NNN.data`).
func (rh *RecordHeap) Path() string {
	return rh.basePath
}

// readEntryHeader decodes one EntryHeaderSize-byte entry header from r.
func readEntryHeader(r io.Reader) (*RecordHeader, uint32, error) {
	var payloadLen uint32
	if err := binary.Read(r, binary.LittleEndian, &payloadLen); err != nil {
		return nil, 0, err
	}
	var valid uint8
	if err := binary.Read(r, binary.LittleEndian, &valid); err != nil {
		return nil, 0, err
	}
	var createLSN, deleteLSN uint64
	if err := binary.Read(r, binary.LittleEndian, &createLSN); err != nil {
		return nil, 0, err
	}
	if err := binary.Read(r, binary.LittleEndian, &deleteLSN); err != nil {
		return nil, 0, err
	}
	var prevOffset int64
	if err := binary.Read(r, binary.LittleEndian, &prevOffset); err != nil {
		return nil, 0, err
	}
	return &RecordHeader{Valid: valid == 1, CreateLSN: createLSN, DeleteLSN: deleteLSN, PrevOffset: prevOffset}, payloadLen, nil
}

// Iterator walks every entry across every segment in write order, the scan
// FileStore.Load uses to rebuild its in-memory cache and index.
type Iterator struct {
	rh      *RecordHeap
	segIdx  int
	file    *os.File
	pos     int64 // local offset within the current segment's file
}

// NewIterator opens an independent read handle over the heap's first
// segment, positioned just past its header.
func (rh *RecordHeap) NewIterator() (*Iterator, error) {
	rh.mu.RLock()
	defer rh.mu.RUnlock()

	if len(rh.segments) == 0 {
		return nil, fmt.Errorf("heap: no segments to iterate")
	}
	f, err := os.Open(rh.segments[0].path)
	if err != nil {
		return nil, err
	}
	return &Iterator{rh: rh, file: f, pos: HeaderSize}, nil
}

// Next returns the next entry's payload, header, and global offset, or
// io.EOF once every segment has been consumed.
func (it *Iterator) Next() ([]byte, *RecordHeader, int64, error) {
	for {
		it.rh.mu.RLock()
		if it.segIdx >= len(it.rh.segments) {
			it.rh.mu.RUnlock()
			return nil, nil, 0, io.EOF
		}
		startOffset := it.rh.segments[it.segIdx].startOffset
		it.rh.mu.RUnlock()

		globalOffset := startOffset + it.pos
		if _, err := it.file.Seek(it.pos, 0); err != nil {
			return nil, nil, 0, err
		}

		header, payloadLen, err := readEntryHeader(it.file)
		if err != nil {
			if err == io.EOF {
				if advErr := it.advanceSegment(); advErr != nil {
					return nil, nil, 0, advErr
				}
				continue
			}
			return nil, nil, 0, err
		}

		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(it.file, payload); err != nil {
			return nil, nil, 0, err
		}
		it.pos += int64(EntryHeaderSize) + int64(payloadLen)
		return payload, header, globalOffset, nil
	}
}

func (it *Iterator) advanceSegment() error {
	it.file.Close()
	it.segIdx++

	it.rh.mu.RLock()
	defer it.rh.mu.RUnlock()
	if it.segIdx >= len(it.rh.segments) {
		return io.EOF
	}
	f, err := os.Open(it.rh.segments[it.segIdx].path)
	if err != nil {
		return err
	}
	it.file = f
	it.pos = HeaderSize
	return nil
}

func (it *Iterator) Close() {
	if it.file != nil {
		it.file.Close()
	}
}
