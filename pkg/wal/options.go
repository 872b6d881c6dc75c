package wal

import "time"

// SyncPolicy defines the durability strategy
type SyncPolicy int

const (
	// SyncEveryWrite calls fsync() after every write: safest, slowest.
	SyncEveryWrite SyncPolicy = iota

	// SyncInterval calls fsync() on a background timer: balanced.
	SyncInterval

	// SyncBatch calls fsync() once a byte threshold is reached: fastest.
	SyncBatch
)

// Options configures a WALWriter.
type Options struct {
	// Directory path where logs are written
	DirPath string

	// In-memory buffer size before flushing to the OS (bufio)
	BufferSize int

	// Sync policy
	SyncPolicy SyncPolicy

	// Interval between background syncs, used only by SyncInterval.
	SyncIntervalDuration time.Duration

	// Accumulated byte threshold that triggers a sync, used only by SyncBatch.
	SyncBatchBytes int64
}

// DefaultOptions returns a safe configuration
func DefaultOptions() Options {
	return Options{
		DirPath:              "./wal_data",
		BufferSize:           64 * 1024, // 64KB bufio buffer
		SyncPolicy:           SyncInterval,
		SyncIntervalDuration: 200 * time.Millisecond,
		SyncBatchBytes:       1 * 1024 * 1024, // 1MB
	}
}
