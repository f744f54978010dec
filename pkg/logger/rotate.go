package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// auditFile is the io.Writer behind the settlement audit trail. When the
// current file grows past the size cap it is renamed to <path>.1 and older
// backups shift up by one; backups past maxBackups or older than maxAge are
// dropped. Writes are serialized, so a settlement record never straddles
// two files.
type auditFile struct {
	mu         sync.Mutex
	current    *os.File
	path       string
	sizeCap    int64
	maxBackups int
	maxAge     time.Duration
	written    int64
}

func newAuditFile(path string, maxSizeMB, maxBackups, maxAgeDays int) (*auditFile, error) {
	if path == "" {
		return nil, errors.New("audit log path is required")
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}
	if maxBackups <= 0 {
		maxBackups = 7
	}
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	return &auditFile{
		path:       path,
		sizeCap:    int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
		maxAge:     time.Duration(maxAgeDays) * 24 * time.Hour,
	}, nil
}

func (f *auditFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.open(); err != nil {
		return 0, err
	}
	if f.written+int64(len(p)) > f.sizeCap {
		if err := f.roll(); err != nil {
			return 0, err
		}
		if err := f.open(); err != nil {
			return 0, err
		}
	}
	n, err := f.current.Write(p)
	f.written += int64(n)
	return n, err
}

func (f *auditFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil
	}
	err := f.current.Close()
	f.current = nil
	f.written = 0
	return err
}

// open opens the active audit file and seeds the running size from disk,
// so a restarted process keeps counting toward the same cap.
func (f *auditFile) open() error {
	if f.current != nil {
		return nil
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat audit log: %w", err)
	}
	f.current = file
	f.written = info.Size()
	return nil
}

// roll renames the active file to the .1 backup and shifts older backups
// up by one; the oldest falls off the end.
func (f *auditFile) roll() error {
	if f.current != nil {
		_ = f.current.Close()
		f.current = nil
	}
	f.written = 0

	for i := f.maxBackups - 1; i >= 1; i-- {
		src := f.backupPath(i)
		if _, err := os.Stat(src); err == nil {
			_ = os.Rename(src, f.backupPath(i+1))
		}
	}
	if _, err := os.Stat(f.path); err == nil {
		_ = os.Rename(f.path, f.backupPath(1))
	}

	f.pruneExpired()
	return nil
}

func (f *auditFile) backupPath(index int) string {
	return fmt.Sprintf("%s.%d", f.path, index)
}

// pruneExpired removes backups older than the retention window. Backup
// indexes are contiguous, so scanning 1..maxBackups covers them all.
func (f *auditFile) pruneExpired() {
	if f.maxAge <= 0 {
		return
	}
	cutoff := time.Now().Add(-f.maxAge)
	for i := 1; i <= f.maxBackups; i++ {
		info, err := os.Stat(f.backupPath(i))
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(f.backupPath(i))
		}
	}
}
