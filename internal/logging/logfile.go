package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// logFile is an append-only log file that is rotated once it would grow
// past Config.MaxSize. Each run of drop writes a handful of lines, so the
// size check on write is the only rotation trigger.
type logFile struct {
	cfg  *Config
	mu   sync.Mutex
	f    *os.File
	size int64
}

func openLogFile(cfg *Config) (*logFile, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	lf := &logFile{cfg: cfg}
	if err := lf.open(); err != nil {
		return nil, err
	}
	return lf, nil
}

func (lf *logFile) open() error {
	f, err := os.OpenFile(lf.cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	lf.f, lf.size = f, st.Size()
	return nil
}

func (lf *logFile) Write(p []byte) (int, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.f == nil {
		return 0, os.ErrClosed
	}
	if lf.size > 0 && lf.size+int64(len(p)) > lf.cfg.MaxSize<<20 {
		if err := lf.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}
	n, err := lf.f.Write(p)
	lf.size += int64(n)
	return n, err
}

// backupGlob matches rotated copies of the log, compressed or not.
func (lf *logFile) backupGlob() string {
	ext := filepath.Ext(lf.cfg.FilePath)
	return strings.TrimSuffix(lf.cfg.FilePath, ext) + "-*" + ext + "*"
}

func (lf *logFile) rotate() error {
	if err := lf.f.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	lf.f = nil

	ext := filepath.Ext(lf.cfg.FilePath)
	backup := strings.TrimSuffix(lf.cfg.FilePath, ext) + "-" + time.Now().Format("20060102-150405.000") + ext
	if err := os.Rename(lf.cfg.FilePath, backup); err != nil {
		return fmt.Errorf("rename log file: %w", err)
	}
	if lf.cfg.Compress {
		// An uncompressed backup is still a usable backup.
		_ = gzipFile(backup)
	}
	lf.prune()
	return lf.open()
}

func gzipFile(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(out)
	zw.Name = filepath.Base(path)

	_, err = io.Copy(zw, in)
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path + ".gz")
		return err
	}
	return os.Remove(path)
}

// prune keeps at most MaxBackups backups, none older than MaxAge days.
// A MaxAge of zero disables the age limit.
func (lf *logFile) prune() {
	backups, err := filepath.Glob(lf.backupGlob())
	if err != nil {
		return
	}
	// Timestamp suffixes sort oldest first.
	slices.Sort(backups)

	excess := len(backups) - lf.cfg.MaxBackups
	cutoff := time.Now().AddDate(0, 0, -lf.cfg.MaxAge)
	for i, b := range backups {
		if i < excess {
			os.Remove(b)
			continue
		}
		if lf.cfg.MaxAge == 0 {
			continue
		}
		if st, err := os.Stat(b); err == nil && st.ModTime().Before(cutoff) {
			os.Remove(b)
		}
	}
}

func (lf *logFile) Close() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.f == nil {
		return nil
	}
	err := lf.f.Close()
	lf.f = nil
	return err
}
