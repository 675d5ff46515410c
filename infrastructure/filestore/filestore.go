// Package filestore writes JSON documents so that readers only ever see the
// previous complete file or the new complete file.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"flatnas/pkg/logger"
	"flatnas/pkg/metrics"

	"github.com/avast/retry-go"
	"github.com/goccy/go-json"
)

// Write outcomes reported to metrics.
const (
	OutcomeRenamed = "renamed"
	OutcomeCopied  = "copied"
	OutcomeFailed  = "failed"
)

// Options tunes the rename retry loop and allows tests to replace the
// filesystem primitives.
type Options struct {
	Attempts   uint
	RetryDelay time.Duration

	// Rename replaces os.Rename.
	Rename func(oldpath, newpath string) error
	// CreateTemp replaces os.CreateTemp.
	CreateTemp func(dir, pattern string) (*os.File, error)
}

// DefaultOptions returns the production retry settings.
func DefaultOptions() Options {
	return Options{
		Attempts:   3,
		RetryDelay: 100 * time.Millisecond,
		Rename:     os.Rename,
		CreateTemp: os.CreateTemp,
	}
}

type Store struct {
	opts Options
}

func New(opts ...Options) *Store {
	o := DefaultOptions()
	if len(opts) > 0 {
		custom := opts[0]
		if custom.Attempts > 0 {
			o.Attempts = custom.Attempts
		}
		if custom.RetryDelay > 0 {
			o.RetryDelay = custom.RetryDelay
		}
		if custom.Rename != nil {
			o.Rename = custom.Rename
		}
		if custom.CreateTemp != nil {
			o.CreateTemp = custom.CreateTemp
		}
	}
	return &Store{opts: o}
}

// WriteJSON pretty-prints v and writes it atomically to path.
func (s *Store) WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return s.WriteFile(path, data)
}

// WriteFile writes data to a sibling temp file, then moves it over path.
// When every rename attempt fails the temp file is copied over the target
// instead. The target is never truncated before the new content is complete
// on disk.
func (s *Store) WriteFile(path string, data []byte) error {
	start := time.Now()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		metrics.RecordStoreWrite(OutcomeFailed, time.Since(start).Seconds())
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmpPath, err := s.writeTemp(dir, filepath.Base(path), data)
	if err != nil {
		metrics.RecordStoreWrite(OutcomeFailed, time.Since(start).Seconds())
		return err
	}

	renameErr := retry.Do(
		func() error {
			return s.opts.Rename(tmpPath, path)
		},
		retry.Attempts(s.opts.Attempts),
		retry.Delay(s.opts.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.OnRetry(func(n uint, err error) {
			logger.WithFields(map[string]any{
				"path":    path,
				"attempt": n + 1,
				"error":   err,
			}).Debug("rename failed, retrying")
		}),
	)
	if renameErr == nil {
		metrics.RecordStoreWrite(OutcomeRenamed, time.Since(start).Seconds())
		return nil
	}

	logger.WithFields(map[string]any{
		"path":  path,
		"error": renameErr,
	}).Warn("rename exhausted retries, falling back to copy")

	if err := copyFile(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		metrics.RecordStoreWrite(OutcomeFailed, time.Since(start).Seconds())
		return fmt.Errorf("write %s: rename failed (%v), copy failed: %w", path, renameErr, err)
	}

	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WithFields(map[string]any{
			"path":  tmpPath,
			"error": err,
		}).Warn("failed to remove temp file")
	}

	metrics.RecordStoreWrite(OutcomeCopied, time.Since(start).Seconds())
	return nil
}

func (s *Store) writeTemp(dir, base string, data []byte) (string, error) {
	f, err := s.opts.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", base, err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write temp for %s: %w", base, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("sync temp for %s: %w", base, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close temp for %s: %w", base, err)
	}
	return tmpPath, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CopyFile copies src over dst through the same atomic write path.
func (s *Store) CopyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return s.WriteFile(dst, data)
}

// ReadJSON decodes the document at path into v. Missing files surface as
// os.ErrNotExist.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
