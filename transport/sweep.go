package transport

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// archiveDir is where swept messages go when archiving is enabled.
const archiveDir = "archive"

// SweepResult summarizes one retention pass.
type SweepResult struct {
	Archived int
	Removed  int
}

// Sweep removes (or archives) bridge files whose modification time is older
// than maxAge. It runs at startup to clear debris from a crashed run and
// periodically afterwards to bound directory growth. Every swept file is
// logged; orphans are never dropped silently.
func (d *Dir) Sweep(maxAge time.Duration, archive bool) (SweepResult, error) {
	var res SweepResult

	entries, err := os.ReadDir(d.path)
	if err != nil {
		return res, &IOError{Op: "scan", Path: d.path, Err: err}
	}

	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, requestPrefix) &&
			!strings.HasPrefix(name, responsePrefix) &&
			!strings.HasPrefix(name, tmpPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(d.path, name)
		if archive && !strings.HasPrefix(name, tmpPrefix) {
			if err := d.archiveFile(path, name); err != nil {
				d.log.Warn("sweep: archive failed", "file", name, "err", err)
				continue
			}
			res.Archived++
			d.log.Info("sweep: archived stale file", "file", name, "age", time.Since(info.ModTime()).Round(time.Second))
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			d.log.Warn("sweep: remove failed", "file", name, "err", err)
			continue
		}
		res.Removed++
		d.log.Info("sweep: removed stale file", "file", name, "age", time.Since(info.ModTime()).Round(time.Second))
	}
	return res, nil
}

// archiveFile compresses a stale message into archive/<name>.xz and removes
// the original.
func (d *Dir) archiveFile(path, name string) error {
	dir := filepath.Join(d.path, archiveDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: dir, Err: err}
	}

	src, err := os.Open(path)
	if err != nil {
		return &IOError{Op: "open", Path: path, Err: err}
	}
	defer src.Close()

	dstPath := filepath.Join(dir, name+".xz")
	dst, err := os.Create(dstPath)
	if err != nil {
		return &IOError{Op: "create", Path: dstPath, Err: err}
	}

	zw, err := xz.NewWriter(dst)
	if err != nil {
		dst.Close()
		return &IOError{Op: "compress", Path: dstPath, Err: err}
	}
	if _, err := io.Copy(zw, src); err != nil {
		zw.Close()
		dst.Close()
		return &IOError{Op: "compress", Path: dstPath, Err: err}
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		return &IOError{Op: "compress", Path: dstPath, Err: err}
	}
	if err := dst.Close(); err != nil {
		return &IOError{Op: "close", Path: dstPath, Err: err}
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &IOError{Op: "remove", Path: path, Err: err}
	}
	return nil
}
