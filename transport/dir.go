// Package transport moves bridge messages through a shared directory, one
// file per message. The directory is the only channel between the bridge
// process and the terminal peer, so writes go to a temporary name first and
// are renamed into place: a concurrent scan never sees a half-written file.
package transport

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	requestPrefix  = "request_"
	responsePrefix = "response_"
	tmpPrefix      = "tmp_"
	ext            = ".txt"
)

// IOError wraps a filesystem failure on the bridge directory. These are
// environment-level problems (permissions, disk full, missing mount) and are
// not retried by the bridge.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Message is one scanned file, identified by the ID embedded in its name.
type Message struct {
	ID      string
	Payload []byte
}

// Dir is a handle on the shared bridge directory.
type Dir struct {
	path string
	log  *slog.Logger
}

func NewDir(path string, log *slog.Logger) (*Dir, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, &IOError{Op: "mkdir", Path: path, Err: err}
	}
	return &Dir{path: path, log: log}, nil
}

// Path returns the watched directory.
func (d *Dir) Path() string { return d.path }

// RequestPath returns the filename a request with the given ID lives at.
func (d *Dir) RequestPath(id string) string {
	return filepath.Join(d.path, requestPrefix+id+ext)
}

// ResponsePath returns the filename a response with the given ID lives at.
func (d *Dir) ResponsePath(id string) string {
	return filepath.Join(d.path, responsePrefix+id+ext)
}

// WriteRequest publishes a request file atomically.
func (d *Dir) WriteRequest(id string, payload []byte) error {
	return d.writeAtomic(d.RequestPath(id), id, payload)
}

// WriteResponse publishes a response file atomically. The bridge itself
// never calls this; it exists for the simulated peer and for tests.
func (d *Dir) WriteResponse(id string, payload []byte) error {
	return d.writeAtomic(d.ResponsePath(id), id, payload)
}

func (d *Dir) writeAtomic(final, id string, payload []byte) error {
	tmp := filepath.Join(d.path, tmpPrefix+id+"_"+filepath.Base(final))
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return &IOError{Op: "write", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return &IOError{Op: "rename", Path: final, Err: err}
	}
	return nil
}

// PollResponses scans the directory and returns every response currently
// present, ordered by ID. Each call re-scans; files that appear mid-scan are
// picked up next time.
func (d *Dir) PollResponses() ([]Message, error) {
	return d.poll(responsePrefix)
}

// PollRequests is the peer-side counterpart of PollResponses.
func (d *Dir) PollRequests() ([]Message, error) {
	return d.poll(requestPrefix)
}

func (d *Dir) poll(prefix string) ([]Message, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, &IOError{Op: "scan", Path: d.path, Err: err}
	}

	var msgs []Message
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ext)
		if id == "" {
			continue
		}
		payload, err := os.ReadFile(filepath.Join(d.path, name))
		if err != nil {
			if os.IsNotExist(err) {
				// Deleted between scan and read; someone else consumed it.
				continue
			}
			return nil, &IOError{Op: "read", Path: name, Err: err}
		}
		msgs = append(msgs, Message{ID: id, Payload: payload})
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	return msgs, nil
}

// DeleteRequest removes a request file. Missing files are not an error: the
// peer consumes requests and may already have removed it.
func (d *Dir) DeleteRequest(id string) error {
	return d.remove(d.RequestPath(id))
}

// DeleteResponse removes a consumed response file. The watcher is the sole
// caller, which keeps consumption and cleanup from racing.
func (d *Dir) DeleteResponse(id string) error {
	return d.remove(d.ResponsePath(id))
}

func (d *Dir) remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &IOError{Op: "remove", Path: path, Err: err}
	}
	return nil
}
