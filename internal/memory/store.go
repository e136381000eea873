// Package memory persists monitored content, queued content and known
// sessions in a single JSON document guarded by a cross-process file lock.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/internal/reconcile"
)

// Target names one of the two content lists in the document.
type Target string

const (
	TargetMonitored Target = "monitored"
	TargetQueued    Target = "queued"
)

// DefaultLockTimeout bounds how long an operation waits for the lock.
const DefaultLockTimeout = 5 * time.Second

// SessionRef identifies a chat session that has talked to the agent.
type SessionRef struct {
	Type string `json:"sessionType"`
	ID   string `json:"sessionId"`
}

// Memory is the decoded document.
type Memory struct {
	Monitored []content.Content
	Queued    []content.Content
	Sessions  []SessionRef
}

// QueuedFor returns the queued items owned by sessionID in insertion order.
func (m *Memory) QueuedFor(sessionID string) []content.Content {
	var out []content.Content
	for _, c := range m.Queued {
		if c.Owner() == sessionID {
			out = append(out, c)
		}
	}
	return out
}

// IsMonitored reports whether any monitored entry shares part of c.
func (m *Memory) IsMonitored(c content.Content) bool {
	return slices.ContainsFunc(m.Monitored, func(e content.Content) bool {
		return content.Overlaps(e, c)
	})
}

type document struct {
	Monitored []content.Record `json:"monitored"`
	Queued    []content.Record `json:"queued"`
	Sessions  []SessionRef     `json:"sessions"`
}

// Result reports the outcome of Update. Message is always set and suitable
// for showing to the user.
type Result struct {
	Changed bool
	Message string
	Err     error
}

// Store reads and writes the memory document.
type Store struct {
	path        string
	lockPath    string
	lockTimeout time.Duration
	retryDelay  time.Duration
	log         *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout overrides DefaultLockTimeout.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// NewStore creates a store for the document at path. The lock file lives
// next to it with a .lock suffix.
func NewStore(path string, opts ...Option) *Store {
	s := &Store{
		path:        path,
		lockPath:    path + ".lock",
		lockTimeout: DefaultLockTimeout,
		retryDelay:  10 * time.Millisecond,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "memory")
	return s
}

// Path returns the document path.
func (s *Store) Path() string { return s.path }

// Init creates an empty document if none exists.
func (s *Store) Init(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	return s.withLock(ctx, func() error {
		if _, err := os.Stat(s.path); err == nil {
			return nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		s.log.Info("creating memory file", "path", s.path)
		return s.write(&document{})
	})
}

// Read returns the current document.
func (s *Store) Read(ctx context.Context) (*Memory, error) {
	var mem *Memory
	err := s.withLock(ctx, func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		mem, err = doc.decode()
		return err
	})
	if err != nil {
		return nil, err
	}
	return mem, nil
}

// Update reconciles item into target and writes the document when it changes.
// Failures never escape as errors: they are logged and described in the
// returned message, and the document on disk is left untouched.
func (s *Store) Update(ctx context.Context, sessionID string, target Target, method reconcile.Method, item content.Content) Result {
	if sessionID != "" {
		item = item.Clone()
		item.SetOwner(sessionID)
	}

	err := s.withLock(ctx, func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		mem, err := doc.decode()
		if err != nil {
			return err
		}

		list := mem.Monitored
		if target == TargetQueued {
			list = mem.Queued
		}
		updated, err := reconcile.Apply(list, method, item)
		if err != nil {
			return err
		}
		if target == TargetQueued {
			mem.Queued = updated
		} else {
			mem.Monitored = updated
		}
		return s.write(mem.encode())
	})

	if err == nil {
		s.log.Info("memory updated", "target", target, "method", method, "content", item.Desc(), "session", sessionID)
		return Result{Changed: true, Message: successMessage(target, method, item)}
	}

	var rej *reconcile.Rejection
	if errors.As(err, &rej) {
		s.log.Debug("memory update rejected", "target", target, "method", method, "content", item.Desc(), "reason", rej.Err)
		return Result{Message: rejectionMessage(target, rej), Err: err}
	}
	s.log.Error("memory update failed", "target", target, "method", method, "content", item.Desc(), "error", err)
	return Result{Message: failureMessage(target, method, item), Err: err}
}

// SaveSession records a session if it is not already known.
func (s *Store) SaveSession(ctx context.Context, ref SessionRef) error {
	return s.withLock(ctx, func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		if slices.Contains(doc.Sessions, ref) {
			return nil
		}
		doc.Sessions = append(doc.Sessions, ref)
		return s.write(doc)
	})
}

// read loads the document. A missing file reads as empty.
func (s *Store) read() (*document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &doc, nil
}

// write serializes doc fully before replacing the file with a rename, so a
// failure never leaves a partial document behind.
func (s *Store) write(doc *document) error {
	if doc.Monitored == nil {
		doc.Monitored = []content.Record{}
	}
	if doc.Queued == nil {
		doc.Queued = []content.Record{}
	}
	if doc.Sessions == nil {
		doc.Sessions = []SessionRef{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".memory-*.tmp")
	if err != nil {
		return fmt.Errorf("write memory: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write memory: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync memory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close memory: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace memory: %w", err)
	}
	return nil
}

func (d *document) decode() (*Memory, error) {
	mem := &Memory{Sessions: slices.Clone(d.Sessions)}
	var err error
	if mem.Monitored, err = decodeList(d.Monitored); err != nil {
		return nil, fmt.Errorf("%w: monitored: %v", ErrCorrupt, err)
	}
	if mem.Queued, err = decodeList(d.Queued); err != nil {
		return nil, fmt.Errorf("%w: queued: %v", ErrCorrupt, err)
	}
	return mem, nil
}

func decodeList(records []content.Record) ([]content.Content, error) {
	out := make([]content.Content, 0, len(records))
	for _, r := range records {
		c, err := content.FromRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *Memory) encode() *document {
	doc := &document{Sessions: m.Sessions}
	for _, c := range m.Monitored {
		doc.Monitored = append(doc.Monitored, c.Record())
	}
	for _, c := range m.Queued {
		doc.Queued = append(doc.Queued, c.Record())
	}
	return doc
}
