package service

import (
	"context"
	"io"

	"github.com/yal42d-debug/dosya-paylas/internal/events"
	"github.com/yal42d-debug/dosya-paylas/internal/metrics"
	model "github.com/yal42d-debug/dosya-paylas/pkg/share"
)

// ShareService is what the gateway talks to: the registry and store plus
// event publication and transfer metrics.
type ShareService struct {
	registry *Registry
	store    *Store
	events   *events.Broadcaster
}

// New creates a ShareService over registry. events may be nil.
func New(registry *Registry, broadcaster *events.Broadcaster) *ShareService {
	return &ShareService{
		registry: registry,
		store:    NewStore(registry),
		events:   broadcaster,
	}
}

// Root returns the current shared directory
func (s *ShareService) Root() string {
	return s.registry.Root()
}

// SetRoot relocates the shared directory
func (s *ShareService) SetRoot(ctx context.Context, path string) (string, error) {
	root, err := s.registry.SetRoot(path)
	metrics.RecordRelocation(err == nil)
	if err != nil {
		return "", err
	}
	log.Info("Shared directory changed to %s", log.Highlight(root))
	s.publish(events.Event{Type: events.EventRelocate, Dir: root})
	return root, nil
}

// List lists the current root
func (s *ShareService) List(ctx context.Context) []model.FileEntry {
	return s.store.List(ctx)
}

// Save stores one uploaded file
func (s *ShareService) Save(ctx context.Context, rawName string, r io.Reader) (*model.FileEntry, error) {
	entries, err := s.SaveAll(ctx, func(stage StageFunc) error {
		_, err := stage(rawName, r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &entries[0], nil
}

// StageFunc writes one file of a batch to a temp file and returns its
// normalized name
type StageFunc func(rawName string, r io.Reader) (string, error)

// SaveAll runs fill, which stages any number of files, and publishes them
// only if fill succeeds. On error every staged file is discarded, so a
// rejected batch leaves the root untouched.
func (s *ShareService) SaveAll(ctx context.Context, fill func(stage StageFunc) error) ([]model.FileEntry, error) {
	var staged []*Staged
	var bytes []int64
	discard := func() {
		for _, u := range staged {
			u.Discard()
		}
	}

	err := fill(func(rawName string, r io.Reader) (string, error) {
		counted := &countingReader{r: r}
		u, err := s.store.Stage(ctx, rawName, counted)
		if err != nil {
			metrics.RecordUpload(counted.n, false)
			return "", err
		}
		staged = append(staged, u)
		bytes = append(bytes, counted.n)
		return u.Name, nil
	})
	if err != nil {
		discard()
		return nil, err
	}

	entries := make([]model.FileEntry, 0, len(staged))
	for i, u := range staged {
		entry, err := u.Commit()
		metrics.RecordUpload(bytes[i], err == nil)
		if err != nil {
			staged = staged[i+1:]
			discard()
			return entries, err
		}
		log.Info("File uploaded: %s (%d bytes)", entry.Name, entry.Size)
		s.publish(events.Event{Type: events.EventUpload, Name: entry.Name, Size: entry.Size})
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Open opens name for download. The caller records transferred bytes
// through metrics.RecordDownload once the body is written.
func (s *ShareService) Open(ctx context.Context, name string) (*FileContent, error) {
	content, err := s.store.Open(ctx, name)
	if err != nil {
		metrics.RecordDownload(0, false)
		return nil, err
	}
	return content, nil
}

// Delete removes name
func (s *ShareService) Delete(ctx context.Context, name string) error {
	err := s.store.Delete(ctx, name)
	metrics.RecordDelete(err == nil)
	if err != nil {
		return err
	}
	log.Info("File deleted: %s", name)
	s.publish(events.Event{Type: events.EventDelete, Name: name})
	return nil
}

func (s *ShareService) publish(e events.Event) {
	if s.events != nil {
		s.events.Publish(e)
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
