package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/yal42d-debug/dosya-paylas/internal/filename"
	model "github.com/yal42d-debug/dosya-paylas/pkg/share"
)

const tempPrefix = ".share-"

// FileContent is an open file ready to be served. The caller must Close it.
type FileContent struct {
	*os.File
	Name     string
	Size     int64
	ModTime  time.Time
	MimeType string
}

// Store reads and writes files under the registry's current root
type Store struct {
	registry *Registry
}

// NewStore creates a store bound to registry
func NewStore(registry *Registry) *Store {
	return &Store{registry: registry}
}

// List returns the regular, non-hidden files of the current root. A read
// failure yields an empty list since the root may be mid-relocation.
func (s *Store) List(ctx context.Context) []model.FileEntry {
	root := s.registry.Root()
	entries, err := os.ReadDir(root)
	if err != nil {
		log.Debug("Failed to read shared directory %s: %v", root, err)
		return []model.FileEntry{}
	}

	files := make([]model.FileEntry, 0, len(entries))
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		_, info, err := resolve(root, name)
		if err != nil {
			continue
		}
		files = append(files, model.FileEntry{
			Name: name,
			Size: info.Size(),
			Date: info.ModTime(),
		})
	}
	return files
}

// Save normalizes rawName and stores r under it. The content is written to a
// hidden temp file and renamed into place, so readers never see a partial
// file and concurrent saves of one name leave the last completed write.
func (s *Store) Save(ctx context.Context, rawName string, r io.Reader) (*model.FileEntry, error) {
	staged, err := s.Stage(ctx, rawName, r)
	if err != nil {
		return nil, err
	}
	return staged.Commit()
}

// Staged is an upload written to a hidden temp file in the root it was
// started in. Nothing is visible under its name until Commit.
type Staged struct {
	Name    string
	root    string
	tmpPath string
}

// Stage normalizes rawName and writes r to a temp file. The caller must
// Commit or Discard the result.
func (s *Store) Stage(ctx context.Context, rawName string, r io.Reader) (*Staged, error) {
	name, err := filename.Normalize(rawName)
	if err != nil {
		return nil, err
	}

	root := s.registry.Root()
	tmp, err := os.OpenFile(filepath.Join(root, tempPrefix+uuid.NewString()+".part"), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, &StoreError{Name: name, Op: "create", Err: err}
	}
	tmpPath := tmp.Name()
	written := false
	defer func() {
		if !written {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		return nil, &StoreError{Name: name, Op: "write", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return nil, &StoreError{Name: name, Op: "sync", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return nil, &StoreError{Name: name, Op: "close", Err: err}
	}
	written = true
	return &Staged{Name: name, root: root, tmpPath: tmpPath}, nil
}

// Commit renames the temp file over the final name
func (u *Staged) Commit() (*model.FileEntry, error) {
	target := filepath.Join(u.root, u.Name)
	if err := os.Rename(u.tmpPath, target); err != nil {
		u.Discard()
		return nil, &StoreError{Name: u.Name, Op: "rename", Err: err}
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, &StoreError{Name: u.Name, Op: "stat", Err: err}
	}
	return &model.FileEntry{Name: u.Name, Size: info.Size(), Date: info.ModTime()}, nil
}

// Discard removes the temp file; it is a no-op after Commit
func (u *Staged) Discard() {
	os.Remove(u.tmpPath)
}

// Open opens name for reading
func (s *Store) Open(ctx context.Context, name string) (*FileContent, error) {
	if err := filename.Validate(name); err != nil {
		return nil, err
	}

	path, info, err := resolve(s.registry.Root(), name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open %q: %w", name, err)
	}

	mimeType := "application/octet-stream"
	if mt, err := mimetype.DetectReader(f); err == nil {
		mimeType = mt.String()
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("rewind %q: %w", name, err)
	}

	return &FileContent{
		File:     f,
		Name:     name,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		MimeType: mimeType,
	}, nil
}

// Delete removes name from the current root. A symlink is removed, not its target.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := filename.Validate(name); err != nil {
		return err
	}

	root := s.registry.Root()
	if _, _, err := resolve(root, name); err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(root, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete %q: %w", name, err)
	}
	return nil
}

// resolve maps a validated name onto a regular file inside root. Both the
// joined path and its symlink target must stay within root.
func resolve(root, name string) (string, os.FileInfo, error) {
	path := filepath.Join(root, name)
	if !within(root, path) {
		return "", nil, ErrNotFound
	}

	info, err := os.Lstat(path)
	if err != nil {
		return "", nil, ErrNotFound
	}

	if info.Mode()&os.ModeSymlink != 0 {
		realRoot, err := filepath.EvalSymlinks(root)
		if err != nil {
			return "", nil, ErrNotFound
		}
		target, err := filepath.EvalSymlinks(path)
		if err != nil || !within(realRoot, target) {
			return "", nil, ErrNotFound
		}
		if info, err = os.Stat(target); err != nil {
			return "", nil, ErrNotFound
		}
	}

	if !info.Mode().IsRegular() {
		return "", nil, ErrNotFound
	}
	return path, info, nil
}

// within reports whether path is a strict descendant of root
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// ctxReader stops a copy once ctx is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
