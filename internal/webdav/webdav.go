// Package webdav serves the shared directory read-only over WebDAV. The root
// is looked up on every call, so a relocation takes effect for the next
// request.
package webdav

import (
	"context"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"golang.org/x/net/webdav"

	"github.com/yal42d-debug/dosya-paylas/pkg/logger"
)

// Prefix is where the handler is mounted
const Prefix = "/dav"

// internalPrefix marks the server's own temp and probe files
const internalPrefix = ".share-"

var log = logger.New()

// RootFunc returns the directory to serve
type RootFunc func() string

// NewHandler returns a read-only WebDAV handler for the directory root returns
func NewHandler(root RootFunc) http.Handler {
	return readOnly(&webdav.Handler{
		Prefix:     Prefix,
		FileSystem: &FileSystem{root: root},
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				log.Debug("webdav %s %s: %v", r.Method, r.URL.Path, err)
			}
		},
	})
}

var writeMethods = map[string]bool{
	http.MethodPut:    true,
	http.MethodDelete: true,
	"MKCOL":           true,
	"COPY":            true,
	"MOVE":            true,
	"PROPPATCH":       true,
	"LOCK":            true,
}

// readOnly answers 405 to every method that would change the tree
func readOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if writeMethods[r.Method] {
			w.Header().Set("Allow", "OPTIONS, GET, HEAD, PROPFIND")
			http.Error(w, "WebDAV share is read-only, upload through the API", http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FileSystem is a read-only webdav.Dir over the current root that hides
// in-flight uploads and probe files. Writes go through the upload API so
// names are normalized and files land atomically.
type FileSystem struct {
	root RootFunc
}

func (f *FileSystem) dir() webdav.Dir {
	return webdav.Dir(f.root())
}

func (f *FileSystem) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	return fs.ErrPermission
}

func (f *FileSystem) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, fs.ErrPermission
	}
	if internal(name) {
		return nil, fs.ErrNotExist
	}
	file, err := f.dir().OpenFile(ctx, name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &filteredFile{File: file}, nil
}

func (f *FileSystem) RemoveAll(ctx context.Context, name string) error {
	return fs.ErrPermission
}

func (f *FileSystem) Rename(ctx context.Context, oldName, newName string) error {
	return fs.ErrPermission
}

func (f *FileSystem) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	if internal(name) {
		return nil, fs.ErrNotExist
	}
	return f.dir().Stat(ctx, name)
}

func internal(name string) bool {
	return strings.HasPrefix(path.Base(path.Clean("/"+name)), internalPrefix)
}

// filteredFile drops internal files from directory listings
type filteredFile struct {
	webdav.File
}

func (f *filteredFile) Readdir(count int) ([]fs.FileInfo, error) {
	infos, err := f.File.Readdir(count)
	kept := infos[:0]
	for _, info := range infos {
		if !strings.HasPrefix(info.Name(), internalPrefix) {
			kept = append(kept, info)
		}
	}
	return kept, err
}
