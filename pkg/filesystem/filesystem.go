// Package filesystem is the single point of disk contact for the catalog. It
// narrows file-system access to the handful of operations the scan pipeline
// needs and reports a distinguishable not-found condition so callers can treat
// vanished optional paths as empty results.
package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kinoteka/kinoteka/pkg/errcodes"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// systemNames are well-known junk entries that should never surface as
// library content or contribute to change detection.
var systemNames = map[string]struct{}{
	"thumbs.db":                 {},
	"desktop.ini":               {},
	"$recycle.bin":              {},
	"system volume information": {},
	"@eadir":                    {},
	".ds_store":                 {},
}

// Info describes a single file or directory.
type Info struct {
	Name    string
	Path    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// Hidden reports whether the entry is a dotfile.
func (i *Info) Hidden() bool {
	return strings.HasPrefix(i.Name, ".")
}

// System reports whether the entry is a well-known OS artifact.
func (i *Info) System() bool {
	_, ok := systemNames[strings.ToLower(i.Name)]
	return ok
}

// Publishable reports whether the entry may appear as library content.
func (i *Info) Publishable() bool {
	return !i.Hidden() && !i.System()
}

// FS is the accessor consumed by the resolve and refresh pipeline.
type FS interface {
	Exists(path string) bool
	Stat(path string) (*Info, error)
	ReadDir(path string) ([]*Info, error)
	Delete(path string) error
	ResolveShortcut(path string) (string, error)
}

// Service implements FS over an afero file system so tests can run against an
// in-memory tree.
type Service struct {
	fs afero.Fs
}

func NewService(afs afero.Fs) *Service {
	return &Service{fs: afs}
}

// NewOSService returns a Service backed by the real disk.
func NewOSService() *Service {
	return NewService(afero.NewOsFs())
}

func (s *Service) Exists(path string) bool {
	_, err := s.fs.Stat(path)
	return err == nil
}

// Stat returns the entry at path. A missing path yields
// errcodes.NotFound("Path"); any other failure is surfaced as-is.
func (s *Service) Stat(path string) (*Info, error) {
	fi, err := s.fs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errcodes.NotFound("Path")
		}
		return nil, errors.WithStack(err)
	}
	return infoFrom(path, fi), nil
}

// ReadDir enumerates the immediate children of path in directory order.
// Filtering is the caller's concern.
func (s *Service) ReadDir(path string) ([]*Info, error) {
	entries, err := afero.ReadDir(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errcodes.NotFound("Path")
		}
		return nil, errors.WithStack(err)
	}

	infos := make([]*Info, 0, len(entries))
	for _, fi := range entries {
		infos = append(infos, infoFrom(filepath.Join(path, fi.Name()), fi))
	}
	return infos, nil
}

func (s *Service) Delete(path string) error {
	err := s.fs.RemoveAll(path)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// ResolveShortcut follows symlink indirection when the underlying file system
// supports it. A path that is not a link (or a file system without links, like
// the in-memory one used in tests) is returned unchanged.
func (s *Service) ResolveShortcut(path string) (string, error) {
	lr, ok := s.fs.(afero.LinkReader)
	if !ok {
		return path, nil
	}

	target, err := lr.ReadlinkIfPossible(path)
	if err != nil {
		// Not a link, or links unsupported on this path.
		return path, nil
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return filepath.Clean(target), nil
}

func infoFrom(path string, fi os.FileInfo) *Info {
	return &Info{
		Name:    fi.Name(),
		Path:    path,
		IsDir:   fi.IsDir(),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}
}
