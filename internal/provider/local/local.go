// Package local implements the provider.Provider capability surface
// against a mounted filesystem root, such as a USB drive.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/edsrzf/mmap-go"
	"github.com/kipbackup/kip/internal/kerrors"
	"github.com/kipbackup/kip/internal/provider"
)

// Backend implements provider.Provider against a filesystem root, such
// as a mounted USB drive.
type Backend struct {
	rootPath string
	// mmapThreshold is the file size above which Download serves the
	// object via a memory-mapped read instead of a buffered read,
	// matching the Rust implementation's MAX_OPEN_FILE_LEN check.
	mmapThreshold int64
}

// New returns a Backend rooted at rootPath. mmapThreshold <= 0 disables
// mmap reads entirely.
func New(rootPath string, mmapThreshold int64) *Backend {
	return &Backend{rootPath: rootPath, mmapThreshold: mmapThreshold}
}

func (b *Backend) Kind() string { return "usb" }

func (b *Backend) path(key string) string {
	return filepath.Join(b.rootPath, filepath.FromSlash(key))
}

func (b *Backend) Upload(ctx context.Context, key string, src io.Reader, size int64) error {
	dst := b.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return kerrors.New(kerrors.KindIO, "local.Upload", fmt.Errorf("mkdir for %s: %w", key, err))
	}
	f, err := os.Create(dst)
	if err != nil {
		return kerrors.New(kerrors.KindIO, "local.Upload", fmt.Errorf("create %s: %w", key, err))
	}
	defer f.Close()
	if _, err := io.Copy(f, src); err != nil {
		return kerrors.New(kerrors.KindIO, "local.Upload", fmt.Errorf("write %s: %w", key, err))
	}
	return nil
}

func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	path := b.path(key)
	info, err := os.Stat(path)
	if err != nil {
		return nil, kerrors.New(kerrors.KindIO, "local.Download", fmt.Errorf("stat %s: %w", key, err))
	}

	if b.mmapThreshold > 0 && info.Size() > b.mmapThreshold {
		return b.mmapDownload(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, kerrors.New(kerrors.KindIO, "local.Download", fmt.Errorf("open %s: %w", key, err))
	}
	return f, nil
}

// mmapReadCloser adapts a memory-mapped region to io.ReadCloser,
// unmapping on Close.
type mmapReadCloser struct {
	data mmap.MMap
	file *os.File
	off  int
}

func (r *mmapReadCloser) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.off:])
	r.off += n
	return n, nil
}

func (r *mmapReadCloser) Close() error {
	err := r.data.Unmap()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func (b *Backend) mmapDownload(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, kerrors.New(kerrors.KindIO, "local.mmapDownload", fmt.Errorf("open %s: %w", path, err))
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, kerrors.New(kerrors.KindIO, "local.mmapDownload", fmt.Errorf("mmap %s: %w", path, err))
	}
	return &mmapReadCloser{data: data, file: f}, nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	path := b.path(key)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return kerrors.New(kerrors.KindIO, "local.Delete", fmt.Errorf("stat %s: %w", key, err))
	}
	if info.IsDir() {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		return kerrors.New(kerrors.KindIO, "local.Delete", fmt.Errorf("remove %s: %w", key, err))
	}
	return nil
}

func (b *Backend) Contains(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(b.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, kerrors.New(kerrors.KindIO, "local.Contains", fmt.Errorf("stat %s: %w", key, err))
	}
	return true, nil
}

func (b *Backend) ListAll(ctx context.Context, prefix string) ([]provider.ObjectInfo, error) {
	root := b.path(prefix)
	var objects []provider.ObjectInfo
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.rootPath, path)
		if err != nil {
			return err
		}
		objects = append(objects, provider.ObjectInfo{
			Key:  filepath.ToSlash(rel),
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, kerrors.New(kerrors.KindIO, "local.ListAll", fmt.Errorf("walk %s: %w", prefix, err))
	}
	return objects, nil
}

// StripHashFromPath recovers a chunk hash from a stored path
// ("<job>/chunks/<hash>.chunk").
func StripHashFromPath(path string) string {
	name := filepath.Base(path)
	if idx := strings.Index(name, "."); idx >= 0 {
		return name[:idx]
	}
	return name
}
