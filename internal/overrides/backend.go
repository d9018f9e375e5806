package overrides

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/studio-b12/gowebdav"

	"meetingmedia/internal/config"
	"meetingmedia/internal/fileutil"
	"meetingmedia/internal/services"
)

// DAVScheme prefixes URLs of files held in a WebDAV store.
const DAVScheme = "webdav://"

// Backend is the file tree a store lives in. Names are slash separated and
// relative to the store root.
type Backend interface {
	ReadDir(dir string) ([]fs.FileInfo, error)
	Open(name string) (io.ReadCloser, error)
	Write(name string, r io.Reader) error
	Remove(name string) error
	Rename(oldName, newName string) error
	// Locate tells callers how to reach a stored file: a local path for
	// filesystem stores, a DAVScheme URL otherwise.
	Locate(name string) (url, localPath string)
}

// NewBackend selects the backend configured in the congregation section.
func NewBackend(cfg *config.Config) (Backend, error) {
	c := cfg.Congregation
	switch {
	case c.LocalDir != "":
		return NewLocalBackend(c.LocalDir), nil
	case c.URL != "":
		timeout := time.Duration(cfg.Remote.TimeoutSeconds) * time.Second
		return NewDAVBackend(c.URL, c.Username, c.Password, c.Root, timeout), nil
	}
	return nil, services.Wrap(services.ErrConfiguration, "congregation", "select backend",
		errors.New("congregation store needs url or local_dir"))
}

// DAVBackend stores overrides on a WebDAV server.
type DAVBackend struct {
	client *gowebdav.Client
	root   string
}

// NewDAVBackend returns a WebDAV backend rooted at root on the server.
func NewDAVBackend(url, username, password, root string, timeout time.Duration) *DAVBackend {
	client := gowebdav.NewClient(url, username, password)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	if root == "" {
		root = "/"
	}
	return &DAVBackend{client: client, root: root}
}

func (b *DAVBackend) full(name string) string {
	return path.Join(b.root, name)
}

func (b *DAVBackend) ReadDir(dir string) ([]fs.FileInfo, error) {
	infos, err := b.client.ReadDir(b.full(dir))
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return nil, fs.ErrNotExist
		}
		return nil, err
	}
	return infos, nil
}

func (b *DAVBackend) Open(name string) (io.ReadCloser, error) {
	return b.client.ReadStream(b.full(name))
}

func (b *DAVBackend) Write(name string, r io.Reader) error {
	if err := b.client.MkdirAll(path.Dir(b.full(name)), 0o755); err != nil {
		return err
	}
	return b.client.WriteStream(b.full(name), r, 0o644)
}

func (b *DAVBackend) Remove(name string) error {
	return b.client.Remove(b.full(name))
}

func (b *DAVBackend) Rename(oldName, newName string) error {
	return b.client.Rename(b.full(oldName), b.full(newName), false)
}

func (b *DAVBackend) Locate(name string) (string, string) {
	return DAVScheme + strings.TrimPrefix(b.full(name), "/"), ""
}

// Fetch reads a DAVScheme URL, so the backend can serve the media cache.
func (b *DAVBackend) Fetch(_ context.Context, url string) (io.ReadCloser, int64, error) {
	if !strings.HasPrefix(url, DAVScheme) {
		return nil, 0, fmt.Errorf("not a webdav url: %s", url)
	}
	full := "/" + strings.TrimPrefix(url, DAVScheme)
	size := int64(-1)
	if info, err := b.client.Stat(full); err == nil {
		size = info.Size()
	} else if gowebdav.IsErrNotFound(err) {
		return nil, 0, services.Wrap(services.ErrUnavailable, url, "fetch", err)
	}
	body, err := b.client.ReadStream(full)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrNetwork, url, "fetch", err)
	}
	return body, size, nil
}

// LocalBackend stores overrides in a directory.
type LocalBackend struct {
	root string
}

// NewLocalBackend returns a backend rooted at dir.
func NewLocalBackend(dir string) *LocalBackend {
	return &LocalBackend{root: dir}
}

func (b *LocalBackend) full(name string) string {
	return filepath.Join(b.root, filepath.FromSlash(name))
}

func (b *LocalBackend) ReadDir(dir string) ([]fs.FileInfo, error) {
	entries, err := os.ReadDir(b.full(dir))
	if err != nil {
		return nil, err
	}
	infos := make([]fs.FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (b *LocalBackend) Open(name string) (io.ReadCloser, error) {
	return os.Open(b.full(name))
}

func (b *LocalBackend) Write(name string, r io.Reader) error {
	_, err := fileutil.WriteAtomic(b.full(name), r)
	return err
}

func (b *LocalBackend) Remove(name string) error {
	return os.Remove(b.full(name))
}

func (b *LocalBackend) Rename(oldName, newName string) error {
	target := b.full(newName)
	if _, err := os.Stat(target); err == nil {
		return fmt.Errorf("rename %s: %w", newName, fs.ErrExist)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.Rename(b.full(oldName), target)
}

func (b *LocalBackend) Locate(name string) (string, string) {
	return "", b.full(name)
}
