// Package fs writes generated units below a local directory.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"eavcore/internal/output/sink"
)

const tempPattern = ".tmp-*"

// Store maps keys to relative file paths under root. Writes land in a temp
// file first and are renamed into place, so readers never observe a partial
// unit.
type Store struct {
	root string
}

// New returns a store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	if root == "" {
		root = "./generated"
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, errors.Wrapf(err, "create output root %s", root)
	}
	return &Store{root: root}, nil
}

// Root returns the directory units are written under.
func (s *Store) Root() string { return s.root }

func (s *Store) Driver() sink.Driver { return sink.DriverFilesystem }

// sanitizeKey rejects keys that would escape root.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("empty key")
	}
	if strings.Contains(key, "..") {
		return "", errors.Newf("invalid key %q contains '..'", key)
	}
	if strings.HasPrefix(key, "/") || filepath.IsAbs(key) {
		return "", errors.Newf("invalid absolute key %q", key)
	}
	return filepath.ToSlash(filepath.Clean(key)), nil
}

func (s *Store) pathFor(key string) (string, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(k)), nil
}

func (s *Store) Write(ctx context.Context, key string, content []byte, opts sink.WriteOptions) (sink.Info, error) {
	if err := ctx.Err(); err != nil {
		return sink.Info{}, sink.NewWriteError(sink.DriverFilesystem, key, err)
	}
	info, err := s.write(key, content, opts)
	if err != nil {
		return sink.Info{}, sink.NewWriteError(sink.DriverFilesystem, key, err)
	}
	return info, nil
}

func (s *Store) write(key string, content []byte, opts sink.WriteOptions) (sink.Info, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return sink.Info{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return sink.Info{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), tempPattern)
	if err != nil {
		return sink.Info{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return sink.Info{}, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return sink.Info{}, err
	}
	if err := tmp.Close(); err != nil {
		return sink.Info{}, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return sink.Info{}, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return sink.Info{}, err
	}
	ct := opts.ContentType
	if ct == "" {
		ct = contentType(path)
	}
	return sink.Info{Key: key, Size: st.Size(), ContentType: ct, ETag: etag(content), LastModified: st.ModTime().UTC()}, nil
}

func (s *Store) Read(ctx context.Context, key string) (sink.Info, []byte, error) {
	if err := ctx.Err(); err != nil {
		return sink.Info{}, nil, err
	}
	path, err := s.pathFor(key)
	if err != nil {
		return sink.Info{}, nil, err
	}
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return sink.Info{}, nil, errors.Wrapf(sink.ErrNotFound, "key %s", key)
	}
	if err != nil {
		return sink.Info{}, nil, errors.Wrapf(err, "read %s", key)
	}
	st, err := os.Stat(path)
	if err != nil {
		return sink.Info{}, nil, errors.Wrapf(err, "stat %s", key)
	}
	info := sink.Info{Key: key, Size: st.Size(), ContentType: contentType(path), ETag: etag(content), LastModified: st.ModTime().UTC()}
	return info, content, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]sink.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var infos []sink.Info
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}
		st, err := d.Info()
		if err != nil {
			return err
		}
		infos = append(infos, sink.Info{Key: key, Size: st.Size(), ContentType: contentType(path), LastModified: st.ModTime().UTC()})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", s.root)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func etag(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "text/x-go; charset=utf-8"
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".yaml", ".yml":
		return "application/yaml"
	}
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
