package resources

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FSNamespace serves resources from an fs.FS. When root is set the
// namespace is backed by that directory and RealPath reports local paths.
type FSNamespace struct {
	fsys fs.FS
	root string
}

// NewFS creates a namespace over fsys without local path mapping.
func NewFS(fsys fs.FS) *FSNamespace {
	return &FSNamespace{fsys: fsys}
}

// NewDir creates a namespace rooted at a directory on disk.
func NewDir(root string) *FSNamespace {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return &FSNamespace{fsys: os.DirFS(abs), root: abs}
}

// List implements Namespace.
func (n *FSNamespace) List(dir string) ([]string, bool) {
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}

	entries, err := fs.ReadDir(n.fsys, fsPath(dir))
	if err != nil {
		return nil, false
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		p := dir + entry.Name()
		if entry.IsDir() {
			p += "/"
		}
		paths = append(paths, p)
	}
	return paths, true
}

// Open implements Namespace.
func (n *FSNamespace) Open(path string) (io.ReadCloser, error) {
	return n.fsys.Open(fsPath(path))
}

// RealPath implements Namespace.
func (n *FSNamespace) RealPath(path string) (string, bool) {
	if n.root == "" {
		return path, false
	}
	return filepath.Join(n.root, filepath.FromSlash(strings.TrimPrefix(path, "/"))), true
}

// fsPath converts a namespace path to an fs.FS path.
func fsPath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "."
	}
	return p
}

var _ Namespace = (*FSNamespace)(nil)
