package resources

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFSNamespace_List(t *testing.T) {
	ns := NewFS(fstest.MapFS{
		"app/config.js":     {Data: []byte("run(app);")},
		"app/lib/helper.js": {Data: []byte("")},
		"app/public/a.html": {Data: []byte("")},
	})

	entries, ok := ns.List("/app/")
	require.True(t, ok)
	assert.Equal(t, []string{"/app/config.js", "/app/lib/", "/app/public/"}, entries)

	entries, ok = ns.List("/app/lib/")
	require.True(t, ok)
	assert.Equal(t, []string{"/app/lib/helper.js"}, entries)

	_, ok = ns.List("/missing/")
	assert.False(t, ok)
}

func TestFSNamespace_ReadString(t *testing.T) {
	ns := NewFS(fstest.MapFS{"app/config.js": {Data: []byte("run(app);")}})

	got, err := ReadString(ns, "/app/config.js")
	require.NoError(t, err)
	assert.Equal(t, "run(app);", got)

	_, err = ReadString(ns, "/app/other.js")
	require.Error(t, err)
}

func TestDirNamespace_RealPath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.js"), []byte("x"), 0644))

	ns := NewDir(root)
	p, local := ns.RealPath("/config.js")
	assert.True(t, local)
	assert.Equal(t, filepath.Join(root, "config.js"), p)

	_, err := os.Stat(p)
	require.NoError(t, err)

	p, local = NewFS(fstest.MapFS{}).RealPath("/config.js")
	assert.False(t, local)
	assert.Equal(t, "/config.js", p)
}

func TestBlobPrefix(t *testing.T) {
	assert.Equal(t, "", blobPrefix("/"))
	assert.Equal(t, "app/", blobPrefix("/app/"))
	assert.Equal(t, "app/lib/", blobPrefix("/app/lib"))
}

func TestNewBlobNamespace_Validation(t *testing.T) {
	logger := zap.NewNop()

	_, err := NewBlobNamespace("", "scripts", logger)
	require.Error(t, err)

	_, err = NewBlobNamespace("AccountName=dev", "scripts", logger)
	require.Error(t, err)

	_, err = NewBlobNamespace("AccountName=dev;AccountKey=a2V5", "", logger)
	require.Error(t, err)

	ns, err := NewBlobNamespace("AccountName=devstoreaccount1;AccountKey=a2V5;BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1/", "scripts", logger)
	require.NoError(t, err)

	p, local := ns.RealPath("/app/config.js")
	assert.False(t, local)
	assert.Equal(t, "http://127.0.0.1:10000/devstoreaccount1/scripts/app/config.js", p)
}
