package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dairy-portal-api/pkg/config"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	disk, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = disk.Save("a/b.txt", []byte("hello"))
	require.NoError(t, err)

	f, err := disk.Open("a/b.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "hello", string(data))

	require.NoError(t, disk.Delete("a/b.txt"))
	require.NoError(t, disk.Delete("a/b.txt"))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	disk, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = disk.Save("../escape.txt", []byte("x"))
	require.ErrorIs(t, err, ErrInvalidPath)
	_, err = disk.Open("/etc/passwd")
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	disk, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = disk.Save("old.csv", []byte("old"))
	require.NoError(t, err)
	_, err = disk.Save("new.csv", []byte("new"))
	require.NoError(t, err)

	oldPath, err := disk.Path("old.csv")
	require.NoError(t, err)
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, past, past))

	deleted, err := disk.CleanupOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.csv"}, deleted)

	newPath, _ := disk.Path("new.csv")
	_, err = os.Stat(newPath)
	assert.NoError(t, err)
}

func TestLocalBlobStorePut(t *testing.T) {
	dir := t.TempDir()
	disk, err := NewLocalStorage(dir)
	require.NoError(t, err)
	store := NewLocalBlobStore(disk, "http://localhost:8080/files/")

	obj, err := store.Put(context.Background(), "drafts/x.pdf", bytes.NewReader([]byte("pdf")), 3, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/drafts/x.pdf", obj.URL)
	assert.EqualValues(t, 3, obj.Size)

	_, err = os.Stat(filepath.Join(dir, "drafts", "x.pdf"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(context.Background(), "drafts/x.pdf"))
}

func TestObjectKeySanitises(t *testing.T) {
	key := ObjectKey("/uploads/", `C:\fakepath\My Report (final).xlsx`)
	assert.True(t, strings.HasPrefix(key, "uploads/"))
	assert.True(t, strings.HasSuffix(key, "My_Report_final_.xlsx"))
	assert.NotContains(t, key, " ")

	assert.True(t, strings.HasSuffix(ObjectKey("", "../.."), "_file"))
}

func TestNewBlobStoreSelectsDriver(t *testing.T) {
	store, err := NewBlobStore(context.Background(), config.StorageConfig{Driver: config.StorageDriverLocal, LocalDir: t.TempDir()}, "http://api")
	require.NoError(t, err)
	_, ok := store.(*LocalBlobStore)
	assert.True(t, ok)

	_, err = NewBlobStore(context.Background(), config.StorageConfig{Driver: "ftp"}, "")
	require.Error(t, err)
}
