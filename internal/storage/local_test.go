package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/restock-forecast/internal/config"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewLocalStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.UploadObject(ctx, "models/A.json", []byte(`{"v":1}`)))
	require.NoError(t, s.UploadObject(ctx, "models/B.json", []byte(`{"v":22}`)))

	got, err := s.GetObject(ctx, "models/A.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(got))

	objects, err := s.ListObjects(ctx, "models")
	require.NoError(t, err)
	keys := make(map[string]int64)
	for _, o := range objects {
		keys[o.Key] = o.Size
	}
	assert.Equal(t, map[string]int64{"models/A.json": 7, "models/B.json": 8}, keys)

	require.NoError(t, s.DeleteObject(ctx, "models/A.json"))
	_, err = s.GetObject(ctx, "models/A.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.NoError(t, s.DeleteObject(ctx, "models/A.json"))
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewLocalStore(filepath.Join(root, "artifacts"))
	require.NoError(t, err)

	for _, key := range []string{"../escaped.json", "models/../../escaped.json", "/etc/passwd", ".."} {
		assert.ErrorIs(t, s.UploadObject(ctx, key, []byte("x")), ErrInvalidKey, key)
		_, err := s.GetObject(ctx, key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
		assert.ErrorIs(t, s.DeleteObject(ctx, key), ErrInvalidKey, key)
	}

	_, err = os.Stat(filepath.Join(root, "escaped.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStoreMissingObject(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.GetObject(context.Background(), "models/missing.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := New(config.ArtifactConfig{Backend: "local", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, s)

	_, err = New(config.ArtifactConfig{Backend: "ftp"})
	assert.Error(t, err)

	_, err = NewLocalStore("")
	assert.Error(t, err)
}
