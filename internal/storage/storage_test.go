package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewLocalStore(root, "http://cdn.test/files")
	require.NoError(t, err)

	url, err := s.Upload(ctx, "reception-point", "p1/images", "a.png", pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.test/files/reception-point/p1/images/a.png", url)

	b, err := os.ReadFile(filepath.Join(root, "reception-point", "p1", "images", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, b)

	_, err = s.Upload(ctx, "reception-point", "p1/images", "b.png", pngHeader)
	require.NoError(t, err)

	keys, err := s.List(ctx, "reception-point", "p1/images")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1/images/a.png", "p1/images/b.png"}, keys)

	require.NoError(t, s.Delete(ctx, "reception-point", "p1/images", "a.png"))
	require.NoError(t, s.Delete(ctx, "reception-point", "p1/images", "a.png"))

	require.NoError(t, DeletePrefix(ctx, s, "reception-point", "p1", nil))
	keys, err = s.List(ctx, "reception-point", "p1")
	require.NoError(t, err)
	assert.Empty(t, keys)

	keys, err = s.List(ctx, "reception-point", "missing")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)
	_, err = s.Upload(context.Background(), "b", "../../etc", "passwd", []byte("x"))
	assert.Error(t, err)
}

func TestMemoryStoreFailureInjection(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("")
	boom := errors.New("boom")
	s.Fail = func(op, bucket, key string) error {
		if op == "upload" && key == "p/images/bad.png" {
			return boom
		}
		return nil
	}

	_, err := s.Upload(ctx, "b", "p/images", "ok.png", pngHeader)
	require.NoError(t, err)
	_, err = s.Upload(ctx, "b", "p/images", "bad.png", pngHeader)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, s.Len())

	keys, err := s.List(ctx, "b", "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"p/images/ok.png"}, keys)
}

func TestKeyHelpers(t *testing.T) {
	assert.Equal(t, "p1/images/a.png", Key("/p1/images/", "a.png"))
	prefix, name := Split("p1/images/a.png")
	assert.Equal(t, "p1/images", prefix)
	assert.Equal(t, "a.png", name)
	assert.Equal(t, "image/png", ContentType("a.bin", pngHeader))
	assert.Equal(t, "image/jpeg", ContentType("a.jpg", nil))
}

func TestNewSelectsDriver(t *testing.T) {
	s, err := New(context.Background(), Config{Driver: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = New(context.Background(), Config{Driver: "ftp"}, nil)
	assert.Error(t, err)

	s, err = New(context.Background(), Config{Driver: "s3", S3Endpoint: "localhost:9000", S3AccessKey: "k", S3SecretKey: "s"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/b/p/a.png", s.URL("b", "p", "a.png"))
}
