package blobStore

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, store docModel.BlobStore) {
	t.Helper()
	ctx := context.Background()
	key := UploadKey("uploads", "doc-1", "report.pdf")

	require.NoError(t, store.Put(ctx, key, []byte("%PDF-1.4"), "application/pdf"))
	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)

	require.NoError(t, store.Put(ctx, key, []byte("v2"), "application/pdf"))
	data, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.True(t, errors.Is(err, docModel.ErrBlobNotFound))
	require.NoError(t, store.Delete(ctx, key))
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestFS(t *testing.T) {
	s, err := NewFS(t.TempDir())
	require.NoError(t, err)
	exercise(t, s)

	err = s.Put(context.Background(), "../escape", []byte("x"), "")
	assert.Error(t, err)
}

func TestUploadKey(t *testing.T) {
	assert.Equal(t, "uploads/d1/a.txt", UploadKey("uploads", "d1", "a.txt"))
	assert.Equal(t, "uploads/d1/evil.txt", UploadKey("uploads", "d1", "../../evil.txt"))
	assert.Equal(t, "uploads/d1/b.doc", UploadKey("uploads", "d1", `C:\tmp\b.doc`))
	assert.Equal(t, "uploads/d1/upload", UploadKey("uploads", "d1", ""))
}

func TestNew(t *testing.T) {
	s, err := New(context.Background(), config.BlobSettings{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	_, err = New(context.Background(), config.BlobSettings{Backend: "gcs"})
	assert.Error(t, err)

	_, err = New(context.Background(), config.BlobSettings{Backend: "s3"})
	assert.Error(t, err)
}

// Runs against a real bucket when S3_TEST_BUCKET is set; credentials come from the AWS chain.
func TestS3(t *testing.T) {
	bucket := os.Getenv("S3_TEST_BUCKET")
	if bucket == "" {
		t.Skip("S3_TEST_BUCKET not set")
	}
	s, err := NewS3(context.Background(), config.BlobSettings{
		Bucket:   bucket,
		Region:   os.Getenv("AWS_REGION"),
		Endpoint: os.Getenv("S3_ENDPOINT"),
	})
	require.NoError(t, err)
	exercise(t, s)
}
