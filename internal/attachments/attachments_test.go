package attachments

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"receipt.pdf":          "receipt.pdf",
		"my photo (1).jpg":     "my_photo__1_.jpg",
		"../../etc/passwd":     "passwd",
		`C:\Users\me\scan.png`: "scan.png",
		"résumé.pdf":           "r_sum_.pdf",
		"":                     "file",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
}

func TestKeySet(t *testing.T) {
	keys := NewKeySet("CLM-20250301120000-abc123")

	first := keys.Next("photo.jpg")
	second := keys.Next("photo.jpg")
	other := keys.Next("estimate.pdf")

	assert.Equal(t, "CLM-20250301120000-abc123/photo.jpg", first)
	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(second, "CLM-20250301120000-abc123/photo-"))
	assert.True(t, strings.HasSuffix(second, ".jpg"))
	assert.Equal(t, "CLM-20250301120000-abc123/estimate.pdf", other)
}

func TestFSStore(t *testing.T) {
	root := t.TempDir()
	store, err := NewFSStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	key, err := store.Put(ctx, "CLM-1/receipt.pdf", "application/pdf", strings.NewReader("%PDF-1.4"), 8)
	require.NoError(t, err)
	assert.Equal(t, "CLM-1/receipt.pdf", key)

	data, err := os.ReadFile(filepath.Join(root, "CLM-1", "receipt.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	require.NoError(t, store.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(root, "CLM-1", "receipt.pdf"))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, store.Delete(ctx, key), "deleting twice is fine")

	_, err = store.Put(ctx, "../escape.txt", "text/plain", strings.NewReader("x"), 1)
	assert.Error(t, err)
}

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	deletes []string
	err     error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.puts = append(f.puts, params)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	client := &fakeS3{}
	store := NewS3StoreWithClient(client, "heron-claims", "/claims/")
	ctx := context.Background()

	key, err := store.Put(ctx, "CLM-1/photo.png", "image/png", strings.NewReader("png"), 3)
	require.NoError(t, err)
	assert.Equal(t, "claims/CLM-1/photo.png", key)

	require.Len(t, client.puts, 1)
	put := client.puts[0]
	assert.Equal(t, "heron-claims", aws.ToString(put.Bucket))
	assert.Equal(t, "image/png", aws.ToString(put.ContentType))
	assert.Equal(t, int64(3), aws.ToInt64(put.ContentLength))

	require.NoError(t, store.Delete(ctx, key))
	assert.Equal(t, []string{"claims/CLM-1/photo.png"}, client.deletes)

	client.err = errors.New("access denied")
	_, err = store.Put(ctx, "CLM-2/photo.png", "image/png", strings.NewReader("png"), 3)
	assert.ErrorContains(t, err, "access denied")
}

func TestNew(t *testing.T) {
	store, err := New(context.Background(), domain.AttachmentsConfig{Backend: "fs", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FSStore{}, store)

	_, err = New(context.Background(), domain.AttachmentsConfig{Backend: "ftp"})
	assert.Error(t, err)

	_, err = New(context.Background(), domain.AttachmentsConfig{Backend: "s3"})
	assert.Error(t, err, "bucket is required")
}
