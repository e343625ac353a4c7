package s3

import (
	"context"
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eavcore/internal/output/sink"
)

func TestMockWriteOverwritesAndReads(t *testing.T) {
	ctx := context.Background()
	s := NewMockForTests()
	assert.Equal(t, sink.DriverS3, s.Driver())
	assert.Equal(t, "mock-bucket", s.Bucket())

	first, err := s.Write(ctx, "units/Book.go", []byte("package units\n"), sink.WriteOptions{ContentType: "text/x-go"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ETag)

	second, err := s.Write(ctx, "units/Book.go", []byte("package units // v2\n"), sink.WriteOptions{ContentType: "text/x-go"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ETag, second.ETag)

	info, content, err := s.Read(ctx, "units/Book.go")
	require.NoError(t, err)
	assert.Equal(t, "package units // v2\n", string(content))
	assert.Equal(t, "text/x-go", info.ContentType)
	assert.Equal(t, second.ETag, info.ETag)
}

func TestMockReadMissing(t *testing.T) {
	_, _, err := NewMockForTests().Read(context.Background(), "missing.md")
	assert.True(t, errors.Is(err, sink.ErrNotFound), "got %v", err)
}

func TestMockListPages(t *testing.T) {
	ctx := context.Background()
	s, rt := newMock()
	for i := 0; i < 5; i++ {
		_, err := s.Write(ctx, fmt.Sprintf("units/F%d.md", i), []byte("# unit"), sink.WriteOptions{})
		require.NoError(t, err)
	}
	_, err := s.Write(ctx, "other/X.md", []byte("x"), sink.WriteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 6, rt.puts)

	list, err := s.List(ctx, "units/")
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.Equal(t, "units/F0.md", list[0].Key)
	assert.Equal(t, "units/F4.md", list[4].Key)
	assert.Equal(t, int64(len("# unit")), list[2].Size)
}

func TestMockWriteDenied(t *testing.T) {
	s, rt := newMock()
	rt.denyWrite = true
	_, err := s.Write(context.Background(), "units/Book.go", []byte("x"), sink.WriteOptions{})
	var we *sink.WriteError
	require.True(t, errors.As(err, &we), "got %v", err)
	assert.Equal(t, sink.DriverS3, we.Driver)
	assert.Equal(t, "units/Book.go", we.Key)

	_, err = s.Write(context.Background(), "", []byte("x"), sink.WriteOptions{})
	require.True(t, errors.As(err, &we))
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}

func TestNewWithStaticCredentials(t *testing.T) {
	s, err := New(context.Background(), Config{Bucket: "units", Endpoint: "http://localhost:9000", AccessKeyID: "a", SecretAccessKey: "b", PathStyle: true})
	require.NoError(t, err)
	assert.Equal(t, "units", s.Bucket())
}

func TestDecodeChunked(t *testing.T) {
	dec, ok := decodeChunked([]byte("3\r\nabc\r\n0\r\n\r\n"))
	require.True(t, ok)
	assert.Equal(t, "abc", string(dec))

	dec, ok = decodeChunked([]byte("4;chunk-signature=x\r\nab\r\n\r\n0\r\n"))
	require.True(t, ok)
	assert.Equal(t, "ab\r\n", string(dec))

	_, ok = decodeChunked([]byte("package units"))
	assert.False(t, ok)
	_, ok = decodeChunked([]byte("5\r\nabc\r\n0\r\n"))
	assert.False(t, ok)
}
