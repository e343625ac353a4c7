package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eavcore/internal/output/sink"
)

func TestMemoryOverwriteAndCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	assert.Equal(t, sink.DriverMemory, s.Driver())

	buf := []byte("v1")
	_, err := s.Write(ctx, "Book.yaml", buf, sink.WriteOptions{ContentType: "application/yaml"})
	require.NoError(t, err)
	buf[0] = 'x'
	_, content, err := s.Read(ctx, "Book.yaml")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(content))

	_, err = s.Write(ctx, "Book.yaml", []byte("v2"), sink.WriteOptions{})
	require.NoError(t, err)
	info, content, err := s.Read(ctx, "Book.yaml")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(content))
	assert.Equal(t, int64(2), info.Size)

	_, _, err = s.Read(ctx, "Missing.yaml")
	assert.True(t, errors.Is(err, sink.ErrNotFound))
}

func TestMemoryRejectsEmptyKey(t *testing.T) {
	_, err := New().Write(context.Background(), " ", nil, sink.WriteOptions{})
	var we *sink.WriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, sink.DriverMemory, we.Driver)
}

func TestMemoryConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	var wg sync.WaitGroup
	for _, key := range []string{"a/1", "a/2", "b/1", "a/3"} {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			_, err := s.Write(ctx, k, []byte(k), sink.WriteOptions{})
			assert.NoError(t, err)
		}(key)
	}
	wg.Wait()
	list, err := s.List(ctx, "a/")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"a/1", "a/2", "a/3"}, []string{list[0].Key, list[1].Key, list[2].Key})
}
