package sink

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriteError(t *testing.T) {
	assert.NoError(t, NewWriteError(DriverMemory, "k", nil))

	cause := errors.New("disk full")
	err := NewWriteError(DriverFilesystem, "units/Book.go", cause)
	var we *WriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, DriverFilesystem, we.Driver)
	assert.Equal(t, "units/Book.go", we.Key)
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), `output fs: write "units/Book.go": disk full`)

	again := NewWriteError(DriverS3, "other", err)
	assert.Same(t, we, again.(*WriteError))
}
