// Package sink holds the contracts shared by the output facade and its
// infra-backed drivers.
package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// Driver identifies an output backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

// ErrNotFound is returned by Read when no unit is stored under the key.
var ErrNotFound = errors.New("output: not found")

// WriteOptions configures a single write.
type WriteOptions struct {
	ContentType string
}

// Info describes a stored unit.
type Info struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// Sink receives generated units. Write replaces any unit already stored
// under the same key.
type Sink interface {
	Driver() Driver
	Write(ctx context.Context, key string, content []byte, opts WriteOptions) (Info, error)
	Read(ctx context.Context, key string) (Info, []byte, error)
	List(ctx context.Context, prefix string) ([]Info, error)
}

// WriteError reports a destination that could not accept a unit.
type WriteError struct {
	Driver Driver
	Key    string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("output %s: write %q: %v", e.Driver, e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// NewWriteError wraps err unless it is nil or already a *WriteError.
func NewWriteError(driver Driver, key string, err error) error {
	if err == nil {
		return nil
	}
	var we *WriteError
	if errors.As(err, &we) {
		return err
	}
	return &WriteError{Driver: driver, Key: key, Err: err}
}
