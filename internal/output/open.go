package output

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	fsstore "eavcore/internal/infra/output/fs"
	memorystore "eavcore/internal/infra/output/memory"
	s3store "eavcore/internal/infra/output/s3"
)

// S3Config re-exports the S3 driver configuration.
type S3Config = s3store.Config

// Config selects and configures a driver.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open returns the sink selected by cfg.Driver (default fs).
func Open(ctx context.Context, cfg Config) (Sink, error) {
	driver := Driver(strings.ToLower(strings.TrimSpace(string(cfg.Driver))))
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, errors.Newf("unknown output driver %q", cfg.Driver)
	}
}

// NewFilesystem returns a sink writing below root.
func NewFilesystem(root string) (Sink, error) {
	s, err := fsstore.New(root)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewS3 returns a sink writing to an S3-compatible bucket.
func NewS3(ctx context.Context, cfg S3Config) (Sink, error) {
	s, err := s3store.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewMemory returns an in-memory sink.
func NewMemory() Sink { return memorystore.New() }

// NewMockS3ForTests exposes the fake-transport S3 sink for cross-package tests.
func NewMockS3ForTests() Sink { return s3store.NewMockForTests() }
