// Package artifact stores the durable outputs of a simulation run.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Driver identifies a concrete artifact store implementation.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // local directory (default)
	DriverMemory     Driver = "memory" // process memory (tests)
	DriverS3         Driver = "s3"     // S3 / MinIO compatible bucket
)

// ErrExists is returned by Put when the key exists and Overwrite is false.
var ErrExists = errors.New("artifact: already exists")

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = errors.New("artifact: not found")

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
	Overwrite   bool
}

// Info describes a stored artifact.
type Info struct {
	Key          string
	Size         int64
	ContentType  string
	Location     string // path or URL, for logs
	Replaced     bool   // an older artifact with the same key was replaced
	LastModified time.Time
}

// Store is the destination of run artifacts.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Driver() Driver
}

// Config selects and configures a Store.
type Config struct {
	Driver Driver
	Dir    string
	S3     S3Config
}

// Open builds the Store described by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.Dir)
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown artifact driver %q", cfg.Driver)
	}
}

func cloneMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
