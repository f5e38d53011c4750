package crd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ErrSinkFailed wraps every error a ResultSink returns for a run.
var ErrSinkFailed = errors.New("result sink failed")

// ResultSink persists a finalized run. Write is called once per run from a
// single goroutine after every worker has stopped merging.
type ResultSink interface {
	Write(ctx context.Context, snap *Snapshot) error
}

// MultiSink writes to each sink in order and stops at the first failure.
type MultiSink []ResultSink

func (m MultiSink) Write(ctx context.Context, snap *Snapshot) error {
	for i, s := range m {
		if s == nil {
			continue
		}
		if err := s.Write(ctx, snap); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}

// DestinationName returns the artifact key for base. With timestamp set the
// run time is inserted before the extension: all_hits_20240131_235959.csv.
func DestinationName(base string, timestamp bool, now time.Time) string {
	if base == "" {
		base = OutputName
	}
	if !timestamp {
		return base
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".csv"
	}
	return stem + "_" + now.Format(TimestampLayout) + ext
}
