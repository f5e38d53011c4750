package crd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/nikita-mazotov/CubeSat-CRD-public/internal/artifact"
	"github.com/rs/zerolog"
)

// CSVHeader is the first row of every artifact.
var CSVHeader = []string{"x", "y", "z", "time", "energy", "type"}

// CSVSink renders a snapshot as CSV and stores it in an artifact.Store.
type CSVSink struct {
	store     artifact.Store
	name      string
	timestamp bool
	overwrite bool
	precision int
	now       func() time.Time
	log       zerolog.Logger

	mu   sync.Mutex
	last artifact.Info
}

type CSVOption func(*CSVSink)

func WithCSVName(name string) CSVOption { return func(s *CSVSink) { s.name = name } }

func WithCSVTimestamp(on bool) CSVOption { return func(s *CSVSink) { s.timestamp = on } }

func WithCSVOverwrite(on bool) CSVOption { return func(s *CSVSink) { s.overwrite = on } }

// WithCSVPrecision sets the significant digits of numeric columns.
func WithCSVPrecision(digits int) CSVOption {
	return func(s *CSVSink) {
		if digits > 0 {
			s.precision = digits
		}
	}
}

func WithCSVClock(now func() time.Time) CSVOption { return func(s *CSVSink) { s.now = now } }

func WithCSVLogger(l zerolog.Logger) CSVOption { return func(s *CSVSink) { s.log = l } }

// NewCSVSink returns a sink writing all_hits.csv into store, replacing an
// existing artifact of the same name.
func NewCSVSink(store artifact.Store, opts ...CSVOption) *CSVSink {
	s := &CSVSink{
		store:     store,
		name:      OutputName,
		overwrite: true,
		precision: CSVPrecision,
		now:       time.Now,
		log:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Write renders snap and stores it. Any failure is wrapped in ErrSinkFailed.
func (s *CSVSink) Write(ctx context.Context, snap *Snapshot) error {
	if s.store == nil {
		return fmt.Errorf("%w: no artifact store", ErrSinkFailed)
	}
	var buf bytes.Buffer
	if err := RenderCSV(&buf, snap, s.precision); err != nil {
		return fmt.Errorf("%w: render: %w", ErrSinkFailed, err)
	}
	key := DestinationName(s.name, s.timestamp, s.now())
	info, err := s.store.Put(ctx, key, &buf, artifact.PutOptions{
		ContentType: CSVContentType,
		Overwrite:   s.overwrite,
		Metadata:    map[string]string{"run-id": snap.RunID},
	})
	if err != nil {
		return fmt.Errorf("%w: store %s: %w", ErrSinkFailed, key, err)
	}
	if info.Replaced {
		s.log.Warn().Str("artifact", info.Location).Msg("replaced existing result artifact")
	}
	s.log.Info().Str("artifact", info.Location).Int64("bytes", info.Size).Int("rows", snap.Rows()).
		Str("driver", string(s.store.Driver())).Msg("result artifact written")
	s.mu.Lock()
	s.last = info
	s.mu.Unlock()
	return nil
}

// Last returns the descriptor of the most recently written artifact.
func (s *CSVSink) Last() artifact.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// RenderCSV writes the header and the SiPM, MC and Step blocks of snap to w.
// An empty category is written as one n/a row carrying its empty tag.
func RenderCSV(w io.Writer, snap *Snapshot, precision int) error {
	if precision <= 0 {
		precision = CSVPrecision
	}
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	row := make([]string, len(CSVHeader))
	for _, c := range Categories() {
		recs := snap.Records(c)
		if len(recs) == 0 {
			for i := 0; i < 5; i++ {
				row[i] = NotAvailable
			}
			row[5] = c.EmptyTag()
			if err := cw.Write(row); err != nil {
				return err
			}
			continue
		}
		tag := c.String()
		for _, h := range recs {
			row[0] = FormatReal(h.X, precision)
			row[1] = FormatReal(h.Y, precision)
			row[2] = FormatReal(h.Z, precision)
			row[3] = FormatReal(h.T, precision)
			row[4] = FormatReal(h.E, precision)
			row[5] = tag
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// FormatReal formats v with the given significant digits, shortest form.
func FormatReal(v Real, precision int) string {
	return strconv.FormatFloat(v, 'g', precision, 64)
}
