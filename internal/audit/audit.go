// Package audit writes one JSON line per applied booking change.
package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"

	"github.com/sirupsen/logrus"
)

type Sink struct {
	log    *logrus.Logger
	closer io.Closer
}

// NewSink writes audit entries to w as JSON.
func NewSink(w io.Writer) *Sink {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{logrus.FieldKeyMsg: "event"},
	})
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)

	s := &Sink{log: l}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// OpenFile appends to the audit file, creating its directory when missing.
func OpenFile(path string) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	return NewSink(f), nil
}

func (s *Sink) Record(ctx context.Context, actorID int64, actorLabel string, bookingID int64, deltas []entity.Delta) error {
	if len(deltas) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"actor_id":    actorID,
		"actor":       actorLabel,
		"job_id":      bookingID,
		"deltas":      deltas,
		"delta_count": len(deltas),
	}).Info("booking_updated")
	return nil
}

func (s *Sink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
