package observe

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/zeebo/xxh3"
)

type SlogOptions struct {
	// Every samples each kind: only every n-th event is logged. 0 and 1 log
	// all of them.
	Every map[Kind]uint64
	// Redact replaces keys in log output. Defaults to a 64-bit xxh3 hash so
	// keys can be correlated without being exposed.
	Redact func(string) string
}

// Slog logs events through log/slog. Errors log at Warn, init and dispose at
// Info, everything else at Debug.
type Slog struct {
	l    *slog.Logger
	opts SlogOptions
	ctr  [numKinds]atomic.Uint64
}

var _ Observer = (*Slog)(nil)

func NewSlog(l *slog.Logger, opts SlogOptions) *Slog {
	return &Slog{l: l, opts: opts}
}

func RedactXXH3(key string) string {
	return strconv.FormatUint(xxh3.HashString(key), 16)
}

func (s *Slog) redact(k string) string {
	if k == "" {
		return ""
	}
	if s.opts.Redact != nil {
		return s.opts.Redact(k)
	}
	return RedactXXH3(k)
}

func (s *Slog) sample(k Kind) bool {
	n := s.opts.Every[k]
	if n <= 1 {
		return true
	}
	return s.ctr[k].Add(1)%n == 0
}

func (s *Slog) Observe(e Event) {
	if s.l == nil || e.Kind >= numKinds || !s.sample(e.Kind) {
		return
	}
	level := slog.LevelDebug
	switch e.Kind {
	case KindError:
		level = slog.LevelWarn
	case KindInit, KindDispose:
		level = slog.LevelInfo
	}

	attrs := []slog.Attr{slog.String("cache", e.Cache)}
	if e.Key != "" {
		attrs = append(attrs, slog.String("key", s.redact(e.Key)), slog.Int("refs", e.RefCount))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.Any("err", e.Err))
	}
	s.l.LogAttrs(context.Background(), level, "swrcache."+e.Kind.String(), attrs...)
}
