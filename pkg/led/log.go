package led

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Log is an LED for hosts without one: it logs every change of level at debug.
type Log struct {
	log     zerolog.Logger
	on      atomic.Bool
	changes atomic.Uint64
}

func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Set(on bool) {
	if l.on.Swap(on) == on {
		return
	}
	n := l.changes.Add(1)
	l.log.Debug().Bool("on", on).Uint64("changes", n).Msg("led")
}

func (l *Log) On() bool { return l.on.Load() }

func (l *Log) Changes() uint64 { return l.changes.Load() }
