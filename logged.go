package canlink

import (
	"github.com/rs/zerolog"
)

// LogOption is a bitmask for selecting which operations to log.
type LogOption uint8

const (
	LogNone  LogOption = 0
	LogRead  LogOption = 1 << iota
	LogWrite
	LogAll = LogRead | LogWrite
)

// NewLoggedTransport wraps inner and logs the selected operations at level.
// Frames rejected by filter are not logged; a nil filter logs everything.
// Errors are always logged at error level for the selected operations.
func NewLoggedTransport(inner Transport, logger zerolog.Logger, level zerolog.Level, opts LogOption, filter FrameFilter) Transport {
	return &loggedTransport{
		inner:  inner,
		logger: logger.With().Str("module", "canlink.transport").Logger(),
		level:  level,
		opts:   opts,
		filter: filter,
	}
}

type loggedTransport struct {
	inner  Transport
	logger zerolog.Logger
	level  zerolog.Level
	opts   LogOption
	filter FrameFilter
}

func (l *loggedTransport) Open(device string, loopback bool) error {
	err := l.inner.Open(device, loopback)
	ev := l.logger.Info()
	if err != nil {
		ev = l.logger.Error().Err(err)
	}
	ev.Str("device", device).Bool("loopback", loopback).Msg("open")
	return err
}

func (l *loggedTransport) IsOpen() bool { return l.inner.IsOpen() }

func (l *loggedTransport) Cancel() error { return l.inner.Cancel() }

// Close forwards to the inner transport without logging.
func (l *loggedTransport) Close() error { return l.inner.Close() }

func (l *loggedTransport) Write(f Frame) error {
	if l.opts&LogWrite != 0 && (l.filter == nil || l.filter(f)) {
		l.frameEvent(l.logger.WithLevel(l.level), f).Msg("send")
	}
	err := l.inner.Write(f)
	if l.opts&LogWrite != 0 && err != nil {
		l.logger.Error().Err(err).Uint32("id", f.ID).Msg("send error")
	}
	return err
}

func (l *loggedTransport) Read() (Frame, error) {
	f, err := l.inner.Read()
	if l.opts&LogRead == 0 {
		return f, err
	}
	if err != nil {
		l.logger.Error().Err(err).Msg("receive error")
	} else if l.filter == nil || l.filter(f) {
		l.frameEvent(l.logger.WithLevel(l.level), f).Msg("receive")
	}
	return f, err
}

func (l *loggedTransport) frameEvent(ev *zerolog.Event, f Frame) *zerolog.Event {
	return ev.
		Uint32("id", f.ID).
		Bool("extended", f.Extended).
		Bool("rtr", f.RTR).
		Bool("error", f.Error).
		Int("len", int(f.Len)).
		Hex("data", f.Payload()).
		Stringer("frame", f)
}
