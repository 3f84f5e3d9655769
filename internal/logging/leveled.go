package logging

import "github.com/rs/zerolog"

// Leveled adapts a Logger to the key/value leveled interface used by
// retryablehttp and similar clients.
type Leveled struct {
	l *Logger
}

// Leveled returns an adapter writing through l. Retry chatter is demoted one
// level so that a healthy client stays quiet at info.
func (l *Logger) Leveled() *Leveled { return &Leveled{l: l} }

func (a *Leveled) Error(msg string, kv ...interface{}) { fields(a.l.Warn(), kv).Msg(msg) }
func (a *Leveled) Info(msg string, kv ...interface{})  { fields(a.l.Debug(), kv).Msg(msg) }
func (a *Leveled) Debug(msg string, kv ...interface{}) { fields(a.l.Trace(), kv).Msg(msg) }
func (a *Leveled) Warn(msg string, kv ...interface{})  { fields(a.l.Info(), kv).Msg(msg) }

func fields(ev *zerolog.Event, kv []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	return ev
}
