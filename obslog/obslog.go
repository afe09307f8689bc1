// Package obslog is the controller's logger: a small leveled, allocation-light
// writer in the style of the original firmware's console logger, adapted to
// run under go test as well as on-target (an io.Writer sink instead of a
// bare print()) and to format the fixed-point quantities (millivolts,
// deci-degrees) that flow through the pack pipeline.
package obslog

import (
	"io"
	"os"
	"sync"

	"github.com/gopher-motorsports/battery-management-system-23-sub000/x/conv"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/x/strconvx"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/x/timex"
)

// Level controls which categories of log lines are emitted. Comms chatter
// from the wire-link/BMB driver is by far the highest-volume source and is
// the one operators most often want to squelch independently of safety
// state transitions.
type Level int

const (
	LevelComms Level = iota // per-transaction wire-link/BMB traffic
	LevelInfo               // scheduler lifecycle, config, init
	LevelWarn               // retried failures, degraded state
	LevelFault              // alert set/clear, charger faults, init failure
)

func (l Level) String() string {
	switch l {
	case LevelComms:
		return "comms"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelFault:
		return "fault"
	default:
		return "?"
	}
}

// Logger mirrors every line at or above Min to Out. The zero value logs
// everything to os.Stdout.
type Logger struct {
	mu  sync.Mutex
	Out io.Writer
	Min Level
}

// Default is the process-wide logger every package logs through, mirroring
// the teacher's single package-level `log` instance.
var Default = &Logger{Out: os.Stdout, Min: LevelInfo}

func (l *Logger) out() io.Writer {
	if l.Out == nil {
		return os.Stdout
	}
	return l.Out
}

func (l *Logger) write(s string) {
	_, _ = io.WriteString(l.out(), s)
}

// Line emits one log line at the given level if it passes the Min filter.
// parts are rendered left to right with no separators, mirroring the
// teacher's Logger.Print; callers space their own fields.
func (l *Logger) Line(lvl Level, parts ...string) {
	if lvl < l.Min {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var buf [20]byte
	l.write(string(conv.Itoa(buf[:], timex.NowMs())))
	l.write(" [")
	l.write(lvl.String())
	l.write("] ")
	for _, p := range parts {
		l.write(p)
	}
	l.write("\n")
}

func (l *Logger) Info(parts ...string)  { l.Line(LevelInfo, parts...) }
func (l *Logger) Warn(parts ...string)  { l.Line(LevelWarn, parts...) }
func (l *Logger) Fault(parts ...string) { l.Line(LevelFault, parts...) }
func (l *Logger) Comms(parts ...string) { l.Line(LevelComms, parts...) }

// Milli renders a millivolt/milliamp-style integer as whole.frac at the
// given number of fractional digits, e.g. Milli(3712, 3) -> "3.712".
func Milli(mV int32, fracDigits int) string {
	if fracDigits <= 0 {
		return strconvx.Itoa(int(mV))
	}
	scale := 1
	for i := 0; i < fracDigits; i++ {
		scale *= 10
	}
	neg := mV < 0
	if neg {
		mV = -mV
	}
	whole := int(mV) / scale
	frac := int(mV) % scale
	s := strconvx.Itoa(whole) + "." + zeroPad(frac, fracDigits)
	if neg {
		return "-" + s
	}
	return s
}

func zeroPad(v, digits int) string {
	s := strconvx.Itoa(v)
	for len(s) < digits {
		s = "0" + s
	}
	return s
}
