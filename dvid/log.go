package dvid

import (
	"strings"
	"time"
)

// ModeFlag is a log severity.  Messages below the current mode are dropped.
type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	CriticalMode
	SilentMode
)

var mode ModeFlag = InfoMode

// Logger is the sink behind the package-level Debugf ... Criticalf calls.
// Implementations write unconditionally; filtering by mode happens before
// the Logger is called.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Criticalf(format string, args ...interface{})

	// Shutdown makes sure logs are closed.
	Shutdown()
}

// SetLogMode sets the minimum severity that gets logged.  SilentMode turns off
// all logging.
func SetLogMode(newMode ModeFlag) {
	mode = newMode
}

// LogMode returns the current severity threshold.
func LogMode() ModeFlag {
	return mode
}

// ParseLogMode converts a level name like "debug" or "warning" into a ModeFlag.
func ParseLogMode(level string) (ModeFlag, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugMode, true
	case "info":
		return InfoMode, true
	case "warning", "warn":
		return WarningMode, true
	case "error":
		return ErrorMode, true
	case "critical":
		return CriticalMode, true
	case "silent", "none":
		return SilentMode, true
	}
	return InfoMode, false
}

func Debugf(format string, args ...interface{}) {
	if mode <= DebugMode {
		logger.Debugf(format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if mode <= InfoMode {
		logger.Infof(format, args...)
	}
}

func Warningf(format string, args ...interface{}) {
	if mode <= WarningMode {
		logger.Warningf(format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if mode <= ErrorMode {
		logger.Errorf(format, args...)
	}
}

func Criticalf(format string, args ...interface{}) {
	if mode <= CriticalMode {
		logger.Criticalf(format, args...)
	}
}

// TimeInfof is like Infof but prefixes the message with a timestamp, which
// is useful for long-running store operations.
func TimeInfof(format string, args ...interface{}) {
	if mode <= InfoMode {
		logger.Infof(time.Now().Format("15:04:05.000")+" "+format, args...)
	}
}

// ModeLogger returns a Logger that honors the current log mode.  It can be
// handed to libraries that accept a printf-style logger, e.g., BadgerDB.
func ModeLogger() Logger {
	return modeLogger{}
}

type modeLogger struct{}

func (modeLogger) Debugf(format string, args ...interface{})    { Debugf(format, args...) }
func (modeLogger) Infof(format string, args ...interface{})     { Infof(format, args...) }
func (modeLogger) Warningf(format string, args ...interface{})  { Warningf(format, args...) }
func (modeLogger) Errorf(format string, args ...interface{})    { Errorf(format, args...) }
func (modeLogger) Criticalf(format string, args ...interface{}) { Criticalf(format, args...) }
func (modeLogger) Shutdown()                                    {}

// TimeLog appends the time since NewTimeLog to each message, e.g.,
// "read sample 42: 1.2ms".
type TimeLog struct {
	logger Logger
	start  time.Time
}

func NewTimeLog() TimeLog {
	return TimeLog{logger, time.Now()}
}

// Elapsed returns the time since the TimeLog was created.
func (t TimeLog) Elapsed() time.Duration {
	return time.Since(t.start)
}

func (t TimeLog) Debugf(format string, args ...interface{}) {
	if mode <= DebugMode {
		t.logger.Debugf(format+": %s\n", append(args, time.Since(t.start))...)
	}
}

func (t TimeLog) Infof(format string, args ...interface{}) {
	if mode <= InfoMode {
		t.logger.Infof(format+": %s\n", append(args, time.Since(t.start))...)
	}
}

func (t TimeLog) Warningf(format string, args ...interface{}) {
	if mode <= WarningMode {
		t.logger.Warningf(format+": %s\n", append(args, time.Since(t.start))...)
	}
}

func (t TimeLog) Errorf(format string, args ...interface{}) {
	if mode <= ErrorMode {
		t.logger.Errorf(format+": %s\n", append(args, time.Since(t.start))...)
	}
}

func (t TimeLog) Criticalf(format string, args ...interface{}) {
	if mode <= CriticalMode {
		t.logger.Criticalf(format+": %s\n", append(args, time.Since(t.start))...)
	}
}

func (t TimeLog) Shutdown() {
	t.logger.Shutdown()
}
