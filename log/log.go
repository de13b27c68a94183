package log

import (
	"io"
	stdlog "log"
	"os"
	"sync"
)

var (
	errorLog = stdlog.New(os.Stdout, "\033[31m[error]\033[0m ", stdlog.LstdFlags|stdlog.Lshortfile)
	infoLog  = stdlog.New(os.Stdout, "\033[34m[info ]\033[0m ", stdlog.LstdFlags|stdlog.Lshortfile)
	loggers  = []*stdlog.Logger{errorLog, infoLog}
	mu       sync.Mutex
)

var (
	Errorf = errorLog.Printf
	Error  = errorLog.Print
	Infof  = infoLog.Printf
	Info   = infoLog.Print
)

const (
	InfoLevel = iota
	ErrorLevel
	Disabled
)

// SetLevel silences every logger below the given level.
func SetLevel(level int) {
	mu.Lock()
	defer mu.Unlock()

	for _, logger := range loggers {
		logger.SetOutput(os.Stdout)
	}

	if level > Disabled || level < InfoLevel {
		errorLog.Println("invalid level, falling back to info")
		return
	}
	if level > ErrorLevel {
		errorLog.SetOutput(io.Discard)
	}
	if level > InfoLevel {
		infoLog.SetOutput(io.Discard)
	}
}

// Logger is the narrow diagnostic surface the mapping layer emits through.
// Components take an injected Logger so no console output is hardwired into
// data-access paths; Default falls back to the package-level loggers.
type Logger interface {
	Infof(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

type std struct{}

func (std) Infof(format string, v ...interface{})  { Infof(format, v...) }
func (std) Errorf(format string, v ...interface{}) { Errorf(format, v...) }

func Default() Logger { return std{} }
