package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

const (
	permission = 0o664
)

// LogBuild configures a zerolog-backed Logger.
type LogBuild struct {
	writer io.Writer
	path   string
	level  zerolog.Level
}

// LogData is the result of LogBuild.Make. Close releases the log file, if any.
type LogData struct {
	LogFile *os.File
	Zero    zerolog.Logger
}

// Build starts a zerolog logger configuration writing to stdout at debug level.
func Build() *LogBuild {
	return &LogBuild{writer: os.Stdout, level: zerolog.DebugLevel}
}

// FromPath appends to the file at path instead of the configured writer.
func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

// FromBuffer writes to w.
func (build *LogBuild) FromBuffer(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

// Level sets the minimum level, e.g. "info". Unknown names keep the current level.
func (build *LogBuild) Level(name string) *LogBuild {
	if lvl, err := zerolog.ParseLevel(name); err == nil && name != "" {
		build.level = lvl
	}
	return build
}

func (build *LogBuild) Make() (logData *LogData, err error) {
	logData = new(LogData)
	writer := build.writer
	if build.path != "" {
		logData.LogFile, err = os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		writer = zerolog.SyncWriter(logData.LogFile)
	}
	logData.Zero = zerolog.New(writer).Level(build.level).With().Timestamp().Logger()
	return logData, nil
}

// Logger returns the Logger view of the zerolog instance.
func (logData *LogData) Logger() Logger {
	return &zeroLogger{zl: logData.Zero}
}

func (logData *LogData) Close() error {
	if logData.LogFile == nil {
		return nil
	}
	return logData.LogFile.Close()
}

type zeroLogger struct {
	zl zerolog.Logger
}

func (z *zeroLogger) Error(msg string, args ...any) { emit(z.zl.Error(), msg, args) }
func (z *zeroLogger) Warn(msg string, args ...any)  { emit(z.zl.Warn(), msg, args) }
func (z *zeroLogger) Info(msg string, args ...any)  { emit(z.zl.Info(), msg, args) }
func (z *zeroLogger) Debug(msg string, args ...any) { emit(z.zl.Debug(), msg, args) }

// emit maps slog-style key/value pairs onto zerolog fields.
// A trailing key without a value is logged under "!BADKEY", as slog does.
func emit(e *zerolog.Event, msg string, args []any) {
	if e == nil {
		return
	}
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			e = e.Interface("!BADKEY", args[i])
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		if err, isErr := args[i+1].(error); isErr {
			e = e.AnErr(key, err)
			continue
		}
		e = e.Interface(key, args[i+1])
	}
	e.Msg(msg)
}
