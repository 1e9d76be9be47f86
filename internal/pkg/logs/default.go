package logs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxKey string

const (
	ctxKeyLogID ctxKey = "log_id"

	// labelField overrides the printed level name; logrus has no verbose level.
	labelField = "level_label"
)

type Options struct {
	Level      string
	Format     string
	Output     string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

var logger Logger = newDefaultLogger()

// SetLogger sets the fallback logger used when none is injected.
// Note that this method is not concurrent-safe.
func SetLogger(l Logger) {
	if l == nil {
		return
	}
	logger = l
}

func DefaultLogger() Logger {
	return logger
}

// Init builds a logger from opts and installs it as the default.
func Init(opts Options) error {
	l, err := New(opts)
	if err != nil {
		return err
	}
	SetLogger(l)
	return nil
}

// New builds a standalone logger that can be injected into components.
func New(opts Options) (Logger, error) {
	return newConfiguredLogger(opts)
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	l := &defaultLogger{log: log}
	l.SetLevel(FatalLevel)
	return l
}

func Error(format string, v ...interface{}) {
	logger.Error(format, v...)
}

func CtxDebug(ctx context.Context, format string, v ...interface{}) {
	logger.CtxDebug(ctx, format, v...)
}

func CtxInfo(ctx context.Context, format string, v ...interface{}) {
	logger.CtxInfo(ctx, format, v...)
}

func CtxError(ctx context.Context, format string, v ...interface{}) {
	logger.CtxError(ctx, format, v...)
}

type defaultLogger struct {
	log   *logrus.Logger
	level atomic.Int32
}

func (l *defaultLogger) NewLogID() string {
	return uuid.New().String()
}

func (l *defaultLogger) GetLogID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	logID, _ := ctx.Value(ctxKeyLogID).(string)
	return logID
}

func (l *defaultLogger) SetLogID(ctx context.Context, logID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKeyLogID, logID)
}

func newDefaultLogger() Logger {
	log := logrus.New()
	log.SetFormatter(&customFormatter{enableColor: shouldColorizeStdout("stdout")})
	l := &defaultLogger{log: log}
	l.SetLevel(InfoLevel)
	return l
}

func newConfiguredLogger(opts Options) (Logger, error) {
	log := logrus.New()

	output := strings.ToLower(strings.TrimSpace(opts.Output))
	if output == "" {
		output = "stdout"
	}
	w, err := buildWriter(opts, output)
	if err != nil {
		return nil, err
	}
	log.SetOutput(w)

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&customFormatter{enableColor: shouldColorizeStdout(output)})
	}

	l := &defaultLogger{log: log}
	l.SetLevel(ParseLevel(opts.Level))
	return l, nil
}

func buildWriter(opts Options, output string) (io.Writer, error) {
	switch output {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "file":
		w, err := newRotateWriter(opts)
		if err != nil {
			return nil, err
		}
		return w, nil
	case "both":
		w, err := newRotateWriter(opts)
		if err != nil {
			return nil, err
		}
		return &dualWriter{
			stdout: os.Stdout,
			file:   w,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported log output: %s", output)
	}
}

type dualWriter struct {
	stdout io.Writer
	file   io.Writer
}

func (w *dualWriter) Write(p []byte) (int, error) {
	if _, err := w.stdout.Write(p); err != nil {
		return 0, err
	}
	if _, err := w.file.Write(stripANSI(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func newRotateWriter(opts Options) (io.Writer, error) {
	if strings.TrimSpace(opts.File) == "" {
		return nil, fmt.Errorf("log file is required when output includes file")
	}
	dir := filepath.Dir(opts.File)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir failed: %w", err)
		}
	}

	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = 100
	}
	maxBackups := opts.MaxBackups
	if maxBackups < 0 {
		maxBackups = 0
	}
	maxAge := opts.MaxAge
	if maxAge < 0 {
		maxAge = 0
	}

	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   opts.Compress,
	}, nil
}

func (l *defaultLogger) GetLevel() LogLevel {
	return LogLevel(l.level.Load())
}

// SetLevel gates output on our own level scale; logrus itself lets
// everything from trace upwards through.
func (l *defaultLogger) SetLevel(level LogLevel) {
	l.level.Store(int32(level))
	l.log.SetLevel(logrus.TraceLevel)
}

func (l *defaultLogger) enabled(level LogLevel) bool {
	return level >= l.GetLevel()
}

func (l *defaultLogger) Trace(format string, v ...interface{}) {
	if l.enabled(TraceLevel) {
		l.log.Tracef(format, v...)
	}
}

func (l *defaultLogger) Debug(format string, v ...interface{}) {
	if l.enabled(DebugLevel) {
		l.log.Debugf(format, v...)
	}
}

func (l *defaultLogger) Verbose(format string, v ...interface{}) {
	if l.enabled(VerboseLevel) {
		l.log.WithField(labelField, "VERBOSE").Debugf(format, v...)
	}
}

func (l *defaultLogger) Info(format string, v ...interface{}) {
	if l.enabled(InfoLevel) {
		l.log.Infof(format, v...)
	}
}

func (l *defaultLogger) Warn(format string, v ...interface{}) {
	if l.enabled(WarnLevel) {
		l.log.Warnf(format, v...)
	}
}

func (l *defaultLogger) Error(format string, v ...interface{}) {
	if l.enabled(ErrorLevel) {
		l.log.Errorf(format, v...)
	}
}

func (l *defaultLogger) Fatal(format string, v ...interface{}) {
	l.log.Fatalf(format, v...)
}

func (l *defaultLogger) CtxTrace(ctx context.Context, format string, v ...interface{}) {
	if l.enabled(TraceLevel) {
		l.log.WithContext(ctx).Tracef(format, v...)
	}
}

func (l *defaultLogger) CtxDebug(ctx context.Context, format string, v ...interface{}) {
	if l.enabled(DebugLevel) {
		l.log.WithContext(ctx).Debugf(format, v...)
	}
}

func (l *defaultLogger) CtxVerbose(ctx context.Context, format string, v ...interface{}) {
	if l.enabled(VerboseLevel) {
		l.log.WithContext(ctx).WithField(labelField, "VERBOSE").Debugf(format, v...)
	}
}

func (l *defaultLogger) CtxInfo(ctx context.Context, format string, v ...interface{}) {
	if l.enabled(InfoLevel) {
		l.log.WithContext(ctx).Infof(format, v...)
	}
}

func (l *defaultLogger) CtxWarn(ctx context.Context, format string, v ...interface{}) {
	if l.enabled(WarnLevel) {
		l.log.WithContext(ctx).Warnf(format, v...)
	}
}

func (l *defaultLogger) CtxError(ctx context.Context, format string, v ...interface{}) {
	if l.enabled(ErrorLevel) {
		l.log.WithContext(ctx).Errorf(format, v...)
	}
}

func (l *defaultLogger) CtxFatal(ctx context.Context, format string, v ...interface{}) {
	l.log.WithContext(ctx).Fatalf(format, v...)
}

func (l *defaultLogger) Flush() {}

type customFormatter struct {
	enableColor bool
}

func (f *customFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format("2006-01-02 15:04:05,000")
	level := strings.ToUpper(entry.Level.String())
	if label, ok := entry.Data[labelField].(string); ok && label != "" {
		level = label
	}
	if f.enableColor {
		level = colorizeLevel(entry.Level, level)
	}

	file, line := callerOutsideLogs()

	var logID any
	logID = ""
	if entry.Context != nil {
		if id := entry.Context.Value(ctxKeyLogID); id != nil {
			logID = id
		}
	}

	logLine := fmt.Sprintf("%s %s %s:%d %s %s\n",
		level,
		timestamp,
		file,
		line,
		logID,
		entry.Message,
	)

	return []byte(logLine), nil
}

// callerOutsideLogs walks the stack past logrus and this package.
func callerOutsideLogs() (string, int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		file := filepath.ToSlash(frame.File)
		inLogrus := strings.Contains(file, "sirupsen/logrus")
		inLogs := strings.Contains(file, "internal/pkg/logs/") && !strings.HasSuffix(file, "_test.go")
		if !inLogrus && !inLogs {
			return shortFilePath(frame.File), frame.Line
		}
		if !more {
			return "???", 0
		}
	}
}

// shortFilePath returns "dir/file.go" (two-level) when a parent directory
// exists, otherwise just "file.go".
func shortFilePath(fullPath string) string {
	dir, file := filepath.Split(fullPath)
	if dir == "" {
		return file
	}
	dir = filepath.Clean(dir)
	parent := filepath.Base(dir)
	return parent + "/" + file
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(p []byte) []byte {
	return ansiPattern.ReplaceAll(p, nil)
}

func shouldColorizeStdout(output string) bool {
	if output == "file" {
		return false
	}
	return !color.NoColor
}

var (
	colorTrace = color.New(color.FgHiBlack)
	colorDebug = color.New(color.FgCyan)
	colorInfo  = color.New(color.FgGreen)
	colorWarn  = color.New(color.FgYellow)
	colorError = color.New(color.FgRed)
)

func colorizeLevel(level logrus.Level, text string) string {
	switch level {
	case logrus.TraceLevel:
		return colorTrace.Sprint(text)
	case logrus.DebugLevel:
		return colorDebug.Sprint(text)
	case logrus.InfoLevel:
		return colorInfo.Sprint(text)
	case logrus.WarnLevel:
		return colorWarn.Sprint(text)
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return colorError.Sprint(text)
	default:
		return text
	}
}
