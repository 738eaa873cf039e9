package logging

import (
	"fmt"
	"io"
	"os"
)

// EarlyLog writes plain lines before the structured logger exists.
type EarlyLog struct {
	out io.Writer
}

func NewEarlyLog() *EarlyLog {
	return &EarlyLog{out: os.Stderr}
}

func NewEarlyLogTo(out io.Writer) *EarlyLog {
	return &EarlyLog{out: out}
}

func (l *EarlyLog) Error(msg string, args ...interface{}) {
	l.write("ERROR", msg, args...)
}

func (l *EarlyLog) Fatal(msg string, args ...interface{}) {
	l.write("FATAL", msg, args...)
	os.Exit(1)
}

func (l *EarlyLog) Warn(msg string, args ...interface{}) {
	l.write("WARN", msg, args...)
}

func (l *EarlyLog) Info(msg string, args ...interface{}) {
	l.write("INFO", msg, args...)
}

func (l *EarlyLog) write(level, msg string, args ...interface{}) {
	fmt.Fprintf(l.out, "chatgate %s: %s\n", level, fmt.Sprintf(msg, args...))
}
