package utils

import (
	"fmt"
	"io"
)

// Logger is an optional trace log sink for parsers. A nil *Logger silently
// discards everything, so callers can pass one only when they want a
// per-file parse dump.
type Logger struct {
	io.Writer
}

func (l *Logger) Println(a ...interface{}) {
	if l != nil {
		fmt.Fprintln(l, a...)
	}
}

func (l *Logger) Printf(format string, a ...interface{}) {
	if l != nil {
		fmt.Fprintf(l, format+"\n", a...)
	}
}
