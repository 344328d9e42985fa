// Package logging builds the process logger and defines the narrow logging
// interface every engine component is constructed with.
package logging

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is satisfied by *log.Logger
type Logger interface {
	Printf(format string, v ...any)
}

// Options configures the process logger
type Options struct {
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	// UILines receives a copy of each line for the log pane. May be nil.
	UILines chan<- string
}

// New returns a logger writing to a rotated file and, when set, the UI channel.
// The returned closer flushes and closes the log file.
func New(opts Options) (*log.Logger, io.Closer) {
	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	backups := opts.MaxBackups
	if backups <= 0 {
		backups = 3
	}
	file := &lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    maxSize,
		MaxBackups: backups,
		Compress:   false,
	}

	var w io.Writer = file
	if opts.UILines != nil {
		w = io.MultiWriter(file, &channelWriter{lines: opts.UILines})
	}
	return log.New(w, "", log.LstdFlags|log.Lmicroseconds), file
}

// channelWriter forwards complete log lines to a channel without blocking.
type channelWriter struct {
	lines chan<- string
}

func (w *channelWriter) Write(p []byte) (int, error) {
	text := strings.TrimRight(string(p), "\n")
	for _, line := range strings.Split(text, "\n") {
		select {
		case w.lines <- line:
		default:
			// UI is behind, the file still has the line
		}
	}
	return len(p), nil
}

// Recorder is a Logger that keeps formatted lines in memory.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Printf(format string, v ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf(format, v...))
}

// Lines returns a copy of everything logged so far
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Contains reports whether any logged line contains substr
func (r *Recorder) Contains(substr string) bool {
	for _, line := range r.Lines() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// Timestamp formats t the way the log pane shows it
func Timestamp(t time.Time) string {
	return t.Format("15:04:05")
}
