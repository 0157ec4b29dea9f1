package main

import (
    "fmt"
    "os"
    "strings"
    "sync"
    "time"
)

// EventLogger appends timestamped audit lines (sessions, logins, results
// changes) to a file.  It is safe for concurrent use.
type EventLogger struct {
    filePath string
    mu       sync.Mutex
    now      func() time.Time
}

// NewEventLogger creates a logger writing to filePath.  The file is created
// on the first event.
func NewEventLogger(filePath string) *EventLogger {
    return &EventLogger{filePath: filePath, now: time.Now}
}

// Log writes a single event with timestamp.  Errors are not returned but
// printed to standard error.  Logging to a nil *EventLogger is a no-op.
func (el *EventLogger) Log(format string, args ...any) {
    if el == nil {
        return
    }
    el.mu.Lock()
    defer el.mu.Unlock()
    msg := fmt.Sprintf(format, args...)
    line := fmt.Sprintf("%s - %s\n", el.now().Format(time.RFC3339), msg)
    f, err := os.OpenFile(el.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
    if err != nil {
        fmt.Fprintf(os.Stderr, "log error: %v\n", err)
        return
    }
    defer f.Close()
    if _, err := f.WriteString(line); err != nil {
        fmt.Fprintf(os.Stderr, "log write error: %v\n", err)
    }
}

// Tail returns the last n lines of the event log, oldest first.
func (el *EventLogger) Tail(n int) ([]string, error) {
    if el == nil {
        return nil, os.ErrNotExist
    }
    el.mu.Lock()
    data, err := os.ReadFile(el.filePath)
    el.mu.Unlock()
    if err != nil {
        return nil, err
    }
    lines := strings.Split(string(data), "\n")
    // Drop empty trailing line
    if len(lines) > 0 && lines[len(lines)-1] == "" {
        lines = lines[:len(lines)-1]
    }
    if n > 0 && len(lines) > n {
        lines = lines[len(lines)-n:]
    }
    return lines, nil
}
