package main

import (
    "fmt"
    "io"
    "strings"
    "sync"
)

// Display is a character display with a fixed number of rows and columns.
// Message writes text starting at the top left corner; "\n" moves to the
// next row.
type Display interface {
    Clear() error
    Message(text string) error
    Halt() error
}

// fitLines splits text into at most rows lines of at most cols characters.
// Anything that does not fit is dropped.
func fitLines(text string, cols, rows int) []string {
    lines := strings.Split(text, "\n")
    if rows > 0 && len(lines) > rows {
        lines = lines[:rows]
    }
    for i, l := range lines {
        if r := []rune(l); cols > 0 && len(r) > cols {
            lines[i] = string(r[:cols])
        }
    }
    return lines
}

// consoleDisplay prints what would be shown on the LCD.  It is used when the
// binary runs without GPIO hardware.
type consoleDisplay struct {
    mu   sync.Mutex
    w    io.Writer
    cols int
    rows int
    last []string
}

func newConsoleDisplay(w io.Writer, cols, rows int) *consoleDisplay {
    return &consoleDisplay{w: w, cols: cols, rows: rows}
}

func (d *consoleDisplay) Clear() error {
    d.mu.Lock()
    defer d.mu.Unlock()
    d.last = nil
    return nil
}

func (d *consoleDisplay) Message(text string) error {
    d.mu.Lock()
    defer d.mu.Unlock()
    d.last = fitLines(text, d.cols, d.rows)
    _, err := fmt.Fprintf(d.w, "[lcd] %s\n", strings.Join(d.last, " | "))
    return err
}

// Lines returns what is currently on the display.
func (d *consoleDisplay) Lines() []string {
    d.mu.Lock()
    defer d.mu.Unlock()
    return append([]string(nil), d.last...)
}

func (d *consoleDisplay) Halt() error { return nil }
