package main

import (
    "sync"
    "time"

    "periph.io/x/conn/v3/gpio"
    "periph.io/x/conn/v3/gpio/gpiotest"
)

// scriptedPin returns the levels of its script one Read at a time.  Once the
// script is used up it either starts over (cycle) or keeps returning the
// last level.
type scriptedPin struct {
    gpiotest.Pin
    mu     sync.Mutex
    script []gpio.Level
    cycle  bool
    reads  int
}

func newScriptedPin(name string, cycle bool, levels ...gpio.Level) *scriptedPin {
    return &scriptedPin{Pin: gpiotest.Pin{N: name}, script: levels, cycle: cycle}
}

func (p *scriptedPin) Read() gpio.Level {
    p.mu.Lock()
    defer p.mu.Unlock()
    i := p.reads
    p.reads++
    switch {
    case len(p.script) == 0:
        return gpio.High
    case p.cycle:
        return p.script[i%len(p.script)]
    case i >= len(p.script):
        return p.script[len(p.script)-1]
    default:
        return p.script[i]
    }
}

func (p *scriptedPin) Reads() int {
    p.mu.Lock()
    defer p.mu.Unlock()
    return p.reads
}

// countingPin counts the writes made to it.
type countingPin struct {
    gpiotest.Pin
    mu     sync.Mutex
    writes []gpio.Level
}

func (p *countingPin) Out(l gpio.Level) error {
    p.mu.Lock()
    p.writes = append(p.writes, l)
    p.mu.Unlock()
    return p.Pin.Out(l)
}

func (p *countingPin) Writes() []gpio.Level {
    p.mu.Lock()
    defer p.mu.Unlock()
    return append([]gpio.Level(nil), p.writes...)
}

// stepClock returns start, start+step, start+2*step, ... on successive calls.
func stepClock(start time.Time, step time.Duration) func() time.Time {
    var mu sync.Mutex
    next := start
    return func() time.Time {
        mu.Lock()
        defer mu.Unlock()
        t := next
        next = next.Add(step)
        return t
    }
}

// recordingDisplay keeps every message written to it.
type recordingDisplay struct {
    mu       sync.Mutex
    messages []string
    clears   int
}

func (d *recordingDisplay) Clear() error {
    d.mu.Lock()
    d.clears++
    d.mu.Unlock()
    return nil
}

func (d *recordingDisplay) Message(text string) error {
    d.mu.Lock()
    d.messages = append(d.messages, text)
    d.mu.Unlock()
    return nil
}

func (d *recordingDisplay) Halt() error { return nil }

func (d *recordingDisplay) Messages() []string {
    d.mu.Lock()
    defer d.mu.Unlock()
    return append([]string(nil), d.messages...)
}

func (d *recordingDisplay) contains(text string) bool {
    for _, m := range d.Messages() {
        if m == text {
            return true
        }
    }
    return false
}

var (
    hi = gpio.High
    lo = gpio.Low
)
