//go:build !linux || !(arm || arm64) || disablegpio
// +build !linux !arm,!arm64 disablegpio

package main

// This file defines the hardware abstraction layer used when the binary is
// built for a machine without GPIO headers, or with the "disablegpio" build
// tag.  Pins are simulated in memory and rest High, so nothing is ever
// pressed or tapped: on a desktop only the results API and the start of a
// session (up to the wait for the first tap) can be exercised.  Tests drive
// the rig through scripted pins instead.  hal_periph.go provides the same
// functions on the board itself.

import (
    "fmt"
    "os"
    "sync"

    "periph.io/x/conn/v3/gpio"
    "periph.io/x/conn/v3/gpio/gpiotest"
)

var (
    simMu   sync.Mutex
    simPins = map[string]*gpiotest.Pin{}
)

// initGPIO performs any global initialisation required to access GPIO pins.
// In the simulated implementation it does nothing.
func initGPIO() error {
    return nil
}

// openPin returns the simulated pin registered under name, creating it on
// first use.  New pins rest High, which is the untapped level of pull-up
// wiring.
func openPin(name string) (gpio.PinIO, error) {
    if name == "" {
        return nil, fmt.Errorf("empty pin name")
    }
    simMu.Lock()
    defer simMu.Unlock()
    p, ok := simPins[name]
    if !ok {
        p = &gpiotest.Pin{N: name, Num: len(simPins), L: gpio.High}
        simPins[name] = p
    }
    return p, nil
}

// openDisplay returns a console display with the configured geometry.
func openDisplay(cfg LCDConfig) (Display, error) {
    return newConsoleDisplay(os.Stdout, cfg.Cols, cfg.Rows), nil
}
