//go:build linux && (arm || arm64) && !disablegpio
// +build linux
// +build arm arm64
// +build !disablegpio

// This file provides the board implementation of the HAL functions using
// the periph.io library.  When building for other platforms or when the
// build tag "disablegpio" is specified, hal.go will be used instead.

package main

import (
    "fmt"

    // Use the new periph module layout.  See https://periph.io/news/2020/a_new_start/
    "periph.io/x/conn/v3/gpio"
    "periph.io/x/conn/v3/gpio/gpioreg"
    "periph.io/x/devices/v3/hd44780"
    "periph.io/x/host/v3"
)

// initGPIO initialises periph host state.  Returning an error here prevents
// the rig from starting.  host.Init can safely be called multiple times;
// subsequent calls are no-ops.
func initGPIO() error {
    _, err := host.Init()
    return err
}

// openPin looks up a GPIO by name.  Header names such as "P2_4" and on-board
// LED names such as "USR3" are accepted wherever the host driver registers
// them as aliases, as are plain "GPIO<n>" names.
func openPin(name string) (gpio.PinIO, error) {
    if err := initGPIO(); err != nil {
        return nil, err
    }
    p := gpioreg.ByName(name)
    if p == nil {
        return nil, fmt.Errorf("unknown pin %q", name)
    }
    return p, nil
}

// lcdDisplay drives an HD44780 compatible character LCD in 4-bit mode.
type lcdDisplay struct {
    dev  *hd44780.Dev
    cols int
    rows int
}

// openDisplay wires the LCD described by cfg.
func openDisplay(cfg LCDConfig) (Display, error) {
    names := []string{cfg.D4, cfg.D5, cfg.D6, cfg.D7}
    data := make([]gpio.PinOut, 0, len(names))
    for _, n := range names {
        p, err := openPin(n)
        if err != nil {
            return nil, fmt.Errorf("lcd data pin: %w", err)
        }
        data = append(data, p)
    }
    rs, err := openPin(cfg.RS)
    if err != nil {
        return nil, fmt.Errorf("lcd rs pin: %w", err)
    }
    e, err := openPin(cfg.Enable)
    if err != nil {
        return nil, fmt.Errorf("lcd enable pin: %w", err)
    }
    dev, err := hd44780.New(data, rs, e)
    if err != nil {
        return nil, fmt.Errorf("lcd: %w", err)
    }
    return &lcdDisplay{dev: dev, cols: cfg.Cols, rows: cfg.Rows}, nil
}

// Clear blanks the display and homes the cursor.
func (d *lcdDisplay) Clear() error {
    return d.dev.Reset()
}

func (d *lcdDisplay) Message(text string) error {
    for i, line := range fitLines(text, d.cols, d.rows) {
        if err := d.dev.SetCursor(uint8(i), 0); err != nil {
            return err
        }
        if err := d.dev.Print(line); err != nil {
            return err
        }
    }
    return nil
}

func (d *lcdDisplay) Halt() error {
    return d.dev.Halt()
}
