package main

import (
    "context"
    "errors"
    "time"
)

// blinkHalfPeriod gives the USR3 LED a 5 Hz blink.
const blinkHalfPeriod = 100 * time.Millisecond

// Blink switches led on for half, off for half, until ctx ends.  The LED is
// left off when Blink returns.
func Blink(ctx context.Context, led *LED, half time.Duration) error {
    if half <= 0 {
        return errors.New("blink: half period must be positive")
    }
    for {
        if err := led.On(); err != nil {
            return err
        }
        if err := sleepCtx(ctx, half); err != nil {
            return led.Off()
        }
        if err := led.Off(); err != nil {
            return err
        }
        if err := sleepCtx(ctx, half); err != nil {
            return nil
        }
    }
}
