package main

// This file holds the thin wrappers around the button, LED and buzzer used
// by the test rig.  None of them keep any state beyond the pin itself.

import (
    "context"
    "errors"
    "fmt"
    "time"

    "periph.io/x/conn/v3/gpio"
    "periph.io/x/conn/v3/physic"
)

// Button is a push button.  A press is reported once the button has been
// pushed and let go again, using the same polling loop as the tap sensor.
type Button struct {
    sensor *Sensor
}

// NewButton configures pin as a button input.  pressLow selects pull-up
// wiring where a pressed button reads Low.
func NewButton(pin gpio.PinIn, pressLow bool, poll time.Duration) (*Button, error) {
    s, err := NewSensor(pin, SensorOptions{TapLow: pressLow, PollInterval: poll, Pull: gpio.PullNoChange})
    if err != nil {
        return nil, fmt.Errorf("button: %w", err)
    }
    return &Button{sensor: s}, nil
}

// WaitForPress blocks until the button is pressed and released.
func (b *Button) WaitForPress(ctx context.Context) error {
    return b.sensor.WaitForTap(ctx)
}

// IsPressed reports the instantaneous state of the button.
func (b *Button) IsPressed() bool {
    return b.sensor.IsTapped()
}

// LED drives a single active-high LED.
type LED struct {
    pin gpio.PinOut
    on  bool
}

// NewLED configures pin as an output and switches the LED off.
func NewLED(pin gpio.PinOut) (*LED, error) {
    if pin == nil {
        return nil, errors.New("led: pin not provided")
    }
    l := &LED{pin: pin}
    if err := l.Off(); err != nil {
        return nil, err
    }
    return l, nil
}

// On lights the LED.
func (l *LED) On() error { return l.set(true) }

// Off switches the LED off.
func (l *LED) Off() error { return l.set(false) }

// Toggle inverts the LED.
func (l *LED) Toggle() error { return l.set(!l.on) }

// IsOn reports the level last written to the LED.
func (l *LED) IsOn() bool { return l.on }

func (l *LED) set(on bool) error {
    if err := l.pin.Out(gpio.Level(on)); err != nil {
        return fmt.Errorf("led %s: %w", l.pin, err)
    }
    l.on = on
    return nil
}

// Buzzer is a piezo buzzer driven by a PWM capable pin.
type Buzzer struct {
    pin gpio.PinOut
}

// NewBuzzer makes sure the buzzer starts silent.
func NewBuzzer(pin gpio.PinOut) (*Buzzer, error) {
    if pin == nil {
        return nil, errors.New("buzzer: pin not provided")
    }
    b := &Buzzer{pin: pin}
    if err := b.Stop(); err != nil {
        return nil, err
    }
    return b, nil
}

// Play sounds a tone at freq for length.  When stop is set the output is
// silenced afterwards, otherwise the tone keeps going after Play returns.
func (b *Buzzer) Play(ctx context.Context, freq physic.Frequency, length time.Duration, stop bool) error {
    if freq <= 0 {
        return fmt.Errorf("buzzer: invalid frequency %s", freq)
    }
    if err := b.pin.PWM(gpio.DutyHalf, freq); err != nil {
        return fmt.Errorf("buzzer %s: %w", b.pin, err)
    }
    t := time.NewTimer(length)
    defer t.Stop()
    select {
    case <-ctx.Done():
        _ = b.Stop()
        return ctx.Err()
    case <-t.C:
    }
    if stop {
        return b.Stop()
    }
    return nil
}

// Stop silences the buzzer.
func (b *Buzzer) Stop() error {
    if err := b.pin.Out(gpio.Low); err != nil {
        return fmt.Errorf("buzzer %s: %w", b.pin, err)
    }
    return nil
}
