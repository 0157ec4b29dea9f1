package main

import (
    "context"
    "errors"
    "testing"
    "time"

    "periph.io/x/conn/v3/gpio"
    "periph.io/x/conn/v3/gpio/gpiotest"
    "periph.io/x/conn/v3/physic"
)

func TestButtonWaitForPress(t *testing.T) {
    pin := newScriptedPin("P2_2", false, hi, hi, lo, hi)
    b, err := NewButton(pin, true, time.Millisecond)
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if err := b.WaitForPress(context.Background()); err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if b.IsPressed() {
        t.Error("button must read released after the script ends High")
    }
}

func TestButtonMissingPin(t *testing.T) {
    if _, err := NewButton(nil, true, time.Millisecond); err == nil {
        t.Error("expected error for missing pin")
    }
}

func TestLED(t *testing.T) {
    pin := &gpiotest.Pin{N: "P2_3", L: gpio.High}
    l, err := NewLED(pin)
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if pin.L != gpio.Low || l.IsOn() {
        t.Fatal("a new LED must start off")
    }
    steps := []struct {
        op   func() error
        want gpio.Level
    }{
        {l.On, gpio.High},
        {l.Toggle, gpio.Low},
        {l.Toggle, gpio.High},
        {l.Off, gpio.Low},
    }
    for i, s := range steps {
        if err := s.op(); err != nil {
            t.Fatalf("step %d: unexpected error: %v", i, err)
        }
        if pin.L != s.want {
            t.Errorf("step %d: expected %s, got %s", i, s.want, pin.L)
        }
        if l.IsOn() != bool(s.want) {
            t.Errorf("step %d: IsOn disagrees with the pin", i)
        }
    }
}

func TestBuzzerPlay(t *testing.T) {
    pin := &gpiotest.Pin{N: "P2_1"}
    b, err := NewBuzzer(pin)
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if err := b.Play(context.Background(), 440*physic.Hertz, time.Millisecond, true); err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if pin.D != gpio.DutyHalf {
        t.Errorf("expected duty %s, got %s", gpio.DutyHalf, pin.D)
    }
    if pin.F != 440*physic.Hertz {
        t.Errorf("expected 440Hz, got %s", pin.F)
    }
    if pin.L != gpio.Low {
        t.Error("expected the buzzer to be stopped")
    }
}

func TestBuzzerPlayInvalid(t *testing.T) {
    b, err := NewBuzzer(&gpiotest.Pin{N: "P2_1"})
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if err := b.Play(context.Background(), 0, time.Millisecond, true); err == nil {
        t.Error("expected error for zero frequency")
    }
}

func TestBuzzerPlayCanceled(t *testing.T) {
    pin := &gpiotest.Pin{N: "P2_1"}
    b, err := NewBuzzer(pin)
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    if err := b.Play(ctx, 440*physic.Hertz, time.Hour, false); !errors.Is(err, context.Canceled) {
        t.Fatalf("expected context.Canceled, got %v", err)
    }
    if pin.L != gpio.Low {
        t.Error("expected the buzzer to be silenced on cancel")
    }
}
