package main

import (
    "bytes"
    "context"
    "strings"
    "testing"
    "time"

    "periph.io/x/conn/v3/gpio"
    "periph.io/x/conn/v3/gpio/gpiotest"
)

func TestSensorSelfTest(t *testing.T) {
    pin := newScriptedPin("P2_4", true, hi, lo, hi)
    s, err := NewSensor(pin, fastOptions(true))
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    var out bytes.Buffer
    if err := SensorSelfTest(context.Background(), s, &out, time.Millisecond); err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    got := out.String()
    for _, want := range []string{
        "Sensor Test",
        "Is the sensor tapped?",
        "Waiting for sensor with callback functions ...",
        "  On Sensor tap",
        "  On Sensor release",
        "on tap callback return value     = 3",
        "on release callback return value = 4",
        "Test Complete",
    } {
        if !strings.Contains(got, want) {
            t.Errorf("expected %q in output:\n%s", want, got)
        }
    }
    if s.OnTapCallbackValue() != 3 {
        t.Errorf("expected on tap value 3, got %v", s.OnTapCallbackValue())
    }
}

func TestSensorSelfTestInterrupted(t *testing.T) {
    s, err := NewSensor(&gpiotest.Pin{N: "P2_4", L: gpio.High}, fastOptions(true))
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    var out bytes.Buffer
    if err := SensorSelfTest(ctx, s, &out, time.Hour); err != nil {
        t.Fatalf("an interruption is not an error, got %v", err)
    }
    if !strings.HasSuffix(out.String(), "Test Complete\n") {
        t.Errorf("unexpected output:\n%s", out.String())
    }
}
