package main

import (
    "context"
    "errors"
    "fmt"
    "io"
    "time"
)

// SensorSelfTest walks through the sensor API by hand: it reads the sensor
// state, waits for a tap without callbacks, then again with printing
// callbacks attached, and prints what each callback returned.  Interrupting
// it through ctx is not an error.
func SensorSelfTest(ctx context.Context, s *Sensor, out io.Writer, settle time.Duration) error {
    err := sensorSelfTest(ctx, s, out, settle)
    if errors.Is(err, context.Canceled) {
        err = nil
    }
    fmt.Fprintln(out, "Test Complete")
    return err
}

func sensorSelfTest(ctx context.Context, s *Sensor, out io.Writer, settle time.Duration) error {
    fmt.Fprintln(out, "Sensor Test")
    for i := 0; i < 2; i++ {
        fmt.Fprintln(out, "Is the sensor tapped?")
        fmt.Fprintf(out, "    %v\n", s.IsTapped())
    }

    fmt.Fprintln(out, "Release the sensor.")
    if err := sleepCtx(ctx, settle); err != nil {
        return err
    }

    fmt.Fprintln(out, "Waiting for sensor tap ...")
    if err := s.WaitForTap(ctx); err != nil {
        return err
    }
    fmt.Fprintf(out, "    Sensor tapped at %s\n", s.TapTime().Format(time.StampMilli))

    fmt.Fprintln(out, "Setting callback functions ... ")
    s.SetTappedCallback(func() any {
        fmt.Fprintln(out, "  Sensor tapped")
        return nil
    })
    s.SetUntappedCallback(func() any {
        fmt.Fprintln(out, "  Sensor not tapped")
        return nil
    })
    s.SetOnTapCallback(func() any {
        fmt.Fprintln(out, "  On Sensor tap")
        return 3
    })
    s.SetOnReleaseCallback(func() any {
        fmt.Fprintln(out, "  On Sensor release")
        return 4
    })
    defer func() {
        s.SetTappedCallback(nil)
        s.SetUntappedCallback(nil)
        s.SetOnTapCallback(nil)
        s.SetOnReleaseCallback(nil)
    }()

    fmt.Fprintln(out, "Waiting for sensor with callback functions ...")
    if err := s.WaitForTap(ctx); err != nil {
        return err
    }
    fmt.Fprintf(out, "    Sensor tapped at %s\n", s.TapTime().Format(time.StampMilli))
    fmt.Fprintf(out, "    Sensor tapped callback return value     = %v\n", s.TappedCallbackValue())
    fmt.Fprintf(out, "    Sensor untapped callback return value   = %v\n", s.UntappedCallbackValue())
    fmt.Fprintf(out, "    Sensor on tap callback return value     = %v\n", s.OnTapCallbackValue())
    fmt.Fprintf(out, "    Sensor on release callback return value = %v\n", s.OnReleaseCallbackValue())
    return nil
}
