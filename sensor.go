package main

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "time"

    "periph.io/x/conn/v3/gpio"
)

// defaultPollInterval is the sleep between two reads of the sensor pin while
// waiting for the level to change.
const defaultPollInterval = 100 * time.Millisecond

// Callback is a hook run from the polling loop of a Sensor.  The value it
// returns is kept and can be read back through the matching accessor.
type Callback func() any

// SensorOptions selects the wiring of a tap sensor.
//
// With a pull-up resistor between the sensor and the processor pin the input
// reads High while the sensor is not touched and is pulled to ground when it
// is tapped: set TapLow.  With a pull-down resistor the input rests Low and is
// driven High by a tap: clear TapLow.
type SensorOptions struct {
    TapLow       bool
    PollInterval time.Duration
    // Pull is applied when the pin is configured as an input.
    // DefaultSensorOptions uses gpio.PullNoChange, which leaves the external
    // resistor in charge.
    Pull gpio.Pull
}

// DefaultSensorOptions returns the pull-up wiring with a 100ms poll interval.
func DefaultSensorOptions() SensorOptions {
    return SensorOptions{TapLow: true, PollInterval: defaultPollInterval, Pull: gpio.PullNoChange}
}

// Sensor detects taps on a single digital input by polling it.  A tap is the
// transition from the untapped level to the tapped level followed by the
// release back to the untapped level.  The tap time is taken on release.
//
// Four optional callbacks can be attached: two run on every poll while the
// sensor is respectively tapped or untapped, two run once on the tap and
// release edges.  All of them run synchronously on the goroutine calling
// WaitForTap.
type Sensor struct {
    pin      gpio.PinIn
    tapped   gpio.Level
    untapped gpio.Level
    interval time.Duration
    now      func() time.Time

    mu             sync.Mutex
    tapTime        time.Time
    onTapped       Callback
    onUntapped     Callback
    onTap          Callback
    onRelease      Callback
    tappedValue    any
    untappedValue  any
    onTapValue     any
    onReleaseValue any
}

// NewSensor configures pin as an input and returns a sensor watching it.
func NewSensor(pin gpio.PinIn, opts SensorOptions) (*Sensor, error) {
    if pin == nil {
        return nil, errors.New("sensor: pin not provided")
    }
    if opts.PollInterval < 0 {
        return nil, fmt.Errorf("sensor: negative poll interval %s", opts.PollInterval)
    }
    if opts.PollInterval == 0 {
        opts.PollInterval = defaultPollInterval
    }
    s := &Sensor{
        pin:      pin,
        interval: opts.PollInterval,
        now:      time.Now,
    }
    if opts.TapLow {
        s.untapped, s.tapped = gpio.High, gpio.Low
    } else {
        s.untapped, s.tapped = gpio.Low, gpio.High
    }
    if err := pin.In(opts.Pull, gpio.NoEdge); err != nil {
        return nil, fmt.Errorf("sensor: configure %s: %w", pin, err)
    }
    return s, nil
}

// IsTapped reports whether the sensor is currently tapped.  It reads the pin
// once and does not wait.
func (s *Sensor) IsTapped() bool {
    return s.pin.Read() == s.tapped
}

// WaitForTap blocks until the sensor has been tapped and released, so that
// consecutive calls never count the same tap twice.  Use the callbacks to act
// while waiting.  If ctx ends first its error is returned and the tap time is
// left untouched.
func (s *Sensor) WaitForTap(ctx context.Context) error {
    for s.pin.Read() == s.untapped {
        s.run(&s.onUntapped, &s.untappedValue)
        if err := sleepCtx(ctx, s.interval); err != nil {
            return err
        }
    }
    s.run(&s.onTap, &s.onTapValue)

    for s.pin.Read() == s.tapped {
        s.run(&s.onTapped, &s.tappedValue)
        if err := sleepCtx(ctx, s.interval); err != nil {
            return err
        }
    }

    s.mu.Lock()
    s.tapTime = s.now()
    s.mu.Unlock()

    s.run(&s.onRelease, &s.onReleaseValue)
    return nil
}

// TapTime returns the time of the most recent tap, or the zero time if the
// sensor has not been tapped yet.
func (s *Sensor) TapTime() time.Time {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.tapTime
}

// Halt releases the pin.
func (s *Sensor) Halt() error {
    return s.pin.Halt()
}

// run calls the hook stored in slot, if any, and stores its result in value.
func (s *Sensor) run(slot *Callback, value *any) {
    s.mu.Lock()
    fn := *slot
    s.mu.Unlock()
    if fn == nil {
        return
    }
    v := fn()
    s.mu.Lock()
    *value = v
    s.mu.Unlock()
}

// sleepCtx pauses for d or until ctx ends, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-t.C:
        return nil
    }
}

// SetTappedCallback sets the function run every poll interval while the
// sensor is tapped.  A nil function removes the hook.
func (s *Sensor) SetTappedCallback(fn Callback) {
    s.mu.Lock()
    s.onTapped = fn
    s.mu.Unlock()
}

// SetUntappedCallback sets the function run every poll interval while the
// sensor is not tapped.
func (s *Sensor) SetUntappedCallback(fn Callback) {
    s.mu.Lock()
    s.onUntapped = fn
    s.mu.Unlock()
}

// SetOnTapCallback sets the function run once when the sensor is tapped.
func (s *Sensor) SetOnTapCallback(fn Callback) {
    s.mu.Lock()
    s.onTap = fn
    s.mu.Unlock()
}

// SetOnReleaseCallback sets the function run once when the sensor is released.
func (s *Sensor) SetOnReleaseCallback(fn Callback) {
    s.mu.Lock()
    s.onRelease = fn
    s.mu.Unlock()
}

// TappedCallbackValue returns the last result of the tapped-tick callback,
// or nil if it has not run yet.
func (s *Sensor) TappedCallbackValue() any {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.tappedValue
}

// UntappedCallbackValue returns the last result of the untapped-tick callback,
// or nil if it has not run yet.
func (s *Sensor) UntappedCallbackValue() any {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.untappedValue
}

// OnTapCallbackValue returns the last result of the on-tap callback,
// or nil if it has not run yet.
func (s *Sensor) OnTapCallbackValue() any {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.onTapValue
}

// OnReleaseCallbackValue returns the last result of the on-release callback,
// or nil if it has not run yet.
func (s *Sensor) OnReleaseCallbackValue() any {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.onReleaseValue
}
