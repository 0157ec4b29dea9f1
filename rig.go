package main

import (
    "context"
    "errors"
    "fmt"
    "log"
    "strconv"
    "sync"
    "time"

    "periph.io/x/conn/v3/physic"
)

// Phase is the step of a tapping session the rig is in.
type Phase string

const (
    PhaseIdle       Phase = "idle"
    PhaseWaiting    Phase = "waiting" // "PUSH TO START" is shown
    PhaseCountdown  Phase = "countdown"
    PhaseCollecting Phase = "collecting"
    PhaseReview     Phase = "review"
)

// RigStatus is a snapshot of the rig used by the results API.
type RigStatus struct {
    Phase        Phase     `json:"phase"`
    Started      time.Time `json:"started"`
    Taps         int       `json:"taps"`
    LastResultID int       `json:"last_result_id,omitempty"`
}

// Hardware groups the peripherals of the rig.
type Hardware struct {
    Sensor  *Sensor
    Button  *Button
    LED     *LED
    Buzzer  *Buzzer
    Display Display
}

// Rig runs the finger tapping test: a countdown, a fixed window in which the
// patient taps the sensor as fast as possible, and a review of the tapping
// frequency statistics on the LCD.
type Rig struct {
    hw        Hardware
    cfg       SessionConfig
    results   *ResultStore
    notifiers []Notifier
    logger    *EventLogger

    // step is the length of one countdown number and of the hold after each
    // buzzer cue.
    step  time.Duration
    now   func() time.Time
    start chan struct{}

    mu     sync.Mutex
    status RigStatus
}

// NewRig assembles a rig.  results and logger may be nil, in which case
// sessions are neither persisted nor logged.
func NewRig(hw Hardware, cfg SessionConfig, results *ResultStore, notifiers []Notifier, logger *EventLogger) (*Rig, error) {
    if hw.Sensor == nil || hw.Button == nil || hw.LED == nil || hw.Buzzer == nil || hw.Display == nil {
        return nil, errors.New("rig: missing hardware")
    }
    if cfg.Window() <= 0 {
        return nil, fmt.Errorf("rig: invalid window %v", cfg.Window())
    }
    return &Rig{
        hw:        hw,
        cfg:       cfg,
        results:   results,
        notifiers: notifiers,
        logger:    logger,
        step:      time.Second,
        now:       time.Now,
        start:     make(chan struct{}, 1),
        status:    RigStatus{Phase: PhaseIdle},
    }, nil
}

// Status returns a snapshot of what the rig is doing.
func (r *Rig) Status() RigStatus {
    r.mu.Lock()
    defer r.mu.Unlock()
    return r.status
}

// RequestStart starts the pending session as if the button had been
// pressed.  It returns false when the rig is not waiting for a start, or
// when the button got there first.
func (r *Rig) RequestStart() bool {
    r.mu.Lock()
    defer r.mu.Unlock()
    if r.status.Phase != PhaseWaiting {
        return false
    }
    select {
    case r.start <- struct{}{}:
        r.status.Phase = PhaseCountdown
        return true
    default:
        return false
    }
}

func (r *Rig) setPhase(p Phase) {
    r.mu.Lock()
    r.status.Phase = p
    r.mu.Unlock()
}

func (r *Rig) event(format string, args ...any) {
    r.logger.Log(format, args...)
}

// show replaces the LCD contents with text.
func (r *Rig) show(text string) error {
    if err := r.hw.Display.Clear(); err != nil {
        return fmt.Errorf("display: %w", err)
    }
    if err := r.hw.Display.Message(text); err != nil {
        return fmt.Errorf("display: %w", err)
    }
    return nil
}

// RunSession runs one complete test and returns its result.  The result is
// stored and announced as soon as the collection window is over, so it
// survives an interruption during the review screens.
func (r *Rig) RunSession(ctx context.Context) (Result, error) {
    defer r.setPhase(PhaseIdle)

    if err := r.show("PUSH TO START"); err != nil {
        return Result{}, err
    }
    r.mu.Lock()
    // A request that raced with the end of the previous session is stale.
    select {
    case <-r.start:
    default:
    }
    r.status.Phase = PhaseWaiting
    r.mu.Unlock()
    if err := r.waitForStart(ctx); err != nil {
        return Result{}, err
    }

    r.setPhase(PhaseCountdown)
    for i := r.cfg.CountdownSeconds; i > 0; i-- {
        if err := r.show(strconv.Itoa(i)); err != nil {
            return Result{}, err
        }
        if err := sleepCtx(ctx, r.step); err != nil {
            return Result{}, err
        }
    }
    if err := r.show("TAP NOW"); err != nil {
        return Result{}, err
    }
    if err := r.cue(ctx); err != nil {
        return Result{}, err
    }

    res, err := r.collect(ctx)
    if err != nil {
        return Result{}, err
    }

    if err := r.show("TEST DONE"); err != nil {
        return Result{}, err
    }
    if err := r.cue(ctx); err != nil {
        return Result{}, err
    }

    res.Frequencies = Frequencies(res.TapTimes)
    st, statErr := Summarize(res.Frequencies)
    res.Stats = st
    res = r.record(res)

    r.setPhase(PhaseReview)
    if errors.Is(statErr, ErrNoTaps) {
        if err := r.show("NO TAPS"); err != nil {
            return res, err
        }
        if err := r.hw.Button.WaitForPress(ctx); err != nil {
            return res, err
        }
    } else if err := r.review(ctx, st); err != nil {
        return res, err
    }

    if err := r.show("COMPLETE"); err != nil {
        return res, err
    }
    if err := sleepCtx(ctx, r.step); err != nil {
        return res, err
    }
    return res, r.hw.Display.Clear()
}

// waitForStart returns on a button press or on a RequestStart call.  The
// first of the two to leave PhaseWaiting starts the session.
func (r *Rig) waitForStart(ctx context.Context) error {
    ctx, cancel := context.WithCancel(ctx)
    defer cancel()
    pressed := make(chan error, 1)
    go func() { pressed <- r.hw.Button.WaitForPress(ctx) }()
    select {
    case err := <-pressed:
        if err != nil {
            return err
        }
        r.mu.Lock()
        remote := r.status.Phase != PhaseWaiting
        if remote {
            // RequestStart won the race and left its signal behind.
            select {
            case <-r.start:
            default:
            }
        }
        r.status.Phase = PhaseCountdown
        r.mu.Unlock()
        if remote {
            r.event("session started remotely")
        }
        return nil
    case <-r.start:
        r.event("session started remotely")
        return nil
    }
}

// cue lights the LED and sounds the buzzer to mark the start or the end of
// the collection window.
func (r *Rig) cue(ctx context.Context) error {
    if err := r.hw.LED.On(); err != nil {
        return err
    }
    freq := physic.Frequency(r.cfg.CueHz) * physic.Hertz
    length := time.Duration(r.cfg.CueMillis) * time.Millisecond
    if err := r.hw.Buzzer.Play(ctx, freq, length, true); err != nil {
        _ = r.hw.LED.Off()
        return err
    }
    if err := sleepCtx(ctx, r.step); err != nil {
        _ = r.hw.LED.Off()
        return err
    }
    return r.hw.LED.Off()
}

// collect records taps until the window has elapsed.  The window opens
// before the first tap; the tap that is in progress when it closes is still
// counted.
func (r *Rig) collect(ctx context.Context) (Result, error) {
    started := r.now()
    r.mu.Lock()
    r.status = RigStatus{Phase: PhaseCollecting, Started: started, LastResultID: r.status.LastResultID}
    r.mu.Unlock()
    r.event("session started")
    log.Printf("collecting taps for %s", r.cfg.Window())

    res := Result{Started: started}
    window := r.cfg.Window()
    for first := true; first || r.now().Sub(started) < window; first = false {
        if err := r.hw.Sensor.WaitForTap(ctx); err != nil {
            return Result{}, err
        }
        res.TapTimes = append(res.TapTimes, r.hw.Sensor.TapTime())
        r.mu.Lock()
        r.status.Taps = len(res.TapTimes)
        r.mu.Unlock()
    }
    res.Ended = r.now()
    return res, nil
}

// record stores the result and runs the notifiers.  Failures are logged
// and do not abort the session.
func (r *Rig) record(res Result) Result {
    if r.results != nil {
        stored, err := r.results.Add(res)
        if err != nil {
            log.Printf("unable to save result: %v", err)
            r.event("save result error: %v", err)
        } else {
            res = stored
            r.mu.Lock()
            r.status.LastResultID = res.ID
            r.mu.Unlock()
        }
    }
    r.event("session finished: %s", summaryText(res))
    for _, n := range r.notifiers {
        if err := n.Send(res, r.logger); err != nil {
            r.event("notifier %s error: %v", n.Name(), err)
        }
    }
    return res
}

// review walks through the statistics screens, one button press each.
func (r *Rig) review(ctx context.Context, st Stats) error {
    screens := []string{"PUSH FOR AVG,SD", avgLine(st), "PUSH FOR MAX,MIN", rangeLine(st)}
    for _, text := range screens {
        if err := r.show(text); err != nil {
            return err
        }
        if err := r.hw.Button.WaitForPress(ctx); err != nil {
            return err
        }
    }
    return nil
}

// Cleanup leaves the rig in a safe state after an interruption: LED and
// buzzer off and "DEAD" on the display.
func (r *Rig) Cleanup() error {
    var errs []error
    errs = append(errs, r.hw.LED.Off(), r.hw.Buzzer.Stop())
    if err := r.show("DEAD"); err != nil {
        errs = append(errs, err)
    }
    r.setPhase(PhaseIdle)
    return errors.Join(errs...)
}

// RunForever runs sessions back to back until ctx ends.  A failed session
// is logged and followed by a short pause before the next one.
func (r *Rig) RunForever(ctx context.Context) error {
    for {
        _, err := r.RunSession(ctx)
        if ctx.Err() != nil {
            return ctx.Err()
        }
        if err != nil {
            log.Printf("session failed: %v", err)
            r.event("session error: %v", err)
            if err := sleepCtx(ctx, r.step); err != nil {
                return err
            }
        }
    }
}
