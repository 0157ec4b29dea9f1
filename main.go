package main

import (
    "context"
    "errors"
    "flag"
    "fmt"
    "log"
    "os"
    "os/signal"
    "syscall"
    "time"

    "periph.io/x/conn/v3/gpio"
)

const usage = `usage: taptest [-config file] [run|serve|sensor|blink]

  run     run one tapping test session (default)
  serve   serve the results API and run sessions back to back
  sensor  interactive test of the tap sensor
  blink   blink the on-board LED at 5 Hz
`

// Entry point for the tapping test rig
func main() {
    var configPath string
    flag.StringVar(&configPath, "config", defaultConfigPath, "path of the JSON configuration file")
    flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
    flag.Parse()

    mode := "run"
    if flag.NArg() > 0 {
        mode = flag.Arg(0)
    }

    cfgMgr := NewConfigManager(configPath)
    if err := cfgMgr.Load(); err != nil {
        log.Fatalf("failed to load configuration: %v", err)
    }
    if err := initGPIO(); err != nil {
        log.Fatalf("gpio initialisation error: %v", err)
    }

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    var err error
    switch mode {
    case "run":
        err = runOnce(ctx, cfgMgr)
    case "serve":
        err = serve(ctx, cfgMgr)
    case "sensor":
        err = runSensorTest(ctx, cfgMgr.Get())
    case "blink":
        err = runBlink(ctx, cfgMgr.Get())
    default:
        flag.Usage()
        os.Exit(2)
    }
    if err != nil && !errors.Is(err, context.Canceled) {
        log.Fatalf("%s: %v", mode, err)
    }
    log.Println("Program Complete")
}

// openHardware configures every peripheral named in cfg.
func openHardware(cfg Config) (Hardware, error) {
    var hw Hardware
    pin := func(name, role string) (gpio.PinIO, error) {
        p, err := openPin(name)
        if err != nil {
            return nil, fmt.Errorf("%s: %w", role, err)
        }
        return p, nil
    }

    p, err := pin(cfg.Pins.Sensor, "sensor")
    if err != nil {
        return hw, err
    }
    if hw.Sensor, err = NewSensor(p, sensorOptions(cfg.Sensor)); err != nil {
        return hw, err
    }
    if p, err = pin(cfg.Pins.Button, "button"); err != nil {
        return hw, err
    }
    if hw.Button, err = NewButton(p, cfg.Sensor.ButtonPressLow, cfg.Sensor.PollInterval()); err != nil {
        return hw, err
    }
    if p, err = pin(cfg.Pins.LED, "led"); err != nil {
        return hw, err
    }
    if hw.LED, err = NewLED(p); err != nil {
        return hw, err
    }
    if p, err = pin(cfg.Pins.Buzzer, "buzzer"); err != nil {
        return hw, err
    }
    if hw.Buzzer, err = NewBuzzer(p); err != nil {
        return hw, err
    }
    if hw.Display, err = openDisplay(cfg.LCD); err != nil {
        return hw, err
    }
    return hw, hw.Display.Clear()
}

// sensorOptions maps the JSON wiring settings onto the driver options.
func sensorOptions(c SensorConfig) SensorOptions {
    opts := SensorOptions{TapLow: c.TapLow, PollInterval: c.PollInterval(), Pull: gpio.PullNoChange}
    if c.InternalPull {
        opts.Pull = gpio.PullDown
        if c.TapLow {
            opts.Pull = gpio.PullUp
        }
    }
    return opts
}

// newRig opens the hardware and the results store described by cfg.
func newRig(cfg Config) (*Rig, *ResultStore, *EventLogger, error) {
    hw, err := openHardware(cfg)
    if err != nil {
        return nil, nil, nil, err
    }
    results, err := OpenResultStore(cfg.ResultsFile)
    if err != nil {
        return nil, nil, nil, err
    }
    logger := NewEventLogger(cfg.LogFile)
    rig, err := NewRig(hw, cfg.Session, results, initNotifiers(cfg), logger)
    if err != nil {
        return nil, nil, nil, err
    }
    return rig, results, logger, nil
}

// runOnce runs a single session.  An interruption leaves "DEAD" on the LCD.
func runOnce(ctx context.Context, cfgMgr *ConfigManager) error {
    log.Println("Program Start")
    rig, _, _, err := newRig(cfgMgr.Get())
    if err != nil {
        return err
    }
    res, err := rig.RunSession(ctx)
    if err != nil {
        if cerr := rig.Cleanup(); cerr != nil {
            log.Printf("cleanup: %v", cerr)
        }
        return err
    }
    log.Printf("result %d: %s", res.ID, summaryText(res))
    return nil
}

// serve runs the results API next to back to back sessions.
func serve(ctx context.Context, cfgMgr *ConfigManager) error {
    rig, results, logger, err := newRig(cfgMgr.Get())
    if err != nil {
        return err
    }
    ctx, cancel := context.WithCancel(ctx)
    defer cancel()

    srvErr := make(chan error, 1)
    go func() {
        srvErr <- NewServer(cfgMgr, rig, results, logger).Start(ctx)
        cancel()
    }()

    err = rig.RunForever(ctx)
    if cerr := rig.Cleanup(); cerr != nil {
        log.Printf("cleanup: %v", cerr)
    }
    cancel()
    if serr := <-srvErr; serr != nil {
        return serr
    }
    return err
}

func runSensorTest(ctx context.Context, cfg Config) error {
    p, err := openPin(cfg.Pins.Sensor)
    if err != nil {
        return err
    }
    s, err := NewSensor(p, sensorOptions(cfg.Sensor))
    if err != nil {
        return err
    }
    defer s.Halt()
    return SensorSelfTest(ctx, s, os.Stdout, 4*time.Second)
}

func runBlink(ctx context.Context, cfg Config) error {
    p, err := openPin(cfg.Pins.Blink)
    if err != nil {
        return err
    }
    led, err := NewLED(p)
    if err != nil {
        return err
    }
    return Blink(ctx, led, blinkHalfPeriod)
}
