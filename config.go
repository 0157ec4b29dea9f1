package main

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "sync"
)

// defaultConfigPath is the default filename for persisted configuration.
const defaultConfigPath = "config.json"

// ConfigManager wraps the loaded configuration and a mutex for concurrent access.
// When modifying configuration through the HTTP API, always go through
// Update so the change is persisted.
type ConfigManager struct {
    mu     sync.RWMutex
    path   string
    cfg    Config
    loaded bool
}

// NewConfigManager returns a manager backed by the file at path.  An empty
// path selects config.json in the working directory.
func NewConfigManager(path string) *ConfigManager {
    if path == "" {
        path = defaultConfigPath
    }
    return &ConfigManager{path: path}
}

// defaultConfig matches the reference wiring of the rig on a PocketBeagle:
// sensor on P2_4, button on P2_2, LED on P2_3, buzzer on P2_1 and a 16x2 LCD.
// It has no users; see initialConfig.
func defaultConfig() Config {
    return Config{
        Pins: PinConfig{
            Sensor: "P2_4",
            Button: "P2_2",
            LED:    "P2_3",
            Buzzer: "P2_1",
            Blink:  "USR3",
        },
        LCD: LCDConfig{
            RS: "P1_2", Enable: "P1_4",
            D4: "P2_6", D5: "P2_8", D6: "P2_10", D7: "P2_18",
            Cols: 16, Rows: 2,
        },
        Sensor: SensorConfig{
            TapLow:         true,
            PollMillis:     100,
            ButtonPressLow: true,
        },
        Session: SessionConfig{
            CountdownSeconds: 5,
            WindowSeconds:    10,
            CueHz:            440,
            CueMillis:        1000,
        },
        HTTPPort:    8443,
        CertFile:    "server.crt",
        KeyFile:     "server.key",
        ResultsFile: "results.json",
        LogFile:     "events.log",
        Notifiers:   []NotifierConfig{{Type: "log"}},
    }
}

// initialConfig is written on first start.  It carries a single admin user
// (password: "admin", which you should change immediately).
func initialConfig() Config {
    cfg := defaultConfig()
    cfg.Users = []User{
        {Username: "admin", PasswordHash: hashPassword("admin"), Admin: true},
    }
    return cfg
}

// applyDefaults fills numeric settings left at zero in a hand written file.
func applyDefaults(c *Config) {
    d := defaultConfig()
    if c.LCD.Cols == 0 {
        c.LCD.Cols = d.LCD.Cols
    }
    if c.LCD.Rows == 0 {
        c.LCD.Rows = d.LCD.Rows
    }
    if c.Sensor.PollMillis == 0 {
        c.Sensor.PollMillis = d.Sensor.PollMillis
    }
    if c.Session.WindowSeconds == 0 {
        c.Session.WindowSeconds = d.Session.WindowSeconds
    }
    if c.Session.CueHz == 0 {
        c.Session.CueHz = d.Session.CueHz
    }
    if c.Session.CueMillis == 0 {
        c.Session.CueMillis = d.Session.CueMillis
    }
    if c.ResultsFile == "" {
        c.ResultsFile = d.ResultsFile
    }
    if c.LogFile == "" {
        c.LogFile = d.LogFile
    }
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
    if c.Pins.Sensor == "" {
        return errors.New("pins.sensor is required")
    }
    if c.Sensor.PollMillis < 0 {
        return fmt.Errorf("sensor.poll_ms must not be negative, got %d", c.Sensor.PollMillis)
    }
    if c.Session.CountdownSeconds < 0 {
        return fmt.Errorf("session.countdown_seconds must not be negative, got %d", c.Session.CountdownSeconds)
    }
    if c.Session.WindowSeconds <= 0 {
        return fmt.Errorf("session.window_seconds must be positive, got %v", c.Session.WindowSeconds)
    }
    if c.Session.CueHz <= 0 || c.Session.CueMillis < 0 {
        return fmt.Errorf("invalid cue tone %d Hz for %d ms", c.Session.CueHz, c.Session.CueMillis)
    }
    if c.LCD.Cols <= 0 || c.LCD.Rows <= 0 {
        return fmt.Errorf("invalid lcd geometry %dx%d", c.LCD.Cols, c.LCD.Rows)
    }
    if c.HTTPPort < 0 || c.HTTPPort > 65535 {
        return fmt.Errorf("invalid http_port %d", c.HTTPPort)
    }
    return nil
}

// Load reads configuration from disk.  If the file does not exist, the
// default configuration is persisted to disk and used.
func (cm *ConfigManager) Load() error {
    cm.mu.Lock()
    // If the config is already loaded in memory, release the lock and return.
    if cm.loaded {
        cm.mu.Unlock()
        return nil
    }
    data, err := os.ReadFile(cm.path)
    if err != nil {
        if os.IsNotExist(err) {
            cm.cfg = initialConfig()
            cm.loaded = true
            // Release the write lock before saving to avoid deadlock: Save acquires
            // a read lock on the same mutex.
            cm.mu.Unlock()
            return cm.Save()
        }
        cm.mu.Unlock()
        return fmt.Errorf("unable to read config: %w", err)
    }
    var cfg Config
    if err := json.Unmarshal(data, &cfg); err != nil {
        cm.mu.Unlock()
        return fmt.Errorf("invalid %s: %w", cm.path, err)
    }
    applyDefaults(&cfg)
    if err := cfg.Validate(); err != nil {
        cm.mu.Unlock()
        return fmt.Errorf("invalid %s: %w", cm.path, err)
    }
    cm.cfg = cfg
    cm.loaded = true
    cm.mu.Unlock()
    return nil
}

// Save writes the configuration to disk.  Call this after any changes to
// configuration via the API.
func (cm *ConfigManager) Save() error {
    cm.mu.RLock()
    defer cm.mu.RUnlock()

    bytes, err := json.MarshalIndent(cm.cfg, "", "  ")
    if err != nil {
        return err
    }
    tmpPath := cm.path + ".tmp"
    if err := os.WriteFile(tmpPath, bytes, 0600); err != nil {
        return err
    }
    return os.Rename(tmpPath, cm.path)
}

// Get returns a copy of the current configuration.  Callers must treat the
// returned Config as immutable.
func (cm *ConfigManager) Get() Config {
    cm.mu.RLock()
    defer cm.mu.RUnlock()
    return cm.cfg
}

// Update applies a user supplied function to modify the configuration.  It
// holds the write lock, calls the supplied function with a pointer to the
// internal config, and then persists the change.  The updater must not
// capture the pointer beyond the scope of the function.
func (cm *ConfigManager) Update(fn func(*Config) error) error {
    cm.mu.Lock()
    if err := fn(&cm.cfg); err != nil {
        cm.mu.Unlock()
        return err
    }
    cm.mu.Unlock()
    return cm.Save()
}

// FindUser returns a user and its index by username.  If not found, index
// will be -1.
func (cm *ConfigManager) FindUser(username string) (User, int) {
    cm.mu.RLock()
    defer cm.mu.RUnlock()
    for i, u := range cm.cfg.Users {
        if u.Username == username {
            return u, i
        }
    }
    return User{}, -1
}

// Authenticate checks whether the provided username and password are valid.  It
// returns the user object if authentication succeeds.
func (cm *ConfigManager) Authenticate(username, password string) (User, error) {
    user, _ := cm.FindUser(username)
    if user.Username == "" {
        return User{}, errors.New("invalid credentials")
    }
    if err := checkPasswordHash(password, user.PasswordHash); err != nil {
        return User{}, errors.New("invalid credentials")
    }
    return user, nil
}
