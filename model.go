package main

import "time"

// PinConfig names the GPIO used for each peripheral.  Names are whatever the
// host driver registers, e.g. "P2_4" on a PocketBeagle header or "GPIO17".
type PinConfig struct {
    Sensor string `json:"sensor"`
    Button string `json:"button"`
    LED    string `json:"led"`
    Buzzer string `json:"buzzer"`
    Blink  string `json:"blink"` // on-board LED used by the blink program
}

// LCDConfig describes a character LCD wired in 4-bit mode.
type LCDConfig struct {
    RS     string `json:"rs"`
    Enable string `json:"enable"`
    D4     string `json:"d4"`
    D5     string `json:"d5"`
    D6     string `json:"d6"`
    D7     string `json:"d7"`
    Cols   int    `json:"cols"`
    Rows   int    `json:"rows"`
}

// SensorConfig holds the electrical wiring of the tap sensor and button.
type SensorConfig struct {
    TapLow         bool `json:"tap_low"`          // pull-up wiring: tapped reads Low
    PollMillis     int  `json:"poll_ms"`          // sleep between two reads
    InternalPull   bool `json:"internal_pull"`    // enable the SoC pull resistor matching TapLow
    ButtonPressLow bool `json:"button_press_low"` // pull-up wiring on the start button
}

// SessionConfig holds the timings of a tapping test.
type SessionConfig struct {
    CountdownSeconds int     `json:"countdown_seconds"`
    WindowSeconds    float64 `json:"window_seconds"` // length of the data collection window
    CueHz            int     `json:"cue_hz"`         // buzzer tone at start and end of the window
    CueMillis        int     `json:"cue_ms"`
}

// PollInterval converts PollMillis into a duration.
func (c SensorConfig) PollInterval() time.Duration {
    return time.Duration(c.PollMillis) * time.Millisecond
}

// Window converts WindowSeconds into a duration.
func (c SessionConfig) Window() time.Duration {
    return time.Duration(c.WindowSeconds * float64(time.Second))
}

// User represents an account that can log in to the results API.
// Passwords are stored as bcrypt hashes.  The Admin flag indicates
// whether the user may delete results and manage other accounts.
type User struct {
    Username     string `json:"username"`
    PasswordHash string `json:"password_hash"`
    Admin        bool   `json:"admin"`
}

// NotifierConfig configures one way of announcing a finished session.
// Type is "log" or "email"; the SMTP fields are only used by email.
type NotifierConfig struct {
    Type       string `json:"type"`
    SMTPServer string `json:"smtp_server,omitempty"`
    SMTPPort   int    `json:"smtp_port,omitempty"`
    Username   string `json:"username,omitempty"`
    Password   string `json:"password,omitempty"`
    From       string `json:"from,omitempty"`
    To         string `json:"to,omitempty"`
    Subject    string `json:"subject,omitempty"`
}

// Config is the top-level structure serialized to config.json.
type Config struct {
    Pins        PinConfig        `json:"pins"`
    LCD         LCDConfig        `json:"lcd"`
    Sensor      SensorConfig     `json:"sensor"`
    Session     SessionConfig    `json:"session"`
    HTTPPort    int              `json:"http_port"` // port of the results API (default 8443)
    CertFile    string           `json:"cert_file"` // empty: serve plain HTTP
    KeyFile     string           `json:"key_file"`
    ResultsFile string           `json:"results_file"`
    LogFile     string           `json:"log_file"`
    Users       []User           `json:"users"`
    Notifiers   []NotifierConfig `json:"notifiers"`
}
