package main

// This file defines pluggable notifiers run when a tapping session ends.

import (
    "fmt"
    "net/smtp"
    "strings"
)

// Notifier announces a finished session.  Implementations may deliver the
// summary via email or other channels.  If an error is returned, the caller
// should log it but continue operation.
type Notifier interface {
    Name() string
    Send(r Result, logger *EventLogger) error
}

// LogNotifier writes a one line summary to the event log.  This is the
// default notifier if no other notifiers are configured.
type LogNotifier struct{}

// Name returns the type name of the notifier.
func (LogNotifier) Name() string { return "log" }

// Send writes the summary to the event log.
func (LogNotifier) Send(r Result, logger *EventLogger) error {
    logger.Log("result %d: %s", r.ID, summaryText(r))
    return nil
}

// EmailNotifier sends an email via an SMTP server when a session ends.  All
// configuration values are supplied via the corresponding NotifierConfig in
// config.json.  The subject defaults to "Tapping test result" if empty.
type EmailNotifier struct {
    SMTPServer string
    SMTPPort   int
    Username   string
    Password   string
    From       string
    To         string
    Subject    string
}

// Name returns the type name of the notifier.
func (EmailNotifier) Name() string { return "email" }

// Send dispatches a minimal plaintext email.  Errors from smtp.SendMail are
// returned directly so the caller can log them.
func (e EmailNotifier) Send(r Result, logger *EventLogger) error {
    subject := e.Subject
    if subject == "" {
        subject = "Tapping test result"
    }
    body := fmt.Sprintf("Session %d started %s\r\n%s",
        r.ID, r.Started.Format("2006-01-02 15:04:05"), summaryText(r))
    // RFC 5322 requires CRLF line endings.
    msg := fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n", e.To, subject, body)
    addr := fmt.Sprintf("%s:%d", e.SMTPServer, e.SMTPPort)
    auth := smtp.PlainAuth("", e.Username, e.Password, e.SMTPServer)
    return smtp.SendMail(addr, auth, e.From, []string{e.To}, []byte(msg))
}

// summaryText describes the statistics of r in one line.
func summaryText(r Result) string {
    if r.Stats.Count == 0 {
        return fmt.Sprintf("%d taps, no statistics", len(r.TapTimes))
    }
    st := r.Stats
    return fmt.Sprintf("%d taps, mean %.2f Hz, sd %.2f Hz, min %.2f Hz, max %.2f Hz",
        len(r.TapTimes), st.Mean, st.StdDev, st.Min, st.Max)
}

// initNotifiers constructs the notifiers listed in cfg.  If none are
// configured, or none are recognised, a single LogNotifier is returned so
// that every result is at least recorded in the event log.
func initNotifiers(cfg Config) []Notifier {
    var out []Notifier
    for _, nc := range cfg.Notifiers {
        switch strings.ToLower(nc.Type) {
        case "log":
            out = append(out, LogNotifier{})
        case "email":
            out = append(out, EmailNotifier{
                SMTPServer: nc.SMTPServer,
                SMTPPort:   nc.SMTPPort,
                Username:   nc.Username,
                Password:   nc.Password,
                From:       nc.From,
                To:         nc.To,
                Subject:    nc.Subject,
            })
        }
    }
    if len(out) == 0 {
        out = append(out, LogNotifier{})
    }
    return out
}
