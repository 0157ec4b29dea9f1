package main

import (
    "context"
    "crypto/tls"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "net/http"
    "strconv"
    "strings"
    "time"
)

// Server exposes the rig status and the stored results over HTTP(S).
type Server struct {
    cfgMgr   *ConfigManager
    sessions *SessionManager
    rig      *Rig
    results  *ResultStore
    logger   *EventLogger
}

// NewServer constructs a new Server.  rig may be nil when only stored results
// should be served.
func NewServer(cfgMgr *ConfigManager, rig *Rig, results *ResultStore, logger *EventLogger) *Server {
    return &Server{
        cfgMgr:   cfgMgr,
        sessions: NewSessionManager(),
        rig:      rig,
        results:  results,
        logger:   logger,
    }
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
    mux := http.NewServeMux()
    mux.HandleFunc("/api/login", s.handleLogin)
    mux.HandleFunc("/api/logout", s.handleLogout)
    mux.HandleFunc("/api/status", s.withAuth(s.handleStatus))
    mux.HandleFunc("/api/start", s.withAuth(s.handleStart))
    mux.HandleFunc("/api/results", s.withAuth(s.handleResults))
    mux.HandleFunc("/api/results/", s.withAuth(s.handleResultByID))
    mux.HandleFunc("/api/users", s.withAuth(s.handleUsers))
    mux.HandleFunc("/api/users/", s.withAuth(s.handleUserByName))
    mux.HandleFunc("/api/logs", s.withAuth(s.handleLogs))
    return mux
}

// Start listens until ctx ends.  TLS is used when a certificate and key are
// configured, plain HTTP otherwise.
func (s *Server) Start(ctx context.Context) error {
    cfg := s.cfgMgr.Get()
    addr := fmt.Sprintf(":%d", cfg.HTTPPort)

    srv := &http.Server{
        Addr:              addr,
        Handler:           s.Handler(),
        ReadHeaderTimeout: 10 * time.Second,
        // TLS configuration: use modern defaults
        TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12},
    }

    go s.sessions.PurgeEvery(ctx, time.Hour)
    go func() {
        <-ctx.Done()
        shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer cancel()
        _ = srv.Shutdown(shutdownCtx)
    }()

    var err error
    if cfg.CertFile != "" && cfg.KeyFile != "" {
        log.Printf("Listening on https://0.0.0.0%s\n", addr)
        err = srv.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
    } else {
        log.Printf("Listening on http://0.0.0.0%s\n", addr)
        err = srv.ListenAndServe()
    }
    if errors.Is(err, http.ErrServerClosed) {
        return nil
    }
    return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

// withAuth wraps handlers that require a valid session.  If the request
// contains a valid "session" cookie, it calls the underlying handler with
// the user; otherwise it responds with 401.
func (s *Server) withAuth(handler func(http.ResponseWriter, *http.Request, User)) http.HandlerFunc {
    return func(w http.ResponseWriter, r *http.Request) {
        cookie, err := r.Cookie("session")
        if err != nil {
            http.Error(w, "unauthenticated", http.StatusUnauthorized)
            return
        }
        sess, ok := s.sessions.Get(cookie.Value)
        if !ok {
            http.Error(w, "session expired", http.StatusUnauthorized)
            return
        }
        user, _ := s.cfgMgr.FindUser(sess.Username)
        if user.Username == "" {
            http.Error(w, "unknown user", http.StatusUnauthorized)
            return
        }
        handler(w, r, user)
    }
}

// handleLogin authenticates a user and sets a session cookie.  Expected JSON:
// {"username":"...","password":"..."}
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
        return
    }
    var creds struct {
        Username string `json:"username"`
        Password string `json:"password"`
    }
    if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
        http.Error(w, "invalid JSON", http.StatusBadRequest)
        return
    }
    user, err := s.cfgMgr.Authenticate(creds.Username, creds.Password)
    if err != nil {
        s.logger.Log("failed login %q", creds.Username)
        http.Error(w, "invalid credentials", http.StatusUnauthorized)
        return
    }
    sessID, sess, err := s.sessions.Create(user.Username, sessionTTL)
    if err != nil {
        http.Error(w, "failed to create session", http.StatusInternalServerError)
        return
    }
    http.SetCookie(w, &http.Cookie{
        Name:     "session",
        Value:    sessID,
        Path:     "/",
        HttpOnly: true,
        Secure:   r.TLS != nil,
        SameSite: http.SameSiteStrictMode,
        Expires:  sess.Expires,
    })
    s.logger.Log("login %s", user.Username)
    writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLogout deletes the session cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
        return
    }
    if cookie, err := r.Cookie("session"); err == nil {
        s.sessions.Delete(cookie.Value)
    }
    http.SetCookie(w, &http.Cookie{
        Name:     "session",
        Value:    "",
        Path:     "/",
        HttpOnly: true,
        Secure:   r.TLS != nil,
        Expires:  time.Unix(0, 0),
    })
    s.logger.Log("logout")
    w.WriteHeader(http.StatusNoContent)
}

// handleStatus returns what the rig is doing and how many results are stored.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, user User) {
    if r.Method != http.MethodGet {
        http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
        return
    }
    resp := struct {
        Rig     *RigStatus `json:"rig"`
        Results int        `json:"results"`
    }{Results: len(s.results.List())}
    if s.rig != nil {
        st := s.rig.Status()
        resp.Rig = &st
    }
    writeJSON(w, http.StatusOK, resp)
}

// handleStart starts the session the rig is waiting for, as if its button
// had been pressed.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, user User) {
    if r.Method != http.MethodPost {
        http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
        return
    }
    if s.rig == nil {
        http.Error(w, "no rig attached", http.StatusServiceUnavailable)
        return
    }
    if !s.rig.RequestStart() {
        http.Error(w, "rig is not waiting for a start", http.StatusConflict)
        return
    }
    s.logger.Log("remote start by %s", user.Username)
    w.WriteHeader(http.StatusAccepted)
}

// handleResults lists result summaries, newest first.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request, user User) {
    if r.Method != http.MethodGet {
        http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
        return
    }
    writeJSON(w, http.StatusOK, s.results.List())
}

// handleResultByID returns (GET) or removes (DELETE, admin only) one result.
func (s *Server) handleResultByID(w http.ResponseWriter, r *http.Request, user User) {
    id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/api/results/"))
    if err != nil {
        http.Error(w, "invalid result id", http.StatusBadRequest)
        return
    }
    switch r.Method {
    case http.MethodGet:
        res, err := s.results.Get(id)
        if errors.Is(err, errNotFound) {
            http.Error(w, "result not found", http.StatusNotFound)
            return
        }
        writeJSON(w, http.StatusOK, res)
    case http.MethodDelete:
        if !user.Admin {
            http.Error(w, "forbidden", http.StatusForbidden)
            return
        }
        if err := s.results.Delete(id); err != nil {
            if errors.Is(err, errNotFound) {
                http.Error(w, "result not found", http.StatusNotFound)
                return
            }
            http.Error(w, "failed to delete result", http.StatusInternalServerError)
            return
        }
        s.logger.Log("delete result %d by %s", id, user.Username)
        w.WriteHeader(http.StatusNoContent)
    default:
        http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
    }
}

// userInfo is a User without its password hash.
type userInfo struct {
    Username string `json:"username"`
    Admin    bool   `json:"admin"`
}

// handleUsers lists (GET) or creates (POST) accounts.  Admins only.
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, user User) {
    if !user.Admin {
        http.Error(w, "forbidden", http.StatusForbidden)
        return
    }
    switch r.Method {
    case http.MethodGet:
        cfg := s.cfgMgr.Get()
        out := make([]userInfo, len(cfg.Users))
        for i, u := range cfg.Users {
            out[i] = userInfo{Username: u.Username, Admin: u.Admin}
        }
        writeJSON(w, http.StatusOK, out)
    case http.MethodPost:
        var req struct {
            Username string `json:"username"`
            Password string `json:"password"`
            Admin    bool   `json:"admin"`
        }
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            http.Error(w, "invalid JSON", http.StatusBadRequest)
            return
        }
        req.Username = strings.TrimSpace(req.Username)
        if req.Username == "" || req.Password == "" || strings.Contains(req.Username, "/") {
            http.Error(w, "missing or invalid username or password", http.StatusBadRequest)
            return
        }
        hash, err := newPasswordHash(req.Password)
        if err != nil {
            http.Error(w, "invalid password", http.StatusBadRequest)
            return
        }
        err = s.cfgMgr.Update(func(c *Config) error {
            for _, u := range c.Users {
                if u.Username == req.Username {
                    return errUserExists
                }
            }
            c.Users = append(c.Users, User{Username: req.Username, PasswordHash: hash, Admin: req.Admin})
            return nil
        })
        if errors.Is(err, errUserExists) {
            http.Error(w, "user exists", http.StatusConflict)
            return
        }
        if err != nil {
            http.Error(w, "failed to save user", http.StatusInternalServerError)
            return
        }
        s.logger.Log("create user %s by %s", req.Username, user.Username)
        w.WriteHeader(http.StatusCreated)
    default:
        http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
    }
}

var (
    errUserExists = errors.New("user exists")
    errLastAdmin  = errors.New("last admin")
)

// handleUserByName changes (PUT) or removes (DELETE) an account.  Users may
// change their own password; everything else requires an admin.
func (s *Server) handleUserByName(w http.ResponseWriter, r *http.Request, user User) {
    name := strings.TrimPrefix(r.URL.Path, "/api/users/")
    if name == "" {
        http.Error(w, "missing username", http.StatusBadRequest)
        return
    }
    switch r.Method {
    case http.MethodPut:
        var req struct {
            Password string `json:"password"`
            Admin    *bool  `json:"admin"`
        }
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            http.Error(w, "invalid JSON", http.StatusBadRequest)
            return
        }
        if !user.Admin && (name != user.Username || req.Admin != nil) {
            http.Error(w, "forbidden", http.StatusForbidden)
            return
        }
        var hash string
        if req.Password != "" {
            h, err := newPasswordHash(req.Password)
            if err != nil {
                http.Error(w, "invalid password", http.StatusBadRequest)
                return
            }
            hash = h
        }
        err := s.cfgMgr.Update(func(c *Config) error {
            idx := userIndex(c.Users, name)
            if idx < 0 {
                return errNotFound
            }
            if req.Admin != nil && !*req.Admin && c.Users[idx].Admin && adminCount(c.Users) == 1 {
                return errLastAdmin
            }
            if hash != "" {
                c.Users[idx].PasswordHash = hash
            }
            if req.Admin != nil {
                c.Users[idx].Admin = *req.Admin
            }
            return nil
        })
        if !s.userUpdateFailed(w, err) {
            if hash != "" {
                s.sessions.DeleteUser(name)
            }
            s.logger.Log("update user %s by %s", name, user.Username)
            w.WriteHeader(http.StatusNoContent)
        }
    case http.MethodDelete:
        if !user.Admin {
            http.Error(w, "forbidden", http.StatusForbidden)
            return
        }
        err := s.cfgMgr.Update(func(c *Config) error {
            idx := userIndex(c.Users, name)
            if idx < 0 {
                return errNotFound
            }
            if c.Users[idx].Admin && adminCount(c.Users) == 1 {
                return errLastAdmin
            }
            c.Users = append(c.Users[:idx:idx], c.Users[idx+1:]...)
            return nil
        })
        if !s.userUpdateFailed(w, err) {
            s.sessions.DeleteUser(name)
            s.logger.Log("delete user %s by %s", name, user.Username)
            w.WriteHeader(http.StatusNoContent)
        }
    default:
        http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
    }
}

// userUpdateFailed writes the response for a failed account change and
// reports whether there was one.
func (s *Server) userUpdateFailed(w http.ResponseWriter, err error) bool {
    switch {
    case err == nil:
        return false
    case errors.Is(err, errNotFound):
        http.Error(w, "user not found", http.StatusNotFound)
    case errors.Is(err, errLastAdmin):
        http.Error(w, "cannot remove the last admin", http.StatusConflict)
    default:
        http.Error(w, "failed to save user", http.StatusInternalServerError)
    }
    return true
}

func userIndex(users []User, name string) int {
    for i, u := range users {
        if u.Username == name {
            return i
        }
    }
    return -1
}

func adminCount(users []User) int {
    n := 0
    for _, u := range users {
        if u.Admin {
            n++
        }
    }
    return n
}

// handleLogs returns the event log.  Admins only.  Accepts optional query parameter `lines=n` to limit number of lines returned.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request, user User) {
    if !user.Admin {
        http.Error(w, "forbidden", http.StatusForbidden)
        return
    }
    limit := 200
    if n, err := strconv.Atoi(r.URL.Query().Get("lines")); err == nil && n > 0 {
        limit = n
    }
    lines, err := s.logger.Tail(limit)
    if err != nil {
        http.Error(w, "log not found", http.StatusNotFound)
        return
    }
    writeJSON(w, http.StatusOK, lines)
}
