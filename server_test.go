package main

import (
    "encoding/json"
    "net/http"
    "net/http/cookiejar"
    "net/http/httptest"
    "path/filepath"
    "strings"
    "testing"
    "time"
)

type apiClient struct {
    t      *testing.T
    base   string
    client *http.Client
}

func newAPIClient(t *testing.T, base string) *apiClient {
    t.Helper()
    jar, err := cookiejar.New(nil)
    if err != nil {
        t.Fatal(err)
    }
    return &apiClient{t: t, base: base, client: &http.Client{Jar: jar}}
}

func (c *apiClient) do(method, path, body string, out any) int {
    c.t.Helper()
    req, err := http.NewRequest(method, c.base+path, strings.NewReader(body))
    if err != nil {
        c.t.Fatal(err)
    }
    resp, err := c.client.Do(req)
    if err != nil {
        c.t.Fatalf("%s %s: %v", method, path, err)
    }
    defer resp.Body.Close()
    if out != nil && resp.StatusCode == http.StatusOK {
        if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
            c.t.Fatalf("%s %s: decode: %v", method, path, err)
        }
    }
    return resp.StatusCode
}

func (c *apiClient) login(user, password string) int {
    c.t.Helper()
    return c.do(http.MethodPost, "/api/login", `{"username":"`+user+`","password":"`+password+`"}`, nil)
}

type testServer struct {
    *httptest.Server
    results *ResultStore
    cfgMgr  *ConfigManager
}

func newTestServer(t *testing.T, rig *Rig) *testServer {
    t.Helper()
    dir := t.TempDir()
    cfgMgr := NewConfigManager(filepath.Join(dir, "config.json"))
    if err := cfgMgr.Load(); err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    results, err := OpenResultStore(filepath.Join(dir, "results.json"))
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    logger := NewEventLogger(filepath.Join(dir, "events.log"))
    srv := httptest.NewServer(NewServer(cfgMgr, rig, results, logger).Handler())
    t.Cleanup(srv.Close)
    return &testServer{Server: srv, results: results, cfgMgr: cfgMgr}
}

func TestServerRequiresLogin(t *testing.T) {
    ts := newTestServer(t, nil)
    c := newAPIClient(t, ts.URL)
    if code := c.do(http.MethodGet, "/api/results", "", nil); code != http.StatusUnauthorized {
        t.Errorf("expected 401, got %d", code)
    }
    if code := c.login("admin", "wrong"); code != http.StatusUnauthorized {
        t.Errorf("expected 401 for a wrong password, got %d", code)
    }
    if code := c.do(http.MethodGet, "/api/login", "", nil); code != http.StatusMethodNotAllowed {
        t.Errorf("expected 405, got %d", code)
    }
    if code := c.login("admin", "admin"); code != http.StatusOK {
        t.Fatalf("expected 200, got %d", code)
    }
    if code := c.do(http.MethodGet, "/api/results", "", nil); code != http.StatusOK {
        t.Errorf("expected 200 after login, got %d", code)
    }
    if code := c.do(http.MethodPost, "/api/logout", "", nil); code != http.StatusNoContent {
        t.Errorf("expected 204, got %d", code)
    }
    if code := c.do(http.MethodGet, "/api/results", "", nil); code != http.StatusUnauthorized {
        t.Errorf("expected 401 after logout, got %d", code)
    }
}

func TestServerResults(t *testing.T) {
    ts := newTestServer(t, nil)
    base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
    stored, err := ts.results.Add(Result{
        Started:     base,
        TapTimes:    []time.Time{base, base.Add(500 * time.Millisecond)},
        Frequencies: []float64{2},
        Stats:       Stats{Count: 1, Mean: 2, Min: 2, Max: 2},
    })
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }

    c := newAPIClient(t, ts.URL)
    if code := c.login("admin", "admin"); code != http.StatusOK {
        t.Fatalf("expected 200, got %d", code)
    }

    var list []ResultSummary
    if code := c.do(http.MethodGet, "/api/results", "", &list); code != http.StatusOK {
        t.Fatalf("expected 200, got %d", code)
    }
    if len(list) != 1 || list[0].ID != stored.ID || list[0].Taps != 2 {
        t.Errorf("unexpected list %+v", list)
    }

    var got Result
    if code := c.do(http.MethodGet, "/api/results/1", "", &got); code != http.StatusOK {
        t.Fatalf("expected 200, got %d", code)
    }
    if got.Stats.Mean != 2 || len(got.Frequencies) != 1 {
        t.Errorf("unexpected result %+v", got)
    }

    tests := []struct {
        method string
        path   string
        want   int
    }{
        {http.MethodGet, "/api/results/abc", http.StatusBadRequest},
        {http.MethodGet, "/api/results/9", http.StatusNotFound},
        {http.MethodPost, "/api/results/1", http.StatusMethodNotAllowed},
        {http.MethodDelete, "/api/results/1", http.StatusNoContent},
        {http.MethodDelete, "/api/results/1", http.StatusNotFound},
        {http.MethodGet, "/api/results/1", http.StatusNotFound},
    }
    for _, tt := range tests {
        if code := c.do(tt.method, tt.path, "", nil); code != tt.want {
            t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.want, code)
        }
    }
}

func TestServerUsers(t *testing.T) {
    ts := newTestServer(t, nil)
    admin := newAPIClient(t, ts.URL)
    if code := admin.login("admin", "admin"); code != http.StatusOK {
        t.Fatalf("expected 200, got %d", code)
    }

    if code := admin.do(http.MethodPost, "/api/users", `{"username":"nurse","password":"pw"}`, nil); code != http.StatusCreated {
        t.Fatalf("expected 201, got %d", code)
    }
    if code := admin.do(http.MethodPost, "/api/users", `{"username":"nurse","password":"pw"}`, nil); code != http.StatusConflict {
        t.Errorf("expected 409 for a duplicate, got %d", code)
    }
    if code := admin.do(http.MethodPost, "/api/users", `{"username":"","password":"pw"}`, nil); code != http.StatusBadRequest {
        t.Errorf("expected 400, got %d", code)
    }

    var users []userInfo
    if code := admin.do(http.MethodGet, "/api/users", "", &users); code != http.StatusOK {
        t.Fatalf("expected 200, got %d", code)
    }
    if len(users) != 2 {
        t.Errorf("expected 2 users, got %+v", users)
    }

    nurse := newAPIClient(t, ts.URL)
    if code := nurse.login("nurse", "pw"); code != http.StatusOK {
        t.Fatalf("expected 200, got %d", code)
    }
    for _, tt := range []struct {
        method, path, body string
    }{
        {http.MethodGet, "/api/users", ""},
        {http.MethodDelete, "/api/results/1", ""},
        {http.MethodGet, "/api/logs", ""},
        {http.MethodPut, "/api/users/admin", `{"password":"x"}`},
        {http.MethodPut, "/api/users/nurse", `{"admin":true}`},
    } {
        if code := nurse.do(tt.method, tt.path, tt.body, nil); code != http.StatusForbidden {
            t.Errorf("%s %s: expected 403, got %d", tt.method, tt.path, code)
        }
    }

    if code := nurse.do(http.MethodPut, "/api/users/nurse", `{"password":"new"}`, nil); code != http.StatusNoContent {
        t.Fatalf("expected 204, got %d", code)
    }
    // Changing the password ends existing sessions.
    if code := nurse.do(http.MethodGet, "/api/results", "", nil); code != http.StatusUnauthorized {
        t.Errorf("expected 401, got %d", code)
    }
    if code := nurse.login("nurse", "new"); code != http.StatusOK {
        t.Errorf("expected login with the new password, got %d", code)
    }

    if code := admin.do(http.MethodDelete, "/api/users/admin", "", nil); code != http.StatusConflict {
        t.Errorf("expected 409 when deleting the last admin, got %d", code)
    }
    if code := admin.do(http.MethodDelete, "/api/users/ghost", "", nil); code != http.StatusNotFound {
        t.Errorf("expected 404, got %d", code)
    }
    if code := admin.do(http.MethodDelete, "/api/users/nurse", "", nil); code != http.StatusNoContent {
        t.Errorf("expected 204, got %d", code)
    }
    if _, idx := ts.cfgMgr.FindUser("nurse"); idx >= 0 {
        t.Error("expected the user to be removed")
    }

    var lines []string
    if code := admin.do(http.MethodGet, "/api/logs?lines=3", "", &lines); code != http.StatusOK {
        t.Fatalf("expected 200, got %d", code)
    }
    if len(lines) != 3 || !strings.Contains(lines[2], "delete user nurse by admin") {
        t.Errorf("unexpected log tail %q", lines)
    }
}

func TestServerStatusAndStart(t *testing.T) {
    ts := newTestServer(t, nil)
    c := newAPIClient(t, ts.URL)
    if code := c.login("admin", "admin"); code != http.StatusOK {
        t.Fatalf("expected 200, got %d", code)
    }
    var st struct {
        Rig     *RigStatus `json:"rig"`
        Results int        `json:"results"`
    }
    if code := c.do(http.MethodGet, "/api/status", "", &st); code != http.StatusOK {
        t.Fatalf("expected 200, got %d", code)
    }
    if st.Rig != nil || st.Results != 0 {
        t.Errorf("unexpected status %+v", st)
    }
    if code := c.do(http.MethodPost, "/api/start", "", nil); code != http.StatusServiceUnavailable {
        t.Errorf("expected 503 without a rig, got %d", code)
    }
}

func TestServerStartIdleRig(t *testing.T) {
    tr := newTestRig(t, newScriptedPin("P2_4", false, hi), newScriptedPin("P2_2", false, hi), 10)
    ts := newTestServer(t, tr.Rig)
    c := newAPIClient(t, ts.URL)
    if code := c.login("admin", "admin"); code != http.StatusOK {
        t.Fatalf("expected 200, got %d", code)
    }
    var st struct {
        Rig *RigStatus `json:"rig"`
    }
    if code := c.do(http.MethodGet, "/api/status", "", &st); code != http.StatusOK {
        t.Fatalf("expected 200, got %d", code)
    }
    if st.Rig == nil || st.Rig.Phase != PhaseIdle {
        t.Errorf("unexpected rig status %+v", st.Rig)
    }
    if code := c.do(http.MethodPost, "/api/start", "", nil); code != http.StatusConflict {
        t.Errorf("expected 409 while no session is pending, got %d", code)
    }
}
