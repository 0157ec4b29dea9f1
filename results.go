package main

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "sort"
    "sync"
    "time"
)

var errNotFound = errors.New("not found")

// Result is the record of one tapping session.  Frequencies are in Hz and
// derived from consecutive TapTimes.  Stats is zero when fewer than two taps
// were collected.
type Result struct {
    ID          int         `json:"id"`
    Started     time.Time   `json:"started"`
    Ended       time.Time   `json:"ended"`
    TapTimes    []time.Time `json:"tap_times"`
    Frequencies []float64   `json:"frequencies"`
    Stats       Stats       `json:"stats"`
}

// ResultSummary is what listings return: a result without the raw data.
type ResultSummary struct {
    ID      int       `json:"id"`
    Started time.Time `json:"started"`
    Taps    int       `json:"taps"`
    Stats   Stats     `json:"stats"`
}

// Summary drops the raw tap data.
func (r Result) Summary() ResultSummary {
    return ResultSummary{ID: r.ID, Started: r.Started, Taps: len(r.TapTimes), Stats: r.Stats}
}

// ResultStore keeps session results in a JSON file.  Every change is written
// through a temporary file and renamed into place.
type ResultStore struct {
    mu      sync.RWMutex
    path    string
    nextID  int
    results []Result
}

type resultFile struct {
    NextID  int      `json:"next_id"`
    Results []Result `json:"results"`
}

// OpenResultStore loads the store at path, starting empty if the file does
// not exist yet.
func OpenResultStore(path string) (*ResultStore, error) {
    rs := &ResultStore{path: path, nextID: 1}
    data, err := os.ReadFile(path)
    if err != nil {
        if os.IsNotExist(err) {
            return rs, nil
        }
        return nil, fmt.Errorf("unable to read results: %w", err)
    }
    var f resultFile
    if err := json.Unmarshal(data, &f); err != nil {
        return nil, fmt.Errorf("invalid %s: %w", path, err)
    }
    rs.results = f.Results
    rs.nextID = f.NextID
    // IDs are never reused, even if next_id was lost or edited by hand.
    for _, r := range rs.results {
        if r.ID >= rs.nextID {
            rs.nextID = r.ID + 1
        }
    }
    return rs, nil
}

// Add assigns an ID to r, stores it and returns the stored copy.
func (rs *ResultStore) Add(r Result) (Result, error) {
    rs.mu.Lock()
    defer rs.mu.Unlock()
    r.ID = rs.nextID
    rs.nextID++
    rs.results = append(rs.results, r)
    if err := rs.saveLocked(); err != nil {
        rs.results = rs.results[:len(rs.results)-1]
        return Result{}, err
    }
    return r, nil
}

// Get returns the result with the given ID.
func (rs *ResultStore) Get(id int) (Result, error) {
    rs.mu.RLock()
    defer rs.mu.RUnlock()
    for _, r := range rs.results {
        if r.ID == id {
            return r, nil
        }
    }
    return Result{}, fmt.Errorf("result %d: %w", id, errNotFound)
}

// List returns summaries of all results, newest first.
func (rs *ResultStore) List() []ResultSummary {
    rs.mu.RLock()
    defer rs.mu.RUnlock()
    out := make([]ResultSummary, len(rs.results))
    for i, r := range rs.results {
        out[i] = r.Summary()
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
    return out
}

// Delete removes the result with the given ID.
func (rs *ResultStore) Delete(id int) error {
    rs.mu.Lock()
    defer rs.mu.Unlock()
    for i, r := range rs.results {
        if r.ID != id {
            continue
        }
        old := rs.results
        rs.results = append(append([]Result{}, old[:i]...), old[i+1:]...)
        if err := rs.saveLocked(); err != nil {
            rs.results = old
            return err
        }
        return nil
    }
    return fmt.Errorf("result %d: %w", id, errNotFound)
}

func (rs *ResultStore) saveLocked() error {
    bytes, err := json.MarshalIndent(resultFile{NextID: rs.nextID, Results: rs.results}, "", "  ")
    if err != nil {
        return err
    }
    tmpPath := rs.path + ".tmp"
    if err := os.WriteFile(tmpPath, bytes, 0600); err != nil {
        return err
    }
    return os.Rename(tmpPath, rs.path)
}
