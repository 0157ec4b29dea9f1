package main

import (
    "errors"
    "math"
    "strconv"
    "strings"
    "time"
)

// ErrNoTaps is returned when there are not enough taps to compute statistics.
var ErrNoTaps = errors.New("not enough taps recorded")

// Stats summarises the tapping frequencies of one session, in Hz.
type Stats struct {
    Count  int     `json:"count"`
    Mean   float64 `json:"mean"`
    StdDev float64 `json:"stddev"`
    Min    float64 `json:"min"`
    Max    float64 `json:"max"`
}

// Frequencies converts consecutive tap times into instantaneous tapping
// frequencies.  Pairs that are not strictly increasing are skipped.
func Frequencies(taps []time.Time) []float64 {
    var out []float64
    for i := 1; i < len(taps); i++ {
        dt := taps[i].Sub(taps[i-1]).Seconds()
        if dt <= 0 {
            continue
        }
        out = append(out, 1/dt)
    }
    return out
}

// Summarize computes the mean, population standard deviation, minimum and
// maximum of freqs.
func Summarize(freqs []float64) (Stats, error) {
    if len(freqs) == 0 {
        return Stats{}, ErrNoTaps
    }
    st := Stats{Count: len(freqs), Min: math.Inf(1), Max: math.Inf(-1)}
    var sum float64
    for _, f := range freqs {
        sum += f
        st.Min = math.Min(st.Min, f)
        st.Max = math.Max(st.Max, f)
    }
    st.Mean = sum / float64(len(freqs))
    var sq float64
    for _, f := range freqs {
        d := f - st.Mean
        sq += d * d
    }
    st.StdDev = math.Sqrt(sq / float64(len(freqs)))
    return st, nil
}

// formatFloat renders v in its shortest round-trip form.  Whole numbers keep
// a trailing ".0" and magnitudes below 1e-4 or from 1e16 up use an exponent,
// so 2 reads "2.0" and 0.00001 reads "1e-05".
func formatFloat(v float64) string {
    if abs := math.Abs(v); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
        return strconv.FormatFloat(v, 'e', -1, 64)
    }
    s := strconv.FormatFloat(v, 'f', -1, 64)
    if !strings.Contains(s, ".") {
        s += ".0"
    }
    return s
}

// truncFloat keeps the first n characters of formatFloat(v), which is how
// values are squeezed onto the 16 column LCD.
func truncFloat(v float64, n int) string {
    s := formatFloat(v)
    if len(s) > n {
        s = s[:n]
    }
    return s
}

// avgLine and rangeLine are the two result screens shown at the end of a
// session.
func avgLine(st Stats) string {
    return "AVG-" + truncFloat(st.Mean, 4) + " STD-" + truncFloat(st.StdDev, 3)
}

func rangeLine(st Stats) string {
    return "MIN-" + truncFloat(st.Min, 4) + " MAX-" + truncFloat(st.Max, 3)
}
