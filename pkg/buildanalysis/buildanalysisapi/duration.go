package buildanalysisapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrUnparseableDuration is returned for duration values that are neither a
// millisecond count nor a human readable span like "1 hr 2 min 3 sec".
var ErrUnparseableDuration = errors.New("unparseable duration")

// Duration holds a duration as Jenkins serialized it. Depending on the API and
// the plugin version this is either a number of milliseconds or a human
// readable string, so decoding is deferred until Value is called and a single
// bad value can not fail the decoding of a whole snapshot.
type Duration struct {
	raw json.RawMessage
}

// NewDuration returns a Duration serialized as a millisecond count.
func NewDuration(d time.Duration) Duration {
	return Duration{raw: json.RawMessage(strconv.FormatInt(d.Milliseconds(), 10))}
}

// NewHumanDuration returns a Duration serialized as a human readable string.
func NewHumanDuration(s string) Duration {
	raw, _ := json.Marshal(s)
	return Duration{raw: raw}
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	d.raw = append(d.raw[:0], data...)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	if !d.IsSet() {
		return []byte("null"), nil
	}
	return d.raw, nil
}

// IsSet returns false if the field was absent or null.
func (d Duration) IsSet() bool {
	trimmed := bytes.TrimSpace(d.raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Value decodes the duration. A nil duration and nil error are returned when
// the field was not set.
func (d Duration) Value() (*time.Duration, error) {
	if !d.IsSet() {
		return nil, nil
	}
	raw := bytes.TrimSpace(d.raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnparseableDuration, string(raw))
		}
		value, err := parseDurationString(s)
		if err != nil {
			return nil, err
		}
		return &value, nil
	}
	value, err := parseMilliseconds(string(raw))
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func parseDurationString(s string) (time.Duration, error) {
	value, err := ParseHumanDuration(s)
	if err == nil {
		return value, nil
	}
	// some plugin versions stringify the millisecond count
	if ms, msErr := parseMilliseconds(strings.TrimSpace(s)); msErr == nil {
		return ms, nil
	}
	return 0, err
}

func parseMilliseconds(s string) (time.Duration, error) {
	ms, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(ms) || ms < 0 || ms*float64(time.Millisecond) >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q", ErrUnparseableDuration, s)
	}
	return time.Duration(math.Round(ms * float64(time.Millisecond))), nil
}

var humanUnits = []struct {
	names []string
	unit  time.Duration
}{
	{names: []string{"day", "days"}, unit: 24 * time.Hour},
	{names: []string{"hr", "hrs"}, unit: time.Hour},
	{names: []string{"min", "mins"}, unit: time.Minute},
	{names: []string{"sec", "secs"}, unit: time.Second},
	{names: []string{"ms"}, unit: time.Millisecond},
}

func unitRank(name string) int {
	for rank, u := range humanUnits {
		for _, n := range u.names {
			if n == name {
				return rank
			}
		}
	}
	return -1
}

// ParseHumanDuration parses the span format Jenkins renders, like
// "1 hr 2 min 3 sec", "45 sec" or "2.3 sec". Any subset of the units may be
// present but they must appear largest unit first and at most once each.
func ParseHumanDuration(s string) (time.Duration, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields)%2 != 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnparseableDuration, s)
	}

	var exact float64
	lastRank := -1
	for i := 0; i < len(fields); i += 2 {
		amount, err := strconv.ParseFloat(fields[i], 64)
		if err != nil || amount < 0 || math.IsInf(amount, 0) || math.IsNaN(amount) {
			return 0, fmt.Errorf("%w: %q has invalid amount %q", ErrUnparseableDuration, s, fields[i])
		}
		rank := unitRank(fields[i+1])
		if rank < 0 {
			return 0, fmt.Errorf("%w: %q has unknown unit %q", ErrUnparseableDuration, s, fields[i+1])
		}
		if rank <= lastRank {
			return 0, fmt.Errorf("%w: %q has units out of order", ErrUnparseableDuration, s)
		}
		lastRank = rank
		exact += amount * float64(humanUnits[rank].unit)
	}
	if exact >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q is out of range", ErrUnparseableDuration, s)
	}
	return time.Duration(math.Round(exact)), nil
}
