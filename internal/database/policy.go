package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Policy keys accepted by the settings API. Parsing and validation happen
// here, at the write boundary, so reads always see a well-formed policy.
const (
	PolicyKeySimilarityThreshold = "similarity_threshold"
	PolicyKeyWorkStartTime       = "work_start_time"
	PolicyKeyGracePeriodMinutes  = "grace_period_minutes"
	PolicyKeyLivenessEnabled     = "liveness_check_enabled"
	PolicyKeyLivenessFailClosed  = "liveness_fail_closed"
)

// ScanPolicy is the typed, dynamically mutable scan configuration. Every scan
// reads the value current at that moment; nothing is cached across requests.
type ScanPolicy struct {
	SimilarityThreshold  float64
	WorkStartTime        string // "HH:MM", 24-hour
	GracePeriodMinutes   int
	LivenessCheckEnabled bool
	LivenessFailClosed   bool
	UpdatedAt            time.Time
}

// WorkStart returns the workday start on the same calendar day as t, in t's
// location.
func (p *ScanPolicy) WorkStart(t time.Time) time.Time {
	h, m, _ := parseWorkStart(p.WorkStartTime)
	return time.Date(t.Year(), t.Month(), t.Day(), h, m, 0, 0, t.Location())
}

// GracePeriod returns the grace period as a duration.
func (p *ScanPolicy) GracePeriod() time.Duration {
	return time.Duration(p.GracePeriodMinutes) * time.Minute
}

// Set parses value for the named key and applies it, rejecting malformed or
// out-of-range values. Unknown keys are an error.
func (p *ScanPolicy) Set(key, value string) error {
	switch key {
	case PolicyKeySimilarityThreshold:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		if f < 0 || f > 1 {
			return fmt.Errorf("invalid %s %q: must be in [0,1]", key, value)
		}
		p.SimilarityThreshold = f
	case PolicyKeyWorkStartTime:
		if _, _, err := parseWorkStart(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		p.WorkStartTime = value
	case PolicyKeyGracePeriodMinutes:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		if n < 0 {
			return fmt.Errorf("invalid %s %q: must be >= 0", key, value)
		}
		p.GracePeriodMinutes = n
	case PolicyKeyLivenessEnabled:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		p.LivenessCheckEnabled = b
	case PolicyKeyLivenessFailClosed:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		p.LivenessFailClosed = b
	default:
		return fmt.Errorf("unknown policy key %q", key)
	}
	return nil
}

// Values returns the policy as the key/value map exposed by the settings API.
func (p *ScanPolicy) Values() map[string]string {
	return map[string]string{
		PolicyKeySimilarityThreshold: strconv.FormatFloat(p.SimilarityThreshold, 'f', -1, 64),
		PolicyKeyWorkStartTime:       p.WorkStartTime,
		PolicyKeyGracePeriodMinutes:  strconv.Itoa(p.GracePeriodMinutes),
		PolicyKeyLivenessEnabled:     strconv.FormatBool(p.LivenessCheckEnabled),
		PolicyKeyLivenessFailClosed:  strconv.FormatBool(p.LivenessFailClosed),
	}
}

func parseWorkStart(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
