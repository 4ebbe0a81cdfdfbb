// Package liveness wraps an external vision model as a liveness oracle and
// applies the gate's fail-open/fail-closed policy on top of it.
package liveness

import (
	"context"
	"strings"
)

// livenessPrompt asks for an unambiguous yes/no verdict.
const livenessPrompt = "Does this image show a real live person present in front of the camera? Reply only with yes or no."

// Verdict is the oracle's answer about a captured frame.
type Verdict int

const (
	// VerdictUnknown means the oracle answered something other than yes/no.
	VerdictUnknown Verdict = iota
	// VerdictLive means the oracle saw a live person.
	VerdictLive
	// VerdictNotLive is an unambiguous negative.
	VerdictNotLive
)

// Oracle probes a frame for liveness. Implementations wrap a remote model;
// transport and API failures surface as errors, ambiguous answers as
// VerdictUnknown.
type Oracle interface {
	Name() string
	Probe(ctx context.Context, frame []byte) (Verdict, error)
}

// parseVerdict maps the model's free-text answer onto a verdict. The prompt
// demands a bare yes/no, so only answers leading with one count; anything
// else is ambiguous.
func parseVerdict(answer string) Verdict {
	answer = strings.ToLower(strings.TrimSpace(answer))
	switch {
	case strings.HasPrefix(answer, "yes"):
		return VerdictLive
	case strings.HasPrefix(answer, "no"):
		return VerdictNotLive
	default:
		return VerdictUnknown
	}
}
