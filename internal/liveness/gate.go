package liveness

import (
	"context"
	"errors"
	"log"
	"time"
)

// ErrRejected is the oracle's unambiguous negative verdict.
var ErrRejected = errors.New("liveness check failed")

// ErrUnavailable is returned under fail-closed policy when the oracle is
// unreachable, times out, or answers ambiguously.
var ErrUnavailable = errors.New("liveness oracle unavailable")

// Gate wraps an Oracle with a bounded timeout and the configured failure
// policy. Default behavior fails open: availability of attendance capture is
// prioritized over strict anti-spoofing when the oracle is degraded.
// Deployments that want the stricter trade-off set the policy's fail-closed
// flag instead of editing code.
type Gate struct {
	oracle  Oracle
	timeout time.Duration
}

// NewGate creates a gate around the oracle. timeout bounds each probe.
func NewGate(oracle Oracle, timeout time.Duration) *Gate {
	return &Gate{oracle: oracle, timeout: timeout}
}

// AssertLive probes the frame and applies the failure policy. An explicit
// negative verdict always returns ErrRejected. Oracle errors and ambiguous
// answers return nil (fail open) unless failClosed is set, in which case
// they return ErrUnavailable.
func (g *Gate) AssertLive(ctx context.Context, frame []byte, failClosed bool) error {
	if g.oracle == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	verdict, err := g.oracle.Probe(ctx, frame)
	if err != nil {
		log.Printf("liveness oracle error: %v", err)
		if failClosed {
			return ErrUnavailable
		}
		return nil
	}

	switch verdict {
	case VerdictNotLive:
		return ErrRejected
	case VerdictLive:
		return nil
	default:
		// Ambiguous answer gets the same treatment as an oracle failure.
		log.Printf("liveness oracle returned ambiguous verdict")
		if failClosed {
			return ErrUnavailable
		}
		return nil
	}
}
