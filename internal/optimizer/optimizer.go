// Package optimizer adapts sync parameters to current system conditions and
// provides the retry/backoff contract used by every network-facing operation.
package optimizer

import "time"

// ResourceTier is the coarse system-health classification driving
// adaptive throttling.
type ResourceTier string

const (
	TierConstrained ResourceTier = "constrained"
	TierNominal     ResourceTier = "nominal"
	TierOptimal     ResourceTier = "optimal"
)

// Network effective types considered slow (2G-equivalent).
const (
	NetworkSlow2G = "slow-2g"
	Network2G     = "2g"
)

// MaxBatchSize caps batch growth under optimal conditions.
const MaxBatchSize = 500

// SystemState is a read-only snapshot of host conditions.
type SystemState struct {
	Tier                 ResourceTier `json:"tier"`
	NetworkEffectiveType string       `json:"networkEffectiveType"` // "slow-2g", "2g", "3g", "4g"

	// BatteryLevel is the charge fraction in (0.0, 1.0]. A zero value means
	// no battery telemetry (mains-powered or headless host), not an empty
	// battery; probes on battery hardware must report a strictly positive
	// reading.
	BatteryLevel float64 `json:"batteryLevel"`
}

// StateProbe supplies the current system state. Injected so tests and
// headless deployments can provide their own readings.
type StateProbe interface {
	GetSystemState() SystemState
}

// StaticProbe is a fixed-reading probe, typically configured from the
// environment on hosts with no battery or network telemetry.
type StaticProbe struct {
	State SystemState
}

func (p StaticProbe) GetSystemState() SystemState { return p.State }

// Options are the tunable sync parameters the optimizer adjusts.
type Options struct {
	BatchSize     int           `json:"batchSize"`
	ThrottleDelay time.Duration `json:"throttleDelay"`
	MaxRetries    int           `json:"maxRetries"`
	RetryDelay    time.Duration `json:"retryDelay"`
}

// DefaultOptions returns the baseline parameters before adaptation.
func DefaultOptions() Options {
	return Options{
		BatchSize:     50,
		ThrottleDelay: 100 * time.Millisecond,
		MaxRetries:    5,
		RetryDelay:    time.Second,
	}
}

// Optimize returns a copy of opts adjusted to the given system state.
//
// It is a pure function: rules apply independently and compose, so several
// rules may adjust the same field in sequence.
func Optimize(opts Options, state SystemState) Options {
	out := opts

	switch state.Tier {
	case TierConstrained:
		out.BatchSize = maxInt(1, out.BatchSize/2)
		out.ThrottleDelay *= 2
	case TierOptimal:
		out.BatchSize = minInt(MaxBatchSize, out.BatchSize*3/2)
		out.ThrottleDelay /= 2
	}

	if state.NetworkEffectiveType == NetworkSlow2G || state.NetworkEffectiveType == Network2G {
		if out.MaxRetries > 3 {
			out.MaxRetries = 3
		}
		out.RetryDelay *= 2
	}

	// Zero is the no-telemetry sentinel, see SystemState.BatteryLevel.
	if state.BatteryLevel > 0 && state.BatteryLevel < 0.2 {
		out.BatchSize = maxInt(1, out.BatchSize/4)
		out.ThrottleDelay *= 4
	}

	if out.ThrottleDelay < 0 {
		out.ThrottleDelay = 0
	}

	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
