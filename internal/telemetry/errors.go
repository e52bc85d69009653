package telemetry

import "fmt"

// InvalidTraceError reports a trace that cannot be processed: too few
// samples, non-finite values, or a decreasing distance sequence. These
// are fatal; the pipeline propagates them to the caller unchanged.
type InvalidTraceError struct {
	Reason string
}

func (e *InvalidTraceError) Error() string {
	return "invalid trace: " + e.Reason
}

// DegenerateLapError reports a lap whose raw integrated time is not
// positive, which makes lap-time scaling impossible. The condition is
// an explicit failure rather than a silently unscaled time axis.
type DegenerateLapError struct {
	RawTime float64
}

func (e *DegenerateLapError) Error() string {
	return fmt.Sprintf("degenerate lap: raw integrated time %g is not positive", e.RawTime)
}
