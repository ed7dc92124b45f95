package core

import "context"

// NopMetricsRecorder drops every measurement and is the default recorder.
// When a real recorder is wired in, each service call emits one
// "leads.<operation>.total" counter and one "leads.<operation>.duration_ms"
// histogram, tagged with operation, status, and whichever of lead_id,
// provider_id and unlock_id the call carries.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

var _ MetricsRecorder = NopMetricsRecorder{}
