package ports

import "time"

// NopMetrics discards all measurements. Useful in tests and as a
// default when no collector is wired.
type NopMetrics struct{}

func (NopMetrics) RunStarted(string)                        {}
func (NopMetrics) RunCompleted(string, time.Duration)       {}
func (NopMetrics) NodeExecuted(string, string, time.Duration) {}
func (NopMetrics) TokenStreamed(string)                     {}
func (NopMetrics) PayloadEmitted(string)                    {}
func (NopMetrics) IncActiveStreams()                        {}
func (NopMetrics) DecActiveStreams()                        {}
