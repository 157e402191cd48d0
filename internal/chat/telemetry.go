package chat

import (
	"sync"
	"time"

	"github.com/botarena/botarena/pkg/models"
	"github.com/google/uuid"
)

// StepRecorder collects the telemetry steps for one turn. Append-only for
// the duration of the turn; the snapshot is attached to the finished message
// and discarded with it.
//
// The recorder is safe for concurrent use because the image cascade appends
// from its own goroutine while text streaming runs.
type StepRecorder struct {
	mu    sync.Mutex
	steps []models.TelemetryStep
}

// NewStepRecorder creates an empty recorder.
func NewStepRecorder() *StepRecorder {
	return &StepRecorder{}
}

// Record appends one step and returns it.
func (r *StepRecorder) Record(category models.StepCategory, label, detail string) models.TelemetryStep {
	step := models.TelemetryStep{
		ID:        uuid.NewString(),
		Category:  category,
		Label:     label,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}
	r.mu.Lock()
	r.steps = append(r.steps, step)
	r.mu.Unlock()
	return step
}

// RecordLatency appends one step carrying a latency metric.
func (r *StepRecorder) RecordLatency(category models.StepCategory, label, detail string, latency time.Duration) models.TelemetryStep {
	step := models.TelemetryStep{
		ID:        uuid.NewString(),
		Category:  category,
		Label:     label,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
		LatencyMS: latency.Milliseconds(),
	}
	r.mu.Lock()
	r.steps = append(r.steps, step)
	r.mu.Unlock()
	return step
}

// Steps returns a snapshot of all recorded steps in append order.
func (r *StepRecorder) Steps() []models.TelemetryStep {
	r.mu.Lock()
	defer r.mu.Unlock()
	steps := make([]models.TelemetryStep, len(r.steps))
	copy(steps, r.steps)
	return steps
}
