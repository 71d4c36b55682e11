package fitbridge

import (
	"context"
	"fmt"

	"github.com/lucasjlepore/fitbridge/events"
)

// RecordingSession starts backend recording for data types and relays the
// recording status events to a caller supplied observer.
type RecordingSession struct {
	backend  FitnessBackend
	registry *ListenerRegistry
}

// NewRecordingSession creates a session whose subscriptions live in registry.
func NewRecordingSession(backend FitnessBackend, registry *ListenerRegistry) *RecordingSession {
	return &RecordingSession{backend: backend, registry: registry}
}

// Start records every type in types, or AllDataTypes when none are given.
// fn is a stream observer: it may be called any number of times per type,
// from the goroutine that emits the event, until the subscriptions are
// removed. The listener for a type is bound before the backend is asked to
// record it so an immediate status event is not missed. A type the backend
// refuses has its listener removed again and its error reported in the
// returned slice, which has one entry per requested type.
func (s *RecordingSession) Start(ctx context.Context, fn func(RecordingStatus), types ...DataType) []RecordingResult {
	if len(types) == 0 {
		types = AllDataTypes
	}

	results := make([]RecordingResult, 0, len(types))
	for _, dt := range types {
		if !dt.Valid() {
			results = append(results, RecordingResult{Type: dt, Err: fmt.Errorf("%w: %v", ErrUnknownDataType, dt)})
			continue
		}
		sub := s.registry.Register(dt.Channel(), func(p events.Payload) {
			fn(recordingStatus(dt, p))
		})
		if err := s.backend.StartRecording(ctx, dt); err != nil {
			s.registry.Remove(sub)
			results = append(results, RecordingResult{Type: dt, Err: backendError("start recording "+dt.String(), err)})
			continue
		}
		results = append(results, RecordingResult{Type: dt})
	}
	return results
}

func recordingStatus(dt DataType, p events.Payload) RecordingStatus {
	status := RecordingStatus{Type: dt}
	if name, ok := p["type"].(string); ok {
		if parsed, err := ParseDataType(name); err == nil {
			status.Type = parsed
		}
	}
	if rec, ok := p["recording"].(bool); ok {
		status.Recording = rec
	}
	return status
}
