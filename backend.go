package fitbridge

import (
	"context"
	"time"
)

// FitnessBackend is the platform fitness service the client brokers calls to.
// Sample slices may contain nil placeholders.
type FitnessBackend interface {
	// StartRecording asks the backend to record dt. The outcome is also
	// announced as an event on dt.Channel().
	StartRecording(ctx context.Context, dt DataType) error
	StepSamples(ctx context.Context, start, end time.Time) ([]SourceSamples, error)
	DistanceSamples(ctx context.Context, start, end time.Time) ([]*Sample, error)
	CalorieSamples(ctx context.Context, start, end time.Time) ([]*Sample, error)
	// WeightSamples values are in kilograms.
	WeightSamples(ctx context.Context, start, end time.Time) ([]*Sample, error)
	// HeightSamples values are in meters.
	HeightSamples(ctx context.Context, start, end time.Time) ([]*Sample, error)
	SaveWeight(ctx context.Context, entry BodyEntry) (bool, error)
	DeleteWeight(ctx context.Context, entry BodyEntry) (bool, error)
	SaveHeight(ctx context.Context, entry BodyEntry) (bool, error)
	DeleteHeight(ctx context.Context, entry BodyEntry) (bool, error)
	// ObserveSteps makes the backend emit StepChangedEvent on new steps.
	ObserveSteps(ctx context.Context) error
}

// AuthorizationProvider grants and reports access to the fitness service.
type AuthorizationProvider interface {
	// Authorize starts the grant flow. The outcome arrives as an
	// authorize success or failure event.
	Authorize(ctx context.Context)
	IsAvailable(ctx context.Context) (bool, error)
	IsEnabled(ctx context.Context) (bool, error)
}

// Observer is notified about client activity. Implementations must be safe
// for concurrent use.
type Observer interface {
	QueryDone(op string, err error)
	ListenersChanged(active int)
}

type nopObserver struct{}

func (nopObserver) QueryDone(string, error) {}
func (nopObserver) ListenersChanged(int)    {}
