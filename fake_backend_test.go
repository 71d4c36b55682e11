package fitbridge_test

import (
	"context"
	"sync"
	"time"

	"github.com/lucasjlepore/fitbridge"
	"github.com/lucasjlepore/fitbridge/events"
)

// fakeBackend answers queries from canned data and records what it was asked.
type fakeBackend struct {
	emitter *events.Emitter

	mu          sync.Mutex
	steps       []fitbridge.SourceSamples
	distance    []*fitbridge.Sample
	calories    []*fitbridge.Sample
	weight      []*fitbridge.Sample
	height      []*fitbridge.Sample
	err         error
	recordErr   map[fitbridge.DataType]error
	recorded    []fitbridge.DataType
	queries     []queryCall
	saved       []fitbridge.BodyEntry
	deleted     []fitbridge.BodyEntry
	observeCall int
}

type queryCall struct {
	kind       string
	start, end time.Time
}

var _ fitbridge.FitnessBackend = (*fakeBackend)(nil)

func newFakeBackend(emitter *events.Emitter) *fakeBackend {
	return &fakeBackend{emitter: emitter, recordErr: make(map[fitbridge.DataType]error)}
}

func (f *fakeBackend) StartRecording(_ context.Context, dt fitbridge.DataType) error {
	f.mu.Lock()
	err := f.recordErr[dt]
	f.recorded = append(f.recorded, dt)
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.emitter.Emit(dt.Channel(), events.Payload{"type": dt.Channel(), "recording": true})
	return nil
}

func (f *fakeBackend) note(kind string, start, end time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, queryCall{kind: kind, start: start, end: end})
	return f.err
}

func (f *fakeBackend) StepSamples(_ context.Context, start, end time.Time) ([]fitbridge.SourceSamples, error) {
	if err := f.note("steps", start, end); err != nil {
		return nil, err
	}
	return f.steps, nil
}

func (f *fakeBackend) DistanceSamples(_ context.Context, start, end time.Time) ([]*fitbridge.Sample, error) {
	if err := f.note("distance", start, end); err != nil {
		return nil, err
	}
	return f.distance, nil
}

func (f *fakeBackend) CalorieSamples(_ context.Context, start, end time.Time) ([]*fitbridge.Sample, error) {
	if err := f.note("calories", start, end); err != nil {
		return nil, err
	}
	return f.calories, nil
}

func (f *fakeBackend) WeightSamples(_ context.Context, start, end time.Time) ([]*fitbridge.Sample, error) {
	if err := f.note("weight", start, end); err != nil {
		return nil, err
	}
	return f.weight, nil
}

func (f *fakeBackend) HeightSamples(_ context.Context, start, end time.Time) ([]*fitbridge.Sample, error) {
	if err := f.note("height", start, end); err != nil {
		return nil, err
	}
	return f.height, nil
}

func (f *fakeBackend) SaveWeight(_ context.Context, entry fitbridge.BodyEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	f.saved = append(f.saved, entry)
	return true, nil
}

func (f *fakeBackend) DeleteWeight(_ context.Context, entry fitbridge.BodyEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	f.deleted = append(f.deleted, entry)
	return true, nil
}

func (f *fakeBackend) SaveHeight(ctx context.Context, entry fitbridge.BodyEntry) (bool, error) {
	return f.SaveWeight(ctx, entry)
}

func (f *fakeBackend) DeleteHeight(ctx context.Context, entry fitbridge.BodyEntry) (bool, error) {
	return f.DeleteWeight(ctx, entry)
}

func (f *fakeBackend) ObserveSteps(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observeCall++
	return f.err
}

type fakeAuth struct {
	emitter *events.Emitter
	granted bool
}

func (a *fakeAuth) Authorize(_ context.Context) {
	if a.granted {
		a.emitter.Emit(events.AuthorizeSuccess, events.Payload{"authorized": true})
		return
	}
	a.emitter.Emit(events.AuthorizeFailure, events.Payload{"authorized": false, "message": "denied"})
}

func (a *fakeAuth) IsAvailable(_ context.Context) (bool, error) { return true, nil }

func (a *fakeAuth) IsEnabled(_ context.Context) (bool, error) { return a.granted, nil }

type countingObserver struct {
	mu        sync.Mutex
	ops       map[string]int
	failures  map[string]int
	listeners int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{ops: make(map[string]int), failures: make(map[string]int)}
}

func (o *countingObserver) QueryDone(op string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops[op]++
	if err != nil {
		o.failures[op]++
	}
}

func (o *countingObserver) ListenersChanged(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = n
}

func sampleAt(t time.Time, value float64) *fitbridge.Sample {
	return &fitbridge.Sample{Start: t, End: t.Add(time.Hour), Value: value}
}
