package fitbridge_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lucasjlepore/fitbridge"
	"github.com/lucasjlepore/fitbridge/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, opts ...fitbridge.Option) (*fitbridge.Client, *fakeBackend, *events.Emitter) {
	t.Helper()
	emitter := events.NewEmitter()
	backend := newFakeBackend(emitter)
	opts = append([]fitbridge.Option{
		fitbridge.WithClock(clockwork.NewFakeClockAt(testNow)),
		fitbridge.WithLocation(time.UTC),
	}, opts...)
	client := fitbridge.New(backend, &fakeAuth{emitter: emitter, granted: true}, emitter, opts...)
	t.Cleanup(func() { _ = client.Close() })
	return client, backend, emitter
}

func TestClientDailyStepsGroupsBySource(t *testing.T) {
	t.Parallel()

	client, backend, _ := newTestClient(t)
	watch := fitbridge.DataSource{AppPackage: "com.google.android.gms", Stream: "estimated_steps"}
	phone := fitbridge.DataSource{AppPackage: "com.example.pedometer"}
	backend.steps = []fitbridge.SourceSamples{
		{Source: watch, Steps: []*fitbridge.Sample{
			sampleAt(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), 100),
			sampleAt(time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC), 50),
		}},
		{Source: phone, Steps: []*fitbridge.Sample{
			sampleAt(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), 400),
		}},
		{Source: watch, Steps: []*fitbridge.Sample{
			sampleAt(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), 30),
		}},
	}

	groups, err := client.DailySteps(context.Background(), fitbridge.QueryOptions{StartDate: "2024-01-01", EndDate: "2024-01-03"})
	require.NoError(t, err)
	assert.Equal(t, []fitbridge.SourceGroup{
		{Source: "com.google.android.gms:estimated_steps", Steps: []fitbridge.DailyBucket{
			{Date: "2024-01-01", Value: 150},
			{Date: "2024-01-02", Value: 30},
		}},
		{Source: "com.example.pedometer", Steps: []fitbridge.DailyBucket{
			{Date: "2024-01-01", Value: 400},
		}},
	}, groups)

	require.Len(t, backend.queries, 1)
	assert.True(t, backend.queries[0].start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, backend.queries[0].end.Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)))
}

func TestClientDefaultRange(t *testing.T) {
	t.Parallel()

	client, backend, _ := newTestClient(t)
	backend.distance = []*fitbridge.Sample{sampleAt(testNow.Add(-time.Hour), 1200)}

	_, err := client.DailyDistance(context.Background(), fitbridge.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, backend.queries, 1)
	assert.True(t, backend.queries[0].start.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)))
	assert.True(t, backend.queries[0].end.Equal(testNow))
}

func TestClientNoData(t *testing.T) {
	t.Parallel()

	client, _, _ := newTestClient(t)
	ctx := context.Background()
	opts := fitbridge.QueryOptions{}

	_, err := client.DailySteps(ctx, opts)
	assert.EqualError(t, err, "There is no any steps data for this period")
	_, err = client.DailyDistance(ctx, opts)
	assert.EqualError(t, err, "There is no any distance data for this period")
	_, err = client.DailyCalories(ctx, opts)
	assert.EqualError(t, err, "There is no any calorie data for this period")
	_, err = client.WeightSamples(ctx, opts)
	assert.EqualError(t, err, "There is no any weight data for this period")
	_, err = client.HeightSamples(ctx, opts)
	assert.True(t, fitbridge.IsNoData(err))
}

func TestClientRecordsDropEmptySamples(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	samples := func(value float64) []*fitbridge.Sample {
		return []*fitbridge.Sample{
			{Start: start, End: start.Add(time.Hour), Value: value, Source: "fit.garmin"},
			{Start: start.Add(time.Hour), End: start.Add(2 * time.Hour)},
			{Start: start.Add(2 * time.Hour), End: start.Add(3 * time.Hour), Value: math.NaN()},
			nil,
		}
	}
	tests := []struct {
		name  string
		set   func(*fakeBackend, []*fitbridge.Sample)
		query func(*fitbridge.Client) ([]fitbridge.Record, error)
	}{
		{
			name: "distance",
			set:  func(b *fakeBackend, s []*fitbridge.Sample) { b.distance = s },
			query: func(c *fitbridge.Client) ([]fitbridge.Record, error) {
				return c.DailyDistance(context.Background(), fitbridge.QueryOptions{StartDate: "2024-01-01"})
			},
		},
		{
			name: "calories",
			set:  func(b *fakeBackend, s []*fitbridge.Sample) { b.calories = s },
			query: func(c *fitbridge.Client) ([]fitbridge.Record, error) {
				return c.DailyCalories(context.Background(), fitbridge.QueryOptions{StartDate: "2024-01-01"})
			},
		},
		{
			name: "weight",
			set:  func(b *fakeBackend, s []*fitbridge.Sample) { b.weight = s },
			query: func(c *fitbridge.Client) ([]fitbridge.Record, error) {
				return c.WeightSamples(context.Background(), fitbridge.QueryOptions{StartDate: "2024-01-01"})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, backend, _ := newTestClient(t)
			tt.set(backend, samples(250.5))
			records, err := tt.query(client)
			require.NoError(t, err)
			assert.Equal(t, []fitbridge.Record{{
				StartDate: "2024-01-01T08:00:00.000Z",
				EndDate:   "2024-01-01T09:00:00.000Z",
				Value:     250.5,
				Source:    "fit.garmin",
			}}, records)
		})
	}
}

func TestClientWeightUnits(t *testing.T) {
	t.Parallel()

	client, backend, _ := newTestClient(t)
	ctx := context.Background()
	backend.weight = []*fitbridge.Sample{sampleAt(time.Date(2024, 3, 9, 7, 0, 0, 0, time.UTC), 80)}

	kg, err := client.WeightSamples(ctx, fitbridge.QueryOptions{StartDate: "2024-03-01"})
	require.NoError(t, err)
	require.Len(t, kg, 1)
	assert.InDelta(t, 80, kg[0].Value, 1e-9)

	lb, err := client.WeightSamples(ctx, fitbridge.QueryOptions{StartDate: "2024-03-01", Unit: fitbridge.UnitPound})
	require.NoError(t, err)
	require.Len(t, lb, 1)
	assert.InDelta(t, 176.368, lb[0].Value, 1e-6)

	ok, err := client.SaveWeight(ctx, fitbridge.WeightOptions{Value: 176.37, Date: "2024-03-10T07:00:00Z", Unit: fitbridge.UnitPound})
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, backend.saved, 1)
	assert.InDelta(t, 80, backend.saved[0].Value, 0.01)
	assert.True(t, backend.saved[0].At.Equal(time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)))
}

func TestClientDeleteWeightRange(t *testing.T) {
	t.Parallel()

	client, backend, _ := newTestClient(t)
	ok, err := client.DeleteWeight(context.Background(), fitbridge.WeightOptions{
		StartDate: "2024-03-01",
		EndDate:   "2024-03-02",
	})
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, backend.deleted, 1)
	assert.True(t, backend.deleted[0].Start.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, backend.deleted[0].End.Equal(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)))

	ok, err = client.DeleteWeight(context.Background(), fitbridge.WeightOptions{
		Value:     176.37,
		Unit:      fitbridge.UnitPound,
		StartDate: "2024-03-03",
		EndDate:   "2024-03-04",
	})
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, backend.deleted, 2)
	assert.InDelta(t, 80, backend.deleted[1].Value, 0.01)

	_, err = client.SaveWeight(context.Background(), fitbridge.WeightOptions{Value: 70})
	var invalid *fitbridge.InvalidDateError
	assert.True(t, errors.As(err, &invalid))
	assert.Len(t, backend.saved, 0)
}

func TestClientHeightDay(t *testing.T) {
	t.Parallel()

	client, backend, _ := newTestClient(t)
	backend.height = []*fitbridge.Sample{sampleAt(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), 1.82)}

	records, err := client.HeightSamples(context.Background(), fitbridge.QueryOptions{StartDate: "2024-01-01"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Mon", records[0].Day)
	assert.InDelta(t, 1.82, records[0].Value, 1e-9)

	ok, err := client.SaveHeight(context.Background(), fitbridge.HeightOptions{Value: 1.83, Date: "2024-01-02"})
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, backend.saved, 1)
	assert.InDelta(t, 1.83, backend.saved[0].Value, 1e-9)
}

func TestClientInvalidDateSkipsBackend(t *testing.T) {
	t.Parallel()

	client, backend, _ := newTestClient(t)
	_, err := client.DailySteps(context.Background(), fitbridge.QueryOptions{StartDate: "01/02/2024"})
	var invalid *fitbridge.InvalidDateError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "startDate", invalid.Field)
	assert.Empty(t, backend.queries)
}

func TestClientBackendErrorPassthrough(t *testing.T) {
	t.Parallel()

	client, backend, _ := newTestClient(t)
	boom := errors.New("Application needs OAuth consent from the user")
	backend.err = boom

	_, err := client.DailyDistance(context.Background(), fitbridge.QueryOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, boom.Error(), err.Error())
	assert.False(t, fitbridge.IsNoData(err))

	_, err = client.DeleteHeight(context.Background(), fitbridge.HeightOptions{Date: "2024-01-01"})
	var backendErr *fitbridge.BackendError
	require.True(t, errors.As(err, &backendErr))
	assert.Equal(t, "delete height", backendErr.Op)
}

func TestClientCallbackFormsFireOnce(t *testing.T) {
	t.Parallel()

	client, backend, _ := newTestClient(t)
	backend.steps = []fitbridge.SourceSamples{{
		Source: fitbridge.DataSource{AppPackage: "app"},
		Steps:  []*fitbridge.Sample{sampleAt(testNow.Add(-time.Hour), 10)},
	}}

	steps := make(chan fitbridge.Result[[]fitbridge.SourceGroup], 2)
	client.GetDailyStepCountSamples(context.Background(), fitbridge.QueryOptions{}, func(r fitbridge.Result[[]fitbridge.SourceGroup]) {
		steps <- r
	})
	got := receive(t, steps)
	require.True(t, got.OK())
	assert.Len(t, got.Value(), 1)

	distance := make(chan fitbridge.Result[[]fitbridge.Record], 2)
	client.GetDailyDistanceSamples(context.Background(), fitbridge.QueryOptions{}, func(r fitbridge.Result[[]fitbridge.Record]) {
		distance <- r
	})
	failed := receive(t, distance)
	assert.False(t, failed.OK())
	assert.True(t, fitbridge.IsNoData(failed.Err()))

	saved := make(chan fitbridge.Result[bool], 2)
	client.SaveWeightAsync(context.Background(), fitbridge.WeightOptions{Value: 70, Date: "2024-03-10"}, func(r fitbridge.Result[bool]) {
		saved <- r
	})
	ok, err := receive(t, saved).Get()
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(10 * time.Millisecond)
	assert.Len(t, steps, 0)
	assert.Len(t, distance, 0)
	assert.Len(t, saved, 0)
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("callback was not invoked")
	}
	var zero T
	return zero
}

func TestClientObserveSteps(t *testing.T) {
	t.Parallel()

	client, backend, emitter := newTestClient(t)
	var got []events.Payload
	sub, err := client.ObserveSteps(context.Background(), func(p events.Payload) { got = append(got, p) })
	require.NoError(t, err)
	assert.Equal(t, events.StepChanged, sub.EventName)
	assert.Equal(t, 1, backend.observeCall)

	emitter.Emit(events.StepChanged, events.Payload{"steps": 12.0})
	require.Len(t, got, 1)
	assert.Equal(t, 12.0, got[0]["steps"])

	client.UnsubscribeListeners()
	emitter.Emit(events.StepChanged, events.Payload{"steps": 13.0})
	assert.Len(t, got, 1)

	backend.err = errors.New("sensor offline")
	_, err = client.ObserveSteps(context.Background(), func(events.Payload) {})
	assert.EqualError(t, err, "sensor offline")
	assert.Equal(t, 0, client.Listeners().Len())
}

func TestClientObserveHistoryOnlyRegisters(t *testing.T) {
	t.Parallel()

	client, backend, emitter := newTestClient(t)
	calls := 0
	client.ObserveHistory(func(events.Payload) { calls++ })
	assert.Equal(t, 0, backend.observeCall)

	emitter.Emit(events.StepHistoryChanged, events.Payload{"samples": 3})
	assert.Equal(t, 1, calls)
}

func TestClientAuthorizationEvents(t *testing.T) {
	t.Parallel()

	emitter := events.NewEmitter()
	backend := newFakeBackend(emitter)
	auth := &fakeAuth{emitter: emitter}
	client := fitbridge.New(backend, auth, emitter, fitbridge.WithLocation(time.UTC))
	defer client.Close()

	var outcomes []string
	client.OnAuthorize(func(events.Payload) { outcomes = append(outcomes, "ok") })
	client.OnAuthorizeFailure(func(p events.Payload) { outcomes = append(outcomes, p["message"].(string)) })

	client.Authorize(context.Background())
	auth.granted = true
	client.Authorize(context.Background())
	assert.Equal(t, []string{"denied", "ok"}, outcomes)

	enabled, err := client.IsEnabled(context.Background())
	require.NoError(t, err)
	assert.True(t, enabled)

	bare := fitbridge.New(backend, nil, emitter)
	_, err = bare.IsAvailable(context.Background())
	assert.Error(t, err)
	assert.NotPanics(t, func() { bare.Authorize(context.Background()) })
}

func TestClientObserver(t *testing.T) {
	t.Parallel()

	obs := newCountingObserver()
	client, backend, _ := newTestClient(t, fitbridge.WithObserver(obs))
	backend.distance = []*fitbridge.Sample{sampleAt(testNow.Add(-time.Hour), 5)}

	_, _ = client.DailyDistance(context.Background(), fitbridge.QueryOptions{})
	_, _ = client.DailySteps(context.Background(), fitbridge.QueryOptions{})
	client.ObserveHistory(func(events.Payload) {})
	client.OnAuthorize(func(events.Payload) {})

	obs.mu.Lock()
	assert.Equal(t, 1, obs.ops["daily_distance"])
	assert.Equal(t, 0, obs.failures["daily_distance"])
	assert.Equal(t, 1, obs.failures["daily_steps"])
	assert.Equal(t, 2, obs.listeners)
	obs.mu.Unlock()

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	obs.mu.Lock()
	assert.Equal(t, 0, obs.listeners)
	obs.mu.Unlock()
}

func TestClientBuildReport(t *testing.T) {
	t.Parallel()

	client, backend, _ := newTestClient(t)
	day := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	backend.steps = []fitbridge.SourceSamples{
		{Source: fitbridge.DataSource{AppPackage: "watch"}, Steps: []*fitbridge.Sample{sampleAt(day.Add(8*time.Hour), 6000)}},
		{Source: fitbridge.DataSource{AppPackage: "phone"}, Steps: []*fitbridge.Sample{sampleAt(day.Add(9*time.Hour), 1500)}},
	}
	backend.distance = []*fitbridge.Sample{sampleAt(day.Add(8*time.Hour), 4200)}
	backend.weight = []*fitbridge.Sample{
		sampleAt(day.Add(7*time.Hour), 81),
		sampleAt(day.Add(21*time.Hour), 80.5),
	}

	report, err := client.BuildReport(context.Background(), fitbridge.QueryOptions{StartDate: "2024-03-09"})
	require.NoError(t, err)
	assert.Equal(t, []string{"calories"}, report.Missing)
	assert.Equal(t, fitbridge.UnitKg, report.Unit)

	// All four queries saw the same window.
	require.Len(t, backend.queries, 4)
	for _, q := range backend.queries[1:] {
		assert.True(t, q.start.Equal(backend.queries[0].start))
		assert.True(t, q.end.Equal(backend.queries[0].end))
	}

	days := report.Days()
	require.Len(t, days, 1)
	assert.Equal(t, "2024-03-09", days[0].Date)
	assert.InDelta(t, 7500, days[0].Steps, 1e-9)
	assert.Len(t, days[0].StepsBySource, 2)
	assert.InDelta(t, 4200, days[0].DistanceMeters, 1e-9)
	assert.InDelta(t, 80.5, days[0].Weight, 1e-9)

	notes := fitbridge.BuildDailyNotes(report)
	assert.Contains(t, notes, "Period: 2024-03-09 00:00 to 2024-03-10 15:00")
	assert.Contains(t, notes, "- Steps 7,500 (watch 6,000, phone 1,500)")
	assert.Contains(t, notes, "- Distance 4.20 km")
	assert.Contains(t, notes, "- Weight 80.5 kg")
	assert.Contains(t, notes, "No data: calories")
	assert.NotContains(t, notes, "- Calories")
}

func TestClientBuildReportAbortsOnBackendError(t *testing.T) {
	t.Parallel()

	client, backend, _ := newTestClient(t)
	backend.err = errors.New("quota exceeded")
	_, err := client.BuildReport(context.Background(), fitbridge.QueryOptions{})
	assert.EqualError(t, err, "quota exceeded")
}
