package fitbridge

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lucasjlepore/fitbridge/events"
)

var errNoAuthorization = errors.New("authorization provider not configured")

// Client is the public entry point: history queries, body measurement
// writes, live observers and recording. A Client owns its listeners; Close
// (or UnsubscribeListeners) revokes all of them.
type Client struct {
	backend   FitnessBackend
	auth      AuthorizationProvider
	registry  *ListenerRegistry
	recording *RecordingSession

	clock    clockwork.Clock
	loc      *time.Location
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithClock sets the clock used for date range defaults.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithLocation sets the zone calendar days are computed in. The default is
// time.Local.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		c.loc = loc
	}
}

// WithObserver registers an Observer for query outcomes and listener counts.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// New creates a Client. auth may be nil when the backend needs no grant.
func New(backend FitnessBackend, auth AuthorizationProvider, channel events.Channel, opts ...Option) *Client {
	c := &Client{
		backend:  backend,
		auth:     auth,
		clock:    clockwork.NewRealClock(),
		loc:      time.Local,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	c.registry = NewListenerRegistry(channel)
	c.registry.onChange = c.observer.ListenersChanged
	c.recording = NewRecordingSession(backend, c.registry)
	return c
}

// Listeners exposes the registry owning the client's subscriptions.
func (c *Client) Listeners() *ListenerRegistry {
	return c.registry
}

// Location returns the zone calendar days are computed in.
func (c *Client) Location() *time.Location {
	return c.loc
}

// ResolveRange resolves opts against the client's clock and location.
func (c *Client) ResolveRange(opts QueryOptions) (Range, error) {
	return ResolveRange(opts, c.clock.Now(), c.loc)
}

// DailySteps returns per-source daily step totals.
func (c *Client) DailySteps(ctx context.Context, opts QueryOptions) (groups []SourceGroup, err error) {
	defer func() { c.observer.QueryDone("daily_steps", err) }()

	r, err := c.ResolveRange(opts)
	if err != nil {
		return nil, err
	}
	rows, err := c.backend.StepSamples(ctx, r.Start, r.End)
	if err != nil {
		return nil, backendError("daily steps", err)
	}
	if len(rows) == 0 {
		return nil, &NoDataError{Kind: "steps"}
	}
	return groupBySource(rows, c.loc), nil
}

// DailyDistance returns the distance samples in range with ISO timestamps.
func (c *Client) DailyDistance(ctx context.Context, opts QueryOptions) (records []Record, err error) {
	defer func() { c.observer.QueryDone("daily_distance", err) }()
	return c.records(ctx, opts, "distance", c.backend.DistanceSamples, nil)
}

// DailyCalories returns the calorie samples in range with ISO timestamps.
func (c *Client) DailyCalories(ctx context.Context, opts QueryOptions) (records []Record, err error) {
	defer func() { c.observer.QueryDone("daily_calories", err) }()
	return c.records(ctx, opts, "calorie", c.backend.CalorieSamples, nil)
}

// WeightSamples returns weight samples in opts.Unit (kilograms by default).
func (c *Client) WeightSamples(ctx context.Context, opts QueryOptions) (records []Record, err error) {
	defer func() { c.observer.QueryDone("weight_samples", err) }()
	unit := opts.Unit
	return c.records(ctx, opts, "weight", c.backend.WeightSamples, func(kg float64) float64 {
		return fromKg(kg, unit)
	})
}

// HeightSamples returns height samples in meters, each labelled with the
// weekday it was taken on.
func (c *Client) HeightSamples(ctx context.Context, opts QueryOptions) (records []Record, err error) {
	defer func() { c.observer.QueryDone("height_samples", err) }()
	records, err = c.records(ctx, opts, "height", c.backend.HeightSamples, nil)
	if err != nil {
		return nil, err
	}
	for i := range records {
		start, perr := time.Parse(isoLayout, records[i].StartDate)
		if perr == nil {
			records[i].Day = start.In(c.loc).Format("Mon")
		}
	}
	return records, nil
}

type sampleQuery func(ctx context.Context, start, end time.Time) ([]*Sample, error)

func (c *Client) records(ctx context.Context, opts QueryOptions, kind string, query sampleQuery, convert func(float64) float64) ([]Record, error) {
	r, err := c.ResolveRange(opts)
	if err != nil {
		return nil, err
	}
	samples, err := query(ctx, r.Start, r.End)
	if err != nil {
		return nil, backendError(kind+" samples", err)
	}
	if len(samples) == 0 {
		return nil, &NoDataError{Kind: kind}
	}
	return toRecords(samples, convert), nil
}

// SaveWeight stores a weight measurement. Pound values are converted to
// kilograms before they reach the backend.
func (c *Client) SaveWeight(ctx context.Context, opts WeightOptions) (ok bool, err error) {
	defer func() { c.observer.QueryDone("save_weight", err) }()
	entry, err := c.bodyEntry(toKg(opts.Value, opts.Unit), opts.Date, opts.StartDate, opts.EndDate, true)
	if err != nil {
		return false, err
	}
	ok, err = c.backend.SaveWeight(ctx, entry)
	return ok, backendError("save weight", err)
}

// DeleteWeight removes weight measurements at opts.Date, or within
// [opts.StartDate, opts.EndDate] when both are set.
func (c *Client) DeleteWeight(ctx context.Context, opts WeightOptions) (ok bool, err error) {
	defer func() { c.observer.QueryDone("delete_weight", err) }()
	entry, err := c.bodyEntry(toKg(opts.Value, opts.Unit), opts.Date, opts.StartDate, opts.EndDate, false)
	if err != nil {
		return false, err
	}
	ok, err = c.backend.DeleteWeight(ctx, entry)
	return ok, backendError("delete weight", err)
}

// SaveHeight stores a height measurement in meters.
func (c *Client) SaveHeight(ctx context.Context, opts HeightOptions) (ok bool, err error) {
	defer func() { c.observer.QueryDone("save_height", err) }()
	entry, err := c.bodyEntry(opts.Value, opts.Date, opts.StartDate, opts.EndDate, true)
	if err != nil {
		return false, err
	}
	ok, err = c.backend.SaveHeight(ctx, entry)
	return ok, backendError("save height", err)
}

// DeleteHeight removes height measurements within [opts.StartDate,
// opts.EndDate], or at opts.Date.
func (c *Client) DeleteHeight(ctx context.Context, opts HeightOptions) (ok bool, err error) {
	defer func() { c.observer.QueryDone("delete_height", err) }()
	entry, err := c.bodyEntry(opts.Value, opts.Date, opts.StartDate, opts.EndDate, false)
	if err != nil {
		return false, err
	}
	ok, err = c.backend.DeleteHeight(ctx, entry)
	return ok, backendError("delete height", err)
}

// bodyEntry parses the dates of a write. Writes need date; deletes accept
// either date or a full start/end pair.
func (c *Client) bodyEntry(value float64, date, start, end string, requireDate bool) (BodyEntry, error) {
	entry := BodyEntry{Value: value}
	hasRange := strings.TrimSpace(start) != "" && strings.TrimSpace(end) != ""
	if requireDate || !hasRange || strings.TrimSpace(date) != "" {
		at, err := ParseInstant("date", date, c.loc)
		if err != nil {
			return BodyEntry{}, err
		}
		entry.At, entry.Start, entry.End = at, at, at
	}
	if hasRange {
		s, err := ParseInstant("startDate", start, c.loc)
		if err != nil {
			return BodyEntry{}, err
		}
		e, err := ParseInstant("endDate", end, c.loc)
		if err != nil {
			return BodyEntry{}, err
		}
		entry.Start, entry.End = s, e
		if entry.At.IsZero() {
			entry.At = s
		}
	}
	return entry, nil
}

// StartRecording records types (AllDataTypes when empty) and streams their
// status events to fn. See RecordingSession.Start.
func (c *Client) StartRecording(ctx context.Context, fn func(RecordingStatus), types ...DataType) []RecordingResult {
	return c.recording.Start(ctx, fn, types...)
}

// ObserveSteps forwards StepChangedEvent payloads to fn and asks the backend
// to start emitting them.
func (c *Client) ObserveSteps(ctx context.Context, fn events.Handler) (Subscription, error) {
	sub := c.registry.Register(events.StepChanged, fn)
	if err := c.backend.ObserveSteps(ctx); err != nil {
		c.registry.Remove(sub)
		return Subscription{}, backendError("observe steps", err)
	}
	return sub, nil
}

// ObserveHistory forwards StepHistoryChangedEvent payloads to fn. It does not
// ask the backend for anything; fn only runs if the backend emits the event
// on its own.
func (c *Client) ObserveHistory(fn events.Handler) Subscription {
	return c.registry.Register(events.StepHistoryChanged, fn)
}

// OnAuthorize forwards authorization success events to fn.
func (c *Client) OnAuthorize(fn events.Handler) Subscription {
	return c.registry.Register(events.AuthorizeSuccess, fn)
}

// OnAuthorizeFailure forwards authorization failure events to fn.
func (c *Client) OnAuthorizeFailure(fn events.Handler) Subscription {
	return c.registry.Register(events.AuthorizeFailure, fn)
}

// UnsubscribeListeners revokes every subscription made through the client.
func (c *Client) UnsubscribeListeners() {
	c.registry.RemoveAll()
}

// Close releases the client's subscriptions. It is safe to call repeatedly.
func (c *Client) Close() error {
	c.registry.RemoveAll()
	return nil
}

// Authorize starts the grant flow. Subscribe with OnAuthorize and
// OnAuthorizeFailure to learn the outcome.
func (c *Client) Authorize(ctx context.Context) {
	if c.auth != nil {
		c.auth.Authorize(ctx)
	}
}

// IsAvailable reports whether the fitness service is installed.
func (c *Client) IsAvailable(ctx context.Context) (bool, error) {
	if c.auth == nil {
		return false, errNoAuthorization
	}
	ok, err := c.auth.IsAvailable(ctx)
	return ok, backendError("is available", err)
}

// IsEnabled reports whether access has been granted.
func (c *Client) IsEnabled(ctx context.Context) (bool, error) {
	if c.auth == nil {
		return false, errNoAuthorization
	}
	ok, err := c.auth.IsEnabled(ctx)
	return ok, backendError("is enabled", err)
}
