// Package fitstore is an in-memory fitness backend fed from FIT files. It
// implements fitbridge.FitnessBackend and fitbridge.AuthorizationProvider and
// announces recording, step and authorization changes on an event emitter.
package fitstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/lucasjlepore/fitbridge"
	"github.com/lucasjlepore/fitbridge/events"
	"github.com/tormoder/fit"
	"golang.org/x/sync/errgroup"
)

// ErrNotAuthorized is returned by queries when authorization is required
// but has not been granted.
var ErrNotAuthorized = errors.New("fitness access not authorized")

// SourceManual is the source recorded for values written through the store.
const SourceManual = "fitbridge.manual"

// Emitter publishes named events.
type Emitter interface {
	Emit(name string, payload events.Payload) int
}

// Store holds decoded samples and answers backend queries over them.
type Store struct {
	emitter     Emitter
	log         *slog.Logger
	loc         *time.Location
	loadLimit   int
	requireAuth bool
	denyReason  string

	mu         sync.RWMutex
	steps      map[string]*stepSource
	order      []string
	distance   []*fitbridge.Sample
	calories   []*fitbridge.Sample
	weight     []*fitbridge.Sample
	height     []*fitbridge.Sample
	recording  map[fitbridge.DataType]bool
	observing  bool
	authorized bool
}

type stepSource struct {
	source  fitbridge.DataSource
	samples []*fitbridge.Sample
}

var (
	_ fitbridge.FitnessBackend        = (*Store)(nil)
	_ fitbridge.AuthorizationProvider = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for skipped files.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// WithLocation sets the zone monitoring counters reset in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		s.loc = loc
	}
}

// WithLoadConcurrency bounds how many files LoadFiles decodes at once.
func WithLoadConcurrency(n int) Option {
	return func(s *Store) {
		s.loadLimit = n
	}
}

// RequireAuthorization makes queries fail until Authorize succeeds.
func RequireAuthorization() Option {
	return func(s *Store) {
		s.requireAuth = true
	}
}

// DenyAuthorization makes Authorize fail with reason.
func DenyAuthorization(reason string) Option {
	return func(s *Store) {
		s.denyReason = reason
	}
}

// New creates an empty store. emitter may be nil when nobody listens.
func New(emitter Emitter, opts ...Option) *Store {
	s := &Store{
		emitter:   emitter,
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		loc:       time.Local,
		loadLimit: 4,
		steps:     make(map[string]*stepSource),
		recording: make(map[fitbridge.DataType]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("component", "fitstore"))
	return s
}

// LoadFiles decodes FIT files concurrently and adds their samples in path
// order. Files of unsupported types are skipped; any other decode failure
// aborts the load without adding anything.
func (s *Store) LoadFiles(ctx context.Context, paths ...string) error {
	decoded := make([]*fileSamples, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if s.loadLimit > 0 {
		g.SetLimit(s.loadLimit)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			samples, err := s.decodeFile(path)
			if errors.Is(err, ErrUnsupportedFile) {
				s.log.Warn("skipping FIT file", slog.String("path", path), slog.Any("err", err))
				return nil
			}
			if err != nil {
				return fmt.Errorf("load %s: %w", filepath.Base(path), err)
			}
			decoded[i] = samples
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.add(decoded...)
	return nil
}

// LoadDir loads every *.fit file directly inside dir.
func (s *Store) LoadDir(ctx context.Context, dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.fit"))
	if err != nil {
		return fmt.Errorf("list FIT files: %w", err)
	}
	upper, err := filepath.Glob(filepath.Join(dir, "*.FIT"))
	if err != nil {
		return fmt.Errorf("list FIT files: %w", err)
	}
	matches = append(matches, upper...)
	sort.Strings(matches)
	return s.LoadFiles(ctx, matches...)
}

// LoadReader decodes one FIT stream.
func (s *Store) LoadReader(r io.Reader) error {
	samples, err := decodeFIT(r, s.loc)
	if err != nil {
		return err
	}
	s.add(samples)
	return nil
}

func (s *Store) decodeFile(path string) (*fileSamples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FIT file: %w", err)
	}
	defer f.Close()
	return decodeFIT(f, s.loc)
}

func (s *Store) add(files ...*fileSamples) {
	newSteps := 0
	s.mu.Lock()
	for _, f := range files {
		if f == nil || f.empty() {
			continue
		}
		if len(f.steps) > 0 {
			s.appendSteps(f.source, f.steps...)
			newSteps += len(f.steps)
		}
		s.distance = append(s.distance, f.distance...)
		s.calories = append(s.calories, f.calories...)
		s.weight = append(s.weight, f.weight...)
	}
	s.mu.Unlock()

	if newSteps > 0 {
		s.emit(events.StepHistoryChanged, events.Payload{"samples": newSteps})
	}
}

// appendSteps must be called with mu held.
func (s *Store) appendSteps(src fitbridge.DataSource, samples ...*fitbridge.Sample) {
	id := src.ID()
	row, ok := s.steps[id]
	if !ok {
		row = &stepSource{source: src}
		s.steps[id] = row
		s.order = append(s.order, id)
	}
	row.samples = append(row.samples, samples...)
}

// AddSteps records live steps from src. Observers registered through
// ObserveSteps receive a StepChangedEvent.
func (s *Store) AddSteps(src fitbridge.DataSource, start, end time.Time, steps float64) {
	sample := &fitbridge.Sample{Start: start, End: end, Value: steps, Source: src.ID()}
	s.mu.Lock()
	s.appendSteps(src, sample)
	observing := s.observing
	s.mu.Unlock()

	if observing {
		s.emit(events.StepChanged, events.Payload{
			"source":    src.ID(),
			"steps":     steps,
			"startDate": fitbridge.ISOTimestamp(start),
			"endDate":   fitbridge.ISOTimestamp(end),
		})
	}
}

// StartRecording marks dt as recorded and announces it on dt's channel.
func (s *Store) StartRecording(_ context.Context, dt fitbridge.DataType) error {
	if !dt.Valid() {
		return fmt.Errorf("%w: %v", fitbridge.ErrUnknownDataType, dt)
	}
	if err := s.checkAuth(); err != nil {
		return err
	}
	s.mu.Lock()
	s.recording[dt] = true
	s.mu.Unlock()

	s.emit(dt.Channel(), events.Payload{"type": dt.Channel(), "recording": true})
	return nil
}

// Recording reports whether dt is being recorded.
func (s *Store) Recording(dt fitbridge.DataType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recording[dt]
}

// StepSamples returns one row per source with samples starting in
// [start, end). Sources without samples in range are omitted.
func (s *Store) StepSamples(_ context.Context, start, end time.Time) ([]fitbridge.SourceSamples, error) {
	if err := s.checkAuth(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fitbridge.SourceSamples, 0, len(s.order))
	for _, id := range s.order {
		row := s.steps[id]
		inRange := within(row.samples, start, end)
		if len(inRange) == 0 {
			continue
		}
		out = append(out, fitbridge.SourceSamples{Source: row.source, Steps: inRange})
	}
	return out, nil
}

func (s *Store) DistanceSamples(_ context.Context, start, end time.Time) ([]*fitbridge.Sample, error) {
	return s.query(&s.distance, start, end)
}

func (s *Store) CalorieSamples(_ context.Context, start, end time.Time) ([]*fitbridge.Sample, error) {
	return s.query(&s.calories, start, end)
}

func (s *Store) WeightSamples(_ context.Context, start, end time.Time) ([]*fitbridge.Sample, error) {
	return s.query(&s.weight, start, end)
}

func (s *Store) HeightSamples(_ context.Context, start, end time.Time) ([]*fitbridge.Sample, error) {
	return s.query(&s.height, start, end)
}

func (s *Store) query(series *[]*fitbridge.Sample, start, end time.Time) ([]*fitbridge.Sample, error) {
	if err := s.checkAuth(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return within(*series, start, end), nil
}

func (s *Store) SaveWeight(_ context.Context, entry fitbridge.BodyEntry) (bool, error) {
	return s.save(&s.weight, entry, MaxWeightKg)
}

func (s *Store) DeleteWeight(_ context.Context, entry fitbridge.BodyEntry) (bool, error) {
	return s.delete(&s.weight, entry)
}

func (s *Store) SaveHeight(_ context.Context, entry fitbridge.BodyEntry) (bool, error) {
	return s.save(&s.height, entry, math.Inf(1))
}

func (s *Store) DeleteHeight(_ context.Context, entry fitbridge.BodyEntry) (bool, error) {
	return s.delete(&s.height, entry)
}

func (s *Store) save(series *[]*fitbridge.Sample, entry fitbridge.BodyEntry, limit float64) (bool, error) {
	if err := s.checkAuth(); err != nil {
		return false, err
	}
	if entry.Value <= 0 || math.IsNaN(entry.Value) || math.IsInf(entry.Value, 0) {
		return false, fmt.Errorf("invalid measurement %v", entry.Value)
	}
	if entry.Value > limit {
		return false, fmt.Errorf("measurement %v exceeds %v", entry.Value, limit)
	}
	s.mu.Lock()
	*series = append(*series, &fitbridge.Sample{Start: entry.At, End: entry.At, Value: entry.Value, Source: SourceManual})
	s.mu.Unlock()
	return true, nil
}

// delete drops samples starting within [entry.Start, entry.End].
func (s *Store) delete(series *[]*fitbridge.Sample, entry fitbridge.BodyEntry) (bool, error) {
	if err := s.checkAuth(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := (*series)[:0]
	for _, sample := range *series {
		if sample != nil && !sample.Start.Before(entry.Start) && !sample.Start.After(entry.End) {
			continue
		}
		kept = append(kept, sample)
	}
	clear((*series)[len(kept):])
	*series = kept
	return true, nil
}

// ObserveSteps makes AddSteps announce new steps.
func (s *Store) ObserveSteps(_ context.Context) error {
	if err := s.checkAuth(); err != nil {
		return err
	}
	s.mu.Lock()
	s.observing = true
	s.mu.Unlock()
	return nil
}

// Authorize grants access unless the store was built with
// DenyAuthorization, and announces the outcome.
func (s *Store) Authorize(_ context.Context) {
	if s.denyReason != "" {
		s.mu.Lock()
		s.authorized = false
		s.mu.Unlock()
		s.emit(events.AuthorizeFailure, events.Payload{"authorized": false, "message": s.denyReason})
		return
	}
	s.mu.Lock()
	s.authorized = true
	s.mu.Unlock()
	s.emit(events.AuthorizeSuccess, events.Payload{"authorized": true})
}

func (s *Store) IsAvailable(_ context.Context) (bool, error) {
	return true, nil
}

func (s *Store) IsEnabled(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authorized, nil
}

func (s *Store) checkAuth() error {
	if !s.requireAuth {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authorized {
		return ErrNotAuthorized
	}
	return nil
}

func (s *Store) emit(name string, payload events.Payload) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(name, payload)
}

// WriteWeightFile encodes every stored weight as a FIT weight file.
func (s *Store) WriteWeightFile(w io.Writer) error {
	header := fit.NewHeader(fit.V20, true)
	file, err := fit.NewFile(fit.FileTypeWeight, header)
	if err != nil {
		return fmt.Errorf("new weight file: %w", err)
	}
	weightFile, err := file.Weight()
	if err != nil {
		return fmt.Errorf("weight accessor: %w", err)
	}

	s.mu.RLock()
	weights := append([]*fitbridge.Sample(nil), s.weight...)
	s.mu.RUnlock()
	sort.SliceStable(weights, func(i, j int) bool {
		return weights[i].Start.Before(weights[j].Start)
	})

	for _, sample := range weights {
		if sample == nil {
			continue
		}
		raw, err := encodeWeightKg(sample.Value)
		if err != nil {
			return fmt.Errorf("encode weight at %s: %w", sample.Start.Format(time.RFC3339), err)
		}
		msg := fit.NewWeightScaleMsg()
		msg.Timestamp = sample.Start
		msg.Weight = fit.Weight(raw)
		weightFile.WeightScales = append(weightFile.WeightScales, msg)
	}
	if len(weights) > 0 {
		file.FileId.TimeCreated = weights[len(weights)-1].Start
	}

	var buf bytes.Buffer
	if err := fit.Encode(&buf, file, binary.LittleEndian); err != nil {
		return fmt.Errorf("encode weight file: %w", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

func within(samples []*fitbridge.Sample, start, end time.Time) []*fitbridge.Sample {
	out := make([]*fitbridge.Sample, 0, len(samples))
	for _, sample := range samples {
		if sample == nil {
			continue
		}
		if sample.Start.Before(start) || !sample.Start.Before(end) {
			continue
		}
		copied := *sample
		out = append(out, &copied)
	}
	return out
}
