package fitbridge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lucasjlepore/fitbridge"
	"github.com/lucasjlepore/fitbridge/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingSessionDefaultsToAllTypes(t *testing.T) {
	t.Parallel()

	emitter := events.NewEmitter()
	backend := newFakeBackend(emitter)
	session := fitbridge.NewRecordingSession(backend, fitbridge.NewListenerRegistry(emitter))

	var statuses []fitbridge.RecordingStatus
	results := session.Start(context.Background(), func(s fitbridge.RecordingStatus) {
		statuses = append(statuses, s)
	})

	require.Len(t, results, len(fitbridge.AllDataTypes))
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
	assert.Equal(t, fitbridge.AllDataTypes, backend.recorded)
	// The listener is bound before recording starts, so the immediate
	// status event of every type is seen.
	assert.Equal(t, []fitbridge.RecordingStatus{
		{Type: fitbridge.DataTypeSteps, Recording: true},
		{Type: fitbridge.DataTypeDistance, Recording: true},
		{Type: fitbridge.DataTypeWeight, Recording: true},
		{Type: fitbridge.DataTypeHeight, Recording: true},
	}, statuses)
}

func TestRecordingSessionStreamsEvents(t *testing.T) {
	t.Parallel()

	emitter := events.NewEmitter()
	backend := newFakeBackend(emitter)
	registry := fitbridge.NewListenerRegistry(emitter)
	session := fitbridge.NewRecordingSession(backend, registry)

	var statuses []fitbridge.RecordingStatus
	session.Start(context.Background(), func(s fitbridge.RecordingStatus) {
		statuses = append(statuses, s)
	}, fitbridge.DataTypeSteps)

	emitter.Emit("STEP_RECORDING", events.Payload{"type": "STEP_RECORDING", "recording": false})
	emitter.Emit("STEP_RECORDING", events.Payload{"recording": true})
	emitter.Emit("DISTANCE_RECORDING", events.Payload{"type": "DISTANCE_RECORDING", "recording": true})
	require.Len(t, statuses, 3)
	assert.Equal(t, fitbridge.RecordingStatus{Type: fitbridge.DataTypeSteps, Recording: false}, statuses[1])
	assert.Equal(t, fitbridge.RecordingStatus{Type: fitbridge.DataTypeSteps, Recording: true}, statuses[2])

	registry.RemoveAll()
	emitter.Emit("STEP_RECORDING", events.Payload{"recording": true})
	assert.Len(t, statuses, 3)
}

func TestRecordingSessionReportsPerTypeFailure(t *testing.T) {
	t.Parallel()

	emitter := events.NewEmitter()
	backend := newFakeBackend(emitter)
	refused := errors.New("sensor unavailable")
	backend.recordErr[fitbridge.DataTypeWeight] = refused
	registry := fitbridge.NewListenerRegistry(emitter)
	session := fitbridge.NewRecordingSession(backend, registry)

	results := session.Start(context.Background(), func(fitbridge.RecordingStatus) {},
		fitbridge.DataTypeSteps, fitbridge.DataTypeWeight, fitbridge.DataType(42))
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, refused)
	var backendErr *fitbridge.BackendError
	assert.True(t, errors.As(results[1].Err, &backendErr))
	assert.ErrorIs(t, results[2].Err, fitbridge.ErrUnknownDataType)

	// Only the successful type keeps a listener.
	subs := registry.Subscriptions()
	require.Len(t, subs, 1)
	assert.Equal(t, "STEP_RECORDING", subs[0].EventName)
	assert.Equal(t, 0, emitter.Listeners("WEIGHT_RECORDING"))
}
