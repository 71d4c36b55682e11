//go:build js && wasm

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"syscall/js"

	"github.com/lucasjlepore/fitbridge"
	"github.com/lucasjlepore/fitbridge/events"
	"github.com/lucasjlepore/fitbridge/fitstore"
	"github.com/lucasjlepore/fitbridge/pipeline"
)

var (
	emitter = events.NewEmitter()
	store   = fitstore.New(emitter)
	client  = fitbridge.New(store, store, emitter)
)

func main() {
	funcs := map[string]func(js.Value, []js.Value) any{
		"loadFit":                  loadFit,
		"getDailyStepCountSamples": query(client.GetDailyStepCountSamples),
		"getDailyDistanceSamples":  query(client.GetDailyDistanceSamples),
		"getDailyCalorieSamples":   query(client.GetDailyCalorieSamples),
		"getWeightSamples":         query(client.GetWeightSamples),
		"getHeightSamples":         query(client.GetHeightSamples),
		"saveWeight":               weightCall(client.SaveWeightAsync),
		"deleteWeight":             weightCall(client.DeleteWeightAsync),
		"saveHeight":               heightCall(client.SaveHeightAsync),
		"deleteHeight":             heightCall(client.DeleteHeightAsync),
		"isAvailable":              availabilityCall(client.IsAvailableAsync),
		"isEnabled":                availabilityCall(client.IsEnabledAsync),
		"authorize":                authorize,
		"observeSteps":             observeSteps,
		"observeHistory":           observeHistory,
		"unsubscribeListeners":     unsubscribeListeners,
		"buildDailyArtifacts":      buildDailyArtifacts,
	}
	bridge := js.Global().Get("Object").New()
	for name, fn := range funcs {
		bridge.Set(name, js.FuncOf(fn))
	}
	js.Global().Set("fitbridge", bridge)
	select {}
}

// loadFit(fileBytes) adds one FIT file to the in-memory store.
func loadFit(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return failure("expected arguments: fileBytes(Uint8Array)")
	}
	data, err := copyBytes(args[0])
	if err != nil {
		return failure(err.Error())
	}
	if err := store.LoadReader(bytes.NewReader(data)); err != nil {
		return failure(err.Error())
	}
	return map[string]any{"ok": true}
}

func query[T any](fn func(context.Context, fitbridge.QueryOptions, func(fitbridge.Result[T]))) func(js.Value, []js.Value) any {
	return func(_ js.Value, args []js.Value) any {
		opts, cb, err := optionsAndCallback(args)
		if err != nil {
			return failure(err.Error())
		}
		fn(context.Background(), fitbridge.QueryOptions{
			StartDate: getString(opts, "startDate", ""),
			EndDate:   getString(opts, "endDate", ""),
			Unit:      fitbridge.Unit(getString(opts, "unit", "")),
		}, deliver[T](cb))
		return nil
	}
}

func weightCall(fn func(context.Context, fitbridge.WeightOptions, func(fitbridge.Result[bool]))) func(js.Value, []js.Value) any {
	return func(_ js.Value, args []js.Value) any {
		opts, cb, err := optionsAndCallback(args)
		if err != nil {
			return failure(err.Error())
		}
		fn(context.Background(), fitbridge.WeightOptions{
			Value:     getFloat(opts, "value"),
			Date:      getString(opts, "date", ""),
			Unit:      fitbridge.Unit(getString(opts, "unit", "")),
			StartDate: getString(opts, "startDate", ""),
			EndDate:   getString(opts, "endDate", ""),
		}, deliver[bool](cb))
		return nil
	}
}

func heightCall(fn func(context.Context, fitbridge.HeightOptions, func(fitbridge.Result[bool]))) func(js.Value, []js.Value) any {
	return func(_ js.Value, args []js.Value) any {
		opts, cb, err := optionsAndCallback(args)
		if err != nil {
			return failure(err.Error())
		}
		fn(context.Background(), fitbridge.HeightOptions{
			Value:     getFloat(opts, "value"),
			Date:      getString(opts, "date", ""),
			StartDate: getString(opts, "startDate", ""),
			EndDate:   getString(opts, "endDate", ""),
		}, deliver[bool](cb))
		return nil
	}
}

func availabilityCall(fn func(context.Context, func(fitbridge.Result[bool]))) func(js.Value, []js.Value) any {
	return func(_ js.Value, args []js.Value) any {
		if len(args) < 1 || args[0].Type() != js.TypeFunction {
			return failure("expected arguments: callback(function)")
		}
		fn(context.Background(), deliver[bool](args[0]))
		return nil
	}
}

func authorize(_ js.Value, _ []js.Value) any {
	go client.Authorize(context.Background())
	return nil
}

// observeSteps(callback) forwards every StepChangedEvent payload.
func observeSteps(_ js.Value, args []js.Value) any {
	if len(args) < 1 || args[0].Type() != js.TypeFunction {
		return failure("expected arguments: callback(function)")
	}
	cb := args[0]
	if _, err := client.ObserveSteps(context.Background(), forward(cb)); err != nil {
		return failure(err.Error())
	}
	return map[string]any{"ok": true}
}

func observeHistory(_ js.Value, args []js.Value) any {
	if len(args) < 1 || args[0].Type() != js.TypeFunction {
		return failure("expected arguments: callback(function)")
	}
	client.ObserveHistory(forward(args[0]))
	return map[string]any{"ok": true}
}

func unsubscribeListeners(_ js.Value, _ []js.Value) any {
	client.UnsubscribeListeners()
	return nil
}

// buildDailyArtifacts(files, options) runs the daily export over
// [{name, data}] and returns the artifacts as one zip.
func buildDailyArtifacts(_ js.Value, args []js.Value) any {
	if len(args) < 1 || args[0].IsUndefined() || args[0].IsNull() {
		return failure("expected arguments: files([{name, data}]), options(object)")
	}
	var opts js.Value
	if len(args) > 1 {
		opts = args[1]
	}

	filesArg := args[0]
	inputs := make([]pipeline.InputBytes, 0, filesArg.Length())
	for i := 0; i < filesArg.Length(); i++ {
		entry := filesArg.Index(i)
		data, err := copyBytes(entry.Get("data"))
		if err != nil {
			return failure(fmt.Sprintf("file %d: %v", i, err))
		}
		inputs = append(inputs, pipeline.InputBytes{
			Name: getString(entry, "name", fmt.Sprintf("input-%d.fit", i+1)),
			Data: data,
		})
	}

	result, err := pipeline.RunBytes(context.Background(), pipeline.BytesOptions{
		Inputs:    inputs,
		StartDate: getString(opts, "startDate", ""),
		EndDate:   getString(opts, "endDate", ""),
		Unit:      fitbridge.Unit(getString(opts, "unit", "")),
		Format:    getString(opts, "format", "parquet"),
	})
	if err != nil {
		return failure(err.Error())
	}

	zipBytes, err := pipeline.ZipArtifacts(result.Files)
	if err != nil {
		return failure(fmt.Sprintf("create zip: %v", err))
	}
	payload := js.Global().Get("Uint8Array").New(len(zipBytes))
	js.CopyBytesToJS(payload, zipBytes)

	fileNames := make([]string, 0, len(result.Files))
	for name := range result.Files {
		fileNames = append(fileNames, name)
	}
	sort.Strings(fileNames)

	return map[string]any{
		"ok":       true,
		"zip":      payload,
		"days":     result.Days,
		"missing":  stringsToAny(result.Missing),
		"warnings": stringsToAny(result.Warnings),
		"files":    stringsToAny(fileNames),
	}
}

// deliver maps a Result onto a JS (error, result) callback.
func deliver[T any](cb js.Value) func(fitbridge.Result[T]) {
	return func(r fitbridge.Result[T]) {
		v, err := r.Get()
		if err != nil {
			cb.Invoke(err.Error(), js.Null())
			return
		}
		out, err := toJS(v)
		if err != nil {
			cb.Invoke(err.Error(), js.Null())
			return
		}
		cb.Invoke(js.Null(), out)
	}
}

func forward(cb js.Value) events.Handler {
	return func(p events.Payload) {
		out, err := toJS(p)
		if err != nil {
			return
		}
		cb.Invoke(out)
	}
}

// toJS converts v through its JSON form so struct tags apply.
func toJS(v any) (js.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return js.Null(), fmt.Errorf("encode result: %w", err)
	}
	return js.Global().Get("JSON").Call("parse", string(data)), nil
}

func optionsAndCallback(args []js.Value) (js.Value, js.Value, error) {
	if len(args) < 2 || args[1].Type() != js.TypeFunction {
		return js.Undefined(), js.Undefined(), fmt.Errorf("expected arguments: options(object), callback(function)")
	}
	return args[0], args[1], nil
}

func copyBytes(v js.Value) ([]byte, error) {
	if v.IsUndefined() || v.IsNull() || v.Get("length").Int() == 0 {
		return nil, fmt.Errorf("fit file bytes are required")
	}
	data := make([]byte, v.Get("length").Int())
	if n := js.CopyBytesToGo(data, v); n == 0 {
		return nil, fmt.Errorf("failed to read FIT bytes from JS input")
	}
	return data, nil
}

func failure(msg string) map[string]any {
	return map[string]any{
		"ok":    false,
		"error": msg,
	}
}

func getString(v js.Value, key, fallback string) string {
	if v.IsUndefined() || v.IsNull() {
		return fallback
	}
	out := v.Get(key)
	if out.IsUndefined() || out.IsNull() {
		return fallback
	}
	s := out.String()
	if s == "" || s == "undefined" || s == "null" {
		return fallback
	}
	return s
}

func getFloat(v js.Value, key string) float64 {
	if v.IsUndefined() || v.IsNull() {
		return 0
	}
	out := v.Get(key)
	if out.IsUndefined() || out.IsNull() || out.Type() != js.TypeNumber {
		return 0
	}
	return out.Float()
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
