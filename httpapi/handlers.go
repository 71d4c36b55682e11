package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lucasjlepore/fitbridge"
	"github.com/lucasjlepore/fitbridge/pipeline"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func queryOptions(r *http.Request) fitbridge.QueryOptions {
	q := r.URL.Query()
	return fitbridge.QueryOptions{
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		Unit:      fitbridge.Unit(q.Get("unit")),
	}
}

func (a *api) dailySteps(w http.ResponseWriter, r *http.Request) {
	groups, err := a.client.DailySteps(r.Context(), queryOptions(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if !strings.EqualFold(r.URL.Query().Get("format"), "parquet") {
		writeJSON(w, http.StatusOK, groups)
		return
	}
	data, err := pipeline.MarshalDailyParquet(pipeline.DailyStepRows(&fitbridge.DailyReport{Steps: groups}))
	if err != nil {
		a.writeError(w, r, fmt.Errorf("encode parquet: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set("Content-Disposition", `attachment; filename="daily_steps.parquet"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *api) distance(w http.ResponseWriter, r *http.Request) {
	records, err := a.client.DailyDistance(r.Context(), queryOptions(r))
	a.respond(w, r, records, err)
}

func (a *api) calories(w http.ResponseWriter, r *http.Request) {
	records, err := a.client.DailyCalories(r.Context(), queryOptions(r))
	a.respond(w, r, records, err)
}

func (a *api) weight(w http.ResponseWriter, r *http.Request) {
	records, err := a.client.WeightSamples(r.Context(), queryOptions(r))
	a.respond(w, r, records, err)
}

func (a *api) height(w http.ResponseWriter, r *http.Request) {
	records, err := a.client.HeightSamples(r.Context(), queryOptions(r))
	a.respond(w, r, records, err)
}

func (a *api) saveWeight(w http.ResponseWriter, r *http.Request) {
	var opts fitbridge.WeightOptions
	if !a.decode(w, r, &opts) {
		return
	}
	ok, err := a.client.SaveWeight(r.Context(), opts)
	a.respond(w, r, map[string]bool{"ok": ok}, err)
}

func (a *api) deleteWeight(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ok, err := a.client.DeleteWeight(r.Context(), fitbridge.WeightOptions{
		Date:      q.Get("date"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		Unit:      fitbridge.Unit(q.Get("unit")),
	})
	a.respond(w, r, map[string]bool{"ok": ok}, err)
}

func (a *api) saveHeight(w http.ResponseWriter, r *http.Request) {
	var opts fitbridge.HeightOptions
	if !a.decode(w, r, &opts) {
		return
	}
	ok, err := a.client.SaveHeight(r.Context(), opts)
	a.respond(w, r, map[string]bool{"ok": ok}, err)
}

func (a *api) deleteHeight(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ok, err := a.client.DeleteHeight(r.Context(), fitbridge.HeightOptions{
		Date:      q.Get("date"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
	})
	a.respond(w, r, map[string]bool{"ok": ok}, err)
}

func (a *api) summary(w http.ResponseWriter, r *http.Request) {
	report, err := a.client.BuildReport(r.Context(), queryOptions(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(fitbridge.BuildDailyNotes(report) + "\n"))
}

func (a *api) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("decode request body: %v", err), Kind: "bad_request"})
		return false
	}
	return true
}

func (a *api) respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// statusFor maps client errors to HTTP statuses.
func statusFor(err error) (int, string) {
	var (
		noData  *fitbridge.NoDataError
		invalid *fitbridge.InvalidDateError
		backend *fitbridge.BackendError
	)
	switch {
	case errors.As(err, &noData):
		return http.StatusNotFound, "no_data"
	case errors.As(err, &invalid):
		return http.StatusBadRequest, "invalid_date"
	case errors.As(err, &backend):
		return http.StatusBadGateway, "backend"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.log.Error("request_failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Any("err", err),
		)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
