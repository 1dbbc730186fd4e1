package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yazinsai/cal-ai/internal/clock"
	"github.com/yazinsai/cal-ai/internal/errvalues"
	"github.com/yazinsai/cal-ai/internal/estimate"
	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/service"
	"github.com/yazinsai/cal-ai/internal/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stubEstimator struct {
	result estimate.Result
	err    error
	target model.DailyTarget
}

func (s *stubEstimator) EstimateFromImage(context.Context, estimate.Image) (estimate.Result, error) {
	return s.result, s.err
}

func (s *stubEstimator) EstimateFromText(context.Context, string) (estimate.Result, error) {
	return s.result, s.err
}

func (s *stubEstimator) EstimateTargets(context.Context, model.UserProfile) (model.DailyTarget, error) {
	return s.target, s.err
}

type fixture struct {
	srv *Server
	st  *store.Store
	clk *clock.Fake
}

func newFixture(t *testing.T, est estimate.Estimator) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewFake(time.Date(2026, 3, 5, 12, 30, 0, 0, time.UTC), time.UTC)
	st := store.New(store.NewMemoryKV(), time.UTC, logger)
	srv := NewServer(Deps{
		Store:     st,
		Clock:     clk,
		Scheduler: service.NewResetScheduler(st, clk, logger),
		Estimator: est,
		Logger:    logger,
	})
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, st: st, clk: clk}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestEntryLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/entries", map[string]any{
		"name": "Oatmeal", "calories": 300, "protein": 10, "carbs": 50, "fat": 6, "sugar": 8,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	created := decode[model.FoodEntry](t, rec)
	assert.Equal(t, model.MealLunch, created.MealType)
	id := created.ID

	rec = f.do(t, http.MethodPatch, "/api/v1/entries/"+id, map[string]any{"calories": 400, "portion": "1 bowl"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 400.0, decode[model.FoodEntry](t, rec).Calories)

	rec = f.do(t, http.MethodPost, "/api/v1/entries/"+id+"/adjust", map[string]any{"delta": -100})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 300.0, decode[model.FoodEntry](t, rec).Calories)

	rec = f.do(t, http.MethodGet, "/api/v1/today", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	today := decode[service.DayStatus](t, rec)
	assert.Equal(t, "2026-03-05", today.Date)
	assert.Len(t, today.Entries, 1)
	assert.False(t, today.HasTarget)

	rec = f.do(t, http.MethodDelete, "/api/v1/entries/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodGet, "/api/v1/entries", nil)
	assert.Empty(t, decode[[]model.FoodEntry](t, rec))

	rec = f.do(t, http.MethodPost, "/api/v1/entries/undo", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodGet, "/api/v1/entries/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/entries/undo", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUndoExpires(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/api/v1/entries", map[string]any{"name": "Toast", "calories": 90})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[model.FoodEntry](t, rec).ID

	require.Equal(t, http.StatusOK, f.do(t, http.MethodDelete, "/api/v1/entries/"+id, nil).Code)
	f.clk.Advance(6 * time.Second)
	rec = f.do(t, http.MethodPost, "/api/v1/entries/undo", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "expired")
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	cases := []struct {
		method, path string
		body         any
		want         int
	}{
		{http.MethodPost, "/api/v1/entries", map[string]any{"name": "Bad", "calories": -1}, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/entries", map[string]any{"calories": 10}, http.StatusBadRequest},
		{http.MethodGet, "/api/v1/days/2026-13-01", nil, http.StatusBadRequest},
		{http.MethodGet, "/api/v1/entries/nope", nil, http.StatusNotFound},
		{http.MethodPatch, "/api/v1/entries/nope", map[string]any{"calories": 1}, http.StatusNotFound},
		{http.MethodDelete, "/api/v1/entries/nope", nil, http.StatusNotFound},
		{http.MethodGet, "/api/v1/target", nil, http.StatusConflict},
		{http.MethodGet, "/api/v1/suggestions", nil, http.StatusConflict},
		{http.MethodPost, "/api/v1/estimate/text", map[string]any{"description": "toast"}, http.StatusConflict},
		{http.MethodPut, "/api/v1/quicklog/ghost/star", nil, http.StatusNotFound},
		{http.MethodPut, "/api/v1/settings/unknown", map[string]any{"value": "x"}, http.StatusBadRequest},
		{http.MethodGet, "/api/v1/export?format=xml", nil, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := f.do(t, tc.method, tc.path, tc.body)
		assert.Equal(t, tc.want, rec.Code, "%s %s: %s", tc.method, tc.path, rec.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, http.StatusBadGateway, statusFor(fmt.Errorf("call: %w", errvalues.ErrEstimateFailed)))
	assert.Equal(t, http.StatusBadGateway, statusFor(errvalues.ErrInvalidEstimate))
	assert.Equal(t, http.StatusConflict, statusFor(errvalues.ErrTargetNotConfigured))
	assert.Equal(t, http.StatusNotImplemented, statusFor(errvalues.ErrUnsupported))
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("save: %w", errvalues.ErrStorage)))
	assert.Equal(t, http.StatusBadRequest, statusFor(errors.New("calories must be >= 0")))
}

func TestTargetsAndSuggestions(t *testing.T) {
	t.Parallel()
	est := &stubEstimator{target: model.DailyTarget{Calories: 2000, Protein: 150, Carbs: 200, Fat: 65, Sugar: 30}}
	f := newFixture(t, est)

	rec := f.do(t, http.MethodPut, "/api/v1/profile", map[string]any{"age": 30, "goal": "maintain"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodPost, "/api/v1/target/estimate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/target", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, est.target, decode[model.DailyTarget](t, rec))

	rec = f.do(t, http.MethodGet, "/api/v1/suggestions?limit=3", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[struct {
		Remaining   model.Macros         `json:"remaining"`
		Suggestions []service.Suggestion `json:"suggestions"`
	}](t, rec)
	assert.Equal(t, 2000.0, body.Remaining.Calories)
	assert.Len(t, body.Suggestions, 3)

	rec = f.do(t, http.MethodPut, "/api/v1/target", map[string]any{"calories": -5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEstimateTextLogsEntry(t *testing.T) {
	t.Parallel()
	est := &stubEstimator{result: estimate.Result{Name: "Banana", Calories: 105, Carbs: 27, Sugar: 14, Portion: "1 medium"}}
	f := newFixture(t, est)

	rec := f.do(t, http.MethodPost, "/api/v1/estimate/text", map[string]any{"description": "a banana"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[estimateResponse](t, rec).Entry)

	rec = f.do(t, http.MethodPost, "/api/v1/estimate/text", map[string]any{"description": "a banana", "log": true, "mealType": "snack"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[estimateResponse](t, rec)
	require.NotNil(t, resp.Entry)
	assert.Equal(t, model.MealSnack, resp.Entry.MealType)
	assert.Equal(t, "1 medium", resp.Entry.Portion)

	rec = f.do(t, http.MethodGet, "/api/v1/quicklog", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ql := decode[map[string][]model.QuickLogItem](t, rec)
	require.Len(t, ql["recents"], 1)
	assert.Equal(t, "Banana", ql["recents"][0].Name)

	est.err = fmt.Errorf("%w: upstream 500", errvalues.ErrEstimateFailed)
	rec = f.do(t, http.MethodPost, "/api/v1/estimate/text", map[string]any{"description": "a banana"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestEstimateImageMultipart(t *testing.T) {
	t.Parallel()
	est := &stubEstimator{result: estimate.Result{Name: "Salad", Calories: 250}}
	f := newFixture(t, est)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "salad.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("log", "true"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/estimate/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Salad", decode[estimateResponse](t, rec).Entry.Name)

	rec = f.do(t, http.MethodPost, "/api/v1/estimate/image", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuickLogAndSettings(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/entries", map[string]any{"name": "Apple", "calories": 95}).Code)

	rec := f.do(t, http.MethodPost, "/api/v1/quicklog/log", map[string]any{"item": "apple", "servings": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 190.0, decode[model.FoodEntry](t, rec).Calories)

	rec = f.do(t, http.MethodPut, "/api/v1/quicklog/Apple/star", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ql := decode[map[string][]model.QuickLogItem](t, f.do(t, http.MethodGet, "/api/v1/quicklog", nil))
	assert.Empty(t, ql["recents"])
	require.Len(t, ql["favorites"], 1)
	assert.Equal(t, 2, ql["favorites"][0].Frequency)

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/v1/quicklog/apple", nil).Code)

	rec = f.do(t, http.MethodPut, "/api/v1/settings/dark_mode", map[string]any{"value": "false"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "false", decode[map[string]string](t, rec)["dark_mode"])
}

func TestExportFormats(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/entries", map[string]any{"name": "Eggs", "calories": 155, "mealType": "breakfast"}).Code)

	rec := f.do(t, http.MethodGet, "/api/v1/export?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Date,Meal,Food,Calories,Protein,Carbs,Fat,Sugar", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2026-03-05 12:30,breakfast,Eggs,155"), lines[1])

	rec = f.do(t, http.MethodGet, "/api/v1/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap, err := service.DecodeSnapshot(rec.Body)
	require.NoError(t, err)
	require.Len(t, snap.History, 1)
	assert.Equal(t, "2026-03-05", snap.History[0].Date)
}

func TestVisibilityPushesRollover(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	require.NoError(t, f.st.SetResetMarker("2026-03-04"))

	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.srv.hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	rec := f.do(t, http.MethodPost, "/api/v1/visibility", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[map[string]any](t, rec)
	assert.Equal(t, true, first["rolledOver"])
	assert.Equal(t, "CURRENT", first["state"])

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev struct {
		Type string           `json:"type"`
		Data service.Rollover `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "rollover", ev.Type)
	assert.Equal(t, "2026-03-04", ev.Data.From)
	assert.Equal(t, "2026-03-05", ev.Data.To)
	assert.Equal(t, service.TriggerForeground, ev.Data.Trigger)

	again := decode[map[string]any](t, f.do(t, http.MethodPost, "/api/v1/visibility", nil))
	assert.Equal(t, false, again["rolledOver"])
}
