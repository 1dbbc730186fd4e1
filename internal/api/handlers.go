package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yazinsai/cal-ai/internal/clock"
	"github.com/yazinsai/cal-ai/internal/errvalues"
	"github.com/yazinsai/cal-ai/internal/estimate"
	"github.com/yazinsai/cal-ai/internal/model"
	"github.com/yazinsai/cal-ai/internal/service"
)

const (
	defaultHistoryDays = 7
	defaultStatsDays   = 30
	maxImageBytes      = 20 << 20
)

type entryRequest struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Calories   float64        `json:"calories"`
	Protein    float64        `json:"protein"`
	Carbs      float64        `json:"carbs"`
	Fat        float64        `json:"fat"`
	Sugar      float64        `json:"sugar"`
	Timestamp  *time.Time     `json:"timestamp"`
	MealType   model.MealType `json:"mealType"`
	ImageURL   string         `json:"imageUrl"`
	Portion    string         `json:"portion"`
	Confidence *float64       `json:"confidence"`
}

func (r entryRequest) input() service.CreateEntryInput {
	in := service.CreateEntryInput{
		ID:         r.ID,
		Name:       r.Name,
		Calories:   r.Calories,
		Protein:    r.Protein,
		Carbs:      r.Carbs,
		Fat:        r.Fat,
		Sugar:      r.Sugar,
		MealType:   r.MealType,
		ImageURL:   r.ImageURL,
		Portion:    r.Portion,
		Confidence: r.Confidence,
	}
	if r.Timestamp != nil {
		in.Timestamp = *r.Timestamp
	}
	return in
}

type entryPatchRequest struct {
	Name       *string         `json:"name"`
	Calories   *float64        `json:"calories"`
	Protein    *float64        `json:"protein"`
	Carbs      *float64        `json:"carbs"`
	Fat        *float64        `json:"fat"`
	Sugar      *float64        `json:"sugar"`
	MealType   *model.MealType `json:"mealType"`
	ImageURL   *string         `json:"imageUrl"`
	Portion    *string         `json:"portion"`
	Confidence *float64        `json:"confidence"`
}

type adjustRequest struct {
	Delta float64 `json:"delta"`
}

type quickLogRequest struct {
	Item      string         `json:"item"`
	Servings  float64        `json:"servings"`
	MealType  model.MealType `json:"mealType"`
	Timestamp *time.Time     `json:"timestamp"`
}

type settingRequest struct {
	Value string `json:"value"`
}

type textEstimateRequest struct {
	Description string         `json:"description"`
	Log         bool           `json:"log"`
	MealType    model.MealType `json:"mealType"`
}

type estimateResponse struct {
	Estimate estimate.Result  `json:"estimate"`
	Entry    *model.FoodEntry `json:"entry,omitempty"`
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func (s *Server) getToday(c *gin.Context) {
	day, err := service.TodaySummary(s.st, s.clk)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, day)
}

func (s *Server) getDay(c *gin.Context) {
	date := c.Param("date")
	if _, err := clock.ParseDateKey(date, s.clk.Location()); err != nil {
		badRequest(c, "invalid date", err)
		return
	}
	day, err := service.DaySummary(s.st, date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, day)
}

func (s *Server) listEntries(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		badRequest(c, "invalid query", err)
		return
	}
	entries, err := service.ListEntries(s.st, s.clk, service.ListEntriesFilter{
		Date:     c.Query("date"),
		FromDate: c.Query("from"),
		ToDate:   c.Query("to"),
		MealType: model.MealType(c.Query("meal")),
		Limit:    limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) getEntry(c *gin.Context) {
	e, err := service.FindEntry(s.st, s.clk, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (s *Server) createEntry(c *gin.Context) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := service.AppendEntry(s.st, s.clk, req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (s *Server) updateEntry(c *gin.Context) {
	var req entryPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := service.UpdateEntry(s.st, s.clk, id, service.EntryPatch(req))
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		writeError(c, fmt.Errorf("%w: %s", errvalues.ErrEntryNotFound, id))
		return
	}
	s.respondEntry(c, id)
}

func (s *Server) adjustEntry(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := service.AdjustEntryCalories(s.st, s.clk, id, req.Delta)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		writeError(c, fmt.Errorf("%w: %s", errvalues.ErrEntryNotFound, id))
		return
	}
	s.respondEntry(c, id)
}

func (s *Server) respondEntry(c *gin.Context, id string) {
	e, err := service.FindEntry(s.st, s.clk, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (s *Server) deleteEntry(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	removed, err := service.RemoveEntry(s.st, s.clk, id, s.undoWindow)
	if err != nil {
		writeError(c, err)
		return
	}
	if removed == nil {
		writeError(c, fmt.Errorf("%w: %s", errvalues.ErrEntryNotFound, id))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"removed":   removed,
		"undoUntil": s.clk.Now().Add(s.undoWindow),
	})
}

func (s *Server) undoRemove(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := service.UndoRemove(s.st, s.clk)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (s *Server) getHistory(c *gin.Context) {
	days, err := queryInt(c, "days", defaultHistoryDays)
	if err != nil {
		badRequest(c, "invalid query", err)
		return
	}
	history, err := service.GetHistory(s.st, s.clk, days)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (s *Server) getStats(c *gin.Context) {
	days, err := queryInt(c, "days", defaultStatsDays)
	if err != nil {
		badRequest(c, "invalid query", err)
		return
	}
	history, err := service.GetHistory(s.st, s.clk, days)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"statistics":     service.ComputeStatistics(history, s.st.Target()),
		"rollingAverage": service.RollingAverage(history, 7),
	})
}

// getSuggestions ranks the catalog against what is left of today's
// target. With ideas=true it also asks the estimator for meal ideas; a
// failure there only drops the ideas.
func (s *Server) getSuggestions(c *gin.Context) {
	limit, err := queryInt(c, "limit", service.DefaultSuggestionLimit)
	if err != nil {
		badRequest(c, "invalid query", err)
		return
	}
	target := s.st.Target()
	if target == nil {
		writeError(c, errvalues.ErrTargetNotConfigured)
		return
	}
	day, err := service.TodaySummary(s.st, s.clk)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{
		"remaining":   service.Remaining(day.Totals, *target),
		"suggestions": service.SuggestMeals(day.Totals, *target, s.catalog, limit),
	}
	if c.Query("ideas") == "true" {
		if ideas, ok := s.est.(estimate.MealIdeas); ok {
			meal := model.MealForTime(s.clk.Now())
			list, err := ideas.SuggestMealIdeas(c.Request.Context(), service.Remaining(day.Totals, *target), meal)
			if err != nil {
				loggerFrom(c).Warn("meal ideas unavailable", slog.String("error", err.Error()))
			} else {
				resp["ideas"] = list
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) postVisibility(c *gin.Context) {
	if s.sched == nil {
		c.JSON(http.StatusOK, gin.H{"rolledOver": false})
		return
	}
	ev, changed, err := s.sched.Check(service.TriggerForeground)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{"rolledOver": changed, "state": s.sched.State()}
	if changed {
		resp["rollover"] = ev
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) serveWS(c *gin.Context) {
	s.hub.ServeWS(c.Writer, c.Request)
}

func (s *Server) listQuickLog(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		badRequest(c, "invalid query", err)
		return
	}
	items := s.st.QuickLog()
	c.JSON(http.StatusOK, gin.H{
		"recents":   service.Recents(items, limit),
		"favorites": service.Favorites(items),
	})
}

func (s *Server) logQuickItem(c *gin.Context) {
	var req quickLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	in := service.LogQuickItemInput{IDOrName: req.Item, Servings: req.Servings, MealType: req.MealType}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := service.LogQuickItem(s.st, s.clk, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (s *Server) starQuickItem(starred bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		item, err := service.SetStarred(s.st, c.Param("item"), starred)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func (s *Server) removeQuickItem(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := service.RemoveQuickLogItem(s.st, c.Param("item")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getTarget(c *gin.Context) {
	t := service.CurrentTarget(s.st)
	if t == nil {
		writeError(c, errvalues.ErrTargetNotConfigured)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) putTarget(c *gin.Context) {
	var t model.DailyTarget
	if err := c.ShouldBindJSON(&t); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := service.SetTarget(s.st, t); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) estimateTarget(c *gin.Context) {
	if s.est == nil {
		writeError(c, errvalues.ErrMissingCredential)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := service.EstimateTargets(c.Request.Context(), s.st, s.est)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) getProfile(c *gin.Context) {
	p := service.CurrentProfile(s.st)
	if p == nil {
		c.JSON(http.StatusOK, model.UserProfile{})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) putProfile(c *gin.Context) {
	var p model.UserProfile
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := service.SetProfile(s.st, p); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, service.ListSettings(s.st))
}

func (s *Server) putSetting(c *gin.Context) {
	var req settingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := service.SetSetting(s.st, c.Param("key"), req.Value); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ListSettings(s.st))
}

func (s *Server) estimateText(c *gin.Context) {
	var req textEstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	if s.est == nil {
		writeError(c, errvalues.ErrMissingCredential)
		return
	}
	res, err := s.est.EstimateFromText(c.Request.Context(), req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	s.respondEstimate(c, res, req.Log, req.MealType)
}

// estimateImage takes a multipart upload in the "image" field. Optional
// form fields "log" and "mealType" append the result as an entry.
func (s *Server) estimateImage(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		badRequest(c, "image file is required", err)
		return
	}
	if fh.Size > maxImageBytes {
		badRequest(c, "image is too large", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "cannot read image", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		badRequest(c, "cannot read image", err)
		return
	}
	img, err := estimate.NewImage(data)
	if err != nil {
		badRequest(c, "invalid image", err)
		return
	}
	if s.est == nil {
		writeError(c, errvalues.ErrMissingCredential)
		return
	}
	res, err := s.est.EstimateFromImage(c.Request.Context(), img)
	if err != nil {
		writeError(c, err)
		return
	}
	s.respondEstimate(c, res, c.PostForm("log") == "true", model.MealType(c.PostForm("mealType")))
}

func (s *Server) respondEstimate(c *gin.Context, res estimate.Result, log bool, meal model.MealType) {
	if !log {
		c.JSON(http.StatusOK, estimateResponse{Estimate: res})
		return
	}
	m := res.Macros()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := service.AppendEntry(s.st, s.clk, service.CreateEntryInput{
		Name:       res.Name,
		Calories:   m.Calories,
		Protein:    m.Protein,
		Carbs:      m.Carbs,
		Fat:        m.Fat,
		Sugar:      m.Sugar,
		MealType:   meal,
		Portion:    res.Portion,
		Confidence: res.Confidence,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, estimateResponse{Estimate: res, Entry: &e})
}

func (s *Server) export(c *gin.Context) {
	days, err := queryInt(c, "days", 0)
	if err != nil {
		badRequest(c, "invalid query", err)
		return
	}
	snap, err := service.ExportSnapshot(s.st, s.clk, days)
	if err != nil {
		writeError(c, err)
		return
	}
	stamp := s.clk.Now().Format("20060102")
	switch format := c.DefaultQuery("format", "json"); format {
	case "json":
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="calai-%s.json"`, stamp))
		c.Header("Content-Type", "application/json")
		if err := service.WriteSnapshotJSON(c.Writer, snap); err != nil {
			loggerFrom(c).Error("write export", slog.String("error", err.Error()))
		}
	case "csv":
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="calai-%s.csv"`, stamp))
		c.Header("Content-Type", "text/csv")
		if err := service.WriteCSV(c.Writer, snap.History, s.clk.Location()); err != nil {
			loggerFrom(c).Error("write export", slog.String("error", err.Error()))
		}
	default:
		badRequest(c, "unsupported export format", fmt.Errorf("format %q", format))
	}
}
