package reporting

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	domerr "github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/errors"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/period"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/core/summary"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/router"
	"github.com/Aws12505/LC-PIZZA-DATA-sub001/internal/rollup"
)

const notifyRollupTimeout = 5 * time.Minute

// SummaryReader reads committed summary records for the API.
type SummaryReader interface {
	Range(ctx context.Context, level period.Level, storeID string, from, toExclusive time.Time) ([]summary.Record, error)
}

// RollupRunner triggers summary recomputation after new raw records land.
type RollupRunner interface {
	Run(ctx context.Context, level period.Level, stores []string, from, to time.Time) (rollup.Report, error)
}

// Handler serves the reporting API: raw rows routed across tiers, committed
// summaries, and the ingest notification hook.
type Handler struct {
	router    *router.Router
	executor  *router.Executor
	summaries SummaryReader
	runner    RollupRunner
}

// NewHandler wires the reporting endpoints.
func NewHandler(rt *router.Router, ex *router.Executor, summaries SummaryReader, runner RollupRunner) *Handler {
	return &Handler{router: rt, executor: ex, summaries: summaries, runner: runner}
}

// Register mounts the v1 routes.
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.GET("/rows/:dataset", h.getRows)
	v1.GET("/summaries/:level/:store", h.getSummaries)
	v1.POST("/notify", h.postNotify)
}

type rowsResponse struct {
	Dataset string       `json:"dataset"`
	TraceID string       `json:"trace_id"`
	Tiers   []string     `json:"tiers"`
	Count   int          `json:"count"`
	Rows    []router.Row `json:"rows"`
}

// getRows serves GET /v1/rows/:dataset?start=&end=&sort=date&count_only=true.
// Ranges that straddle the retention cutoff are answered from both tiers
// transparently. With count_only the tiers are only counted, no rows are
// read or returned.
func (h *Handler) getRows(c *gin.Context) {
	start, end, ok := dateRangeParams(c)
	if !ok {
		return
	}

	spec, err := h.router.Route(c.Param("dataset"), start, end)
	if err != nil {
		writeRouteError(c, err)
		return
	}

	tiers := make([]string, 0, len(spec.Queries))
	for _, q := range spec.Queries {
		tiers = append(tiers, string(q.Tier))
	}

	if c.Query("count_only") == "true" {
		total, err := h.executor.Count(c.Request.Context(), spec)
		if err != nil {
			slog.Error("[Reporting] Row count failed",
				"trace_id", spec.TraceID,
				"dataset", spec.Dataset.Base,
				"error", err)
			c.JSON(http.StatusInternalServerError, domerr.ErrorResponse{
				ErrorType: domerr.HttpInternalError,
				Message:   "query execution failed",
			})
			return
		}
		c.JSON(http.StatusOK, rowsResponse{
			Dataset: spec.Dataset.Base,
			TraceID: spec.TraceID,
			Tiers:   tiers,
			Count:   int(total),
			Rows:    []router.Row{},
		})
		return
	}

	rows, err := h.executor.Execute(c.Request.Context(), spec, c.Query("sort") == "date")
	if err != nil {
		slog.Error("[Reporting] Row query failed",
			"trace_id", spec.TraceID,
			"dataset", spec.Dataset.Base,
			"error", err)
		c.JSON(http.StatusInternalServerError, domerr.ErrorResponse{
			ErrorType: domerr.HttpInternalError,
			Message:   "query execution failed",
		})
		return
	}

	c.JSON(http.StatusOK, rowsResponse{
		Dataset: spec.Dataset.Base,
		TraceID: spec.TraceID,
		Tiers:   tiers,
		Count:   len(rows),
		Rows:    rows,
	})
}

type summaryResponse struct {
	StoreID string          `json:"store_id"`
	Level   string          `json:"level"`
	Count   int             `json:"count"`
	Periods []summaryPeriod `json:"periods"`
}

type summaryPeriod struct {
	PeriodKey     string    `json:"period_key"`
	PeriodStart   time.Time `json:"period_start"`
	GrossSales    string    `json:"gross_sales"`
	NetSales      string    `json:"net_sales"`
	FoodSales     string    `json:"food_sales"`
	WasteCost     string    `json:"waste_cost"`
	OrderCount    int64     `json:"order_count"`
	ItemCount     int64     `json:"item_count"`
	AvgOrderValue string    `json:"avg_order_value"`
	FoodSalesPct  string    `json:"food_sales_pct"`
	GrowthPct     *string   `json:"growth_pct"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// getSummaries serves GET /v1/summaries/:level/:store?start=&end=.
func (h *Handler) getSummaries(c *gin.Context) {
	level, err := period.ParseLevel(c.Param("level"))
	if err != nil {
		c.JSON(http.StatusBadRequest, domerr.ErrorResponse{
			ErrorType: domerr.HttpInvalidParams,
			Message:   err.Error(),
		})
		return
	}

	start, end, ok := dateRangeParams(c)
	if !ok {
		return
	}

	storeID := c.Param("store")
	recs, err := h.summaries.Range(c.Request.Context(), level, storeID, start, end.AddDate(0, 0, 1))
	if err != nil {
		slog.Error("[Reporting] Summary query failed",
			"level", level,
			"store", storeID,
			"error", err)
		c.JSON(http.StatusInternalServerError, domerr.ErrorResponse{
			ErrorType: domerr.HttpInternalError,
			Message:   "summary query failed",
		})
		return
	}

	resp := summaryResponse{StoreID: storeID, Level: string(level), Count: len(recs), Periods: []summaryPeriod{}}
	for _, rec := range recs {
		p := summaryPeriod{
			PeriodKey:     rec.PeriodKey,
			PeriodStart:   rec.PeriodStart,
			GrossSales:    rec.Additive.GrossSales.StringFixed(2),
			NetSales:      rec.Additive.NetSales.StringFixed(2),
			FoodSales:     rec.Additive.FoodSales.StringFixed(2),
			WasteCost:     rec.Additive.WasteCost.StringFixed(2),
			OrderCount:    rec.Additive.OrderCount,
			ItemCount:     rec.Additive.ItemCount,
			AvgOrderValue: rec.Derived.AvgOrderValue.StringFixed(2),
			FoodSalesPct:  rec.Derived.FoodSalesPct.StringFixed(2),
			UpdatedAt:     rec.UpdatedAt,
		}
		if rec.Derived.GrowthPct.Valid {
			g := rec.Derived.GrowthPct.Decimal.StringFixed(2)
			p.GrowthPct = &g
		}
		resp.Periods = append(resp.Periods, p)
	}
	c.JSON(http.StatusOK, resp)
}

type notifyRequest struct {
	StoreID      string `json:"store_id" binding:"required"`
	BusinessDate string `json:"business_date" binding:"required"`
}

// postNotify serves POST /v1/notify. Accepts the signal immediately and
// refreshes the hour and day summaries of the touched store-day in the
// background; higher levels roll forward on the next scheduled run.
func (h *Handler) postNotify(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domerr.ErrorResponse{
			ErrorType: domerr.HttpInvalidParams,
			Message:   "store_id and business_date are required",
		})
		return
	}

	day, err := time.Parse(time.DateOnly, req.BusinessDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, domerr.ErrorResponse{
			ErrorType: domerr.HttpInvalidParams,
			Message:   "business_date must be YYYY-MM-DD",
		})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyRollupTimeout)
		defer cancel()
		for _, level := range []period.Level{period.Hour, period.Day} {
			rep, err := h.runner.Run(ctx, level, []string{req.StoreID}, day, day)
			if err != nil || rep.Failed > 0 {
				slog.Error("[Reporting] Notify rollup failed",
					"store", req.StoreID,
					"business_date", req.BusinessDate,
					"level", level,
					"failed_units", rep.Failed,
					"error", err)
				return
			}
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"status":        "accepted",
		"store_id":      req.StoreID,
		"business_date": req.BusinessDate,
	})
}

// dateRangeParams parses the required start and end query params. On failure
// it writes the error response and returns ok=false.
func dateRangeParams(c *gin.Context) (start, end time.Time, ok bool) {
	var err error
	start, err = time.Parse(time.DateOnly, c.Query("start"))
	if err == nil {
		end, err = time.Parse(time.DateOnly, c.Query("end"))
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, domerr.ErrorResponse{
			ErrorType: domerr.HttpInvalidParams,
			Message:   "start and end must be YYYY-MM-DD",
		})
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func writeRouteError(c *gin.Context, err error) {
	switch e := err.(type) {
	case *domerr.UnknownDatasetError:
		c.JSON(http.StatusNotFound, domerr.ErrorResponse{
			ErrorType: domerr.HttpUnknownDataset,
			Message:   e.Error(),
		})
	case *domerr.InvalidRangeError:
		c.JSON(http.StatusBadRequest, domerr.ErrorResponse{
			ErrorType: domerr.HttpInvalidRangeError,
			Message:   e.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, domerr.ErrorResponse{
			ErrorType: domerr.HttpInternalError,
			Message:   "routing failed",
		})
	}
}
