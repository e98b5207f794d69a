package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"leasingbot_backend/internal/metrics/repository"
	"leasingbot_backend/internal/metrics/service"
	"leasingbot_backend/platform/httpkit"
)

const dateFormat = "2006-01-02"

// Handler exposes the daily funnel metrics.
type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the metrics routes.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/daily", h.ListDaily)
	g.GET("/daily/:date", h.GetDaily)
	g.POST("/daily/:date/rollup", h.Rollup)
}

type dailyResponse struct {
	Date                    string  `json:"date"`
	TotalInquiries          int     `json:"totalInquiries"`
	QualifiedLeads          int     `json:"qualifiedLeads"`
	ToursScheduled          int     `json:"toursScheduled"`
	ToursCompleted          int     `json:"toursCompleted"`
	ConversionRateQualified float64 `json:"conversionRateQualified"`
	ConversionRateScheduled float64 `json:"conversionRateScheduled"`
}

func toResponse(m repository.DailyMetrics) dailyResponse {
	return dailyResponse{
		Date:                    m.MetricDate.Format(dateFormat),
		TotalInquiries:          m.TotalInquiries,
		QualifiedLeads:          m.QualifiedLeads,
		ToursScheduled:          m.ToursScheduled,
		ToursCompleted:          m.ToursCompleted,
		ConversionRateQualified: m.ConversionRateQualified,
		ConversionRateScheduled: m.ConversionRateScheduled,
	}
}

// ListDaily returns stored rollups for a date range.
// GET /api/v1/metrics/daily?from=2026-03-01&to=2026-03-31
func (h *Handler) ListDaily(c *gin.Context) {
	from, err := time.Parse(dateFormat, c.Query("from"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid from date", nil)
		return
	}
	to, err := time.Parse(dateFormat, c.Query("to"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid to date", nil)
		return
	}

	rows, err := h.svc.ListRange(c.Request.Context(), from, to)
	if httpkit.HandleError(c, err) {
		return
	}
	out := make([]dailyResponse, 0, len(rows))
	for _, m := range rows {
		out = append(out, toResponse(m))
	}
	httpkit.OK(c, out)
}

// GetDaily returns one day's rollup.
// GET /api/v1/metrics/daily/:date
func (h *Handler) GetDaily(c *gin.Context) {
	day, err := time.Parse(dateFormat, c.Param("date"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid date", nil)
		return
	}
	m, err := h.svc.GetByDate(c.Request.Context(), day)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(m))
}

// Rollup recomputes one day's metrics on demand.
// POST /api/v1/metrics/daily/:date/rollup
func (h *Handler) Rollup(c *gin.Context) {
	day, err := time.Parse(dateFormat, c.Param("date"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid date", nil)
		return
	}
	m, err := h.svc.Rollup(c.Request.Context(), day)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(m))
}
