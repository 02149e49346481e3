package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"
)

const (
	defaultTopLimitFallback = 5
	defaultRangeDays        = 30
)

// AnalyticsHandler обрабатывает эндпоинты аналитики.
type AnalyticsHandler struct {
	service  AnalyticsProvider
	log      *logger.Logger
	cfg      *config.AnalyticsConfig
	location *time.Location
}

// NewAnalyticsHandler создает новый обработчик аналитики.
func NewAnalyticsHandler(service AnalyticsProvider, log *logger.Logger, cfg *config.AnalyticsConfig) *AnalyticsHandler {
	// неизвестный пояс уже залогирован сервисом аналитики
	location, _ := cfg.Location()
	return &AnalyticsHandler{
		service:  service,
		log:      log,
		cfg:      cfg,
		location: location,
	}
}

// GetDashboard возвращает сводку за период с возможностью экспорта в CSV.
func (h *AnalyticsHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	filter, format, err := parseAnalyticsFilter(r, h.cfg, h.location, time.Now())
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), analyticsTimeout(h.cfg))
	defer cancel()

	summary, err := h.service.GetDashboard(ctx, filter)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to load analytics")
		return
	}

	if format == "csv" {
		if err := writeDashboardCSV(w, summary); err != nil {
			h.log.WithError(err).Warn("Failed to stream dashboard CSV")
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, summary)
}

// parseAnalyticsFilter читает границы периода как календарные дни в поясе отчета
func parseAnalyticsFilter(r *http.Request, cfg *config.AnalyticsConfig, loc *time.Location, now time.Time) (*models.AnalyticsFilter, string, error) {
	query := r.URL.Query()
	now = now.In(loc)

	toParam := query.Get("to")
	fromParam := query.Get("from")

	to := endOfDay(now)
	if toParam != "" {
		parsed, err := time.ParseInLocation("2006-01-02", toParam, loc)
		if err != nil {
			return nil, "", fmt.Errorf("invalid 'to' date, expected YYYY-MM-DD")
		}
		to = endOfDay(parsed)
	}

	maxRangeDays := 365
	if cfg != nil && cfg.MaxRangeDays > 0 {
		maxRangeDays = cfg.MaxRangeDays
	}

	// по умолчанию последние 30 дней, но не шире допустимого диапазона
	defaultDays := defaultRangeDays
	if defaultDays > maxRangeDays {
		defaultDays = maxRangeDays
	}
	from := startOfDay(to.AddDate(0, 0, -defaultDays+1))
	if fromParam != "" {
		parsed, err := time.ParseInLocation("2006-01-02", fromParam, loc)
		if err != nil {
			return nil, "", fmt.Errorf("invalid 'from' date, expected YYYY-MM-DD")
		}
		from = startOfDay(parsed)
	}

	if from.After(to) {
		return nil, "", fmt.Errorf("'from' date must be before 'to' date")
	}

	minAllowedFrom := startOfDay(to.AddDate(0, 0, -maxRangeDays+1))
	if from.Before(minAllowedFrom) {
		return nil, "", fmt.Errorf("date range too wide, max %d days", maxRangeDays)
	}

	topDefault := defaultTopLimitFallback
	if cfg != nil && cfg.DefaultTopLimit > 0 {
		topDefault = cfg.DefaultTopLimit
	}
	topLimit := parseIntWithDefault(query.Get("top_limit"), topDefault)

	format := strings.ToLower(query.Get("format"))
	if format != "" && format != "json" && format != "csv" {
		return nil, "", fmt.Errorf("format must be json or csv")
	}

	filter := &models.AnalyticsFilter{
		From:          from,
		To:            to,
		TopItemsLimit: topLimit,
	}

	return filter, format, nil
}

func writeDashboardCSV(w http.ResponseWriter, summary *models.DashboardSummary) error {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=dashboard.csv")
	w.WriteHeader(http.StatusOK)

	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"section", "period", "revenue", "orders_count", "average_order_value"})
	rangeLabel := fmt.Sprintf("%s..%s", summary.From.Format("2006-01-02"), summary.To.Format("2006-01-02"))
	_ = writer.Write([]string{"summary", rangeLabel, formatMoney(summary.TotalRevenue), strconv.Itoa(summary.OrderCount), formatMoney(summary.AverageOrderValue)})

	for _, day := range summary.DailySummaries {
		_ = writer.Write([]string{"day", day.Date, formatMoney(day.TotalRevenue), strconv.Itoa(day.OrderCount), formatMoney(day.AverageOrderValue)})
	}

	_ = writer.Write([]string{})
	_ = writer.Write([]string{"section", "product_id", "product_name", "units_sold", "revenue"})
	for _, item := range summary.TopSelling {
		_ = writer.Write([]string{"top_product", item.ProductID, item.ProductName, strconv.Itoa(item.UnitsSold), formatMoney(item.Revenue)})
	}

	_ = writer.Write([]string{})
	_ = writer.Write([]string{"section", "total_users", "new_today", "new_this_week", "new_this_month"})
	stats := summary.UserStats
	_ = writer.Write([]string{"users", strconv.Itoa(stats.TotalUsers), strconv.Itoa(stats.NewUsersToday), strconv.Itoa(stats.NewUsersThisWeek), strconv.Itoa(stats.NewUsersThisMonth)})

	writer.Flush()
	return writer.Error()
}

func formatMoney(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Millisecond*999), t.Location())
}

func analyticsTimeout(cfg *config.AnalyticsConfig) time.Duration {
	if cfg != nil && cfg.RequestTimeoutSeconds > 0 {
		return time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	}
	return 5 * time.Second
}
