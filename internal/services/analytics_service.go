package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/redis"
	"storefront/internal/retry"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultTopItemsLimit = 10
	defaultCacheTTL      = 10 * time.Minute
	defaultMaxRangeDays  = 365
	defaultAnalyticsWait = 5 * time.Second
	dayLayout            = "2006-01-02"
)

// AnalyticsService агрегирует заказы в сводку для дашборда и кеширует результат.
type AnalyticsService struct {
	orders          OrderRepository
	customers       CustomerRepository
	cache           Cache
	log             *logger.Logger
	retry           retry.Policy
	location        *time.Location
	cacheTTL        time.Duration
	defaultTopItems int
	maxRange        time.Duration
	timeout         time.Duration
	now             func() time.Time
}

// NewAnalyticsService создает новый сервис аналитики.
func NewAnalyticsService(orders OrderRepository, customers CustomerRepository, cache Cache, log *logger.Logger, cfg *config.AnalyticsConfig, retryCfg *config.RetryConfig) *AnalyticsService {
	s := &AnalyticsService{
		orders:          orders,
		customers:       customers,
		cache:           cache,
		log:             log,
		retry:           retry.FromConfig(retryCfg),
		location:        time.UTC,
		cacheTTL:        defaultCacheTTL,
		defaultTopItems: DefaultTopItemsLimit,
		maxRange:        defaultMaxRangeDays * 24 * time.Hour,
		timeout:         defaultAnalyticsWait,
		now:             time.Now,
	}

	if cfg != nil {
		if cfg.CacheTTLMinutes > 0 {
			s.cacheTTL = time.Duration(cfg.CacheTTLMinutes) * time.Minute
		}
		if cfg.DefaultTopLimit > 0 {
			s.defaultTopItems = cfg.DefaultTopLimit
		}
		if cfg.MaxRangeDays > 0 {
			s.maxRange = time.Duration(cfg.MaxRangeDays) * 24 * time.Hour
		}
		if cfg.RequestTimeoutSeconds > 0 {
			s.timeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second
		}
		loc, err := cfg.Location()
		if err != nil {
			log.WithError(err).WithField("timezone", cfg.Timezone).Warn("Unknown analytics timezone, using UTC")
		}
		s.location = loc
	}

	return s
}

// GetDashboard строит сводку за закрытый интервал [From, To].
// Ошибка чтения заказов возвращается как есть; ошибка чтения пользователей дает нулевую статистику.
func (s *AnalyticsService) GetDashboard(ctx context.Context, filter *models.AnalyticsFilter) (*models.DashboardSummary, error) {
	if err := s.normalizeFilter(filter); err != nil {
		return nil, err
	}

	cacheKey := s.buildCacheKey(filter)
	var cached models.DashboardSummary
	if s.tryGetFromCache(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		orders        []*models.Order
		userStats     models.UserStats
		usersDegraded bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return retry.Do(gctx, s.retry, func(ctx context.Context) error {
			var err error
			orders, err = s.orders.ListInRange(ctx, filter.From, filter.To)
			return err
		})
	})
	g.Go(func() error {
		var createdAts []time.Time
		err := retry.Do(gctx, s.retry, func(ctx context.Context) error {
			var err error
			createdAts, err = s.customers.CreatedAts(ctx)
			return err
		})
		if err != nil {
			s.log.WithError(err).Warn("Failed to load user stats, reporting zeros")
			usersDegraded = true
			return nil
		}
		userStats = CalculateUserStats(createdAts, s.now())
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	orders = excludeCancelled(orders)
	revenue, count, average := CalculateTotals(orders)

	result := &models.DashboardSummary{
		From:              filter.From,
		To:                filter.To,
		TotalRevenue:      revenue,
		OrderCount:        count,
		AverageOrderValue: average,
		TopSelling:        CalculateTopSellingProducts(orders, filter.TopItemsLimit),
		DailySummaries:    CalculateDailySummaries(orders, s.location),
		UserStats:         userStats,
		GeneratedAt:       s.now(),
	}

	// отчет с нулевой статистикой пользователей не кешируется
	if !usersDegraded {
		s.saveToCache(ctx, cacheKey, result)
	}
	return result, nil
}

// InvalidateCache сбрасывает закешированные сводки (после новых заказов и смены статусов)
func (s *AnalyticsService) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPrefix(ctx, redis.KeyPrefixStats+":"); err != nil {
		s.log.WithError(err).Warn("Failed to invalidate analytics cache")
	}
}

// CalculateTotals выручка, количество и средний чек за один проход; средний чек 0 без заказов
func CalculateTotals(orders []*models.Order) (revenue float64, count int, average float64) {
	for _, o := range orders {
		revenue += o.TotalAmount
		count++
	}
	revenue = round2(revenue)
	if count > 0 {
		average = round2(revenue / float64(count))
	}
	return revenue, count, average
}

// CalculateTopSellingProducts суммирует проданные единицы по товарам и возвращает первые limit.
// При равенстве сохраняется порядок первого появления товара.
func CalculateTopSellingProducts(orders []*models.Order, limit int) []models.TopSellingProduct {
	index := make(map[string]int)
	var products []models.TopSellingProduct

	for _, o := range orders {
		for _, item := range o.Items {
			id := item.ProductID.String()
			i, ok := index[id]
			if !ok {
				i = len(products)
				index[id] = i
				products = append(products, models.TopSellingProduct{ProductID: id, ProductName: item.ProductName})
			}
			products[i].UnitsSold += item.Quantity
			products[i].Revenue += item.LineTotal()
		}
	}

	sort.SliceStable(products, func(a, b int) bool {
		return products[a].UnitsSold > products[b].UnitsSold
	})

	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	for i := range products {
		products[i].Revenue = round2(products[i].Revenue)
	}
	if products == nil {
		products = []models.TopSellingProduct{}
	}
	return products
}

// CalculateDailySummaries группирует заказы по календарному дню в зоне loc, по возрастанию даты
func CalculateDailySummaries(orders []*models.Order, loc *time.Location) []models.DailySummary {
	if loc == nil {
		loc = time.UTC
	}

	buckets := make(map[string]*models.DailySummary)
	for _, o := range orders {
		day := o.CreatedAt.In(loc).Format(dayLayout)
		b, ok := buckets[day]
		if !ok {
			b = &models.DailySummary{Date: day}
			buckets[day] = b
		}
		b.TotalRevenue += o.TotalAmount
		b.OrderCount++
	}

	result := make([]models.DailySummary, 0, len(buckets))
	for _, b := range buckets {
		b.TotalRevenue = round2(b.TotalRevenue)
		if b.OrderCount > 0 {
			b.AverageOrderValue = round2(b.TotalRevenue / float64(b.OrderCount))
		}
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result
}

// CalculateUserStats считает новых пользователей за скользящие окна 1, 7 и 30 дней.
// Окна пересекаются: пользователь за сегодня учитывается во всех трех.
func CalculateUserStats(createdAts []time.Time, now time.Time) models.UserStats {
	day := now.Add(-24 * time.Hour)
	week := now.Add(-7 * 24 * time.Hour)
	month := now.Add(-30 * 24 * time.Hour)

	stats := models.UserStats{TotalUsers: len(createdAts)}
	for _, ts := range createdAts {
		if !ts.Before(day) {
			stats.NewUsersToday++
		}
		if !ts.Before(week) {
			stats.NewUsersThisWeek++
		}
		if !ts.Before(month) {
			stats.NewUsersThisMonth++
		}
	}
	return stats
}

func excludeCancelled(orders []*models.Order) []*models.Order {
	kept := orders[:0:0]
	for _, o := range orders {
		if o.Status != models.OrderStatusCancelled {
			kept = append(kept, o)
		}
	}
	return kept
}

func (s *AnalyticsService) normalizeFilter(filter *models.AnalyticsFilter) error {
	if filter == nil || filter.From.IsZero() || filter.To.IsZero() {
		return apperror.Validation("from and to are required", nil)
	}
	if filter.To.Before(filter.From) {
		return apperror.Validation("to must not be before from", nil)
	}
	if filter.To.Sub(filter.From) > s.maxRange {
		return apperror.Validation(fmt.Sprintf("range must not exceed %d days", int(s.maxRange.Hours()/24)), nil)
	}
	if filter.TopItemsLimit <= 0 {
		filter.TopItemsLimit = s.defaultTopItems
	}
	return nil
}

func (s *AnalyticsService) buildCacheKey(filter *models.AnalyticsFilter) string {
	return redis.GenerateKey(redis.KeyPrefixStats, fmt.Sprintf(
		"dashboard:%d:%d:%d",
		filter.From.Unix(),
		filter.To.Unix(),
		filter.TopItemsLimit,
	))
}

func (s *AnalyticsService) tryGetFromCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}

	if err := s.cache.Get(ctx, key, dest); err != nil {
		return false
	}
	return true
}

func (s *AnalyticsService) saveToCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Failed to cache analytics result")
	}
}
