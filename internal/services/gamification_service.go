package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/redis"

	"github.com/google/uuid"
)

const (
	spinCouponPercent  = 10
	spinCouponValidFor = 7 * 24 * time.Hour
	spinCouponPrefix   = "SPIN-"

	defaultSpinCooldown = 24 * time.Hour
)

// DefaultSpinSegments сектора колеса удачи
var DefaultSpinSegments = []models.SpinSegment{
	{Name: "10 points", Points: 10, Weight: 40},
	{Name: "25 points", Points: 25, Weight: 25},
	{Name: "50 points", Points: 50, Weight: 12},
	{Name: "100 points", Points: 100, Weight: 3},
	{Name: "10% coupon", Weight: 10, Coupon: true},
	{Name: "try again", Weight: 10},
}

// GamificationService рейтинг покупателей и колесо удачи
type GamificationService struct {
	board     Leaderboard
	customers CustomerRepository
	spins     SpinRepository
	coupons   *CouponService
	log       *logger.Logger
	segments  []models.SpinSegment
	cooldown  time.Duration
	topSize   int
	now       func() time.Time
	intn      func(n int) int
}

// NewGamificationService создает сервис геймификации
func NewGamificationService(
	board Leaderboard,
	customers CustomerRepository,
	spins SpinRepository,
	coupons *CouponService,
	log *logger.Logger,
	cfg *config.GamificationConfig,
) *GamificationService {
	topSize := cfg.LeaderboardSize
	if topSize <= 0 {
		topSize = 10
	}
	// нулевой TTL в Redis означает бессрочный ключ
	cooldown := time.Duration(cfg.SpinCooldownHours) * time.Hour
	if cooldown <= 0 {
		cooldown = defaultSpinCooldown
	}
	return &GamificationService{
		board:     board,
		customers: customers,
		spins:     spins,
		coupons:   coupons,
		log:       log,
		segments:  DefaultSpinSegments,
		cooldown:  cooldown,
		topSize:   topSize,
		now:       time.Now,
		intn:      rand.Intn,
	}
}

func spinKey(customerID uuid.UUID) string {
	return redis.GenerateKey(redis.KeyPrefixSpin, customerID.String())
}

// Leaderboard возвращает первые n мест; ранги начинаются с 1
func (s *GamificationService) Leaderboard(ctx context.Context, n int) ([]models.LeaderboardEntry, error) {
	if n <= 0 || n > MaxPageSize {
		n = s.topSize
	}
	members, err := s.board.ZTop(ctx, redis.KeyLeaderboard, int64(n))
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	entries := make([]models.LeaderboardEntry, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m.Member)
		if err != nil {
			s.log.WithField("member", m.Member).Warn("Skipping malformed leaderboard member")
			continue
		}
		entries = append(entries, models.LeaderboardEntry{
			CustomerID: id,
			Points:     int(m.Score),
			Rank:       len(entries) + 1,
		})
	}
	return entries, nil
}

// MyRank место покупателя в рейтинге. Покупатель без баллов получает Rank 0.
func (s *GamificationService) MyRank(ctx context.Context, customerID uuid.UUID) (*models.LeaderboardEntry, error) {
	rank, score, err := s.board.ZRankDesc(ctx, redis.KeyLeaderboard, customerID.String())
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return &models.LeaderboardEntry{CustomerID: customerID}, nil
		}
		return nil, fmt.Errorf("failed to load rank: %w", err)
	}
	return &models.LeaderboardEntry{
		CustomerID: customerID,
		Points:     int(score),
		Rank:       int(rank) + 1,
	}, nil
}

// Spin вращает колесо. Не чаще одного раза за период ожидания.
func (s *GamificationService) Spin(ctx context.Context, customerID uuid.UUID) (*models.SpinResult, error) {
	now := s.now().UTC()
	key := spinKey(customerID)

	acquired, err := s.board.SetNX(ctx, key, now.Unix(), s.cooldown)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire spin cooldown: %w", err)
	}
	if !acquired {
		next := now.Add(s.cooldown)
		if ttl, err := s.board.TTL(ctx, key); err == nil && ttl > 0 {
			next = now.Add(ttl)
		}
		return nil, apperror.Conflict(fmt.Sprintf("next spin available at %s", next.Format(time.RFC3339)), nil)
	}

	segment := s.pickSegment()
	result := &models.SpinResult{
		Segment:    segment.Name,
		Points:     segment.Points,
		SpunAt:     now,
		NextSpinAt: now.Add(s.cooldown),
	}

	if err := s.award(ctx, customerID, segment, result); err != nil {
		// награда не выдана, вращение не засчитывается
		if delErr := s.board.Delete(ctx, key); delErr != nil {
			s.log.WithError(delErr).WithField("customer_id", customerID).Warn("Failed to release spin cooldown")
		}
		return nil, err
	}

	if err := s.spins.Record(ctx, customerID, result); err != nil {
		s.log.WithError(err).WithField("customer_id", customerID).Error("Failed to record spin")
	}

	s.log.WithFields(map[string]interface{}{
		"customer_id": customerID,
		"segment":     result.Segment,
		"points":      result.Points,
	}).Info("Wheel spun")
	return result, nil
}

func (s *GamificationService) award(ctx context.Context, customerID uuid.UUID, segment models.SpinSegment, result *models.SpinResult) error {
	if segment.Points > 0 {
		if _, err := s.customers.AddPoints(ctx, customerID, segment.Points); err != nil {
			return err
		}
		if _, err := s.board.ZIncrBy(ctx, redis.KeyLeaderboard, customerID.String(), float64(segment.Points)); err != nil {
			s.log.WithError(err).WithField("customer_id", customerID).Warn("Failed to update leaderboard")
		}
	}

	if segment.Coupon {
		limit := 1
		coupon, err := s.coupons.CreateCoupon(ctx, &models.CreateCouponRequest{
			Code:           spinCouponPrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10]),
			DiscountType:   models.DiscountTypePercentage,
			Value:          spinCouponPercent,
			UsageLimit:     &limit,
			ExpirationDate: result.SpunAt.Add(spinCouponValidFor),
			IsActive:       true,
		})
		if err != nil {
			return err
		}
		result.CouponCode = &coupon.Code
	}
	return nil
}

// pickSegment выбирает сектор с вероятностью, пропорциональной весу
func (s *GamificationService) pickSegment() models.SpinSegment {
	total := 0
	for _, seg := range s.segments {
		if seg.Weight > 0 {
			total += seg.Weight
		}
	}
	if total == 0 {
		return s.segments[0]
	}

	roll := s.intn(total)
	for _, seg := range s.segments {
		if seg.Weight <= 0 {
			continue
		}
		if roll < seg.Weight {
			return seg
		}
		roll -= seg.Weight
	}
	return s.segments[len(s.segments)-1]
}
