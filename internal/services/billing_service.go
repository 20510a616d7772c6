package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkhoid/cloud-data-storage/internal/repository"
	"github.com/dkhoid/cloud-data-storage/models"
)

const (
	monthlyPeriod   = 30 * 24 * time.Hour
	yearlyPeriod    = 365 * 24 * time.Hour
	defaultCurrency = "USD"
)

// BillingService - тарифы, смена тарифа и история транзакций.
// Платежный провайдер не вызывается: смена тарифа сразу записывается как оплаченная.
type BillingService interface {
	Plans(ctx context.Context) ([]models.PricingPlan, error)
	Upgrade(ctx context.Context, userID int64, planName, billingCycle string) (*models.PricingPlan, error)
	Transactions(ctx context.Context, userID int64) ([]models.Transaction, error)
}

var _ BillingService = (*billingService)(nil)

type billingService struct {
	tx      repository.Transactor
	users   repository.UserRepository
	billing repository.BillingRepository
	now     func() time.Time
}

// NewBillingService создает новый экземпляр сервиса тарифов.
func NewBillingService(
	tx repository.Transactor,
	users repository.UserRepository,
	billing repository.BillingRepository,
) BillingService {
	return &billingService{tx: tx, users: users, billing: billing, now: time.Now}
}

func (s *billingService) Plans(ctx context.Context) ([]models.PricingPlan, error) {
	plans, err := s.billing.ListActivePlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения тарифов: %w", err)
	}
	return plans, nil
}

// Upgrade переводит пользователя на тариф и записывает транзакцию в одной транзакции БД.
func (s *billingService) Upgrade(
	ctx context.Context,
	userID int64,
	planName, billingCycle string,
) (*models.PricingPlan, error) {
	planName = strings.TrimSpace(planName)
	if planName == "" {
		return nil, ErrValidation
	}

	var period time.Duration
	switch billingCycle {
	case "", models.BillingCycleMonthly:
		billingCycle = models.BillingCycleMonthly
		period = monthlyPeriod
	case models.BillingCycleYearly:
		period = yearlyPeriod
	default:
		return nil, ErrValidation
	}

	plan, err := s.billing.GetPlanByName(ctx, planName)
	if err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			return nil, ErrInvalidPlan
		}
		return nil, fmt.Errorf("ошибка получения тарифа: %w", err)
	}

	amount := plan.PriceMonthly
	if billingCycle == models.BillingCycleYearly {
		amount = plan.PriceYearly
	}
	endDate := s.now().Add(period)

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if txErr := s.users.UpdatePlan(ctx, userID, plan.Name, plan.StorageLimit, endDate); txErr != nil {
			return txErr
		}
		_, txErr := s.billing.CreateTransaction(ctx, &models.Transaction{
			UserID:          userID,
			Amount:          amount,
			Currency:        defaultCurrency,
			Description:     "Upgrade to " + plan.Name,
			Status:          models.TransactionStatusCompleted,
			TransactionType: models.TransactionTypeSubscription,
		})
		return txErr
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка смены тарифа: %w", err)
	}

	log.Info().Int64("user_id", userID).Str("plan", plan.Name).Str("cycle", billingCycle).
		Float64("amount", amount).Msg("[BillingService] Тариф изменен")
	return plan, nil
}

func (s *billingService) Transactions(ctx context.Context, userID int64) ([]models.Transaction, error) {
	txs, err := s.billing.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	return txs, nil
}

// Кастомные ошибки сервиса тарифов.
var (
	ErrInvalidPlan = errors.New("неизвестный тариф")
)
