package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/dkhoid/cloud-data-storage/models"
)

const planColumns = `id, name, price_monthly, price_yearly, storage_limit, features, is_active`

// BillingRepository определяет методы для работы с тарифами и транзакциями.
type BillingRepository interface {
	ListActivePlans(ctx context.Context) ([]models.PricingPlan, error)
	// GetPlanByName возвращает только активный тариф.
	GetPlanByName(ctx context.Context, name string) (*models.PricingPlan, error)
	CreateTransaction(ctx context.Context, tx *models.Transaction) (int64, error)
	ListTransactionsByUser(ctx context.Context, userID int64) ([]models.Transaction, error)
}

type postgresBillingRepository struct {
	db *sqlx.DB
}

// NewPostgresBillingRepository создает новый экземпляр репозитория тарифов.
func NewPostgresBillingRepository(db *sqlx.DB) BillingRepository {
	return &postgresBillingRepository{db: db}
}

func (r *postgresBillingRepository) ListActivePlans(ctx context.Context) ([]models.PricingPlan, error) {
	query := `SELECT ` + planColumns + ` FROM pricing_plans WHERE is_active = TRUE ORDER BY price_monthly`

	plans := make([]models.PricingPlan, 0)
	if err := conn(ctx, r.db).SelectContext(ctx, &plans, query); err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса на получение тарифов: %w", err)
	}
	return plans, nil
}

func (r *postgresBillingRepository) GetPlanByName(ctx context.Context, name string) (*models.PricingPlan, error) {
	query := `SELECT ` + planColumns + ` FROM pricing_plans WHERE name=$1 AND is_active = TRUE`
	var plan models.PricingPlan

	err := conn(ctx, r.db).GetContext(ctx, &plan, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("ошибка выполнения запроса на получение тарифа: %w", err)
	}
	return &plan, nil
}

// CreateTransaction добавляет запись о платежном событии.
func (r *postgresBillingRepository) CreateTransaction(ctx context.Context, t *models.Transaction) (int64, error) {
	query := `INSERT INTO transactions (user_id, amount, currency, description, status, transaction_type)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	var id int64

	err := conn(ctx, r.db).QueryRowxContext(ctx, query,
		t.UserID, t.Amount, t.Currency, t.Description, t.Status, t.TransactionType,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ошибка выполнения запроса на создание транзакции: %w", err)
	}

	log.Info().Int64("transaction_id", id).Int64("user_id", t.UserID).Float64("amount", t.Amount).
		Msg("[BillingRepo] Транзакция записана")
	return id, nil
}

func (r *postgresBillingRepository) ListTransactionsByUser(
	ctx context.Context,
	userID int64,
) ([]models.Transaction, error) {
	query := `SELECT id, user_id, amount, currency, description, status, transaction_type, created_at
	          FROM transactions WHERE user_id=$1 ORDER BY created_at DESC`

	txs := make([]models.Transaction, 0)
	if err := conn(ctx, r.db).SelectContext(ctx, &txs, query, userID); err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса на получение транзакций: %w", err)
	}
	return txs, nil
}

// Кастомные ошибки репозитория тарифов.
var (
	ErrPlanNotFound = errors.New("тариф не найден")
)
