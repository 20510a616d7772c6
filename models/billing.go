package models

import "time"

// Циклы оплаты.
const (
	BillingCycleMonthly = "monthly"
	BillingCycleYearly  = "yearly"
)

// Статусы и типы транзакций.
const (
	TransactionStatusCompleted  = "completed"
	TransactionTypeSubscription = "subscription"
)

// PricingPlan - тарифный план из каталога.
type PricingPlan struct {
	ID           int64   `db:"id" json:"id"`
	Name         string  `db:"name" json:"name"`
	PriceMonthly float64 `db:"price_monthly" json:"price_monthly"`
	PriceYearly  float64 `db:"price_yearly" json:"price_yearly"`
	StorageLimit int64   `db:"storage_limit" json:"storage_limit"`
	Features     *string `db:"features" json:"features,omitempty"`
	IsActive     bool    `db:"is_active" json:"is_active"`
}

// Transaction - запись о платежном событии. Только добавляется.
type Transaction struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	Amount          float64   `db:"amount" json:"amount"`
	Currency        string    `db:"currency" json:"currency"`
	Description     string    `db:"description" json:"description"`
	Status          string    `db:"status" json:"status"`
	TransactionType string    `db:"transaction_type" json:"transaction_type"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// UpgradeRequest представляет тело запроса на смену тарифа.
type UpgradeRequest struct {
	Plan         string `json:"plan" validate:"required"`
	BillingCycle string `json:"billing_cycle" validate:"omitempty,oneof=monthly yearly"`
}

// UpgradeResponse представляет тело ответа на смену тарифа.
type UpgradeResponse struct {
	Message string       `json:"message"`
	Plan    *PricingPlan `json:"plan"`
}

// PlansResponse - список активных тарифов.
type PlansResponse struct {
	Plans []PricingPlan `json:"plans"`
}

// TransactionsResponse - история транзакций пользователя.
type TransactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
}
