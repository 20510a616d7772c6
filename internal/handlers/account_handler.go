package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/dkhoid/cloud-data-storage/internal/services"
	"github.com/dkhoid/cloud-data-storage/models"
)

// AccountHandler отдает профиль, тарифы, транзакции и статистику.
type AccountHandler struct {
	users   services.UserService
	billing services.BillingService
	admin   services.AdminService
}

// NewAccountHandler создает новый экземпляр AccountHandler.
func NewAccountHandler(
	users services.UserService,
	billing services.BillingService,
	admin services.AdminService,
) *AccountHandler {
	return &AccountHandler{users: users, billing: billing, admin: admin}
}

// UserInfo отдает профиль пользователя с показателями использования.
func (h *AccountHandler) UserInfo(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r, "AccountHandler:UserInfo")
	if !ok {
		return
	}

	info, err := h.users.Info(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "AccountHandler:UserInfo", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// UsageHistory отдает дневные снимки использования.
func (h *AccountHandler) UsageHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r, "AccountHandler:UsageHistory")
	if !ok {
		return
	}

	history, err := h.users.UsageHistory(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "AccountHandler:UsageHistory", err)
		return
	}
	if history == nil {
		history = []models.UsageRecord{}
	}
	writeJSON(w, http.StatusOK, models.UsageHistoryResponse{UsageHistory: history})
}

// Pricing отдает активные тарифы. Аутентификация не требуется.
func (h *AccountHandler) Pricing(w http.ResponseWriter, r *http.Request) {
	plans, err := h.billing.Plans(r.Context())
	if err != nil {
		writeServiceError(w, r, "AccountHandler:Pricing", err)
		return
	}
	if plans == nil {
		plans = []models.PricingPlan{}
	}
	writeJSON(w, http.StatusOK, models.PlansResponse{Plans: plans})
}

// Upgrade переводит пользователя на другой тариф.
func (h *AccountHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r, "AccountHandler:Upgrade")
	if !ok {
		return
	}

	var req models.UpgradeRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("[AccountHandler:Upgrade] Неверный запрос")
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	plan, err := h.billing.Upgrade(r.Context(), userID, req.Plan, req.BillingCycle)
	if err != nil {
		writeServiceError(w, r, "AccountHandler:Upgrade", err)
		return
	}
	writeJSON(w, http.StatusOK, models.UpgradeResponse{
		Message: "Successfully upgraded to " + plan.Name,
		Plan:    plan,
	})
}

// Transactions отдает историю транзакций пользователя.
func (h *AccountHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r, "AccountHandler:Transactions")
	if !ok {
		return
	}

	txs, err := h.billing.Transactions(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "AccountHandler:Transactions", err)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, models.TransactionsResponse{Transactions: txs})
}

// AdminStats отдает агрегированную статистику сервиса.
func (h *AccountHandler) AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, "AccountHandler:AdminStats", err)
		return
	}
	writeJSON(w, http.StatusOK, models.AdminStatsResponse{Stats: stats})
}
