package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/pay2mail/backend/internal/middleware"
	"github.com/pay2mail/backend/internal/models"
	"github.com/pay2mail/backend/internal/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// BalanceStore is the read side of the ledger.
type BalanceStore interface {
	GetBalance(ctx context.Context, userID string) (int64, error)
	EnsureAccount(ctx context.Context, userID string) error
	ListTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error)
}

// BalanceAdjuster applies operator corrections.
type BalanceAdjuster interface {
	Adjust(ctx context.Context, userID, txnID string, amount int64) (services.PaymentOutcome, error)
}

type BalanceHandler struct {
	store     BalanceStore
	adjuster  BalanceAdjuster
	validator *services.ValidationHelper
	currency  string
	logger    *zap.Logger
}

func NewBalanceHandler(store BalanceStore, adjuster BalanceAdjuster, currency string, logger *zap.Logger) *BalanceHandler {
	return &BalanceHandler{
		store:     store,
		adjuster:  adjuster,
		validator: services.NewValidationHelper(),
		currency:  currency,
		logger:    logger,
	}
}

// BalanceResponse carries the balance in minor units and formatted.
type BalanceResponse struct {
	UserID    string `json:"userId"`
	Balance   int64  `json:"balance"`
	Formatted string `json:"formatted"`
	Currency  string `json:"currency"`
}

// FormatMinorUnits renders 1234 as "12.34".
func FormatMinorUnits(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}

func (h *BalanceHandler) balanceResponse(userID string, balance int64) BalanceResponse {
	return BalanceResponse{
		UserID:    userID,
		Balance:   balance,
		Formatted: FormatMinorUnits(balance),
		Currency:  h.currency,
	}
}

// GetBalance returns the caller's balance
// @Summary Get balance
// @Tags Balance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} BalanceResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /balance [get]
func (h *BalanceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	balance, err := h.store.GetBalance(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to read balance", zap.String("user", userID), zap.Error(err))
		services.SendErrorResponse(w, "Failed to read balance", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, h.balanceResponse(userID, balance))
}

// ListTransactions returns the caller's ledger, newest first
// @Summary Balance history
// @Tags Balance
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum entries (default 50, max 500)"
// @Success 200 {array} models.Transaction
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /balance/transactions [get]
func (h *BalanceHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			services.SendErrorResponse(w, "limit must be a positive integer", http.StatusBadRequest, nil)
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	transactions, err := h.store.ListTransactions(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("Failed to list transactions", zap.String("user", userID), zap.Error(err))
		services.SendErrorResponse(w, "Failed to list transactions", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, transactions)
}

// CreateAccount opens a zero balance for the caller
// @Summary Create account
// @Description Idempotent; an existing balance is returned unchanged.
// @Tags Balance
// @Produce json
// @Security BearerAuth
// @Success 201 {object} BalanceResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /accounts [post]
func (h *BalanceHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	if err := h.store.EnsureAccount(r.Context(), userID); err != nil {
		h.logger.Error("Failed to create account", zap.String("user", userID), zap.Error(err))
		services.SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	balance, err := h.store.GetBalance(r.Context(), userID)
	if err != nil {
		services.SendErrorResponse(w, "Failed to read balance", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusCreated, h.balanceResponse(userID, balance))
}

type adjustmentRequest struct {
	UserID string `json:"userId" validate:"required,email"`
	TxnID  string `json:"txnId" validate:"required,max=255"`
	Amount int64  `json:"amount" validate:"required"`
}

// CreateAdjustment credits or debits a user as an internal adjustment
// @Summary Balance adjustment
// @Description Admin only. Replaying the same txnId changes nothing.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body adjustmentRequest true "Adjustment"
// @Success 200 {object} services.PaymentOutcome
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /admin/adjustments [post]
func (h *BalanceHandler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	outcome, err := h.adjuster.Adjust(r.Context(), req.UserID, req.TxnID, req.Amount)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrInsufficientBalance):
		services.SendErrorResponse(w, "Adjustment would make the balance negative", http.StatusConflict, nil)
		return
	case isValidationError(err):
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	default:
		h.logger.Error("Adjustment failed", zap.String("user", req.UserID), zap.String("txn", req.TxnID), zap.Error(err))
		services.SendErrorResponse(w, "Adjustment failed", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}
