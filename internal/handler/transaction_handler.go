package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"retail-ledger/internal/domain"
	"retail-ledger/internal/errors"
	"retail-ledger/internal/ledger"
)

type TransactionHandler struct {
	engine *ledger.Engine
}

func NewTransactionHandler(engine *ledger.Engine) *TransactionHandler {
	return &TransactionHandler{
		engine: engine,
	}
}

type TransferRequest struct {
	SourceAccountID      int64  `json:"source_account_id"`
	DestinationAccountID int64  `json:"destination_account_id"`
	Amount               string `json:"amount"`
	Description          string `json:"description,omitempty"`
	IdempotencyKey       string `json:"idempotency_key,omitempty"`
}

type MovementRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

type TransactionResponse struct {
	TransactionID        string  `json:"transaction_id"`
	SourceAccountID      *int64  `json:"source_account_id,omitempty"`
	DestinationAccountID *int64  `json:"destination_account_id,omitempty"`
	Amount               string  `json:"amount"`
	Kind                 string  `json:"kind"`
	Status               string  `json:"status"`
	Description          string  `json:"description,omitempty"`
	IdempotencyKey       *string `json:"idempotency_key,omitempty"`
	CreatedAt            string  `json:"created_at"`
}

func toTransactionResponse(tx *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		TransactionID:        tx.ID.String(),
		SourceAccountID:      tx.SourceAccountID,
		DestinationAccountID: tx.DestinationAccountID,
		Amount:               tx.Amount.StringFixed(2),
		Kind:                 string(tx.Kind),
		Status:               string(tx.Status),
		Description:          tx.Description,
		CreatedAt:            tx.CreatedAt.UTC().Format(time.RFC3339),
	}
	if tx.IdempotencyKey != nil {
		keyStr := tx.IdempotencyKey.String()
		resp.IdempotencyKey = &keyStr
	}
	return resp
}

func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	requester, err := requesterFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidAmount, "invalid amount format").WithDetails(err.Error()))
		return
	}

	var idempotencyKey *uuid.UUID
	if req.IdempotencyKey != "" {
		key, err := uuid.Parse(req.IdempotencyKey)
		if err != nil {
			writeError(w, errors.NewAppError(errors.InvalidInput, "invalid idempotency_key format").WithDetails(err.Error()))
			return
		}
		idempotencyKey = &key
	}

	transaction, err := h.engine.Transfer(r.Context(), &ledger.TransferRequest{
		RequesterID:          requester.ID,
		Privileged:           requester.Privileged,
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               amount,
		Description:          req.Description,
		IdempotencyKey:       idempotencyKey,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionResponse(transaction))
}

func (h *TransactionHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	accountID, req, err := h.parseMovement(r)
	if err != nil {
		writeError(w, err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidAmount, "invalid amount format").WithDetails(err.Error()))
		return
	}

	transaction, err := h.engine.Deposit(r.Context(), &ledger.DepositRequest{
		AccountID:   accountID,
		Amount:      amount,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionResponse(transaction))
}

func (h *TransactionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	requester, err := requesterFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	accountID, req, err := h.parseMovement(r)
	if err != nil {
		writeError(w, err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidAmount, "invalid amount format").WithDetails(err.Error()))
		return
	}

	transaction, err := h.engine.Withdraw(r.Context(), &ledger.WithdrawRequest{
		RequesterID: requester.ID,
		Privileged:  requester.Privileged,
		AccountID:   accountID,
		Amount:      amount,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionResponse(transaction))
}

func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	id, err := uuid.Parse(vars["transaction_id"])
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid transaction ID").WithDetails(err.Error()))
		return
	}

	transaction, err := h.engine.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionResponse(transaction))
}

func (h *TransactionHandler) parseMovement(r *http.Request) (int64, *MovementRequest, error) {
	vars := mux.Vars(r)

	accountID, err := strconv.ParseInt(vars["account_id"], 10, 64)
	if err != nil || accountID <= 0 {
		return 0, nil, errors.NewAppError(errors.InvalidInput, "account ID must be a positive integer")
	}

	var req MovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return 0, nil, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error())
	}

	return accountID, &req, nil
}
