package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"retail-ledger/internal/domain"
	"retail-ledger/internal/errors"
	"retail-ledger/internal/ledger"
	"retail-ledger/internal/service"
)

type AccountHandler struct {
	accountService *service.AccountService
	engine         *ledger.Engine
}

func NewAccountHandler(accountService *service.AccountService, engine *ledger.Engine) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		engine:         engine,
	}
}

type CreateAccountRequest struct {
	OwnerID  int64  `json:"owner_id"`
	Kind     string `json:"kind"`
	Currency string `json:"currency"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type AccountResponse struct {
	AccountID int64  `json:"account_id"`
	OwnerID   int64  `json:"owner_id"`
	Number    string `json:"account_number"`
	Kind      string `json:"kind"`
	Balance   string `json:"balance"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func toAccountResponse(account *domain.Account) AccountResponse {
	return AccountResponse{
		AccountID: account.ID,
		OwnerID:   account.OwnerID,
		Number:    account.Number,
		Kind:      string(account.Kind),
		Balance:   account.Balance.StringFixed(2),
		Currency:  account.Currency,
		Status:    string(account.Status),
		CreatedAt: account.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	account, err := h.accountService.CreateAccount(r.Context(), req.OwnerID, domain.AccountKind(req.Kind), req.Currency)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	account, err := h.accountService.GetAccount(r.Context(), vars["account_id"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *AccountHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	account, err := h.accountService.GetAccount(r.Context(), vars["account_id"])
	if err != nil {
		writeError(w, err)
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	account, err = h.accountService.UpdateStatus(r.Context(), account.ID, domain.AccountStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

type StatementResponse struct {
	Account AccountResponse       `json:"account"`
	Entries []TransactionResponse `json:"entries"`
}

// Statement serves the read-only reporting interface: balance plus the
// ordered ledger entries within the requested date range.
func (h *AccountHandler) Statement(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	account, err := h.accountService.GetAccount(r.Context(), vars["account_id"])
	if err != nil {
		writeError(w, err)
		return
	}

	from, to, err := parseDateRange(r)
	if err != nil {
		writeError(w, err)
		return
	}

	statement, err := h.engine.Statement(r.Context(), account.ID, from, to)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := StatementResponse{
		Account: toAccountResponse(statement.Account),
		Entries: make([]TransactionResponse, 0, len(statement.Entries)),
	}
	for i := range statement.Entries {
		resp.Entries = append(resp.Entries, toTransactionResponse(&statement.Entries[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Now()

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, errors.NewAppError(errors.InvalidInput, "from must be an RFC 3339 timestamp").WithDetails(err.Error())
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, errors.NewAppError(errors.InvalidInput, "to must be an RFC 3339 timestamp").WithDetails(err.Error())
		}
		to = parsed
	}

	return from, to, nil
}
