package ledger

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexkarthq/nexkart-backend/api/middleware"
	"github.com/nexkarthq/nexkart-backend/api/responses"
	"github.com/nexkarthq/nexkart-backend/api/validators"
	internalledger "github.com/nexkarthq/nexkart-backend/internal/ledger"
	"github.com/nexkarthq/nexkart-backend/pkg/db/models"
	"github.com/nexkarthq/nexkart-backend/pkg/enums"
	pkgerrors "github.com/nexkarthq/nexkart-backend/pkg/errors"
	"github.com/nexkarthq/nexkart-backend/pkg/logger"
)

type postingRequest struct {
	Amount         string `json:"amount" validate:"required"`
	Source         string `json:"source" validate:"required"`
	Description    string `json:"description" validate:"omitempty,max=500"`
	ReferenceID    string `json:"reference_id" validate:"omitempty,max=255"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=255"`
}

func (req postingRequest) toInput(customerID uuid.UUID, kind enums.AccountKind) (internalledger.PostingInput, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return internalledger.PostingInput{}, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a decimal number").
			WithDetails(map[string]string{"amount": "must be a decimal number"})
	}
	source, err := enums.ParseEntrySource(req.Source)
	if err != nil {
		return internalledger.PostingInput{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown entry source").
			WithDetails(map[string]string{"source": err.Error()})
	}
	return internalledger.PostingInput{
		Account:        internalledger.AccountRef{CustomerID: customerID, Kind: kind},
		Amount:         amount,
		Source:         source,
		Description:    req.Description,
		ReferenceID:    req.ReferenceID,
		IdempotencyKey: req.IdempotencyKey,
	}, nil
}

// Balance returns the current account snapshot for one customer ledger.
func Balance(svc internalledger.Service, kind enums.AccountKind, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := validators.ParseUUIDParam(chi.URLParam(r, "customerID"), "customerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.Balance(r.Context(), internalledger.AccountRef{CustomerID: customerID, Kind: kind})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, account)
	}
}

// History returns the most recent entries for one customer ledger.
func History(svc internalledger.Service, kind enums.AccountKind, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := validators.ParseUUIDParam(chi.URLParam(r, "customerID"), "customerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.History(r.Context(), internalledger.AccountRef{CustomerID: customerID, Kind: kind}, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

// Credit adds funds or points to a customer ledger.
func Credit(svc internalledger.Service, kind enums.AccountKind, logg *logger.Logger) http.HandlerFunc {
	return post(svc.Credit, kind, logg)
}

// Debit removes funds or points from a customer ledger.
func Debit(svc internalledger.Service, kind enums.AccountKind, logg *logger.Logger) http.HandlerFunc {
	return post(svc.Debit, kind, logg)
}

func post(apply func(ctx context.Context, in internalledger.PostingInput) (*models.LedgerEntry, error), kind enums.AccountKind, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := validators.ParseUUIDParam(chi.URLParam(r, "customerID"), "customerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req postingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := req.toInput(customerID, kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithField(r.Context(), "actor", middleware.Actor(r.Context()))
		entry, err := apply(ctx, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}
