package referrals

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nexkarthq/nexkart-backend/api/responses"
	"github.com/nexkarthq/nexkart-backend/api/validators"
	internalreferrals "github.com/nexkarthq/nexkart-backend/internal/referrals"
	pkgerrors "github.com/nexkarthq/nexkart-backend/pkg/errors"
	"github.com/nexkarthq/nexkart-backend/pkg/logger"
)

type issueCodeRequest struct {
	ReferrerID string  `json:"referrer_id" validate:"required,uuid"`
	CampaignID *string `json:"campaign_id" validate:"omitempty,uuid"`
}

type registerRequest struct {
	Code       string `json:"code" validate:"required,min=4,max=32"`
	ReferredID string `json:"referred_id" validate:"required,uuid"`
}

// IssueCode mints a referral code for a referrer, optionally pinned to a
// campaign.
func IssueCode(svc internalreferrals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req issueCodeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		referrerID, err := uuid.Parse(req.ReferrerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "referrer_id must be a uuid"))
			return
		}

		var campaignID *uuid.UUID
		if req.CampaignID != nil {
			parsed, err := uuid.Parse(*req.CampaignID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "campaign_id must be a uuid"))
				return
			}
			campaignID = &parsed
		}

		referral, err := svc.IssueCode(r.Context(), referrerID, campaignID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, referral)
	}
}

// Register binds a newly signed-up customer to an outstanding referral code.
func Register(svc internalreferrals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		referredID, err := uuid.Parse(req.ReferredID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "referred_id must be a uuid"))
			return
		}

		referral, err := svc.Register(r.Context(), req.Code, referredID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, referral)
	}
}
