package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/stormgate/auth-api/internal/domain/model"
)

// ApprovalServiceInterface defines the interface for approval workflow operations.
type ApprovalServiceInterface interface {
	ApproveByToken(ctx context.Context, token string) (*model.User, error)
	DenyByToken(ctx context.Context, token string) (*model.User, error)
	ApproveByID(ctx context.Context, userID string) (*model.User, error)
	DenyByID(ctx context.Context, userID string) (*model.User, error)
	PendingUsers(ctx context.Context, limit, offset int, filter string) (any, error)
}

// ApprovalHandlers provides HTTP handlers for the account approval
// workflow.
type ApprovalHandlers struct {
	Svc    ApprovalServiceInterface
	Logger *slog.Logger
}

// ApproveByToken approves an account from an emailed approval link.
// GET /auth/approve?token=<token>.
func (h *ApprovalHandlers) ApproveByToken(w http.ResponseWriter, r *http.Request) {
	h.decideByToken(w, r, h.Svc.ApproveByToken)
}

// DenyByToken denies an account from an emailed approval link.
// GET /auth/deny?token=<token>.
func (h *ApprovalHandlers) DenyByToken(w http.ResponseWriter, r *http.Request) {
	h.decideByToken(w, r, h.Svc.DenyByToken)
}

func (h *ApprovalHandlers) decideByToken(
	w http.ResponseWriter,
	r *http.Request,
	decide func(context.Context, string) (*model.User, error),
) {
	token := r.URL.Query().Get("token")
	if token == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_token",
			Err:     errors.New("approval token is required"),
		})
		return
	}

	user, err := decide(r.Context(), token)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, decisionView(user))
}

type decideRequest struct {
	UserID string `json:"userId"`
}

// Approve approves an account directly from the admin console.
// POST /auth/manual-approve.
func (h *ApprovalHandlers) Approve(w http.ResponseWriter, r *http.Request) {
	h.decideByID(w, r, h.Svc.ApproveByID)
}

// Deny denies an account directly from the admin console.
// POST /auth/manual-deny.
func (h *ApprovalHandlers) Deny(w http.ResponseWriter, r *http.Request) {
	h.decideByID(w, r, h.Svc.DenyByID)
}

func (h *ApprovalHandlers) decideByID(
	w http.ResponseWriter,
	r *http.Request,
	decide func(context.Context, string) (*model.User, error),
) {
	var req decideRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_user_id",
			Err:     errors.New("userId is required"),
		})
		return
	}

	user, err := decide(r.Context(), req.UserID)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, decisionView(user))
}

// PendingUsers lists accounts awaiting review.
// GET /auth/pending-users?limit=&offset=&filter=.
func (h *ApprovalHandlers) PendingUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := ParseLimitOffset(r)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	result, svcErr := h.Svc.PendingUsers(r.Context(), limit, offset, r.URL.Query().Get("filter"))
	if svcErr != nil {
		WriteAppError(w, svcErr)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"users": result})
}

func decisionView(user *model.User) map[string]any {
	return map[string]any{
		"id":     user.ID,
		"email":  user.Email,
		"status": user.Status,
	}
}
