package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/podcraft/backend/internal/account"
	"github.com/podcraft/backend/internal/admin"
	"github.com/podcraft/backend/internal/billing"
	"github.com/podcraft/backend/internal/project"
	"github.com/podcraft/backend/pkg/ledger"
)

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// respondError maps domain errors onto HTTP statuses. Anything unmapped is a
// logged 500 with a generic body.
func (server *Server) respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, account.ErrInvalidCredentials),
		errors.Is(err, account.ErrInvalidToken),
		errors.Is(err, account.ErrTokenRevoked),
		errors.Is(err, account.ErrTokenExpired):
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", err.Error()))
	case errors.Is(err, account.ErrEmailTaken):
		ctx.JSON(http.StatusConflict, errorResponse("email_taken", err.Error()))
	case errors.Is(err, project.ErrProjectGenerating):
		ctx.JSON(http.StatusConflict, errorResponse("generation_in_progress", err.Error()))
	case errors.Is(err, ledger.ErrInsufficientCredits):
		ctx.JSON(http.StatusPaymentRequired, errorResponse("insufficient_credits", "not enough credits"))
	case errors.Is(err, account.ErrUserNotFound),
		errors.Is(err, project.ErrProjectNotFound),
		errors.Is(err, billing.ErrPurchaseNotFound),
		errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	case errors.Is(err, account.ErrInvalidEmail),
		errors.Is(err, account.ErrWeakPassword),
		errors.Is(err, account.ErrResetTokenInvalid),
		errors.Is(err, project.ErrInvalidDraft),
		errors.Is(err, project.ErrProjectLimit),
		errors.Is(err, project.ErrNotGeneratable),
		errors.Is(err, billing.ErrInvalidPurchase),
		errors.Is(err, admin.ErrInvalidAdjustment),
		errors.Is(err, ledger.ErrInvalidTransaction),
		errors.Is(err, ledger.ErrInvalidTransition),
		errors.Is(err, ledger.ErrInvalidAccountID),
		errors.Is(err, ledger.ErrInvalidTransactionID):
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_request", err.Error()))
	case errors.Is(err, project.ErrGenerationFailed):
		ctx.JSON(http.StatusUnprocessableEntity, errorResponse("generation_failed", err.Error()))
	default:
		server.logger.Error("request failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "internal server error"))
	}
}

type userPayload struct {
	UserID           string `json:"user_id"`
	Email            string `json:"email"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	IsAdmin          bool   `json:"is_admin"`
	CreatedUnixUTC   int64  `json:"created_unix_utc"`
	LastLoginUnixUTC int64  `json:"last_login_unix_utc,omitempty"`
}

func mapUserPayload(user account.User) userPayload {
	return userPayload{
		UserID:           user.UserID,
		Email:            user.Email,
		FirstName:        user.FirstName,
		LastName:         user.LastName,
		IsAdmin:          user.IsAdmin,
		CreatedUnixUTC:   user.CreatedUnixUTC,
		LastLoginUnixUTC: user.LastLoginUnixUTC,
	}
}

type projectPayload struct {
	ProjectID        string `json:"project_id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Voice            string `json:"voice"`
	Status           string `json:"status"`
	ScriptText       string `json:"script_text,omitempty"`
	AudioURL         string `json:"audio_url,omitempty"`
	ImageURL         string `json:"image_url,omitempty"`
	VideoURL         string `json:"video_url,omitempty"`
	LastError        string `json:"last_error,omitempty"`
	TotalCreditsUsed int64  `json:"total_credits_used"`
	CreatedUnixUTC   int64  `json:"created_unix_utc"`
	UpdatedUnixUTC   int64  `json:"updated_unix_utc"`
}

func mapProjectPayload(source project.Project) projectPayload {
	return projectPayload{
		ProjectID:        source.ProjectID,
		Title:            source.Title,
		Description:      source.Description,
		Voice:            source.Voice,
		Status:           string(source.Status),
		ScriptText:       source.ScriptText,
		AudioURL:         source.AudioURL,
		ImageURL:         source.ImageURL,
		VideoURL:         source.VideoURL,
		LastError:        source.LastError,
		TotalCreditsUsed: source.TotalCreditsUsed,
		CreatedUnixUTC:   source.CreatedUnixUTC,
		UpdatedUnixUTC:   source.UpdatedUnixUTC,
	}
}

type transactionPayload struct {
	TransactionID  string          `json:"transaction_id"`
	AmountCredits  int64           `json:"amount_credits"`
	BalanceAfter   int64           `json:"balance_after"`
	Kind           string          `json:"kind"`
	Label          string          `json:"label,omitempty"`
	Status         string          `json:"status"`
	ExternalRef    string          `json:"external_ref,omitempty"`
	Metadata       json.RawMessage `json:"metadata"`
	CreatedUnixUTC int64           `json:"created_unix_utc"`
}

func mapTransactionPayload(transaction ledger.Transaction) transactionPayload {
	return transactionPayload{
		TransactionID:  transaction.TransactionID.String(),
		AmountCredits:  transaction.Amount.Int64(),
		BalanceAfter:   transaction.BalanceAfter,
		Kind:           transaction.Kind.String(),
		Label:          transaction.Label.String(),
		Status:         transaction.Status.String(),
		ExternalRef:    transaction.ExternalRef,
		Metadata:       json.RawMessage(transaction.Metadata.String()),
		CreatedUnixUTC: transaction.CreatedUnixUTC,
	}
}

type balancePayload struct {
	CurrentCredits   int64 `json:"current_credits"`
	TotalEarned      int64 `json:"total_earned"`
	TotalSpent       int64 `json:"total_spent"`
	TransactionCount int64 `json:"transaction_count"`
}
