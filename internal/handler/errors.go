package handler

import (
	"errors"
	"net/http"
	"strings"

	"tipwall/internal/fees"
	"tipwall/internal/repository"
	"tipwall/internal/service"
	"tipwall/pkg/solana"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// bindError renders a request binding failure. Validation failures list the
// offending fields by their JSON name.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "telegram":
		return "must be a Telegram username"
	default:
		return "is invalid"
	}
}

// statusFor maps service and repository errors to an HTTP status and the
// message shown to the client.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrTipNotFound):
		return http.StatusNotFound, "Tip not found"
	case errors.Is(err, service.ErrCreatorNotFound), errors.Is(err, repository.ErrUserNotFound):
		return http.StatusNotFound, "Creator not found"
	case errors.Is(err, service.ErrNotOwner):
		return http.StatusForbidden, "Not your tip"
	case errors.Is(err, service.ErrNotFunded):
		return http.StatusBadRequest, "Not funded"
	case errors.Is(err, service.ErrExpired):
		return http.StatusBadRequest, "Expired"
	case errors.Is(err, service.ErrCreatorWalletMissing):
		return http.StatusBadRequest, "Creator has not set a payout wallet"
	case errors.Is(err, service.ErrInvalidWallet), errors.Is(err, solana.ErrInvalidAddress):
		return http.StatusBadRequest, "Invalid wallet address"
	case errors.Is(err, service.ErrBelowPrice),
		errors.Is(err, fees.ErrNonPositiveAmount),
		errors.Is(err, fees.ErrFractionalLamports),
		errors.Is(err, fees.ErrAmountTooLarge):
		return http.StatusBadRequest, capitalize(err.Error())
	case errors.Is(err, repository.ErrStatusConflict):
		return http.StatusConflict, "Tip is already being settled"
	case errors.Is(err, service.ErrSettlementPending):
		return http.StatusAccepted, "Settlement submitted, awaiting confirmation"
	case errors.Is(err, service.ErrUploadsDisabled):
		return http.StatusServiceUnavailable, "Uploads not configured"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func respondError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	c.JSON(status, gin.H{"error": msg})
}
