package handlers

import (
	"errors"
	"net/http"

	"challenge-market/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// respondError maps engine errors to a stable code and HTTP status.
// Every failure surfaces as {"error": <message>, "code": <code>}.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"

	switch {
	case errors.Is(err, services.ErrChallengeNotFound),
		errors.Is(err, services.ErrOptionNotFound),
		errors.Is(err, services.ErrBetNotFound),
		errors.Is(err, services.ErrDisputeNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrChallengeNotOpen):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, services.ErrDuplicateDispute),
		errors.Is(err, services.ErrDisputeResolved):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, services.ErrUnauthorized),
		errors.Is(err, services.ErrNoStanding):
		status, code = http.StatusForbidden, "unauthorized"
	case errors.Is(err, services.ErrCreatorNotAllowed):
		status, code = http.StatusForbidden, "creator_not_allowed"
	case errors.Is(err, services.ErrStakeOutOfRange):
		status, code = http.StatusBadRequest, "stake_out_of_range"
	case errors.Is(err, services.ErrValidation):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, services.ErrInsufficientFunds):
		status, code = http.StatusPaymentRequired, "insufficient_funds"
	}

	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
