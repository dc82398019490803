package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vay-dev/swift-wallet-be/shared/middleware"
	"github.com/vay-dev/swift-wallet-be/shared/models"
)

type errorMapping struct {
	err     error
	status  int
	message string
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{models.ErrInsufficientFunds, http.StatusUnprocessableEntity, "Insufficient funds"},
	{models.ErrWalletFrozen, http.StatusUnprocessableEntity, "Your wallet is frozen. Please contact support"},
	{models.ErrWalletInactive, http.StatusUnprocessableEntity, "Your wallet is inactive. Please contact support"},
	{models.ErrRecipientWalletInactive, http.StatusUnprocessableEntity, "Recipient wallet is not available"},
	{models.ErrSelfTransfer, http.StatusUnprocessableEntity, "You cannot send money to yourself"},
	{models.ErrChargeDeclined, http.StatusUnprocessableEntity, "Card charge was declined"},
	{models.ErrTransactionNotPending, http.StatusUnprocessableEntity, "Transaction has already been processed"},
	{models.ErrPINNotSet, http.StatusUnprocessableEntity, "Please set a transaction PIN first"},
	{models.ErrInvalidPIN, http.StatusUnauthorized, "Invalid transaction PIN"},
	{models.ErrPINLocked, http.StatusForbidden, "Transaction PIN is locked. Try again later"},
	{models.ErrForbidden, http.StatusForbidden, "You do not have access to this resource"},
	{models.ErrWalletNotFound, http.StatusNotFound, "Wallet not found"},
	{models.ErrRecipientNotFound, http.StatusNotFound, "Recipient not found"},
	{models.ErrUnknownReference, http.StatusNotFound, "Transaction not found"},
	{models.ErrTransactionNotFound, http.StatusNotFound, "Transaction not found"},
	{models.ErrCardNotFound, http.StatusNotFound, "Card not found"},
	{models.ErrIdentityNotFound, http.StatusNotFound, "User not found"},
	{models.ErrIdentityExists, http.StatusConflict, "User already exists"},
	{models.ErrAmountMismatch, http.StatusBadRequest, "Payment amount could not be verified"},
	{models.ErrGatewayUnavailable, http.StatusBadGateway, "Payment provider is unavailable. Please try again"},
}

// respondError writes the HTTP response for a service error. Unknown errors
// become a 500 with fallback as the message.
func respondError(c *gin.Context, err error, fallback string) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		middleware.RespondWithValidationError(c, []middleware.ValidationError{{
			Field:   verr.Field,
			Message: verr.Message,
			Type:    "invalid",
		}})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				_ = c.Error(err)
			}
			middleware.RespondWithError(c, m.status, m.message)
			return
		}
	}

	_ = c.Error(err)
	middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
}

func auditFrom(c *gin.Context) models.Audit {
	return models.Audit{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// bindAndValidate decodes the JSON body into req and runs struct validation.
// It writes the 400 response itself and reports false on failure.
func bindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return false
	}
	return true
}
