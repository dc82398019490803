package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vay-dev/swift-wallet-be/internal/command"
	"github.com/vay-dev/swift-wallet-be/shared/cqrs"
	"github.com/vay-dev/swift-wallet-be/shared/middleware"
	"github.com/vay-dev/swift-wallet-be/shared/models"
)

// CardCommander defines the saved-card operations used by CardHandler.
type CardCommander interface {
	ChargeSavedCard(ctx context.Context, cmd cqrs.ChargeSavedCardCommand) (*command.PostingResult, error)
	SetDefaultCard(ctx context.Context, cmd cqrs.SetDefaultCardCommand) error
	DeleteCard(ctx context.Context, cmd cqrs.DeleteCardCommand) error
}

type CardHandler struct {
	commands CardCommander
	queries  WalletQuerier
}

type ChargeCardRequest struct {
	CardID string          `json:"cardId" validate:"required,uuid"`
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Email  string          `json:"email" validate:"omitempty,email"`
	PIN    string          `json:"pin" validate:"omitempty,len=4,numeric"`
}

type ListCardsResponse struct {
	Cards []*models.SavedCardView `json:"cards"`
}

func NewCardHandler(commands CardCommander, queries WalletQuerier) *CardHandler {
	return &CardHandler{commands: commands, queries: queries}
}

func (h *CardHandler) ListCards(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	cards, err := h.queries.ListSavedCards(c.Request.Context(), cqrs.ListSavedCardsQuery{UserID: userID})
	if err != nil {
		respondError(c, err, "Failed to list cards")
		return
	}
	c.JSON(http.StatusOK, ListCardsResponse{Cards: cards})
}

func (h *CardHandler) ChargeCard(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req ChargeCardRequest
	if !bindAndValidate(c, &req) {
		return
	}
	email := middleware.GetEmail(c)
	if email == "" {
		email = req.Email
	}

	res, err := h.commands.ChargeSavedCard(c.Request.Context(), cqrs.ChargeSavedCardCommand{
		UserID: userID,
		Email:  email,
		CardID: uuid.MustParse(req.CardID),
		Amount: req.Amount,
		PIN:    req.PIN,
		Audit:  auditFrom(c),
	})
	if err != nil {
		respondError(c, err, "Failed to charge card")
		return
	}

	c.JSON(http.StatusCreated, PostingResponse{
		Message:     "Wallet funded successfully",
		Transaction: models.NewTransactionView(res.Transaction),
		Balance:     models.FormatMoney(res.Wallet.Balance),
	})
}

func (h *CardHandler) SetDefaultCard(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	cardID, ok := cardIDParam(c)
	if !ok {
		return
	}

	if err := h.commands.SetDefaultCard(c.Request.Context(), cqrs.SetDefaultCardCommand{UserID: userID, CardID: cardID}); err != nil {
		respondError(c, err, "Failed to update card")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Default card updated"})
}

func (h *CardHandler) DeleteCard(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	cardID, ok := cardIDParam(c)
	if !ok {
		return
	}

	if err := h.commands.DeleteCard(c.Request.Context(), cqrs.DeleteCardCommand{UserID: userID, CardID: cardID}); err != nil {
		respondError(c, err, "Failed to remove card")
		return
	}
	c.Status(http.StatusNoContent)
}

func cardIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("cardId"))
	if err != nil {
		middleware.RespondWithError(c, http.StatusNotFound, "Card not found")
		return uuid.Nil, false
	}
	return id, true
}
