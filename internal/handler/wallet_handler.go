package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vay-dev/swift-wallet-be/shared/cqrs"
	"github.com/vay-dev/swift-wallet-be/shared/middleware"
	"github.com/vay-dev/swift-wallet-be/shared/models"
)

// WalletQuerier defines the read-side operations used by WalletHandler and
// CardHandler.
type WalletQuerier interface {
	GetWallet(ctx context.Context, q cqrs.GetWalletQuery) (*models.WalletView, error)
	Dashboard(ctx context.Context, q cqrs.GetDashboardQuery) (*models.DashboardView, error)
	Analytics(ctx context.Context, q cqrs.GetAnalyticsQuery) (*models.AnalyticsView, error)
	ListBeneficiaries(ctx context.Context, q cqrs.ListBeneficiariesQuery) ([]*models.BeneficiaryView, error)
	ListSavedCards(ctx context.Context, q cqrs.ListSavedCardsQuery) ([]*models.SavedCardView, error)
}

type BeneficiaryCommander interface {
	AddBeneficiary(ctx context.Context, cmd cqrs.AddBeneficiaryCommand) (*models.BeneficiaryContact, error)
}

type PINCommander interface {
	SetPIN(ctx context.Context, cmd cqrs.SetPINCommand) error
}

// WalletHandler serves the wallet, dashboard, analytics, beneficiary and
// PIN endpoints.
type WalletHandler struct {
	beneficiaries BeneficiaryCommander
	pins          PINCommander
	queries       WalletQuerier
}

type AddBeneficiaryRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,min=7,max=20"`
	Nickname    string `json:"nickname" validate:"max=100"`
	IsFavorite  bool   `json:"isFavorite"`
}

type SetPINRequest struct {
	PIN        string `json:"pin" validate:"required,len=4,numeric"`
	ConfirmPIN string `json:"confirmPin" validate:"required"`
}

type ListBeneficiariesResponse struct {
	Beneficiaries []*models.BeneficiaryView `json:"beneficiaries"`
}

func NewWalletHandler(beneficiaries BeneficiaryCommander, pins PINCommander, queries WalletQuerier) *WalletHandler {
	return &WalletHandler{beneficiaries: beneficiaries, pins: pins, queries: queries}
}

func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	view, err := h.queries.GetWallet(c.Request.Context(), cqrs.GetWalletQuery{UserID: userID})
	if err != nil {
		respondError(c, err, "Failed to get wallet")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *WalletHandler) Dashboard(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	view, err := h.queries.Dashboard(c.Request.Context(), cqrs.GetDashboardQuery{UserID: userID})
	if err != nil {
		respondError(c, err, "Failed to load dashboard")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *WalletHandler) Analytics(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	days := 0
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			middleware.RespondWithError(c, http.StatusBadRequest, "days must be a number")
			return
		}
		days = n
	}

	view, err := h.queries.Analytics(c.Request.Context(), cqrs.GetAnalyticsQuery{UserID: userID, Days: days})
	if err != nil {
		respondError(c, err, "Failed to load analytics")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *WalletHandler) ListBeneficiaries(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	favorites, _ := strconv.ParseBool(c.Query("favorites"))

	views, err := h.queries.ListBeneficiaries(c.Request.Context(), cqrs.ListBeneficiariesQuery{
		UserID:        userID,
		FavoritesOnly: favorites,
	})
	if err != nil {
		respondError(c, err, "Failed to list beneficiaries")
		return
	}
	c.JSON(http.StatusOK, ListBeneficiariesResponse{Beneficiaries: views})
}

func (h *WalletHandler) AddBeneficiary(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req AddBeneficiaryRequest
	if !bindAndValidate(c, &req) {
		return
	}

	contact, err := h.beneficiaries.AddBeneficiary(c.Request.Context(), cqrs.AddBeneficiaryCommand{
		UserID:      userID,
		PhoneNumber: req.PhoneNumber,
		Nickname:    req.Nickname,
		IsFavorite:  req.IsFavorite,
	})
	if err != nil {
		respondError(c, err, "Failed to save beneficiary")
		return
	}
	c.JSON(http.StatusCreated, contact)
}

func (h *WalletHandler) SetPIN(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req SetPINRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.pins.SetPIN(c.Request.Context(), cqrs.SetPINCommand{
		UserID:     userID,
		PIN:        req.PIN,
		ConfirmPIN: req.ConfirmPIN,
	}); err != nil {
		respondError(c, err, "Failed to set transaction PIN")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transaction PIN set successfully"})
}
