package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vay-dev/swift-wallet-be/shared/cqrs"
	"github.com/vay-dev/swift-wallet-be/shared/models"
)

type IdentityRegistrar interface {
	RegisterIdentity(ctx context.Context, cmd cqrs.RegisterIdentityCommand) (*models.Identity, *models.Wallet, error)
}

type WalletAdministrator interface {
	SetWalletStatus(ctx context.Context, cmd cqrs.SetWalletStatusCommand) (*models.Wallet, error)
}

// InternalHandler serves the service-to-service endpoints used by the
// identity system. Routes are guarded by the service token.
type InternalHandler struct {
	identities IdentityRegistrar
	wallets    WalletAdministrator
}

type RegisterIdentityRequest struct {
	UserID        string `json:"userId" validate:"max=64"`
	PhoneNumber   string `json:"phoneNumber" validate:"required,min=7,max=20"`
	AccountNumber string `json:"accountNumber" validate:"omitempty,len=10,numeric"`
	Email         string `json:"email" validate:"omitempty,email"`
	FullName      string `json:"fullName" validate:"max=255"`
}

type SetWalletStatusRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
	IsFrozen *bool `json:"isFrozen" validate:"required"`
}

type RegisterIdentityResponse struct {
	Identity *models.Identity   `json:"identity"`
	Wallet   *models.WalletView `json:"wallet"`
}

func NewInternalHandler(identities IdentityRegistrar, wallets WalletAdministrator) *InternalHandler {
	return &InternalHandler{identities: identities, wallets: wallets}
}

func (h *InternalHandler) RegisterIdentity(c *gin.Context) {
	var req RegisterIdentityRequest
	if !bindAndValidate(c, &req) {
		return
	}

	identity, wallet, err := h.identities.RegisterIdentity(c.Request.Context(), cqrs.RegisterIdentityCommand{
		UserID:        req.UserID,
		PhoneNumber:   req.PhoneNumber,
		AccountNumber: req.AccountNumber,
		Email:         req.Email,
		FullName:      req.FullName,
	})
	if err != nil {
		respondError(c, err, "Failed to register user")
		return
	}

	c.JSON(http.StatusCreated, RegisterIdentityResponse{
		Identity: identity,
		Wallet:   models.NewWalletView(wallet),
	})
}

func (h *InternalHandler) SetWalletStatus(c *gin.Context) {
	var req SetWalletStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	wallet, err := h.wallets.SetWalletStatus(c.Request.Context(), cqrs.SetWalletStatusCommand{
		UserID:   c.Param("userId"),
		IsActive: *req.IsActive,
		IsFrozen: *req.IsFrozen,
	})
	if err != nil {
		respondError(c, err, "Failed to update wallet")
		return
	}
	c.JSON(http.StatusOK, models.NewWalletView(wallet))
}
