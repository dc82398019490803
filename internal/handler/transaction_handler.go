package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/vay-dev/swift-wallet-be/internal/command"
	"github.com/vay-dev/swift-wallet-be/shared/cqrs"
	"github.com/vay-dev/swift-wallet-be/shared/middleware"
	"github.com/vay-dev/swift-wallet-be/shared/models"
)

// LedgerCommander defines the balance-moving operations used by
// TransactionHandler.
type LedgerCommander interface {
	Transfer(ctx context.Context, cmd cqrs.TransferCommand) (*command.TransferResult, error)
	PayBill(ctx context.Context, cmd cqrs.BillPaymentCommand) (*command.PostingResult, error)
}

// TopUpCommander defines the provider-backed funding operations.
type TopUpCommander interface {
	InitiateTopUp(ctx context.Context, cmd cqrs.InitiateTopUpCommand) (*command.TopUpInitiation, error)
	Reconcile(ctx context.Context, cmd cqrs.ReconcileCommand) (*command.ReconcileOutcome, error)
}

// TransactionQuerier defines the read-side operations used by TransactionHandler.
type TransactionQuerier interface {
	GetTransaction(ctx context.Context, q cqrs.GetTransactionQuery) (*models.TransactionView, error)
	ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) (*models.TransactionPage, error)
}

type TransactionHandler struct {
	ledger  LedgerCommander
	topUps  TopUpCommander
	queries TransactionQuerier
}

type SendMoneyRequest struct {
	RecipientPhone   string          `json:"recipientPhone" validate:"required_without=RecipientAccount,max=20"`
	RecipientAccount string          `json:"recipientAccount" validate:"omitempty,len=10,numeric"`
	Amount           decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Narration        string          `json:"narration" validate:"max=255"`
	PIN              string          `json:"pin" validate:"omitempty,len=4,numeric"`
}

type AddMoneyRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Email  string          `json:"email" validate:"omitempty,email"`
}

type BillPaymentRequest struct {
	BillType        string          `json:"billType" validate:"required,oneof=airtime data electricity cable_tv"`
	Amount          decimal.Decimal `json:"amount" validate:"required,gt=0"`
	PhoneNumber     string          `json:"phoneNumber" validate:"max=20"`
	MeterNumber     string          `json:"meterNumber" validate:"max=30"`
	SmartcardNumber string          `json:"smartcardNumber" validate:"max=30"`
	PIN             string          `json:"pin" validate:"omitempty,len=4,numeric"`
}

type RecipientSummary struct {
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber"`
}

type TransferResponse struct {
	Message     string                  `json:"message"`
	Transaction *models.TransactionView `json:"transaction"`
	Recipient   RecipientSummary        `json:"recipient"`
}

type AddMoneyResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorizationUrl"`
	Amount           string `json:"amount"`
	Status           string `json:"status"`
}

type VerifyPaymentResponse struct {
	Reference        string                  `json:"reference"`
	Status           models.Status           `json:"status"`
	AlreadyProcessed bool                    `json:"alreadyProcessed"`
	Transaction      *models.TransactionView `json:"transaction,omitempty"`
}

type PostingResponse struct {
	Message     string                  `json:"message"`
	Transaction *models.TransactionView `json:"transaction"`
	Balance     string                  `json:"balance"`
}

func NewTransactionHandler(ledger LedgerCommander, topUps TopUpCommander, queries TransactionQuerier) *TransactionHandler {
	return &TransactionHandler{ledger: ledger, topUps: topUps, queries: queries}
}

func (h *TransactionHandler) SendMoney(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req SendMoneyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	res, err := h.ledger.Transfer(c.Request.Context(), cqrs.TransferCommand{
		SenderUserID:     userID,
		RecipientPhone:   req.RecipientPhone,
		RecipientAccount: req.RecipientAccount,
		Amount:           req.Amount,
		Narration:        req.Narration,
		PIN:              req.PIN,
		Audit:            auditFrom(c),
	})
	if err != nil {
		respondError(c, err, "Failed to send money")
		return
	}

	c.JSON(http.StatusCreated, TransferResponse{
		Message:     "Transfer successful",
		Transaction: models.NewTransactionView(res.Debit),
		Recipient: RecipientSummary{
			FullName:    res.Recipient.FullName,
			PhoneNumber: res.Recipient.PhoneNumber,
		},
	})
}

func (h *TransactionHandler) AddMoney(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req AddMoneyRequest
	if !bindAndValidate(c, &req) {
		return
	}
	email := middleware.GetEmail(c)
	if email == "" {
		email = req.Email
	}
	if email == "" {
		middleware.RespondWithError(c, http.StatusBadRequest, "An email address is required for card payments")
		return
	}

	res, err := h.topUps.InitiateTopUp(c.Request.Context(), cqrs.InitiateTopUpCommand{
		UserID: userID,
		Email:  email,
		Amount: req.Amount,
		Audit:  auditFrom(c),
	})
	if err != nil {
		respondError(c, err, "Failed to initiate payment")
		return
	}

	c.JSON(http.StatusCreated, AddMoneyResponse{
		Reference:        res.Transaction.Reference,
		AuthorizationURL: res.AuthorizationURL,
		Amount:           models.FormatMoney(res.Transaction.Amount),
		Status:           string(res.Transaction.Status),
	})
}

// VerifyPayment lets the client poll a top-up it started. Pending deposits
// are reconciled against the provider before answering.
func (h *TransactionHandler) VerifyPayment(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	out, err := h.topUps.Reconcile(c.Request.Context(), cqrs.ReconcileCommand{
		Reference:        c.Param("reference"),
		RequestingUserID: userID,
		Source:           cqrs.ReconcilePoll,
	})
	if err != nil {
		respondError(c, err, "Failed to verify payment")
		return
	}

	resp := VerifyPaymentResponse{
		Reference:        out.Reference,
		Status:           out.Status,
		AlreadyProcessed: out.AlreadyProcessed,
	}
	if out.Transaction != nil {
		resp.Transaction = models.NewTransactionView(out.Transaction)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TransactionHandler) PayBill(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req BillPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	res, err := h.ledger.PayBill(c.Request.Context(), cqrs.BillPaymentCommand{
		UserID: userID,
		Amount: req.Amount,
		Bill: models.BillDetails{
			Type:            models.BillType(req.BillType),
			PhoneNumber:     req.PhoneNumber,
			MeterNumber:     req.MeterNumber,
			SmartcardNumber: req.SmartcardNumber,
		},
		PIN:   req.PIN,
		Audit: auditFrom(c),
	})
	if err != nil {
		respondError(c, err, "Failed to pay bill")
		return
	}

	c.JSON(http.StatusCreated, PostingResponse{
		Message:     "Payment successful",
		Transaction: models.NewTransactionView(res.Transaction),
		Balance:     models.FormatMoney(res.Wallet.Balance),
	})
}

func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	q := cqrs.ListTransactionsQuery{
		UserID:    userID,
		Direction: models.Direction(strings.ToLower(c.Query("type"))),
		Status:    models.Status(strings.ToLower(c.Query("status"))),
	}

	var ok bool
	if q.Page, ok = queryInt(c, "page"); !ok {
		return
	}
	if q.PageSize, ok = queryInt(c, "page_size"); !ok {
		return
	}
	if q.StartDate, ok = queryDate(c, "start_date"); !ok {
		return
	}
	if q.EndDate, ok = queryDate(c, "end_date"); !ok {
		return
	}
	if q.EndDate != nil {
		// end_date is inclusive; the store filters on an exclusive bound.
		next := q.EndDate.AddDate(0, 0, 1)
		q.EndDate = &next
	}

	page, err := h.queries.ListTransactions(c.Request.Context(), q)
	if err != nil {
		respondError(c, err, "Failed to list transactions")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	view, err := h.queries.GetTransaction(c.Request.Context(), cqrs.GetTransactionQuery{
		Reference: c.Param("reference"),
		UserID:    userID,
	})
	if err != nil {
		respondError(c, err, "Failed to get transaction")
		return
	}
	c.JSON(http.StatusOK, view)
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		middleware.RespondWithError(c, http.StatusBadRequest, key+" must be a positive number")
		return 0, false
	}
	return n, true
}

func queryDate(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, key+" must be formatted as YYYY-MM-DD")
		return nil, false
	}
	return &t, true
}
