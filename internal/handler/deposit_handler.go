package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/souqhub/auction-backend/internal/gateway"
	"github.com/souqhub/auction-backend/internal/model"
	"github.com/souqhub/auction-backend/internal/service"
)

type DepositHandler struct {
	svc service.DepositService
}

func NewDepositHandler(svc service.DepositService) *DepositHandler {
	return &DepositHandler{svc: svc}
}

type DepositResponse struct {
	ID         uint64  `json:"id"`
	AuctionID  uint64  `json:"auctionId"`
	UserUID    string  `json:"userUid"`
	Amount     int64   `json:"amount"`
	Status     string  `json:"status"`
	Method     string  `json:"method"`
	PaidAt     *string `json:"paidAt,omitempty"`
	RefundedAt *string `json:"refundedAt,omitempty"`
}

func toDepositResponse(d *model.Deposit) DepositResponse {
	var paidAt, refundedAt *string
	if d.PaidAt != nil {
		v := d.PaidAt.Format(time.RFC3339)
		paidAt = &v
	}
	if d.RefundedAt != nil {
		v := d.RefundedAt.Format(time.RFC3339)
		refundedAt = &v
	}
	return DepositResponse{
		ID:         d.ID,
		AuctionID:  d.AuctionID,
		UserUID:    d.UserUID,
		Amount:     d.Amount,
		Status:     string(d.Status),
		Method:     d.Method,
		PaidAt:     paidAt,
		RefundedAt: refundedAt,
	}
}

func (h *DepositHandler) Collect(c echo.Context) error {
	uid := uidFrom(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	auctionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid auction id"))
	}
	var body struct {
		Amount int64  `json:"amount"`
		Method string `json:"method"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid body"))
	}
	d, err := h.svc.CollectDeposit(c.Request().Context(), auctionID, uid, body.Amount, gateway.Method(body.Method))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, toDepositResponse(d))
}

func (h *DepositHandler) Refund(c echo.Context) error {
	uid := uidFrom(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	depositID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid deposit id"))
	}
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&body)
	if err := h.svc.RefundDeposit(c.Request().Context(), depositID, body.Reason, uid); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "refunded"})
}

// Confirm is the gateway's deferred-confirmation webhook. It is idempotent;
// the gateway may retry freely.
func (h *DepositHandler) Confirm(c echo.Context) error {
	var body struct {
		Reference string `json:"reference"`
	}
	if err := c.Bind(&body); err != nil || body.Reference == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "missing reference"))
	}
	d, err := h.svc.ConfirmDeposit(c.Request().Context(), body.Reference)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, toDepositResponse(d))
}

type EscrowResponse struct {
	ID                 uint64  `json:"id"`
	AuctionID          *uint64 `json:"auctionId,omitempty"`
	ListingID          uint64  `json:"listingId"`
	BuyerUID           string  `json:"buyerUid"`
	SellerUID          string  `json:"sellerUid"`
	AgreedPrice        int64   `json:"agreedPrice"`
	EscrowedAmount     int64   `json:"escrowedAmount"`
	DeliveryMethod     string  `json:"deliveryMethod,omitempty"`
	CarrierNote        string  `json:"carrierNote,omitempty"`
	InspectionDeadline *string `json:"inspectionDeadline,omitempty"`
	DisputeOpen        bool    `json:"disputeOpen"`
	Status             string  `json:"status"`
	CreatedAt          string  `json:"createdAt"`
}

func toEscrowResponse(t *model.EscrowTransaction) EscrowResponse {
	var deadline *string
	if t.InspectionDeadline != nil {
		v := t.InspectionDeadline.Format(time.RFC3339)
		deadline = &v
	}
	return EscrowResponse{
		ID:                 t.ID,
		AuctionID:          t.AuctionID,
		ListingID:          t.ListingID,
		BuyerUID:           t.BuyerUID,
		SellerUID:          t.SellerUID,
		AgreedPrice:        t.AgreedPrice,
		EscrowedAmount:     t.EscrowedAmount,
		DeliveryMethod:     t.DeliveryMethod,
		CarrierNote:        t.CarrierNote,
		InspectionDeadline: deadline,
		DisputeOpen:        t.DisputeOpen,
		Status:             string(t.Status),
		CreatedAt:          t.CreatedAt.Format(time.RFC3339),
	}
}

// Settle charges the auction winner and opens the escrow transaction.
func (h *DepositHandler) Settle(c echo.Context) error {
	uid := uidFrom(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	auctionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid auction id"))
	}
	var body struct {
		Method string `json:"method"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid body"))
	}
	t, err := h.svc.SettleWinnerPayment(c.Request().Context(), auctionID, uid, gateway.Method(body.Method))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, toEscrowResponse(t))
}
