package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/souqhub/auction-backend/internal/service"
)

type EscrowHandler struct {
	svc service.SettlementService
}

func NewEscrowHandler(svc service.SettlementService) *EscrowHandler {
	return &EscrowHandler{svc: svc}
}

func (h *EscrowHandler) escrowID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (h *EscrowHandler) Get(c echo.Context) error {
	id, ok := h.escrowID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid transaction id"))
	}
	t, err := h.svc.Get(c.Request().Context(), id, uidFrom(c))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, toEscrowResponse(t))
}

func (h *EscrowHandler) ListMine(c echo.Context) error {
	uid := uidFrom(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	list, err := h.svc.ListMine(c.Request().Context(), uid)
	if err != nil {
		return errorJSON(c, err)
	}
	resp := make([]EscrowResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toEscrowResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"transactions": resp})
}

func (h *EscrowHandler) Ship(c echo.Context) error {
	uid := uidFrom(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	id, ok := h.escrowID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid transaction id"))
	}
	var body struct {
		CarrierNote string `json:"carrierNote"`
	}
	_ = c.Bind(&body)
	t, err := h.svc.MarkShipped(c.Request().Context(), id, uid, body.CarrierNote)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, toEscrowResponse(t))
}

func (h *EscrowHandler) Deliver(c echo.Context) error {
	uid := uidFrom(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	id, ok := h.escrowID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid transaction id"))
	}
	t, err := h.svc.ConfirmDelivery(c.Request().Context(), id, uid)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, toEscrowResponse(t))
}

func (h *EscrowHandler) Release(c echo.Context) error {
	uid := uidFrom(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	id, ok := h.escrowID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid transaction id"))
	}
	t, err := h.svc.ReleaseEscrow(c.Request().Context(), id, uid)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, toEscrowResponse(t))
}

func (h *EscrowHandler) Dispute(c echo.Context) error {
	uid := uidFrom(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	id, ok := h.escrowID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid transaction id"))
	}
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&body)
	t, err := h.svc.OpenDispute(c.Request().Context(), id, uid, body.Reason)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, toEscrowResponse(t))
}

// Resolve is invoked by the arbitration backoffice, not by the parties.
func (h *EscrowHandler) Resolve(c echo.Context) error {
	id, ok := h.escrowID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid transaction id"))
	}
	var body struct {
		Outcome      string `json:"outcome"`
		SellerAmount int64  `json:"sellerAmount"`
		BuyerAmount  int64  `json:"buyerAmount"`
		Note         string `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid body"))
	}
	t, err := h.svc.ResolveDispute(c.Request().Context(), id, service.ResolveDisputeInput{
		Outcome:      service.DisputeOutcome(body.Outcome),
		SellerAmount: body.SellerAmount,
		BuyerAmount:  body.BuyerAmount,
		Note:         body.Note,
	})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, toEscrowResponse(t))
}

func (h *EscrowHandler) Cancel(c echo.Context) error {
	uid := uidFrom(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	id, ok := h.escrowID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid transaction id"))
	}
	t, err := h.svc.Cancel(c.Request().Context(), id, uid)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, toEscrowResponse(t))
}

// ConfirmPayment is the gateway webhook for deferred winner payments.
func (h *EscrowHandler) ConfirmPayment(c echo.Context) error {
	id, ok := h.escrowID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid transaction id"))
	}
	t, err := h.svc.ConfirmPayment(c.Request().Context(), id)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, toEscrowResponse(t))
}
