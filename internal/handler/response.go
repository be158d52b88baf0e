package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/souqhub/auction-backend/internal/service"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

// errorJSON maps the service error taxonomy onto HTTP codes: validation ->
// 400, conflicts -> 409, payment failures -> 402. The message carries the
// actionable reason verbatim.
func errorJSON(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "resource not found"))
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "not allowed"))
	case errors.Is(err, service.ErrStaleBid),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrDepositNotPaid),
		errors.Is(err, service.ErrDisputeNotOpen),
		errors.Is(err, service.ErrSplitMismatch),
		errors.Is(err, service.ErrAlreadyPaid):
		return c.JSON(http.StatusConflict, NewErrorResponse("conflict", err.Error()))
	case errors.Is(err, service.ErrPaymentFailed):
		return c.JSON(http.StatusPaymentRequired, NewErrorResponse("payment_failed", err.Error()))
	case errors.Is(err, service.ErrAuctionNotActive),
		errors.Is(err, service.ErrAuctionClosed),
		errors.Is(err, service.ErrBidTooLow),
		errors.Is(err, service.ErrDepositRequired),
		errors.Is(err, service.ErrDepositNotRequired),
		errors.Is(err, service.ErrDepositTooSmall),
		errors.Is(err, service.ErrInsufficientBalance),
		errors.Is(err, service.ErrInvalidMethod),
		errors.Is(err, service.ErrSelfBid):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
	default:
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "unexpected failure"))
	}
}

func uidFrom(c echo.Context) string {
	uid, _ := c.Get("uid").(string)
	return uid
}
