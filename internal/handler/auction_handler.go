package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/souqhub/auction-backend/internal/model"
	"github.com/souqhub/auction-backend/internal/repository"
	"github.com/souqhub/auction-backend/internal/service"
)

type AuctionHandler struct {
	svc       service.BiddingService
	watchRepo repository.WatchlistRepository
}

func NewAuctionHandler(svc service.BiddingService, watchRepo repository.WatchlistRepository) *AuctionHandler {
	return &AuctionHandler{svc: svc, watchRepo: watchRepo}
}

type AuctionResponse struct {
	ID               uint64  `json:"id"`
	ListingID        uint64  `json:"listingId"`
	SellerUID        string  `json:"sellerUid"`
	Style            string  `json:"style"`
	StartingPrice    int64   `json:"startingPrice"`
	ReservePrice     *int64  `json:"reservePrice,omitempty"`
	BuyNowPrice      *int64  `json:"buyNowPrice,omitempty"`
	MinIncrement     int64   `json:"minIncrement"`
	DepositRequired  bool    `json:"depositRequired"`
	DepositDue       int64   `json:"depositDue,omitempty"`
	StartAt          string  `json:"startAt"`
	EndAt            string  `json:"endAt"`
	CurrentPrice     int64   `json:"currentPrice"`
	CurrentBidderUID *string `json:"currentBidderUid,omitempty"`
	BidCount         uint    `json:"bidCount"`
	ReserveMet       bool    `json:"reserveMet"`
	Status           string  `json:"status"`
}

func toAuctionResponse(a *model.Auction) AuctionResponse {
	return AuctionResponse{
		ID:               a.ID,
		ListingID:        a.ListingID,
		SellerUID:        a.SellerUID,
		Style:            string(a.Style),
		StartingPrice:    a.StartingPrice,
		ReservePrice:     a.ReservePrice,
		BuyNowPrice:      a.BuyNowPrice,
		MinIncrement:     a.MinIncrement,
		DepositRequired:  a.DepositRequired,
		DepositDue:       a.DepositDue(),
		StartAt:          a.StartAt.Format(time.RFC3339),
		EndAt:            a.EndAt.Format(time.RFC3339),
		CurrentPrice:     a.CurrentPrice,
		CurrentBidderUID: a.CurrentBidderUID,
		BidCount:         a.BidCount,
		ReserveMet:       a.ReserveMet,
		Status:           string(a.Status),
	}
}

func (h *AuctionHandler) Create(c echo.Context) error {
	uid := uidFrom(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	var body struct {
		ListingID       uint64  `json:"listingId"`
		Style           string  `json:"style"`
		StartingPrice   int64   `json:"startingPrice"`
		ReservePrice    *int64  `json:"reservePrice"`
		BuyNowPrice     *int64  `json:"buyNowPrice"`
		MinIncrement    int64   `json:"minIncrement"`
		DepositRequired bool    `json:"depositRequired"`
		DepositAmount   int64   `json:"depositAmount"`
		DepositPercent  float64 `json:"depositPercent"`
		StartAt         string  `json:"startAt"`
		EndAt           string  `json:"endAt"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid body"))
	}
	startAt, err := time.Parse(time.RFC3339, body.StartAt)
	if err != nil {
		startAt = time.Now()
	}
	endAt, err := time.Parse(time.RFC3339, body.EndAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid endAt"))
	}
	a, err := h.svc.CreateAuction(c.Request().Context(), uid, service.CreateAuctionInput{
		ListingID:       body.ListingID,
		Style:           model.AuctionStyle(body.Style),
		StartingPrice:   body.StartingPrice,
		ReservePrice:    body.ReservePrice,
		BuyNowPrice:     body.BuyNowPrice,
		MinIncrement:    body.MinIncrement,
		DepositRequired: body.DepositRequired,
		DepositAmount:   body.DepositAmount,
		DepositPercent:  body.DepositPercent,
		StartAt:         startAt,
		EndAt:           endAt,
	})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, toAuctionResponse(a))
}

func (h *AuctionHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid auction id"))
	}
	a, err := h.svc.Get(c.Request().Context(), id, uidFrom(c))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponse(a))
}

func (h *AuctionHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	list, err := h.svc.ListOpen(c.Request().Context(), limit, offset)
	if err != nil {
		return errorJSON(c, err)
	}
	resp := make([]AuctionResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toAuctionResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"auctions": resp})
}

type BidResponse struct {
	ID        uint64 `json:"id"`
	AuctionID uint64 `json:"auctionId"`
	BidderUID string `json:"bidderUid"`
	Amount    int64  `json:"amount"`
	Winning   bool   `json:"winning"`
	CreatedAt string `json:"createdAt"`
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	uid := uidFrom(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid auction id"))
	}
	var body struct {
		Amount int64 `json:"amount"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid body"))
	}
	bid, err := h.svc.PlaceBid(c.Request().Context(), id, uid, body.Amount)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, BidResponse{
		ID:        bid.ID,
		AuctionID: bid.AuctionID,
		BidderUID: bid.BidderUID,
		Amount:    bid.Amount,
		Winning:   bid.Winning,
		CreatedAt: bid.CreatedAt.Format(time.RFC3339),
	})
}

func (h *AuctionHandler) BuyNow(c echo.Context) error {
	uid := uidFrom(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid auction id"))
	}
	a, err := h.svc.BuyNow(c.Request().Context(), id, uid)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, toAuctionResponse(a))
}

func (h *AuctionHandler) Watch(c echo.Context) error {
	uid := uidFrom(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid auction id"))
	}
	var body struct {
		PriceChange *bool `json:"priceChange"`
		EndingSoon  *bool `json:"endingSoon"`
		NewBid      *bool `json:"newBid"`
	}
	_ = c.Bind(&body)
	entry := &model.WatchlistEntry{
		UserUID:           uid,
		AuctionID:         id,
		NotifyPriceChange: true,
		NotifyEndingSoon:  true,
	}
	if body.PriceChange != nil {
		entry.NotifyPriceChange = *body.PriceChange
	}
	if body.EndingSoon != nil {
		entry.NotifyEndingSoon = *body.EndingSoon
	}
	if body.NewBid != nil {
		entry.NotifyNewBid = *body.NewBid
	}
	if err := h.watchRepo.Add(c.Request().Context(), entry); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuctionHandler) Unwatch(c echo.Context) error {
	uid := uidFrom(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid auction id"))
	}
	if err := h.watchRepo.Remove(c.Request().Context(), uid, id); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
