package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/souqhub/auction-backend/internal/model"
	"github.com/souqhub/auction-backend/internal/repository"
	"gorm.io/gorm"
)

// casRetries bounds revalidate-and-retry attempts when a bid loses the
// current-price race.
const casRetries = 3

// dutchInterval is how often a Dutch auction's asking price steps down by
// one increment.
const dutchInterval = time.Minute

type CreateAuctionInput struct {
	ListingID       uint64
	Style           model.AuctionStyle
	StartingPrice   int64
	ReservePrice    *int64
	BuyNowPrice     *int64
	MinIncrement    int64
	DepositRequired bool
	DepositAmount   int64
	DepositPercent  float64
	StartAt         time.Time
	EndAt           time.Time
}

type BiddingService interface {
	CreateAuction(ctx context.Context, sellerUID string, in CreateAuctionInput) (*model.Auction, error)
	Get(ctx context.Context, id uint64, viewerUID string) (*model.Auction, error)
	ListOpen(ctx context.Context, limit, offset int) ([]model.Auction, error)
	PlaceBid(ctx context.Context, auctionID uint64, bidderUID string, amount int64) (*model.Bid, error)
	BuyNow(ctx context.Context, auctionID uint64, buyerUID string) (*model.Auction, error)
	CloseAuction(ctx context.Context, auctionID uint64) error
	CloseExpired(ctx context.Context) error
	NotifyEndingSoon(ctx context.Context, within time.Duration) error
}

type biddingService struct {
	auctionRepo repository.AuctionRepository
	bidRepo     repository.BidRepository
	depositRepo repository.DepositRepository
	listingRepo repository.ListingRepository
	deposits    DepositService
	notify      NotificationService
}

func NewBiddingService(
	auctionRepo repository.AuctionRepository,
	bidRepo repository.BidRepository,
	depositRepo repository.DepositRepository,
	listingRepo repository.ListingRepository,
	deposits DepositService,
	notify NotificationService,
) BiddingService {
	return &biddingService{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		depositRepo: depositRepo,
		listingRepo: listingRepo,
		deposits:    deposits,
		notify:      notify,
	}
}

func (s *biddingService) CreateAuction(ctx context.Context, sellerUID string, in CreateAuctionInput) (*model.Auction, error) {
	if sellerUID == "" {
		return nil, errors.New("seller is required")
	}
	listing, err := s.listingRepo.FindByID(ctx, in.ListingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if listing.SellerUID != sellerUID {
		return nil, ErrForbidden
	}
	switch in.Style {
	case model.AuctionStyleEnglish, model.AuctionStyleDutch, model.AuctionStyleSealed:
	default:
		return nil, fmt.Errorf("unknown auction style %q", in.Style)
	}
	if in.StartingPrice <= 0 {
		return nil, errors.New("starting price must be positive")
	}
	if in.MinIncrement <= 0 {
		in.MinIncrement = 1
	}
	if !in.EndAt.After(in.StartAt) {
		return nil, errors.New("end time must be after start time")
	}
	if in.ReservePrice != nil && *in.ReservePrice < in.StartingPrice {
		return nil, errors.New("reserve price below starting price")
	}

	status := model.AuctionStatusPending
	if !in.StartAt.After(time.Now()) {
		status = model.AuctionStatusActive
	}
	a := &model.Auction{
		ListingID:       in.ListingID,
		SellerUID:       sellerUID,
		Style:           in.Style,
		StartingPrice:   in.StartingPrice,
		ReservePrice:    in.ReservePrice,
		BuyNowPrice:     in.BuyNowPrice,
		MinIncrement:    in.MinIncrement,
		DepositRequired: in.DepositRequired,
		DepositAmount:   in.DepositAmount,
		DepositPercent:  in.DepositPercent,
		StartAt:         in.StartAt,
		EndAt:           in.EndAt,
		CurrentPrice:    in.StartingPrice,
		Status:          status,
	}
	if err := s.auctionRepo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Get returns the auction as the viewer may see it: the reserve price is
// hidden from everyone but the seller until close, and sealed auctions never
// expose the running price or leader.
func (s *biddingService) Get(ctx context.Context, id uint64, viewerUID string) (*model.Auction, error) {
	a, err := s.auctionRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	closed := a.Status != model.AuctionStatusPending && a.Status != model.AuctionStatusActive
	view := *a
	if viewerUID != a.SellerUID && !closed {
		view.ReservePrice = nil
	}
	if a.Style == model.AuctionStyleSealed && !closed {
		view.CurrentPrice = a.StartingPrice
		view.CurrentBidderUID = nil
	}
	if a.Style == model.AuctionStyleDutch && a.Status == model.AuctionStatusActive {
		view.CurrentPrice = dutchPrice(a, time.Now())
	}
	return &view, nil
}

func (s *biddingService) ListOpen(ctx context.Context, limit, offset int) ([]model.Auction, error) {
	return s.auctionRepo.ListOpen(ctx, limit, offset)
}

func (s *biddingService) PlaceBid(ctx context.Context, auctionID uint64, bidderUID string, amount int64) (*model.Bid, error) {
	if bidderUID == "" {
		return nil, errors.New("bidder is required")
	}
	if amount <= 0 {
		return nil, errors.New("bid amount must be positive")
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		a, err := s.auctionRepo.FindByID(ctx, auctionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if err := s.validateBidWindow(a, bidderUID); err != nil {
			return nil, err
		}
		if err := s.requireDeposit(ctx, a, bidderUID); err != nil {
			return nil, err
		}

		switch a.Style {
		case model.AuctionStyleEnglish:
			minAccept := a.CurrentPrice + a.MinIncrement
			if amount < minAccept {
				return nil, fmt.Errorf("%w: minimum acceptable bid is %d", ErrBidTooLow, minAccept)
			}
			rows, err := s.auctionRepo.CommitBid(ctx, a.ID, a.Version, amount, bidderUID)
			if err != nil {
				return nil, err
			}
			if rows == 0 {
				// Lost the race; revalidate against the committed price.
				continue
			}
			return s.afterEnglishCommit(ctx, a, bidderUID, amount)

		case model.AuctionStyleDutch:
			ask := dutchPrice(a, time.Now())
			if amount < ask {
				return nil, fmt.Errorf("%w: current asking price is %d", ErrBidTooLow, ask)
			}
			rows, err := s.auctionRepo.CloseIfActive(ctx, a.ID, model.AuctionStatusEnded, ask, &bidderUID)
			if err != nil {
				return nil, err
			}
			if rows == 0 {
				return nil, ErrStaleBid
			}
			bid := &model.Bid{AuctionID: a.ID, BidderUID: bidderUID, Amount: ask, Winning: true}
			if err := s.bidRepo.Create(ctx, bid); err != nil {
				return nil, err
			}
			if err := s.bidRepo.SwapWinning(ctx, a.ID, bid.ID); err != nil {
				log.WithField("auction", a.ID).WithError(err).Error("swap winning flag failed")
			}
			s.announceWinner(ctx, a, bidderUID, ask)
			return bid, nil

		case model.AuctionStyleSealed:
			rows, err := s.auctionRepo.BumpVersion(ctx, a.ID, a.Version)
			if err != nil {
				return nil, err
			}
			if rows == 0 {
				continue
			}
			bid := &model.Bid{AuctionID: a.ID, BidderUID: bidderUID, Amount: amount, Sealed: true}
			if err := s.bidRepo.Create(ctx, bid); err != nil {
				return nil, err
			}
			// Amount stays sealed; the seller only learns a bid arrived.
			s.notify.Notify(ctx, a.SellerUID, model.NotificationNewBid,
				"New sealed bid", "A sealed bid was placed on your auction.", &a.ID, nil, nil)
			return bid, nil

		default:
			return nil, fmt.Errorf("unknown auction style %q", a.Style)
		}
	}
	return nil, ErrStaleBid
}

func (s *biddingService) validateBidWindow(a *model.Auction, bidderUID string) error {
	if a.SellerUID == bidderUID {
		return ErrSelfBid
	}
	switch a.Status {
	case model.AuctionStatusActive:
	case model.AuctionStatusPending:
		return ErrAuctionNotActive
	default:
		return ErrAuctionClosed
	}
	now := time.Now()
	if now.Before(a.StartAt) {
		return ErrAuctionNotActive
	}
	if !now.Before(a.EndAt) {
		return ErrAuctionClosed
	}
	return nil
}

func (s *biddingService) requireDeposit(ctx context.Context, a *model.Auction, bidderUID string) error {
	if !a.DepositRequired {
		return nil
	}
	d, err := s.depositRepo.FindByAuctionAndUser(ctx, a.ID, bidderUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %d required to bid", ErrDepositRequired, a.DepositDue())
		}
		return err
	}
	if d.Status != model.DepositStatusPaid {
		return fmt.Errorf("%w: deposit is %s", ErrDepositRequired, d.Status)
	}
	return nil
}

func (s *biddingService) afterEnglishCommit(ctx context.Context, a *model.Auction, bidderUID string, amount int64) (*model.Bid, error) {
	bid := &model.Bid{AuctionID: a.ID, BidderUID: bidderUID, Amount: amount}
	if err := s.bidRepo.Create(ctx, bid); err != nil {
		return nil, err
	}
	if err := s.bidRepo.SwapWinning(ctx, a.ID, bid.ID); err != nil {
		log.WithField("auction", a.ID).WithError(err).Error("swap winning flag failed")
	}
	bid.Winning = true

	if prev := a.CurrentBidderUID; prev != nil && *prev != bidderUID {
		s.notify.Notify(ctx, *prev, model.NotificationOutbid,
			"You have been outbid", fmt.Sprintf("A bid of %d beat yours. Raise to stay in.", amount),
			&a.ID, nil, map[string]interface{}{"amount": amount})
	}
	s.notify.Notify(ctx, a.SellerUID, model.NotificationNewBid,
		"New bid", fmt.Sprintf("Your auction received a bid of %d.", amount),
		&a.ID, nil, map[string]interface{}{"amount": amount})
	s.notify.NotifyWatchers(ctx, a.ID, model.WatchEventNewBid,
		"New bid on a watched auction", fmt.Sprintf("Price is now %d.", amount), bidderUID)
	s.notify.NotifyWatchers(ctx, a.ID, model.WatchEventPriceChange,
		"Price changed on a watched auction", fmt.Sprintf("Price is now %d.", amount), bidderUID)

	s.checkReserve(ctx, a, amount)
	return bid, nil
}

// checkReserve emits RESERVE_MET at most once per auction; the flag write is
// the idempotency guard.
func (s *biddingService) checkReserve(ctx context.Context, a *model.Auction, price int64) {
	if a.ReservePrice == nil || price < *a.ReservePrice {
		return
	}
	rows, err := s.auctionRepo.MarkReserveMet(ctx, a.ID)
	if err != nil {
		log.WithField("auction", a.ID).WithError(err).Error("mark reserve met failed")
		return
	}
	if rows == 0 {
		return
	}
	s.notify.Notify(ctx, a.SellerUID, model.NotificationReserveMet,
		"Reserve met", "Bidding has reached your reserve price.", &a.ID, nil, nil)
}

func (s *biddingService) BuyNow(ctx context.Context, auctionID uint64, buyerUID string) (*model.Auction, error) {
	if buyerUID == "" {
		return nil, errors.New("buyer is required")
	}
	a, err := s.auctionRepo.FindByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if a.BuyNowPrice == nil {
		return nil, errors.New("auction has no buy-now price")
	}
	if err := s.validateBidWindow(a, buyerUID); err != nil {
		return nil, err
	}
	if err := s.requireDeposit(ctx, a, buyerUID); err != nil {
		return nil, err
	}
	price := *a.BuyNowPrice
	rows, err := s.auctionRepo.CloseIfActive(ctx, a.ID, model.AuctionStatusEnded, price, &buyerUID)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrAuctionClosed
	}
	bid := &model.Bid{AuctionID: a.ID, BidderUID: buyerUID, Amount: price, Winning: true}
	if err := s.bidRepo.Create(ctx, bid); err != nil {
		return nil, err
	}
	// Demote any regular bid that was leading before the buy-out.
	if err := s.bidRepo.SwapWinning(ctx, a.ID, bid.ID); err != nil {
		log.WithField("auction", a.ID).WithError(err).Error("swap winning flag failed")
	}
	s.announceWinner(ctx, a, buyerUID, price)
	return s.auctionRepo.FindByID(ctx, a.ID)
}

// CloseAuction finalizes a due auction. Closing an already-closed auction is
// a no-op: the conditional status write decides exactly one closer.
func (s *biddingService) CloseAuction(ctx context.Context, auctionID uint64) error {
	a, err := s.auctionRepo.FindByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if a.Status != model.AuctionStatusActive {
		return nil
	}

	winnerUID, finalPrice, winningBidID := s.determineWinner(ctx, a)

	if winnerUID == nil {
		rows, err := s.auctionRepo.CloseIfActive(ctx, a.ID, model.AuctionStatusCancelled, a.CurrentPrice, nil)
		if err != nil || rows == 0 {
			return err
		}
		s.refundAuctionDeposits(ctx, a.ID, "", "auction cancelled")
		return nil
	}

	rows, err := s.auctionRepo.CloseIfActive(ctx, a.ID, model.AuctionStatusEnded, finalPrice, winnerUID)
	if err != nil || rows == 0 {
		return err
	}
	if winningBidID != 0 {
		if err := s.bidRepo.SwapWinning(ctx, a.ID, winningBidID); err != nil {
			log.WithField("auction", a.ID).WithError(err).Error("swap winning flag failed")
		}
	}
	s.announceWinner(ctx, a, *winnerUID, finalPrice)
	return nil
}

// determineWinner applies the style rule: leader for english/dutch, highest
// stored bid with earliest-submission tie-break for sealed. A set-but-unmet
// reserve voids the sale.
func (s *biddingService) determineWinner(ctx context.Context, a *model.Auction) (*string, int64, uint64) {
	switch a.Style {
	case model.AuctionStyleSealed:
		top, err := s.bidRepo.TopSealed(ctx, a.ID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.WithField("auction", a.ID).WithError(err).Error("load sealed bids failed")
			}
			return nil, 0, 0
		}
		if a.ReservePrice != nil && top.Amount < *a.ReservePrice {
			return nil, 0, 0
		}
		return &top.BidderUID, top.Amount, top.ID
	default:
		if a.CurrentBidderUID == nil || a.BidCount == 0 {
			return nil, 0, 0
		}
		if a.ReservePrice != nil && a.CurrentPrice < *a.ReservePrice {
			return nil, 0, 0
		}
		return a.CurrentBidderUID, a.CurrentPrice, 0
	}
}

// announceWinner notifies the winner and every losing bidder, and refunds
// losing deposits. Runs after the close has been committed.
func (s *biddingService) announceWinner(ctx context.Context, a *model.Auction, winnerUID string, finalPrice int64) {
	s.notify.Notify(ctx, winnerUID, model.NotificationAuctionWon,
		"You won the auction", fmt.Sprintf("Winning price: %d. Complete payment to open escrow.", finalPrice),
		&a.ID, nil, map[string]interface{}{"finalPrice": finalPrice})
	s.notify.Notify(ctx, a.SellerUID, model.NotificationAuctionSold,
		"Auction ended", fmt.Sprintf("Your auction sold for %d.", finalPrice),
		&a.ID, nil, map[string]interface{}{"finalPrice": finalPrice})

	uids, err := s.bidRepo.ListBidderUIDs(ctx, a.ID)
	if err != nil {
		log.WithField("auction", a.ID).WithError(err).Warn("list bidders failed")
		uids = nil
	}
	for _, uid := range uids {
		if uid == winnerUID {
			continue
		}
		s.notify.Notify(ctx, uid, model.NotificationAuctionLost,
			"Auction ended", "The auction closed with a higher bid.", &a.ID, nil, nil)
	}
	s.refundAuctionDeposits(ctx, a.ID, winnerUID, "auction lost")
}

// refundAuctionDeposits refunds every paid deposit except the winner's,
// which is consumed at settlement.
func (s *biddingService) refundAuctionDeposits(ctx context.Context, auctionID uint64, winnerUID, reason string) {
	deposits, err := s.depositRepo.ListPaidByAuction(ctx, auctionID)
	if err != nil {
		log.WithField("auction", auctionID).WithError(err).Error("list deposits failed")
		return
	}
	for i := range deposits {
		d := &deposits[i]
		if winnerUID != "" && d.UserUID == winnerUID {
			continue
		}
		if err := s.deposits.RefundDeposit(ctx, d.ID, reason, "system"); err != nil {
			log.WithFields(log.Fields{"deposit": d.ID, "auction": auctionID}).
				WithError(err).Error("refund losing deposit failed")
		}
	}
}

func (s *biddingService) CloseExpired(ctx context.Context) error {
	expired, err := s.auctionRepo.ListExpired(ctx, time.Now())
	if err != nil {
		return err
	}
	for i := range expired {
		if err := s.CloseAuction(ctx, expired[i].ID); err != nil {
			log.WithField("auction", expired[i].ID).WithError(err).Error("close expired auction failed")
		}
	}
	return nil
}

// NotifyEndingSoon emits AUCTION_ENDING once per auction as it enters the
// closing window.
func (s *biddingService) NotifyEndingSoon(ctx context.Context, within time.Duration) error {
	ending, err := s.auctionRepo.ListEndingSoon(ctx, time.Now(), within)
	if err != nil {
		return err
	}
	for i := range ending {
		a := &ending[i]
		rows, err := s.auctionRepo.MarkEndingNotified(ctx, a.ID)
		if err != nil || rows == 0 {
			continue
		}
		if a.CurrentBidderUID != nil {
			s.notify.Notify(ctx, *a.CurrentBidderUID, model.NotificationAuctionEnding,
				"Auction ending soon", "The auction you are leading closes soon.", &a.ID, nil, nil)
		}
		s.notify.NotifyWatchers(ctx, a.ID, model.WatchEventEndingSoon,
			"Watched auction ending soon", "Last chance to bid.", "")
	}
	return nil
}

// dutchPrice steps the asking price down one increment per interval from the
// start, never below the reserve (or one increment when no reserve is set).
func dutchPrice(a *model.Auction, now time.Time) int64 {
	if now.Before(a.StartAt) {
		return a.StartingPrice
	}
	steps := int64(now.Sub(a.StartAt) / dutchInterval)
	price := a.StartingPrice - steps*a.MinIncrement
	floor := a.MinIncrement
	if a.ReservePrice != nil {
		floor = *a.ReservePrice
	}
	if price < floor {
		return floor
	}
	return price
}
