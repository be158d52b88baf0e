package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/souqhub/auction-backend/internal/gateway"
	"github.com/souqhub/auction-backend/internal/model"
	"github.com/souqhub/auction-backend/internal/repository"
	"gorm.io/gorm"
)

type DepositService interface {
	CollectDeposit(ctx context.Context, auctionID uint64, userUID string, amount int64, method gateway.Method) (*model.Deposit, error)
	ConfirmDeposit(ctx context.Context, gatewayRef string) (*model.Deposit, error)
	RefundDeposit(ctx context.Context, depositID uint64, reason, actorUID string) error
	SettleWinnerPayment(ctx context.Context, auctionID uint64, winnerUID string, method gateway.Method) (*model.EscrowTransaction, error)
}

type depositService struct {
	depositRepo repository.DepositRepository
	auctionRepo repository.AuctionRepository
	walletRepo  repository.WalletRepository
	gw          gateway.Gateway
	settlement  SettlementService
	notify      NotificationService
}

func NewDepositService(
	depositRepo repository.DepositRepository,
	auctionRepo repository.AuctionRepository,
	walletRepo repository.WalletRepository,
	gw gateway.Gateway,
	settlement SettlementService,
	notify NotificationService,
) DepositService {
	return &depositService{
		depositRepo: depositRepo,
		auctionRepo: auctionRepo,
		walletRepo:  walletRepo,
		gw:          gw,
		settlement:  settlement,
		notify:      notify,
	}
}

// CollectDeposit takes a participant's good-faith payment for one auction.
// A second call for an already-paid pair returns the existing row instead of
// charging again.
func (s *depositService) CollectDeposit(ctx context.Context, auctionID uint64, userUID string, amount int64, method gateway.Method) (*model.Deposit, error) {
	if userUID == "" {
		return nil, errors.New("user is required")
	}
	if !method.Valid() {
		return nil, ErrInvalidMethod
	}
	a, err := s.auctionRepo.FindByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !a.DepositRequired {
		return nil, ErrDepositNotRequired
	}
	required := a.DepositDue()
	if amount < required {
		return nil, fmt.Errorf("%w: %d required", ErrDepositTooSmall, required)
	}

	existing, err := s.depositRepo.FindByAuctionAndUser(ctx, auctionID, userUID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil {
		switch existing.Status {
		case model.DepositStatusPaid, model.DepositStatusUsed:
			return existing, nil
		}
	}

	d := &model.Deposit{
		AuctionID: auctionID,
		UserUID:   userUID,
		Amount:    amount,
		Method:    string(method),
	}

	if method == gateway.MethodWallet {
		if err := s.walletRepo.Debit(ctx, userUID, amount); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrInsufficientBalance
			}
			return nil, err
		}
		now := time.Now()
		d.Status = model.DepositStatusPaid
		d.PaidAt = &now
		d.GatewayRef = "wallet-" + uuid.NewString()
	} else {
		// The reference is deterministic per (auction, user) so the gateway
		// can collapse racing duplicate charges onto one.
		ref := fmt.Sprintf("dep-%d-%s", auctionID, userUID)
		res, err := s.gw.Charge(ctx, amount, method, ref)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
		}
		d.GatewayRef = res.TransactionID
		switch res.Status {
		case gateway.StatusApproved:
			now := time.Now()
			d.Status = model.DepositStatusPaid
			d.PaidAt = &now
		case gateway.StatusPending:
			d.Status = model.DepositStatusPending
		default:
			return nil, fmt.Errorf("%w: gateway returned %s", ErrPaymentFailed, res.Status)
		}
	}

	if err := s.depositRepo.Upsert(ctx, d); err != nil {
		return nil, err
	}
	out, err := s.depositRepo.FindByAuctionAndUser(ctx, auctionID, userUID)
	if err != nil {
		return d, nil
	}
	if out.Status == model.DepositStatusPaid {
		s.notify.Notify(ctx, userUID, model.NotificationDepositReceived,
			"Deposit received", fmt.Sprintf("Your deposit of %d is held for the auction.", amount),
			&auctionID, nil, map[string]interface{}{"amount": amount})
	}
	return out, nil
}

// ConfirmDeposit is the gateway's deferred-confirmation callback. Confirming
// an already-paid or consumed deposit is a no-op, not an error.
func (s *depositService) ConfirmDeposit(ctx context.Context, gatewayRef string) (*model.Deposit, error) {
	d, err := s.depositRepo.FindByGatewayRef(ctx, gatewayRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rows, err := s.depositRepo.MarkPaidIfPending(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	if rows > 0 {
		s.notify.Notify(ctx, d.UserUID, model.NotificationDepositReceived,
			"Deposit received", fmt.Sprintf("Your deposit of %d is held for the auction.", d.Amount),
			&d.AuctionID, nil, nil)
	}
	return s.depositRepo.FindByID(ctx, d.ID)
}

// RefundDeposit returns a paid deposit to the user's wallet. The guarded
// status write decides the race: a deposit refunds exactly once.
func (s *depositService) RefundDeposit(ctx context.Context, depositID uint64, reason, actorUID string) error {
	d, err := s.depositRepo.FindByID(ctx, depositID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if actorUID != SystemActor && actorUID != d.UserUID {
		return ErrForbidden
	}
	rows, err := s.depositRepo.MarkRefundedIfPaid(ctx, depositID, reason)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: deposit %d is %s", ErrDepositNotPaid, depositID, d.Status)
	}
	if err := s.walletRepo.Credit(ctx, d.UserUID, d.Amount); err != nil {
		log.WithFields(log.Fields{"deposit": depositID, "user": d.UserUID}).
			WithError(err).Error("wallet credit for refund failed")
		return err
	}
	s.notify.Notify(ctx, d.UserUID, model.NotificationDepositRefunded,
		"Deposit refunded", fmt.Sprintf("Your deposit of %d was returned to your wallet (%s).", d.Amount, reason),
		&d.AuctionID, nil, map[string]interface{}{"amount": d.Amount, "reason": reason})
	return nil
}

// SettleWinnerPayment charges the winner the final price minus their held
// deposit, consumes the deposit, opens the escrow transaction and completes
// the auction record.
func (s *depositService) SettleWinnerPayment(ctx context.Context, auctionID uint64, winnerUID string, method gateway.Method) (*model.EscrowTransaction, error) {
	if !method.Valid() {
		return nil, ErrInvalidMethod
	}
	a, err := s.auctionRepo.FindByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if a.Status != model.AuctionStatusEnded {
		return nil, ErrAuctionClosed
	}
	if a.CurrentBidderUID == nil || *a.CurrentBidderUID != winnerUID {
		return nil, ErrForbidden
	}
	finalPrice := a.CurrentPrice

	var deposit *model.Deposit
	var depositHeld int64
	if d, err := s.depositRepo.FindByAuctionAndUser(ctx, auctionID, winnerUID); err == nil {
		if d.Status == model.DepositStatusPaid {
			deposit = d
			depositHeld = d.Amount
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	amountDue := finalPrice - depositHeld
	paymentPending := false
	if amountDue > 0 {
		if method == gateway.MethodWallet {
			if err := s.walletRepo.Debit(ctx, winnerUID, amountDue); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, ErrInsufficientBalance
				}
				return nil, err
			}
		} else {
			res, err := s.gw.Charge(ctx, amountDue, method, fmt.Sprintf("settle-%d-%s", a.ID, winnerUID))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
			}
			paymentPending = res.Status == gateway.StatusPending
		}
	}

	if deposit != nil {
		if _, err := s.depositRepo.MarkUsedIfPaid(ctx, deposit.ID); err != nil {
			log.WithField("deposit", deposit.ID).WithError(err).Error("mark deposit used failed")
		}
	}

	t, err := s.settlement.OpenTransaction(ctx, OpenTransactionInput{
		AuctionID:      &a.ID,
		ListingID:      a.ListingID,
		BuyerUID:       winnerUID,
		SellerUID:      a.SellerUID,
		AgreedPrice:    finalPrice,
		EscrowedAmount: finalPrice,
		PaymentPending: paymentPending,
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.auctionRepo.SetStatusIf(ctx, a.ID, model.AuctionStatusEnded, model.AuctionStatusCompleted); err != nil {
		log.WithField("auction", a.ID).WithError(err).Error("complete auction failed")
	}
	return t, nil
}
