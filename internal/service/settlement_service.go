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

// SystemActor marks transitions driven by the scheduler or gateway callbacks
// rather than a party to the transaction.
const SystemActor = "system"

type DisputeOutcome string

const (
	DisputeOutcomeRelease DisputeOutcome = "release"
	DisputeOutcomeRefund  DisputeOutcome = "refund"
	DisputeOutcomeSplit   DisputeOutcome = "split"
)

type OpenTransactionInput struct {
	AuctionID      *uint64
	ListingID      uint64
	BuyerUID       string
	SellerUID      string
	AgreedPrice    int64
	EscrowedAmount int64
	DeliveryMethod string
	PaymentPending bool
}

type ResolveDisputeInput struct {
	Outcome      DisputeOutcome
	SellerAmount int64
	BuyerAmount  int64
	Note         string
}

type SettlementService interface {
	OpenTransaction(ctx context.Context, in OpenTransactionInput) (*model.EscrowTransaction, error)
	Get(ctx context.Context, id uint64, uid string) (*model.EscrowTransaction, error)
	ListMine(ctx context.Context, uid string) ([]model.EscrowTransaction, error)
	ConfirmPayment(ctx context.Context, id uint64) (*model.EscrowTransaction, error)
	MarkShipped(ctx context.Context, id uint64, sellerUID, carrierNote string) (*model.EscrowTransaction, error)
	ConfirmDelivery(ctx context.Context, id uint64, buyerUID string) (*model.EscrowTransaction, error)
	ReleaseEscrow(ctx context.Context, id uint64, actorUID string) (*model.EscrowTransaction, error)
	OpenDispute(ctx context.Context, id uint64, actorUID, reason string) (*model.EscrowTransaction, error)
	ResolveDispute(ctx context.Context, id uint64, in ResolveDisputeInput) (*model.EscrowTransaction, error)
	Cancel(ctx context.Context, id uint64, actorUID string) (*model.EscrowTransaction, error)
	ReleaseDue(ctx context.Context) error
}

type settlementService struct {
	escrowRepo       repository.EscrowRepository
	walletRepo       repository.WalletRepository
	notify           NotificationService
	inspectionWindow time.Duration
}

func NewSettlementService(escrowRepo repository.EscrowRepository, walletRepo repository.WalletRepository, notify NotificationService, inspectionWindow time.Duration) SettlementService {
	if inspectionWindow <= 0 {
		inspectionWindow = 5 * 24 * time.Hour
	}
	return &settlementService{
		escrowRepo:       escrowRepo,
		walletRepo:       walletRepo,
		notify:           notify,
		inspectionWindow: inspectionWindow,
	}
}

func (s *settlementService) OpenTransaction(ctx context.Context, in OpenTransactionInput) (*model.EscrowTransaction, error) {
	if in.BuyerUID == "" || in.SellerUID == "" {
		return nil, errors.New("buyer and seller are required")
	}
	if in.BuyerUID == in.SellerUID {
		return nil, errors.New("buyer and seller must differ")
	}
	if in.AgreedPrice <= 0 {
		return nil, errors.New("agreed price must be positive")
	}
	status := model.EscrowStatusPaymentReceived
	escrowed := in.EscrowedAmount
	if in.PaymentPending {
		status = model.EscrowStatusPendingPayment
		escrowed = 0
	}
	t := &model.EscrowTransaction{
		AuctionID:      in.AuctionID,
		ListingID:      in.ListingID,
		BuyerUID:       in.BuyerUID,
		SellerUID:      in.SellerUID,
		AgreedPrice:    in.AgreedPrice,
		EscrowedAmount: escrowed,
		DeliveryMethod: in.DeliveryMethod,
		Status:         status,
	}
	if err := s.escrowRepo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *settlementService) Get(ctx context.Context, id uint64, uid string) (*model.EscrowTransaction, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if uid != "" && uid != t.BuyerUID && uid != t.SellerUID {
		return nil, ErrForbidden
	}
	return t, nil
}

func (s *settlementService) ListMine(ctx context.Context, uid string) ([]model.EscrowTransaction, error) {
	if uid == "" {
		return nil, errors.New("uid is required")
	}
	return s.escrowRepo.ListByUser(ctx, uid)
}

func (s *settlementService) load(ctx context.Context, id uint64) (*model.EscrowTransaction, error) {
	t, err := s.escrowRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// ConfirmPayment moves a deferred-method transaction to payment_received and
// escrows the agreed price. Re-confirming an already-paid transaction is a
// no-op.
func (s *settlementService) ConfirmPayment(ctx context.Context, id uint64) (*model.EscrowTransaction, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != model.EscrowStatusPendingPayment {
		return t, nil
	}
	rows, err := s.escrowRepo.UpdateStatusIf(ctx, id, model.EscrowStatusPendingPayment, model.EscrowStatusPaymentReceived,
		map[string]interface{}{"escrowed_amount": t.AgreedPrice})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return s.load(ctx, id)
	}
	return s.load(ctx, id)
}

func (s *settlementService) MarkShipped(ctx context.Context, id uint64, sellerUID, carrierNote string) (*model.EscrowTransaction, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.SellerUID != sellerUID {
		return nil, ErrForbidden
	}
	from := t.Status
	if from != model.EscrowStatusPaymentReceived && from != model.EscrowStatusPendingShipment {
		return nil, transitionError(from, model.EscrowStatusShipped)
	}
	now := time.Now()
	rows, err := s.escrowRepo.UpdateStatusIf(ctx, id, from, model.EscrowStatusShipped,
		map[string]interface{}{"carrier_note": carrierNote, "shipped_at": now})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, transitionError(from, model.EscrowStatusShipped)
	}
	s.notify.Notify(ctx, t.BuyerUID, model.NotificationWatchlistUpdate,
		"Item shipped", "The seller marked your item as shipped.", t.AuctionID, &t.ID, nil)
	return s.load(ctx, id)
}

// ConfirmDelivery records receipt and starts the inspection clock.
func (s *settlementService) ConfirmDelivery(ctx context.Context, id uint64, buyerUID string) (*model.EscrowTransaction, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.BuyerUID != buyerUID {
		return nil, ErrForbidden
	}
	now := time.Now()
	switch t.Status {
	case model.EscrowStatusInInspection:
		return t, nil
	case model.EscrowStatusShipped:
		rows, err := s.escrowRepo.UpdateStatusIf(ctx, id, model.EscrowStatusShipped, model.EscrowStatusDelivered,
			map[string]interface{}{"delivered_at": now})
		if err != nil {
			return nil, err
		}
		if rows == 0 {
			return nil, transitionError(t.Status, model.EscrowStatusDelivered)
		}
	case model.EscrowStatusDelivered:
		// A previous confirm recorded delivery but died before starting the
		// inspection clock; resume from here.
	default:
		return nil, transitionError(t.Status, model.EscrowStatusDelivered)
	}
	deadline := now.Add(s.inspectionWindow)
	if _, err := s.escrowRepo.UpdateStatusIf(ctx, id, model.EscrowStatusDelivered, model.EscrowStatusInInspection,
		map[string]interface{}{"inspection_deadline": deadline}); err != nil {
		return nil, err
	}
	s.notify.Notify(ctx, t.SellerUID, model.NotificationWatchlistUpdate,
		"Delivery confirmed", "The buyer received the item. Inspection has started.", t.AuctionID, &t.ID, nil)
	return s.load(ctx, id)
}

// ReleaseEscrow pays the seller. Idempotent: releasing an already-completed
// transaction succeeds without a second fund movement.
func (s *settlementService) ReleaseEscrow(ctx context.Context, id uint64, actorUID string) (*model.EscrowTransaction, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorUID != SystemActor && actorUID != t.BuyerUID {
		return nil, ErrForbidden
	}
	if t.Status == model.EscrowStatusCompleted {
		return t, nil
	}
	if t.Status != model.EscrowStatusInInspection {
		return nil, transitionError(t.Status, model.EscrowStatusCompleted)
	}
	now := time.Now()
	rows, err := s.escrowRepo.UpdateStatusIf(ctx, id, model.EscrowStatusInInspection, model.EscrowStatusCompleted,
		map[string]interface{}{"completed_at": now})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// Someone else moved it; re-release of a completed row is a no-op.
		fresh, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if fresh.Status == model.EscrowStatusCompleted {
			return fresh, nil
		}
		return nil, transitionError(fresh.Status, model.EscrowStatusCompleted)
	}
	s.creditSeller(ctx, t, t.EscrowedAmount)
	return s.load(ctx, id)
}

func (s *settlementService) OpenDispute(ctx context.Context, id uint64, actorUID, reason string) (*model.EscrowTransaction, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorUID != t.BuyerUID && actorUID != t.SellerUID {
		return nil, ErrForbidden
	}
	if t.Status != model.EscrowStatusInInspection {
		return nil, transitionError(t.Status, model.EscrowStatusDisputed)
	}
	rows, err := s.escrowRepo.UpdateStatusIf(ctx, id, model.EscrowStatusInInspection, model.EscrowStatusDisputed,
		map[string]interface{}{"dispute_open": true, "dispute_reason": reason})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, transitionError(t.Status, model.EscrowStatusDisputed)
	}
	other := t.SellerUID
	if actorUID == t.SellerUID {
		other = t.BuyerUID
	}
	s.notify.Notify(ctx, other, model.NotificationDisputeOpened,
		"Dispute opened", "The other party opened a dispute. Funds are frozen pending arbitration.",
		t.AuctionID, &t.ID, map[string]interface{}{"reason": reason})
	return s.load(ctx, id)
}

// ResolveDispute applies an external arbitration outcome. Split amounts must
// sum to the escrowed amount; every other shape is rejected before any fund
// movement.
func (s *settlementService) ResolveDispute(ctx context.Context, id uint64, in ResolveDisputeInput) (*model.EscrowTransaction, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != model.EscrowStatusDisputed || !t.DisputeOpen {
		return nil, ErrDisputeNotOpen
	}

	var next model.EscrowStatus
	var sellerAmount, buyerAmount int64
	switch in.Outcome {
	case DisputeOutcomeRelease:
		next, sellerAmount = model.EscrowStatusCompleted, t.EscrowedAmount
	case DisputeOutcomeRefund:
		next, buyerAmount = model.EscrowStatusRefunded, t.EscrowedAmount
	case DisputeOutcomeSplit:
		if in.SellerAmount < 0 || in.BuyerAmount < 0 || in.SellerAmount+in.BuyerAmount != t.EscrowedAmount {
			return nil, ErrSplitMismatch
		}
		next, sellerAmount, buyerAmount = model.EscrowStatusCompleted, in.SellerAmount, in.BuyerAmount
	default:
		return nil, fmt.Errorf("unknown dispute outcome %q", in.Outcome)
	}

	now := time.Now()
	rows, err := s.escrowRepo.UpdateStatusIf(ctx, id, model.EscrowStatusDisputed, next,
		map[string]interface{}{"dispute_open": false, "completed_at": now})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrDisputeNotOpen
	}
	if sellerAmount > 0 {
		s.creditSeller(ctx, t, sellerAmount)
	}
	if buyerAmount > 0 {
		s.creditBuyer(ctx, t, buyerAmount)
	}
	body := fmt.Sprintf("Arbitration resolved the dispute: %s.", in.Outcome)
	s.notify.Notify(ctx, t.BuyerUID, model.NotificationDisputeResolved, "Dispute resolved", body, t.AuctionID, &t.ID, nil)
	s.notify.Notify(ctx, t.SellerUID, model.NotificationDisputeResolved, "Dispute resolved", body, t.AuctionID, &t.ID, nil)
	return s.load(ctx, id)
}

// Cancel aborts a transaction before shipment and returns any escrowed funds
// to the buyer. Idempotent once cancelled.
func (s *settlementService) Cancel(ctx context.Context, id uint64, actorUID string) (*model.EscrowTransaction, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorUID != SystemActor && actorUID != t.BuyerUID && actorUID != t.SellerUID {
		return nil, ErrForbidden
	}
	if t.Status == model.EscrowStatusCancelled {
		return t, nil
	}
	if !t.Status.PreShipment() {
		return nil, transitionError(t.Status, model.EscrowStatusCancelled)
	}
	rows, err := s.escrowRepo.UpdateStatusIf(ctx, id, t.Status, model.EscrowStatusCancelled, nil)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		fresh, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if fresh.Status == model.EscrowStatusCancelled {
			return fresh, nil
		}
		return nil, transitionError(fresh.Status, model.EscrowStatusCancelled)
	}
	if t.EscrowedAmount > 0 {
		s.creditBuyer(ctx, t, t.EscrowedAmount)
	}
	return s.load(ctx, id)
}

// ReleaseDue auto-releases inspections whose deadline passed with no open
// dispute. Each release goes through the same guarded transition as a manual
// one.
func (s *settlementService) ReleaseDue(ctx context.Context) error {
	due, err := s.escrowRepo.ListDueForRelease(ctx, time.Now())
	if err != nil {
		return err
	}
	for i := range due {
		if _, err := s.ReleaseEscrow(ctx, due[i].ID, SystemActor); err != nil {
			log.WithField("escrow", due[i].ID).WithError(err).Error("auto release failed")
		}
	}
	return nil
}

func (s *settlementService) creditSeller(ctx context.Context, t *model.EscrowTransaction, amount int64) {
	if err := s.walletRepo.Credit(ctx, t.SellerUID, amount); err != nil {
		log.WithFields(log.Fields{"escrow": t.ID, "seller": t.SellerUID}).
			WithError(err).Error("credit seller failed")
	}
}

func (s *settlementService) creditBuyer(ctx context.Context, t *model.EscrowTransaction, amount int64) {
	if err := s.walletRepo.Credit(ctx, t.BuyerUID, amount); err != nil {
		log.WithFields(log.Fields{"escrow": t.ID, "buyer": t.BuyerUID}).
			WithError(err).Error("credit buyer failed")
	}
}

func transitionError(from, to model.EscrowStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
