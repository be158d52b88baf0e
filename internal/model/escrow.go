package model

import "time"

type EscrowStatus string

const (
	EscrowStatusPendingPayment  EscrowStatus = "pending_payment"
	EscrowStatusPaymentReceived EscrowStatus = "payment_received"
	EscrowStatusPendingShipment EscrowStatus = "pending_shipment"
	EscrowStatusShipped         EscrowStatus = "shipped"
	EscrowStatusDelivered       EscrowStatus = "delivered"
	EscrowStatusInInspection    EscrowStatus = "in_inspection"
	EscrowStatusCompleted       EscrowStatus = "completed"
	EscrowStatusDisputed        EscrowStatus = "disputed"
	EscrowStatusRefunded        EscrowStatus = "refunded"
	EscrowStatusCancelled       EscrowStatus = "cancelled"
)

// escrowTransitions is the single source of truth for legal lifecycle edges.
var escrowTransitions = map[EscrowStatus][]EscrowStatus{
	EscrowStatusPendingPayment:  {EscrowStatusPaymentReceived, EscrowStatusCancelled},
	EscrowStatusPaymentReceived: {EscrowStatusPendingShipment, EscrowStatusShipped, EscrowStatusCancelled},
	EscrowStatusPendingShipment: {EscrowStatusShipped, EscrowStatusCancelled},
	EscrowStatusShipped:         {EscrowStatusDelivered},
	EscrowStatusDelivered:       {EscrowStatusInInspection},
	EscrowStatusInInspection:    {EscrowStatusCompleted, EscrowStatusDisputed},
	EscrowStatusDisputed:        {EscrowStatusCompleted, EscrowStatusRefunded},
}

// CanTransitionTo reports whether next is a legal edge from s. Terminal
// states have no outgoing edges.
func (s EscrowStatus) CanTransitionTo(next EscrowStatus) bool {
	for _, n := range escrowTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the lifecycle ends at s.
func (s EscrowStatus) Terminal() bool {
	switch s {
	case EscrowStatusCompleted, EscrowStatusRefunded, EscrowStatusCancelled:
		return true
	}
	return false
}

// PreShipment reports whether s may still be cancelled by either party.
func (s EscrowStatus) PreShipment() bool {
	switch s {
	case EscrowStatusPendingPayment, EscrowStatusPaymentReceived, EscrowStatusPendingShipment:
		return true
	}
	return false
}

// EscrowTransaction is the multi-party settlement record opened once a sale
// is awarded. AuctionID is nil for direct or barter sales. Funds move exactly
// once: to the seller on completed, back to the buyer on refunded/cancelled.
type EscrowTransaction struct {
	ID                 uint64       `gorm:"primaryKey;autoIncrement"`
	AuctionID          *uint64      `gorm:"column:auction_id;index"`
	ListingID          uint64       `gorm:"column:listing_id;index;not null"`
	BuyerUID           string       `gorm:"column:buyer_uid;size:128;index;not null"`
	SellerUID          string       `gorm:"column:seller_uid;size:128;index;not null"`
	AgreedPrice        int64        `gorm:"column:agreed_price;not null"`
	EscrowedAmount     int64        `gorm:"column:escrowed_amount;not null"`
	DeliveryMethod     string       `gorm:"column:delivery_method;size:32"`
	CarrierNote        string       `gorm:"column:carrier_note;type:text"`
	InspectionDeadline *time.Time   `gorm:"column:inspection_deadline;index"`
	DisputeOpen        bool         `gorm:"column:dispute_open;not null;default:false"`
	DisputeReason      string       `gorm:"column:dispute_reason;type:text"`
	Status             EscrowStatus `gorm:"column:status;size:24;index;not null"`
	ShippedAt          *time.Time   `gorm:"column:shipped_at"`
	DeliveredAt        *time.Time   `gorm:"column:delivered_at"`
	CompletedAt        *time.Time   `gorm:"column:completed_at"`
	CreatedAt          time.Time    `gorm:"autoCreateTime"`
	UpdatedAt          time.Time    `gorm:"autoUpdateTime"`
}

func (EscrowTransaction) TableName() string {
	return "escrow_transactions"
}
