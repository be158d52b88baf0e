package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/souqhub/auction-backend/internal/gateway"
	"github.com/souqhub/auction-backend/internal/model"
	"gorm.io/gorm"
)

// In-memory fakes of the repository interfaces. They reproduce the
// conditional-write semantics the services rely on (rows affected, unique
// pairs, version guards) without a database.

type fakeAuctionRepo struct {
	mu       sync.Mutex
	auctions map[uint64]*model.Auction
	nextID   uint64

	// failCommits forces the next n CommitBid/BumpVersion calls to lose the
	// race, to exercise the retry path.
	failCommits int
}

func newFakeAuctionRepo() *fakeAuctionRepo {
	return &fakeAuctionRepo{auctions: map[uint64]*model.Auction{}}
}

func (r *fakeAuctionRepo) add(a *model.Auction) *model.Auction {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	a.ID = r.nextID
	cp := *a
	r.auctions[a.ID] = &cp
	return a
}

func (r *fakeAuctionRepo) Create(_ context.Context, a *model.Auction) error {
	r.add(a)
	return nil
}

func (r *fakeAuctionRepo) FindByID(_ context.Context, id uint64) (*model.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAuctionRepo) ListOpen(_ context.Context, _, _ int) ([]model.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Auction
	for _, a := range r.auctions {
		if a.Status == model.AuctionStatusActive {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAuctionRepo) ListExpired(_ context.Context, now time.Time) ([]model.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Auction
	for _, a := range r.auctions {
		if a.Status == model.AuctionStatusActive && !a.EndAt.After(now) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAuctionRepo) ListEndingSoon(_ context.Context, now time.Time, within time.Duration) ([]model.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Auction
	for _, a := range r.auctions {
		if a.Status == model.AuctionStatusActive && !a.EndingNotified &&
			a.EndAt.After(now) && !a.EndAt.After(now.Add(within)) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAuctionRepo) CommitBid(_ context.Context, id, expectedVersion uint64, price int64, bidderUID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCommits > 0 {
		r.failCommits--
		return 0, nil
	}
	a, ok := r.auctions[id]
	if !ok || a.Version != expectedVersion || a.Status != model.AuctionStatusActive {
		return 0, nil
	}
	a.CurrentPrice = price
	uid := bidderUID
	a.CurrentBidderUID = &uid
	a.BidCount++
	a.Version++
	return 1, nil
}

func (r *fakeAuctionRepo) BumpVersion(_ context.Context, id, expectedVersion uint64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCommits > 0 {
		r.failCommits--
		return 0, nil
	}
	a, ok := r.auctions[id]
	if !ok || a.Version != expectedVersion || a.Status != model.AuctionStatusActive {
		return 0, nil
	}
	a.BidCount++
	a.Version++
	return 1, nil
}

func (r *fakeAuctionRepo) MarkReserveMet(_ context.Context, id uint64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok || a.ReserveMet {
		return 0, nil
	}
	a.ReserveMet = true
	return 1, nil
}

func (r *fakeAuctionRepo) MarkEndingNotified(_ context.Context, id uint64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok || a.EndingNotified {
		return 0, nil
	}
	a.EndingNotified = true
	return 1, nil
}

func (r *fakeAuctionRepo) CloseIfActive(_ context.Context, id uint64, status model.AuctionStatus, finalPrice int64, winnerUID *string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok || a.Status != model.AuctionStatusActive {
		return 0, nil
	}
	a.Status = status
	a.CurrentPrice = finalPrice
	a.CurrentBidderUID = winnerUID
	a.Version++
	return 1, nil
}

func (r *fakeAuctionRepo) SetStatusIf(_ context.Context, id uint64, expected, next model.AuctionStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok || a.Status != expected {
		return 0, nil
	}
	a.Status = next
	return 1, nil
}

func (r *fakeAuctionRepo) SetDB(*gorm.DB) {}

type fakeBidRepo struct {
	mu     sync.Mutex
	bids   []*model.Bid
	nextID uint64
}

func newFakeBidRepo() *fakeBidRepo {
	return &fakeBidRepo{}
}

func (r *fakeBidRepo) Create(_ context.Context, b *model.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	b.ID = r.nextID
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	cp := *b
	r.bids = append(r.bids, &cp)
	return nil
}

func (r *fakeBidRepo) ListByAuction(_ context.Context, auctionID uint64) ([]model.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Bid
	for _, b := range r.bids {
		if b.AuctionID == auctionID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *fakeBidRepo) ListBidderUIDs(_ context.Context, auctionID uint64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, b := range r.bids {
		if b.AuctionID == auctionID && !seen[b.BidderUID] {
			seen[b.BidderUID] = true
			out = append(out, b.BidderUID)
		}
	}
	return out, nil
}

func (r *fakeBidRepo) TopSealed(_ context.Context, auctionID uint64) (*model.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sealed []*model.Bid
	for _, b := range r.bids {
		if b.AuctionID == auctionID && b.Sealed {
			sealed = append(sealed, b)
		}
	}
	if len(sealed) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	sort.Slice(sealed, func(i, j int) bool {
		if sealed[i].Amount != sealed[j].Amount {
			return sealed[i].Amount > sealed[j].Amount
		}
		if !sealed[i].CreatedAt.Equal(sealed[j].CreatedAt) {
			return sealed[i].CreatedAt.Before(sealed[j].CreatedAt)
		}
		return sealed[i].ID < sealed[j].ID
	})
	cp := *sealed[0]
	return &cp, nil
}

func (r *fakeBidRepo) SwapWinning(_ context.Context, auctionID, bidID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bids {
		if b.AuctionID == auctionID {
			b.Winning = b.ID == bidID
		}
	}
	return nil
}

func (r *fakeBidRepo) winningCount(auctionID uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.bids {
		if b.AuctionID == auctionID && b.Winning {
			n++
		}
	}
	return n
}

func (r *fakeBidRepo) SetDB(*gorm.DB) {}

type depositKey struct {
	auctionID uint64
	userUID   string
}

type fakeDepositRepo struct {
	mu       sync.Mutex
	deposits map[depositKey]*model.Deposit
	nextID   uint64
}

func newFakeDepositRepo() *fakeDepositRepo {
	return &fakeDepositRepo{deposits: map[depositKey]*model.Deposit{}}
}

func (r *fakeDepositRepo) Upsert(_ context.Context, d *model.Deposit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := depositKey{d.AuctionID, d.UserUID}
	if existing, ok := r.deposits[key]; ok {
		existing.Amount = d.Amount
		existing.Status = d.Status
		existing.Method = d.Method
		existing.GatewayRef = d.GatewayRef
		existing.PaidAt = d.PaidAt
		d.ID = existing.ID
		return nil
	}
	r.nextID++
	d.ID = r.nextID
	cp := *d
	r.deposits[key] = &cp
	return nil
}

func (r *fakeDepositRepo) FindByID(_ context.Context, id uint64) (*model.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.deposits {
		if d.ID == id {
			cp := *d
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeDepositRepo) FindByAuctionAndUser(_ context.Context, auctionID uint64, userUID string) (*model.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deposits[depositKey{auctionID, userUID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDepositRepo) FindByGatewayRef(_ context.Context, ref string) (*model.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.deposits {
		if d.GatewayRef == ref {
			cp := *d
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeDepositRepo) ListPaidByAuction(_ context.Context, auctionID uint64) ([]model.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Deposit
	for _, d := range r.deposits {
		if d.AuctionID == auctionID && d.Status == model.DepositStatusPaid {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *fakeDepositRepo) MarkPaidIfPending(_ context.Context, id uint64) (int64, error) {
	return r.transition(id, model.DepositStatusPending, model.DepositStatusPaid, "")
}

func (r *fakeDepositRepo) MarkUsedIfPaid(_ context.Context, id uint64) (int64, error) {
	return r.transition(id, model.DepositStatusPaid, model.DepositStatusUsed, "")
}

func (r *fakeDepositRepo) MarkRefundedIfPaid(_ context.Context, id uint64, reason string) (int64, error) {
	return r.transition(id, model.DepositStatusPaid, model.DepositStatusRefunded, reason)
}

func (r *fakeDepositRepo) transition(id uint64, from, to model.DepositStatus, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.deposits {
		if d.ID != id {
			continue
		}
		if d.Status != from {
			return 0, nil
		}
		d.Status = to
		now := time.Now()
		switch to {
		case model.DepositStatusPaid:
			d.PaidAt = &now
		case model.DepositStatusRefunded:
			d.RefundedAt = &now
			d.RefundReason = reason
		}
		return 1, nil
	}
	return 0, nil
}

func (r *fakeDepositRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deposits)
}

func (r *fakeDepositRepo) SetDB(*gorm.DB) {}

type fakeEscrowRepo struct {
	mu     sync.Mutex
	txns   map[uint64]*model.EscrowTransaction
	nextID uint64
}

func newFakeEscrowRepo() *fakeEscrowRepo {
	return &fakeEscrowRepo{txns: map[uint64]*model.EscrowTransaction{}}
}

func (r *fakeEscrowRepo) Create(_ context.Context, t *model.EscrowTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	t.ID = r.nextID
	cp := *t
	r.txns[t.ID] = &cp
	return nil
}

func (r *fakeEscrowRepo) FindByID(_ context.Context, id uint64) (*model.EscrowTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeEscrowRepo) FindByAuction(_ context.Context, auctionID uint64) (*model.EscrowTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.txns {
		if t.AuctionID != nil && *t.AuctionID == auctionID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeEscrowRepo) ListByUser(_ context.Context, uid string) ([]model.EscrowTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.EscrowTransaction
	for _, t := range r.txns {
		if t.BuyerUID == uid || t.SellerUID == uid {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeEscrowRepo) UpdateStatusIf(_ context.Context, id uint64, expected, next model.EscrowStatus, extra map[string]interface{}) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[id]
	if !ok || t.Status != expected {
		return 0, nil
	}
	t.Status = next
	for k, v := range extra {
		switch k {
		case "escrowed_amount":
			t.EscrowedAmount = v.(int64)
		case "carrier_note":
			t.CarrierNote = v.(string)
		case "shipped_at":
			ts := v.(time.Time)
			t.ShippedAt = &ts
		case "delivered_at":
			ts := v.(time.Time)
			t.DeliveredAt = &ts
		case "inspection_deadline":
			ts := v.(time.Time)
			t.InspectionDeadline = &ts
		case "dispute_open":
			t.DisputeOpen = v.(bool)
		case "dispute_reason":
			t.DisputeReason = v.(string)
		case "completed_at":
			ts := v.(time.Time)
			t.CompletedAt = &ts
		}
	}
	return 1, nil
}

func (r *fakeEscrowRepo) ListDueForRelease(_ context.Context, now time.Time) ([]model.EscrowTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.EscrowTransaction
	for _, t := range r.txns {
		if t.Status == model.EscrowStatusInInspection && !t.DisputeOpen &&
			t.InspectionDeadline != nil && !t.InspectionDeadline.After(now) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeEscrowRepo) SetDB(*gorm.DB) {}

type fakeWalletRepo struct {
	mu       sync.Mutex
	balances map[string]int64
	credits  map[string]int
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{balances: map[string]int64{}, credits: map[string]int{}}
}

func (r *fakeWalletRepo) Credit(_ context.Context, uid string, cents int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[uid] += cents
	r.credits[uid]++
	return nil
}

func (r *fakeWalletRepo) Debit(_ context.Context, uid string, cents int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.balances[uid] < cents {
		return gorm.ErrRecordNotFound
	}
	r.balances[uid] -= cents
	return nil
}

func (r *fakeWalletRepo) Get(_ context.Context, uid string) (*model.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &model.Wallet{UID: uid, BalanceCents: r.balances[uid]}, nil
}

func (r *fakeWalletRepo) balance(uid string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[uid]
}

func (r *fakeWalletRepo) creditCount(uid string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.credits[uid]
}

func (r *fakeWalletRepo) SetDB(*gorm.DB) {}

type fakeNotificationRepo struct {
	mu     sync.Mutex
	rows   []*model.Notification
	nextID uint64
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{}
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	n.ID = r.nextID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	cp := *n
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeNotificationRepo) ListByUser(_ context.Context, userUID string, unreadOnly bool, limit, offset int) ([]model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, n := range r.rows {
		if n.UserUID != userUID {
			continue
		}
		if unreadOnly && n.ReadAt != nil {
			continue
		}
		out = append(out, *n)
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, userUID string, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, n := range r.rows {
		if n.ID == id && n.UserUID == userUID && n.ReadAt == nil {
			n.ReadAt = &now
		}
	}
	return nil
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, userUID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, n := range r.rows {
		if n.UserUID == userUID && n.ReadAt == nil {
			n.ReadAt = &now
		}
	}
	return nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, userUID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var cnt int64
	for _, n := range r.rows {
		if n.UserUID == userUID && n.ReadAt == nil {
			cnt++
		}
	}
	return cnt, nil
}

func (r *fakeNotificationRepo) Delete(_ context.Context, userUID string, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.rows[:0]
	for _, n := range r.rows {
		if !(n.ID == id && n.UserUID == userUID) {
			out = append(out, n)
		}
	}
	r.rows = out
	return nil
}

func (r *fakeNotificationRepo) ClearAll(_ context.Context, userUID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.rows[:0]
	for _, n := range r.rows {
		if n.UserUID != userUID {
			out = append(out, n)
		}
	}
	r.rows = out
	return nil
}

func (r *fakeNotificationRepo) byType(userUID string, typ model.NotificationType) []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, n := range r.rows {
		if n.UserUID == userUID && n.Type == typ {
			out = append(out, *n)
		}
	}
	return out
}

func (r *fakeNotificationRepo) SetDB(*gorm.DB) {}

type fakeWatchlistRepo struct {
	mu      sync.Mutex
	entries []*model.WatchlistEntry
}

func newFakeWatchlistRepo() *fakeWatchlistRepo {
	return &fakeWatchlistRepo{}
}

func (r *fakeWatchlistRepo) Add(_ context.Context, w *model.WatchlistEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *fakeWatchlistRepo) Remove(_ context.Context, userUID string, auctionID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.entries[:0]
	for _, w := range r.entries {
		if !(w.UserUID == userUID && w.AuctionID == auctionID) {
			out = append(out, w)
		}
	}
	r.entries = out
	return nil
}

func (r *fakeWatchlistRepo) ListByAuction(_ context.Context, auctionID uint64) ([]model.WatchlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.WatchlistEntry
	for _, w := range r.entries {
		if w.AuctionID == auctionID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (r *fakeWatchlistRepo) ListByUser(_ context.Context, userUID string) ([]model.WatchlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.WatchlistEntry
	for _, w := range r.entries {
		if w.UserUID == userUID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (r *fakeWatchlistRepo) SetDB(*gorm.DB) {}

type fakeListingRepo struct {
	mu       sync.Mutex
	listings map[uint64]*model.Listing
	nextID   uint64
}

func newFakeListingRepo() *fakeListingRepo {
	return &fakeListingRepo{listings: map[uint64]*model.Listing{}}
}

func (r *fakeListingRepo) Create(_ context.Context, l *model.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	l.ID = r.nextID
	cp := *l
	r.listings[l.ID] = &cp
	return nil
}

func (r *fakeListingRepo) FindByID(_ context.Context, id uint64) (*model.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *fakeListingRepo) SetDB(*gorm.DB) {}

// fakeGateway scripts charge results per method.
type fakeGateway struct {
	mu      sync.Mutex
	status  gateway.Status
	err     error
	charges []fakeCharge
	lastRef string
}

type fakeCharge struct {
	amount int64
	method gateway.Method
	ref    string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{status: gateway.StatusApproved}
}

func (g *fakeGateway) Charge(_ context.Context, amount int64, method gateway.Method, ref string) (gateway.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return gateway.Result{}, g.err
	}
	g.charges = append(g.charges, fakeCharge{amount: amount, method: method, ref: ref})
	g.lastRef = fmt.Sprintf("txn-%d", len(g.charges))
	return gateway.Result{TransactionID: g.lastRef, Status: g.status}, nil
}

func (g *fakeGateway) CheckStatus(_ context.Context, _ string) (gateway.Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status, nil
}
