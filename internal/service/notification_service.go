package service

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/souqhub/auction-backend/internal/model"
	"github.com/souqhub/auction-backend/internal/notify"
	"github.com/souqhub/auction-backend/internal/repository"
)

type NotificationService interface {
	Notify(ctx context.Context, userUID string, typ model.NotificationType, title, body string, auctionID, escrowID *uint64, payload map[string]interface{})
	NotifyWatchers(ctx context.Context, auctionID uint64, event model.WatchEvent, title, body string, exceptUID string)
	List(ctx context.Context, userUID string, unreadOnly bool, limit, offset int) ([]model.Notification, int64, error)
	UnreadCount(ctx context.Context, userUID string) (int64, error)
	MarkRead(ctx context.Context, userUID string, id uint64) error
	MarkAllRead(ctx context.Context, userUID string) error
	Delete(ctx context.Context, userUID string, id uint64) error
	ClearAll(ctx context.Context, userUID string) error
}

type notificationService struct {
	repo      repository.NotificationRepository
	watchRepo repository.WatchlistRepository
	channels  []notify.Channel
}

func NewNotificationService(repo repository.NotificationRepository, watchRepo repository.WatchlistRepository, channels ...notify.Channel) NotificationService {
	return &notificationService{repo: repo, watchRepo: watchRepo, channels: channels}
}

// Notify persists the row first, then fans out to delivery channels off the
// caller's critical path. Channel failures are logged, never returned.
func (s *notificationService) Notify(ctx context.Context, userUID string, typ model.NotificationType, title, body string, auctionID, escrowID *uint64, payload map[string]interface{}) {
	if userUID == "" || typ == "" {
		return
	}
	var payloadJSON string
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			payloadJSON = string(raw)
		}
	}
	n := &model.Notification{
		UserUID:   userUID,
		Type:      typ,
		Title:     title,
		Body:      body,
		AuctionID: auctionID,
		EscrowID:  escrowID,
		Payload:   payloadJSON,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		log.WithFields(log.Fields{"user": userUID, "type": typ}).
			WithError(err).Error("persist notification failed")
		return
	}
	go s.deliver(userUID, typ, title, body)
}

func (s *notificationService) deliver(userUID string, typ model.NotificationType, title, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, ch := range s.channels {
		if err := ch.Send(ctx, userUID, title, body); err != nil {
			log.WithFields(log.Fields{"user": userUID, "type": typ, "channel": ch.Name()}).
				WithError(err).Warn("notification delivery failed")
		}
	}
}

// NotifyWatchers fans one auction event out to every subscriber whose flags
// match the event kind. exceptUID skips the actor who caused the event.
func (s *notificationService) NotifyWatchers(ctx context.Context, auctionID uint64, event model.WatchEvent, title, body string, exceptUID string) {
	entries, err := s.watchRepo.ListByAuction(ctx, auctionID)
	if err != nil {
		log.WithField("auction", auctionID).WithError(err).Warn("watchlist fanout failed")
		return
	}
	for i := range entries {
		w := &entries[i]
		if w.UserUID == exceptUID || !w.Wants(event) {
			continue
		}
		s.Notify(ctx, w.UserUID, model.NotificationWatchlistUpdate, title, body, &auctionID, nil,
			map[string]interface{}{"event": string(event)})
	}
}

func (s *notificationService) List(ctx context.Context, userUID string, unreadOnly bool, limit, offset int) ([]model.Notification, int64, error) {
	if userUID == "" {
		return nil, 0, nil
	}
	list, err := s.repo.ListByUser(ctx, userUID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	cnt, err := s.repo.CountUnread(ctx, userUID)
	if err != nil {
		return list, 0, err
	}
	return list, cnt, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userUID string) (int64, error) {
	if userUID == "" {
		return 0, nil
	}
	return s.repo.CountUnread(ctx, userUID)
}

func (s *notificationService) MarkRead(ctx context.Context, userUID string, id uint64) error {
	if userUID == "" || id == 0 {
		return nil
	}
	return s.repo.MarkRead(ctx, userUID, id)
}

func (s *notificationService) MarkAllRead(ctx context.Context, userUID string) error {
	if userUID == "" {
		return nil
	}
	return s.repo.MarkAllRead(ctx, userUID)
}

func (s *notificationService) Delete(ctx context.Context, userUID string, id uint64) error {
	if userUID == "" || id == 0 {
		return nil
	}
	return s.repo.Delete(ctx, userUID, id)
}

func (s *notificationService) ClearAll(ctx context.Context, userUID string) error {
	if userUID == "" {
		return nil
	}
	return s.repo.ClearAll(ctx, userUID)
}
