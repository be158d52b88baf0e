package notify

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
)

type pushChannel struct {
	client *messaging.Client
}

// NewPush sends via FCM. Clients subscribe to a per-user topic when they
// register for push, so no device-token bookkeeping happens server side.
func NewPush(ctx context.Context, app *firebase.App) (Channel, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, err
	}
	return &pushChannel{client: client}, nil
}

func (p *pushChannel) Name() string {
	return "push"
}

func (p *pushChannel) Send(ctx context.Context, userUID, title, body string) error {
	_, err := p.client.Send(ctx, &messaging.Message{
		Topic: "user-" + userUID,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	})
	return err
}
