package notify

import "context"

// Channel delivers one message to one user. Delivery is fire-and-forget:
// callers log errors and move on, never roll back.
type Channel interface {
	Name() string
	Send(ctx context.Context, userUID, title, body string) error
}
