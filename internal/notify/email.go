package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/souqhub/auction-backend/internal/identity"
)

type emailChannel struct {
	addr      string
	from      string
	auth      smtp.Auth
	directory identity.Directory
}

// NewEmail resolves the recipient address through the read-only profile
// directory and relays over plain SMTP. There is no delivery receipt.
func NewEmail(addr, from, username, password string, directory identity.Directory) Channel {
	var auth smtp.Auth
	if username != "" {
		host := addr
		for i := 0; i < len(addr); i++ {
			if addr[i] == ':' {
				host = addr[:i]
				break
			}
		}
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &emailChannel{addr: addr, from: from, auth: auth, directory: directory}
}

func (e *emailChannel) Name() string {
	return "email"
}

func (e *emailChannel) Send(ctx context.Context, userUID, title, body string) error {
	contact, err := e.directory.Contact(ctx, userUID)
	if err != nil {
		return fmt.Errorf("resolve recipient %s: %w", userUID, err)
	}
	if contact.Email == "" {
		return fmt.Errorf("no email on file for %s", userUID)
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", e.from, contact.Email, title, body)
	return smtp.SendMail(e.addr, e.auth, e.from, []string{contact.Email}, []byte(msg))
}
