// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "context"

//go:generate mockgen -destination=mocks/mailbox.go -package=mocks . MailboxClient

// MailboxClient is the remote mailbox collaborator. Fetches are
// at-least-once (the store dedups by identity) and actions must be safe to
// repeat.
type MailboxClient interface {
	FetchMessages(ctx context.Context, limit int) ([]Message, error)
	ApplyAction(ctx context.Context, id string, action Action) error

	Close() error
}
