// SPDX-License-Identifier: GPL-3.0-or-later
package domain

//go:generate mockgen -destination=mocks/store.go -package=mocks . Store
type Store interface {
	Close() error
	// SaveMessages inserts previously unseen messages and leaves known
	// identities untouched. It returns the number of newly stored messages.
	SaveMessages(messages []Message) (int, error)
	// UnprocessedMessages lists all stored messages with processed unset,
	// oldest first.
	UnprocessedMessages() ([]*SavedMessage, error)
	// MarkProcessed is idempotent; marking an already-processed message is
	// a no-op.
	MarkProcessed(id string) error
	CountResettable(selector ResetSelector) (int64, error)
	ResetProcessed(selector ResetSelector) (int64, error)
}
