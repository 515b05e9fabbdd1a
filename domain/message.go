// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import (
	"fmt"
	"time"
)

// Message is the normalized view of one remote mailbox message. Id is the
// remote service's stable identity for the message and never changes between
// runs.
type Message struct {
	Id         string
	ThreadId   string
	From       string
	To         []string
	Subject    string
	Snippet    string
	Labels     []string
	ReceivedAt time.Time
	Unread     bool
}

// SavedMessage is a Message as stored in the local ledger. Processed starts
// false and only transitions to true after all actions for the message
// succeeded; it is reversed only by an administrative reset.
type SavedMessage struct {
	Message
	Processed bool
}

// ResetSelector addresses messages for an administrative processed-flag
// reset. Exactly one of the selectors must be set.
type ResetSelector struct {
	Id            string
	All           bool
	OlderThanDays int
}

func (s ResetSelector) Validate() error {
	set := 0
	if len(s.Id) > 0 {
		set++
	}
	if s.All {
		set++
	}
	if s.OlderThanDays > 0 {
		set++
	}

	if set != 1 {
		return fmt.Errorf("exactly one of id, all or older-than must be selected")
	}

	return nil
}

// Bulk reports whether the selector can affect more than one message.
// Bulk resets must be confirmed by the caller before they are applied.
func (s ResetSelector) Bulk() bool {
	return s.All || s.OlderThanDays > 0
}
