// SPDX-License-Identifier: GPL-3.0-or-later
package imapbox

//go:generate mockgen -destination=move_mocks_test.go -package=imapbox -source move.go

import (
	"fmt"

	"github.com/emersion/go-imap"
)

// mover relocates a single mail into another folder. Which implementation
// is used depends on the capabilities the server advertises.
type mover interface {
	move(uid uint32, folder string) error
}

type moveClient interface {
	UidMove(seqset *imap.SeqSet, dest string) error
}

// moveMover uses the MOVE extension, one atomic command per mail.
type moveMover struct {
	moveClient moveClient
}

func (m *moveMover) move(uid uint32, folder string) error {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uid)

	err := m.moveClient.UidMove(seqset, folder)
	if err != nil {
		return fmt.Errorf("could not move mail per MOVE: %w", err)
	}

	return nil
}

type copyDeleteClient interface {
	UidCopy(seqset *imap.SeqSet, dest string) error
	deleteReady() (error, error)
	flagDeleted(uid uint32) (*imap.SeqSet, error)
	expunge(seqset *imap.SeqSet) error
}

// copyDeleteMover emulates a move as copy, flag \Deleted, expunge for
// servers without the MOVE extension.
type copyDeleteMover struct {
	imapConn copyDeleteClient
}

func (c *copyDeleteMover) move(uid uint32, folder string) error {
	notDeleteReadyReason, err := c.imapConn.deleteReady()
	if err != nil {
		return fmt.Errorf("could not check for delete readiness: %w", err)
	}
	if notDeleteReadyReason != nil {
		return fmt.Errorf("folder is not ready for copy&delete move: %w", notDeleteReadyReason)
	}

	seqset := &imap.SeqSet{}
	seqset.AddNum(uid)
	err = c.imapConn.UidCopy(seqset, folder)
	if err != nil {
		return fmt.Errorf("could not copy mail: %w", err)
	}

	flagged, err := c.imapConn.flagDeleted(uid)
	if err != nil {
		return fmt.Errorf("could not flag mail as deleted: %w", err)
	}

	err = c.imapConn.expunge(flagged)
	if err != nil {
		return fmt.Errorf("could not expunge mail: %w", err)
	}

	return nil
}
