// SPDX-License-Identifier: GPL-3.0-or-later

// Package imapbox implements the mailbox collaborator against a plain IMAP
// server. Message identities are stable hashes over the Message-Id and
// Received headers so they survive uid renumbering; a per-connection cache
// maps them back to the uids the protocol needs.
package imapbox

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/mvollmer/go-mail-rules/domain"
	"github.com/mvollmer/go-mail-rules/log"
	"github.com/mvollmer/go-mail-rules/mail"

	"github.com/emersion/go-imap"
	move "github.com/emersion/go-imap-move"
	uidplus "github.com/emersion/go-imap-uidplus"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"
)

type Connection struct {
	connection    *client.Client
	uidplusClient *uidplus.Client
	mailMover     mover

	server, user, folder string

	// mu guards the uid cache and the selected folder. ApplyAction is
	// called from concurrent workers sharing this connection.
	mu             sync.Mutex
	selectedFolder string
	uidsByHash     map[string]uint32

	l *logrus.Logger
}

func NewConnection(server string, user string, password string, folder string) (*Connection, error) {
	imapClient, err := client.DialTLS(server, nil)
	if err != nil {
		return nil, &domain.TransientError{Err: fmt.Errorf("could not dial to imap: %w", err)}
	}

	err = imapClient.Login(user, password)
	if err != nil {
		return nil, &domain.AuthError{Err: fmt.Errorf("could not login to imap: %w", err)}
	}

	uidPlusClient := uidplus.NewClient(imapClient)
	uidPlusSupported, err := uidPlusClient.SupportUidPlus()
	if err != nil {
		return nil, fmt.Errorf("could not check for UIDPLUS support: %w", err)
	}

	moveClient := move.NewClient(imapClient)
	moveSupported, err := moveClient.SupportMove()
	if err != nil {
		return nil, fmt.Errorf("could not check for MOVE support: %w", err)
	}

	conn := &Connection{
		connection: imapClient,
		server:     server,
		user:       user,
		folder:     folder,
		uidsByHash: map[string]uint32{},
		l:          log.Logger(log.LOG_IMAP),
	}

	baseLogger := conn.l.WithFields(logrus.Fields{"server": server})
	baseLogger.Debug("Logged in to server")

	if uidPlusSupported {
		baseLogger.Debug("UIDPLUS supported on server, using UID expunge")
		conn.uidplusClient = uidPlusClient
	} else {
		baseLogger.Info("UIDPLUS not supported on server, falling back to flag&expunge")
	}

	if moveSupported {
		baseLogger.Debug("MOVE supported on server")
		conn.mailMover = &moveMover{
			moveClient: moveClient,
		}
	} else {
		baseLogger.Info("MOVE not supported on server, falling back to copy&delete")
		conn.mailMover = &copyDeleteMover{
			imapConn: conn,
		}
	}

	return conn, nil
}

func (ic *Connection) FetchMessages(ctx context.Context, limit int) ([]domain.Message, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	ic.mu.Lock()
	defer ic.mu.Unlock()

	err = ic.selectFolder()
	if err != nil {
		return nil, err
	}

	uids, err := ic.listUids()
	if err != nil {
		return nil, err
	}

	// Newest first; the processed backlog keeps older mail covered across
	// runs even when it falls outside the fetch window.
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if len(uids) > limit {
		uids = uids[:limit]
	}

	if len(uids) == 0 {
		ic.l.WithField("folder", ic.folder).Debug("Folder contains no mails")
		return []domain.Message{}, nil
	}

	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)
	fullBodySection := &imap.BodySectionName{
		Peek: true,
	}

	fetchItems := []imap.FetchItem{imap.FetchUid, imap.FetchFlags, fullBodySection.FetchItem()}
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- ic.connection.UidFetch(seqset, fetchItems, messages)
	}()

	fetched := []domain.Message{}
	for msg := range messages {
		r := msg.GetBody(fullBodySection)
		if r == nil {
			ic.l.WithField("uid", msg.Uid).Warn("Mail has no body section, skipping")
			continue
		}
		rawMail, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("could not read mail body: %w", err)
		}

		parsed, err := mail.Parse(rawMail)
		if err != nil {
			ic.l.WithFields(logrus.Fields{"uid": msg.Uid, "error": err}).Warn("Could not parse mail, skipping")
			continue
		}

		ic.uidsByHash[parsed.IdHash] = msg.Uid
		fetched = append(
			fetched,
			domain.Message{
				Id:         parsed.IdHash,
				From:       parsed.From,
				To:         parsed.To,
				Subject:    parsed.Subject,
				Snippet:    parsed.Snippet,
				Labels:     []string{ic.folder},
				ReceivedAt: parsed.ReceivedAt,
				Unread:     !hasFlag(msg.Flags, imap.SeenFlag),
			},
		)
	}

	err = <-done
	if err != nil {
		return nil, &domain.TransientError{Err: fmt.Errorf("could not fetch mails: %w", err)}
	}

	ic.l.WithFields(logrus.Fields{"folder": ic.folder, "mails": len(fetched)}).Debug("Fetched mails")

	return fetched, nil
}

func (ic *Connection) ApplyAction(ctx context.Context, id string, action domain.Action) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	ic.mu.Lock()
	defer ic.mu.Unlock()

	uid, err := ic.resolveUid(id)
	if err != nil {
		return err
	}

	switch action.Kind {
	case domain.MarkRead:
		return ic.storeSeenFlag(uid, imap.AddFlags)
	case domain.MarkUnread:
		return ic.storeSeenFlag(uid, imap.RemoveFlags)
	case domain.MoveMessage:
		err = ic.mailMover.move(uid, action.Value)
		if err != nil {
			return fmt.Errorf("could not move mail: %w", err)
		}
		// The uid is gone from the selected folder now
		delete(ic.uidsByHash, id)
		return nil
	default:
		return fmt.Errorf("unsupported action kind %q", action.Kind)
	}
}

func (ic *Connection) Close() error {
	return ic.connection.Logout()
}

func (ic *Connection) selectFolder() error {
	if ic.selectedFolder == ic.folder {
		return nil
	}

	_, err := ic.connection.Select(ic.folder, false)
	if err != nil {
		return &domain.TransientError{Err: fmt.Errorf("could not select folder %s: %w", ic.folder, err)}
	}

	ic.selectedFolder = ic.folder
	return nil
}

func (ic *Connection) listUids() ([]uint32, error) {
	// Get all UIDs in folder (empty search criteria)
	criteria := imap.NewSearchCriteria()
	ids, err := ic.connection.UidSearch(criteria)
	if err != nil {
		return nil, &domain.TransientError{Err: fmt.Errorf("could not list folder: %w", err)}
	}

	return ids, nil
}

// resolveUid maps a stable mail identity back to the current uid. On a
// cache miss the folder's headers are rescanned, which also repairs the
// cache after uid validity changes.
func (ic *Connection) resolveUid(id string) (uint32, error) {
	if uid, ok := ic.uidsByHash[id]; ok {
		return uid, nil
	}

	err := ic.rescanUids()
	if err != nil {
		return 0, err
	}

	uid, ok := ic.uidsByHash[id]
	if !ok {
		return 0, fmt.Errorf("mail %s not found in folder %s", id, ic.folder)
	}

	return uid, nil
}

func (ic *Connection) rescanUids() error {
	err := ic.selectFolder()
	if err != nil {
		return err
	}

	uids, err := ic.listUids()
	if err != nil {
		return err
	}
	if len(uids) == 0 {
		ic.uidsByHash = map[string]uint32{}
		return nil
	}

	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{
			Specifier: imap.HeaderSpecifier,
			Fields: []string{
				"Received",
				"Message-Id",
			},
		},
		Peek: true,
	}
	fetchItems := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	out := make(chan *imap.Message)
	done := make(chan error, 1)
	go func() {
		done <- ic.connection.UidFetch(seqset, fetchItems, out)
	}()

	uidsByHash := map[string]uint32{}
	for msg := range out {
		r := msg.GetBody(section)
		if r == nil {
			continue
		}

		rawHeaders, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("could not read mail headers: %w", err)
		}

		parsed, err := mail.Parse(rawHeaders)
		if err != nil {
			continue
		}

		uidsByHash[parsed.IdHash] = msg.Uid
	}

	err = <-done
	if err != nil {
		return &domain.TransientError{Err: fmt.Errorf("could not fetch mail headers: %w", err)}
	}

	ic.l.WithFields(logrus.Fields{"folder": ic.folder, "mails": len(uidsByHash)}).Debug("Rescanned folder uids")

	ic.uidsByHash = uidsByHash
	return nil
}

func (ic *Connection) storeSeenFlag(uid uint32, op imap.FlagsOp) error {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uid)
	err := ic.connection.UidStore(seqset, imap.FormatFlagsOp(op, true), []interface{}{imap.SeenFlag}, nil)
	if err != nil {
		return &domain.TransientError{Err: fmt.Errorf("could not store seen flag: %w", err)}
	}

	return nil
}

// UidCopy is part of the copy&delete move fallback.
func (ic *Connection) UidCopy(seqset *imap.SeqSet, dest string) error {
	return ic.connection.UidCopy(seqset, dest)
}

func (ic *Connection) flagDeleted(uid uint32) (*imap.SeqSet, error) {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uid)
	err := ic.connection.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), []interface{}{imap.DeletedFlag}, nil)
	if err != nil {
		return nil, fmt.Errorf("could not set delete flag: %w", err)
	}

	return seqset, nil
}

func (ic *Connection) expunge(seqset *imap.SeqSet) error {
	if ic.uidplusClient != nil {
		return ic.uidplusClient.UidExpunge(seqset, nil)
	}

	return ic.connection.Expunge(nil)
}

var ItemsWithDeletedFlagPresent = fmt.Errorf("folder has previous items with delete flag set")

func (ic *Connection) deleteReady() (error, error) {
	if ic.uidplusClient != nil {
		// UIDPLUS expunges by uid and is therefore always ready
		return nil, nil
	}

	// A plain EXPUNGE deletes everything with the flag set, so it is only
	// safe when no mails carry it already.
	criteria := imap.NewSearchCriteria()
	criteria.WithFlags = []string{imap.DeletedFlag}
	ids, err := ic.connection.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("could not search for deleted in folder: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}
	return ItemsWithDeletedFlagPresent, nil
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
