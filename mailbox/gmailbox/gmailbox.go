// SPDX-License-Identifier: GPL-3.0-or-later

// Package gmailbox implements the mailbox collaborator on top of the Gmail
// REST API. Message identities are the API's stable message ids.
package gmailbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/mvollmer/go-mail-rules/domain"
	"github.com/mvollmer/go-mail-rules/log"
	"github.com/mvollmer/go-mail-rules/mail"
	"github.com/mvollmer/go-mail-rules/rate"

	"github.com/mbrt/gmailctl/cmd/gmailctl/localcred"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

const (
	unreadLabel = "UNREAD"
	inboxLabel  = "INBOX"
)

type Client struct {
	svc     *gmail.Service
	limiter *rate.TokenBucket

	// mu guards the label cache. ApplyAction is called from concurrent
	// workers sharing this client, and holding it across the whole label
	// resolution also keeps a label from being created twice.
	mu           sync.Mutex
	labelsByName map[string]string

	l *logrus.Logger
}

// NewClient authorizes against the Gmail API with the modify scope using
// the credential files in credentialsDir. All calls are gated by a token
// bucket releasing rps requests per second.
func NewClient(ctx context.Context, credentialsDir string, rps int) (*Client, error) {
	svc, err := (localcred.Provider{}).ServiceWithScopes(ctx, credentialsDir, gmail.GmailModifyScope)
	if err != nil {
		return nil, &domain.AuthError{Err: fmt.Errorf("could not authorize gmail service: %w", err)}
	}

	l := log.Logger(log.LOG_GMAIL)
	l.WithField("credentials", credentialsDir).Debug("Authorized against gmail api")

	return &Client{
		svc:          svc,
		limiter:      rate.NewTokenBucket(rps),
		labelsByName: map[string]string{},
		l:            l,
	}, nil
}

func (c *Client) FetchMessages(ctx context.Context, limit int) ([]domain.Message, error) {
	err := c.limiter.Wait(ctx)
	if err != nil {
		return nil, err
	}

	listed, err := c.svc.Users.Messages.List("me").LabelIds(inboxLabel).MaxResults(int64(limit)).Context(ctx).Do()
	if err != nil {
		return nil, classify(fmt.Errorf("could not list messages: %w", err))
	}

	messages := []domain.Message{}
	for _, stub := range listed.Messages {
		err := c.limiter.Wait(ctx)
		if err != nil {
			return nil, err
		}

		msg, err := c.svc.Users.Messages.Get("me", stub.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, classify(fmt.Errorf("could not get message %s: %w", stub.Id, err))
		}

		messages = append(messages, parseMessage(msg))
	}

	c.l.WithField("messages", len(messages)).Debug("Fetched messages")

	return messages, nil
}

func (c *Client) ApplyAction(ctx context.Context, id string, action domain.Action) error {
	err := c.limiter.Wait(ctx)
	if err != nil {
		return err
	}

	request := &gmail.ModifyMessageRequest{}
	switch action.Kind {
	case domain.MarkRead:
		request.RemoveLabelIds = []string{unreadLabel}
	case domain.MarkUnread:
		request.AddLabelIds = []string{unreadLabel}
	case domain.MoveMessage:
		labelId, err := c.ensureLabel(ctx, action.Value)
		if err != nil {
			return err
		}
		request.AddLabelIds = []string{labelId}
		request.RemoveLabelIds = []string{inboxLabel}
	default:
		return fmt.Errorf("unsupported action kind %q", action.Kind)
	}

	_, err = c.svc.Users.Messages.Modify("me", id, request).Context(ctx).Do()
	if err != nil {
		return classify(fmt.Errorf("could not modify message %s: %w", id, err))
	}

	c.l.WithFields(logrus.Fields{"id": id, "kind": action.Kind, "value": action.Value}).Debug("Applied action")
	return nil
}

func (c *Client) Close() error {
	c.limiter.Stop()
	return nil
}

// ensureLabel resolves a label name to its id, creating the label when the
// mailbox does not have it yet. Move actions are idempotent: adding an
// already-present label is a no-op at the API.
func (c *Client) ensureLabel(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.labelsByName[name]; ok {
		return id, nil
	}

	err := c.limiter.Wait(ctx)
	if err != nil {
		return "", err
	}

	listed, err := c.svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return "", classify(fmt.Errorf("could not list labels: %w", err))
	}
	for _, label := range listed.Labels {
		c.labelsByName[label.Name] = label.Id
	}

	if id, ok := c.labelsByName[name]; ok {
		return id, nil
	}

	err = c.limiter.Wait(ctx)
	if err != nil {
		return "", err
	}

	created, err := c.svc.Users.Labels.Create("me", &gmail.Label{Name: name}).Context(ctx).Do()
	if err != nil {
		return "", classify(fmt.Errorf("could not create label %q: %w", name, err))
	}

	c.l.WithFields(logrus.Fields{"label": name, "id": created.Id}).Info("Created label")
	c.labelsByName[name] = created.Id
	return created.Id, nil
}

func parseMessage(msg *gmail.Message) domain.Message {
	headers := map[string]string{}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			headers[h.Name] = h.Value
		}
	}

	snippet := textBody(msg.Payload)
	if len(snippet) == 0 {
		snippet = msg.Snippet
	}

	unread := false
	for _, label := range msg.LabelIds {
		if label == unreadLabel {
			unread = true
		}
	}

	return domain.Message{
		Id:         msg.Id,
		ThreadId:   msg.ThreadId,
		From:       headers["From"],
		To:         splitAddresses(headers["To"]),
		Subject:    headers["Subject"],
		Snippet:    snippet,
		Labels:     msg.LabelIds,
		ReceivedAt: time.UnixMilli(msg.InternalDate),
		Unread:     unread,
	}
}

// textBody extracts the first text/plain part of the payload, preferring
// nested parts over the top-level body like the API structures them.
func textBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}

	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil && len(part.Body.Data) > 0 {
			return decodeBody(part.Body.Data)
		}
	}

	if payload.Body != nil && len(payload.Body.Data) > 0 {
		return decodeBody(payload.Body.Data)
	}

	return ""
}

func decodeBody(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}

	text := strings.TrimSpace(string(decoded))
	if len(text) > mail.SnippetLength {
		text = text[:mail.SnippetLength]
	}
	return text
}

func splitAddresses(header string) []string {
	if len(strings.TrimSpace(header)) == 0 {
		return nil
	}

	addresses := []string{}
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if len(part) > 0 {
			addresses = append(addresses, part)
		}
	}

	return addresses
}

// classify maps API failures to the error kinds the processor acts on:
// authentication and permission problems abort the run, quota and server
// hiccups are retried.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401:
			return &domain.AuthError{Err: err}
		case apiErr.Code == 403 && !rateLimited(apiErr):
			return &domain.AuthError{Err: err}
		case apiErr.Code == 403 || apiErr.Code == 429 || apiErr.Code >= 500:
			return &domain.TransientError{Err: err}
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &domain.TransientError{Err: err}
	}

	return err
}

// rateLimited reports whether a 403 is Gmail's quota signal rather than a
// permission failure.
func rateLimited(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
			return true
		}
	}
	return false
}
