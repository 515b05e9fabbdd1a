// SPDX-License-Identifier: GPL-3.0-or-later
package mail

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	stdmail "net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message/charset"
)

// SnippetLength bounds the stored body excerpt. Rules match against this
// excerpt, not the full body.
const SnippetLength = 512

// ParsedMail carries the fields rule conditions can target, extracted from
// one raw RFC 822 message. IdHash is a stable identity derived from the
// Message-Id and Received headers; it survives moves between folders and
// uid renumbering.
type ParsedMail struct {
	IdHash     string
	From       string
	To         []string
	Subject    string
	Snippet    string
	ReceivedAt time.Time
}

func Parse(rawMail []byte) (*ParsedMail, error) {
	msg, err := stdmail.ReadMessage(bytes.NewReader(rawMail))
	if err != nil {
		return nil, fmt.Errorf("could not parse mail: %w", err)
	}

	messageIdHeader := msg.Header["Message-Id"]
	receivedHeader := msg.Header["Received"]
	if len(receivedHeader) == 0 && len(messageIdHeader) == 0 {
		return nil, fmt.Errorf("Received and Message-Id header not found")
	}

	dec := &mime.WordDecoder{
		CharsetReader: charset.Reader,
	}

	subject, err := dec.DecodeHeader(msg.Header.Get("Subject"))
	if err != nil {
		return nil, fmt.Errorf("could not decode subject header: %w", err)
	}

	from, err := dec.DecodeHeader(msg.Header.Get("From"))
	if err != nil {
		return nil, fmt.Errorf("could not decode from header: %w", err)
	}

	mailIdHash, err := hash([][]string{messageIdHeader, receivedHeader})
	if err != nil {
		return nil, fmt.Errorf("could not hash headers: %w", err)
	}

	// A missing or malformed date is not fatal, date conditions on a
	// zero time simply never match.
	receivedAt, err := msg.Header.Date()
	if err != nil {
		receivedAt = time.Time{}
	}

	return &ParsedMail{
		IdHash:     mailIdHash,
		From:       from,
		To:         recipients(msg.Header, dec),
		Subject:    subject,
		Snippet:    snippet(msg),
		ReceivedAt: receivedAt,
	}, nil
}

func recipients(header stdmail.Header, dec *mime.WordDecoder) []string {
	addresses, err := header.AddressList("To")
	if err == nil {
		to := []string{}
		for _, a := range addresses {
			to = append(to, a.Address)
		}
		return to
	}

	// Fall back to the raw header split on commas for lists the strict
	// parser rejects.
	raw, decodeErr := dec.DecodeHeader(header.Get("To"))
	if decodeErr != nil || len(strings.TrimSpace(raw)) == 0 {
		return nil
	}

	to := []string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if len(part) > 0 {
			to = append(to, part)
		}
	}

	return to
}

// snippet extracts up to SnippetLength bytes of plain text from the body.
// Multipart messages contribute their first text/plain part.
func snippet(msg *stdmail.Message) string {
	body := msg.Body

	contentType := msg.Header.Get("Content-Type")
	if len(contentType) > 0 {
		mediaType, params, err := mime.ParseMediaType(contentType)
		if err == nil && strings.HasPrefix(mediaType, "multipart/") {
			part := plainPart(msg.Body, params["boundary"])
			if part == nil {
				return ""
			}
			body = part
		}
	}

	raw, err := io.ReadAll(io.LimitReader(body, SnippetLength))
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(raw))
}

func plainPart(body io.Reader, boundary string) io.Reader {
	mr := multipart.NewReader(body, boundary)
	for {
		p, err := mr.NextPart()
		if err != nil {
			// io.EOF means no text/plain part exists
			return nil
		}

		if strings.HasPrefix(p.Header.Get("Content-Type"), "text/plain") {
			return p
		}
	}
}

func ShortSubject(subject string) string {
	if (len(subject)) > 30 {
		subject = subject[:30] + "..."
	}
	return subject
}

func hash(input [][]string) (string, error) {
	sha := sha256.New()
	for _, i := range input {
		for _, ii := range i {
			_, err := sha.Write([]byte(ii))
			if err != nil {
				return "", fmt.Errorf("could not hash: %w", err)
			}
		}
	}

	return fmt.Sprintf("%x", sha.Sum(nil)), nil
}
