// SPDX-License-Identifier: GPL-3.0-or-later
package persistence

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mvollmer/go-mail-rules/domain"
	"github.com/mvollmer/go-mail-rules/log"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFs embed.FS

type Persistence struct {
	db *sqlx.DB
	l  *logrus.Logger
}

func NewPersistence(datasource string) (*Persistence, error) {
	db, err := sqlx.Connect("sqlite3", datasource)
	if err != nil {
		return nil, fmt.Errorf("could not open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := log.Logger(log.LOG_PERSISTENCE)
	l.WithField("file", datasource).Info("Connected")

	migrationSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationsFs,
		Root:       "migrations",
	}

	_, err = db.Exec(`PRAGMA journal_mode=WAL`)
	if err != nil {
		return nil, fmt.Errorf("could not set journal mode: %w", err)
	}
	_, err = db.Exec(`PRAGMA synchronous=normal`)
	if err != nil {
		return nil, fmt.Errorf("could not set synchronous mode: %w", err)
	}

	appliedMigrations, err := migrate.Exec(db.DB, "sqlite3", migrationSource, migrate.Up)
	if err != nil {
		return nil, fmt.Errorf("could not migrate to newest version: %w", err)
	}

	l.WithField("migrations", appliedMigrations).Debug("Executed migrations")

	return &Persistence{
		db: db,
		l:  l,
	}, nil
}

func (p *Persistence) Close() error {
	err := p.db.Close()
	if err != nil {
		return fmt.Errorf("could not close db: %w", err)
	}
	p.l.Info("Disconnected")
	return nil
}

// SaveMessages upserts a batch in one transaction. Known identities are
// left untouched so repeated ingestion of the same messages is safe.
func (p *Persistence) SaveMessages(messages []domain.Message) (int, error) {
	tx, err := p.db.BeginTxx(context.TODO(), nil)
	if err != nil {
		return 0, storageError("begin tx", err)
	}

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO messages
		 (id, threadid, sender, recipients, subject, snippet, labels, receivedat, unread, processed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
	)
	if err != nil {
		return 0, txEnd(tx, storageError("prepare statement", err))
	}

	inserted := 0
	for _, m := range messages {
		recipients, err := packList(m.To)
		if err != nil {
			return 0, txEnd(tx, storageError("encode recipients", err))
		}
		labels, err := packList(m.Labels)
		if err != nil {
			return 0, txEnd(tx, storageError("encode labels", err))
		}

		result, err := stmt.Exec(
			m.Id, m.ThreadId, m.From, recipients, m.Subject, m.Snippet, labels, m.ReceivedAt.Unix(), m.Unread,
		)
		if err != nil {
			return 0, txEnd(tx, storageError("save message", err))
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return 0, txEnd(tx, storageError("get affected rows", err))
		}
		inserted += int(affected)
	}

	err = txEnd(tx, nil)
	if err != nil {
		return 0, err
	}

	p.l.WithFields(logrus.Fields{"messages": len(messages), "new": inserted}).Debug("Persisted messages")
	return inserted, nil
}

func (p *Persistence) UnprocessedMessages() ([]*domain.SavedMessage, error) {
	dbMessages := []struct {
		Id         string
		ThreadId   string
		Sender     string
		Recipients string
		Subject    string
		Snippet    string
		Labels     string
		ReceivedAt int64
		Unread     bool
	}{}

	err := p.db.Select(
		&dbMessages,
		`SELECT id, threadid, sender, recipients, subject, snippet, labels, receivedat, unread
		 FROM messages WHERE processed = 0 ORDER BY receivedat ASC`,
	)
	if err != nil {
		return nil, storageError("list unprocessed", err)
	}

	messages := []*domain.SavedMessage{}
	for _, m := range dbMessages {
		recipients, err := unpackList(m.Recipients)
		if err != nil {
			return nil, storageError("decode recipients", err)
		}
		labels, err := unpackList(m.Labels)
		if err != nil {
			return nil, storageError("decode labels", err)
		}

		messages = append(
			messages,
			&domain.SavedMessage{
				Message: domain.Message{
					Id:         m.Id,
					ThreadId:   m.ThreadId,
					From:       m.Sender,
					To:         recipients,
					Subject:    m.Subject,
					Snippet:    m.Snippet,
					Labels:     labels,
					ReceivedAt: time.Unix(m.ReceivedAt, 0),
					Unread:     m.Unread,
				},
			},
		)
	}

	p.l.WithField("count", len(messages)).Debug("Found unprocessed messages")

	return messages, nil
}

func (p *Persistence) MarkProcessed(id string) error {
	_, err := p.db.Exec(
		"UPDATE messages SET processed = 1 WHERE id = ?",
		id,
	)
	if err != nil {
		return storageError("mark processed", err)
	}

	p.l.WithField("id", id).Debug("Marked message processed")
	return nil
}

func (p *Persistence) CountResettable(selector domain.ResetSelector) (int64, error) {
	where, args, err := selectorWhere(selector)
	if err != nil {
		return 0, err
	}

	var count int64
	err = p.db.Get(
		&count,
		"SELECT COUNT(*) FROM messages WHERE processed = 1 AND "+where,
		args...,
	)
	if err != nil {
		return 0, storageError("count resettable", err)
	}

	return count, nil
}

func (p *Persistence) ResetProcessed(selector domain.ResetSelector) (int64, error) {
	where, args, err := selectorWhere(selector)
	if err != nil {
		return 0, err
	}

	result, err := p.db.Exec(
		"UPDATE messages SET processed = 0 WHERE processed = 1 AND "+where,
		args...,
	)
	if err != nil {
		return 0, storageError("reset processed", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, storageError("get affected rows", err)
	}

	p.l.WithFields(logrus.Fields{"selector": selector, "messages": affected}).Info("Reset processed flags")
	return affected, nil
}

func selectorWhere(selector domain.ResetSelector) (string, []interface{}, error) {
	err := selector.Validate()
	if err != nil {
		return "", nil, err
	}

	switch {
	case len(selector.Id) > 0:
		return "id = ?", []interface{}{selector.Id}, nil
	case selector.All:
		return "1 = 1", nil, nil
	default:
		cutoff := time.Now().AddDate(0, 0, -selector.OlderThanDays).Unix()
		return "receivedat < ?", []interface{}{cutoff}, nil
	}
}

func packList(values []string) (string, error) {
	if len(values) == 0 {
		return "", nil
	}

	encoded, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("could not encode list: %w", err)
	}

	return string(encoded), nil
}

func unpackList(encoded string) ([]string, error) {
	if len(encoded) == 0 {
		return nil, nil
	}

	values := []string{}
	err := json.Unmarshal([]byte(encoded), &values)
	if err != nil {
		return nil, fmt.Errorf("could not decode list: %w", err)
	}

	return values, nil
}

func storageError(op string, err error) error {
	return &domain.StorageError{Op: op, Err: err}
}

func txEnd(tx *sqlx.Tx, err error) error {
	if err == nil {
		err = tx.Commit()
		if err != nil {
			return storageError("commit tx", err)
		}
	} else {
		rollbackErr := tx.Rollback()
		if rollbackErr != nil {
			errStr := err.Error()
			return fmt.Errorf("%s, could not rollback tx: %w", errStr, rollbackErr)
		} else {
			return err
		}
	}

	return nil
}
