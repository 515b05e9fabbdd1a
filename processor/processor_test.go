// SPDX-License-Identifier: GPL-3.0-or-later
package processor

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/mvollmer/go-mail-rules/domain"
	"github.com/mvollmer/go-mail-rules/domain/mocks"
	"github.com/mvollmer/go-mail-rules/log"

	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	log.InitLogging("error")
	os.Exit(m.Run())
}

func testConfiguration() *configuration {
	return &configuration{
		Concurrency:    1,
		FetchLimit:     10,
		RetryAttempts:  3,
		RetryBaseDelay: time.Millisecond,
	}
}

func setupProcessor(t *testing.T, cfg *configuration, ruleSet []domain.Rule) (*gomock.Controller, *Processor, *mocks.MockStore, *mocks.MockMailboxClient) {
	ctrl := gomock.NewController(t)

	store := mocks.NewMockStore(ctrl)
	mailbox := mocks.NewMockMailboxClient(ctrl)

	proc := &Processor{
		store:         store,
		mailbox:       mailbox,
		ruleSet:       ruleSet,
		configuration: cfg,
		now:           time.Now,
		l:             nullLogger(),
	}

	return ctrl, proc, store, mailbox
}

func moveRule(description, sender, folder string) domain.Rule {
	return domain.Rule{
		Description: description,
		Predicate:   domain.PredicateAll,
		Conditions: []domain.Condition{
			{Field: domain.FieldFrom, Operator: domain.OpContains, Value: sender},
		},
		Actions: []domain.Action{
			{Kind: domain.MarkRead},
			{Kind: domain.MoveMessage, Value: folder},
		},
	}
}

func saved(id, from string) *domain.SavedMessage {
	return &domain.SavedMessage{
		Message: domain.Message{
			Id:         id,
			From:       from,
			Subject:    "subject " + id,
			ReceivedAt: time.Now().Add(-time.Hour),
		},
	}
}

func expectFetch(store *mocks.MockStore, mailbox *mocks.MockMailboxClient, backlog ...*domain.SavedMessage) {
	messages := []domain.Message{}
	for _, s := range backlog {
		messages = append(messages, s.Message)
	}

	mailbox.EXPECT().
		FetchMessages(gomock.Any(), gomock.Eq(10)).
		Return(messages, nil)

	store.EXPECT().
		SaveMessages(gomock.Eq(messages)).
		Return(len(messages), nil)

	store.EXPECT().
		UnprocessedMessages().
		Return(backlog, nil)
}

func TestNewProcessor(t *testing.T) {
	tests := []struct {
		name string
		cfgs []ConfigFunc
		err  string
	}{
		{"ok", []ConfigFunc{DryRun(), Concurrency(2), FetchLimit(5)}, ""},
		{"badconcurrency", []ConfigFunc{Concurrency(0)}, "error applying configuration: concurrency must be at least 1"},
		{"badfetchlimit", []ConfigFunc{FetchLimit(-1)}, "error applying configuration: fetch limit must be at least 1"},
		{"badretry", []ConfigFunc{Retry(0, time.Second)}, "error applying configuration: retry attempts must be at least 1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			proc, err := NewProcessor(nil, nil, nil, tc.cfgs...)
			if len(tc.err) == 0 {
				assert.NotNil(t, proc)
				assert.NoError(t, err)
			} else {
				assert.Nil(t, proc)
				assert.EqualError(t, err, tc.err)
			}
		})
	}
}

func TestProcessor_RunAppliesMatchingRules(t *testing.T) {
	ruleSet := []domain.Rule{moveRule("newsletters", "news@", "Newsletters")}
	ctrl, proc, store, mailbox := setupProcessor(t, testConfiguration(), ruleSet)
	defer ctrl.Finish()

	matching := saved("m1", "news@example.org")
	other := saved("m2", "alice@example.org")
	expectFetch(store, mailbox, matching, other)

	mailbox.EXPECT().
		ApplyAction(gomock.Any(), gomock.Eq("m1"), gomock.Eq(domain.Action{Kind: domain.MarkRead})).
		Return(nil)
	mailbox.EXPECT().
		ApplyAction(gomock.Any(), gomock.Eq("m1"), gomock.Eq(domain.Action{Kind: domain.MoveMessage, Value: "Newsletters"})).
		Return(nil)

	store.EXPECT().MarkProcessed(gomock.Eq("m1")).Return(nil)
	store.EXPECT().MarkProcessed(gomock.Eq("m2")).Return(nil)

	report, err := proc.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 2, report.NewlyStored)
	assert.Equal(t, 2, report.Evaluated)
	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 0, report.ActionFailures)
}

func TestProcessor_RunActionFailureLeavesUnprocessed(t *testing.T) {
	ruleSet := []domain.Rule{moveRule("newsletters", "news@", "Newsletters")}
	ctrl, proc, store, mailbox := setupProcessor(t, testConfiguration(), ruleSet)
	defer ctrl.Finish()

	matching := saved("m1", "news@example.org")
	expectFetch(store, mailbox, matching)

	mailbox.EXPECT().
		ApplyAction(gomock.Any(), gomock.Eq("m1"), gomock.Eq(domain.Action{Kind: domain.MarkRead})).
		Return(nil)
	mailbox.EXPECT().
		ApplyAction(gomock.Any(), gomock.Eq("m1"), gomock.Eq(domain.Action{Kind: domain.MoveMessage, Value: "Newsletters"})).
		Return(errors.New("no such folder"))

	// No MarkProcessed, the message stays in the backlog for the next run

	report, err := proc.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 1, report.ActionFailures)
	assert.Equal(t, 0, report.Processed)
}

func TestProcessor_RunRetriesTransientActionFailures(t *testing.T) {
	ruleSet := []domain.Rule{moveRule("newsletters", "news@", "Newsletters")}
	ctrl, proc, store, mailbox := setupProcessor(t, testConfiguration(), ruleSet)
	defer ctrl.Finish()

	matching := saved("m1", "news@example.org")
	expectFetch(store, mailbox, matching)

	markRead := domain.Action{Kind: domain.MarkRead}
	gomock.InOrder(
		mailbox.EXPECT().ApplyAction(gomock.Any(), gomock.Eq("m1"), gomock.Eq(markRead)).
			Return(&domain.TransientError{Err: errors.New("throttled")}),
		mailbox.EXPECT().ApplyAction(gomock.Any(), gomock.Eq("m1"), gomock.Eq(markRead)).
			Return(&domain.TransientError{Err: errors.New("throttled")}),
		mailbox.EXPECT().ApplyAction(gomock.Any(), gomock.Eq("m1"), gomock.Eq(markRead)).
			Return(nil),
	)
	mailbox.EXPECT().
		ApplyAction(gomock.Any(), gomock.Eq("m1"), gomock.Eq(domain.Action{Kind: domain.MoveMessage, Value: "Newsletters"})).
		Return(nil)

	store.EXPECT().MarkProcessed(gomock.Eq("m1")).Return(nil)

	report, err := proc.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, report.ActionFailures)
	assert.Equal(t, 1, report.Processed)
}

func TestProcessor_RunAuthFailureAborts(t *testing.T) {
	ruleSet := []domain.Rule{moveRule("newsletters", "news@", "Newsletters")}
	ctrl, proc, store, mailbox := setupProcessor(t, testConfiguration(), ruleSet)
	defer ctrl.Finish()

	matching := saved("m1", "news@example.org")
	expectFetch(store, mailbox, matching)

	mailbox.EXPECT().
		ApplyAction(gomock.Any(), gomock.Eq("m1"), gomock.Eq(domain.Action{Kind: domain.MarkRead})).
		Return(&domain.AuthError{Err: errors.New("token revoked")})

	report, err := proc.Run(context.Background())
	assert.Error(t, err)
	assert.True(t, domain.IsAuth(err))
	assert.Equal(t, 0, report.Processed)
}

func TestProcessor_RunDryRun(t *testing.T) {
	cfg := testConfiguration()
	cfg.DryRun = true
	ruleSet := []domain.Rule{moveRule("newsletters", "news@", "Newsletters")}
	ctrl, proc, store, mailbox := setupProcessor(t, cfg, ruleSet)
	defer ctrl.Finish()

	matching := saved("m1", "news@example.org")
	expectFetch(store, mailbox, matching)

	// Neither actions nor processed marks in dry-run

	report, err := proc.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 0, report.Processed)
}

func TestProcessor_RunNoMatchStillProcessed(t *testing.T) {
	ctrl, proc, store, mailbox := setupProcessor(t, testConfiguration(), nil)
	defer ctrl.Finish()

	unmatched := saved("m1", "alice@example.org")
	expectFetch(store, mailbox, unmatched)

	store.EXPECT().MarkProcessed(gomock.Eq("m1")).Return(nil)

	report, err := proc.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, report.Matched)
	assert.Equal(t, 1, report.Processed)
}

func TestProcessor_RunFetchTransientFailureContinuesWithBacklog(t *testing.T) {
	ctrl, proc, store, mailbox := setupProcessor(t, testConfiguration(), nil)
	defer ctrl.Finish()

	mailbox.EXPECT().
		FetchMessages(gomock.Any(), gomock.Eq(10)).
		Return(nil, &domain.TransientError{Err: errors.New("connection reset")}).
		Times(3)

	backlog := saved("m1", "alice@example.org")
	store.EXPECT().
		UnprocessedMessages().
		Return([]*domain.SavedMessage{backlog}, nil)

	store.EXPECT().MarkProcessed(gomock.Eq("m1")).Return(nil)

	report, err := proc.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, report.Fetched)
	assert.Equal(t, 1, report.Processed)
}

func TestProcessor_RunFetchAuthFailureAborts(t *testing.T) {
	ctrl, proc, _, mailbox := setupProcessor(t, testConfiguration(), nil)
	defer ctrl.Finish()

	mailbox.EXPECT().
		FetchMessages(gomock.Any(), gomock.Eq(10)).
		Return(nil, &domain.AuthError{Err: errors.New("invalid credentials")})

	_, err := proc.Run(context.Background())
	assert.Error(t, err)
	assert.True(t, domain.IsAuth(err))
}

func TestProcessor_RunEmptyBacklog(t *testing.T) {
	ctrl, proc, store, mailbox := setupProcessor(t, testConfiguration(), nil)
	defer ctrl.Finish()

	mailbox.EXPECT().
		FetchMessages(gomock.Any(), gomock.Eq(10)).
		Return([]domain.Message{}, nil)

	store.EXPECT().
		SaveMessages(gomock.Eq([]domain.Message{})).
		Return(0, nil)

	store.EXPECT().
		UnprocessedMessages().
		Return(nil, nil)

	report, err := proc.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, report.Evaluated)
}

func nullLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
