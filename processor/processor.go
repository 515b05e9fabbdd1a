// SPDX-License-Identifier: GPL-3.0-or-later

// Package processor orchestrates one run of the pipeline: fetch mail into
// the store, evaluate the rule set against the unprocessed backlog and apply
// the resulting actions. Every message is handled in isolation; a message
// only becomes processed once all its actions succeeded, so interrupted runs
// resume where they left off.
package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mvollmer/go-mail-rules/domain"
	"github.com/mvollmer/go-mail-rules/log"
	"github.com/mvollmer/go-mail-rules/mail"
	"github.com/mvollmer/go-mail-rules/rules"

	"github.com/sirupsen/logrus"
)

type Processor struct {
	store   domain.Store
	mailbox domain.MailboxClient
	ruleSet []domain.Rule

	configuration *configuration

	now func() time.Time

	l *logrus.Logger
}

func NewProcessor(store domain.Store, mailbox domain.MailboxClient, ruleSet []domain.Rule, configFunc ...ConfigFunc) (*Processor, error) {
	config := &configuration{
		Concurrency:    DefaultConcurrency,
		FetchLimit:     DefaultFetchLimit,
		RetryAttempts:  defaultRetryAttempts,
		RetryBaseDelay: defaultRetryBaseDelay,
	}
	for _, f := range configFunc {
		err := f(config)
		if err != nil {
			return nil, fmt.Errorf("error applying configuration: %w", err)
		}
	}

	return &Processor{
		store:         store,
		mailbox:       mailbox,
		ruleSet:       ruleSet,
		configuration: config,
		now:           time.Now,
		l:             log.Logger(log.LOG_PROCESSOR),
	}, nil
}

// Run executes one full pipeline pass. Authentication failures abort the
// run; a fetch that stays transient after all retries only logs a warning,
// the backlog already in the store is still processed.
func (p *Processor) Run(ctx context.Context) (*domain.RunReport, error) {
	report := &domain.RunReport{}

	err := p.fetchAndStore(ctx, report)
	if err != nil {
		return report, err
	}

	backlog, err := p.store.UnprocessedMessages()
	if err != nil {
		return report, fmt.Errorf("could not list unprocessed messages: %w", err)
	}

	if len(backlog) == 0 {
		p.l.Info("No unprocessed messages")
		return report, nil
	}

	p.l.WithFields(logrus.Fields{"backlog": len(backlog), "rules": len(p.ruleSet), "workers": p.configuration.Concurrency}).Info("Processing backlog")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	semaphore := make(chan struct{}, p.configuration.Concurrency)
	wg := &sync.WaitGroup{}
	mutex := &sync.Mutex{}
	var fatalErr error

	for _, saved := range backlog {
		saved := saved
		wg.Add(1)
		semaphore <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-semaphore }()

			if runCtx.Err() != nil {
				return
			}

			outcome := p.processMessage(runCtx, saved)

			mutex.Lock()
			defer mutex.Unlock()
			report.Evaluated++
			if outcome.matched {
				report.Matched++
			}
			report.ActionFailures += outcome.failedActions
			if outcome.processed {
				report.Processed++
			}
			if outcome.fatal != nil && fatalErr == nil {
				fatalErr = outcome.fatal
				cancel()
			}
		}()
	}
	wg.Wait()

	if fatalErr != nil {
		return report, fatalErr
	}

	p.l.WithFields(logrus.Fields{
		"fetched":        report.Fetched,
		"stored":         report.NewlyStored,
		"evaluated":      report.Evaluated,
		"matched":        report.Matched,
		"processed":      report.Processed,
		"actionfailures": report.ActionFailures,
	}).Info("Run finished")

	return report, nil
}

func (p *Processor) fetchAndStore(ctx context.Context, report *domain.RunReport) error {
	var messages []domain.Message
	err := p.withRetry(ctx, "fetch", func() error {
		var fetchErr error
		messages, fetchErr = p.mailbox.FetchMessages(ctx, p.configuration.FetchLimit)
		return fetchErr
	})
	if err != nil {
		if domain.IsAuth(err) {
			return fmt.Errorf("could not fetch messages: %w", err)
		}

		p.l.WithField("error", err).Warn("Could not fetch messages, continuing with stored backlog")
		return nil
	}

	report.Fetched = len(messages)

	stored, err := p.store.SaveMessages(messages)
	if err != nil {
		return fmt.Errorf("could not save messages: %w", err)
	}
	report.NewlyStored = stored

	p.l.WithFields(logrus.Fields{"fetched": len(messages), "new": stored}).Info("Fetched messages")
	return nil
}

type messageOutcome struct {
	matched       bool
	failedActions int
	processed     bool
	fatal         error
}

func (p *Processor) processMessage(ctx context.Context, saved *domain.SavedMessage) messageOutcome {
	outcome := messageOutcome{}
	baseLogger := p.l.WithFields(logrus.Fields{"id": saved.Id, "subject": mail.ShortSubject(saved.Subject)})

	evaluation := rules.Evaluate(p.ruleSet, &saved.Message, p.now())
	if len(evaluation.Matched) > 0 {
		outcome.matched = true
	}

	if p.configuration.DryRun {
		if outcome.matched {
			baseLogger.WithFields(logrus.Fields{"rules": evaluation.Matched, "actions": len(evaluation.Actions)}).Info("Would apply actions, skipping due to dry-run")
		}
		return outcome
	}

	for _, action := range evaluation.Actions {
		actionLogger := baseLogger.WithFields(logrus.Fields{"kind": action.Kind, "value": action.Value})

		err := p.withRetry(ctx, string(action.Kind), func() error {
			return p.mailbox.ApplyAction(ctx, saved.Id, action)
		})
		if err != nil {
			if domain.IsAuth(err) {
				outcome.fatal = fmt.Errorf("could not apply action: %w", err)
				return outcome
			}

			// The message stays unprocessed, the next run retries all of
			// its actions. Actions are idempotent so repeating the ones
			// that did succeed is harmless.
			actionLogger.WithField("error", err).Warn("Could not apply action")
			outcome.failedActions++
			continue
		}

		actionLogger.Debug("Applied action")
	}

	if outcome.failedActions > 0 {
		return outcome
	}

	err := p.store.MarkProcessed(saved.Id)
	if err != nil {
		baseLogger.WithField("error", err).Error("Could not mark message as processed")
		return outcome
	}

	outcome.processed = true
	return outcome
}

// withRetry runs f, retrying transient failures with doubling delays. Any
// other failure is returned immediately.
func (p *Processor) withRetry(ctx context.Context, op string, f func() error) error {
	var err error
	delay := p.configuration.RetryBaseDelay
	for attempt := 1; attempt <= p.configuration.RetryAttempts; attempt++ {
		err = f()
		if err == nil {
			return nil
		}
		if !domain.IsTransient(err) {
			return err
		}
		if attempt == p.configuration.RetryAttempts {
			break
		}

		p.l.WithFields(logrus.Fields{"op": op, "attempt": attempt, "delay": delay, "error": err}).Warn("Transient failure, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return err
}
