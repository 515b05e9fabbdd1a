// SPDX-License-Identifier: GPL-3.0-or-later
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mvollmer/go-mail-rules/config"
	"github.com/mvollmer/go-mail-rules/domain"
	"github.com/mvollmer/go-mail-rules/log"
	"github.com/mvollmer/go-mail-rules/mailbox/gmailbox"
	"github.com/mvollmer/go-mail-rules/mailbox/imapbox"
	"github.com/mvollmer/go-mail-rules/persistence"
	"github.com/mvollmer/go-mail-rules/processor"
	"github.com/mvollmer/go-mail-rules/rules"

	"github.com/sirupsen/logrus"
)

func main() {
	log.InitLogging("info")
	logger := log.Logger(log.LOG_MAIN)

	if len(os.Args) > 1 && os.Args[1] == "reset-processed" {
		resetProcessed(logger, os.Args[2:])
		return
	}

	configFile := flag.String("config", "config.toml", "path to the toml configuration file")
	flag.Parse()

	conf, err := config.ReadConfig(*configFile)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not load config")
	}

	if conf.Loglevel != nil {
		log.SetLogLevel(*conf.Loglevel)
	}

	ruleSet, err := rules.Load(conf.RulesFile)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not load rules")
	}
	logger.WithFields(logrus.Fields{"rulesfile": conf.RulesFile, "rules": len(ruleSet)}).Info("Loaded rules")

	p, err := persistence.NewPersistence(conf.Database)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not connect to database")
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mailbox, err := newMailboxClient(ctx, conf)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not connect to mailbox")
	}
	defer mailbox.Close()

	configs := []processor.ConfigFunc{}
	if conf.DryRun {
		configs = append(configs, processor.DryRun())
	}
	if conf.FetchLimit > 0 {
		configs = append(configs, processor.FetchLimit(conf.FetchLimit))
	}
	if conf.Concurrency > 0 {
		configs = append(configs, processor.Concurrency(conf.Concurrency))
	}

	proc, err := processor.NewProcessor(p, mailbox, ruleSet, configs...)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not start processor")
	}

	logger.WithFields(logrus.Fields{"mailbox": conf.Mailbox, "dryrun": conf.DryRun}).Info("Processing mailbox")
	if conf.DryRun {
		logger.Warn("Skipping actions due to dry-run")
	}

	report, err := proc.Run(ctx)
	if err != nil {
		logger.WithField("error", err).Fatal("Processing failed")
	}

	logger.WithFields(logrus.Fields{
		"fetched":        report.Fetched,
		"stored":         report.NewlyStored,
		"evaluated":      report.Evaluated,
		"matched":        report.Matched,
		"processed":      report.Processed,
		"actionfailures": report.ActionFailures,
	}).Info("Done")
}

func newMailboxClient(ctx context.Context, conf *config.Config) (domain.MailboxClient, error) {
	switch conf.Mailbox {
	case config.MailboxGmail:
		return gmailbox.NewClient(ctx, conf.GmailCredentialsDir, conf.GmailRequestsPerSecond)
	case config.MailboxImap:
		return imapbox.NewConnection(conf.ImapHost, conf.User, conf.Password, conf.Folder)
	default:
		return nil, fmt.Errorf("unsupported mailbox %q", conf.Mailbox)
	}
}

// resetProcessed implements the maintenance subcommand that clears processed
// marks so the next run re-evaluates the selected messages. Bulk selections
// show an affected count and ask for confirmation first.
func resetProcessed(logger *logrus.Logger, args []string) {
	flags := flag.NewFlagSet("reset-processed", flag.ExitOnError)
	configFile := flags.String("config", "config.toml", "path to the toml configuration file")
	id := flags.String("id", "", "reset the single message with this id")
	all := flags.Bool("all", false, "reset all processed messages")
	olderThan := flags.Int("older-than", 0, "reset processed messages received more than this many days ago")
	_ = flags.Parse(args)

	conf, err := config.ReadConfig(*configFile)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not load config")
	}

	if conf.Loglevel != nil {
		log.SetLogLevel(*conf.Loglevel)
	}

	selector := domain.ResetSelector{Id: *id, All: *all, OlderThanDays: *olderThan}
	err = selector.Validate()
	if err != nil {
		logger.WithField("error", err).Fatal("Invalid selection")
	}

	p, err := persistence.NewPersistence(conf.Database)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not connect to database")
	}
	defer p.Close()

	if selector.Bulk() {
		count, err := p.CountResettable(selector)
		if err != nil {
			logger.WithField("error", err).Fatal("Could not count matching messages")
		}
		if count == 0 {
			logger.Info("No processed messages match the selection")
			return
		}

		if !confirm(fmt.Sprintf("%d processed message(s) will be marked unprocessed. Continue? [y/N] ", count)) {
			logger.Info("Aborted")
			return
		}
	}

	reset, err := p.ResetProcessed(selector)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not reset processed marks")
	}

	logger.WithField("reset", reset).Info("Reset processed marks")
}

func confirm(prompt string) bool {
	fmt.Print(prompt)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}

	return strings.EqualFold(strings.TrimSpace(line), "y")
}
