// SPDX-License-Identifier: GPL-3.0-or-later
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	MailboxGmail = "gmail"
	MailboxImap  = "imap"
)

type Config struct {
	Database  string
	RulesFile string

	// Mailbox selects the backend, either "gmail" or "imap".
	Mailbox string

	GmailCredentialsDir    string
	GmailRequestsPerSecond int

	ImapHost string
	User     string
	Password string
	Folder   string

	FetchLimit  int
	Concurrency int

	DryRun bool

	Loglevel *string
}

func ReadConfig(filename string) (*Config, error) {
	config := &Config{
		Database:               "messages.db",
		RulesFile:              "rules.json",
		Folder:                 "INBOX",
		GmailCredentialsDir:    defaultCredentialsDir(),
		GmailRequestsPerSecond: 5,
	}

	_, err := toml.DecodeFile(filename, config)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	err = config.validate()
	if err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if err := validateNonEmptyStringField(c.Database, "Database name must not be empty, set to a filename for the sqlite database"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.RulesFile, "RulesFile must not be empty, set to the json or yaml rule file"); err != nil {
		return err
	}

	switch c.Mailbox {
	case MailboxGmail:
		if err := validateNonEmptyStringField(c.GmailCredentialsDir, "GmailCredentialsDir must not be empty, set to the directory holding the gmail credential files"); err != nil {
			return err
		}
		if c.GmailRequestsPerSecond < 1 {
			return fmt.Errorf("GmailRequestsPerSecond must be at least 1")
		}
	case MailboxImap:
		if err := validateNonEmptyStringField(c.ImapHost, "ImapHost must not be empty, set to host:port of the imap server"); err != nil {
			return err
		}
		if err := validateNonEmptyStringField(c.User, "User must not be empty, set to username on the imap server"); err != nil {
			return err
		}
		if err := validateNonEmptyStringField(c.Password, "Password must not be empty, set to password of User on the imap server"); err != nil {
			return err
		}
		if err := validateNonEmptyStringField(c.Folder, "Folder must not be empty, set to the imap folder to process"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("Mailbox must be set to either %q or %q", MailboxGmail, MailboxImap)
	}

	if c.FetchLimit < 0 {
		return fmt.Errorf("FetchLimit must not be negative")
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("Concurrency must not be negative")
	}

	return nil
}

func defaultCredentialsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".gmailctl")
}

func validateNonEmptyStringField(field string, err string) error {
	if len(strings.TrimSpace(field)) == 0 {
		return errors.New(err)
	}

	return nil
}
