// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package notify sends mail notifications about submitted batch jobs.
package notify // import "github.com/go-lpc/wmass/internal/notify"

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"

	mail "gopkg.in/gomail.v2"
)

// Config holds the mail server settings and the list of recipients.
type Config struct {
	User     string
	Password string
	Server   string
	Port     int
	Targets  []string
}

// FromEnv reads the mail configuration from the MAIL_USERNAME,
// MAIL_PASSWORD, MAIL_SERVER, MAIL_PORT and MAIL_TGTS environment
// variables.
func FromEnv() Config {
	cfg := Config{
		User:     os.Getenv("MAIL_USERNAME"),
		Password: os.Getenv("MAIL_PASSWORD"),
		Server:   os.Getenv("MAIL_SERVER"),
	}
	cfg.Port, _ = strconv.Atoi(os.Getenv("MAIL_PORT"))
	for _, tgt := range strings.Split(os.Getenv("MAIL_TGTS"), ",") {
		tgt = strings.TrimSpace(tgt)
		if tgt == "" {
			continue
		}
		cfg.Targets = append(cfg.Targets, tgt)
	}
	return cfg
}

func (cfg Config) validate() error {
	if cfg.User == "" || cfg.Password == "" ||
		cfg.Server == "" || cfg.Port == 0 ||
		len(cfg.Targets) == 0 {
		return fmt.Errorf("notify: missing credentials")
	}
	return nil
}

type sender interface {
	DialAndSend(m ...*mail.Message) error
}

// Notifier sends mails to the configured recipients.
type Notifier struct {
	cfg  Config
	dial sender
}

// New returns a notifier for the provided configuration.
func New(cfg Config) (*Notifier, error) {
	err := cfg.validate()
	if err != nil {
		return nil, err
	}

	dial := mail.NewDialer(cfg.Server, cfg.Port, cfg.User, cfg.Password)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}

	return &Notifier{cfg: cfg, dial: dial}, nil
}

// Send sends a plain-text mail with the provided subject and body.
func (n *Notifier) Send(subject, body string) error {
	msg := n.message(subject, body)
	err := n.dial.DialAndSend(msg)
	if err != nil {
		return fmt.Errorf("notify: could not send mail: %w", err)
	}
	return nil
}

func (n *Notifier) message(subject, body string) *mail.Message {
	msg := mail.NewMessage()
	msg.SetHeader("From", n.cfg.User)
	msg.SetHeader("Bcc", n.cfg.Targets...)
	msg.SetHeader("Subject", "[wmass-postproc] "+subject)
	msg.SetBody("text/plain", body)
	return msg
}
