// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package notify

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"testing"

	mail "gopkg.in/gomail.v2"
)

type fakeSender struct {
	msgs []*mail.Message
	err  error
}

func (s *fakeSender) DialAndSend(m ...*mail.Message) error {
	s.msgs = append(s.msgs, m...)
	return s.err
}

func TestFromEnv(t *testing.T) {
	t.Setenv("MAIL_USERNAME", "wmass@cern.ch")
	t.Setenv("MAIL_PASSWORD", "s3cr3t")
	t.Setenv("MAIL_SERVER", "smtp.cern.ch")
	t.Setenv("MAIL_PORT", "587")
	t.Setenv("MAIL_TGTS", "alice@cern.ch, bob@cern.ch,")

	got := FromEnv()
	want := Config{
		User:     "wmass@cern.ch",
		Password: "s3cr3t",
		Server:   "smtp.cern.ch",
		Port:     587,
		Targets:  []string{"alice@cern.ch", "bob@cern.ch"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid config:\ngot= %+v\nwant=%+v", got, want)
	}
}

func TestNew(t *testing.T) {
	valid := Config{
		User:     "wmass@cern.ch",
		Password: "s3cr3t",
		Server:   "smtp.cern.ch",
		Port:     587,
		Targets:  []string{"alice@cern.ch"},
	}

	for _, tc := range []struct {
		name string
		cfg  func() Config
		err  bool
	}{
		{"valid", func() Config { return valid }, false},
		{"no-user", func() Config { c := valid; c.User = ""; return c }, true},
		{"no-password", func() Config { c := valid; c.Password = ""; return c }, true},
		{"no-server", func() Config { c := valid; c.Server = ""; return c }, true},
		{"no-port", func() Config { c := valid; c.Port = 0; return c }, true},
		{"no-targets", func() Config { c := valid; c.Targets = nil; return c }, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.cfg())
			switch {
			case err != nil && !tc.err:
				t.Fatalf("could not create notifier: %+v", err)
			case err == nil && tc.err:
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestSend(t *testing.T) {
	dial := new(fakeSender)
	n := &Notifier{
		cfg: Config{
			User:    "wmass@cern.ch",
			Targets: []string{"alice@cern.ch", "bob@cern.ch"},
		},
		dial: dial,
	}

	err := n.Send("submission mc", "jobs: 3")
	if err != nil {
		t.Fatalf("could not send mail: %+v", err)
	}
	if got, want := len(dial.msgs), 1; got != want {
		t.Fatalf("invalid number of mails: got=%d, want=%d", got, want)
	}

	msg := dial.msgs[0]
	if got, want := msg.GetHeader("Subject"), []string{"[wmass-postproc] submission mc"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid subject: got=%q, want=%q", got, want)
	}
	if got, want := msg.GetHeader("Bcc"), []string{"alice@cern.ch", "bob@cern.ch"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid recipients: got=%q, want=%q", got, want)
	}

	o := new(bytes.Buffer)
	_, err = msg.WriteTo(o)
	if err != nil {
		t.Fatalf("could not render mail: %+v", err)
	}
	if !strings.Contains(o.String(), "jobs: 3") {
		t.Fatalf("missing body in mail:\n%s", o.String())
	}

	dial.err = fmt.Errorf("connection refused")
	err = n.Send("submission mc", "jobs: 3")
	if err == nil {
		t.Fatalf("expected an error")
	}
}
