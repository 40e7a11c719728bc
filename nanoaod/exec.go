// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nanoaod

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/sbinet/pmon"
)

// Exec is an EventProcessor running the framework as an external command.
//
// By default, Exec only passes the options of the stock nano_postproc.py
// command line. Runners exposing the remaining PostProcessor settings are
// enabled with WithExtendedOptions.
type Exec struct {
	cmd    string
	stdout io.Writer
	stderr io.Writer
	msg    log.MsgStream
	ext    bool // runner accepts the extended options

	pmon struct {
		w    io.Writer
		freq time.Duration
	}
}

// Option configures an Exec processor.
type Option func(*Exec)

// WithOutput redirects the standard output and error of the framework.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(e *Exec) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// WithMsgStream sets the message stream the processor logs through.
func WithMsgStream(msg log.MsgStream) Option {
	return func(e *Exec) {
		e.msg = msg
	}
}

// WithExtendedOptions declares that the framework runner accepts the
// --provenance, --save-gen-weights, --fwk-job-report and --allow-no-postfix
// options.
func WithExtendedOptions() Option {
	return func(e *Exec) {
		e.ext = true
	}
}

// WithPMon enables monitoring of the framework process. Samples are
// written to w every freq.
func WithPMon(w io.Writer, freq time.Duration) Option {
	return func(e *Exec) {
		e.pmon.w = w
		e.pmon.freq = freq
	}
}

// NewExec returns a processor running the framework executable cmd.
func NewExec(cmd string, opts ...Option) *Exec {
	e := &Exec{
		cmd:    cmd,
		stdout: os.Stdout,
		stderr: os.Stderr,
		msg:    log.NewMsgStream("nanoaod", log.LvlInfo, os.Stdout),
	}
	e.pmon.freq = 1 * time.Second
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Args returns the command-line arguments of the framework for the
// provided request.
func (e *Exec) Args(req Request) []string {
	var args []string
	if req.KeepDrop != "" {
		args = append(args, "--bo", req.KeepDrop)
	}
	if req.Compression != "" {
		args = append(args, "-z", req.Compression)
	}
	if req.MaxEntries > 0 {
		args = append(args, "-N", strconv.Itoa(req.MaxEntries))
	}
	if req.Cut != "" {
		args = append(args, "-c", req.Cut)
	}
	switch {
	case req.NoPostfix && e.ext:
		args = append(args, "--allow-no-postfix")
	case req.NoPostfix:
		args = append(args, "-s", "")
	default:
		args = append(args, "-s", DefaultPostfix)
	}
	if e.ext {
		if req.Provenance {
			args = append(args, "--provenance")
		}
		if req.SaveHistoGenWeights {
			args = append(args, "--save-gen-weights")
		}
		if req.FwkJobReport {
			args = append(args, "--fwk-job-report")
		}
	}
	for _, m := range req.Modules {
		args = append(args, "-I", m.Import, m.Name)
	}
	args = append(args, req.OutDir)
	args = append(args, req.Inputs...)
	return args
}

// Process runs the framework over the request and waits for its
// completion.
func (e *Exec) Process(ctx context.Context, req Request) error {
	if len(req.Inputs) == 0 {
		return fmt.Errorf("nanoaod: no input file to process")
	}

	var (
		name = filepath.Base(e.cmd)
		args = e.Args(req)
		cmd  = exec.CommandContext(ctx, e.cmd, args...)
	)
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	e.msg.Infof("running %s with %d module(s) over %d file(s)...", name, len(req.Modules), len(req.Inputs))
	e.msg.Debugf("%s %s", e.cmd, strings.Join(args, " "))
	if ignored := e.ignored(req); len(ignored) > 0 {
		e.msg.Debugf("%s does not support %s, ignoring", name, strings.Join(ignored, ", "))
	}

	err := cmd.Start()
	if err != nil {
		return fmt.Errorf("nanoaod: could not start %q: %w", name, err)
	}

	if e.pmon.w != nil {
		p, err := pmon.Monitor(cmd.Process.Pid)
		if err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return fmt.Errorf("nanoaod: could not start monitoring %q (pid=%d): %w", name, cmd.Process.Pid, err)
		}
		p.W = e.pmon.w
		p.Freq = e.pmon.freq

		go func() {
			e.msg.Debugf("run pmon %q...", name)
			err := p.Run()
			if err != nil {
				e.msg.Warnf("could not monitor %q: %+v", name, err)
			}
		}()

		defer func() {
			err := p.Kill()
			if err != nil {
				e.msg.Debugf("could not stop monitoring %q: %+v", name, err)
			}
		}()
	}

	err = cmd.Wait()
	if err != nil {
		return fmt.Errorf("nanoaod: could not run %q: %w", name, err)
	}

	e.msg.Infof("running %s... [done]", name)
	return nil
}

// ignored returns the settings of req the framework runner can not be
// told about.
func (e *Exec) ignored(req Request) []string {
	if e.ext {
		return nil
	}
	var o []string
	if req.Provenance {
		o = append(o, "provenance")
	}
	if req.SaveHistoGenWeights {
		o = append(o, "gen-weight histograms")
	}
	if req.FwkJobReport {
		o = append(o, "framework job report")
	}
	return o
}

var _ EventProcessor = (*Exec)(nil)
