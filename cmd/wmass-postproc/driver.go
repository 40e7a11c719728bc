// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/wmass/condor"
	"github.com/go-lpc/wmass/dataset"
	"github.com/go-lpc/wmass/internal/notify"
	"github.com/go-lpc/wmass/jobdb"
	"github.com/go-lpc/wmass/nanoaod"
	"github.com/go-lpc/wmass/runcfg"
)

type driver struct {
	cfg    *runcfg.Config
	msg    log.MsgStream
	stdout io.Writer
	stderr io.Writer

	exe  string // driver executable run by batch jobs
	rnd  *rand.Rand
	proc nanoaod.EventProcessor
	seq  nanoaod.ModuleSequenceProvider

	confirm func(prompt string) (bool, error)
	submit  func(ctx context.Context, fname string) error
	record  func(ctx context.Context, sub jobdb.Submission, chunks [][]string) error
	notify  func(subject, body string) error
}

func newDriver(cfg *runcfg.Config, stdout, stderr io.Writer) (*driver, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("could not locate driver executable: %w", err)
	}

	drv := &driver{
		cfg:     cfg,
		msg:     cfg.MsgStream("wmass-postproc", stdout),
		stdout:  stdout,
		stderr:  stderr,
		exe:     exe,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		confirm: condor.Confirm,
		record:  recordSubmission(cfg.JobDB),
		notify:  sendMail,
	}
	drv.submit = func(ctx context.Context, fname string) error {
		return condor.Submit(ctx, drv.stdout, drv.stderr, fname)
	}

	if !cfg.RunNoModules && (cfg.Sequence != "" || !cfg.Condor) {
		drv.seq, err = loadSequence(cfg)
		if err != nil {
			return nil, err
		}
	}

	return drv, nil
}

func loadSequence(cfg *runcfg.Config) (*nanoaod.Sequence, error) {
	if cfg.Sequence == "" {
		return nanoaod.DefaultSequence()
	}
	return nanoaod.LoadSequence(cfg.Sequence)
}

func recordSubmission(dbname string) func(ctx context.Context, sub jobdb.Submission, chunks [][]string) error {
	return func(ctx context.Context, sub jobdb.Submission, chunks [][]string) error {
		db, err := jobdb.Open(dbname)
		if err != nil {
			return err
		}
		defer db.Close()

		_, err = db.Record(ctx, sub, chunks)
		return err
	}
}

func sendMail(subject, body string) error {
	n, err := notify.New(notify.FromEnv())
	if err != nil {
		return err
	}
	return n.Send(subject, body)
}

func (drv *driver) run(ctx context.Context) error {
	cfg := drv.cfg
	drv.msg.Infof(
		"isMC=%d genOnly=%d crab=%d condor=%v passall=%d dataYear=%d maxEvents=%d",
		cfg.IsMC, cfg.GenOnly, cfg.Crab, cfg.Condor, cfg.Passall, cfg.DataYear, cfg.MaxEvents,
	)
	drv.msg.Infof("keep/drop file: %s", cfg.KeepDropFile())

	if cfg.Condor {
		return drv.runCondor(ctx)
	}
	return drv.runLocal(ctx)
}

// abs resolves fname against the launch directory.
func (drv *driver) abs(fname string) string {
	if fname == "" || filepath.IsAbs(fname) {
		return fname
	}
	return filepath.Join(drv.cfg.Env.PWD, fname)
}

func (drv *driver) runLocal(ctx context.Context) error {
	cfg := drv.cfg

	switch cfg.OutDir {
	case ".", "./":
	default:
		drv.msg.Infof("creating output directory %q", cfg.OutDir)
		err := os.MkdirAll(cfg.OutDir, 0755)
		if err != nil {
			return fmt.Errorf("could not create output directory: %w", err)
		}
	}

	inputs, err := cfg.InputFiles()
	if err != nil {
		return err
	}
	if cfg.Crab != 0 && !cfg.FrameworkExt {
		drv.msg.Warnf("no framework job report will be produced: %s does not accept --fwk-job-report (use -frameworkExt)", cfg.Framework)
	}

	mods, err := drv.modules()
	if err != nil {
		return fmt.Errorf("could not build module sequence: %w", err)
	}

	proc := drv.proc
	if proc == nil {
		opts := []nanoaod.Option{
			nanoaod.WithOutput(drv.stdout, drv.stderr),
			nanoaod.WithMsgStream(cfg.MsgStream("nanoaod", drv.stdout)),
		}
		if cfg.FrameworkExt {
			opts = append(opts, nanoaod.WithExtendedOptions())
		}
		if cfg.PMon {
			fname := filepath.Join(cfg.OutDir, filepath.Base(cfg.Framework)+"-pmon.log")
			f, err := os.Create(fname)
			if err != nil {
				return fmt.Errorf("could not create pmon log file: %w", err)
			}
			defer f.Close()
			opts = append(opts, nanoaod.WithPMon(f, 1*time.Second))
		}
		proc = nanoaod.NewExec(cfg.Framework, opts...)
	}

	req := nanoaod.Request{
		Inputs:              inputs,
		OutDir:              cfg.OutDir,
		Modules:             mods,
		KeepDrop:            cfg.KeepDropFile(),
		Compression:         cfg.Compression,
		NoPostfix:           cfg.NoPostfixSkim,
		Provenance:          true,
		SaveHistoGenWeights: cfg.MC(),
		FwkJobReport:        cfg.Crab != 0,
	}
	if cfg.MaxEvents > 0 {
		req.MaxEntries = cfg.MaxEvents
	}

	err = proc.Process(ctx, req)
	if err != nil {
		return fmt.Errorf("could not post-process %d file(s): %w", len(inputs), err)
	}

	drv.msg.Infof("DONE")
	return nil
}

func (drv *driver) modules() ([]nanoaod.Module, error) {
	cfg := drv.cfg
	if cfg.RunNoModules {
		drv.msg.Infof("running with no modules")
		return nil, nil
	}

	mods, err := drv.seq.Sequence(nanoaod.SequenceRequest{
		IsMC:        cfg.MC(),
		DataYear:    cfg.DataYear,
		RunPeriod:   cfg.RunPeriod,
		EraVFP:      cfg.EraVFP,
		JESUncert:   cfg.JESUncert,
		RedoJEC:     cfg.RedoJEC != 0,
		Passall:     cfg.Passall != 0,
		GenOnly:     cfg.GenOnly != 0,
		TrigOnly:    cfg.TrigOnly != 0,
		AddOptional: true,
		OnlyTest:    cfg.IsTest,
		DoSkim:      cfg.DoSkim,
		RunOnlySkim: cfg.RunOnlySkim,
	})
	if err != nil {
		return nil, err
	}
	if len(mods) == 0 {
		drv.msg.Warnf("module sequence is empty")
	}
	for i, m := range mods {
		drv.msg.Debugf("module[%d]: %v", i, m)
	}
	return mods, nil
}

func (drv *driver) readList(fname string) []string {
	if fname == "" {
		return nil
	}
	list, err := dataset.ReadList(drv.abs(fname))
	if err != nil {
		drv.msg.Warnf("could not read file list %q, ignoring it: %+v", fname, err)
		return nil
	}
	return list
}

func (drv *driver) runCondor(ctx context.Context) error {
	cfg := drv.cfg
	drv.msg.Infof("making a condor setup...")

	cdir := drv.abs(cfg.CondorDir)
	err := runcfg.CheckWritable(cdir)
	if err != nil {
		return err
	}
	err = os.MkdirAll(cdir, 0755)
	if err != nil {
		return fmt.Errorf("could not create condor directory: %w", err)
	}

	filter := dataset.Filter{
		Skip:   drv.readList(cfg.CondorSkipFiles),
		Select: drv.readList(cfg.CondorSelectFiles),
	}

	files, err := dataset.Discover(drv.abs(cfg.DSDir), dataset.Ext, filter)
	if err != nil {
		return fmt.Errorf("could not discover dataset files: %w", err)
	}
	if len(files) == 0 {
		drv.msg.Warnf("no input file found under %q", cfg.DSDir)
	}

	// input files differ a lot in size: shuffling evens out the run time of jobs.
	dataset.Shuffle(drv.rnd, files)
	chunks := dataset.Chunk(files, cfg.NFiles)

	// jobs copy their outputs from a scratch directory on the worker node.
	odir := drv.abs(cfg.OutDir)

	tag := cfg.RunTag()
	manifest := dataset.ManifestName(cdir, tag)
	err = dataset.WriteManifest(manifest, files)
	if err != nil {
		drv.msg.Warnf("could not write list of input files: %+v", err)
	}

	wname := filepath.Join(cdir, condor.WrapperName)
	wrp := condor.NewWrapper(cfg.Env.PWD, odir, cfg.KeepDropSource())
	err = wrp.Create(wname)
	if err != nil {
		return fmt.Errorf("could not create job wrapper: %w", err)
	}

	sub := condor.Submission{
		Executable:      wname,
		PWD:             cfg.Env.PWD,
		Memory:          condor.Memory,
		MaxRuntime:      cfg.Runtime,
		JobBatchName:    cfg.JobName,
		AccountingGroup: condor.AccountingGroup(cfg.Env.User),
		Jobs:            make([]condor.Job, 0, len(chunks)),
	}
	for i, chunk := range chunks {
		args := append([]string{odir, drv.exe}, cfg.JobArgs(chunk)...)
		sub.Jobs = append(sub.Jobs, condor.NewJob(cdir, tag, i, args))
	}

	sname := condor.SubmitName(cdir, tag)
	err = sub.Create(sname)
	if err != nil {
		return fmt.Errorf("could not create condor submission file: %w", err)
	}
	drv.msg.Infof("condor submission file made: %s (%d job(s), %d file(s))", sname, len(chunks), len(files))

	if cfg.JobDB != "" {
		err = drv.record(ctx, jobdb.Submission{
			Created:    time.Now().UTC(),
			User:       cfg.Env.User,
			Tag:        tag,
			JobName:    cfg.JobName,
			DSDir:      drv.abs(cfg.DSDir),
			OutDir:     odir,
			CondorFile: sname,
			Files:      len(files),
		}, chunks)
		if err != nil {
			drv.msg.Warnf("could not record submission in %q: %+v", cfg.JobDB, err)
		}
	}

	submitted := false
	if cfg.ExecuteCondor {
		submitted, err = drv.execute(ctx, sname)
		if err != nil {
			return err
		}
	}

	if cfg.Notify {
		status := "created"
		if submitted {
			status = "submitted"
		}
		err = drv.notify(
			fmt.Sprintf("%s submission %s", tag, status),
			fmt.Sprintf(
				"file:    %s\njobs:    %d\nfiles:   %d\ndataset: %s\noutput:  %s\n",
				sname, len(chunks), len(files), cfg.DSDir, odir,
			),
		)
		if err != nil {
			drv.msg.Warnf("could not send notification: %+v", err)
		}
	}

	return nil
}

func (drv *driver) execute(ctx context.Context, fname string) (bool, error) {
	if drv.cfg.Confirm {
		ok, err := drv.confirm(fmt.Sprintf("submit %s?", fname))
		if err != nil {
			return false, fmt.Errorf("could not confirm submission: %w", err)
		}
		if !ok {
			drv.msg.Infof("submission aborted")
			return false, nil
		}
	}

	drv.msg.Infof("executing condor submission file")
	err := drv.submit(ctx, fname)
	if err != nil {
		return false, fmt.Errorf("could not submit condor jobs: %w", err)
	}
	return true, nil
}
