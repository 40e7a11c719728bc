// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package runcfg holds the run configuration of the NanoAOD post-processing
// driver: command-line options, their validation and the settings derived
// from them.
package runcfg // import "github.com/go-lpc/wmass/runcfg"

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"
)

const (
	// DefaultCompression is the compression algorithm used for output files.
	DefaultCompression = "LZMA:9"
	// DefaultJESUncert is the default jet-energy-scale uncertainty source.
	DefaultJESUncert = "Total"
	// DefaultFramework is the executable of the post-processing framework.
	DefaultFramework = "nano_postproc.py"
)

// Env holds the parts of the process environment the driver depends on.
type Env struct {
	PWD  string // directory the driver was launched from
	User string // invoking user
}

// EnvFromOS captures the environment of the current process.
func EnvFromOS() Env {
	env := Env{
		PWD:  os.Getenv("PWD"),
		User: os.Getenv("USER"),
	}
	if env.PWD == "" {
		if dir, err := os.Getwd(); err == nil {
			env.PWD = dir
		}
	}
	if env.User == "" {
		if usr, err := user.Current(); err == nil {
			env.User = usr.Username
		}
	}
	return env
}

// Config is the resolved set of options for one invocation of the driver.
// A Config is created once, validated, and then only read.
type Config struct {
	Env Env

	JobNum    int
	Crab      int
	Passall   int
	IsMC      int
	MaxEvents int
	DataYear  int
	JESUncert string
	RedoJEC   int
	RunPeriod string
	EraVFP    string
	GenOnly   int
	TrigOnly  int
	InputFile string // comma-separated list of input files

	Compression    string
	RunNoModules   bool
	DoSkim         int
	RunOnlySkim    bool
	NoPostfixSkim  bool
	IsTest         bool
	CustomKeepDrop string
	OutDir         string
	Sequence       string // YAML module sequence
	Framework      string
	FrameworkExt   bool // framework accepts the extended PostProcessor options
	PMon           bool

	Condor            bool
	DSDir             string
	NFiles            int
	JobName           string
	Runtime           int
	CondorDir         string
	CondorSkipFiles   string
	CondorSelectFiles string
	ExecuteCondor     bool
	Confirm           bool
	Notify            bool
	JobDB             string

	Verbosity string
}

// New returns a Config holding the default option values.
func New(env Env) *Config {
	return &Config{
		Env:         env,
		JobNum:      1,
		IsMC:        1,
		MaxEvents:   -1,
		DataYear:    2016,
		JESUncert:   DefaultJESUncert,
		Compression: DefaultCompression,
		OutDir:      ".",
		Framework:   DefaultFramework,
		NFiles:      5,
		Runtime:     43200,
		Verbosity:   "info",
	}
}

// Register binds the configuration to the provided flag set.
// Options with a short alias are registered under both names.
func (cfg *Config) Register(fset *flag.FlagSet) {
	fset.IntVar(&cfg.JobNum, "jobNum", cfg.JobNum, "job number")
	fset.IntVar(&cfg.Crab, "crab", cfg.Crab, "run within a CRAB job")
	fset.IntVar(&cfg.Passall, "passall", cfg.Passall, "do not filter events")
	fset.IntVar(&cfg.IsMC, "isMC", cfg.IsMC, "process Monte-Carlo (1) or data (0)")
	fset.IntVar(&cfg.MaxEvents, "maxEvents", cfg.MaxEvents, "maximum number of events to process (<=0: all)")
	fset.IntVar(&cfg.DataYear, "dataYear", cfg.DataYear, "data-taking year")
	fset.StringVar(&cfg.JESUncert, "jesUncert", cfg.JESUncert, "jet-energy-scale uncertainty source")
	fset.IntVar(&cfg.RedoJEC, "redojec", cfg.RedoJEC, "re-apply jet-energy corrections")
	fset.StringVar(&cfg.RunPeriod, "runPeriod", cfg.RunPeriod, "run period (B,C,D,...), mandatory for data")
	fset.StringVar(&cfg.EraVFP, "eraVFP", cfg.EraVFP, "VFP era (preVFP|postVFP), mandatory for 2016 MC")
	fset.IntVar(&cfg.GenOnly, "genOnly", cfg.GenOnly, "run only generator-level modules")
	fset.IntVar(&cfg.TrigOnly, "trigOnly", cfg.TrigOnly, "run only trigger modules")
	fset.StringVar(&cfg.InputFile, "iFile", cfg.InputFile, "comma-separated list of input files")

	fset.StringVar(&cfg.Compression, "compression", cfg.Compression, "compression algorithm")
	fset.StringVar(&cfg.Compression, "c", cfg.Compression, "compression algorithm (shorthand)")
	fset.BoolVar(&cfg.RunNoModules, "runNoModules", cfg.RunNoModules, "do not run any module, only reproduce the input (possibly removing branches or changing compression)")
	fset.IntVar(&cfg.DoSkim, "doSkim", cfg.DoSkim, "if > 0, run skimming modules (1=1-lepton, 2=2-lepton phase space)")
	fset.BoolVar(&cfg.RunOnlySkim, "runOnlySkim", cfg.RunOnlySkim, "with doSkim>0, only run the skimming module")
	fset.BoolVar(&cfg.NoPostfixSkim, "noPostfixSkim", cfg.NoPostfixSkim, "do not add '_Skim' as postfix to the output name")
	fset.BoolVar(&cfg.IsTest, "isTest", cfg.IsTest, "run test modules (uses keep_and_drop_TEST.txt)")
	fset.StringVar(&cfg.CustomKeepDrop, "customKeepDrop", cfg.CustomKeepDrop, "use this file for keep-drop")
	fset.StringVar(&cfg.OutDir, "outDir", cfg.OutDir, "output directory")
	fset.StringVar(&cfg.OutDir, "o", cfg.OutDir, "output directory (shorthand)")
	fset.StringVar(&cfg.Sequence, "sequence", cfg.Sequence, "path to YAML module sequence")
	fset.StringVar(&cfg.Framework, "framework", cfg.Framework, "post-processing framework executable")
	fset.BoolVar(&cfg.FrameworkExt, "frameworkExt", cfg.FrameworkExt, "framework accepts --provenance, --save-gen-weights, --fwk-job-report and --allow-no-postfix")
	fset.BoolVar(&cfg.PMon, "pmon", cfg.PMon, "enable pmon monitoring of the framework process")

	fset.BoolVar(&cfg.Condor, "condor", cfg.Condor, "run on condor instead of locally or on crab")
	fset.StringVar(&cfg.DSDir, "dsdir", cfg.DSDir, "input directory of dataset, to be given with condor option")
	fset.StringVar(&cfg.DSDir, "d", cfg.DSDir, "input directory of dataset (shorthand)")
	fset.IntVar(&cfg.NFiles, "nfiles", cfg.NFiles, "number of files to run per condor job")
	fset.IntVar(&cfg.NFiles, "n", cfg.NFiles, "number of files per condor job (shorthand)")
	fset.StringVar(&cfg.JobName, "jobname", cfg.JobName, "name of the condor job batch")
	fset.StringVar(&cfg.JobName, "j", cfg.JobName, "name of the condor job batch (shorthand)")
	fset.IntVar(&cfg.Runtime, "runtime", cfg.Runtime, "MaxRuntime for condor jobs, in seconds")
	fset.IntVar(&cfg.Runtime, "t", cfg.Runtime, "MaxRuntime for condor jobs (shorthand)")
	fset.StringVar(&cfg.CondorDir, "condorDir", cfg.CondorDir, "output folder for condor files and logs, mandatory with condor")
	fset.StringVar(&cfg.CondorSkipFiles, "condorSkipFiles", cfg.CondorSkipFiles, "file listing input files to skip (resubmission)")
	fset.StringVar(&cfg.CondorSelectFiles, "condorSelectFiles", cfg.CondorSelectFiles, "file listing the only input files to keep (resubmission)")
	fset.BoolVar(&cfg.ExecuteCondor, "executeCondor", cfg.ExecuteCondor, "submit the condor file once written")
	fset.BoolVar(&cfg.ExecuteCondor, "xc", cfg.ExecuteCondor, "submit the condor file once written (shorthand)")
	fset.BoolVar(&cfg.Confirm, "confirm", cfg.Confirm, "ask for confirmation before submitting")
	fset.BoolVar(&cfg.Notify, "notify", cfg.Notify, "send a mail once the submission file is made (MAIL_* env)")
	fset.StringVar(&cfg.JobDB, "jobdb", cfg.JobDB, "name of the bookkeeping database to record submissions into")

	fset.StringVar(&cfg.Verbosity, "v", cfg.Verbosity, "verbosity level (debug|info|warn|error)")
}

// Parse parses the command-line arguments and validates the resulting
// configuration.
func Parse(args []string, env Env) (*Config, error) {
	var (
		cfg  = New(env)
		fset = flag.NewFlagSet("wmass-postproc", flag.ContinueOnError)
	)
	fset.SetOutput(io.Discard)
	cfg.Register(fset)

	err := fset.Parse(args)
	if err != nil {
		return nil, fmt.Errorf("runcfg: could not parse arguments: %w", err)
	}
	if fset.NArg() != 0 {
		return nil, &ConfigError{
			Msg: fmt.Sprintf("unexpected arguments: %s", strings.Join(fset.Args(), " ")),
		}
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// MC reports whether the configuration describes Monte-Carlo samples.
func (cfg *Config) MC() bool { return cfg.IsMC != 0 }

// DatasetMode returns "mc" or "data".
func (cfg *Config) DatasetMode() string {
	if cfg.MC() {
		return "mc"
	}
	return "data"
}

// RunTag returns the tag used to name condor files: the dataset mode,
// followed by the run period for data.
func (cfg *Config) RunTag() string {
	if cfg.MC() {
		return "mc"
	}
	return "data" + cfg.RunPeriod
}
