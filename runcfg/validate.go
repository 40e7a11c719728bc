// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runcfg

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// ConfigError describes an invalid or contradictory combination of options.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

func cfgErrorf(format string, args ...interface{}) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// Validate checks the configuration for invalid combinations of options.
// The returned error, if any, is a *ConfigError.
func (cfg *Config) Validate() error {
	switch cfg.DoSkim {
	case 0, 1, 2:
	default:
		return cfgErrorf("--doSkim must be one of {0,1,2}")
	}

	if cfg.RunOnlySkim && cfg.DoSkim == 0 {
		return cfgErrorf("--runOnlySkim requires --doSkim {1,2}")
	}

	if cfg.GenOnly != 0 && !cfg.MC() {
		return cfgErrorf("cannot run with --genOnly=1 option and data simultaneously")
	}

	if cfg.TrigOnly != 0 && !cfg.MC() {
		return cfgErrorf("cannot run with --trigOnly=1 option and data simultaneously")
	}

	if cfg.MC() && cfg.DataYear == 2016 {
		switch cfg.EraVFP {
		case "preVFP", "postVFP":
		default:
			return cfgErrorf("have to specify VFP era when running on 2016 MC using --eraVFP (preVFP|postVFP)")
		}
	}

	// the run period could be guessed from the input directory,
	// at least with condor. force the user to give it for now.
	if !cfg.MC() && cfg.RunPeriod == "" {
		return cfgErrorf("need to specify a run period when running data")
	}

	if cfg.Condor {
		err := cfg.validateCondor()
		if err != nil {
			return err
		}
	}

	_, err := ParseLevel(cfg.Verbosity)
	if err != nil {
		return cfgErrorf("invalid verbosity level %q, must be one of (debug|info|warn|error)", cfg.Verbosity)
	}

	return nil
}

func (cfg *Config) validateCondor() error {
	switch {
	case cfg.CondorDir == "":
		return cfgErrorf("have to specify output folder for logs and files when using condor, with --condorDir <name>")
	case cfg.Crab != 0:
		return cfgErrorf("options --crab and --condor are not compatible")
	case cfg.DSDir == "":
		return cfgErrorf("if you run on condor, give a path which contains the dataset with --dsdir <path>")
	case cfg.CondorSkipFiles != "" && cfg.CondorSelectFiles != "":
		return cfgErrorf("options --condorSkipFiles and --condorSelectFiles are not compatible, only one list makes sense")
	case cfg.NFiles < 1:
		return cfgErrorf("--nfiles must be a positive number of files per job")
	}

	return nil
}

// CheckWritable checks that dir, or its closest existing parent,
// can be written to by the current user.
func CheckWritable(dir string) error {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("runcfg: could not resolve %q: %w", dir, err)
	}

	for {
		_, err := os.Stat(dir)
		if err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return fmt.Errorf("runcfg: could not find an existing parent for %q: %w", dir, err)
		}
		dir = parent
	}

	err = unix.Access(dir, unix.W_OK)
	if err != nil {
		return fmt.Errorf("runcfg: directory %q is not writable: %w", dir, err)
	}
	return nil
}
