// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runcfg

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// XRootDGlobal is the global xrootd redirector used for default inputs.
const XRootDGlobal = "root://cms-xrd-global.cern.ch//eos/cms/store/"

var (
	defaultMC = map[int]string{
		2016: "/cmst3/group/wmass/w-mass-13TeV/NanoAOD/DYJetsToMuMu_M-50_TuneCP5_13TeV-powhegMiNNLO-pythia8-photos/NanoAODv7/201025_173845/0000/SMP-RunIISummer16NanoAODv7-00336_1.root",
		2017: "mc/RunIIFall17NanoAODv5/WJetsToLNu_Pt-50To100_TuneCP5_13TeV-amcatnloFXFX-pythia8/NANOAODSIM/PU2017_12Apr2018_Nano1June2019_102X_mc2017_realistic_v7-v1/20000/B1929C77-857F-CA47-B352-DE52C3D6F795.root",
		2018: "mc/RunIIAutumn18NanoAODv5/WJetsToLNu_Pt-50To100_TuneCP5_13TeV-amcatnloFXFX-pythia8/NANOAODSIM/Nano1June2019_102X_upgrade2018_realistic_v19-v1/100000/FEF8F001-02FD-E449-B1FC-67C8653CDCEC.root",
	}

	defaultData = map[int]string{
		2016: "data/Run2016H/SingleMuon/NANOAOD/Nano02Dec2019-v1/270000/062790E9-2D36-FF42-9525-BCD698324ED0.root",
		2017: "data/Run2017F/BTagCSV/NANOAOD/Nano1June2019-v1/40000/030D3C6F-240B-3247-961D-1A7C0922DC1F.root",
		2018: "data/Run2018B/DoubleMuon/NANOAOD/Nano1June2019-v1/40000/20FCA3B4-6778-7441-B63C-307A21C7C2F0.root",
	}
)

// KeepDropFile returns the name of the branch keep/drop file handed to the
// post-processing framework.
func (cfg *Config) KeepDropFile() string {
	if cfg.CustomKeepDrop != "" {
		return cfg.CustomKeepDrop
	}
	if cfg.IsTest {
		return "keep_and_drop_TEST.txt"
	}

	name := "keep_and_drop"
	switch {
	case cfg.MC() && cfg.GenOnly != 0:
		name += "_MCGenOnly"
	case cfg.MC() && cfg.TrigOnly != 0:
		name += "_MCTrigOnly"
	case cfg.MC():
		name += "_MC"
	default:
		name += "_Data"
	}
	return name + ".txt"
}

// InputFiles returns the ordered list of input files for a local run:
// the explicit --iFile list or the default file for the data-taking year.
func (cfg *Config) InputFiles() ([]string, error) {
	if cfg.InputFile != "" {
		var files []string
		for _, f := range strings.Split(cfg.InputFile, ",") {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			files = append(files, f)
		}
		return files, nil
	}

	table := defaultData
	if cfg.MC() {
		table = defaultMC
	}
	fname, ok := table[cfg.DataYear]
	if !ok {
		return nil, fmt.Errorf(
			"runcfg: no default %s input file for year %d, use --iFile",
			cfg.DatasetMode(), cfg.DataYear,
		)
	}
	return []string{XRootDGlobal + fname}, nil
}

// JobArgs re-encodes the configuration as the command-line arguments of a
// local run over the provided files, as executed by one batch job.
func (cfg *Config) JobArgs(files []string) []string {
	args := []string{
		"--isMC", strconv.Itoa(cfg.IsMC),
		"--dataYear", strconv.Itoa(cfg.DataYear),
		"--passall", strconv.Itoa(cfg.Passall),
	}
	add := func(vs ...string) { args = append(args, vs...) }

	switch {
	case cfg.MC():
		if cfg.EraVFP != "" {
			add("--eraVFP", cfg.EraVFP)
		}
	default:
		if cfg.RunPeriod != "" {
			add("--runPeriod", cfg.RunPeriod)
		}
	}
	if cfg.JESUncert != DefaultJESUncert {
		add("--jesUncert", cfg.JESUncert)
	}
	if cfg.GenOnly != 0 {
		add("--genOnly", strconv.Itoa(cfg.GenOnly))
	}
	if cfg.TrigOnly != 0 {
		add("--trigOnly", strconv.Itoa(cfg.TrigOnly))
	}
	if cfg.RedoJEC != 0 {
		add("--redojec", strconv.Itoa(cfg.RedoJEC))
	}
	if cfg.MaxEvents > 0 {
		add("--maxEvents", strconv.Itoa(cfg.MaxEvents))
	}
	if cfg.DoSkim != 0 {
		add("--doSkim", strconv.Itoa(cfg.DoSkim))
	}
	if cfg.RunOnlySkim {
		add("--runOnlySkim")
	}
	if cfg.NoPostfixSkim {
		add("--noPostfixSkim")
	}
	if cfg.Compression != "" {
		add("--compression", cfg.Compression)
	}
	if cfg.RunNoModules {
		add("--runNoModules")
	}
	if cfg.IsTest {
		add("--isTest")
	}
	if cfg.CustomKeepDrop != "" {
		// the job wrapper copies the keep/drop file into the job directory.
		add("--customKeepDrop", filepath.Base(cfg.CustomKeepDrop))
	}
	if cfg.Sequence != "" {
		add("--sequence", cfg.abs(cfg.Sequence))
	}
	if cfg.Framework != DefaultFramework {
		add("--framework", cfg.Framework)
	}
	if cfg.FrameworkExt {
		add("--frameworkExt")
	}
	add("-iFile", strings.Join(files, ","))

	return args
}

// abs returns fname, resolved against the launch directory when relative.
func (cfg *Config) abs(fname string) string {
	if filepath.IsAbs(fname) || cfg.Env.PWD == "" {
		return fname
	}
	return filepath.Join(cfg.Env.PWD, fname)
}

// KeepDropSource returns the path from which batch jobs copy the custom
// keep/drop file, or an empty string if there is none.
func (cfg *Config) KeepDropSource() string {
	if cfg.CustomKeepDrop == "" {
		return ""
	}
	return cfg.abs(cfg.CustomKeepDrop)
}
