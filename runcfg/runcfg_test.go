// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runcfg

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

var testEnv = Env{PWD: "/home/wmass/CMSSW/src", User: "wmass"}

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
		err  string
	}{
		{
			name: "mc-2016-postVFP",
			args: []string{"--isMC", "1", "--dataYear", "2016", "--eraVFP", "postVFP"},
		},
		{
			name: "mc-2017",
			args: []string{"--isMC", "1", "--dataYear", "2017"},
		},
		{
			name: "data-2016",
			args: []string{"--isMC", "0", "--dataYear", "2016", "--runPeriod", "F"},
		},
		{
			name: "skim-only",
			args: []string{"--eraVFP", "preVFP", "--doSkim", "2", "--runOnlySkim", "--noPostfixSkim"},
		},
		{
			name: "condor",
			args: []string{
				"--eraVFP", "preVFP", "--condor",
				"--condorDir", "postprocDY", "-d", "/eos/cms/store/dy", "-n", "2",
				"-t", "86400", "-j", "ZmumuPreVFP",
			},
		},
		{
			name: "condor-skip",
			args: []string{
				"--eraVFP", "preVFP", "--condor",
				"--condorDir", "postprocDY", "--dsdir", "/eos/cms/store/dy",
				"--condorSkipFiles", "skip.txt",
			},
		},
		{
			name: "invalid-skim",
			args: []string{"--eraVFP", "preVFP", "--doSkim", "3"},
			err:  "--doSkim must be one of {0,1,2}",
		},
		{
			name: "skim-only-no-skim",
			args: []string{"--eraVFP", "preVFP", "--runOnlySkim"},
			err:  "--runOnlySkim requires --doSkim {1,2}",
		},
		{
			name: "gen-only-data",
			args: []string{"--isMC", "0", "--runPeriod", "F", "--genOnly", "1"},
			err:  "cannot run with --genOnly=1 option and data simultaneously",
		},
		{
			name: "trig-only-data",
			args: []string{"--isMC", "0", "--runPeriod", "F", "--trigOnly", "1"},
			err:  "cannot run with --trigOnly=1 option and data simultaneously",
		},
		{
			name: "mc-2016-no-era",
			args: []string{"--isMC", "1", "--dataYear", "2016"},
			err:  "have to specify VFP era when running on 2016 MC using --eraVFP (preVFP|postVFP)",
		},
		{
			name: "mc-2016-bad-era",
			args: []string{"--isMC", "1", "--dataYear", "2016", "--eraVFP", "midVFP"},
			err:  "have to specify VFP era when running on 2016 MC using --eraVFP (preVFP|postVFP)",
		},
		{
			name: "data-no-period",
			args: []string{"--isMC", "0"},
			err:  "need to specify a run period when running data",
		},
		{
			name: "condor-no-dir",
			args: []string{"--eraVFP", "preVFP", "--condor", "--dsdir", "/data"},
			err:  "have to specify output folder for logs and files when using condor, with --condorDir <name>",
		},
		{
			name: "condor-crab",
			args: []string{"--eraVFP", "preVFP", "--condor", "--condorDir", "out", "--dsdir", "/data", "--crab", "1"},
			err:  "options --crab and --condor are not compatible",
		},
		{
			name: "condor-no-dsdir",
			args: []string{"--eraVFP", "preVFP", "--condor", "--condorDir", "out"},
			err:  "if you run on condor, give a path which contains the dataset with --dsdir <path>",
		},
		{
			name: "condor-skip-select",
			args: []string{
				"--eraVFP", "preVFP", "--condor", "--condorDir", "out", "--dsdir", "/data",
				"--condorSkipFiles", "skip.txt", "--condorSelectFiles", "select.txt",
			},
			err: "options --condorSkipFiles and --condorSelectFiles are not compatible, only one list makes sense",
		},
		{
			name: "condor-no-files",
			args: []string{"--eraVFP", "preVFP", "--condor", "--condorDir", "out", "--dsdir", "/data", "--nfiles", "0"},
			err:  "--nfiles must be a positive number of files per job",
		},
		{
			name: "bad-verbosity",
			args: []string{"--eraVFP", "preVFP", "-v", "chatty"},
			err:  `invalid verbosity level "chatty", must be one of (debug|info|warn|error)`,
		},
		{
			name: "extra-args",
			args: []string{"--eraVFP", "preVFP", "file.root"},
			err:  "unexpected arguments: file.root",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Parse(tc.args, testEnv)
			switch {
			case tc.err == "" && err != nil:
				t.Fatalf("could not parse arguments: %+v", err)
			case tc.err == "":
				if cfg == nil {
					t.Fatalf("invalid nil config")
				}
				return
			case err == nil:
				t.Fatalf("expected an error (%q)", tc.err)
			}

			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("invalid error type: %T (%+v)", err, err)
			}
			if got, want := cerr.Error(), tc.err; got != want {
				t.Fatalf("invalid error:\ngot= %q\nwant=%q", got, want)
			}
		})
	}
}

func TestParseShorthands(t *testing.T) {
	cfg, err := Parse([]string{
		"--eraVFP", "postVFP",
		"-o", "out", "-c", "ZLIB:1",
		"--condor", "--condorDir", "cdir",
		"-d", "/data", "-n", "7", "-j", "batch", "-t", "600", "-xc",
	}, testEnv)
	if err != nil {
		t.Fatalf("could not parse arguments: %+v", err)
	}

	for _, tc := range []struct {
		name      string
		got, want interface{}
	}{
		{"outdir", cfg.OutDir, "out"},
		{"compression", cfg.Compression, "ZLIB:1"},
		{"dsdir", cfg.DSDir, "/data"},
		{"nfiles", cfg.NFiles, 7},
		{"jobname", cfg.JobName, "batch"},
		{"runtime", cfg.Runtime, 600},
		{"execute", cfg.ExecuteCondor, true},
	} {
		if !reflect.DeepEqual(tc.got, tc.want) {
			t.Errorf("invalid %s: got=%v, want=%v", tc.name, tc.got, tc.want)
		}
	}
}

func TestKeepDropFile(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "mc",
			cfg:  Config{IsMC: 1},
			want: "keep_and_drop_MC.txt",
		},
		{
			name: "mc-gen-only",
			cfg:  Config{IsMC: 1, GenOnly: 1},
			want: "keep_and_drop_MCGenOnly.txt",
		},
		{
			name: "mc-trig-only",
			cfg:  Config{IsMC: 1, TrigOnly: 1},
			want: "keep_and_drop_MCTrigOnly.txt",
		},
		{
			name: "mc-gen-and-trig-only",
			cfg:  Config{IsMC: 1, GenOnly: 1, TrigOnly: 1},
			want: "keep_and_drop_MCGenOnly.txt",
		},
		{
			name: "data",
			cfg:  Config{IsMC: 0},
			want: "keep_and_drop_Data.txt",
		},
		{
			name: "test",
			cfg:  Config{IsMC: 1, GenOnly: 1, IsTest: true},
			want: "keep_and_drop_TEST.txt",
		},
		{
			name: "custom-mc",
			cfg:  Config{IsMC: 1, GenOnly: 1, IsTest: true, CustomKeepDrop: "my_kd.txt"},
			want: "my_kd.txt",
		},
		{
			name: "custom-data",
			cfg:  Config{IsMC: 0, CustomKeepDrop: "my_kd.txt"},
			want: "my_kd.txt",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got, want := tc.cfg.KeepDropFile(), tc.want; got != want {
				t.Fatalf("invalid keep/drop file: got=%q, want=%q", got, want)
			}
		})
	}
}

func TestInputFiles(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  Config
		want []string
		err  bool
	}{
		{
			name: "explicit",
			cfg:  Config{IsMC: 1, DataYear: 2016, InputFile: "a.root, b.root,,c.root"},
			want: []string{"a.root", "b.root", "c.root"},
		},
		{
			name: "mc-2018",
			cfg:  Config{IsMC: 1, DataYear: 2018},
			want: []string{XRootDGlobal + defaultMC[2018]},
		},
		{
			name: "data-2017",
			cfg:  Config{IsMC: 0, DataYear: 2017},
			want: []string{XRootDGlobal + defaultData[2017]},
		},
		{
			name: "unknown-year",
			cfg:  Config{IsMC: 0, DataYear: 2022},
			err:  true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.cfg.InputFiles()
			switch {
			case tc.err && err == nil:
				t.Fatalf("expected an error")
			case tc.err:
				return
			case err != nil:
				t.Fatalf("could not resolve input files: %+v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("invalid input files:\ngot= %q\nwant=%q", got, tc.want)
			}
		})
	}
}

func TestJobArgs(t *testing.T) {
	files := []string{"root://eoscms.cern.ch//eos/cms/store/a.root", "root://eoscms.cern.ch//eos/cms/store/b.root"}
	for _, tc := range []struct {
		name string
		args []string
		want string
	}{
		{
			name: "mc",
			args: []string{"--eraVFP", "postVFP"},
			want: "--isMC 1 --dataYear 2016 --passall 0 --eraVFP postVFP --compression LZMA:9 -iFile " + strings.Join(files, ","),
		},
		{
			name: "mc-2017-no-era",
			args: []string{"--dataYear", "2017", "--passall", "1"},
			want: "--isMC 1 --dataYear 2017 --passall 1 --compression LZMA:9 -iFile " + strings.Join(files, ","),
		},
		{
			name: "data-skim",
			args: []string{
				"--isMC", "0", "--runPeriod", "G", "--doSkim", "1", "--runOnlySkim",
				"--noPostfixSkim", "--runNoModules", "-c", "ZLIB:3",
			},
			want: "--isMC 0 --dataYear 2016 --passall 0 --runPeriod G --doSkim 1 --runOnlySkim --noPostfixSkim --compression ZLIB:3 --runNoModules -iFile " + strings.Join(files, ","),
		},
		{
			name: "mc-extras",
			args: []string{
				"--eraVFP", "preVFP", "--jesUncert", "Absolute", "--genOnly", "1",
				"--maxEvents", "100", "--customKeepDrop", "kd/custom.txt",
				"--sequence", "seq.yaml", "--isTest",
			},
			want: "--isMC 1 --dataYear 2016 --passall 0 --eraVFP preVFP --jesUncert Absolute --genOnly 1 --maxEvents 100 --compression LZMA:9 --isTest --customKeepDrop custom.txt --sequence /home/wmass/CMSSW/src/seq.yaml -iFile " + strings.Join(files, ","),
		},
		{
			name: "mc-redojec-ext",
			args: []string{"--eraVFP", "preVFP", "--redojec", "1", "--frameworkExt"},
			want: "--isMC 1 --dataYear 2016 --passall 0 --eraVFP preVFP --redojec 1 --compression LZMA:9 --frameworkExt -iFile " + strings.Join(files, ","),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Parse(tc.args, testEnv)
			if err != nil {
				t.Fatalf("could not parse arguments: %+v", err)
			}
			got := strings.Join(cfg.JobArgs(files), " ")
			if got != tc.want {
				t.Fatalf("invalid job arguments:\ngot= %q\nwant=%q", got, tc.want)
			}

			// job arguments must parse back into a valid local run.
			back, err := Parse(cfg.JobArgs(files), testEnv)
			if err != nil {
				t.Fatalf("could not re-parse job arguments: %+v", err)
			}
			if back.Condor {
				t.Fatalf("job arguments should describe a local run")
			}
		})
	}
}

func TestRunTag(t *testing.T) {
	for _, tc := range []struct {
		cfg  Config
		mode string
		tag  string
	}{
		{Config{IsMC: 1, RunPeriod: "B"}, "mc", "mc"},
		{Config{IsMC: 0, RunPeriod: "B"}, "data", "dataB"},
	} {
		if got, want := tc.cfg.DatasetMode(), tc.mode; got != want {
			t.Errorf("invalid dataset mode: got=%q, want=%q", got, want)
		}
		if got, want := tc.cfg.RunTag(), tc.tag; got != want {
			t.Errorf("invalid run tag: got=%q, want=%q", got, want)
		}
	}
}

func TestCheckWritable(t *testing.T) {
	tmp := t.TempDir()

	err := CheckWritable(filepath.Join(tmp, "a", "b", "c"))
	if err != nil {
		t.Fatalf("could not check writable dir: %+v", err)
	}

	if os.Getuid() == 0 {
		// root can write everywhere.
		return
	}

	ro := filepath.Join(tmp, "ro")
	err = os.Mkdir(ro, 0500)
	if err != nil {
		t.Fatalf("could not create read-only dir: %+v", err)
	}
	defer os.Chmod(ro, 0700)

	err = CheckWritable(filepath.Join(ro, "sub"))
	if err == nil {
		t.Fatalf("expected an error")
	}
}
