// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command wmass-resubmit compares the list of input files of a condor
// submission with the files produced in its output directory, and writes
// the list of inputs to process again.
package main // import "github.com/go-lpc/wmass/cmd/wmass-resubmit"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tlog "github.com/go-daq/tdaq/log"
	"github.com/go-lpc/wmass/dataset"
	"github.com/go-lpc/wmass/nanoaod"
	"github.com/go-lpc/wmass/runcfg"
)

var (
	msg = log.New(os.Stdout, "wmass-resubmit: ", 0)
)

func main() {
	xmain(os.Args[1:])
}

func xmain(args []string) {
	var (
		fset = flag.NewFlagSet("wmass-resubmit", flag.ExitOnError)

		oname     = fset.String("o", "resubmit.txt", "path to output list of files to resubmit")
		noPostfix = fset.Bool("noPostfixSkim", false, "outputs were produced without the '_Skim' postfix")
		check     = fset.Bool("check", false, "open produced files and check their events tree")
		njobs     = fset.Int("j", 4, "number of files checked concurrently")
		verbosity = fset.String("v", "info", "verbosity level (debug|info|warn|error)")
	)

	fset.Usage = func() {
		fmt.Printf(`Usage: wmass-resubmit [OPTIONS] inputFiles.txt outdir

ex:
 $> wmass-resubmit -o resub.txt ./postprocDY/inputFiles_mc.txt /eos/cms/store/cmst3/group/wmass/postNANO/DY
 $> wmass-postproc [...] --condorSelectFiles resub.txt

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		msg.Fatalf("could not parse input arguments: %+v", err)
	}

	if fset.NArg() != 2 {
		fset.Usage()
		msg.Fatalf("missing input manifest and output directory")
	}

	lvl, err := runcfg.ParseLevel(*verbosity)
	if err != nil {
		msg.Fatalf("invalid verbosity: %+v", err)
	}

	cfg := config{
		manifest:  fset.Arg(0),
		odir:      fset.Arg(1),
		oname:     *oname,
		noPostfix: *noPostfix,
		check:     *check,
		njobs:     *njobs,
	}

	_, err = process(context.Background(), tlog.NewMsgStream("wmass-resubmit", lvl, os.Stdout), cfg)
	if err != nil {
		msg.Fatalf("could not build resubmission list: %+v", err)
	}
}

type config struct {
	manifest  string
	odir      string
	oname     string
	noPostfix bool
	check     bool
	njobs     int
}

// process writes the inputs of missing or unreadable outputs to cfg.oname
// and returns them.
func process(ctx context.Context, msg tlog.MsgStream, cfg config) ([]string, error) {
	inputs, err := dataset.ReadManifest(cfg.manifest)
	if err != nil {
		return nil, fmt.Errorf("could not read list of input files: %w", err)
	}

	var (
		missing []string
		found   []string
		onames  []string
		outputs = make(map[string][]string, len(inputs)) // output -> inputs
	)
	for _, input := range inputs {
		oname := filepath.Join(cfg.odir, nanoaod.OutputName(input, cfg.noPostfix))
		if prev, dup := outputs[oname]; dup {
			msg.Warnf("inputs %q and %q produce the same output %q", prev[0], input, oname)
		} else {
			onames = append(onames, oname)
		}
		outputs[oname] = append(outputs[oname], input)
	}

	for _, oname := range onames {
		_, err := os.Stat(oname)
		if err != nil {
			msg.Debugf("missing output %q: %+v", oname, err)
			missing = append(missing, outputs[oname]...)
			continue
		}
		found = append(found, oname)
	}
	msg.Infof("outputs: %d/%d", len(found), len(onames))

	if cfg.check && len(found) > 0 {
		outs, err := nanoaod.CheckOutputs(ctx, found, cfg.njobs)
		if err != nil {
			return nil, err
		}
		var nevts int64
		for _, o := range outs {
			if !o.OK() {
				msg.Warnf("invalid output %q: %+v", o.Name, o.Err)
				missing = append(missing, outputs[o.Name]...)
				continue
			}
			nevts += o.Entries
		}
		msg.Infof("events: %d", nevts)
	}

	err = dataset.WriteManifest(cfg.oname, missing)
	if err != nil {
		return nil, fmt.Errorf("could not write list of files to resubmit: %w", err)
	}

	switch len(missing) {
	case 0:
		msg.Infof("all outputs present, nothing to resubmit")
	default:
		msg.Infof("files to resubmit: %d (list: %s)", len(missing), cfg.oname)
	}
	return missing, nil
}
