// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command wmass-postproc post-processes NanoAOD files, either locally or
// by generating (and optionally submitting) HTCondor jobs.
package main // import "github.com/go-lpc/wmass/cmd/wmass-postproc"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-lpc/wmass/runcfg"
)

var (
	msg = log.New(os.Stdout, "wmass-postproc: ", 0)
)

func main() {
	err := xmain(os.Args[1:], runcfg.EnvFromOS(), os.Stdout, os.Stderr)
	if err != nil {
		var cerr *runcfg.ConfigError
		if errors.As(err, &cerr) {
			fmt.Fprintln(os.Stdout, cerr.Msg)
			os.Exit(1)
		}
		msg.Fatalf("%+v", err)
	}
}

func xmain(args []string, env runcfg.Env, stdout, stderr io.Writer) error {
	cfg, err := runcfg.Parse(args, env)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			usage(stdout, env)
			return nil
		}
		return err
	}

	drv, err := newDriver(cfg, stdout, stderr)
	if err != nil {
		return fmt.Errorf("could not create driver: %w", err)
	}

	return drv.run(context.Background())
}

func usage(w io.Writer, env runcfg.Env) {
	fset := flag.NewFlagSet("wmass-postproc", flag.ContinueOnError)
	fset.SetOutput(w)
	runcfg.New(env).Register(fset)

	fmt.Fprintf(w, `Usage: wmass-postproc [OPTIONS]

ex:
 $> wmass-postproc --isMC 1 --dataYear 2016 --eraVFP postVFP -o ./out
 $> wmass-postproc --isMC 0 --runPeriod F -iFile a.root,b.root
 $> wmass-postproc --eraVFP postVFP --passall 1 \
      -condor --condorDir postprocDY_postVFP -t 86400 -j ZmumuPostVFP -n 2 \
      -d /eos/cms/store/cmst3/group/wmass/nanov8/DYJetsToMuMu \
      -o /eos/cms/store/cmst3/group/wmass/postNANO/DYJetsToMuMu_postVFP

options:
`)
	fset.PrintDefaults()
}
