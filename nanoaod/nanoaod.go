// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nanoaod describes the work handed to the NanoAOD post-processing
// framework: the analysis modules to run, the files to process, and how to
// write outputs.
package nanoaod // import "github.com/go-lpc/wmass/nanoaod"

import (
	"context"
	"path/filepath"
	"strings"
)

// DefaultPostfix is appended to output file names, before the extension.
const DefaultPostfix = "_Skim"

// Module names one analysis module of the framework.
type Module struct {
	Import string `yaml:"import"` // import path of the module
	Name   string `yaml:"name"`   // constructor symbol
}

func (m Module) String() string { return m.Import + ":" + m.Name }

// Request describes one invocation of the framework.
type Request struct {
	Inputs  []string
	OutDir  string
	Modules []Module

	KeepDrop    string // branch keep/drop file applied to outputs
	Compression string
	MaxEntries  int    // maximum number of entries per file (<=0: all)
	Cut         string // event pre-selection

	NoPostfix           bool // do not append DefaultPostfix to output names
	Provenance          bool
	SaveHistoGenWeights bool
	FwkJobReport        bool
}

// OutputName returns the name of the output file produced from the input
// file fname.
func OutputName(fname string, noPostfix bool) string {
	name := filepath.Base(fname)
	if noPostfix {
		return name
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + DefaultPostfix + ext
}

// EventProcessor runs the post-processing framework.
type EventProcessor interface {
	Process(ctx context.Context, req Request) error
}

// SequenceRequest holds the run settings a module sequence depends on.
type SequenceRequest struct {
	IsMC      bool
	DataYear  int
	RunPeriod string
	EraVFP    string
	JESUncert string // jet-energy-scale uncertainty source
	RedoJEC   bool   // re-apply jet-energy corrections
	Passall   bool
	GenOnly   bool
	TrigOnly  bool

	AddOptional bool
	OnlyTest    bool
	DoSkim      int
	RunOnlySkim bool
}

// ModuleSequenceProvider builds the ordered list of modules to run.
type ModuleSequenceProvider interface {
	Sequence(req SequenceRequest) ([]Module, error)
}
