// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nanoaod

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed default_sequence.yaml
var defaultSequence []byte

// Sequence is a ModuleSequenceProvider selecting modules from a list of
// steps. Each step names a module and the runs it applies to.
type Sequence struct {
	Steps []Step `yaml:"modules"`
}

// Step is one candidate module of a sequence, with its selectors.
// Empty selectors match any run.
//
// The module name may be a text/template over the SequenceRequest of the
// run, e.g. "jetmetUncertainties{{.DataYear}}{{.JESUncert}}".
type Step struct {
	Module `yaml:",inline"`

	MC      *bool    `yaml:"mc,omitempty"`      // restrict to MC (true) or data (false)
	Years   []int    `yaml:"years,omitempty"`   // data-taking years
	Eras    []string `yaml:"eras,omitempty"`    // VFP eras, MC only
	Periods []string `yaml:"periods,omitempty"` // run periods, data only

	Skim     []int `yaml:"skim,omitempty"`     // skim levels this skimming module runs for
	GenOnly  bool  `yaml:"genOnly,omitempty"`  // kept in generator-only runs
	TrigOnly bool  `yaml:"trigOnly,omitempty"` // kept in trigger-only runs
	Filter   bool  `yaml:"filter,omitempty"`   // event filter, dropped with passall
	Optional bool  `yaml:"optional,omitempty"`
	RedoJEC  bool  `yaml:"redoJEC,omitempty"` // only run when jet-energy corrections are re-applied
	Test     bool  `yaml:"test,omitempty"`    // test module, only run in test mode

	tmpl *template.Template // module name template, if any
}

// DefaultSequence returns the built-in module sequence.
func DefaultSequence() (*Sequence, error) {
	return ParseSequence(bytes.NewReader(defaultSequence))
}

// LoadSequence reads a YAML module sequence from the named file.
func LoadSequence(fname string) (*Sequence, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("nanoaod: could not open sequence file: %w", err)
	}
	defer f.Close()

	seq, err := ParseSequence(f)
	if err != nil {
		return nil, fmt.Errorf("nanoaod: could not load sequence %q: %w", fname, err)
	}
	return seq, nil
}

// ParseSequence decodes a YAML module sequence.
func ParseSequence(r io.Reader) (*Sequence, error) {
	var (
		seq Sequence
		dec = yaml.NewDecoder(r)
	)
	dec.KnownFields(true)

	err := dec.Decode(&seq)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("nanoaod: empty module sequence")
		}
		return nil, fmt.Errorf("nanoaod: could not decode module sequence: %w", err)
	}

	for i, step := range seq.Steps {
		if step.Import == "" || step.Name == "" {
			return nil, fmt.Errorf("nanoaod: module #%d has no import path or name (import=%q, name=%q)", i, step.Import, step.Name)
		}
		if !strings.Contains(step.Name, "{{") {
			continue
		}
		tmpl, err := template.New(step.Import).Parse(step.Name)
		if err != nil {
			return nil, fmt.Errorf("nanoaod: could not parse name of module #%d: %w", i, err)
		}
		seq.Steps[i].tmpl = tmpl
	}

	return &seq, nil
}

// Sequence returns the modules applying to the provided run, in order.
func (seq *Sequence) Sequence(req SequenceRequest) ([]Module, error) {
	if req.GenOnly && req.TrigOnly {
		return nil, fmt.Errorf("nanoaod: generator-only and trigger-only runs are exclusive")
	}

	mods := make([]Module, 0, len(seq.Steps))
	for _, step := range seq.Steps {
		if !step.match(req) {
			continue
		}
		mod, err := step.module(req)
		if err != nil {
			return nil, err
		}
		mods = append(mods, mod)
	}
	return mods, nil
}

// module returns the module of the step, with its name resolved for req.
func (step Step) module(req SequenceRequest) (Module, error) {
	if step.tmpl == nil {
		return step.Module, nil
	}

	o := new(strings.Builder)
	err := step.tmpl.Execute(o, req)
	if err != nil {
		return Module{}, fmt.Errorf("nanoaod: could not resolve name of module %q: %w", step.Name, err)
	}
	name := strings.TrimSpace(o.String())
	if name == "" {
		return Module{}, fmt.Errorf("nanoaod: module %q resolved to an empty name", step.Name)
	}
	return Module{Import: step.Import, Name: name}, nil
}

func (step Step) match(req SequenceRequest) bool {
	if step.Test != req.OnlyTest {
		return false
	}
	if step.MC != nil && *step.MC != req.IsMC {
		return false
	}
	if len(step.Years) > 0 && !containsInt(step.Years, req.DataYear) {
		return false
	}
	if len(step.Eras) > 0 && (!req.IsMC || !containsStr(step.Eras, req.EraVFP)) {
		return false
	}
	if len(step.Periods) > 0 && (req.IsMC || !containsStr(step.Periods, req.RunPeriod)) {
		return false
	}

	skim := len(step.Skim) > 0
	switch {
	case skim && !containsInt(step.Skim, req.DoSkim):
		return false
	case !skim && req.RunOnlySkim:
		return false
	}

	if req.GenOnly && !step.GenOnly && !skim {
		return false
	}
	if req.TrigOnly && !step.TrigOnly && !skim {
		return false
	}
	if req.Passall && step.Filter {
		return false
	}
	if step.Optional && !req.AddOptional {
		return false
	}
	if step.RedoJEC && !req.RedoJEC {
		return false
	}
	return true
}

func containsInt(vs []int, v int) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}

func containsStr(vs []string, v string) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}

var _ ModuleSequenceProvider = (*Sequence)(nil)
