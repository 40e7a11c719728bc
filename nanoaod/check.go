// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nanoaod

import (
	"context"
	"fmt"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rtree"
	"golang.org/x/sync/errgroup"
)

// TreeName is the name of the events tree of NanoAOD files.
const TreeName = "Events"

// Output is the result of checking one produced file.
type Output struct {
	Name    string
	Entries int64
	Err     error
}

// OK reports whether the file could be read back.
func (o Output) OK() bool { return o.Err == nil }

// CheckOutput opens the ROOT file fname and returns the number of entries
// of its events tree.
func CheckOutput(fname string) (int64, error) {
	f, err := groot.Open(fname)
	if err != nil {
		return 0, fmt.Errorf("nanoaod: could not open %q: %w", fname, err)
	}
	defer f.Close()

	obj, err := f.Get(TreeName)
	if err != nil {
		return 0, fmt.Errorf("nanoaod: could not find tree %q in %q: %w", TreeName, fname, err)
	}

	tree, ok := obj.(rtree.Tree)
	if !ok {
		return 0, fmt.Errorf("nanoaod: object %q in %q is not a tree (type=%s)", TreeName, fname, obj.Class())
	}

	return tree.Entries(), nil
}

// CheckOutputs checks the provided files, with at most n files opened
// concurrently. Results are returned in the order of fnames.
// The returned error is only set when ctx is done before all files
// were checked.
func CheckOutputs(ctx context.Context, fnames []string, n int) ([]Output, error) {
	if n <= 0 {
		n = 1
	}

	var (
		outs     = make([]Output, len(fnames))
		grp, gtx = errgroup.WithContext(ctx)
	)
	grp.SetLimit(n)

	for i := range fnames {
		i := i
		grp.Go(func() error {
			err := gtx.Err()
			if err != nil {
				return err
			}
			name := fnames[i]
			nevts, err := CheckOutput(name)
			outs[i] = Output{Name: name, Entries: nevts, Err: err}
			return nil
		})
	}

	err := grp.Wait()
	if err != nil {
		return outs, fmt.Errorf("nanoaod: could not check outputs: %w", err)
	}
	return outs, nil
}
