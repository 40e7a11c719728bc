// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package condor

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/peterh/liner"
)

var submitCmd = "condor_submit"

// Submit hands the submission file fname over to the HTCondor scheduler.
// Submit does not wait for the jobs to complete.
func Submit(ctx context.Context, stdout, stderr io.Writer, fname string) error {
	cmd := exec.CommandContext(ctx, submitCmd, fname)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if err != nil {
		return fmt.Errorf("condor: could not submit %q: %w", fname, err)
	}
	return nil
}

// Confirm asks the operator to confirm an action on the terminal.
// Only an explicit "y" or "yes" answer confirms.
func Confirm(prompt string) (bool, error) {
	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)

	ans, err := term.Prompt(prompt + " [y/N] ")
	if err != nil {
		if err == liner.ErrPromptAborted || err == io.EOF {
			return false, nil
		}
		return false, fmt.Errorf("condor: could not read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(ans)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
