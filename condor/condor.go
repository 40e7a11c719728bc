// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package condor generates HTCondor submission files and the job wrapper
// script they execute.
package condor // import "github.com/go-lpc/wmass/condor"

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

const (
	// WrapperName is the name of the shell script each job executes.
	WrapperName = "wmass_exec.sh"

	// Memory is the memory request of each job, in MB.
	Memory = 2000
)

var accountingGroups = map[string]string{
	"mdunser":  "group_u_CMST3.all",
	"kelong":   "group_u_CMST3.all",
	"bendavid": "group_u_CMST3.all",
	"mciprian": "group_u_CMS.CAF.ALCA",
}

// AccountingGroup returns the accounting group of the provided user,
// or an empty string if the user has none.
func AccountingGroup(user string) string {
	return accountingGroups[user]
}

// Submission describes a HTCondor submission file.
type Submission struct {
	Executable      string // path to the job wrapper script
	PWD             string // submission directory, exported to jobs
	Memory          int    // memory request, in MB
	MaxRuntime      int    // maximum job run-time, in seconds
	JobBatchName    string
	AccountingGroup string

	Jobs []Job
}

// Job describes one queued job of a submission.
type Job struct {
	Index  int
	Args   string
	Log    string
	Output string
	Error  string
}

// NewJob creates the job for the chunk with the provided index.
// Log files are named after the directory, run tag and chunk index.
func NewJob(dir, tag string, index int, args []string) Job {
	base := filepath.Join(dir, fmt.Sprintf("log_condor_%s_chunk%d", tag, index))
	return Job{
		Index:  index,
		Args:   joinArgs(args),
		Log:    base + ".log",
		Output: base + ".out",
		Error:  base + ".error",
	}
}

// joinArgs joins job arguments for the "arguments" command of a submission
// file. Arguments holding white space or quotes switch to the quoted syntax,
// where each argument is single-quoted and quotes are doubled.
func joinArgs(args []string) string {
	quote := false
	for _, arg := range args {
		if arg == "" || strings.ContainsAny(arg, " \t'\"") {
			quote = true
			break
		}
	}
	if !quote {
		return strings.Join(args, " ")
	}

	o := make([]string, len(args))
	for i, arg := range args {
		arg = strings.Replace(arg, `"`, `""`, -1)
		if arg == "" || strings.ContainsAny(arg, " \t'") {
			arg = "'" + strings.Replace(arg, "'", "''", -1) + "'"
		}
		o[i] = arg
	}
	return `"` + strings.Join(o, " ") + `"`
}

// SubmitName returns the name of the submission file of a run.
func SubmitName(dir, tag string) string {
	return filepath.Join(dir, "condor_submit_"+tag+".condor")
}

var submitTmpl = template.Must(template.New("submit").Parse(`Executable = {{.Executable}}
use_x509userproxy = true
getenv      = True
environment = "LS_SUBCWD={{.PWD}}"
transfer_output_files = ""
request_memory = {{.Memory}}
+MaxRuntime = {{.MaxRuntime}}
{{- if .JobBatchName}}
+JobBatchName = "{{.JobBatchName}}"
{{- end}}
{{- if .AccountingGroup}}
+AccountingGroup = "{{.AccountingGroup}}"
{{- end}}
{{range .Jobs}}
arguments = {{.Args}}

Log        = {{.Log}}
Output     = {{.Output}}
Error      = {{.Error}}
queue 1
{{end}}`))

// Write renders the submission file to w.
func (sub *Submission) Write(w io.Writer) error {
	err := submitTmpl.Execute(w, sub)
	if err != nil {
		return fmt.Errorf("condor: could not render submission file: %w", err)
	}
	return nil
}

// Wrapper describes the shell script executed by each job.
// The script receives the output directory as first argument, followed by
// the command to run.
type Wrapper struct {
	PWD       string   // submission directory, holding the software environment
	KeepDrop  []string // extra keep/drop files to copy into the job directory
	Ext       string   // extension of produced files
	CopyCmd   string   // command copying merged files to the output directory
	MergeCmd  string   // command merging one produced file into compressed/
	MergeDir  string
	SetupCmds []string
}

// NewWrapper returns the wrapper for jobs launched from pwd and writing
// their outputs to odir.
func NewWrapper(pwd, odir string, keepdrop ...string) Wrapper {
	w := Wrapper{
		PWD:       pwd,
		Ext:       ".root",
		CopyCmd:   "cp",
		MergeCmd:  "hadd -ff",
		MergeDir:  "compressed",
		SetupCmds: []string{"eval $(scramv1 runtime -sh);"},
	}
	if strings.HasPrefix(odir, "/eos/") {
		w.CopyCmd = "eos cp"
	}
	for _, kd := range keepdrop {
		if kd == "" {
			continue
		}
		w.KeepDrop = append(w.KeepDrop, kd)
	}
	return w
}

// shellQuote quotes s as a single word for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.Replace(s, "'", `'\''`, -1) + "'"
}

var wrapperTmpl = template.Must(template.New("wrapper").Funcs(template.FuncMap{
	"quote": shellQuote,
}).Parse(`#!/bin/bash
echo '===setting outdir'
OUTDIR="$1"
echo '===changing into proper directory'
cd {{quote .PWD}} || exit $?
echo '===setting up environment'
{{- range .SetupCmds}}
{{.}}
{{- end}}
echo '===moving back to the node'
cd -
echo '===copying keep/drop files'
cp {{quote .PWD}}/keep_and_drop*.txt .
{{- range .KeepDrop}}
cp {{quote .}} .
{{- end}}
shift
echo '===this is pwd at the moment'
pwd
echo '===now running command'
echo "$@" -o "$PWD"
"$@" -o "$PWD" || exit $?
echo '===doing ls in current dir'
ls
echo '===now compressing the files into subdir'
mkdir -p {{.MergeDir}}
for i in *{{.Ext}};
do
    {{.MergeCmd}} {{.MergeDir}}/"$i" "$i" || exit $?;
done
echo '===now copying the files to the output directory'
{{.CopyCmd}} {{.MergeDir}}/*{{.Ext}} "$OUTDIR"/ || exit $?
echo '===done'
`))

// Write renders the wrapper script to w.
func (wrp *Wrapper) Write(w io.Writer) error {
	err := wrapperTmpl.Execute(w, wrp)
	if err != nil {
		return fmt.Errorf("condor: could not render wrapper script: %w", err)
	}
	return nil
}

// Create renders the wrapper script into the executable file fname.
func (wrp *Wrapper) Create(fname string) error {
	f, err := os.OpenFile(fname, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0755)
	if err != nil {
		return fmt.Errorf("condor: could not create wrapper script: %w", err)
	}
	defer f.Close()

	err = f.Chmod(0755)
	if err != nil {
		return fmt.Errorf("condor: could not make wrapper script %q executable: %w", fname, err)
	}

	err = wrp.Write(f)
	if err != nil {
		return err
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("condor: could not close wrapper script %q: %w", fname, err)
	}
	return nil
}

// Create renders the submission into the file fname.
func (sub *Submission) Create(fname string) error {
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("condor: could not create submission file: %w", err)
	}
	defer f.Close()

	err = sub.Write(f)
	if err != nil {
		return err
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("condor: could not close submission file %q: %w", fname, err)
	}
	return nil
}
