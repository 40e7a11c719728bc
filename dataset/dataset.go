// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dataset discovers the files of a dataset, filters them and
// partitions them into chunks, one chunk per batch job.
package dataset // import "github.com/go-lpc/wmass/dataset"

import (
	"bufio"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

// Ext is the extension of NanoAOD files.
const Ext = ".root"

const (
	eosCMS  = "root://eoscms.cern.ch/"
	eosUser = "root://eosuser.cern.ch/"
)

// XRootDPrefix returns the xrootd endpoint to prepend to files located
// under dir, so worker nodes can access them remotely.
// Directories outside EOS get an empty prefix.
func XRootDPrefix(dir string) string {
	switch {
	case strings.Contains(dir, "/eos/cms/store/") && !strings.Contains(dir, "eoscms"):
		return eosCMS
	case strings.Contains(dir, "/eos/user/") && !strings.Contains(dir, "eosuser"):
		return eosUser
	}
	return ""
}

// Filter selects files by base name.
// Skip and Select are mutually exclusive.
type Filter struct {
	Skip   []string // drop files whose name appears in any of these entries
	Select []string // keep only files whose name appears in one of these entries
}

// Keep reports whether the file with the provided base name passes the
// filter. Entries may hold a full path or a base name: a file matches an
// entry when its name is a substring of that entry.
func (f Filter) Keep(name string) bool {
	if len(f.Skip) > 0 && matchAny(name, f.Skip) {
		return false
	}
	if len(f.Select) > 0 && !matchAny(name, f.Select) {
		return false
	}
	return true
}

func matchAny(name string, entries []string) bool {
	for _, v := range entries {
		if strings.Contains(v, name) {
			return true
		}
	}
	return false
}

// ReadList reads a skip or select list: one entry per line.
// Entries are trimmed, stripped of any "_Skim" postfix, and empty lines
// are dropped.
func ReadList(fname string) ([]string, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("dataset: could not open list file: %w", err)
	}
	defer f.Close()

	var (
		list []string
		scan = bufio.NewScanner(f)
	)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		line = strings.Replace(line, "_Skim", "", -1)
		if line == "" {
			continue
		}
		list = append(list, line)
	}

	err = scan.Err()
	if err != nil {
		return nil, fmt.Errorf("dataset: could not read list file %q: %w", fname, err)
	}

	return list, nil
}

// Discover walks the tree rooted at dir and returns the files whose name
// ends with ext and that pass the filter.
// Returned paths are absolute and carry the xrootd prefix for dir.
// Files are returned in walk (lexical) order.
func Discover(dir, ext string, filter Filter) ([]string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset: could not resolve dataset directory %q: %w", dir, err)
	}

	var (
		files  []string
		prefix = XRootDPrefix(root)
	)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ext) {
			return nil
		}
		if !filter.Keep(d.Name()) {
			return nil
		}
		files = append(files, prefix+path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dataset: could not walk %q: %w", root, err)
	}

	return files, nil
}

// Shuffle randomizes the order of files, in place.
// Input files differ a lot in size: shuffling spreads large and small files
// over the chunks.
func Shuffle(rnd *rand.Rand, files []string) {
	rnd.Shuffle(len(files), func(i, j int) {
		files[i], files[j] = files[j], files[i]
	})
}

// Chunk partitions files into ceil(len(files)/n) contiguous chunks of n
// files, the last one possibly smaller.
// Chunk panics if n is not positive.
func Chunk(files []string, n int) [][]string {
	if n <= 0 {
		panic(fmt.Errorf("dataset: invalid chunk size %d", n))
	}

	chunks := make([][]string, 0, (len(files)+n-1)/n)
	for beg := 0; beg < len(files); beg += n {
		end := beg + n
		if end > len(files) {
			end = len(files)
		}
		chunks = append(chunks, files[beg:end:end])
	}
	return chunks
}

// WriteManifest writes the list of input files, one per line.
func WriteManifest(fname string, files []string) error {
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("dataset: could not create manifest: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, name := range files {
		_, err = fmt.Fprintln(w, name)
		if err != nil {
			return fmt.Errorf("dataset: could not write manifest %q: %w", fname, err)
		}
	}

	err = w.Flush()
	if err != nil {
		return fmt.Errorf("dataset: could not flush manifest %q: %w", fname, err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("dataset: could not close manifest %q: %w", fname, err)
	}
	return nil
}

// ReadManifest reads back a manifest written by WriteManifest.
func ReadManifest(fname string) ([]string, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("dataset: could not open manifest: %w", err)
	}
	defer f.Close()

	var (
		files []string
		scan  = bufio.NewScanner(f)
	)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" {
			continue
		}
		files = append(files, line)
	}

	err = scan.Err()
	if err != nil {
		return nil, fmt.Errorf("dataset: could not read manifest %q: %w", fname, err)
	}
	return files, nil
}

// ManifestName returns the name of the manifest of a submission.
func ManifestName(dir, tag string) string {
	return filepath.Join(dir, "inputFiles_"+tag+".txt")
}
