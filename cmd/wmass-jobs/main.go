// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command wmass-jobs lists the condor submissions recorded by wmass-postproc.
package main // import "github.com/go-lpc/wmass/cmd/wmass-jobs"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/go-lpc/wmass/jobdb"
)

func main() {
	log.SetPrefix("wmass-jobs: ")
	log.SetFlags(0)

	var (
		dbname = flag.String("db", "wmass_jobs", "name of the bookkeeping database")
		user   = flag.String("user", os.Getenv("USER"), "list submissions of this user (empty: all users)")
		n      = flag.Int("n", 20, "maximum number of submissions to list")
		id     = flag.Int64("id", 0, "list the chunks of this submission")
	)

	flag.Parse()

	db, err := jobdb.Open(*dbname)
	if err != nil {
		log.Fatalf("could not open jobs db: %+v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch {
	case *id > 0:
		err = listChunks(ctx, os.Stdout, db, *id)
	default:
		err = listSubmissions(ctx, os.Stdout, db, *user, *n)
	}
	if err != nil {
		log.Fatalf("could not do query: %+v", err)
	}
}

type store interface {
	Submissions(ctx context.Context, user string, n int) ([]jobdb.Submission, error)
	Chunks(ctx context.Context, id int64) ([][]string, error)
}

var header = lipgloss.NewStyle().Bold(true)

func listSubmissions(ctx context.Context, w io.Writer, db store, user string, n int) error {
	subs, err := db.Submissions(ctx, user, n)
	if err != nil {
		return fmt.Errorf("could not retrieve submissions: %w", err)
	}

	if len(subs) == 0 {
		fmt.Fprintf(w, "no submission\n")
		return nil
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(
			header.Render("ID"), header.Render("CREATED"), header.Render("USER"),
			header.Render("TAG"), header.Render("NAME"), header.Render("FILES"),
			header.Render("JOBS"), header.Render("SUBMISSION"),
		)
	for _, sub := range subs {
		tbl.Row(
			strconv.FormatInt(sub.ID, 10),
			sub.Created.UTC().Format("2006-01-02 15:04"),
			sub.User,
			sub.Tag,
			sub.JobName,
			strconv.Itoa(sub.Files),
			strconv.Itoa(sub.Chunks),
			sub.CondorFile,
		)
	}

	fmt.Fprintln(w, tbl.Render())
	return nil
}

func listChunks(ctx context.Context, w io.Writer, db store, id int64) error {
	chunks, err := db.Chunks(ctx, id)
	if err != nil {
		return fmt.Errorf("could not retrieve chunks of submission %d: %w", id, err)
	}

	for i, chunk := range chunks {
		fmt.Fprintf(w, "chunk %d: %d file(s)\n", i, len(chunk))
		for _, fname := range chunk {
			fmt.Fprintf(w, "  %s\n", fname)
		}
	}
	return nil
}
