// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package jobdb records HTCondor submissions of the post-processing driver
// into a bookkeeping database.
package jobdb // import "github.com/go-lpc/wmass/jobdb"

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

var (
	drvName = "mysql"
	timeout = 5 * time.Second
)

// Submission describes one recorded submission.
type Submission struct {
	ID         int64
	Created    time.Time
	User       string
	Tag        string // run tag (mc, dataB, ...)
	JobName    string
	DSDir      string
	OutDir     string
	CondorFile string
	Files      int // number of input files
	Chunks     int // number of queued jobs
}

// DB exposes convenience methods to record and retrieve submissions.
type DB struct {
	db   *sql.DB
	name string
}

// Open opens a connection to the bookkeeping database dbname.
// Credentials and server address are taken from the JOBDB_USER,
// JOBDB_PASSWORD and JOBDB_HOST environment variables.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("jobdb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(dbname string) string {
	cfg := mysql.NewConfig()
	cfg.User = getenv("JOBDB_USER", "wmass")
	cfg.Passwd = os.Getenv("JOBDB_PASSWORD")
	cfg.Net = "tcp"
	cfg.Addr = getenv("JOBDB_HOST", "localhost:3306")
	cfg.DBName = dbname
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("jobdb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// Record stores the submission and the input files of each of its chunks.
// It returns the identifier of the new submission.
func (db *DB) Record(ctx context.Context, sub Submission, chunks [][]string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("jobdb: could not start transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(
		ctx,
		`
INSERT INTO submissions
	(created, user, tag, jobname, dsdir, outdir, condor_file, nfiles, nchunks)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		sub.Created, sub.User, sub.Tag, sub.JobName,
		sub.DSDir, sub.OutDir, sub.CondorFile,
		sub.Files, len(chunks),
	)
	if err != nil {
		return 0, fmt.Errorf("jobdb: could not insert submission: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("jobdb: could not retrieve submission id: %w", err)
	}

	for i, chunk := range chunks {
		_, err = tx.ExecContext(
			ctx,
			"INSERT INTO chunks (submission, chunk, files) VALUES (?, ?, ?)",
			id, i, strings.Join(chunk, ","),
		)
		if err != nil {
			return 0, fmt.Errorf("jobdb: could not insert chunk %d of submission %d: %w", i, id, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("jobdb: could not commit submission: %w", err)
	}

	return id, nil
}

// Submissions returns the last n recorded submissions, most recent first.
// An empty user selects the submissions of all users.
func (db *DB) Submissions(ctx context.Context, user string, n int) ([]Submission, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		subs []Submission
		rows *sql.Rows
		err  error
	)

	const cols = "id, created, user, tag, jobname, dsdir, outdir, condor_file, nfiles, nchunks"
	switch user {
	case "":
		rows, err = db.db.QueryContext(
			ctx,
			"SELECT "+cols+" FROM submissions ORDER BY created DESC LIMIT ?",
			n,
		)
	default:
		rows, err = db.db.QueryContext(
			ctx,
			"SELECT "+cols+" FROM submissions WHERE user=? ORDER BY created DESC LIMIT ?",
			user, n,
		)
	}
	if err != nil {
		return subs, fmt.Errorf("jobdb: could not query submissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sub Submission
		err = rows.Scan(
			&sub.ID, &sub.Created, &sub.User, &sub.Tag, &sub.JobName,
			&sub.DSDir, &sub.OutDir, &sub.CondorFile,
			&sub.Files, &sub.Chunks,
		)
		if err != nil {
			return subs, fmt.Errorf("jobdb: could not scan submission: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return subs, fmt.Errorf("jobdb: could not scan db for submissions: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return subs, fmt.Errorf("jobdb: context error while retrieving submissions: %w", err)
	}

	return subs, nil
}

// Chunks returns the input files of each chunk of a submission.
func (db *DB) Chunks(ctx context.Context, id int64) ([][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var chunks [][]string
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT chunk, files FROM chunks WHERE submission=? ORDER BY chunk",
		id,
	)
	if err != nil {
		return chunks, fmt.Errorf("jobdb: could not query chunks of submission %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			idx   int
			files string
		)
		err = rows.Scan(&idx, &files)
		if err != nil {
			return chunks, fmt.Errorf("jobdb: could not scan chunk: %w", err)
		}
		if idx != len(chunks) {
			return chunks, fmt.Errorf("jobdb: missing chunk %d of submission %d", len(chunks), id)
		}
		chunks = append(chunks, strings.Split(files, ","))
	}

	if err := rows.Err(); err != nil {
		return chunks, fmt.Errorf("jobdb: could not scan db for chunks: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return chunks, fmt.Errorf("jobdb: context error while retrieving chunks: %w", err)
	}

	return chunks, nil
}
