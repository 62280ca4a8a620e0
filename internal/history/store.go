package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	sqliteDriverNameConstant        = "sqlite"
	ledgerPathRequiredMessage       = "ledger path not configured"
	openLedgerErrorTemplateConstant = "open run ledger: %w"
	defaultListLimitNumber          = 20

	journalModePragmaConstant = `PRAGMA journal_mode=WAL;`
	createRunsTableConstant   = `CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		remote_url TEXT NOT NULL,
		branch_name TEXT NOT NULL,
		local_path TEXT NOT NULL,
		status TEXT NOT NULL,
		commit_hash TEXT,
		files_json TEXT,
		error_text TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);`
	createRunsIndexConstant = `CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`

	insertRunStatementConstant = `
		INSERT INTO runs (run_id, remote_url, branch_name, local_path, status, commit_hash, files_json, error_text, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	listRunsStatementConstant = `
		SELECT run_id, remote_url, branch_name, local_path, status, commit_hash, files_json, error_text, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`
)

// ErrLedgerPathRequired indicates Open was called without a ledger path.
var ErrLedgerPathRequired = errors.New(ledgerPathRequiredMessage)

// RunRecord is one pipeline run outcome persisted in the ledger.
type RunRecord struct {
	RunID        string    `json:"run_id"`
	RemoteURL    string    `json:"remote_url"`
	BranchName   string    `json:"branch_name"`
	LocalPath    string    `json:"local_path"`
	Status       string    `json:"status"`
	CommitHash   string    `json:"commit_hash,omitempty"`
	FilesChanged []string  `json:"files_changed,omitempty"`
	ErrorText    string    `json:"error_text,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Store persists pipeline run outcomes in a sqlite ledger.
type Store struct {
	database *sql.DB
}

// Open opens (creating if necessary) the ledger database at the supplied path.
func Open(ledgerPath string) (*Store, error) {
	if len(strings.TrimSpace(ledgerPath)) == 0 {
		return nil, ErrLedgerPathRequired
	}
	database, openError := sql.Open(sqliteDriverNameConstant, ledgerPath)
	if openError != nil {
		return nil, fmt.Errorf(openLedgerErrorTemplateConstant, openError)
	}
	return &Store{database: database}, nil
}

// Init creates the runs table when it does not exist yet.
func (store *Store) Init(executionContext context.Context) error {
	statements := []string{journalModePragmaConstant, createRunsTableConstant, createRunsIndexConstant}
	for _, statement := range statements {
		if _, executionError := store.database.ExecContext(executionContext, statement); executionError != nil {
			return executionError
		}
	}
	return nil
}

// RecordRun inserts one run outcome. A missing run id is generated.
func (store *Store) RecordRun(executionContext context.Context, record RunRecord) (string, error) {
	if len(strings.TrimSpace(record.RunID)) == 0 {
		record.RunID = uuid.NewString()
	}

	filesJSON, marshalError := json.Marshal(record.FilesChanged)
	if marshalError != nil {
		return "", marshalError
	}

	_, insertError := store.database.ExecContext(executionContext, insertRunStatementConstant,
		record.RunID,
		record.RemoteURL,
		record.BranchName,
		record.LocalPath,
		record.Status,
		record.CommitHash,
		string(filesJSON),
		record.ErrorText,
		record.StartedAt.UTC().Format(time.RFC3339),
		record.FinishedAt.UTC().Format(time.RFC3339),
	)
	if insertError != nil {
		return "", insertError
	}
	return record.RunID, nil
}

// ListRuns returns the most recent runs, newest first.
func (store *Store) ListRuns(executionContext context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = defaultListLimitNumber
	}

	rows, queryError := store.database.QueryContext(executionContext, listRunsStatementConstant, limit)
	if queryError != nil {
		return nil, queryError
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var (
			record     RunRecord
			commitHash sql.NullString
			filesJSON  sql.NullString
			errorText  sql.NullString
			startedAt  string
			finishedAt string
		)
		if scanError := rows.Scan(
			&record.RunID,
			&record.RemoteURL,
			&record.BranchName,
			&record.LocalPath,
			&record.Status,
			&commitHash,
			&filesJSON,
			&errorText,
			&startedAt,
			&finishedAt,
		); scanError != nil {
			return nil, scanError
		}

		if commitHash.Valid {
			record.CommitHash = commitHash.String
		}
		if errorText.Valid {
			record.ErrorText = errorText.String
		}
		if filesJSON.Valid && len(filesJSON.String) > 0 {
			if unmarshalError := json.Unmarshal([]byte(filesJSON.String), &record.FilesChanged); unmarshalError != nil {
				return nil, unmarshalError
			}
		}
		record.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		record.FinishedAt, _ = time.Parse(time.RFC3339, finishedAt)

		records = append(records, record)
	}
	return records, rows.Err()
}

// Close releases the underlying database handle.
func (store *Store) Close() error {
	if store == nil || store.database == nil {
		return nil
	}
	return store.database.Close()
}
