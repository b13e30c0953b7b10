package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Nehilsa2/console_keepalive/auth"
	"github.com/Nehilsa2/console_keepalive/report"
)

// ==================== RUNS ====================

// RunRecord is one stored login run
type RunRecord struct {
	ID           int64         `json:"id"`
	RunID        string        `json:"run_id"`
	Label        string        `json:"label,omitempty"`
	Status       string        `json:"status"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	FinalURL     string        `json:"final_url,omitempty"`
	PageTitle    string        `json:"page_title,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Evidence     []string      `json:"evidence,omitempty"`
	Flags        auth.Flags    `json:"flags"`
}

func (r RunRecord) Success() bool {
	return r.Status == string(report.StatusSuccess)
}

// StepRecord is one stored step of a run
type StepRecord struct {
	Position int           `json:"position"`
	Step     string        `json:"step"`
	Status   string        `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// SaveRun stores a finished report with its steps and updates the daily
// counters, all in one transaction
func (s *Store) SaveRun(rep report.ExecutionReport) error {
	evidenceJSON, err := json.Marshal(rep.EvidenceLabels())
	if err != nil {
		return fmt.Errorf("failed to encode evidence: %w", err)
	}
	flagsJSON, err := json.Marshal(rep.Flags)
	if err != nil {
		return fmt.Errorf("failed to encode flags: %w", err)
	}

	started := rep.StartedAt.UTC()

	err = s.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO runs (
				run_id, label, status, started_at, duration_ms,
				final_url, page_title, error_message, evidence, flags
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rep.RunID, rep.RunLabel, string(rep.Status), started, rep.Duration.Milliseconds(),
			rep.FinalURL, rep.PageTitle, rep.ErrorMessage, string(evidenceJSON), string(flagsJSON))
		if err != nil {
			return err
		}

		stmt, err := tx.Prepare(`
			INSERT INTO run_steps (run_id, position, step, status, detail, elapsed_ms)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, st := range rep.Steps() {
			if _, err := stmt.Exec(rep.RunID, i, st.Step, st.Status, st.Detail, st.Elapsed.Milliseconds()); err != nil {
				return err
			}
		}

		return incrementDailyStats(tx, started.Format("2006-01-02"), rep.Success())
	})
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rep.RunID, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	query := `
		SELECT id, run_id, label, status, started_at, duration_ms,
			   final_url, page_title, error_message, evidence, flags
		FROM runs
		ORDER BY started_at DESC, id DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRuns(rows)
}

// RunSteps returns the steps of one run in execution order
func (s *Store) RunSteps(runID string) ([]StepRecord, error) {
	rows, err := s.db.Query(`
		SELECT position, step, status, detail, elapsed_ms
		FROM run_steps
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []StepRecord
	for rows.Next() {
		var st StepRecord
		var detail sql.NullString
		var elapsedMS int64

		if err := rows.Scan(&st.Position, &st.Step, &st.Status, &detail, &elapsedMS); err != nil {
			return nil, err
		}
		st.Detail = detail.String
		st.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

func scanRuns(rows *sql.Rows) ([]RunRecord, error) {
	var runs []RunRecord

	for rows.Next() {
		var r RunRecord
		var label, finalURL, pageTitle, errorMessage sql.NullString
		var evidenceJSON, flagsJSON sql.NullString
		var durationMS int64

		err := rows.Scan(
			&r.ID, &r.RunID, &label, &r.Status, &r.StartedAt, &durationMS,
			&finalURL, &pageTitle, &errorMessage, &evidenceJSON, &flagsJSON,
		)
		if err != nil {
			return nil, err
		}

		r.Label = label.String
		r.FinalURL = finalURL.String
		r.PageTitle = pageTitle.String
		r.ErrorMessage = errorMessage.String
		r.Duration = time.Duration(durationMS) * time.Millisecond

		if evidenceJSON.Valid && evidenceJSON.String != "" {
			if err := json.Unmarshal([]byte(evidenceJSON.String), &r.Evidence); err != nil {
				return nil, fmt.Errorf("failed to decode evidence of %s: %w", r.RunID, err)
			}
		}
		if flagsJSON.Valid && flagsJSON.String != "" {
			if err := json.Unmarshal([]byte(flagsJSON.String), &r.Flags); err != nil {
				return nil, fmt.Errorf("failed to decode flags of %s: %w", r.RunID, err)
			}
		}

		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// ==================== STATS ====================

// Stats summarizes the whole history
type Stats struct {
	TotalRuns   int        `json:"total_runs"`
	Successes   int        `json:"successes"`
	Failures    int        `json:"failures"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	TodayRuns   int        `json:"today_runs"`
}

// SuccessRate is the share of successful runs in [0, 1]
func (st Stats) SuccessRate() float64 {
	if st.TotalRuns == 0 {
		return 0
	}
	return float64(st.Successes) / float64(st.TotalRuns)
}

// Stats aggregates the run table. today selects the daily counter row.
func (s *Store) Stats(today time.Time) (Stats, error) {
	var st Stats

	err := s.db.QueryRow(`
		SELECT COUNT(*),
			   COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0)
		FROM runs
	`).Scan(&st.TotalRuns, &st.Successes)
	if err != nil {
		return st, fmt.Errorf("failed to count runs: %w", err)
	}
	st.Failures = st.TotalRuns - st.Successes

	if st.LastSuccess, err = s.latestStart(`WHERE status = 'success'`); err != nil {
		return st, err
	}
	if st.LastRun, err = s.latestStart(""); err != nil {
		return st, err
	}

	err = s.db.QueryRow(`
		SELECT runs FROM daily_stats WHERE date = ?
	`, today.UTC().Format("2006-01-02")).Scan(&st.TodayRuns)
	if err != nil && err != sql.ErrNoRows {
		return st, fmt.Errorf("failed to read daily stats: %w", err)
	}

	return st, nil
}

func (s *Store) latestStart(where string) (*time.Time, error) {
	var started sql.NullTime
	err := s.db.QueryRow(`
		SELECT started_at FROM runs ` + where + `
		ORDER BY started_at DESC LIMIT 1
	`).Scan(&started)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest run: %w", err)
	}
	if !started.Valid {
		return nil, nil
	}
	t := started.Time
	return &t, nil
}
