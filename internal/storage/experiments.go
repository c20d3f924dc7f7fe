package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Mattcalhoun31/Symmetri-Growth-Labs/events"
)

// ErrExperimentNotFound is returned when an experiment id does not exist.
var ErrExperimentNotFound = errors.New("experiment not found")

// ExperimentRepo provides read/write access to the experiments catalog.
type ExperimentRepo struct {
	db *sql.DB
}

// NewExperimentRepo creates an ExperimentRepo over db.
func NewExperimentRepo(db *sql.DB) *ExperimentRepo {
	return &ExperimentRepo{db: db}
}

// Active returns the experiments visible to the SDK: active ones whose
// scheduling window (when set) contains now.
func (r *ExperimentRepo) Active(ctx context.Context) ([]events.Experiment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(description, ''), is_active, variants, start_date, end_date
		 FROM experiments
		 WHERE is_active = true
		   AND (start_date IS NULL OR start_date <= NOW())
		   AND (end_date IS NULL OR end_date >= NOW())
		 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query active experiments: %w", err)
	}
	defer rows.Close()

	var out []events.Experiment
	for rows.Next() {
		exp, scanErr := scanExperiment(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiments: %w", err)
	}

	return out, nil
}

// List returns every experiment, active or not. The admin surface uses it;
// the SDK only ever sees Active.
func (r *ExperimentRepo) List(ctx context.Context) ([]events.Experiment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(description, ''), is_active, variants, start_date, end_date
		 FROM experiments
		 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query experiments: %w", err)
	}
	defer rows.Close()

	var out []events.Experiment
	for rows.Next() {
		exp, scanErr := scanExperiment(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiments: %w", err)
	}

	return out, nil
}

// Get returns one experiment by id.
func (r *ExperimentRepo) Get(ctx context.Context, id int) (events.Experiment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, COALESCE(description, ''), is_active, variants, start_date, end_date
		 FROM experiments WHERE id = $1`, id,
	)

	exp, err := scanExperiment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return events.Experiment{}, ErrExperimentNotFound
	}
	return exp, err
}

// Create inserts a new experiment and returns it with its assigned id.
func (r *ExperimentRepo) Create(ctx context.Context, exp events.Experiment) (events.Experiment, error) {
	variants, err := json.Marshal(exp.Variants)
	if err != nil {
		return events.Experiment{}, fmt.Errorf("marshal variants: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO experiments (name, description, is_active, variants, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		exp.Name, exp.Description, exp.IsActive, variants, exp.StartDate, exp.EndDate,
	).Scan(&exp.ID)
	if err != nil {
		return events.Experiment{}, fmt.Errorf("insert experiment: %w", err)
	}

	return exp, nil
}

// Update replaces the mutable fields of an experiment.
func (r *ExperimentRepo) Update(ctx context.Context, exp events.Experiment) error {
	variants, err := json.Marshal(exp.Variants)
	if err != nil {
		return fmt.Errorf("marshal variants: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE experiments
		 SET name = $2, description = $3, is_active = $4, variants = $5,
		     start_date = $6, end_date = $7, updated_at = NOW()
		 WHERE id = $1`,
		exp.ID, exp.Name, exp.Description, exp.IsActive, variants, exp.StartDate, exp.EndDate,
	)
	if err != nil {
		return fmt.Errorf("update experiment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrExperimentNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row rowScanner) (events.Experiment, error) {
	var (
		exp      events.Experiment
		variants []byte
	)
	if err := row.Scan(&exp.ID, &exp.Name, &exp.Description, &exp.IsActive,
		&variants, &exp.StartDate, &exp.EndDate); err != nil {
		return events.Experiment{}, err
	}
	if err := json.Unmarshal(variants, &exp.Variants); err != nil {
		return events.Experiment{}, fmt.Errorf("decode variants for experiment %d: %w", exp.ID, err)
	}
	return exp, nil
}

// EventTypeCount is one row of the analytics summary.
type EventTypeCount struct {
	EventType string `json:"event_type"`
	Count     int    `json:"count"`
}

// Summary returns event counts grouped by type since the given time.
func (r *ExperimentRepo) Summary(ctx context.Context, since time.Time) ([]EventTypeCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT event_type, COUNT(*)
		 FROM analytics_events
		 WHERE created_at >= $1
		 GROUP BY event_type
		 ORDER BY COUNT(*) DESC`, since,
	)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var out []EventTypeCount
	for rows.Next() {
		var c EventTypeCount
		if err := rows.Scan(&c.EventType, &c.Count); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary: %w", err)
	}

	return out, nil
}

// RecentEvents returns the newest events, up to limit.
func (r *ExperimentRepo) RecentEvents(ctx context.Context, limit int) ([]events.AnalyticsEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT event_type, COALESCE(event_data, 'null'), COALESCE(session_id, ''),
		        COALESCE(visitor_id, ''), COALESCE(page_url, ''), COALESCE(referrer, ''),
		        COALESCE(user_agent, ''), COALESCE(experiment_id, 0), COALESCE(variant_id, ''),
		        created_at
		 FROM analytics_events
		 ORDER BY created_at DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	var out []events.AnalyticsEvent
	for rows.Next() {
		var (
			evt  events.AnalyticsEvent
			data []byte
		)
		if err := rows.Scan(&evt.EventType, &data, &evt.SessionID, &evt.VisitorID,
			&evt.PageURL, &evt.Referrer, &evt.UserAgent, &evt.ExperimentID,
			&evt.VariantID, &evt.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		_ = json.Unmarshal(data, &evt.EventData)
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return out, nil
}
