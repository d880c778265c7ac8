// ABOUTME: Lead persistence: upsert with conversation creation, lookups and counters
// ABOUTME: Counter updates use UPDATE ... RETURNING so increment-and-read is one statement
package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/harper/dmagent/internal/models"
	"github.com/harper/dmagent/internal/storage"
)

const leadColumns = `id, handle, bio, last_post_excerpt, niche, status,
	confidence_score, consecutive_rejections, created_at, updated_at`

// UpsertLead creates the lead and its conversation in one transaction
func (s *Store) UpsertLead(ctx context.Context, in models.NewLead) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	handle := models.NormalizeHandle(in.Handle)
	niche := in.Niche
	if niche == "" {
		niche = models.NicheBusiness
	}
	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrap("upsert lead", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO leads (handle, bio, last_post_excerpt, niche, status,
			confidence_score, consecutive_rejections, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, 0, ?, ?)
		ON CONFLICT (handle) DO NOTHING
	`), handle, in.Bio, in.LastPostExcerpt, niche, models.LeadNew, now, now)
	if err != nil {
		return 0, wrap("upsert lead", err)
	}

	var id int64
	err = tx.QueryRowContext(ctx, s.dialect.Rebind(`SELECT id FROM leads WHERE handle = ?`), handle).Scan(&id)
	if err != nil {
		return 0, wrap("upsert lead", err)
	}

	_, err = tx.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO conversations (lead_id, state, message_count, created_at)
		VALUES (?, ?, 0, ?)
		ON CONFLICT (lead_id) DO NOTHING
	`), id, models.StateNew, now)
	if err != nil {
		return 0, wrap("upsert conversation", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, wrap("upsert lead", err)
	}
	return id, nil
}

// GetLeadByHandle returns nil when no lead has the handle
func (s *Store) GetLeadByHandle(ctx context.Context, handle string) (*models.Lead, error) {
	row := s.queryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE handle = ?`, models.NormalizeHandle(handle))
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get lead", err)
	}
	return lead, nil
}

// ListLeads returns leads in insertion order
func (s *Store) ListLeads(ctx context.Context, filter storage.LeadFilter) ([]models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads`
	var args []any
	if filter.Status != 0 {
		query += ` WHERE status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, wrap("list leads", err)
	}
	defer func() { _ = rows.Close() }()

	var leads []models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, wrap("list leads", err)
		}
		leads = append(leads, *lead)
	}
	return leads, wrap("list leads", rows.Err())
}

// CountLeadsByStatus returns how many leads sit in each status
func (s *Store) CountLeadsByStatus(ctx context.Context) (map[models.LeadStatus]int, error) {
	rows, err := s.query(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, wrap("count leads", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[models.LeadStatus]int)
	for rows.Next() {
		var (
			status models.LeadStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, wrap("count leads", err)
		}
		counts[status] = n
	}
	return counts, wrap("count leads", rows.Err())
}

// UpdateLeadStatus moves a lead through the funnel
func (s *Store) UpdateLeadStatus(ctx context.Context, leadID int64, status models.LeadStatus) error {
	return s.execOne(ctx, "update lead status",
		`UPDATE leads SET status = ?, updated_at = ? WHERE id = ?`,
		status, s.now().UTC(), leadID)
}

// AddLeadScore accumulates delta onto the confidence score
func (s *Store) AddLeadScore(ctx context.Context, leadID int64, delta int) (int, error) {
	return s.returningInt(ctx, "add lead score", `
		UPDATE leads SET confidence_score = confidence_score + ?, updated_at = ?
		WHERE id = ?
		RETURNING confidence_score
	`, delta, s.now().UTC(), leadID)
}

// IncrementLeadRejections bumps the lead's consecutive rejection counter
func (s *Store) IncrementLeadRejections(ctx context.Context, leadID int64) (int, error) {
	return s.returningInt(ctx, "increment lead rejections", `
		UPDATE leads SET consecutive_rejections = consecutive_rejections + 1, updated_at = ?
		WHERE id = ?
		RETURNING consecutive_rejections
	`, s.now().UTC(), leadID)
}

// ResetLeadRejections zeroes the lead's consecutive rejection counter
func (s *Store) ResetLeadRejections(ctx context.Context, leadID int64) error {
	return s.execOne(ctx, "reset lead rejections",
		`UPDATE leads SET consecutive_rejections = 0, updated_at = ? WHERE id = ?`,
		s.now().UTC(), leadID)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLead(row scanner) (*models.Lead, error) {
	var (
		lead    models.Lead
		bio     sql.NullString
		excerpt sql.NullString
		niche   sql.NullString
	)
	err := row.Scan(&lead.ID, &lead.Handle, &bio, &excerpt, &niche, &lead.Status,
		&lead.ConfidenceScore, &lead.ConsecutiveRejections, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return nil, err
	}
	lead.Bio = bio.String
	lead.LastPostExcerpt = excerpt.String
	lead.Niche = niche.String
	return &lead, nil
}
