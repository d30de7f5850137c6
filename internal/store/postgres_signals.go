package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/staffloop/intel-cli/internal/model"
)

const signalColumns = `id, message_id, vendor_company_id, vendor_contact_id, title, location,
	rate_text, employment_type, skills, status, actionability, closure_score, closure_tier,
	received_at, created_at`

func scanSignal(row pgx.Row) (*model.RequisitionSignal, error) {
	var sig model.RequisitionSignal
	var skillsJSON []byte
	var actionability *float64
	err := row.Scan(&sig.ID, &sig.MessageID, &sig.VendorCompanyID, &sig.VendorContactID,
		&sig.Title, &sig.Location, &sig.RateText, &sig.EmploymentType, &skillsJSON,
		&sig.Status, &actionability, &sig.ClosureScore, &sig.ClosureTier,
		&sig.ReceivedAt, &sig.CreatedAt)
	if err != nil {
		return nil, err
	}
	if actionability != nil {
		sig.Actionability = *actionability
	}
	if err := json.Unmarshal(skillsJSON, &sig.Skills); err != nil {
		return nil, err
	}
	return &sig, nil
}

func (s *PostgresStore) InsertSignal(ctx context.Context, sig *model.RequisitionSignal) (bool, error) {
	skillsJSON, _ := marshalStringSets(sig.Skills, nil)
	if sig.Status == "" {
		sig.Status = model.SignalStatusNew
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO requisition_signals
			(message_id, vendor_company_id, vendor_contact_id, title, location,
			 rate_text, employment_type, skills, status, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (message_id) DO NOTHING
		 RETURNING id`,
		sig.MessageID, sig.VendorCompanyID, sig.VendorContactID, sig.Title, sig.Location,
		sig.RateText, string(sig.EmploymentType), skillsJSON, string(sig.Status), sig.ReceivedAt,
	).Scan(&sig.ID)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert signal for message %d", sig.MessageID)
	}
	return true, nil
}

func (s *PostgresStore) GetSignal(ctx context.Context, signalID int64) (*model.RequisitionSignal, error) {
	sig, err := scanSignal(s.pool.QueryRow(ctx,
		`SELECT `+signalColumns+` FROM requisition_signals WHERE id = $1`, signalID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get signal %d", signalID)
	}
	return sig, nil
}

func (s *PostgresStore) ListSignals(ctx context.Context, f SignalFilter) ([]model.RequisitionSignal, error) {
	var w whereBuilder
	if f.Search != "" {
		w.where("title ILIKE %s", "%"+f.Search+"%")
	}
	if f.Status != "" {
		w.where("status = %s", string(f.Status))
	}
	if f.From != nil {
		w.where("received_at >= %s", *f.From)
	}
	if f.To != nil {
		w.where("received_at < %s", *f.To)
	}
	if f.MinScore != nil {
		w.where("actionability >= %s", *f.MinScore)
	}

	clause, args := w.build(1)
	n := w.next(1)
	query := `SELECT ` + signalColumns + ` FROM requisition_signals` + clause +
		` ORDER BY received_at DESC LIMIT $` + itoa(n) + ` OFFSET $` + itoa(n+1)
	args = append(args, clampLimit(f.Limit), f.Offset)

	return s.querySignals(ctx, query, args...)
}

func (s *PostgresStore) ListUnscoredSignals(ctx context.Context, limit int) ([]model.RequisitionSignal, error) {
	return s.querySignals(ctx,
		`SELECT `+signalColumns+` FROM requisition_signals
		 WHERE actionability IS NULL ORDER BY id LIMIT $1`,
		clampLimit(limit))
}

func (s *PostgresStore) ListRecentSignals(ctx context.Context, since time.Time, limit int) ([]model.RequisitionSignal, error) {
	return s.querySignals(ctx,
		`SELECT `+signalColumns+` FROM requisition_signals
		 WHERE received_at >= $1 AND status = $2
		 ORDER BY received_at DESC LIMIT $3`,
		since, string(model.SignalStatusNew), clampLimit(limit))
}

func (s *PostgresStore) querySignals(ctx context.Context, query string, args ...any) ([]model.RequisitionSignal, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query signals")
	}
	defer rows.Close()

	var out []model.RequisitionSignal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan signal")
		}
		out = append(out, *sig)
	}
	return out, eris.Wrap(rows.Err(), "postgres: query signals iterate")
}

func (s *PostgresStore) UpdateSignalActionability(ctx context.Context, signalID int64, score float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE requisition_signals SET actionability = $1 WHERE id = $2`,
		score, signalID)
	if err != nil {
		return eris.Wrapf(err, "postgres: update actionability for signal %d", signalID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: signal %d not found", signalID)
	}
	return nil
}

func (s *PostgresStore) UpdateSignalClosure(ctx context.Context, signalID int64, score float64, tier model.ClosureTier) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE requisition_signals SET closure_score = $1, closure_tier = $2 WHERE id = $3`,
		score, string(tier), signalID)
	if err != nil {
		return eris.Wrapf(err, "postgres: update closure for signal %d", signalID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: signal %d not found", signalID)
	}
	return nil
}

func (s *PostgresStore) MarkSignalConverted(ctx context.Context, signalID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE requisition_signals SET status = $1 WHERE id = $2 AND status = $3`,
		string(model.SignalStatusConverted), signalID, string(model.SignalStatusNew))
	if err != nil {
		return eris.Wrapf(err, "postgres: mark signal %d converted", signalID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: signal %d not found or already converted", signalID)
	}
	return nil
}

// Trust scores

func (s *PostgresStore) VendorSignalStats(ctx context.Context, vendorID int64, recentSince time.Time) (*VendorStats, error) {
	var st VendorStats
	err := s.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE received_at >= $2),
			COUNT(DISTINCT lower(title)) FILTER (WHERE title <> ''),
			COUNT(*) FILTER (WHERE rate_text <> ''),
			COUNT(*) FILTER (WHERE location <> ''),
			(SELECT COUNT(*) FROM vendor_contacts vc WHERE vc.company_id = $1)
		 FROM requisition_signals WHERE vendor_company_id = $1`,
		vendorID, recentSince,
	).Scan(&st.LifetimeSignals, &st.RecentSignals, &st.DistinctTitles,
		&st.RateDisclosed, &st.LocationGiven, &st.ContactCount)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: stats for vendor %d", vendorID)
	}
	return &st, nil
}

func (s *PostgresStore) UpsertVendorTrustScore(ctx context.Context, ts *model.VendorTrustScore) error {
	breakdown, err := json.Marshal(ts.Breakdown)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal trust breakdown")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO vendor_trust_scores (vendor_company_id, score, tier, breakdown, computed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (vendor_company_id) DO UPDATE SET
			score = EXCLUDED.score, tier = EXCLUDED.tier,
			breakdown = EXCLUDED.breakdown, computed_at = EXCLUDED.computed_at`,
		ts.VendorCompanyID, ts.Score, string(ts.Tier), breakdown, ts.ComputedAt)
	return eris.Wrapf(err, "postgres: upsert trust score for vendor %d", ts.VendorCompanyID)
}

func (s *PostgresStore) GetVendorTrustScore(ctx context.Context, vendorID int64) (*model.VendorTrustScore, error) {
	var ts model.VendorTrustScore
	var breakdown []byte
	err := s.pool.QueryRow(ctx,
		`SELECT vendor_company_id, score, tier, breakdown, computed_at
		 FROM vendor_trust_scores WHERE vendor_company_id = $1`,
		vendorID,
	).Scan(&ts.VendorCompanyID, &ts.Score, &ts.Tier, &breakdown, &ts.ComputedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get trust score for vendor %d", vendorID)
	}
	if err := json.Unmarshal(breakdown, &ts.Breakdown); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal trust breakdown")
	}
	return &ts, nil
}

func (s *PostgresStore) ListVendorTrustScores(ctx context.Context) ([]model.VendorTrustScore, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT vendor_company_id, score, tier, breakdown, computed_at
		 FROM vendor_trust_scores ORDER BY score DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list trust scores")
	}
	defer rows.Close()

	var out []model.VendorTrustScore
	for rows.Next() {
		var ts model.VendorTrustScore
		var breakdown []byte
		if err := rows.Scan(&ts.VendorCompanyID, &ts.Score, &ts.Tier, &breakdown, &ts.ComputedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan trust score")
		}
		if err := json.Unmarshal(breakdown, &ts.Breakdown); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal trust breakdown")
		}
		out = append(out, ts)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list trust scores iterate")
}

// Recruiters and queue

func (s *PostgresStore) ListRecruiters(ctx context.Context, activeOnly bool) ([]model.Recruiter, error) {
	var w whereBuilder
	if activeOnly {
		w.where("active")
	}
	clause, args := w.build(1)

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, active FROM recruiters`+clause+` ORDER BY id`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list recruiters")
	}
	defer rows.Close()

	var out []model.Recruiter
	for rows.Next() {
		var r model.Recruiter
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &r.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan recruiter")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list recruiters iterate")
}

func (s *PostgresStore) CountAssignmentsByRecruiter(ctx context.Context, date string) (map[int64]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT recruiter_id, COUNT(*) FROM queue_assignments
		 WHERE assigned_date = $1 GROUP BY recruiter_id`, date)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count assignments")
	}
	defer rows.Close()

	out := make(map[int64]int)
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan assignment count")
		}
		out[id] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: count assignments iterate")
}

func (s *PostgresStore) ListAssignedSignalIDs(ctx context.Context, date string) (map[int64]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT signal_id FROM queue_assignments WHERE assigned_date = $1`, date)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list assigned signals")
	}
	defer rows.Close()

	out := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan assigned signal id")
		}
		out[id] = true
	}
	return out, eris.Wrap(rows.Err(), "postgres: list assigned signals iterate")
}

func (s *PostgresStore) InsertAssignment(ctx context.Context, a *model.QueueAssignment) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO queue_assignments (id, recruiter_id, signal_id, assigned_date, status, closure_score)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (recruiter_id, signal_id, assigned_date) DO NOTHING`,
		a.ID, a.RecruiterID, a.SignalID, a.AssignedDate, string(a.Status), a.ClosureScore)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert assignment for signal %d", a.SignalID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) RecruiterSkillProfiles(ctx context.Context) (map[int64][]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT qa.recruiter_id, rs.skills
		 FROM queue_assignments qa
		 JOIN requisition_signals rs ON rs.id = qa.signal_id
		 WHERE qa.status = $1`,
		string(model.AssignmentSubmitted))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recruiter skill profiles")
	}
	defer rows.Close()

	out := make(map[int64][]string)
	for rows.Next() {
		var recruiterID int64
		var skillsJSON []byte
		if err := rows.Scan(&recruiterID, &skillsJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan skill profile row")
		}
		var skills []string
		if err := json.Unmarshal(skillsJSON, &skills); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal signal skills")
		}
		out[recruiterID] = unionFold(out[recruiterID], skills)
	}
	return out, eris.Wrap(rows.Err(), "postgres: recruiter skill profiles iterate")
}

// Jobs

func (s *PostgresStore) InsertJob(ctx context.Context, j *model.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, tenant_id, signal_id, title, location, rate_text)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		j.ID, j.TenantID, j.SignalID, j.Title, j.Location, j.RateText)
	return eris.Wrapf(err, "postgres: insert job for signal %d", j.SignalID)
}
