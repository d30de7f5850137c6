package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/staffloop/intel-cli/internal/model"
)

func scanSignalSQL(row scannable) (*model.RequisitionSignal, error) {
	var sig model.RequisitionSignal
	var vendorID, contactID sql.NullInt64
	var skillsJSON string
	var actionability sql.NullFloat64
	err := row.Scan(&sig.ID, &sig.MessageID, &vendorID, &contactID,
		&sig.Title, &sig.Location, &sig.RateText, &sig.EmploymentType, &skillsJSON,
		&sig.Status, &actionability, &sig.ClosureScore, &sig.ClosureTier,
		&sig.ReceivedAt, &sig.CreatedAt)
	if err != nil {
		return nil, err
	}
	if vendorID.Valid {
		sig.VendorCompanyID = &vendorID.Int64
	}
	if contactID.Valid {
		sig.VendorContactID = &contactID.Int64
	}
	if actionability.Valid {
		sig.Actionability = actionability.Float64
	}
	if err := json.Unmarshal([]byte(skillsJSON), &sig.Skills); err != nil {
		return nil, err
	}
	return &sig, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) InsertSignal(ctx context.Context, sig *model.RequisitionSignal) (bool, error) {
	skillsJSON, _ := marshalStringSets(sig.Skills, nil)
	if sig.Status == "" {
		sig.Status = model.SignalStatusNew
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO requisition_signals
			(message_id, vendor_company_id, vendor_contact_id, title, location,
			 rate_text, employment_type, skills, status, received_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (message_id) DO NOTHING`,
		sig.MessageID, sig.VendorCompanyID, sig.VendorContactID, sig.Title, sig.Location,
		sig.RateText, string(sig.EmploymentType), string(skillsJSON), string(sig.Status),
		sig.ReceivedAt.UTC(), time.Now().UTC())
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert signal for message %d", sig.MessageID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return false, nil
	}
	sig.ID, err = res.LastInsertId()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: last insert id")
	}
	return true, nil
}

func (s *SQLiteStore) GetSignal(ctx context.Context, signalID int64) (*model.RequisitionSignal, error) {
	sig, err := scanSignalSQL(s.db.QueryRowContext(ctx,
		`SELECT `+signalColumns+` FROM requisition_signals WHERE id = ?`, signalID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get signal %d", signalID)
	}
	return sig, nil
}

func (s *SQLiteStore) ListSignals(ctx context.Context, f SignalFilter) ([]model.RequisitionSignal, error) {
	var w whereBuilder
	if f.Search != "" {
		w.where("title LIKE %s", "%"+f.Search+"%")
	}
	if f.Status != "" {
		w.where("status = %s", string(f.Status))
	}
	if f.From != nil {
		w.where("received_at >= %s", f.From.UTC())
	}
	if f.To != nil {
		w.where("received_at < %s", f.To.UTC())
	}
	if f.MinScore != nil {
		w.where("actionability >= %s", *f.MinScore)
	}

	clause, args := w.build(0)
	query := `SELECT ` + signalColumns + ` FROM requisition_signals` + clause +
		` ORDER BY received_at DESC LIMIT ? OFFSET ?`
	args = append(args, clampLimit(f.Limit), f.Offset)

	return s.querySignals(ctx, query, args...)
}

func (s *SQLiteStore) ListUnscoredSignals(ctx context.Context, limit int) ([]model.RequisitionSignal, error) {
	return s.querySignals(ctx,
		`SELECT `+signalColumns+` FROM requisition_signals
		 WHERE actionability IS NULL ORDER BY id LIMIT ?`,
		clampLimit(limit))
}

func (s *SQLiteStore) ListRecentSignals(ctx context.Context, since time.Time, limit int) ([]model.RequisitionSignal, error) {
	return s.querySignals(ctx,
		`SELECT `+signalColumns+` FROM requisition_signals
		 WHERE received_at >= ? AND status = ?
		 ORDER BY received_at DESC LIMIT ?`,
		since.UTC(), string(model.SignalStatusNew), clampLimit(limit))
}

func (s *SQLiteStore) querySignals(ctx context.Context, query string, args ...any) ([]model.RequisitionSignal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query signals")
	}
	defer rows.Close()

	var out []model.RequisitionSignal
	for rows.Next() {
		sig, err := scanSignalSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan signal")
		}
		out = append(out, *sig)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: query signals iterate")
}

func (s *SQLiteStore) UpdateSignalActionability(ctx context.Context, signalID int64, score float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE requisition_signals SET actionability = ? WHERE id = ?`,
		score, signalID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update actionability for signal %d", signalID)
	}
	return checkRowsAffected(res, "signal", signalID)
}

func (s *SQLiteStore) UpdateSignalClosure(ctx context.Context, signalID int64, score float64, tier model.ClosureTier) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE requisition_signals SET closure_score = ?, closure_tier = ? WHERE id = ?`,
		score, string(tier), signalID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update closure for signal %d", signalID)
	}
	return checkRowsAffected(res, "signal", signalID)
}

func (s *SQLiteStore) MarkSignalConverted(ctx context.Context, signalID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE requisition_signals SET status = ? WHERE id = ? AND status = ?`,
		string(model.SignalStatusConverted), signalID, string(model.SignalStatusNew))
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark signal %d converted", signalID)
	}
	return checkRowsAffected(res, "signal", signalID)
}

// Trust scores

func (s *SQLiteStore) VendorSignalStats(ctx context.Context, vendorID int64, recentSince time.Time) (*VendorStats, error) {
	var st VendorStats
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			SUM(CASE WHEN received_at >= ? THEN 1 ELSE 0 END),
			COUNT(DISTINCT CASE WHEN title <> '' THEN lower(title) END),
			SUM(CASE WHEN rate_text <> '' THEN 1 ELSE 0 END),
			SUM(CASE WHEN location <> '' THEN 1 ELSE 0 END),
			(SELECT COUNT(*) FROM vendor_contacts vc WHERE vc.company_id = ?)
		 FROM requisition_signals WHERE vendor_company_id = ?`,
		recentSince.UTC(), vendorID, vendorID,
	).Scan(&st.LifetimeSignals, &st.RecentSignals, &st.DistinctTitles,
		&st.RateDisclosed, &st.LocationGiven, &st.ContactCount)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: stats for vendor %d", vendorID)
	}
	return &st, nil
}

func (s *SQLiteStore) UpsertVendorTrustScore(ctx context.Context, ts *model.VendorTrustScore) error {
	breakdown, err := json.Marshal(ts.Breakdown)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal trust breakdown")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vendor_trust_scores (vendor_company_id, score, tier, breakdown, computed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (vendor_company_id) DO UPDATE SET
			score = excluded.score, tier = excluded.tier,
			breakdown = excluded.breakdown, computed_at = excluded.computed_at`,
		ts.VendorCompanyID, ts.Score, string(ts.Tier), string(breakdown), ts.ComputedAt.UTC())
	return eris.Wrapf(err, "sqlite: upsert trust score for vendor %d", ts.VendorCompanyID)
}

func (s *SQLiteStore) GetVendorTrustScore(ctx context.Context, vendorID int64) (*model.VendorTrustScore, error) {
	var ts model.VendorTrustScore
	var breakdown string
	err := s.db.QueryRowContext(ctx,
		`SELECT vendor_company_id, score, tier, breakdown, computed_at
		 FROM vendor_trust_scores WHERE vendor_company_id = ?`,
		vendorID,
	).Scan(&ts.VendorCompanyID, &ts.Score, &ts.Tier, &breakdown, &ts.ComputedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get trust score for vendor %d", vendorID)
	}
	if err := json.Unmarshal([]byte(breakdown), &ts.Breakdown); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal trust breakdown")
	}
	return &ts, nil
}

func (s *SQLiteStore) ListVendorTrustScores(ctx context.Context) ([]model.VendorTrustScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vendor_company_id, score, tier, breakdown, computed_at
		 FROM vendor_trust_scores ORDER BY score DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list trust scores")
	}
	defer rows.Close()

	var out []model.VendorTrustScore
	for rows.Next() {
		var ts model.VendorTrustScore
		var breakdown string
		if err := rows.Scan(&ts.VendorCompanyID, &ts.Score, &ts.Tier, &breakdown, &ts.ComputedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan trust score")
		}
		if err := json.Unmarshal([]byte(breakdown), &ts.Breakdown); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal trust breakdown")
		}
		out = append(out, ts)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list trust scores iterate")
}

// Recruiters and queue

func (s *SQLiteStore) ListRecruiters(ctx context.Context, activeOnly bool) ([]model.Recruiter, error) {
	query := `SELECT id, name, email, active FROM recruiters`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list recruiters")
	}
	defer rows.Close()

	var out []model.Recruiter
	for rows.Next() {
		var r model.Recruiter
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &r.Active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan recruiter")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list recruiters iterate")
}

func (s *SQLiteStore) CountAssignmentsByRecruiter(ctx context.Context, date string) (map[int64]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT recruiter_id, COUNT(*) FROM queue_assignments
		 WHERE assigned_date = ? GROUP BY recruiter_id`, date)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count assignments")
	}
	defer rows.Close()

	out := make(map[int64]int)
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan assignment count")
		}
		out[id] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: count assignments iterate")
}

func (s *SQLiteStore) ListAssignedSignalIDs(ctx context.Context, date string) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT signal_id FROM queue_assignments WHERE assigned_date = ?`, date)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list assigned signals")
	}
	defer rows.Close()

	out := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan assigned signal id")
		}
		out[id] = true
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list assigned signals iterate")
}

func (s *SQLiteStore) InsertAssignment(ctx context.Context, a *model.QueueAssignment) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO queue_assignments (id, recruiter_id, signal_id, assigned_date, status, closure_score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (recruiter_id, signal_id, assigned_date) DO NOTHING`,
		a.ID, a.RecruiterID, a.SignalID, a.AssignedDate, string(a.Status), a.ClosureScore, time.Now().UTC())
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert assignment for signal %d", a.SignalID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) RecruiterSkillProfiles(ctx context.Context) (map[int64][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT qa.recruiter_id, rs.skills
		 FROM queue_assignments qa
		 JOIN requisition_signals rs ON rs.id = qa.signal_id
		 WHERE qa.status = ?`,
		string(model.AssignmentSubmitted))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recruiter skill profiles")
	}
	defer rows.Close()

	out := make(map[int64][]string)
	for rows.Next() {
		var recruiterID int64
		var skillsJSON string
		if err := rows.Scan(&recruiterID, &skillsJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan skill profile row")
		}
		var skills []string
		if err := json.Unmarshal([]byte(skillsJSON), &skills); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal signal skills")
		}
		out[recruiterID] = unionFold(out[recruiterID], skills)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: recruiter skill profiles iterate")
}

// Jobs

func (s *SQLiteStore) InsertJob(ctx context.Context, j *model.Job) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, tenant_id, signal_id, title, location, rate_text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.TenantID, j.SignalID, j.Title, j.Location, j.RateText, time.Now().UTC())
	return eris.Wrapf(err, "sqlite: insert job for signal %d", j.SignalID)
}
