package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/staffloop/intel-cli/internal/model"
)

// companyRow is the shared shape of vendor_companies and client_companies.
type companyRow struct {
	ID         int64
	Domain     string
	Name       string
	EmailCount int64
	FirstSeen  time.Time
	LastSeen   time.Time
}

// upsertCompany merges one recomputed aggregate into the named company
// table: email_count refreshes to the larger value, the seen window
// widens. Select-merge-update inside a transaction; SQLite's
// single-writer model makes this equivalent to the Postgres ON CONFLICT
// arithmetic.
func (s *SQLiteStore) upsertCompany(ctx context.Context, table, domain, name string, emails int64, first, last time.Time) (*companyRow, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: upsert company begin")
	}
	defer tx.Rollback() //nolint:errcheck

	var row companyRow
	err = tx.QueryRowContext(ctx,
		`SELECT id, domain, name, email_count, first_seen, last_seen FROM `+table+` WHERE domain = ?`,
		domain,
	).Scan(&row.ID, &row.Domain, &row.Name, &row.EmailCount, &row.FirstSeen, &row.LastSeen)

	if err == sql.ErrNoRows {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+` (domain, name, email_count, first_seen, last_seen) VALUES (?, ?, ?, ?, ?)`,
			domain, name, emails, first.UTC(), last.UTC())
		if err != nil {
			return nil, false, eris.Wrapf(err, "sqlite: insert into %s", table)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, false, eris.Wrap(err, "sqlite: last insert id")
		}
		if err := tx.Commit(); err != nil {
			return nil, false, eris.Wrap(err, "sqlite: upsert company commit")
		}
		return &companyRow{ID: id, Domain: domain, Name: name, EmailCount: emails,
			FirstSeen: first.UTC(), LastSeen: last.UTC()}, true, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: load from %s", table)
	}

	if emails > row.EmailCount {
		row.EmailCount = emails
	}
	if first.Before(row.FirstSeen) {
		row.FirstSeen = first.UTC()
	}
	if last.After(row.LastSeen) {
		row.LastSeen = last.UTC()
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE `+table+` SET email_count = ?, first_seen = ?, last_seen = ? WHERE id = ?`,
		row.EmailCount, row.FirstSeen, row.LastSeen, row.ID)
	if err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: update %s", table)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, eris.Wrap(err, "sqlite: upsert company commit")
	}
	return &row, false, nil
}

// contactRow is the shared shape of vendor_contacts and client_contacts.
type contactRow struct {
	ID         int64
	CompanyID  int64
	Email      string
	Name       string
	EmailCount int64
	FirstSeen  time.Time
	LastSeen   time.Time
}

func (s *SQLiteStore) upsertContact(ctx context.Context, table string, companyID int64, email, name string, emails int64, first, last time.Time) (*contactRow, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: upsert contact begin")
	}
	defer tx.Rollback() //nolint:errcheck

	var row contactRow
	err = tx.QueryRowContext(ctx,
		`SELECT id, company_id, email, name, email_count, first_seen, last_seen FROM `+table+` WHERE email = ?`,
		email,
	).Scan(&row.ID, &row.CompanyID, &row.Email, &row.Name, &row.EmailCount, &row.FirstSeen, &row.LastSeen)

	if err == sql.ErrNoRows {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+` (company_id, email, name, email_count, first_seen, last_seen) VALUES (?, ?, ?, ?, ?, ?)`,
			companyID, email, name, emails, first.UTC(), last.UTC())
		if err != nil {
			return nil, false, eris.Wrapf(err, "sqlite: insert into %s", table)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, false, eris.Wrap(err, "sqlite: last insert id")
		}
		if err := tx.Commit(); err != nil {
			return nil, false, eris.Wrap(err, "sqlite: upsert contact commit")
		}
		return &contactRow{ID: id, CompanyID: companyID, Email: email, Name: name,
			EmailCount: emails, FirstSeen: first.UTC(), LastSeen: last.UTC()}, true, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: load from %s", table)
	}

	// Existing contacts keep their original company.
	if row.Name == "" {
		row.Name = name
	}
	if emails > row.EmailCount {
		row.EmailCount = emails
	}
	if first.Before(row.FirstSeen) {
		row.FirstSeen = first.UTC()
	}
	if last.After(row.LastSeen) {
		row.LastSeen = last.UTC()
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE `+table+` SET name = ?, email_count = ?, first_seen = ?, last_seen = ? WHERE id = ?`,
		row.Name, row.EmailCount, row.FirstSeen, row.LastSeen, row.ID)
	if err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: update %s", table)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, eris.Wrap(err, "sqlite: upsert contact commit")
	}
	return &row, false, nil
}

func (s *SQLiteStore) UpsertVendorCompany(ctx context.Context, domain, name string, emails int64, first, last time.Time) (*model.VendorCompany, bool, error) {
	row, inserted, err := s.upsertCompany(ctx, "vendor_companies", domain, name, emails, first, last)
	if err != nil {
		return nil, false, err
	}
	return &model.VendorCompany{ID: row.ID, Domain: row.Domain, Name: row.Name,
		EmailCount: row.EmailCount, FirstSeen: row.FirstSeen, LastSeen: row.LastSeen}, inserted, nil
}

func (s *SQLiteStore) UpsertVendorContact(ctx context.Context, companyID int64, email, name string, emails int64, first, last time.Time) (*model.VendorContact, bool, error) {
	row, inserted, err := s.upsertContact(ctx, "vendor_contacts", companyID, email, name, emails, first, last)
	if err != nil {
		return nil, false, err
	}
	return &model.VendorContact{ID: row.ID, CompanyID: row.CompanyID, Email: row.Email, Name: row.Name,
		EmailCount: row.EmailCount, FirstSeen: row.FirstSeen, LastSeen: row.LastSeen}, inserted, nil
}

func (s *SQLiteStore) UpsertClientCompany(ctx context.Context, domain, name string, emails int64, first, last time.Time) (*model.ClientCompany, bool, error) {
	row, inserted, err := s.upsertCompany(ctx, "client_companies", domain, name, emails, first, last)
	if err != nil {
		return nil, false, err
	}
	return &model.ClientCompany{ID: row.ID, Domain: row.Domain, Name: row.Name,
		EmailCount: row.EmailCount, FirstSeen: row.FirstSeen, LastSeen: row.LastSeen}, inserted, nil
}

func (s *SQLiteStore) UpsertClientContact(ctx context.Context, companyID int64, email, name string, emails int64, first, last time.Time) (*model.ClientContact, bool, error) {
	row, inserted, err := s.upsertContact(ctx, "client_contacts", companyID, email, name, emails, first, last)
	if err != nil {
		return nil, false, err
	}
	return &model.ClientContact{ID: row.ID, CompanyID: row.CompanyID, Email: row.Email, Name: row.Name,
		EmailCount: row.EmailCount, FirstSeen: row.FirstSeen, LastSeen: row.LastSeen}, inserted, nil
}

func (s *SQLiteStore) GetVendorCompanyByDomain(ctx context.Context, domain string) (*model.VendorCompany, error) {
	var c model.VendorCompany
	err := s.db.QueryRowContext(ctx,
		`SELECT id, domain, name, email_count, first_seen, last_seen FROM vendor_companies WHERE domain = ?`,
		domain,
	).Scan(&c.ID, &c.Domain, &c.Name, &c.EmailCount, &c.FirstSeen, &c.LastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get vendor company %s", domain)
	}
	return &c, nil
}

func (s *SQLiteStore) GetVendorContactByEmail(ctx context.Context, email string) (*model.VendorContact, error) {
	var c model.VendorContact
	err := s.db.QueryRowContext(ctx,
		`SELECT id, company_id, email, name, email_count, first_seen, last_seen FROM vendor_contacts WHERE email = ?`,
		email,
	).Scan(&c.ID, &c.CompanyID, &c.Email, &c.Name, &c.EmailCount, &c.FirstSeen, &c.LastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get vendor contact %s", email)
	}
	return &c, nil
}

func (s *SQLiteStore) ListVendorCompanies(ctx context.Context, f CompanyFilter) ([]model.VendorCompany, error) {
	rows, err := s.queryCompanies(ctx, "vendor_companies", f)
	if err != nil {
		return nil, err
	}
	out := make([]model.VendorCompany, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.VendorCompany{ID: r.ID, Domain: r.Domain, Name: r.Name,
			EmailCount: r.EmailCount, FirstSeen: r.FirstSeen, LastSeen: r.LastSeen})
	}
	return out, nil
}

func (s *SQLiteStore) ListClientCompanies(ctx context.Context, f CompanyFilter) ([]model.ClientCompany, error) {
	rows, err := s.queryCompanies(ctx, "client_companies", f)
	if err != nil {
		return nil, err
	}
	out := make([]model.ClientCompany, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.ClientCompany{ID: r.ID, Domain: r.Domain, Name: r.Name,
			EmailCount: r.EmailCount, FirstSeen: r.FirstSeen, LastSeen: r.LastSeen})
	}
	return out, nil
}

func (s *SQLiteStore) queryCompanies(ctx context.Context, table string, f CompanyFilter) ([]companyRow, error) {
	var w whereBuilder
	w.where("name NOT LIKE %s", model.SystemPrefix+"%")
	if f.Search != "" {
		like := "%" + f.Search + "%"
		w.where("(domain LIKE %s OR name LIKE %s)", like, like)
	}

	clause, args := w.build(0)
	query := `SELECT id, domain, name, email_count, first_seen, last_seen FROM ` + table +
		clause + ` ORDER BY email_count DESC LIMIT ? OFFSET ?`
	args = append(args, clampLimit(f.Limit), f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list %s", table)
	}
	defer rows.Close()

	var out []companyRow
	for rows.Next() {
		var r companyRow
		if err := rows.Scan(&r.ID, &r.Domain, &r.Name, &r.EmailCount, &r.FirstSeen, &r.LastSeen); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s row", table)
		}
		out = append(out, r)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: list %s iterate", table)
}

func (s *SQLiteStore) ListVendorContacts(ctx context.Context, companyID int64) ([]model.VendorContact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, email, name, email_count, first_seen, last_seen
		 FROM vendor_contacts WHERE company_id = ? ORDER BY email_count DESC`,
		companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list contacts for vendor %d", companyID)
	}
	defer rows.Close()

	var out []model.VendorContact
	for rows.Next() {
		var c model.VendorContact
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.Email, &c.Name, &c.EmailCount, &c.FirstSeen, &c.LastSeen); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan vendor contact")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list vendor contacts iterate")
}

// Consultants

func (s *SQLiteStore) UpsertConsultant(ctx context.Context, c *model.Consultant) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: upsert consultant begin")
	}
	defer tx.Rollback() //nolint:errcheck

	var existing model.Consultant
	var skillsJSON, altJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT id, name, phone, alt_emails, skills, email_count, first_seen, last_seen
		 FROM consultants WHERE email = ?`,
		c.Email,
	).Scan(&existing.ID, &existing.Name, &existing.Phone, &altJSON, &skillsJSON,
		&existing.EmailCount, &existing.FirstSeen, &existing.LastSeen)

	if err == sql.ErrNoRows {
		skills, alt := marshalStringSets(c.Skills, c.AltEmails)
		res, err := tx.ExecContext(ctx,
			`INSERT INTO consultants (email, name, phone, alt_emails, skills, email_count, first_seen, last_seen)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.Email, c.Name, c.Phone, string(alt), string(skills),
			c.EmailCount, c.FirstSeen.UTC(), c.LastSeen.UTC())
		if err != nil {
			return false, eris.Wrapf(err, "sqlite: insert consultant %s", c.Email)
		}
		c.ID, err = res.LastInsertId()
		if err != nil {
			return false, eris.Wrap(err, "sqlite: last insert id")
		}
		if err := tx.Commit(); err != nil {
			return false, eris.Wrap(err, "sqlite: upsert consultant commit")
		}
		return true, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: load consultant %s", c.Email)
	}

	if err := json.Unmarshal([]byte(skillsJSON), &existing.Skills); err != nil {
		return false, eris.Wrap(err, "sqlite: unmarshal consultant skills")
	}
	if err := json.Unmarshal([]byte(altJSON), &existing.AltEmails); err != nil {
		return false, eris.Wrap(err, "sqlite: unmarshal consultant alt emails")
	}

	merged := mergeConsultant(&existing, c)
	skills, alt := marshalStringSets(merged.Skills, merged.AltEmails)

	_, err = tx.ExecContext(ctx,
		`UPDATE consultants SET name = ?, phone = ?, alt_emails = ?, skills = ?,
		 email_count = ?, first_seen = ?, last_seen = ? WHERE id = ?`,
		merged.Name, merged.Phone, string(alt), string(skills),
		merged.EmailCount, merged.FirstSeen.UTC(), merged.LastSeen.UTC(), existing.ID)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: update consultant %s", c.Email)
	}
	if err := tx.Commit(); err != nil {
		return false, eris.Wrap(err, "sqlite: upsert consultant commit")
	}
	c.ID = existing.ID
	return false, nil
}

func (s *SQLiteStore) ListConsultants(ctx context.Context, f ConsultantFilter) ([]model.Consultant, error) {
	var w whereBuilder
	if f.Search != "" {
		like := "%" + f.Search + "%"
		w.where("(email LIKE %s OR name LIKE %s OR skills LIKE %s)", like, like, like)
	}

	clause, args := w.build(0)
	query := `SELECT id, email, name, phone, alt_emails, skills, email_count, first_seen, last_seen
	          FROM consultants` + clause + ` ORDER BY last_seen DESC LIMIT ? OFFSET ?`
	args = append(args, clampLimit(f.Limit), f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list consultants")
	}
	defer rows.Close()

	var out []model.Consultant
	for rows.Next() {
		var c model.Consultant
		var skillsJSON, altJSON string
		if err := rows.Scan(&c.ID, &c.Email, &c.Name, &c.Phone, &altJSON, &skillsJSON,
			&c.EmailCount, &c.FirstSeen, &c.LastSeen); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan consultant")
		}
		if err := json.Unmarshal([]byte(skillsJSON), &c.Skills); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal consultant skills")
		}
		if err := json.Unmarshal([]byte(altJSON), &c.AltEmails); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal consultant alt emails")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list consultants iterate")
}
