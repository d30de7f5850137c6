package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/staffloop/intel-cli/internal/model"
)

// Company and contact merge-upserts. The ON CONFLICT arithmetic encodes
// the merge invariant: callers pass the full recomputed aggregate, so
// email_count refreshes to the larger value instead of accumulating,
// first_seen takes the minimum, last_seen the maximum. Re-running an
// extractor over an unchanged corpus leaves every row as it was.
// (xmax = 0) distinguishes insert from update.

func (s *PostgresStore) UpsertVendorCompany(ctx context.Context, domain, name string, emails int64, first, last time.Time) (*model.VendorCompany, bool, error) {
	var c model.VendorCompany
	var inserted bool
	err := s.pool.QueryRow(ctx,
		`INSERT INTO vendor_companies (domain, name, email_count, first_seen, last_seen)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (domain) DO UPDATE SET
			email_count = GREATEST(vendor_companies.email_count, EXCLUDED.email_count),
			first_seen  = LEAST(vendor_companies.first_seen, EXCLUDED.first_seen),
			last_seen   = GREATEST(vendor_companies.last_seen, EXCLUDED.last_seen)
		 RETURNING id, domain, name, email_count, first_seen, last_seen, (xmax = 0)`,
		domain, name, emails, first, last,
	).Scan(&c.ID, &c.Domain, &c.Name, &c.EmailCount, &c.FirstSeen, &c.LastSeen, &inserted)
	if err != nil {
		return nil, false, eris.Wrapf(err, "postgres: upsert vendor company %s", domain)
	}
	return &c, inserted, nil
}

func (s *PostgresStore) UpsertVendorContact(ctx context.Context, companyID int64, email, name string, emails int64, first, last time.Time) (*model.VendorContact, bool, error) {
	var c model.VendorContact
	var inserted bool
	// company_id is deliberately absent from the update set: a contact
	// stays with the first company it was seen under.
	err := s.pool.QueryRow(ctx,
		`INSERT INTO vendor_contacts (company_id, email, name, email_count, first_seen, last_seen)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (email) DO UPDATE SET
			name        = CASE WHEN vendor_contacts.name = '' THEN EXCLUDED.name ELSE vendor_contacts.name END,
			email_count = GREATEST(vendor_contacts.email_count, EXCLUDED.email_count),
			first_seen  = LEAST(vendor_contacts.first_seen, EXCLUDED.first_seen),
			last_seen   = GREATEST(vendor_contacts.last_seen, EXCLUDED.last_seen)
		 RETURNING id, company_id, email, name, email_count, first_seen, last_seen, (xmax = 0)`,
		companyID, email, name, emails, first, last,
	).Scan(&c.ID, &c.CompanyID, &c.Email, &c.Name, &c.EmailCount, &c.FirstSeen, &c.LastSeen, &inserted)
	if err != nil {
		return nil, false, eris.Wrapf(err, "postgres: upsert vendor contact %s", email)
	}
	return &c, inserted, nil
}

func (s *PostgresStore) GetVendorCompanyByDomain(ctx context.Context, domain string) (*model.VendorCompany, error) {
	var c model.VendorCompany
	err := s.pool.QueryRow(ctx,
		`SELECT id, domain, name, email_count, first_seen, last_seen
		 FROM vendor_companies WHERE domain = $1`,
		domain,
	).Scan(&c.ID, &c.Domain, &c.Name, &c.EmailCount, &c.FirstSeen, &c.LastSeen)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get vendor company %s", domain)
	}
	return &c, nil
}

func (s *PostgresStore) GetVendorContactByEmail(ctx context.Context, email string) (*model.VendorContact, error) {
	var c model.VendorContact
	err := s.pool.QueryRow(ctx,
		`SELECT id, company_id, email, name, email_count, first_seen, last_seen
		 FROM vendor_contacts WHERE email = $1`,
		email,
	).Scan(&c.ID, &c.CompanyID, &c.Email, &c.Name, &c.EmailCount, &c.FirstSeen, &c.LastSeen)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get vendor contact %s", email)
	}
	return &c, nil
}

func (s *PostgresStore) ListVendorCompanies(ctx context.Context, f CompanyFilter) ([]model.VendorCompany, error) {
	var w whereBuilder
	w.where("name NOT LIKE %s", model.SystemPrefix+"%")
	if f.Search != "" {
		like := "%" + f.Search + "%"
		w.where("(domain ILIKE %s OR name ILIKE %s)", like, like)
	}

	clause, args := w.build(1)
	n := w.next(1)
	query := `SELECT id, domain, name, email_count, first_seen, last_seen FROM vendor_companies` +
		clause + ` ORDER BY email_count DESC LIMIT $` + itoa(n) + ` OFFSET $` + itoa(n+1)
	args = append(args, clampLimit(f.Limit), f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list vendor companies")
	}
	defer rows.Close()

	var out []model.VendorCompany
	for rows.Next() {
		var c model.VendorCompany
		if err := rows.Scan(&c.ID, &c.Domain, &c.Name, &c.EmailCount, &c.FirstSeen, &c.LastSeen); err != nil {
			return nil, eris.Wrap(err, "postgres: scan vendor company")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list vendor companies iterate")
}

func (s *PostgresStore) ListVendorContacts(ctx context.Context, companyID int64) ([]model.VendorContact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, email, name, email_count, first_seen, last_seen
		 FROM vendor_contacts WHERE company_id = $1 ORDER BY email_count DESC`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list contacts for vendor %d", companyID)
	}
	defer rows.Close()

	var out []model.VendorContact
	for rows.Next() {
		var c model.VendorContact
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.Email, &c.Name, &c.EmailCount, &c.FirstSeen, &c.LastSeen); err != nil {
			return nil, eris.Wrap(err, "postgres: scan vendor contact")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list vendor contacts iterate")
}

func (s *PostgresStore) UpsertClientCompany(ctx context.Context, domain, name string, emails int64, first, last time.Time) (*model.ClientCompany, bool, error) {
	var c model.ClientCompany
	var inserted bool
	err := s.pool.QueryRow(ctx,
		`INSERT INTO client_companies (domain, name, email_count, first_seen, last_seen)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (domain) DO UPDATE SET
			email_count = GREATEST(client_companies.email_count, EXCLUDED.email_count),
			first_seen  = LEAST(client_companies.first_seen, EXCLUDED.first_seen),
			last_seen   = GREATEST(client_companies.last_seen, EXCLUDED.last_seen)
		 RETURNING id, domain, name, email_count, first_seen, last_seen, (xmax = 0)`,
		domain, name, emails, first, last,
	).Scan(&c.ID, &c.Domain, &c.Name, &c.EmailCount, &c.FirstSeen, &c.LastSeen, &inserted)
	if err != nil {
		return nil, false, eris.Wrapf(err, "postgres: upsert client company %s", domain)
	}
	return &c, inserted, nil
}

func (s *PostgresStore) UpsertClientContact(ctx context.Context, companyID int64, email, name string, emails int64, first, last time.Time) (*model.ClientContact, bool, error) {
	var c model.ClientContact
	var inserted bool
	err := s.pool.QueryRow(ctx,
		`INSERT INTO client_contacts (company_id, email, name, email_count, first_seen, last_seen)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (email) DO UPDATE SET
			name        = CASE WHEN client_contacts.name = '' THEN EXCLUDED.name ELSE client_contacts.name END,
			email_count = GREATEST(client_contacts.email_count, EXCLUDED.email_count),
			first_seen  = LEAST(client_contacts.first_seen, EXCLUDED.first_seen),
			last_seen   = GREATEST(client_contacts.last_seen, EXCLUDED.last_seen)
		 RETURNING id, company_id, email, name, email_count, first_seen, last_seen, (xmax = 0)`,
		companyID, email, name, emails, first, last,
	).Scan(&c.ID, &c.CompanyID, &c.Email, &c.Name, &c.EmailCount, &c.FirstSeen, &c.LastSeen, &inserted)
	if err != nil {
		return nil, false, eris.Wrapf(err, "postgres: upsert client contact %s", email)
	}
	return &c, inserted, nil
}

func (s *PostgresStore) ListClientCompanies(ctx context.Context, f CompanyFilter) ([]model.ClientCompany, error) {
	var w whereBuilder
	w.where("name NOT LIKE %s", model.SystemPrefix+"%")
	if f.Search != "" {
		like := "%" + f.Search + "%"
		w.where("(domain ILIKE %s OR name ILIKE %s)", like, like)
	}

	clause, args := w.build(1)
	n := w.next(1)
	query := `SELECT id, domain, name, email_count, first_seen, last_seen FROM client_companies` +
		clause + ` ORDER BY email_count DESC LIMIT $` + itoa(n) + ` OFFSET $` + itoa(n+1)
	args = append(args, clampLimit(f.Limit), f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list client companies")
	}
	defer rows.Close()

	var out []model.ClientCompany
	for rows.Next() {
		var c model.ClientCompany
		if err := rows.Scan(&c.ID, &c.Domain, &c.Name, &c.EmailCount, &c.FirstSeen, &c.LastSeen); err != nil {
			return nil, eris.Wrap(err, "postgres: scan client company")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list client companies iterate")
}

// Consultants

func (s *PostgresStore) UpsertConsultant(ctx context.Context, c *model.Consultant) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, eris.Wrap(err, "postgres: upsert consultant begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var existing model.Consultant
	var skillsJSON, altJSON []byte
	err = tx.QueryRow(ctx,
		`SELECT id, name, phone, alt_emails, skills, email_count, first_seen, last_seen
		 FROM consultants WHERE email = $1 FOR UPDATE`,
		c.Email,
	).Scan(&existing.ID, &existing.Name, &existing.Phone, &altJSON, &skillsJSON,
		&existing.EmailCount, &existing.FirstSeen, &existing.LastSeen)

	if err == pgx.ErrNoRows {
		skills, alt := marshalStringSets(c.Skills, c.AltEmails)
		err = tx.QueryRow(ctx,
			`INSERT INTO consultants (email, name, phone, alt_emails, skills, email_count, first_seen, last_seen)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			c.Email, c.Name, c.Phone, alt, skills, c.EmailCount, c.FirstSeen, c.LastSeen,
		).Scan(&c.ID)
		if err != nil {
			return false, eris.Wrapf(err, "postgres: insert consultant %s", c.Email)
		}
		if err := tx.Commit(ctx); err != nil {
			return false, eris.Wrap(err, "postgres: upsert consultant commit")
		}
		return true, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: load consultant %s", c.Email)
	}

	if err := json.Unmarshal(skillsJSON, &existing.Skills); err != nil {
		return false, eris.Wrap(err, "postgres: unmarshal consultant skills")
	}
	if err := json.Unmarshal(altJSON, &existing.AltEmails); err != nil {
		return false, eris.Wrap(err, "postgres: unmarshal consultant alt emails")
	}

	merged := mergeConsultant(&existing, c)
	skills, alt := marshalStringSets(merged.Skills, merged.AltEmails)

	_, err = tx.Exec(ctx,
		`UPDATE consultants SET name = $1, phone = $2, alt_emails = $3, skills = $4,
		 email_count = $5, first_seen = $6, last_seen = $7 WHERE id = $8`,
		merged.Name, merged.Phone, alt, skills,
		merged.EmailCount, merged.FirstSeen, merged.LastSeen, existing.ID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: update consultant %s", c.Email)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, eris.Wrap(err, "postgres: upsert consultant commit")
	}
	c.ID = existing.ID
	return false, nil
}

func (s *PostgresStore) ListConsultants(ctx context.Context, f ConsultantFilter) ([]model.Consultant, error) {
	var w whereBuilder
	if f.Search != "" {
		like := "%" + f.Search + "%"
		w.where("(email ILIKE %s OR name ILIKE %s OR skills::text ILIKE %s)", like, like, like)
	}

	clause, args := w.build(1)
	n := w.next(1)
	query := `SELECT id, email, name, phone, alt_emails, skills, email_count, first_seen, last_seen
	          FROM consultants` + clause +
		` ORDER BY last_seen DESC LIMIT $` + itoa(n) + ` OFFSET $` + itoa(n+1)
	args = append(args, clampLimit(f.Limit), f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list consultants")
	}
	defer rows.Close()

	var out []model.Consultant
	for rows.Next() {
		var c model.Consultant
		var skillsJSON, altJSON []byte
		if err := rows.Scan(&c.ID, &c.Email, &c.Name, &c.Phone, &altJSON, &skillsJSON,
			&c.EmailCount, &c.FirstSeen, &c.LastSeen); err != nil {
			return nil, eris.Wrap(err, "postgres: scan consultant")
		}
		if err := json.Unmarshal(skillsJSON, &c.Skills); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal consultant skills")
		}
		if err := json.Unmarshal(altJSON, &c.AltEmails); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal consultant alt emails")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list consultants iterate")
}
