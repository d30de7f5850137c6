package extract

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/staffloop/intel-cli/internal/classify"
	"github.com/staffloop/intel-cli/internal/model"
	"github.com/staffloop/intel-cli/internal/store"
)

// Result summarizes one extractor pass.
type Result struct {
	Inserted int64
	Updated  int64
	Skipped  int64
}

// Counts converts the tally into run-log counts.
func (r *Result) Counts() map[string]int64 {
	return map[string]int64{
		"inserted": r.Inserted,
		"updated":  r.Updated,
		"skipped":  r.Skipped,
	}
}

func (r *Result) add(o *Result) {
	r.Inserted += o.Inserted
	r.Updated += o.Updated
	r.Skipped += o.Skipped
}

// Engine runs the entity extractors over classified messages. All four
// extractors are idempotent: merge-upserts make a second pass over the
// same corpus a no-op apart from Updated counts.
type Engine struct {
	store     store.Store
	skills    *SkillMatcher
	ownDomain string
	batchSize int
	log       *zap.Logger
}

// NewEngine creates an extraction engine for the operator's own domain.
func NewEngine(st store.Store, skills *SkillMatcher, ownDomain string, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Engine{
		store:     st,
		skills:    skills,
		ownDomain: strings.ToLower(ownDomain),
		batchSize: batchSize,
		log:       zap.L().Named("extract"),
	}
}

// All runs every extractor in dependency order: companies and contacts
// first, then signals, which resolve against them.
func (e *Engine) All(ctx context.Context) (*Result, error) {
	total := &Result{}
	steps := []struct {
		name string
		run  func(context.Context) (*Result, error)
	}{
		{"vendors", e.Vendors},
		{"clients", e.Clients},
		{"consultants", e.Consultants},
		{"signals", e.Signals},
	}
	for _, s := range steps {
		res, err := s.run(ctx)
		if err != nil {
			return total, eris.Wrapf(err, "extract: %s pass", s.name)
		}
		total.add(res)
	}
	return total, nil
}

// senderAgg accumulates per-sender message volume before the upserts.
type senderAgg struct {
	name  string
	count int64
	first time.Time
	last  time.Time
}

func (a *senderAgg) observe(name string, at time.Time) {
	if a.name == "" {
		a.name = name
	}
	a.count++
	if a.first.IsZero() || at.Before(a.first) {
		a.first = at
	}
	if at.After(a.last) {
		a.last = at
	}
}

// Vendors groups vendor-classified inbound mail by sender domain and
// address and merge-upserts companies and contacts. Free-provider and
// own-company domains never become vendors.
func (e *Engine) Vendors(ctx context.Context) (*Result, error) {
	domains, contacts, err := e.aggregateSenders(ctx,
		model.CategoryVendorReq, model.CategoryVendorOther)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	for domain, agg := range domains {
		company, inserted, err := e.store.UpsertVendorCompany(ctx,
			domain, CompanyNameFromDomain(domain), agg.count, agg.first, agg.last)
		if err != nil {
			return res, eris.Wrapf(err, "extract: upsert vendor %s", domain)
		}
		tally(res, inserted)

		for addr, c := range contacts[domain] {
			_, ins, err := e.store.UpsertVendorContact(ctx,
				company.ID, addr, c.name, c.count, c.first, c.last)
			if err != nil {
				return res, eris.Wrapf(err, "extract: upsert vendor contact %s", addr)
			}
			tally(res, ins)
		}
	}
	e.log.Info("vendor extraction complete",
		zap.Int64("inserted", res.Inserted), zap.Int64("updated", res.Updated))
	return res, nil
}

// Clients does the same grouping for client-classified mail.
func (e *Engine) Clients(ctx context.Context) (*Result, error) {
	domains, contacts, err := e.aggregateSenders(ctx, model.CategoryClient)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	for domain, agg := range domains {
		company, inserted, err := e.store.UpsertClientCompany(ctx,
			domain, CompanyNameFromDomain(domain), agg.count, agg.first, agg.last)
		if err != nil {
			return res, eris.Wrapf(err, "extract: upsert client %s", domain)
		}
		tally(res, inserted)

		for addr, c := range contacts[domain] {
			_, ins, err := e.store.UpsertClientContact(ctx,
				company.ID, addr, c.name, c.count, c.first, c.last)
			if err != nil {
				return res, eris.Wrapf(err, "extract: upsert client contact %s", addr)
			}
			tally(res, ins)
		}
	}
	e.log.Info("client extraction complete",
		zap.Int64("inserted", res.Inserted), zap.Int64("updated", res.Updated))
	return res, nil
}

func (e *Engine) aggregateSenders(ctx context.Context, cats ...model.Category) (
	map[string]*senderAgg, map[string]map[string]*senderAgg, error,
) {
	domains := make(map[string]*senderAgg)
	contacts := make(map[string]map[string]*senderAgg)

	for _, cat := range cats {
		cat := cat
		err := e.eachMessage(ctx, store.MessageFilter{Category: &cat}, func(m *model.RawMessage) error {
			if m.Outbound {
				return nil
			}
			addr := strings.ToLower(m.FromAddress)
			domain := DomainOf(addr)
			if domain == "" || domain == e.ownDomain || classify.IsFreeProvider(domain) {
				return nil
			}
			if domains[domain] == nil {
				domains[domain] = &senderAgg{}
				contacts[domain] = make(map[string]*senderAgg)
			}
			domains[domain].observe("", m.SentAt)
			if contacts[domain][addr] == nil {
				contacts[domain][addr] = &senderAgg{}
			}
			contacts[domain][addr].observe(strings.TrimSpace(m.FromName), m.SentAt)
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
	}
	return domains, contacts, nil
}

// Consultants parses candidate mail into consultant profiles. A sender's
// messages are folded into one profile before the upsert, so email_count
// is the recomputed total and a re-run leaves the row unchanged. Skills
// and alternate emails accumulate as sets across messages.
func (e *Engine) Consultants(ctx context.Context) (*Result, error) {
	res := &Result{}
	profiles := make(map[string]*model.Consultant)
	var order []string

	cat := model.CategoryConsultant
	err := e.eachMessage(ctx, store.MessageFilter{Category: &cat}, func(m *model.RawMessage) error {
		if m.Outbound {
			res.Skipped++
			return nil
		}
		text := m.Subject + "\n" + m.BodyExcerpt
		if !classify.ResumeIntent(text) {
			res.Skipped++
			return nil
		}

		addr := strings.ToLower(m.FromAddress)
		p := profiles[addr]
		if p == nil {
			p = &model.Consultant{Email: addr, FirstSeen: m.SentAt, LastSeen: m.SentAt}
			profiles[addr] = p
			order = append(order, addr)
		}
		p.EmailCount++
		if m.SentAt.Before(p.FirstSeen) {
			p.FirstSeen = m.SentAt
		}
		if m.SentAt.After(p.LastSeen) {
			p.LastSeen = m.SentAt
		}
		if p.Name == "" {
			p.Name = CandidateName(m.FromName, m.Subject)
		}
		if p.Phone == "" {
			if phones := Phones(m.BodyExcerpt); len(phones) > 0 {
				p.Phone = phones[0]
			}
		}
		p.Skills = append(p.Skills, e.skills.Match(text)...)
		for _, alt := range Emails(m.BodyExcerpt) {
			if alt != addr {
				p.AltEmails = append(p.AltEmails, alt)
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	for _, addr := range order {
		p := profiles[addr]
		p.Skills = dedupe(p.Skills)
		p.AltEmails = dedupe(p.AltEmails)
		inserted, err := e.store.UpsertConsultant(ctx, p)
		if err != nil {
			return res, eris.Wrapf(err, "extract: upsert consultant %s", addr)
		}
		tally(res, inserted)
	}

	e.log.Info("consultant extraction complete",
		zap.Int64("inserted", res.Inserted), zap.Int64("updated", res.Updated),
		zap.Int64("skipped", res.Skipped))
	return res, nil
}

// dedupe drops exact duplicates and returns a sorted slice. Skill names
// are already canonical, so exact matching is enough.
func dedupe(in []string) []string {
	if len(in) < 2 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Signals turns vendor requisition mail into structured signals, one per
// message at most. Messages that already have a signal are filtered at
// the store, so re-runs only pick up new mail.
func (e *Engine) Signals(ctx context.Context) (*Result, error) {
	res := &Result{}
	cat := model.CategoryVendorReq
	err := e.eachMessage(ctx, store.MessageFilter{Category: &cat, WithoutSignal: true}, func(m *model.RawMessage) error {
		if m.Outbound || !classify.RequisitionIntent(m.Subject, m.BodyExcerpt) {
			res.Skipped++
			return nil
		}

		title := Title(m.Subject, m.BodyExcerpt)
		if title == "" {
			res.Skipped++
			return nil
		}

		s := &model.RequisitionSignal{
			MessageID:      m.ID,
			Title:          title,
			Location:       Location(m.BodyExcerpt),
			RateText:       RateText(m.BodyExcerpt),
			EmploymentType: ParseEmploymentType(m.Subject + " " + m.BodyExcerpt),
			Skills:         e.skills.Match(m.Subject + "\n" + m.BodyExcerpt),
			Status:         model.SignalStatusNew,
			ReceivedAt:     m.SentAt,
		}
		if err := e.resolveVendor(ctx, m, s); err != nil {
			return err
		}

		inserted, err := e.store.InsertSignal(ctx, s)
		if err != nil {
			return eris.Wrapf(err, "extract: insert signal for message %d", m.ID)
		}
		tally(res, inserted)
		return nil
	})
	if err != nil {
		return res, err
	}
	e.log.Info("signal extraction complete",
		zap.Int64("inserted", res.Inserted), zap.Int64("skipped", res.Skipped))
	return res, nil
}

// resolveVendor links a signal to the sender's vendor company and
// contact when extraction has already seen them. A missing vendor is not
// an error; the signal just carries less context.
func (e *Engine) resolveVendor(ctx context.Context, m *model.RawMessage, s *model.RequisitionSignal) error {
	addr := strings.ToLower(m.FromAddress)
	domain := DomainOf(addr)
	if domain == "" {
		return nil
	}
	company, err := e.store.GetVendorCompanyByDomain(ctx, domain)
	if err != nil {
		return eris.Wrapf(err, "extract: resolve vendor %s", domain)
	}
	if company == nil {
		return nil
	}
	s.VendorCompanyID = &company.ID

	contact, err := e.store.GetVendorContactByEmail(ctx, addr)
	if err != nil {
		return eris.Wrapf(err, "extract: resolve contact %s", addr)
	}
	if contact != nil {
		s.VendorContactID = &contact.ID
	}
	return nil
}

func (e *Engine) eachMessage(ctx context.Context, f store.MessageFilter, fn func(*model.RawMessage) error) error {
	f.Limit = e.batchSize
	for {
		batch, err := e.store.ListMessages(ctx, f)
		if err != nil {
			return eris.Wrap(err, "extract: list messages")
		}
		if len(batch) == 0 {
			return nil
		}
		for i := range batch {
			if err := fn(&batch[i]); err != nil {
				return err
			}
		}
		f.AfterID = batch[len(batch)-1].ID
		if len(batch) < e.batchSize {
			return nil
		}
	}
}

func tally(res *Result, inserted bool) {
	if inserted {
		res.Inserted++
	} else {
		res.Updated++
	}
}
