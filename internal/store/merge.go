package store

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/staffloop/intel-cli/internal/model"
)

// mergeConsultant folds incoming into existing: names and phones fill
// blanks only, skills and alt emails union, email_count refreshes to
// the larger of the stored value and the recomputed aggregate, and the
// seen window widens in both directions. Returns the merged record.
func mergeConsultant(existing, incoming *model.Consultant) *model.Consultant {
	out := *existing

	if out.Name == "" {
		out.Name = incoming.Name
	}
	if out.Phone == "" {
		out.Phone = incoming.Phone
	}
	out.Skills = unionFold(out.Skills, incoming.Skills)
	out.AltEmails = unionFold(out.AltEmails, incoming.AltEmails)
	if incoming.EmailCount > out.EmailCount {
		out.EmailCount = incoming.EmailCount
	}

	if incoming.FirstSeen.Before(out.FirstSeen) {
		out.FirstSeen = incoming.FirstSeen
	}
	if incoming.LastSeen.After(out.LastSeen) {
		out.LastSeen = incoming.LastSeen
	}
	return &out
}

// unionFold merges two string sets case-insensitively, keeping the first
// spelling seen and returning a sorted slice.
func unionFold(a, b []string) []string {
	seen := make(map[string]string, len(a)+len(b))
	for _, s := range a {
		k := strings.ToLower(strings.TrimSpace(s))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; !ok {
			seen[k] = strings.TrimSpace(s)
		}
	}
	for _, s := range b {
		k := strings.ToLower(strings.TrimSpace(s))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; !ok {
			seen[k] = strings.TrimSpace(s)
		}
	}

	out := make([]string, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// marshalStringSets renders skills and alt emails as JSON arrays for
// storage. Nil slices become "[]" so columns never hold SQL NULL.
func marshalStringSets(skills, altEmails []string) (skillsJSON, altJSON []byte) {
	if skills == nil {
		skills = []string{}
	}
	if altEmails == nil {
		altEmails = []string{}
	}
	skillsJSON, _ = json.Marshal(skills)
	altJSON, _ = json.Marshal(altEmails)
	return skillsJSON, altJSON
}
