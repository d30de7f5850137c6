// Package extract derives structured entities from classified messages:
// vendor and client companies/contacts, consultants, and requisition
// signals. Every extractor is idempotent over the full corpus.
package extract

import (
	"regexp"
	"strings"
)

var (
	// naPhoneRe matches North-American phone numbers in their common
	// email spellings: (512) 555-1234, 512-555-1234, +1 512.555.1234.
	naPhoneRe = regexp.MustCompile(`(?:\+?1[\s.-]?)?\(?\d{3}\)?[\s.-]\d{3}[\s.-]\d{4}`)

	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// resumeSubjectRe captures a candidate name from subjects like
	// "Resume - Dev Kumar" or "CV: Maria Lopez".
	resumeSubjectRe = regexp.MustCompile(`(?i)^(?:resume|cv|profile)\s*[-:]\s*([A-Za-z][A-Za-z.'\-]*(?:\s+[A-Za-z][A-Za-z.'\-]*){1,3})\s*$`)

	// fieldRes pull explicit "Label: value" lines out of requisition
	// bodies. Values run to end of line.
	titleFieldRe    = regexp.MustCompile(`(?im)^\s*(?:job\s*title|title|position|role)\s*[:\-]\s*(.+)$`)
	locationFieldRe = regexp.MustCompile(`(?im)^\s*(?:location|work\s*location|city)\s*[:\-]\s*(.+)$`)
	rateFieldRe     = regexp.MustCompile(`(?im)^\s*(?:rate|bill\s*rate|pay\s*rate|salary|compensation)\s*[:\-]\s*(.+)$`)

	// inlineRateRe catches rates mentioned in prose: "$65/hr", "$70 per
	// hour", "120k per annum".
	inlineRateRe = regexp.MustCompile(`(?i)\$\s?\d[\d,.]*\s*(?:k)?\s*(?:/|per\s+)?\s*(?:hr|hour|hourly|annum|year|yr)?|\d+\s*(?:/hr|per\s+hour)`)

	subjectNoiseRe = regexp.MustCompile(`(?i)^(?:re|fw|fwd)\s*:\s*`)
	subjectTagRe   = regexp.MustCompile(`(?i)(?:urgent|immediate|hot)\s+(?:requirement|need|opening)\s*[:\-]*\s*`)
)

// Phones returns the distinct phone numbers found in text, normalized
// to digits with a leading country code stripped.
func Phones(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, raw := range naPhoneRe.FindAllString(text, -1) {
		digits := digitsOnly(raw)
		if len(digits) == 11 && digits[0] == '1' {
			digits = digits[1:]
		}
		if len(digits) != 10 || seen[digits] {
			continue
		}
		seen[digits] = true
		out = append(out, digits)
	}
	return out
}

// Emails returns the distinct lowercase email addresses embedded in
// text.
func Emails(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, raw := range emailRe.FindAllString(text, -1) {
		addr := strings.ToLower(raw)
		if seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	return out
}

// CandidateName picks the best display name for a consultant: the
// sender's name when present, else one parsed from a resume-style
// subject.
func CandidateName(fromName, subject string) string {
	name := strings.TrimSpace(fromName)
	if name != "" && !strings.ContainsAny(name, "@") {
		return name
	}
	if m := resumeSubjectRe.FindStringSubmatch(strings.TrimSpace(subject)); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// Title extracts a role title: an explicit field when present, else the
// subject stripped of reply markers and urgency tags.
func Title(subject, body string) string {
	if m := titleFieldRe.FindStringSubmatch(body); m != nil {
		return cleanFieldValue(m[1])
	}
	s := subjectNoiseRe.ReplaceAllString(strings.TrimSpace(subject), "")
	s = subjectTagRe.ReplaceAllString(s, "")
	// Drop trailing location/rate chatter after a separator.
	if i := strings.IndexAny(s, "|@"); i > 0 {
		s = s[:i]
	}
	return cleanFieldValue(s)
}

// Location extracts an explicit work location field, if any.
func Location(body string) string {
	if m := locationFieldRe.FindStringSubmatch(body); m != nil {
		return cleanFieldValue(m[1])
	}
	return ""
}

// RateText extracts the rate as written: an explicit field when
// present, else the first inline rate mention.
func RateText(body string) string {
	if m := rateFieldRe.FindStringSubmatch(body); m != nil {
		return cleanFieldValue(m[1])
	}
	if m := inlineRateRe.FindString(body); m != "" {
		return strings.TrimSpace(m)
	}
	return ""
}

// CompanyNameFromDomain guesses a display name from the registrable
// label: "talent-bridge.com" becomes "Talent Bridge".
func CompanyNameFromDomain(domain string) string {
	label := domain
	if i := strings.Index(label, "."); i > 0 {
		label = label[:i]
	}
	words := strings.FieldsFunc(label, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// DomainOf returns the lowercase domain of an address, or "".
func DomainOf(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return strings.ToLower(addr[at+1:])
}

func cleanFieldValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "-–|,;")
	if len(s) > 200 {
		s = s[:200]
	}
	return strings.TrimSpace(s)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
