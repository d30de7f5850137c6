// Package classify assigns exactly one category to each raw message via
// an ordered rule cascade. Classification is a pure function of the
// sender and text, so full and incremental passes always agree.
package classify

import (
	"strings"

	"github.com/staffloop/intel-cli/internal/model"
)

// freeProviders are consumer mail domains. Senders here are people, not
// companies.
var freeProviders = map[string]bool{
	"gmail.com":      true,
	"yahoo.com":      true,
	"yahoo.co.in":    true,
	"hotmail.com":    true,
	"outlook.com":    true,
	"aol.com":        true,
	"icloud.com":     true,
	"live.com":       true,
	"msn.com":        true,
	"protonmail.com": true,
	"proton.me":      true,
	"rediffmail.com": true,
	"comcast.net":    true,
	"att.net":        true,
	"verizon.net":    true,
	"mail.com":       true,
	"zoho.com":       true,
	"gmx.com":        true,
	"ymail.com":      true,
}

// systemPatterns mark automated senders; matched against the full
// address.
var systemPatterns = []string{
	"no-reply",
	"noreply",
	"no_reply",
	"donotreply",
	"do-not-reply",
	"postmaster",
	"mailer-daemon",
	"bounce",
	"notifications@",
	"notification@",
	"alerts@",
	"alert@",
	"newsletter",
	"marketing@",
	"support@",
	"billing@",
	"invoices@",
	"system@",
	"automated@",
	"calendar-notification",
}

// vmsDomains are vendor-management and procurement platforms; mail from
// them represents a client-side process.
var vmsDomains = []string{
	"fieldglass",
	"beeline.com",
	"wand.com",
	"coupa.com",
	"vndly",
	"iqnavigator",
	"ariba.com",
	"workday.com",
	"successfactors",
	"icims.com",
	"smartrecruiters",
	"greenhouse.io",
	"lever.co",
	"taleo.net",
	"brassring",
	"jobvite.com",
	"workable.com",
}

// clientProcessPatterns in a subject indicate an engagement already in a
// client's pipeline.
var clientProcessPatterns = []string{
	"interview scheduled",
	"interview confirmation",
	"interview invite",
	"onboarding",
	"background check",
	"drug screen",
	"purchase order",
	"po number",
	"po #",
	"statement of work",
	"sow ",
	"msa ",
	"timesheet",
	"time sheet",
	"work order",
	"offer letter",
	"start date confirmation",
	"extension approved",
}

// enterpriseKeywords in a sender domain suggest an end client rather
// than a staffing vendor.
var enterpriseKeywords = []string{
	"bank",
	"capital",
	"financial",
	"insurance",
	"mutual",
	"health",
	"hospital",
	"clinic",
	"pharma",
	"energy",
	"utility",
	"airlines",
	"university",
	".edu",
	".gov",
	".mil",
}

// resumePatterns signal a candidate introducing themselves.
var resumePatterns = []string{
	"resume",
	"cv attached",
	"curriculum vitae",
	"looking for a job",
	"looking for new opportunities",
	"open to work",
	"seeking a position",
	"seeking new role",
	"my profile",
	"attached is my",
	"please find attached",
	"years of experience",
	"work authorization",
	"visa status",
	"h1b",
	"h-1b",
	"green card",
	"gc holder",
	"us citizen",
	"opt ead",
	"available immediately",
	"notice period",
	"current location",
	"willing to relocate",
}

// requisitionPatterns signal a vendor broadcasting an open position.
var requisitionPatterns = []string{
	"urgent requirement",
	"urgent need",
	"immediate need",
	"hot requirement",
	"new requirement",
	"job opportunity",
	"job opening",
	"open position",
	"position:",
	"role:",
	"title:",
	"location:",
	"duration:",
	"rate:",
	"bill rate",
	"pay rate",
	"per hour",
	"per annum",
	"/hr",
	"c2c",
	"corp to corp",
	"corp-to-corp",
	"w2 only",
	"contract position",
	"contract role",
	"need consultant",
	"looking for consultant",
	"client is looking",
	"direct client",
	"implementation partner",
	"send me your updated resume",
	"share suitable profiles",
	"share resumes",
}

// Classifier evaluates the rule cascade for one operator domain.
type Classifier struct {
	ownDomain string
}

// New creates a classifier for the operator's own mail domain.
func New(ownDomain string) *Classifier {
	return &Classifier{ownDomain: strings.ToLower(ownDomain)}
}

// Classify returns the category for one message. Rules are evaluated in
// order; the first match wins.
func (c *Classifier) Classify(fromAddress, fromName, subject, bodyExcerpt string) model.Category {
	addr := strings.ToLower(strings.TrimSpace(fromAddress))
	domain := domainOf(addr)
	text := strings.ToLower(subject + " " + bodyExcerpt)

	// 1. Our own people.
	if c.ownDomain != "" && domain == c.ownDomain {
		return model.CategoryInternal
	}

	// 2. Automated senders.
	for _, p := range systemPatterns {
		if strings.Contains(addr, p) {
			return model.CategorySystem
		}
	}

	resumeHits := countHits(text, resumePatterns)
	reqHits := countHits(text, requisitionPatterns)

	// 3. Free-provider senders are individuals: candidates if they talk
	// like one, personal mail otherwise.
	if freeProviders[domain] {
		if resumeHits >= 1 {
			return model.CategoryConsultant
		}
		return model.CategoryPersonal
	}

	// 4. VMS and procurement platforms.
	for _, v := range vmsDomains {
		if strings.Contains(domain, v) {
			return model.CategoryClient
		}
	}

	// 5. Client-process subjects.
	subjLower := strings.ToLower(subject)
	for _, p := range clientProcessPatterns {
		if strings.Contains(subjLower, p) {
			return model.CategoryClient
		}
	}

	// 6. Enterprise-sector domains.
	for _, k := range enterpriseKeywords {
		if strings.Contains(domain, k) {
			return model.CategoryClient
		}
	}

	// 7-9. Intent strength; a lone hit leans toward requisition.
	if resumeHits >= 2 {
		return model.CategoryConsultant
	}
	if reqHits >= 2 {
		return model.CategoryVendorReq
	}
	if reqHits == 1 {
		return model.CategoryVendorReq
	}
	if resumeHits == 1 {
		return model.CategoryConsultant
	}

	// 10. Some other company.
	if domain != "" {
		return model.CategoryVendorOther
	}

	// 11. Nothing to go on.
	return model.CategoryOther
}

// IsFreeProvider reports whether domain is a consumer mail provider.
// Shared with the extraction pipeline.
func IsFreeProvider(domain string) bool {
	return freeProviders[strings.ToLower(domain)]
}

// ResumeIntent reports whether the text carries at least one
// resume-signal pattern. Shared with the consultant extractor.
func ResumeIntent(text string) bool {
	return countHits(strings.ToLower(text), resumePatterns) >= 1
}

// structuralPatterns is the requisition set plus a bare dollar sign,
// which counts as structure in a body ("$80/hr") but is too noisy for
// the classifier's hit counting.
var structuralPatterns = append([]string{"$"}, requisitionPatterns...)

// RequisitionIntent reports whether the text reads like a job
// requisition. Shared with the signal extractor.
func RequisitionIntent(subject, body string) bool {
	if countHits(strings.ToLower(subject), requisitionPatterns) >= 1 {
		return true
	}
	return countHits(strings.ToLower(subject+" "+body), structuralPatterns) >= 2
}

func countHits(lowerText string, patterns []string) int {
	n := 0
	for _, p := range patterns {
		if strings.Contains(lowerText, p) {
			n++
		}
	}
	return n
}

func domainOf(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return addr[at+1:]
}
