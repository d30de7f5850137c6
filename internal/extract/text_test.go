package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhones(t *testing.T) {
	body := "Call me at (512) 555-1234 or +1 512.555.1234, desk: 214-555-9876."
	got := Phones(body)
	assert.Equal(t, []string{"5125551234", "2145559876"}, got,
		"duplicates collapse, country code strips")
}

func TestEmails(t *testing.T) {
	body := "Reach me at Dev.Kumar@Gmail.com or dev.kumar@gmail.com; work: dk@consulting-co.com"
	assert.Equal(t, []string{"dev.kumar@gmail.com", "dk@consulting-co.com"}, Emails(body))
}

func TestCandidateName(t *testing.T) {
	tests := []struct {
		name     string
		fromName string
		subject  string
		want     string
	}{
		{"sender name wins", "Dev Kumar", "Resume - Somebody Else", "Dev Kumar"},
		{"resume subject fallback", "", "Resume - Dev Kumar", "Dev Kumar"},
		{"cv colon form", "", "CV: Maria Lopez", "Maria Lopez"},
		{"address-shaped name ignored", "dev@gmail.com", "Profile - Dev Kumar", "Dev Kumar"},
		{"nothing to parse", "", "Question about the role", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CandidateName(tt.fromName, tt.subject))
		})
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		body    string
		want    string
	}{
		{
			name:    "explicit field wins over subject",
			subject: "Hot opening",
			body:    "Job Title: Senior Data Engineer\nLocation: Austin",
			want:    "Senior Data Engineer",
		},
		{
			name:    "subject stripped of reply and urgency noise",
			subject: "RE: Urgent requirement: Java Developer | Austin, TX",
			want:    "Java Developer",
		},
		{
			name:    "plain subject passes through",
			subject: "Data Engineer",
			want:    "Data Engineer",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.subject, tt.body))
		})
	}
}

func TestRateText(t *testing.T) {
	assert.Equal(t, "$65/hr on C2C", RateText("Rate: $65/hr on C2C\nDuration: 6 months"),
		"explicit field taken verbatim")
	assert.Equal(t, "$70 per hour", RateText("We can offer $70 per hour for this role."))
	assert.Empty(t, RateText("No compensation mentioned here."))
}

func TestLocation(t *testing.T) {
	assert.Equal(t, "Austin, TX (hybrid)", Location("Location: Austin, TX (hybrid)\nRate: $60/hr"))
	assert.Empty(t, Location("Fully remote role, no location line."))
}

func TestCompanyNameFromDomain(t *testing.T) {
	assert.Equal(t, "Talent Bridge", CompanyNameFromDomain("talent-bridge.com"))
	assert.Equal(t, "Acmestaffing", CompanyNameFromDomain("acmestaffing.io"))
}

func TestParseEmploymentType(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Rate: $65/hr on C2C", "C2C"},
		{"corp to corp only", "C2C"},
		{"W2 candidates preferred", "W2"},
		{"This is a contract to hire position", "C2H"},
		{"Contract to Hire role, W2 only", "W2"},
		{"6 month contract role", "CONTRACT"},
		{"Full-time permanent position", "FTE"},
		{"1099 acceptable", "1099"},
		{"no engagement terms", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, string(ParseEmploymentType(tt.text)))
		})
	}
}

func TestSkillMatcher(t *testing.T) {
	m, err := NewSkillMatcher()
	assert.NoError(t, err)

	got := m.Match("Senior Java developer with Spring Boot, AWS and Kubernetes (k8s). Relocating to Chicago.")
	assert.Equal(t, []string{"AWS", "Java", "Kubernetes", "Spring"}, got)

	assert.Empty(t, m.Match("Lunch on Friday?"))
	assert.Contains(t, m.Match("Strong C# and .NET background"), "C#")
}
