package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/staffloop/intel-cli/internal/model"
)

func TestClassifier_Cascade(t *testing.T) {
	c := New("staffloop.io")

	tests := []struct {
		name    string
		from    string
		sender  string
		subject string
		body    string
		want    model.Category
	}{
		{
			name: "own domain wins over everything",
			from: "pat@staffloop.io", subject: "Urgent requirement: Java Developer",
			want: model.CategoryInternal,
		},
		{
			name: "noreply sender is system",
			from: "no-reply@linkedin.com", subject: "You have a new connection",
			want: model.CategorySystem,
		},
		{
			name: "bounce daemon is system",
			from: "mailer-daemon@mx.vendor.com", subject: "Undeliverable",
			want: model.CategorySystem,
		},
		{
			name: "free provider with resume intent is consultant",
			from: "dev.kumar@gmail.com", subject: "Resume - Dev Kumar",
			body: "8 years of experience in Java, H1B, available immediately",
			want: model.CategoryConsultant,
		},
		{
			name: "free provider without resume intent is personal",
			from: "friend@yahoo.com", subject: "Lunch on Friday?",
			want: model.CategoryPersonal,
		},
		{
			name: "vms platform is client",
			from: "workflow@fieldglass.net", subject: "Work order 4471 approved",
			want: model.CategoryClient,
		},
		{
			name: "interview subject is client process",
			from: "hr@somecorp.com", subject: "Interview scheduled for Thursday",
			want: model.CategoryClient,
		},
		{
			name: "bank domain is client",
			from: "sourcing@firstnationalbank.com", subject: "Hello",
			want: model.CategoryClient,
		},
		{
			name: "two requisition hits is vendor requisition",
			from: "rita@talentbridge.com", subject: "Urgent requirement: Data Engineer",
			body: "Location: Austin, TX. Rate: $65/hr on C2C.",
			want: model.CategoryVendorReq,
		},
		{
			name: "two resume hits from corporate sender is consultant",
			from: "referrals@techstaffing.com", subject: "Candidate profile",
			body: "Please find attached resume. Work authorization: GC holder.",
			want: model.CategoryConsultant,
		},
		{
			name: "single requisition hit still leans vendor requisition",
			from: "rita@talentbridge.com", subject: "New requirement",
			want: model.CategoryVendorReq,
		},
		{
			name: "corporate sender with no signals is vendor other",
			from: "rita@talentbridge.com", subject: "Checking in",
			body: "Hope you are doing well.",
			want: model.CategoryVendorOther,
		},
		{
			name: "no sender domain is other",
			from: "", subject: "(no subject)",
			want: model.CategoryOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.from, tt.sender, tt.subject, tt.body)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifier_PureFunction(t *testing.T) {
	c := New("staffloop.io")

	// Same input, same output, every time and in any order.
	first := c.Classify("rita@vendor.com", "Rita", "Urgent requirement: Java", "Rate: $60/hr")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify("rita@vendor.com", "Rita", "Urgent requirement: Java", "Rate: $60/hr"))
	}
}

func TestClassifier_CaseInsensitive(t *testing.T) {
	c := New("staffloop.io")

	assert.Equal(t, model.CategoryInternal,
		c.Classify("Pat@STAFFLOOP.IO", "", "hi", ""))
	assert.Equal(t, model.CategoryVendorReq,
		c.Classify("rita@vendor.com", "", "URGENT REQUIREMENT: JAVA", "RATE: $60/HR"))
}

func TestRequisitionIntent(t *testing.T) {
	assert.True(t, RequisitionIntent("Urgent requirement: Java Developer", ""),
		"a subject pattern alone qualifies")
	assert.True(t, RequisitionIntent("Java role", "Location: Remote\nRate: $70/hr\nDuration: 12 months"))
	assert.True(t, RequisitionIntent("Opportunity", "Pays $80 per hour, 12 months"),
		"a dollar amount counts as body structure")
	assert.False(t, RequisitionIntent("Opportunity", "Pays well, 12 months"),
		"one structural hit is not enough")
	assert.False(t, RequisitionIntent("Lunch?", "See you at noon"))
}

func TestIsFreeProvider(t *testing.T) {
	assert.True(t, IsFreeProvider("gmail.com"))
	assert.True(t, IsFreeProvider("GMAIL.com"))
	assert.False(t, IsFreeProvider("talentbridge.com"))
}
