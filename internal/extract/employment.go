package extract

import (
	"strings"

	"github.com/staffloop/intel-cli/internal/model"
)

// employmentKeywords is an ordered table; the first match wins. The
// sequence is C2C, W2, 1099, contract-to-hire, FTE, plain contract:
// "contract to hire, W2 only" reads as W2, and "contract to hire" must
// never be misread as plain "contract".
var employmentKeywords = []struct {
	keyword string
	etype   model.EmploymentType
}{
	{"corp to corp", model.EmploymentC2C},
	{"corp-to-corp", model.EmploymentC2C},
	{"c2c", model.EmploymentC2C},
	{"w2", model.EmploymentW2},
	{"w-2", model.EmploymentW2},
	{"1099", model.Employment1099},
	{"contract to hire", model.EmploymentC2H},
	{"contract-to-hire", model.EmploymentC2H},
	{"c2h", model.EmploymentC2H},
	{"cth", model.EmploymentC2H},
	{"full time", model.EmploymentFTE},
	{"full-time", model.EmploymentFTE},
	{"fulltime", model.EmploymentFTE},
	{"fte", model.EmploymentFTE},
	{"permanent", model.EmploymentFTE},
	{"direct hire", model.EmploymentFTE},
	{"contract", model.EmploymentContract},
}

// ParseEmploymentType returns the engagement model mentioned in text,
// or EmploymentUnknown when no keyword is present.
func ParseEmploymentType(text string) model.EmploymentType {
	lower := strings.ToLower(text)
	for _, e := range employmentKeywords {
		if strings.Contains(lower, e.keyword) {
			return e.etype
		}
	}
	return model.EmploymentUnknown
}
