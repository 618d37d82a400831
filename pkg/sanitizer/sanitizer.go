package sanitizer

import (
	"strings"
	"time"

	"interviewdesk/pkg/model"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

func NormalizeEmail(email string) string {
	p := Pipeline{
		strings.TrimSpace,
		strings.ToLower,
	}
	return p.Apply(email)
}

// NormalizeDate accepts YYYY-MM-DD and the unpadded Y-M-D form.
func NormalizeDate(date string) string {
	date = strings.TrimSpace(date)
	for _, layout := range []string{model.DateLayout, "2006-1-2"} {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Format(model.DateLayout)
		}
	}
	return date
}

// NormalizeTimeLabel rewrites a clock label into the ledger key form for
// zoneTag. Labels that do not parse are only whitespace-collapsed.
func NormalizeTimeLabel(label, zoneTag string) string {
	p := Pipeline{
		TrimAndNormalize,
		func(s string) string {
			canonical, err := model.CanonicalTime(s, zoneTag)
			if err != nil {
				return s
			}
			return canonical
		},
	}
	return p.Apply(label)
}
