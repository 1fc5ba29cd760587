package odk

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fieldview/collect-server/internal/form"
	"github.com/fieldview/collect-server/internal/response"
)

// "none" is what clients submit for an empty selection.
const noneToken = "none"

var (
	tzSuffixRegexp = regexp.MustCompile(`(Z|[+\-]\d{1,2}(:\d{2})?)$`)

	datetimeLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999-07:00",
		"2006-01-02T15:04:05.999-0700",
		"2006-01-02T15:04:05.999-07",
		"2006-01-02T15:04:05-07",
		"2006-01-02T15:04:05",
	}
	clockLayouts = []string{
		"15:04:05.999",
		"15:04:05",
		"15:04",
	}
)

// castValue types the submitted text onto the answer according to the
// question's declared type. Numeric types pass through as text; numeric
// coercion is a downstream concern.
func (p *ResponseParser) castValue(a *response.Answer, content string, item *form.Item, f *form.Form) {
	switch item.QType {
	case form.QTypeSelectOne:
		if content != noneToken {
			a.OptionID = OptionIDForSubmission(content, f)
		}
	case form.QTypeSelectMultiple:
		if content != noneToken {
			for _, token := range strings.Fields(content) {
				a.Choices = append(a.Choices, response.Choice{OptionID: OptionIDForSubmission(token, f)})
			}
		}
	case form.QTypeDate:
		if t, err := time.Parse("2006-01-02", content); err == nil {
			a.DateValue = &t
		} else {
			a.Value = content
		}
	case form.QTypeDatetime, form.QTypeFormstart, form.QTypeFormend:
		if t, ok := parseDatetime(content); ok {
			a.DatetimeValue = &t
		} else {
			a.Value = content
		}
	case form.QTypeTime:
		// Time answers arrive with zone offsets, but a time question means a
		// time of day, not an instant. The offset is discarded and the clock
		// pinned to the reference date so DST can never shift it.
		if t, ok := parseTimeOfDay(content); ok {
			a.TimeValue = &t
		} else {
			a.Value = content
		}
	case form.QTypeLocation:
		a.Value = content
		castLocation(a, content)
	default:
		a.Value = content
	}
}

func parseDatetime(content string) (time.Time, bool) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, content); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseTimeOfDay(content string) (time.Time, bool) {
	trimmed := tzSuffixRegexp.ReplaceAllString(strings.TrimSpace(content), "")
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return time.Date(2000, 1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), true
		}
	}
	return time.Time{}, false
}

// castLocation fills the coordinate quad from a "lat long [alt [acc]]"
// string. Malformed input keeps only the raw text.
func castLocation(a *response.Answer, content string) {
	fields := strings.Fields(content)
	if len(fields) < 2 || len(fields) > 4 {
		return
	}
	vals := make([]float64, 0, 4)
	for _, fld := range fields {
		v, err := strconv.ParseFloat(fld, 64)
		if err != nil {
			return
		}
		vals = append(vals, v)
	}
	a.Latitude = &vals[0]
	a.Longitude = &vals[1]
	if len(vals) > 2 {
		a.Altitude = &vals[2]
	}
	if len(vals) > 3 {
		a.Accuracy = &vals[3]
	}
}
