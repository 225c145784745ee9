package convert

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/teambition/rrule-go"

	"github.com/sonroyaalmerol/jscalical/pkg/jscal"
)

var weekdayByCode = map[string]rrule.Weekday{
	"mo": rrule.MO, "tu": rrule.TU, "we": rrule.WE, "th": rrule.TH,
	"fr": rrule.FR, "sa": rrule.SA, "su": rrule.SU,
}

var freqToJSON = map[rrule.Frequency]string{
	rrule.YEARLY: "yearly", rrule.MONTHLY: "monthly", rrule.WEEKLY: "weekly",
	rrule.DAILY: "daily", rrule.HOURLY: "hourly", rrule.MINUTELY: "minutely",
	rrule.SECONDLY: "secondly",
}

var freqFromJSON = map[string]rrule.Frequency{
	"yearly": rrule.YEARLY, "monthly": rrule.MONTHLY, "weekly": rrule.WEEKLY,
	"daily": rrule.DAILY, "hourly": rrule.HOURLY, "minutely": rrule.MINUTELY,
	"secondly": rrule.SECONDLY,
}

// weekdayCode renders an rrule.Weekday as its lowercase two-letter code,
// stripping any nth-of-period prefix rrule-go's String() would include.
func weekdayCode(wd rrule.Weekday) (code string, nth *int) {
	s := wd.String() // e.g. "MO", "2MO", "-1FR"
	i := 0
	for i < len(s) && (s[i] == '-' || (s[i] >= '0' && s[i] <= '9')) {
		i++
	}
	code = strings.ToLower(s[i:])
	if i > 0 {
		n, err := strconv.Atoi(s[:i])
		if err == nil {
			nth = &n
		}
	}
	return code, nth
}

// RRuleFromICal converts an RRULE property value into a JSCalendar
// recurrenceRule object (spec.md §4.5).
func (c *Context) RRuleFromICal(value string) (*jscal.RecurrenceRule, error) {
	opt, err := rrule.StrToROption(value)
	if err != nil {
		return nil, err
	}

	out := &jscal.RecurrenceRule{
		Type:      "RecurrenceRule",
		Frequency: freqToJSON[opt.Freq],
	}
	if opt.Interval > 1 {
		out.Interval = jscal.Int(opt.Interval)
	}
	if wkstCode, _ := weekdayCode(opt.Wkst); wkstCode != "" && wkstCode != "mo" {
		out.FirstDayOfWeek = jscal.Str(wkstCode)
	}
	if opt.Count > 0 {
		out.Count = jscal.Int(opt.Count)
	}
	if !opt.Until.IsZero() {
		out.Until = jscal.Str(FormatUTCDate(opt.Until))
	}
	for _, wd := range opt.Byweekday {
		code, nth := weekdayCode(wd)
		out.ByDay = append(out.ByDay, jscal.NDay{Day: code, NthOfPeriod: nth})
	}
	if len(opt.Bymonth) > 0 {
		months := append([]int(nil), opt.Bymonth...)
		sort.Ints(months)
		for _, m := range months {
			out.ByMonth = append(out.ByMonth, strconv.Itoa(m))
		}
	}
	out.ByDate = sortedCopy(opt.Bymonthday)
	out.ByYearDay = sortedCopy(opt.Byyearday)
	out.ByWeekNo = sortedCopy(opt.Byweekno)
	out.ByHour = sortedCopy(opt.Byhour)
	out.ByMinute = sortedCopy(opt.Byminute)
	out.BySecond = sortedCopy(opt.Bysecond)
	out.BySetPosition = sortedCopy(opt.Bysetpos)

	return out, nil
}

func sortedCopy(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	out := append([]int(nil), in...)
	sort.Ints(out)
	return out
}

type rangeRule struct {
	lower, upper int
	allowZero    bool
}

// byXRanges implements the range table in spec.md §4.5.
var byXRanges = map[string]rangeRule{
	"byDate":        {-31, 31, false},
	"byYearDay":     {-366, 366, false},
	"byWeekNo":      {-53, 53, false},
	"byHour":        {0, 23, true},
	"byMinute":      {0, 59, true},
	"bySecond":      {0, 59, true},
	"bySetPosition": {0, 59, true},
}

func validateByX(ctx *Context, field string, values []int) bool {
	rule, ok := byXRanges[field]
	if !ok {
		return true
	}
	ok = true
	for i, v := range values {
		if v == 0 && !rule.allowZero {
			ctx.InvalidPath(fmt.Sprintf("%s/%d", field, i))
			ok = false
			continue
		}
		if v < rule.lower || v > rule.upper {
			ctx.InvalidPath(fmt.Sprintf("%s/%d", field, i))
			ok = false
		}
	}
	return ok
}

// RRuleToICal converts a JSCalendar recurrenceRule into an RRULE property
// value (spec.md §4.5). Errors, including a missing or unknown frequency,
// are recorded into ctx via Invalid/InvalidPath and return ("", false); a
// nil rule returns ("", false) without recording anything.
func RRuleToICal(ctx *Context, rule *jscal.RecurrenceRule) (string, bool) {
	if rule == nil {
		return "", false
	}
	if _, ok := freqFromJSON[rule.Frequency]; !ok {
		ctx.Invalid("frequency")
		return "", false
	}
	if rule.Count != nil && rule.Until != nil {
		ctx.Invalid("count")
		ctx.Invalid("until")
		return "", false
	}

	valid := true
	valid = validateByX(ctx, "byDate", rule.ByDate) && valid
	valid = validateByX(ctx, "byYearDay", rule.ByYearDay) && valid
	valid = validateByX(ctx, "byWeekNo", rule.ByWeekNo) && valid
	valid = validateByX(ctx, "byHour", rule.ByHour) && valid
	valid = validateByX(ctx, "byMinute", rule.ByMinute) && valid
	valid = validateByX(ctx, "bySecond", rule.BySecond) && valid
	valid = validateByX(ctx, "bySetPosition", rule.BySetPosition) && valid
	if !valid {
		return "", false
	}

	var parts []string
	parts = append(parts, "FREQ="+strings.ToUpper(rule.Frequency))
	if rule.RScale != nil {
		parts = append(parts, "RSCALE="+*rule.RScale)
	}
	if rule.Interval != nil && *rule.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(*rule.Interval))
	}
	if rule.Skip != nil {
		parts = append(parts, "SKIP="+strings.ToUpper(*rule.Skip))
	}
	if rule.Count != nil {
		parts = append(parts, "COUNT="+strconv.Itoa(*rule.Count))
	}
	if rule.Until != nil {
		t, err := ParseUTCDate(*rule.Until)
		if err != nil {
			ctx.Invalid("until")
			return "", false
		}
		parts = append(parts, "UNTIL="+t.UTC().Format(icalDTUTCLayout))
	}
	if rule.FirstDayOfWeek != nil && *rule.FirstDayOfWeek != "mo" {
		parts = append(parts, "WKST="+strings.ToUpper(*rule.FirstDayOfWeek))
	}
	if len(rule.ByDay) > 0 {
		var days []string
		for _, nd := range rule.ByDay {
			code := strings.ToUpper(nd.Day)
			if nd.NthOfPeriod != nil {
				code = strconv.Itoa(*nd.NthOfPeriod) + code
			}
			days = append(days, code)
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}
	if len(rule.ByMonth) > 0 {
		parts = append(parts, "BYMONTH="+strings.Join(rule.ByMonth, ","))
	}
	if len(rule.ByDate) > 0 {
		parts = append(parts, "BYMONTHDAY="+joinInts(rule.ByDate))
	}
	if len(rule.ByYearDay) > 0 {
		parts = append(parts, "BYYEARDAY="+joinInts(rule.ByYearDay))
	}
	if len(rule.ByWeekNo) > 0 {
		parts = append(parts, "BYWEEKNO="+joinInts(rule.ByWeekNo))
	}
	if len(rule.ByHour) > 0 {
		parts = append(parts, "BYHOUR="+joinInts(rule.ByHour))
	}
	if len(rule.ByMinute) > 0 {
		parts = append(parts, "BYMINUTE="+joinInts(rule.ByMinute))
	}
	if len(rule.BySecond) > 0 {
		parts = append(parts, "BYSECOND="+joinInts(rule.BySecond))
	}
	if len(rule.BySetPosition) > 0 {
		parts = append(parts, "BYSETPOS="+joinInts(rule.BySetPosition))
	}

	return strings.Join(parts, ";"), true
}

func joinInts(in []int) string {
	parts := make([]string, len(in))
	for i, v := range in {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// DayCodeToWeekday maps a lowercase weekday code + optional nth to an
// rrule.Weekday, used when this module itself needs to build an
// rrule.ROption (kept available for callers that expand occurrences;
// the codec above does not need it for pure RRULE<->JSON mapping).
func DayCodeToWeekday(code string, nth *int) (rrule.Weekday, bool) {
	wd, ok := weekdayByCode[strings.ToLower(code)]
	if !ok {
		return rrule.Weekday{}, false
	}
	if nth != nil {
		wd = wd.Nth(*nth)
	}
	return wd, true
}
