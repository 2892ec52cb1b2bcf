package date

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Period is a calendar period used to select ranges of dates.
type Period int

const (
	Day Period = iota
	Week
	Month
	Quarter
	Year
)

func (p Period) String() string {
	switch p {
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	case Quarter:
		return "quarter"
	case Year:
		return "year"
	default:
		return "period"
	}
}

// ParsePeriod parses a period name.
func ParsePeriod(p string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "daily", "day":
		return Day, nil
	case "weekly", "week":
		return Week, nil
	case "monthly", "month":
		return Month, nil
	case "quarterly", "quarter":
		return Quarter, nil
	case "yearly", "year":
		return Year, nil
	default:
		return Day, fmt.Errorf("unknown period %q", p)
	}
}

// Range returns the period containing d.
func (p Period) Range(d Date) Range {
	return Range{From: d.StartOf(p), To: d.EndOf(p)}
}

// StartOf returns the first day of the period containing d. Weeks start on Monday.
func (d Date) StartOf(p Period) Date {
	switch p {
	case Day:
		return d
	case Week:
		offset := int(d.Weekday() - time.Monday)
		for offset < 0 {
			offset += 7
		}
		return d.Add(-offset)
	case Month:
		return New(d.y, d.m, 1)
	case Quarter:
		quarter := (d.m - 1) / 3
		return New(d.y, quarter*3+1, 1)
	case Year:
		return New(d.y, time.January, 1)
	default:
		panic("unknown period")
	}
}

// EndOf returns the last day of the period containing d.
func (d Date) EndOf(p Period) Date {
	switch p {
	case Day:
		return d
	case Week:
		offset := int(7 - d.Weekday())
		for offset >= 7 {
			offset -= 7
		}
		return d.Add(offset)
	case Month:
		return New(d.y, d.m+1, 0)
	case Quarter:
		quarter := (d.m - 1) / 3
		return New(d.y, quarter*3+4, 0) // day 0 is the last day of the previous month
	case Year:
		return New(d.y+1, time.January, 0)
	default:
		panic("unknown period")
	}
}

var relativeDateRE = regexp.MustCompile(`^([+-])(\d+)([dwmqy])$`)

// ParseRelative parses a date either absolute ("2025-07-01") or relative to
// today: "0d" is today, "-1d" yesterday, "+2w" in two weeks. Units are d, w,
// m, q and y. Month steps keep the day of month, clamped to the month length.
func ParseRelative(str string, today Date) (Date, error) {
	str = strings.TrimSpace(str)
	if str == "0d" {
		return today, nil
	}
	match := relativeDateRE.FindStringSubmatch(str)
	if match == nil {
		return Parse(str)
	}
	num, err := strconv.Atoi(match[2])
	if err != nil {
		return Date{}, fmt.Errorf("invalid number in relative date %q: %w", str, err)
	}
	if match[1] == "-" {
		num = -num
	}
	switch match[3] {
	case "d":
		return today.Add(num), nil
	case "w":
		return today.Add(7 * num), nil
	case "m":
		return today.AddMonths(num), nil
	case "q":
		return today.AddMonths(3 * num), nil
	default:
		return today.AddYears(num), nil
	}
}
