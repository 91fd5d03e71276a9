package rethinkdb

import "github.com/rethinkdb/rethinkdb-go/pkg/proto"

// Now is the time of query evaluation on the server.
func Now() Term {
	return opTerm(proto.TermNow, "now", styleTopLevel)
}

// Time builds a time from date parts: year, month, day, [hour, minute,
// second,] timezone.
func Time(args ...any) Term {
	return opTerm(proto.TermTime, "time", styleTopLevel, args...)
}

// EpochTime builds a time from seconds since the Unix epoch.
func EpochTime(seconds any) Term {
	return opTerm(proto.TermEpochTime, "epoch_time", styleTopLevel, seconds)
}

// ISO8601 parses an ISO 8601 timestamp string.
func ISO8601(timestamp any, opts ...OptArgs) Term {
	return opTermOpts(proto.TermISO8601, "iso8601", styleTopLevel, mergeOptArgs(opts), timestamp)
}

// InTimezone shifts a time to another ±HH:MM offset.
func (t Term) InTimezone(tz any) Term {
	return opTerm(proto.TermInTimezone, "in_timezone", styleMethod, t, tz)
}

// During tests whether a time lies inside [start, end).
func (t Term) During(start, end any, opts ...OptArgs) Term {
	return opTermOpts(proto.TermDuring, "during", styleMethod, mergeOptArgs(opts), t, start, end)
}

// Date truncates a time to its calendar day.
func (t Term) Date() Term {
	return opTerm(proto.TermDate, "date", styleMethod, t)
}

// TimeOfDay returns the seconds elapsed since the start of the day.
func (t Term) TimeOfDay() Term {
	return opTerm(proto.TermTimeOfDay, "time_of_day", styleMethod, t)
}

// Timezone returns the ±HH:MM offset of a time.
func (t Term) Timezone() Term {
	return opTerm(proto.TermTimezone, "timezone", styleMethod, t)
}

// Year returns the year of a time.
func (t Term) Year() Term {
	return opTerm(proto.TermYear, "year", styleMethod, t)
}

// Month returns the month of a time, 1 to 12.
func (t Term) Month() Term {
	return opTerm(proto.TermMonth, "month", styleMethod, t)
}

// Day returns the day of month of a time.
func (t Term) Day() Term {
	return opTerm(proto.TermDay, "day", styleMethod, t)
}

// DayOfWeek returns the weekday of a time, 1 (Monday) to 7 (Sunday).
func (t Term) DayOfWeek() Term {
	return opTerm(proto.TermDayOfWeek, "day_of_week", styleMethod, t)
}

// DayOfYear returns the ordinal day of a time, 1 to 366.
func (t Term) DayOfYear() Term {
	return opTerm(proto.TermDayOfYear, "day_of_year", styleMethod, t)
}

// Hours returns the hour of a time.
func (t Term) Hours() Term {
	return opTerm(proto.TermHours, "hours", styleMethod, t)
}

// Minutes returns the minute of a time.
func (t Term) Minutes() Term {
	return opTerm(proto.TermMinutes, "minutes", styleMethod, t)
}

// Seconds returns the second of a time, including the fraction.
func (t Term) Seconds() Term {
	return opTerm(proto.TermSeconds, "seconds", styleMethod, t)
}

// ToISO8601 renders a time as an ISO 8601 string.
func (t Term) ToISO8601() Term {
	return opTerm(proto.TermToISO8601, "to_iso8601", styleMethod, t)
}

// ToEpochTime renders a time as seconds since the Unix epoch.
func (t Term) ToEpochTime() Term {
	return opTerm(proto.TermToEpochTime, "to_epoch_time", styleMethod, t)
}

// Weekday constants for comparisons against DayOfWeek.
func Monday() Term    { return opTerm(proto.TermMonday, "monday", styleTopLevel) }
func Tuesday() Term   { return opTerm(proto.TermTuesday, "tuesday", styleTopLevel) }
func Wednesday() Term { return opTerm(proto.TermWednesday, "wednesday", styleTopLevel) }
func Thursday() Term  { return opTerm(proto.TermThursday, "thursday", styleTopLevel) }
func Friday() Term    { return opTerm(proto.TermFriday, "friday", styleTopLevel) }
func Saturday() Term  { return opTerm(proto.TermSaturday, "saturday", styleTopLevel) }
func Sunday() Term    { return opTerm(proto.TermSunday, "sunday", styleTopLevel) }

// Month constants for comparisons against Month.
func January() Term   { return opTerm(proto.TermJanuary, "january", styleTopLevel) }
func February() Term  { return opTerm(proto.TermFebruary, "february", styleTopLevel) }
func March() Term     { return opTerm(proto.TermMarch, "march", styleTopLevel) }
func April() Term     { return opTerm(proto.TermApril, "april", styleTopLevel) }
func May() Term       { return opTerm(proto.TermMay, "may", styleTopLevel) }
func June() Term      { return opTerm(proto.TermJune, "june", styleTopLevel) }
func July() Term      { return opTerm(proto.TermJuly, "july", styleTopLevel) }
func August() Term    { return opTerm(proto.TermAugust, "august", styleTopLevel) }
func September() Term { return opTerm(proto.TermSeptember, "september", styleTopLevel) }
func October() Term   { return opTerm(proto.TermOctober, "october", styleTopLevel) }
func November() Term  { return opTerm(proto.TermNovember, "november", styleTopLevel) }
func December() Term  { return opTerm(proto.TermDecember, "december", styleTopLevel) }
