// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// parseSchedule maps daily-at-midnight specs onto midnightSchedule and hands
// everything else to cron.
func parseSchedule(spec string, loc *time.Location) (cron.Schedule, error) {
	switch strings.Join(strings.Fields(spec), " ") {
	case "@midnight", "@daily", "0 0 * * *":
		return midnightSchedule{loc: loc}, nil
	}
	return cron.ParseStandard(spec)
}

// midnightSchedule activates at the first instant of every calendar day in
// loc. On days where a DST gap swallows 00:00 that is the end of the gap, so
// no day is skipped. cron's SpecSchedule skips such days entirely.
type midnightSchedule struct {
	loc *time.Location
}

func (m midnightSchedule) Next(t time.Time) time.Time {
	local := t.In(m.loc)
	return startOfDay(local.Year(), local.Month(), local.Day()+1, m.loc)
}

// startOfDay returns the first existing instant of the given day in loc.
// time.Date normalizes a nonexistent wall clock to either side of the gap,
// so the result is checked against the requested date and walked forward
// hour by hour until it lands inside the day.
func startOfDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	want := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	for h := 0; h < 24; h++ {
		t := time.Date(year, month, day, h, 0, 0, 0, loc)
		if sameDate(t.In(loc), want) {
			return t
		}
	}
	return time.Time{}
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
