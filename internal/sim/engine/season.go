package engine

// seasonIndex maps a timestamp onto the repeating week calendar. Timestamps
// before the calendar starts have no week and report -1.
func (e *Engine) seasonIndex(now int64) int {
	cal := e.tune.Calendar
	if now < cal.StartUnix {
		return -1
	}
	weeks := (now - cal.StartUnix) / cal.WeekLengthS
	return int(weeks % int64(cal.TotalWeeks))
}

// inSeason reports whether the global bonus window is active: the calendar
// grants SeasonsPerYear evenly spaced bonus weeks, and every tile is in
// season simultaneously during those weeks.
func (e *Engine) inSeason(now int64) bool {
	cal := e.tune.Calendar
	period := cal.TotalWeeks / cal.SeasonsPerYear
	if period <= 0 {
		period = 1
	}
	idx := e.seasonIndex(now)
	return idx >= 0 && idx%period == 0
}
