// Package stats derives display statistics from a user's log entries.
//
// Every function is pure. Functions that depend on the calendar take the
// reference instant explicitly; day and hour boundaries are evaluated in that
// instant's location.
package stats

import (
	"math"
	"time"

	"github.com/ivanreeve/poop-tracker/internal"
)

// Health score tuning.
const (
	idealType        = 4.0
	pointsPerDevUnit = 20.0
	maxStreakBonus   = 14
	pointsPerDay     = 2
	maxScore         = 100
)

type TimePeriodStat struct {
	Label      string `json:"label"`
	Hours      []int  `json:"hours"`
	Emoji      string `json:"emoji"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

type period struct {
	label string
	hours []int
	emoji string
}

// periods partitions the 24 hours of the day; order is significant for
// BestPeriod tie-breaking.
var periods = []period{
	{label: "Morning", hours: []int{6, 7, 8, 9, 10, 11}, emoji: "🌅"},
	{label: "Afternoon", hours: []int{12, 13, 14, 15, 16, 17}, emoji: "☀️"},
	{label: "Evening", hours: []int{18, 19, 20, 21}, emoji: "🌆"},
	{label: "Night", hours: []int{22, 23, 0, 1, 2, 3, 4, 5}, emoji: "🌙"},
}

type dayKey struct {
	year  int
	month time.Month
	day   int
}

func keyOf(t time.Time, loc *time.Location) dayKey {
	y, m, d := t.In(loc).Date()
	return dayKey{year: y, month: m, day: d}
}

// roundHalfUp rounds .5 away from zero for non-negative input.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// CalculateStreak counts consecutive calendar days ending today that have at
// least one entry. No entry today means a streak of 0.
func CalculateStreak(logs []internal.LogEntry, now time.Time) int {
	if len(logs) == 0 {
		return 0
	}
	loc := now.Location()
	days := make(map[dayKey]struct{}, len(logs))
	for _, l := range logs {
		days[keyOf(l.OccurredAt, loc)] = struct{}{}
	}
	count := 0
	cursor := now
	for {
		if _, ok := days[keyOf(cursor, loc)]; !ok {
			break
		}
		count++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return count
}

// CurrentStreak is CalculateStreak against the wall clock.
func CurrentStreak(logs []internal.LogEntry) int {
	return CalculateStreak(logs, time.Now())
}

// CalculateAvgType returns nil when there is nothing to average.
func CalculateAvgType(logs []internal.LogEntry) *float64 {
	if len(logs) == 0 {
		return nil
	}
	total := 0
	for _, l := range logs {
		total += l.Type
	}
	avg := float64(total) / float64(len(logs))
	return &avg
}

// CalculateTimePeriodStats buckets entries by local hour of day. The result
// always has four buckets in Morning, Afternoon, Evening, Night order.
func CalculateTimePeriodStats(logs []internal.LogEntry, loc *time.Location) []TimePeriodStat {
	if loc == nil {
		loc = time.Local
	}
	var byHour [24]int
	for _, l := range logs {
		byHour[l.OccurredAt.In(loc).Hour()]++
	}

	out := make([]TimePeriodStat, 0, len(periods))
	for _, p := range periods {
		count := 0
		for _, h := range p.hours {
			count += byHour[h]
		}
		pct := 0
		if len(logs) > 0 {
			pct = roundHalfUp(float64(count) / float64(len(logs)) * 100)
		}
		hours := make([]int, len(p.hours))
		copy(hours, p.hours)
		out = append(out, TimePeriodStat{
			Label:      p.label,
			Hours:      hours,
			Emoji:      p.emoji,
			Count:      count,
			Percentage: pct,
		})
	}
	return out
}

// BestPeriod returns the bucket with the highest count. Earlier buckets win
// ties, so with no entries at all the first bucket comes back with count 0.
func BestPeriod(buckets []TimePeriodStat) *TimePeriodStat {
	if len(buckets) == 0 {
		return nil
	}
	best := buckets[0]
	for _, b := range buckets[1:] {
		if b.Count > best.Count {
			best = b
		}
	}
	return &best
}

// CalculateHealthScore is a 0–100 heuristic: closeness of the average type to
// 4 plus a capped streak bonus.
func CalculateHealthScore(avgType *float64, streak, logCount int) int {
	if logCount == 0 || avgType == nil {
		return 0
	}
	typeScore := maxScore - roundHalfUp(math.Abs(*avgType-idealType)*pointsPerDevUnit)
	if typeScore < 0 {
		typeScore = 0
	}
	if streak < 0 {
		streak = 0
	}
	bonus := min(streak, maxStreakBonus) * pointsPerDay
	return min(maxScore, typeScore+bonus)
}
