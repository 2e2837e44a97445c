package stats

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ivanreeve/poop-tracker/internal"
)

type DayActivity struct {
	Date    string `json:"date"`
	Day     string `json:"day"`
	Count   int    `json:"count"`
	IsToday bool   `json:"is_today"`
}

type Insight struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

type Summary struct {
	LogCount           int              `json:"log_count"`
	TodayCount         int              `json:"today_count"`
	Streak             int              `json:"streak"`
	AvgType            *float64         `json:"avg_type"`
	AvgTypeDisplay     string           `json:"avg_type_display"`
	TimePeriodStats    []TimePeriodStat `json:"time_period_stats"`
	BestPeriod         *TimePeriodStat  `json:"best_period"`
	HealthScore        int              `json:"health_score"`
	HealthScoreDisplay string           `json:"health_score_display"`
	Weekly             []DayActivity    `json:"weekly"`
	AverageInsight     Insight          `json:"average_insight"`
	StreakInsight      Insight          `json:"streak_insight"`
	BestPeriodInsight  Insight          `json:"best_period_insight"`
}

// WeeklyActivity returns per-day entry counts for the seven calendar days
// ending today, oldest first.
func WeeklyActivity(logs []internal.LogEntry, now time.Time) []DayActivity {
	loc := now.Location()
	counts := make(map[dayKey]int, len(logs))
	for _, l := range logs {
		counts[keyOf(l.OccurredAt, loc)]++
	}
	out := make([]DayActivity, 0, 7)
	for i := 6; i >= 0; i-- {
		d := now.AddDate(0, 0, -i)
		out = append(out, DayActivity{
			Date:    d.Format("2006-01-02"),
			Day:     d.Weekday().String()[:3],
			Count:   counts[keyOf(d, loc)],
			IsToday: i == 0,
		})
	}
	return out
}

func TodayCount(logs []internal.LogEntry, now time.Time) int {
	today := keyOf(now, now.Location())
	n := 0
	for _, l := range logs {
		if keyOf(l.OccurredAt, now.Location()) == today {
			n++
		}
	}
	return n
}

// Summarize computes every derived value for one user's entries. The best
// period is only reported when it has at least one entry.
func Summarize(logs []internal.LogEntry, now time.Time) Summary {
	streak := CalculateStreak(logs, now)
	avg := CalculateAvgType(logs)
	periods := CalculateTimePeriodStats(logs, now.Location())
	best := BestPeriod(periods)
	if best != nil && best.Count == 0 {
		best = nil
	}
	score := CalculateHealthScore(avg, streak, len(logs))

	s := Summary{
		LogCount:           len(logs),
		TodayCount:         TodayCount(logs, now),
		Streak:             streak,
		AvgType:            avg,
		AvgTypeDisplay:     "0",
		TimePeriodStats:    periods,
		BestPeriod:         best,
		HealthScore:        score,
		HealthScoreDisplay: "0",
		Weekly:             WeeklyActivity(logs, now),
	}

	if avg != nil {
		s.AvgTypeDisplay = strconv.FormatFloat(*avg, 'f', 1, 64)
		s.AverageInsight = Insight{
			Title:    "Avg type " + s.AvgTypeDisplay,
			Subtitle: "Ideal is around 4.0 on the Bristol scale.",
		}
	} else {
		s.AverageInsight = Insight{
			Title:    "No average yet",
			Subtitle: "Log a few entries to see your average.",
		}
	}

	if len(logs) > 0 {
		s.HealthScoreDisplay = strconv.Itoa(score)
		plural := "s"
		if streak == 1 {
			plural = ""
		}
		s.StreakInsight = Insight{
			Title:    fmt.Sprintf("Streak: %d day%s", streak, plural),
			Subtitle: "Keep logging daily to build consistency.",
		}
	} else {
		s.StreakInsight = Insight{
			Title:    "No streak yet",
			Subtitle: "Log today to start a streak.",
		}
	}

	if best != nil {
		s.BestPeriodInsight = Insight{
			Title:    "Top time: " + best.Label,
			Subtitle: fmt.Sprintf("%d logs during the %s.", best.Count, strings.ToLower(best.Label)),
		}
	} else {
		s.BestPeriodInsight = Insight{
			Title:    "No time pattern yet",
			Subtitle: "Add more logs to reveal a pattern.",
		}
	}
	return s
}
