package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanreeve/poop-tracker/internal"
)

var est = time.FixedZone("EST", -5*3600)

// Tuesday, midday local.
var refNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, est)

func entry(id string, typ int, at time.Time) internal.LogEntry {
	return internal.LogEntry{ID: id, UserID: "u1", Type: typ, OccurredAt: at}
}

func atHour(daysAgo, hour int) time.Time {
	d := refNow.AddDate(0, 0, -daysAgo)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 15, 0, 0, est)
}

func TestCalculateAvgType(t *testing.T) {
	assert.Nil(t, CalculateAvgType(nil))
	assert.Nil(t, CalculateAvgType([]internal.LogEntry{}))

	for typ := 1; typ <= 7; typ++ {
		avg := CalculateAvgType([]internal.LogEntry{entry("a", typ, refNow)})
		require.NotNil(t, avg)
		assert.Equal(t, float64(typ), *avg)
	}

	avg := CalculateAvgType([]internal.LogEntry{
		entry("a", 3, refNow), entry("b", 4, refNow), entry("c", 6, refNow),
	})
	require.NotNil(t, avg)
	assert.InDelta(t, 4.333, *avg, 0.001)
}

func TestCalculateStreak(t *testing.T) {
	assert.Equal(t, 0, CalculateStreak(nil, refNow))

	t.Run("consecutive days including today", func(t *testing.T) {
		for n := 1; n <= 10; n++ {
			var logs []internal.LogEntry
			for d := 0; d < n; d++ {
				logs = append(logs, entry("x", 4, atHour(d, 9)))
			}
			assert.Equal(t, n, CalculateStreak(logs, refNow), "n=%d", n)
		}
	})

	t.Run("no entry today", func(t *testing.T) {
		logs := []internal.LogEntry{
			entry("a", 4, atHour(1, 9)),
			entry("b", 4, atHour(2, 9)),
			entry("c", 4, atHour(3, 9)),
		}
		assert.Equal(t, 0, CalculateStreak(logs, refNow))
	})

	t.Run("gap stops the walk", func(t *testing.T) {
		logs := []internal.LogEntry{
			entry("a", 4, atHour(0, 8)),
			entry("b", 4, atHour(1, 8)),
			entry("c", 4, atHour(3, 8)),
			entry("d", 4, atHour(4, 8)),
		}
		assert.Equal(t, 2, CalculateStreak(logs, refNow))
	})

	t.Run("several entries on one day count once", func(t *testing.T) {
		logs := []internal.LogEntry{
			entry("a", 4, atHour(0, 7)),
			entry("b", 4, atHour(0, 9)),
			entry("c", 4, atHour(0, 23)),
		}
		assert.Equal(t, 1, CalculateStreak(logs, refNow))
	})

	t.Run("calendar days follow the reference location", func(t *testing.T) {
		// 02:00 UTC on the 10th is 21:00 on the 9th in EST.
		logs := []internal.LogEntry{
			entry("a", 4, atHour(0, 8)),
			entry("b", 4, time.Date(2026, time.March, 10, 2, 0, 0, 0, time.UTC)),
		}
		assert.Equal(t, 2, CalculateStreak(logs, refNow))
	})
}

func TestPeriodsPartitionDay(t *testing.T) {
	seen := make(map[int]int)
	for _, p := range periods {
		for _, h := range p.hours {
			seen[h]++
		}
	}
	require.Len(t, seen, 24)
	for h := 0; h < 24; h++ {
		assert.Equal(t, 1, seen[h], "hour %d", h)
	}
}

func TestCalculateTimePeriodStats(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		got := CalculateTimePeriodStats(nil, est)
		require.Len(t, got, 4)
		labels := []string{"Morning", "Afternoon", "Evening", "Night"}
		for i, b := range got {
			assert.Equal(t, labels[i], b.Label)
			assert.Zero(t, b.Count)
			assert.Zero(t, b.Percentage)
		}
	})

	t.Run("bucket boundaries", func(t *testing.T) {
		hours := []int{6, 11, 12, 17, 18, 21, 22, 5, 0}
		var logs []internal.LogEntry
		for _, h := range hours {
			logs = append(logs, entry("x", 4, atHour(0, h)))
		}
		got := CalculateTimePeriodStats(logs, est)
		require.Len(t, got, 4)
		assert.Equal(t, []int{2, 2, 2, 3}, []int{got[0].Count, got[1].Count, got[2].Count, got[3].Count})
		assert.Equal(t, []int{22, 22, 22, 33}, []int{got[0].Percentage, got[1].Percentage, got[2].Percentage, got[3].Percentage})

		sum, pct := 0, 0
		for _, b := range got {
			sum += b.Count
			pct += b.Percentage
		}
		assert.Equal(t, len(logs), sum)
		assert.InDelta(t, 100, pct, 3)
	})

	t.Run("halves round up", func(t *testing.T) {
		logs := []internal.LogEntry{entry("m", 4, atHour(0, 8))}
		for i := 0; i < 7; i++ {
			logs = append(logs, entry("n", 4, atHour(0, 23)))
		}
		got := CalculateTimePeriodStats(logs, est)
		assert.Equal(t, 13, got[0].Percentage)
		assert.Equal(t, 88, got[3].Percentage)
	})

	t.Run("returned hours are copies", func(t *testing.T) {
		got := CalculateTimePeriodStats(nil, est)
		got[0].Hours[0] = 99
		again := CalculateTimePeriodStats(nil, est)
		assert.Equal(t, 6, again[0].Hours[0])
	})
}

func TestBestPeriod(t *testing.T) {
	assert.Nil(t, BestPeriod(nil))

	mk := func(counts ...int) []TimePeriodStat {
		labels := []string{"Morning", "Afternoon", "Evening", "Night"}
		out := make([]TimePeriodStat, len(counts))
		for i, c := range counts {
			out[i] = TimePeriodStat{Label: labels[i], Count: c}
		}
		return out
	}

	best := BestPeriod(mk(2, 2, 0, 0))
	require.NotNil(t, best)
	assert.Equal(t, "Morning", best.Label)

	best = BestPeriod(mk(0, 1, 3, 3))
	require.NotNil(t, best)
	assert.Equal(t, "Evening", best.Label)

	best = BestPeriod(CalculateTimePeriodStats(nil, est))
	require.NotNil(t, best)
	assert.Equal(t, "Morning", best.Label)
	assert.Zero(t, best.Count)
}

func TestCalculateHealthScore(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	cases := []struct {
		name   string
		avg    *float64
		streak int
		count  int
		want   int
	}{
		{"perfect capped", f(4), 14, 10, 100},
		{"hard no streak", f(1), 0, 5, 40},
		{"no data", nil, 5, 0, 0},
		{"avg without count", f(4), 3, 0, 0},
		{"type two", f(2), 0, 1, 60},
		{"type six with streak", f(6), 3, 3, 66},
		{"liquid", f(7), 0, 1, 40},
		{"half unit off", f(4.5), 0, 2, 90},
		{"streak bonus capped at 14 days", f(1), 20, 20, 68},
		{"never above 100", f(4), 30, 30, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CalculateHealthScore(tc.avg, tc.streak, tc.count))
		})
	}
}

func TestStoolTypeCatalog(t *testing.T) {
	all := StoolTypes()
	require.Len(t, all, 7)
	for i, st := range all {
		assert.Equal(t, i+1, st.Type)
	}

	st, ok := LookupStoolType(4)
	assert.True(t, ok)
	assert.Equal(t, "Smooth", st.Label)

	_, ok = LookupStoolType(0)
	assert.False(t, ok)
	_, ok = LookupStoolType(8)
	assert.False(t, ok)
}
