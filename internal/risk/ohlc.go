package risk

import (
	"fmt"
	"time"
)

// SamplesPerDay is the number of 4h raw candles that make up one UTC day.
const SamplesPerDay = 6

// Candle is one raw OHLC sample.
type Candle struct {
	Time  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Bar is a daily OHLC bar starting at Day (00:00 UTC).
type Bar struct {
	Day   time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// DailyOHLC resamples an ascending 4h series into daily bars. Grouping starts
// at the first sample stamped 00:00 UTC; each bar takes SamplesPerDay samples
// of the same UTC day and incomplete trailing groups are dropped. When
// windowDays > 0 only the most recent windowDays bars are returned.
func DailyOHLC(raw []Candle, windowDays int) ([]Bar, error) {
	start := -1
	for i, c := range raw {
		if atMidnightUTC(c.Time) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("%w: %d samples", ErrAlignment, len(raw))
	}

	bars := make([]Bar, 0, (len(raw)-start)/SamplesPerDay)
	for i := start; i+SamplesPerDay <= len(raw); {
		bucket := raw[i : i+SamplesPerDay]
		if !atMidnightUTC(bucket[0].Time) || !sameUTCDay(bucket) {
			// gap in the series, seek the next day boundary
			i++
			continue
		}
		bars = append(bars, aggregate(bucket))
		i += SamplesPerDay
	}

	if windowDays > 0 && len(bars) > windowDays {
		bars = bars[len(bars)-windowDays:]
	}
	return bars, nil
}

func aggregate(bucket []Candle) Bar {
	first, last := bucket[0], bucket[len(bucket)-1]
	bar := Bar{
		Day:   first.Time.UTC().Truncate(24 * time.Hour),
		Open:  first.Open,
		High:  first.High,
		Low:   first.Low,
		Close: last.Close,
	}
	for _, c := range bucket[1:] {
		if c.High > bar.High {
			bar.High = c.High
		}
		if c.Low < bar.Low {
			bar.Low = c.Low
		}
	}
	return bar
}

func atMidnightUTC(t time.Time) bool {
	u := t.UTC()
	return u.Hour() == 0 && u.Minute() == 0
}

func sameUTCDay(bucket []Candle) bool {
	y, m, d := bucket[0].Time.UTC().Date()
	for _, c := range bucket[1:] {
		cy, cm, cd := c.Time.UTC().Date()
		if cy != y || cm != m || cd != d {
			return false
		}
	}
	return true
}
