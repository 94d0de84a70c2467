package calendar

import (
	"time"

	"napdiary/internal/models"
)

// DayCount is the number of naps on a day of the month
type DayCount struct {
	Day   int
	Count int
}

// DayMinutes is the summed nap length, in minutes, on a day of the month
type DayMinutes struct {
	Day     int
	Minutes int
}

// MonthStatistics holds one entry per reported day, indexed from day 1
type MonthStatistics struct {
	Year    int
	Month   time.Month
	Counts  []DayCount
	Minutes []DayMinutes
}

// TotalNaps sums the per-day counts
func (s MonthStatistics) TotalNaps() int {
	total := 0
	for _, c := range s.Counts {
		total += c.Count
	}
	return total
}

// TotalMinutes sums the per-day minutes
func (s MonthStatistics) TotalMinutes() int {
	total := 0
	for _, m := range s.Minutes {
		total += m.Minutes
	}
	return total
}

// MaxMinutes is the largest per-day total, used to scale bar charts
func (s MonthStatistics) MaxMinutes() int {
	highest := 0
	for _, m := range s.Minutes {
		if m.Minutes > highest {
			highest = m.Minutes
		}
	}
	return highest
}

// BuildMonthStatistics reports count and total minutes for every day of the
// month that has already started relative to today: up to today's day for
// the current month, the whole month for past months, nothing for future ones.
func BuildMonthStatistics(year int, month time.Month, naps []models.Nap, today models.Date) (MonthStatistics, error) {
	if month < time.January || month > time.December {
		return MonthStatistics{}, ErrInvalidMonth
	}

	stats := MonthStatistics{
		Year:    year,
		Month:   month,
		Counts:  []DayCount{},
		Minutes: []DayMinutes{},
	}

	lastDay := lastReportableDay(year, month, today)

	counts := make(map[int]int)
	minutes := make(map[int]int)
	for _, nap := range naps {
		if nap.Date.Year != year || nap.Date.Month != month || nap.Date.Day > lastDay {
			continue
		}
		counts[nap.Date.Day]++
		minutes[nap.Date.Day] += int(nap.Duration() / time.Minute)
	}

	for day := 1; day <= lastDay; day++ {
		stats.Counts = append(stats.Counts, DayCount{Day: day, Count: counts[day]})
		stats.Minutes = append(stats.Minutes, DayMinutes{Day: day, Minutes: minutes[day]})
	}

	return stats, nil
}

func lastReportableDay(year int, month time.Month, today models.Date) int {
	requested := models.NewDate(year, month, 1)
	current := models.NewDate(today.Year, today.Month, 1)

	switch {
	case requested == current:
		return today.Day
	case requested.Before(current):
		return daysIn(year, month)
	default:
		return 0
	}
}
