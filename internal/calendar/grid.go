// Package calendar turns nap records into the month grid, day detail and
// monthly statistics views. Every function is pure: callers pass in the rows
// they loaded and get a fresh value back.
package calendar

import (
	"errors"
	"sort"
	"time"

	"napdiary/internal/models"
)

// WeeksPerGrid is fixed so every month renders with the same height
const WeeksPerGrid = 6

var ErrInvalidMonth = errors.New("month must be between 1 and 12")

// DaySlot is one cell of the month grid. Day is 0 for padding cells.
type DaySlot struct {
	Day  int
	Naps []models.Nap
}

// IsPadding reports whether the slot belongs to the previous or next month
func (s DaySlot) IsPadding() bool {
	return s.Day == 0
}

// Outcomes returns the problem code of every nap in the slot, by start time
func (s DaySlot) Outcomes() []models.Problem {
	outcomes := make([]models.Problem, 0, len(s.Naps))
	for _, nap := range s.Naps {
		outcomes = append(outcomes, nap.Problem)
	}
	return outcomes
}

// Week holds seven slots starting at the grid's week start
type Week [7]DaySlot

// MonthGrid is the 6x7 layout of a month
type MonthGrid struct {
	Year      int
	Month     time.Month
	WeekStart time.Weekday
	Weeks     [WeeksPerGrid]Week
}

// Weekdays returns the column headers in grid order
func (g MonthGrid) Weekdays() []time.Weekday {
	days := make([]time.Weekday, 7)
	for i := range days {
		days[i] = (g.WeekStart + time.Weekday(i)) % 7
	}
	return days
}

// DaysInMonth counts the non-padding slots
func (g MonthGrid) DaysInMonth() int {
	return daysIn(g.Year, g.Month)
}

// Date returns the calendar date of an in-month slot
func (g MonthGrid) Date(day int) models.Date {
	return models.Date{Year: g.Year, Month: g.Month, Day: day}
}

// Prev returns the year and month before the grid's month
func (g MonthGrid) Prev() (int, time.Month) {
	return shiftMonth(g.Year, g.Month, -1)
}

// Next returns the year and month after the grid's month
func (g MonthGrid) Next() (int, time.Month) {
	return shiftMonth(g.Year, g.Month, 1)
}

// BuildMonthGrid lays out the month in weeks starting on weekStart and puts
// each nap of that month into its day's slot, sorted by start time. Naps
// outside the month are ignored.
func BuildMonthGrid(year int, month time.Month, weekStart time.Weekday, naps []models.Nap) (MonthGrid, error) {
	if month < time.January || month > time.December {
		return MonthGrid{}, ErrInvalidMonth
	}

	grid := MonthGrid{Year: year, Month: month, WeekStart: weekStart}
	byDay := groupByDay(year, month, naps)

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(first.Weekday()) - int(weekStart) + 7) % 7
	days := daysIn(year, month)

	for day := 1; day <= days; day++ {
		cell := offset + day - 1
		grid.Weeks[cell/7][cell%7] = DaySlot{Day: day, Naps: byDay[day]}
	}

	return grid, nil
}

// groupByDay buckets the month's naps by day of month, each bucket sorted by start time
func groupByDay(year int, month time.Month, naps []models.Nap) map[int][]models.Nap {
	byDay := make(map[int][]models.Nap)
	for _, nap := range naps {
		if nap.Date.Year != year || nap.Date.Month != month {
			continue
		}
		byDay[nap.Date.Day] = append(byDay[nap.Date.Day], nap)
	}
	for day := range byDay {
		sortByStart(byDay[day])
	}
	return byDay
}

// sortByStart orders naps by start time, keeping the incoming order for ties
func sortByStart(naps []models.Nap) {
	sort.SliceStable(naps, func(i, j int) bool {
		return naps[i].Start < naps[j].Start
	})
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func shiftMonth(year int, month time.Month, delta int) (int, time.Month) {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, delta, 0)
	return t.Year(), t.Month()
}
