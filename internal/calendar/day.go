package calendar

import (
	"time"

	"napdiary/internal/models"
)

// NapEntry is a nap together with its computed length
type NapEntry struct {
	models.Nap
	Length time.Duration
}

// LengthFormatted renders the nap length as H:MM
func (e NapEntry) LengthFormatted() string {
	return models.FormatDuration(e.Length)
}

// DayDetail summarises a single date
type DayDetail struct {
	Date       models.Date
	Naps       []NapEntry
	WakeUp     *models.ClockTime
	FallAsleep *models.ClockTime
	Count      int
	Total      time.Duration
}

// TotalFormatted renders the summed nap length as H:MM
func (d DayDetail) TotalFormatted() string {
	return models.FormatDuration(d.Total)
}

// HasNight reports whether the night before this date was recorded
func (d DayDetail) HasNight() bool {
	return d.WakeUp != nil
}

// BuildDayDetail collects the naps that fall on date, ordered by start time,
// and attaches the night record when one exists. A nil night leaves the
// wake-up and fall-asleep times absent.
func BuildDayDetail(date models.Date, naps []models.Nap, night *models.NightNap) DayDetail {
	detail := DayDetail{
		Date: date,
		Naps: []NapEntry{},
	}

	var sameDay []models.Nap
	for _, nap := range naps {
		if nap.Date == date {
			sameDay = append(sameDay, nap)
		}
	}
	sortByStart(sameDay)

	for _, nap := range sameDay {
		length := nap.Duration()
		detail.Naps = append(detail.Naps, NapEntry{Nap: nap, Length: length})
		detail.Total += length
	}
	detail.Count = len(detail.Naps)

	if night != nil && night.Date == date {
		wakeUp := night.WakeUp
		fallAsleep := night.FallAsleep
		detail.WakeUp = &wakeUp
		detail.FallAsleep = &fallAsleep
	}

	return detail
}
