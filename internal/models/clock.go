package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Date is a calendar date without time of day or location.
// It is stored as YYYY-MM-DD text in every dialect.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalises the given parts the way time.Date does (e.g. March 32 becomes April 1)
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar date of t in t's location
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of the date
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(DateLayout)
}

// Before reports whether d is strictly earlier than other
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// AddDays returns the date n days later (or earlier for negative n)
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Value implements driver.Valuer
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan implements sql.Scanner
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ClockTime is a time of day with minute precision, counted in minutes since midnight.
// It is stored as HH:MM text in every dialect.
type ClockTime int

// NewClockTime builds a ClockTime from hour and minute
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ParseClockTime accepts HH:MM or HH:MM:SS (seconds are dropped)
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		var errSeconds error
		t, errSeconds = time.Parse("15:04:05", s)
		if errSeconds != nil {
			return 0, fmt.Errorf("invalid time %q: %w", s, err)
		}
	}
	return NewClockTime(t.Hour(), t.Minute()), nil
}

func (c ClockTime) Hour() int   { return int(c) / 60 }
func (c ClockTime) Minute() int { return int(c) % 60 }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Value implements driver.Valuer
func (c ClockTime) Value() (driver.Value, error) {
	return c.String(), nil
}

// Scan implements sql.Scanner
func (c *ClockTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*c = NewClockTime(v.Hour(), v.Minute())
		return nil
	case string:
		return c.scanString(v)
	case []byte:
		return c.scanString(string(v))
	case int64:
		*c = ClockTime(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into ClockTime", src)
	}
}

func (c *ClockTime) scanString(s string) error {
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// FormatDuration renders d as H:MM, e.g. 2:15. Negative durations are rendered as 0:00.
func FormatDuration(d time.Duration) string {
	minutes := int(d / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

// MarshalText renders the date as YYYY-MM-DD (empty when zero)
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses YYYY-MM-DD; empty text gives the zero date
func (d *Date) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalText renders the time as HH:MM
func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses HH:MM or HH:MM:SS
func (c *ClockTime) UnmarshalText(text []byte) error {
	return c.scanString(string(text))
}
