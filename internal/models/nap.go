package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Problem is the outcome of a nap
type Problem string

const (
	ProblemOK        Problem = "OK"
	ProblemCrying    Problem = "crying"
	ProblemScreaming Problem = "screaming"
)

// Problems lists every outcome in display order
var Problems = []Problem{ProblemOK, ProblemCrying, ProblemScreaming}

var problemLabels = map[Problem]string{
	ProblemOK:        "All OK",
	ProblemCrying:    "Crying",
	ProblemScreaming: "Screaming",
}

// Short marks drawn in calendar cells
var problemSymbols = map[Problem]string{
	ProblemOK:        "OK",
	ProblemCrying:    "--",
	ProblemScreaming: "/",
}

// ParseProblem maps a form/database code to a Problem
func ParseProblem(code string) (Problem, error) {
	p := Problem(code)
	if _, ok := problemLabels[p]; !ok {
		return "", fmt.Errorf("unknown nap problem %q", code)
	}
	return p, nil
}

func (p Problem) Code() string { return string(p) }

func (p Problem) Label() string {
	if label, ok := problemLabels[p]; ok {
		return label
	}
	return string(p)
}

func (p Problem) Symbol() string {
	if symbol, ok := problemSymbols[p]; ok {
		return symbol
	}
	return "?"
}

func (p Problem) Value() (driver.Value, error) {
	return string(p), nil
}

func (p *Problem) Scan(src interface{}) error {
	code, err := scanCode(src)
	if err != nil {
		return err
	}
	parsed, err := ParseProblem(code)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Place is where the nap happened
type Place string

const (
	PlaceCrib   Place = "crib"
	PlaceStroll Place = "stroll"
	PlaceArms   Place = "arms"
)

// Places lists every place in display order
var Places = []Place{PlaceCrib, PlaceStroll, PlaceArms}

var placeLabels = map[Place]string{
	PlaceCrib:   "Crib",
	PlaceStroll: "Stroll",
	PlaceArms:   "Arms",
}

// ParsePlace maps a form/database code to a Place
func ParsePlace(code string) (Place, error) {
	p := Place(code)
	if _, ok := placeLabels[p]; !ok {
		return "", fmt.Errorf("unknown nap place %q", code)
	}
	return p, nil
}

func (p Place) Code() string { return string(p) }

func (p Place) Label() string {
	if label, ok := placeLabels[p]; ok {
		return label
	}
	return string(p)
}

func (p Place) Value() (driver.Value, error) {
	return string(p), nil
}

func (p *Place) Scan(src interface{}) error {
	code, err := scanCode(src)
	if err != nil {
		return err
	}
	parsed, err := ParsePlace(code)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func scanCode(src interface{}) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("cannot scan %T into a code", src)
	}
}

// Nap is a recorded daytime sleep session
type Nap struct {
	ID        int64     `db:"id"`
	ChildID   int64     `db:"child_id"`
	Date      Date      `db:"nap_date"`
	Start     ClockTime `db:"start_time"`
	End       ClockTime `db:"end_time"`
	Problem   Problem   `db:"problem"`
	Place     Place     `db:"place"`
	Notes     string    `db:"notes"`
	CreatedAt time.Time `db:"created_at"`
}

// Duration is End minus Start. An end earlier than the start is read as
// crossing midnight; new naps cannot be saved that way, but imported rows can.
func (n *Nap) Duration() time.Duration {
	minutes := int(n.End) - int(n.Start)
	if minutes < 0 {
		minutes += 24 * 60
	}
	return time.Duration(minutes) * time.Minute
}

// NightNap is the overnight sleep recorded for a child on a given date
type NightNap struct {
	ID         int64     `db:"id"`
	ChildID    int64     `db:"child_id"`
	Date       Date      `db:"nap_date"`
	WakeUp     ClockTime `db:"wake_up"`
	FallAsleep ClockTime `db:"fall_asleep"`
	CreatedAt  time.Time `db:"created_at"`
}
