package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSessionIsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{
			name:      "future expiration",
			expiresAt: time.Now().Add(1 * time.Hour),
			want:      false,
		},
		{
			name:      "just expired",
			expiresAt: time.Now().Add(-1 * time.Second),
			want:      true,
		},
		{
			name:      "expired yesterday",
			expiresAt: time.Now().Add(-24 * time.Hour),
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := Session{
				ID:        "test-session",
				UserID:    1,
				ExpiresAt: tt.expiresAt,
				CreatedAt: time.Now().Add(-1 * time.Hour),
			}
			result := session.IsExpired()
			if result != tt.want {
				t.Errorf("Session.IsExpired() = %v, want %v", result, tt.want)
			}
		})
	}
}

func TestUserHasRole(t *testing.T) {
	user := User{Roles: []Role{{ID: 2, Name: RoleParent}}}
	if !user.HasRole(RoleParent) {
		t.Error("expected parent role")
	}
	if user.IsAdmin() {
		t.Error("parent should not be admin")
	}

	user.Roles = append(user.Roles, Role{ID: 1, Name: RoleAdmin})
	if !user.IsAdmin() {
		t.Error("expected admin role")
	}
}

func TestParseProblem(t *testing.T) {
	tests := []struct {
		code    string
		want    Problem
		symbol  string
		wantErr bool
	}{
		{code: "OK", want: ProblemOK, symbol: "OK"},
		{code: "crying", want: ProblemCrying, symbol: "--"},
		{code: "screaming", want: ProblemScreaming, symbol: "/"},
		{code: "--", wantErr: true},
		{code: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := ParseProblem(tt.code)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseProblem(%q) error = %v, wantErr %v", tt.code, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got != tt.want {
				t.Errorf("ParseProblem(%q) = %v, want %v", tt.code, got, tt.want)
			}
			if got.Symbol() != tt.symbol {
				t.Errorf("Symbol() = %q, want %q", got.Symbol(), tt.symbol)
			}
		})
	}
}

func TestParsePlace(t *testing.T) {
	for _, place := range Places {
		got, err := ParsePlace(place.Code())
		if err != nil {
			t.Fatalf("ParsePlace(%q) error = %v", place.Code(), err)
		}
		if got.Label() == "" {
			t.Errorf("place %q has no label", place)
		}
	}

	if _, err := ParsePlace("sofa"); err == nil {
		t.Error("expected error for unknown place")
	}
}

func TestNapDuration(t *testing.T) {
	tests := []struct {
		name  string
		start ClockTime
		end   ClockTime
		want  time.Duration
	}{
		{
			name:  "regular nap",
			start: NewClockTime(13, 0),
			end:   NewClockTime(14, 30),
			want:  90 * time.Minute,
		},
		{
			name:  "zero length",
			start: NewClockTime(9, 0),
			end:   NewClockTime(9, 0),
			want:  0,
		},
		{
			name:  "crosses midnight",
			start: NewClockTime(23, 30),
			end:   NewClockTime(0, 15),
			want:  45 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nap := Nap{Start: tt.start, End: tt.end}
			if got := nap.Duration(); got != tt.want {
				t.Errorf("Duration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "09:05", want: "09:05"},
		{input: "13:45:59", want: "13:45"},
		{input: "24:00", wantErr: true},
		{input: "noon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseClockTime(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseClockTime(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got.String() != tt.want {
				t.Errorf("ParseClockTime(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestDateScan(t *testing.T) {
	tests := []struct {
		name string
		src  interface{}
		want Date
	}{
		{name: "text", src: "2024-03-05", want: Date{2024, time.March, 5}},
		{name: "bytes", src: []byte("2024-12-31"), want: Date{2024, time.December, 31}},
		{name: "datetime text", src: "2024-03-05T00:00:00Z", want: Date{2024, time.March, 5}},
		{name: "time", src: time.Date(2023, time.July, 9, 15, 0, 0, 0, time.UTC), want: Date{2023, time.July, 9}},
		{name: "null", src: nil, want: Date{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			if err := d.Scan(tt.src); err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if d != tt.want {
				t.Errorf("Scan() = %v, want %v", d, tt.want)
			}
		})
	}
}

func TestNewDateNormalises(t *testing.T) {
	got := NewDate(2024, time.February, 30)
	want := Date{2024, time.March, 1}
	if got != want {
		t.Errorf("NewDate() = %v, want %v", got, want)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{45 * time.Minute, "0:45"},
		{135 * time.Minute, "2:15"},
		{10*time.Hour + 5*time.Minute, "10:05"},
		{-5 * time.Minute, "0:00"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestNightNapJSON(t *testing.T) {
	night := NightNap{
		ChildID:    3,
		Date:       NewDate(2024, time.March, 5),
		WakeUp:     NewClockTime(6, 45),
		FallAsleep: NewClockTime(19, 30),
	}

	data, err := json.Marshal(struct {
		Date       Date      `json:"date"`
		WakeUp     ClockTime `json:"wake_up"`
		FallAsleep ClockTime `json:"fall_asleep"`
	}{night.Date, night.WakeUp, night.FallAsleep})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"date":"2024-03-05","wake_up":"06:45","fall_asleep":"19:30"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var decoded struct {
		Date       Date      `json:"date"`
		WakeUp     ClockTime `json:"wake_up"`
		FallAsleep ClockTime `json:"fall_asleep"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Date != night.Date || decoded.WakeUp != night.WakeUp || decoded.FallAsleep != night.FallAsleep {
		t.Errorf("Unmarshal() = %+v", decoded)
	}

	var empty Date
	if err := json.Unmarshal([]byte(`""`), &empty); err != nil || !empty.IsZero() {
		t.Errorf("Unmarshal(\"\") = %v, %v; want zero date", empty, err)
	}
}
