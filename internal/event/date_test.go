package event

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		want     string
		wantZero bool
	}{
		{name: "weekday heading", text: "Monday, March 10, 2025", want: "2025-03-10"},
		{name: "weekday heading with extra spaces", text: "  Monday,   March 10,  2025 ", want: "2025-03-10"},
		{name: "short month", text: "Mar 10, 2025", want: "2025-03-10"},
		{name: "no comma", text: "March 10 2025", want: "2025-03-10"},
		{name: "ordinal day", text: "March 3rd, 2025", want: "2025-03-03"},
		{name: "slash format", text: "03/10/2025", want: "2025-03-10"},
		{name: "iso format", text: "2025-03-10", want: "2025-03-10"},
		{name: "embedded in heading", text: "Floor Session - Thursday, March 13, 2025", want: "2025-03-13"},
		{name: "empty", text: "", wantZero: true},
		{name: "garbage", text: "Agenda to be announced", wantZero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.text)
			if tt.wantZero {
				if !got.IsZero() {
					t.Errorf("ParseDate(%q) = %v, want zero", tt.text, got)
				}
				return
			}
			if got.String() != tt.want {
				t.Errorf("ParseDate(%q) = %q, want %q", tt.text, got.String(), tt.want)
			}
		})
	}
}

func TestDateCompare(t *testing.T) {
	a := MustDate("2025-03-10")
	b := MustDate("2025-03-11")

	if !a.Before(b) {
		t.Error("expected 2025-03-10 before 2025-03-11")
	}
	if b.Before(a) {
		t.Error("expected 2025-03-11 not before 2025-03-10")
	}
	if a.Compare(a) != 0 {
		t.Error("expected date to compare equal to itself")
	}
	if got := a.AddDays(21).String(); got != "2025-03-31" {
		t.Errorf("AddDays(21) = %s, want 2025-03-31", got)
	}
	if got := MustDate("2024-12-31").AddDays(1).String(); got != "2025-01-01" {
		t.Errorf("AddDays across year = %s, want 2025-01-01", got)
	}
}

func TestDateScan(t *testing.T) {
	tests := []struct {
		name    string
		src     interface{}
		want    string
		wantErr bool
	}{
		{name: "text", src: "2025-03-10", want: "2025-03-10"},
		{name: "bytes", src: []byte("2025-03-10"), want: "2025-03-10"},
		{name: "timestamp text", src: "2025-03-10T00:00:00Z", want: "2025-03-10"},
		{name: "time value", src: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), want: "2025-03-10"},
		{name: "null", src: nil, want: ""},
		{name: "bad text", src: "not a date", wantErr: true},
		{name: "bad type", src: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			err := d.Scan(tt.src)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Scan(%v) error = %v, wantErr %v", tt.src, err, tt.wantErr)
			}
			if !tt.wantErr && d.String() != tt.want {
				t.Errorf("Scan(%v) = %q, want %q", tt.src, d.String(), tt.want)
			}
		})
	}
}

func TestDateJSON(t *testing.T) {
	d := MustDate("2025-03-10")

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `"2025-03-10"` {
		t.Errorf("Marshal() = %s, want \"2025-03-10\"", data)
	}

	var back Date
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back != d {
		t.Errorf("Unmarshal() = %v, want %v", back, d)
	}
}
