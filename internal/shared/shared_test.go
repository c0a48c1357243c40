package shared

import (
	"errors"
	"testing"
)

func TestFormatPlayTime(t *testing.T) {
	tc := []struct {
		name string
		ms   int
		want string
	}{
		{name: "zero", ms: 0, want: "0:00"},
		{name: "sub second", ms: 999, want: "0:00"},
		{name: "single digit seconds are padded", ms: 65_000, want: "1:05"},
		{name: "typical track", ms: 213_573, want: "3:33"},
		{name: "hour long", ms: 4_503_000, want: "75:03"},
		{name: "negative", ms: -10, want: "0:00"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatPlayTime(tt.ms); got != tt.want {
				t.Errorf("FormatPlayTime(%d) = %v, want %v", tt.ms, got, tt.want)
			}
		})
	}
}

func TestParsePlayTime(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		got, err := ParsePlayTime("3:33")
		if err != nil {
			t.Fatalf("failed to parse play time: %v", err)
		}
		if got != 213 {
			t.Errorf("expected 213 seconds, got %d", got)
		}
	})

	for _, in := range []string{"", "333", "a:10", "1:5", "1:60", "-1:00"} {
		t.Run("invalid "+in, func(t *testing.T) {
			if _, err := ParsePlayTime(in); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput for %q, got %v", in, err)
			}
		})
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Error("expected unique ids")
	}
	if len(a) != 36 {
		t.Errorf("expected uuid string, got %q", a)
	}
}
