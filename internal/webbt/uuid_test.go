package webbt

import (
	"errors"
	"testing"
)

func TestNormalizeUUIDShortForms(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"180d", "0000180d-0000-1000-8000-00805f9b34fb"},
		{"180D", "0000180d-0000-1000-8000-00805f9b34fb"},
		{"0x180d", "0000180d-0000-1000-8000-00805f9b34fb"},
		{"0000180d", "0000180d-0000-1000-8000-00805f9b34fb"},
		{"12345678", "12345678-0000-1000-8000-00805f9b34fb"},
		{"0x12345678", "12345678-0000-1000-8000-00805f9b34fb"},
		{"0000180d-0000-1000-8000-00805f9b34fb", "0000180d-0000-1000-8000-00805f9b34fb"},
		{"19B10000-E8F2-537E-4F6C-D104768A1214", "19b10000-e8f2-537e-4f6c-d104768a1214"},
	}
	for _, tt := range tests {
		got, err := NormalizeUUID(tt.in)
		if err != nil {
			t.Errorf("NormalizeUUID(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeUUID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeUUIDIdempotent(t *testing.T) {
	for _, in := range []string{"180d", "0x2a37", "12345678", "19b10000-e8f2-537e-4f6c-d104768a1214"} {
		once, err := NormalizeUUID(in)
		if err != nil {
			t.Fatalf("NormalizeUUID(%q) error = %v", in, err)
		}
		twice, err := NormalizeUUID(once)
		if err != nil {
			t.Fatalf("NormalizeUUID(%q) error = %v", once, err)
		}
		if once != twice {
			t.Errorf("normalization not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestNormalizeUUIDShortEqualsLong(t *testing.T) {
	short, err := NormalizeUUID("180d")
	if err != nil {
		t.Fatalf("NormalizeUUID(180d) error = %v", err)
	}
	long, err := NormalizeUUID("0000180d-0000-1000-8000-00805f9b34fb")
	if err != nil {
		t.Fatalf("NormalizeUUID(long) error = %v", err)
	}
	if short != long {
		t.Errorf("short form %q != long form %q", short, long)
	}
}

func TestNormalizeUUIDInvalid(t *testing.T) {
	for _, in := range []string{"", "xyz", "180", "180dd", "0xzzzz", "not-a-uuid", "12345678-1234"} {
		_, err := NormalizeUUID(in)
		if err == nil {
			t.Errorf("NormalizeUUID(%q) expected error, got nil", in)
			continue
		}
		var invalid *InvalidUUIDError
		if !errors.As(err, &invalid) {
			t.Errorf("NormalizeUUID(%q) error = %T, want *InvalidUUIDError", in, err)
		}
	}
}
