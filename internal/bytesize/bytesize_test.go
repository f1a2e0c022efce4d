package bytesize

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected ByteSize
		wantErr  bool
	}{
		{"1024", 1024, false},
		{"64KB", 64 * KB, false},
		{"64KiB", 64 * KiB, false},
		{"1MB", MB, false},
		{"1.5MiB", ByteSize(1.5 * float64(MiB)), false},
		{"2Gi", 2 * GiB, false},
		{"  512 kb ", 512 * KB, false},
		{"", 0, true},
		{"abc", 0, true},
		{"10XB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("Parse(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestUnmarshalText(t *testing.T) {
	var b ByteSize
	if err := b.UnmarshalText([]byte("64KB")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if b != 64*KB {
		t.Errorf("UnmarshalText = %d, want %d", b, 64*KB)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		size     ByteSize
		expected string
	}{
		{512, "512B"},
		{KiB, "1.00KiB"},
		{MiB, "1.00MiB"},
		{3 * GiB, "3.00GiB"},
	}

	for _, tt := range tests {
		if got := tt.size.String(); got != tt.expected {
			t.Errorf("String() = %q, want %q", got, tt.expected)
		}
	}
}
