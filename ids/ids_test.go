package ids

import "testing"

func TestCounterStartsAtOne(t *testing.T) {
	var c Counter
	got := c.Next()
	if got != 1 {
		t.Errorf("first Next() = %d, want 1", got)
	}
}

func TestCounterMonotonic(t *testing.T) {
	var c Counter
	prev := c.Next()
	for i := 0; i < 10; i++ {
		next := c.Next()
		if next <= prev {
			t.Errorf("Counter not monotonic: %d then %d", prev, next)
		}
		prev = next
	}
}

func TestZeroValueIsUnset(t *testing.T) {
	var did DomainID
	var sid ShellID
	if did != 0 || sid != 0 {
		t.Errorf("zero values should be 0, got did=%d sid=%d", did, sid)
	}
}

func TestStringFormatting(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"shell", ShellID(3).String(), "shell#3"},
		{"domain", DomainID(7).String(), "domain#7"},
		{"event", EventID(1).String(), "event#1"},
		{"particle", ParticleID(42).String(), "particle#42"},
		{"face", FaceID(5).String(), "face#5"},
		{"vertex", VertexID(9).String(), "vertex#9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
