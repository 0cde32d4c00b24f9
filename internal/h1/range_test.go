package h1

import "testing"

func TestDecodeContentRange(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		ok        bool
		start     int64
		length    int64
		hasLength bool
	}{
		{"closed range", "bytes=2-5", true, 2, 4, true},
		{"open ended", "bytes=100-", true, 100, 0, false},
		{"missing start", "bytes=-5", true, 0, 6, true},
		{"whole resource", "bytes=0-", true, 0, 0, false},
		{"single byte", "bytes=3-3", true, 3, 1, true},
		{"end zero", "bytes=0-0", false, 0, 0, false},
		{"inverted", "bytes=9-2", false, 0, 0, false},
		{"wrong unit", "lines=0-5", false, 0, 0, false},
		{"no dash", "bytes=5", false, 0, 0, false},
		{"garbage start", "bytes=x-5", false, 0, 0, false},
		{"garbage end", "bytes=0-y", false, 0, 0, false},
		{"negative start", "bytes=-3-5", false, 0, 0, false},
	}
	for _, tt := range tests {
		cr, ok := DecodeContentRange(tt.value)
		if ok != tt.ok {
			t.Errorf("%s: ok = %v, want %v", tt.name, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		if cr.Start != tt.start {
			t.Errorf("%s: Start = %d, want %d", tt.name, cr.Start, tt.start)
		}
		if cr.HasLength != tt.hasLength {
			t.Errorf("%s: HasLength = %v, want %v", tt.name, cr.HasLength, tt.hasLength)
		}
		if cr.HasLength && cr.Length != tt.length {
			t.Errorf("%s: Length = %d, want %d", tt.name, cr.Length, tt.length)
		}
	}
}
