package search

import "testing"

func TestDelimiter_Find(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		buf     string
		want    int
	}{
		{"at start", "--X", "--Xabc", 0},
		{"in middle", "--X", "abc--Xdef", 3},
		{"at end", "--X", "abcdef--X", 6},
		{"absent", "--X", "abcdef", -1},
		{"partial tail only", "--X", "abc--", -1},
		{"repeated prefix", "aab", "aaaab", 2},
		{"buffer shorter than pattern", "boundary", "bound", -1},
		{"overlapping candidates", "--X--", "--Y----X--", 5},
	}
	for _, tt := range tests {
		d := NewDelimiter(tt.pattern)
		if got := d.Find([]byte(tt.buf)); got != tt.want {
			t.Errorf("%s: Find(%q) = %d, want %d", tt.name, tt.buf, got, tt.want)
		}
	}
}

func TestDelimiter_FindMatchesEveryOffset(t *testing.T) {
	d := NewDelimiter("--boundary")
	buf := make([]byte, 0, 64)
	for pre := 0; pre < 40; pre++ {
		buf = buf[:0]
		for i := 0; i < pre; i++ {
			buf = append(buf, byte('a'+i%26))
		}
		buf = append(buf, "--boundary"...)
		buf = append(buf, "tail"...)
		if got := d.Find(buf); got != pre {
			t.Fatalf("prefix %d: Find = %d, want %d", pre, got, pre)
		}
	}
}

func TestDelimiter_LenString(t *testing.T) {
	d := NewDelimiter("--X")
	if d.Len() != 3 {
		t.Errorf("Expected Len 3, got %d", d.Len())
	}
	if d.String() != "--X" {
		t.Errorf("Expected pattern --X, got %q", d.String())
	}
}

func TestFindBodyStart(t *testing.T) {
	tests := []struct {
		name string
		buf  string
		want int
	}{
		{"simple head", "GET / HTTP/1.1\r\n\r\n", 18},
		{"head with body", "a: b\r\n\r\nbody", 8},
		{"no separator yet", "a: b\r\n", -1},
		{"bare newlines do not count", "a: b\n\n", -1},
		{"empty", "", -1},
	}
	for _, tt := range tests {
		if got := FindBodyStart([]byte(tt.buf)); got != tt.want {
			t.Errorf("%s: FindBodyStart = %d, want %d", tt.name, got, tt.want)
		}
	}
}
