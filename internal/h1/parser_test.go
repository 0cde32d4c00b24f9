package h1

import "testing"

func TestParseRequest(t *testing.T) {
	head := []byte("GET /files/a.txt HTTP/1.1\r\nHost: localhost\r\nConnection: keep-alive")
	req, err := ParseRequest(head)
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}
	if req.Method != "GET" {
		t.Errorf("Expected method GET, got %s", req.Method)
	}
	if req.Path != "/files/a.txt" {
		t.Errorf("Expected path /files/a.txt, got %s", req.Path)
	}
	if req.Version != "HTTP/1.1" {
		t.Errorf("Expected version HTTP/1.1, got %s", req.Version)
	}
	if v, ok := req.Header("Connection"); !ok || v != "keep-alive" {
		t.Errorf("Expected Connection keep-alive, got %q (ok=%v)", v, ok)
	}
}

func TestParseRequest_HeaderLookupIsCaseInsensitive(t *testing.T) {
	req, err := ParseRequest([]byte("GET / HTTP/1.1\r\nCoNtEnT-TyPe: text/plain"))
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}
	if v, ok := req.Header("content-type"); !ok || v != "text/plain" {
		t.Errorf("lowercase lookup got %q (ok=%v)", v, ok)
	}
	if v, ok := req.Header("Content-Type"); !ok || v != "text/plain" {
		t.Errorf("canonical lookup got %q (ok=%v)", v, ok)
	}
}

func TestParseRequest_RepeatedHeaderLastWins(t *testing.T) {
	req, err := ParseRequest([]byte("GET / HTTP/1.1\r\nX-A: one\r\nX-A: two"))
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}
	if v, _ := req.Header("X-A"); v != "two" {
		t.Errorf("Expected last value two, got %q", v)
	}
}

func TestParseRequest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		head string
	}{
		{"missing version", "GET /\r\n"},
		{"empty", ""},
		{"unsupported version", "GET / HTTP/2.0\r\n"},
		{"header without colon", "GET / HTTP/1.1\r\nbadheader\r\n"},
		{"invalid utf8", "GET /\xff\xfe HTTP/1.1\r\n"},
	}
	for _, tt := range tests {
		if _, err := ParseRequest([]byte(tt.head)); err == nil {
			t.Errorf("%s: expected an error", tt.name)
		}
	}
}

func TestParseRequest_HTTP10Accepted(t *testing.T) {
	req, err := ParseRequest([]byte("HEAD /x HTTP/1.0"))
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}
	if req.Version != "HTTP/1.0" {
		t.Errorf("Expected HTTP/1.0, got %s", req.Version)
	}
}
