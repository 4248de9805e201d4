package main

import "testing"

func TestMediaTypeFor(t *testing.T) {
	tests := []struct {
		path string
		data []byte
		want string
	}{
		{path: "labs.PDF", want: "application/pdf"},
		{path: "scan.jpeg", want: "image/jpeg"},
		{path: "scan.JPG", want: "image/jpeg"},
		{path: "scan.png", want: "image/png"},
		{path: "report", data: []byte("%PDF-1.7\n"), want: "application/pdf"},
		{path: "notes.txt", data: []byte("hello"), want: "text/plain; charset=utf-8"},
	}
	for _, tt := range tests {
		if got := mediaTypeFor(tt.path, tt.data); got != tt.want {
			t.Fatalf("mediaTypeFor(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestPrettyJSON(t *testing.T) {
	out, err := prettyJSON([]byte(`{"findings":[],"summary":"ok"}`))
	if err != nil {
		t.Fatalf("prettyJSON: %v", err)
	}
	want := "{\n  \"findings\": [],\n  \"summary\": \"ok\"\n}"
	if string(out) != want {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if _, err := prettyJSON([]byte("{")); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}
