package util

import "testing"

func TestSHA256Hex(t *testing.T) {
	got := SHA256Hex("abc")
	if got != SHA256Hex("abc") {
		t.Fatalf("expected stable hash, got %s", got)
	}
	if got != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("unexpected digest %s", got)
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
}
