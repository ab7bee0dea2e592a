package secrets

import (
	"strings"
	"testing"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestNew_RejectsBadKeys(t *testing.T) {
	cases := []string{
		"",
		"abc",
		strings.Repeat("0", 63),
		strings.Repeat("0", 66),
		strings.Repeat("zz", 32), // not hex
	}
	for _, k := range cases {
		if _, err := New(k); err != ErrInvalidKey {
			t.Fatalf("New(%q): expected ErrInvalidKey, got %v", k, err)
		}
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	box, err := New(testKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sealed, err := box.Seal("ak-1234567890")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed == "ak-1234567890" || sealed == "" {
		t.Fatalf("sealed value looks like plaintext: %q", sealed)
	}

	plain, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if plain != "ak-1234567890" {
		t.Fatalf("round-trip mismatch: %q", plain)
	}
}

func TestSeal_FreshNoncePerCall(t *testing.T) {
	box, _ := New(testKey)
	a, _ := box.Seal("same")
	b, _ := box.Seal("same")
	if a == b {
		t.Fatalf("two seals of the same value must differ")
	}
}

func TestOpen_RejectsTamperedAndWrongKey(t *testing.T) {
	box, _ := New(testKey)
	sealed, _ := box.Seal("secret")

	if _, err := box.Open("not base64!!"); err != ErrMalformed {
		t.Fatalf("bad base64: expected ErrMalformed, got %v", err)
	}
	if _, err := box.Open("AAAA"); err != ErrMalformed {
		t.Fatalf("truncated: expected ErrMalformed, got %v", err)
	}

	// Flip a character of the sealed payload.
	tampered := []byte(sealed)
	if tampered[len(tampered)-5] == 'A' {
		tampered[len(tampered)-5] = 'B'
	} else {
		tampered[len(tampered)-5] = 'A'
	}
	if _, err := box.Open(string(tampered)); err != ErrMalformed {
		t.Fatalf("tampered: expected ErrMalformed, got %v", err)
	}

	other, _ := New("ffeeddccbbaa99887766554433221100ffeeddccbbaa99887766554433221100")
	if _, err := other.Open(sealed); err != ErrMalformed {
		t.Fatalf("wrong key: expected ErrMalformed, got %v", err)
	}
}
