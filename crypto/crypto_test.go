package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestNewAESEncryptor(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		errorMsg  string
		wantError bool
	}{
		{
			name:      "empty key",
			key:       "",
			wantError: true,
			errorMsg:  "encryption key is empty",
		},
		{
			name:      "invalid base64",
			key:       "not-valid-base64!@#$",
			wantError: true,
			errorMsg:  "base64 decode failed",
		},
		{
			name:      "key too short",
			key:       base64.StdEncoding.EncodeToString(make([]byte, 16)), // 16 bytes = 128 bits
			wantError: true,
			errorMsg:  "must be 32 bytes",
		},
		{
			name:      "key too long",
			key:       base64.StdEncoding.EncodeToString(make([]byte, 64)), // 64 bytes
			wantError: true,
			errorMsg:  "must be 32 bytes",
		},
		{
			name:      "valid 32-byte key",
			key:       base64.StdEncoding.EncodeToString(make([]byte, 32)),
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewAESEncryptor(tt.key)
			if tt.wantError {
				if err == nil {
					t.Errorf("NewAESEncryptor() expected error but got nil")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("NewAESEncryptor() error = %v, want error containing %q", err, tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("NewAESEncryptor() unexpected error = %v", err)
				}
				if enc == nil {
					t.Errorf("NewAESEncryptor() returned nil encryptor")
				}
			}
		})
	}
}

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate random key: %v", err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	enc, err := NewAESEncryptor(testKey(t))
	if err != nil {
		t.Fatal(err)
	}
	for _, pt := range []string{"x", "client-secret-value", strings.Repeat("a", 4096)} {
		ct, err := enc.Encrypt([]byte(pt))
		if err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		if bytes.Contains(ct, []byte(pt)) {
			t.Error("ciphertext contains plaintext")
		}
		got, err := enc.Decrypt(ct)
		if err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if string(got) != pt {
			t.Errorf("Decrypt() = %q, want %q", got, pt)
		}
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	enc, _ := NewAESEncryptor(testKey(t))
	a, _ := enc.Encrypt([]byte("same"))
	b, _ := enc.Encrypt([]byte("same"))
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same plaintext are identical")
	}
}

func TestDecrypt_Rejects(t *testing.T) {
	enc, _ := NewAESEncryptor(testKey(t))
	other, _ := NewAESEncryptor(testKey(t))
	ct, _ := enc.Encrypt([]byte("secret"))
	tampered := append([]byte(nil), ct...)
	tampered[len(tampered)-1] ^= 0xff

	tests := []struct {
		name string
		dec  *AESEncryptor
		in   []byte
	}{
		{"empty", enc, nil},
		{"too short", enc, []byte("short")},
		{"tampered", enc, tampered},
		{"wrong key", other, ct},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.dec.Decrypt(tt.in); err == nil {
				t.Error("Decrypt() error = nil, want error")
			}
		})
	}
}

func TestEncrypt_EmptyPlaintext(t *testing.T) {
	enc, _ := NewAESEncryptor(testKey(t))
	if _, err := enc.Encrypt(nil); err == nil {
		t.Error("expected error for empty plaintext")
	}
}

func TestBox(t *testing.T) {
	box, err := NewBox(testKey(t))
	if err != nil {
		t.Fatal(err)
	}
	stored, version, err := box.Seal("secret")
	if err != nil {
		t.Fatal(err)
	}
	if version != VersionAESGCM || stored == "secret" {
		t.Errorf("Seal() = %q, v%d", stored, version)
	}
	got, err := box.Open(stored, version)
	if err != nil || got != "secret" {
		t.Errorf("Open() = %q, %v", got, err)
	}

	// empty values stay empty and plaintext
	if s, v, _ := box.Seal(""); s != "" || v != VersionPlaintext {
		t.Errorf("Seal(\"\") = %q, v%d", s, v)
	}
}

func TestBoxPlaintext(t *testing.T) {
	box, err := NewBox("")
	if err != nil {
		t.Fatal(err)
	}
	if box.Encrypted() {
		t.Error("Encrypted() = true without a key")
	}
	stored, version, _ := box.Seal("secret")
	if stored != "secret" || version != VersionPlaintext {
		t.Errorf("Seal() = %q, v%d", stored, version)
	}
	if _, err := box.Open("Zm9v", VersionAESGCM); !errors.Is(err, ErrKeyMissing) {
		t.Errorf("Open() error = %v, want ErrKeyMissing", err)
	}
	if _, err := box.Open("x", 7); err == nil {
		t.Error("expected error for unknown version")
	}
}
