package crypto

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptSecretRoundTrip(t *testing.T) {
	blob, err := EncryptSecret("super-secret-api-key", "hunter2")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	got, err := DecryptSecret(blob, "hunter2")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != "super-secret-api-key" {
		t.Fatalf("decrypted %q", got)
	}
}

func TestDecryptSecretWrongPassword(t *testing.T) {
	blob, err := EncryptSecret("super-secret-api-key", "hunter2")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := DecryptSecret(blob, "wrong"); err == nil {
		t.Fatal("expected decryption failure with wrong password")
	}
}

func TestEncryptSecretRejectsEmptyInputs(t *testing.T) {
	if _, err := EncryptSecret("", "hunter2"); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := EncryptSecret("secret", ""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestLoadSecret(t *testing.T) {
	// Raw secret takes precedence.
	got, err := LoadSecret(SecretConfig{RawSecret: "raw"})
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	if got != "raw" {
		t.Fatalf("got %q", got)
	}

	// Encrypted file path.
	blob, err := EncryptSecret("from-file", "pw")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	path := filepath.Join(t.TempDir(), "secret.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err = LoadSecret(SecretConfig{EncryptedPath: path, Password: "pw"})
	if err != nil {
		t.Fatalf("load encrypted: %v", err)
	}
	if got != "from-file" {
		t.Fatalf("got %q", got)
	}

	// No source configured.
	if _, err := LoadSecret(SecretConfig{}); err == nil {
		t.Fatal("expected error with no source")
	}
}

func TestL2HeadersDeterministic(t *testing.T) {
	auth := &HMACAuth{
		Key:        "key-id",
		Secret:     "c2VjcmV0", // base64("secret")
		Passphrase: "phrase",
	}

	h1 := auth.L2HeadersAt("0xabc", "POST", "/order", `{"a":1}`, 1700000000)
	h2 := auth.L2HeadersAt("0xabc", "POST", "/order", `{"a":1}`, 1700000000)

	if h1["POLY_SIGNATURE"] == "" {
		t.Fatal("empty signature")
	}
	if h1["POLY_SIGNATURE"] != h2["POLY_SIGNATURE"] {
		t.Fatal("signature not deterministic for fixed timestamp")
	}
	if h1["POLY_ADDRESS"] != "0xabc" || h1["POLY_API_KEY"] != "key-id" || h1["POLY_TIMESTAMP"] != "1700000000" {
		t.Fatalf("unexpected headers: %+v", h1)
	}

	// Different body must change the signature.
	h3 := auth.L2HeadersAt("0xabc", "POST", "/order", `{"a":2}`, 1700000000)
	if h3["POLY_SIGNATURE"] == h1["POLY_SIGNATURE"] {
		t.Fatal("signature should depend on body")
	}
}
