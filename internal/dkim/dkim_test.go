package dkim

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestKeyRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "keys", "test.com.key")
	if err := SavePrivateKey(key, path); err != nil {
		t.Fatalf("SavePrivateKey() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("key file permissions = %o, want 0600", perm)
	}

	loaded, err := LoadPrivateKey(path)
	if err != nil {
		t.Fatalf("LoadPrivateKey() error = %v", err)
	}
	if loaded.N.Cmp(key.N) != 0 {
		t.Error("loaded key differs from generated key")
	}
}

func TestSign(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "test.com.key")
	if err := SavePrivateKey(key, path); err != nil {
		t.Fatalf("SavePrivateKey() error = %v", err)
	}

	signer, err := NewSigner(path, "test.com", "renewly")
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	if signer.Domain() != "test.com" || signer.Selector() != "renewly" {
		t.Errorf("signer identity = %s/%s", signer.Domain(), signer.Selector())
	}

	message := []byte("From: reminders@test.com\r\n" +
		"To: client@test.com\r\n" +
		"Subject: Renewal\r\n" +
		"\r\n" +
		"Body text\r\n")

	signed, err := signer.Sign(message)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	out := string(signed)
	if !strings.Contains(out, "DKIM-Signature:") {
		t.Error("signed message missing DKIM-Signature header")
	}
	if !strings.Contains(out, "d=test.com") {
		t.Error("signature missing domain tag")
	}
	if !strings.Contains(out, "s=renewly") {
		t.Error("signature missing selector tag")
	}
	if !strings.Contains(out, "Body text") {
		t.Error("signed message lost the body")
	}
}

func TestDNSRecord(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	record := DNSRecord(key)
	if !strings.HasPrefix(record, "v=DKIM1; k=rsa; p=") {
		t.Errorf("DNSRecord() = %q", record)
	}

	if got := DNSName("renewly", "test.com"); got != "renewly._domainkey.test.com" {
		t.Errorf("DNSName() = %q", got)
	}
}

func TestLoadPrivateKeyErrors(t *testing.T) {
	if _, err := LoadPrivateKey(filepath.Join(t.TempDir(), "missing.key")); err == nil {
		t.Error("LoadPrivateKey() expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.key")
	if err := os.WriteFile(bad, []byte("not a pem"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPrivateKey(bad); err == nil {
		t.Error("LoadPrivateKey() expected error for non-PEM data")
	}
}
