package auth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCredentials_SignRequest(t *testing.T) {
	// Generate a test key
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	creds := &Credentials{
		KeyID:      "test-key-id",
		PrivateKey: privateKey,
	}

	headers, err := creds.SignRequest("GET", "/trade-api/ws/v2")
	if err != nil {
		t.Fatalf("SignRequest failed: %v", err)
	}

	// Verify all required headers are present
	if headers["KALSHI-ACCESS-KEY"] != "test-key-id" {
		t.Errorf("KALSHI-ACCESS-KEY = %q, want %q", headers["KALSHI-ACCESS-KEY"], "test-key-id")
	}

	if headers["KALSHI-ACCESS-TIMESTAMP"] == "" {
		t.Error("KALSHI-ACCESS-TIMESTAMP is empty")
	}

	if headers["KALSHI-ACCESS-SIGNATURE"] == "" {
		t.Error("KALSHI-ACCESS-SIGNATURE is empty")
	}

	// Signature should be base64 encoded
	if !isValidBase64(headers["KALSHI-ACCESS-SIGNATURE"]) {
		t.Errorf("KALSHI-ACCESS-SIGNATURE is not valid base64: %q", headers["KALSHI-ACCESS-SIGNATURE"])
	}
}

func verifySignature(t *testing.T, key *rsa.PrivateKey, headers map[string]string, message string) {
	t.Helper()
	sig, err := base64.StdEncoding.DecodeString(headers["KALSHI-ACCESS-SIGNATURE"])
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	hashed := sha256.Sum256([]byte(message))
	opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash}
	if err := rsa.VerifyPSS(&key.PublicKey, crypto.SHA256, hashed[:], sig, opts); err != nil {
		t.Errorf("signature does not verify for %q: %v", message, err)
	}
}

func TestCredentials_SignAt_MessageFormat(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	creds := &Credentials{KeyID: "k", PrivateKey: privateKey}

	tests := []struct {
		name    string
		method  string
		path    string
		message string
	}{
		{"plain", "GET", "/trade-api/v2/markets", "1700000000000GET/trade-api/v2/markets"},
		{"query stripped", "GET", "/trade-api/v2/markets?limit=200&cursor=x", "1700000000000GET/trade-api/v2/markets"},
		{"method uppercased", "post", "/trade-api/v2/portfolio/orders", "1700000000000POST/trade-api/v2/portfolio/orders"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers, err := creds.signAt(1700000000000, tt.method, tt.path)
			if err != nil {
				t.Fatalf("signAt failed: %v", err)
			}
			if headers["KALSHI-ACCESS-TIMESTAMP"] != "1700000000000" {
				t.Errorf("KALSHI-ACCESS-TIMESTAMP = %q, want 1700000000000", headers["KALSHI-ACCESS-TIMESTAMP"])
			}
			verifySignature(t, privateKey, headers, tt.message)
		})
	}
}

func TestCredentials_Apply(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	creds := &Credentials{KeyID: "apply-key", PrivateKey: privateKey}

	req, err := http.NewRequest(http.MethodGet, "https://demo-api.kalshi.co/trade-api/v2/exchange/status?x=1", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if err := creds.Apply(req); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if req.Header.Get("KALSHI-ACCESS-KEY") != "apply-key" {
		t.Errorf("KALSHI-ACCESS-KEY = %q, want apply-key", req.Header.Get("KALSHI-ACCESS-KEY"))
	}
	headers := map[string]string{"KALSHI-ACCESS-SIGNATURE": req.Header.Get("KALSHI-ACCESS-SIGNATURE")}
	verifySignature(t, privateKey, headers, req.Header.Get("KALSHI-ACCESS-TIMESTAMP")+"GET/trade-api/v2/exchange/status")
}

func TestLoadPrivateKey_PKCS8(t *testing.T) {
	// Generate a test key
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	// Encode as PKCS#8
	pkcs8Bytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		t.Fatalf("failed to marshal PKCS#8: %v", err)
	}

	pemBlock := &pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: pkcs8Bytes,
	}

	// Write to temp file
	tmpFile := filepath.Join(t.TempDir(), "test-key.pem")
	if err := os.WriteFile(tmpFile, pem.EncodeToMemory(pemBlock), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	// Load and verify
	loadedKey, err := LoadPrivateKey(tmpFile)
	if err != nil {
		t.Fatalf("LoadPrivateKey failed: %v", err)
	}

	if loadedKey.N.Cmp(privateKey.N) != 0 {
		t.Error("loaded key does not match original")
	}
}

func TestLoadPrivateKey_PKCS1(t *testing.T) {
	// Generate a test key
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	// Encode as PKCS#1
	pkcs1Bytes := x509.MarshalPKCS1PrivateKey(privateKey)

	pemBlock := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: pkcs1Bytes,
	}

	// Write to temp file
	tmpFile := filepath.Join(t.TempDir(), "test-key.pem")
	if err := os.WriteFile(tmpFile, pem.EncodeToMemory(pemBlock), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	// Load and verify
	loadedKey, err := LoadPrivateKey(tmpFile)
	if err != nil {
		t.Fatalf("LoadPrivateKey failed: %v", err)
	}

	if loadedKey.N.Cmp(privateKey.N) != 0 {
		t.Error("loaded key does not match original")
	}
}

func TestLoadPrivateKey_HomeExpansion(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	pemBlock := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)}
	if err := os.WriteFile(filepath.Join(home, "kalshi.pem"), pem.EncodeToMemory(pemBlock), 0600); err != nil {
		t.Fatalf("failed to write key: %v", err)
	}

	loadedKey, err := LoadPrivateKey("~/kalshi.pem")
	if err != nil {
		t.Fatalf("LoadPrivateKey failed: %v", err)
	}
	if loadedKey.N.Cmp(privateKey.N) != 0 {
		t.Error("loaded key does not match original")
	}
}

func TestLoadPrivateKey_FileNotFound(t *testing.T) {
	_, err := LoadPrivateKey("/nonexistent/path/to/key.pem")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadPrivateKey_InvalidPEM(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "invalid.pem")
	if err := os.WriteFile(tmpFile, []byte("not a pem file"), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	_, err := LoadPrivateKey(tmpFile)
	if err == nil {
		t.Error("expected error for invalid PEM")
	}
}

func TestLoadCredentials(t *testing.T) {
	// Generate a test key
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	// Write key to temp file
	pkcs8Bytes, _ := x509.MarshalPKCS8PrivateKey(privateKey)
	pemBlock := &pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8Bytes}
	tmpFile := filepath.Join(t.TempDir(), "test-key.pem")
	if err := os.WriteFile(tmpFile, pem.EncodeToMemory(pemBlock), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	creds, err := LoadCredentials("my-key-id", tmpFile)
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}

	if creds.KeyID != "my-key-id" {
		t.Errorf("KeyID = %q, want %q", creds.KeyID, "my-key-id")
	}

	if creds.PrivateKey == nil {
		t.Error("PrivateKey is nil")
	}
}

func TestLoadCredentials_MissingKeyID(t *testing.T) {
	_, err := LoadCredentials("", "/some/path")
	if err == nil {
		t.Error("expected error for missing key ID")
	}
}

func TestLoadCredentials_MissingPath(t *testing.T) {
	_, err := LoadCredentials("key-id", "")
	if err == nil {
		t.Error("expected error for missing path")
	}
}

func isValidBase64(s string) bool {
	// Base64 encoded string should only contain valid characters
	for _, c := range s {
		if !strings.ContainsRune("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/=", c) {
			return false
		}
	}
	return len(s) > 0
}
