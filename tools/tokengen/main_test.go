package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atinyakov/observer/internal/idtoken"
)

func TestRun_WritesVerifiableToken(t *testing.T) {
	out := filepath.Join(t.TempDir(), "token")
	var stdout bytes.Buffer

	err := run([]string{"-secret", "s3cret", "-sub", "apple-7", "-email", "eve@example.com", "-out", out}, &stdout)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := idtoken.Parse("s3cret", strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	if claims.Subject != "apple-7" || claims.Email != "eve@example.com" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.ExpiresAt == nil {
		t.Error("expected an expiry by default")
	}
	if !strings.Contains(stdout.String(), out) {
		t.Errorf("stdout = %q; want it to mention %s", stdout.String(), out)
	}
}

func TestRun_NoExpiry(t *testing.T) {
	out := filepath.Join(t.TempDir(), "token")
	var stdout bytes.Buffer
	if err := run([]string{"-secret", "s3cret", "-ttl", "0", "-out", out}, &stdout); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "never") {
		t.Errorf("stdout = %q; want never", stdout.String())
	}
}

func TestRun_RequiresSecret(t *testing.T) {
	t.Setenv("IDENTITY_SECRET", "")
	out := filepath.Join(t.TempDir(), "token")
	if err := run([]string{"-out", out}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error without a secret")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("no file should be written on error")
	}
}
