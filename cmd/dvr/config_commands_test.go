package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dvr/internal/daemon"
	"dvr/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err = env.run(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, err := env.run(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAPISecret("hunter2"))

	out, err := env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "hunter2") {
		t.Fatalf("expected secret to be masked, got:\n%s", out)
	}
	requireContains(t, out, redacted)
	requireContains(t, out, env.cfg.Paths.StorageDir)

	out, err = env.run(t, "config", "show", "--show-secrets")
	if err != nil {
		t.Fatalf("config show --show-secrets: %v", err)
	}
	requireContains(t, out, "hunter2")
}

func TestTokenCommand(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAPISecret("hunter2"))

	out, err := env.run(t, "token", "--client", "living-room", "--ttl", "1h")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	claims, err := daemon.ValidateToken("hunter2", strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Client != "living-room" {
		t.Fatalf("unexpected client %q", claims.Client)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) > time.Hour {
		t.Fatalf("expected a one hour expiry, got %v", claims.ExpiresAt)
	}

	if _, err := env.run(t, "token"); err == nil {
		t.Fatal("expected missing --client to fail")
	}
}

func TestTokenCommandWithoutSecret(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.run(t, "token", "--client", "tv"); err == nil {
		t.Fatal("expected token without api_secret to fail")
	}
}
