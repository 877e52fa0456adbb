package main

import (
	"strings"
	"testing"
)

func migratedConfig(t *testing.T) string {
	t.Helper()
	cfg := writeConfig(t)
	if out, err := runCmd(t, "", "db", "migrate", "-c", cfg); err != nil {
		t.Fatalf("db migrate: %v\n%s", err, out)
	}
	return cfg
}

func TestUserCreateAndList(t *testing.T) {
	cfg := migratedConfig(t)

	out, err := runCmd(t, "password123\n", "user", "create", "-c", cfg,
		"--email", "Admin@Example.com", "--name", "Ada", "--admin")
	if err != nil {
		t.Fatalf("user create: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Created admin admin@example.com") {
		t.Errorf("unexpected output: %s", out)
	}

	if out, err := runCmd(t, "password123\n", "user", "create", "-c", cfg, "--email", "user@example.com"); err != nil {
		t.Fatalf("user create: %v\n%s", err, out)
	}

	out, err = runCmd(t, "", "user", "list", "-c", cfg)
	if err != nil {
		t.Fatalf("user list: %v", err)
	}
	if !strings.Contains(out, "EMAIL") || !strings.Contains(out, "ROLE") {
		t.Errorf("expected table header, got: %s", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines: %s", len(lines), out)
	}
	if !strings.Contains(out, "admin@example.com") || !strings.Contains(out, "user@example.com") {
		t.Errorf("missing users in list: %s", out)
	}
}

func TestUserCreate_Rejections(t *testing.T) {
	cfg := migratedConfig(t)

	tests := []struct {
		name    string
		stdin   string
		args    []string
		wantErr string
	}{
		{"missing email flag", "password123\n", []string{}, "email"},
		{"bad email", "password123\n", []string{"--email", "nope"}, "valid email"},
		{"weak password", "short\n", []string{"--email", "weak@example.com"}, "password"},
		{"empty stdin", "", []string{"--email", "empty@example.com"}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"user", "create", "-c", cfg}, tt.args...)
			_, err := runCmd(t, tt.stdin, args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestUserCreate_Duplicate(t *testing.T) {
	cfg := migratedConfig(t)
	if _, err := runCmd(t, "password123\n", "user", "create", "-c", cfg, "--email", "dup@example.com"); err != nil {
		t.Fatal(err)
	}
	_, err := runCmd(t, "password123\n", "user", "create", "-c", cfg, "--email", "dup@example.com")
	if err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Errorf("expected duplicate error, got %v", err)
	}
}

func TestUserResetPasswordAndDisable(t *testing.T) {
	cfg := migratedConfig(t)
	if _, err := runCmd(t, "password123\n", "user", "create", "-c", cfg, "--email", "pw@example.com"); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, "newpassword456\n", "user", "reset-password", "-c", cfg, "pw@example.com")
	if err != nil {
		t.Fatalf("reset-password: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Password updated for pw@example.com") {
		t.Errorf("unexpected output: %s", out)
	}

	if _, err := runCmd(t, "newpassword456\n", "user", "reset-password", "-c", cfg, "ghost@example.com"); err == nil {
		t.Error("expected error for unknown user")
	}

	out, err = runCmd(t, "", "user", "disable", "-c", cfg, "pw@example.com")
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if !strings.Contains(out, "pw@example.com disabled") {
		t.Errorf("unexpected output: %s", out)
	}
	out, _ = runCmd(t, "", "user", "list", "-c", cfg)
	if !strings.Contains(out, "disabled") {
		t.Errorf("list should show disabled status: %s", out)
	}

	if _, err := runCmd(t, "", "user", "enable", "-c", cfg, "pw@example.com"); err != nil {
		t.Fatalf("enable: %v", err)
	}
	out, _ = runCmd(t, "", "user", "list", "-c", cfg)
	if !strings.Contains(out, "active") {
		t.Errorf("list should show active status: %s", out)
	}
}
