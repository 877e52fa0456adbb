package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func containsLine(lines []string, substr string) bool {
	for _, l := range lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func TestCheckEnvironment_DevelopmentDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg.Uploads.Dir = t.TempDir()

	r := CheckEnvironment(cfg)
	if !r.OK() {
		t.Errorf("expected no errors in development, got %v", r.Errors)
	}
	if !containsLine(r.Warnings, "JWT_SECRET is the development default") {
		t.Errorf("expected dev secret warning, got %v", r.Warnings)
	}
	if !containsLine(r.Warnings, "no social platforms enabled") {
		t.Errorf("expected platform warning, got %v", r.Warnings)
	}
}

func TestCheckEnvironment_ProductionProblems(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg.Environment = "production"
	cfg.Uploads.Dir = t.TempDir()
	cfg.Social.YouTube = OAuthClientConfig{Enabled: true, ClientID: "yt"}

	r := CheckEnvironment(cfg)
	if r.OK() {
		t.Fatal("expected errors in production")
	}
	for _, want := range []string{"development default", "sqlite", "youtube is enabled"} {
		if !containsLine(r.Errors, want) {
			t.Errorf("missing error containing %q in %v", want, r.Errors)
		}
	}
	for _, want := range []string{"REDIS_URL", "no alert channel"} {
		if !containsLine(r.Warnings, want) {
			t.Errorf("missing warning containing %q in %v", want, r.Warnings)
		}
	}
}

func TestCheckEnvironment_MissingFFmpeg(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg.Uploads.Dir = t.TempDir()
	cfg.Audio.FFmpegPath = filepath.Join(t.TempDir(), "no-such-ffmpeg")

	r := CheckEnvironment(cfg)
	if !containsLine(r.Warnings, "ffmpeg not found") {
		t.Errorf("expected ffmpeg warning, got %v", r.Warnings)
	}
}
