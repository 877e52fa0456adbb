package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
)

// Report is the outcome of CheckEnvironment. Errors block a production
// deploy; warnings are advisory.
type Report struct {
	Errors   []string
	Warnings []string
}

// OK reports whether the check found no errors.
func (r Report) OK() bool {
	return len(r.Errors) == 0
}

func (r *Report) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// CheckEnvironment inspects a loaded config for deployment problems that
// validation alone does not catch: weak secrets, missing optional services,
// a missing ffmpeg binary or an unwritable upload directory.
func CheckEnvironment(cfg *Config) Report {
	var r Report
	prod := cfg.IsProduction()

	if cfg.Auth.JWTSecret == DefaultDevJWTSecret {
		if prod {
			r.errorf("JWT_SECRET is the development default")
		} else {
			r.warnf("JWT_SECRET is the development default")
		}
	} else if len(cfg.Auth.JWTSecret) < 32 && prod {
		r.warnf("JWT_SECRET is shorter than 32 characters")
	}

	if cfg.Database.Driver == "sqlite" && prod {
		r.errorf("sqlite database driver is not supported in production")
	}

	if cfg.Redis.URL == "" {
		if prod {
			r.warnf("REDIS_URL not set: upload progress and predictions will not be shared across instances")
		}
	}

	if cfg.Alerts.SlackBotToken == "" && cfg.Alerts.DiscordWebhookURL == "" && prod {
		r.warnf("no alert channel configured (SLACK_BOT_TOKEN or DISCORD_WEBHOOK_URL)")
	}

	platforms := cfg.Social.Platforms()
	names := make([]string, 0, len(platforms))
	for name := range platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	enabled := 0
	for _, name := range names {
		p := platforms[name]
		if !p.Enabled {
			continue
		}
		enabled++
		if p.ClientSecret == "" {
			r.errorf("%s is enabled but has no client secret", name)
		}
	}
	if enabled == 0 {
		r.warnf("no social platforms enabled")
	}

	if _, err := exec.LookPath(cfg.Audio.FFmpegPath); err != nil {
		r.warnf("ffmpeg not found at %q: audio mastering is unavailable", cfg.Audio.FFmpegPath)
	}

	if err := checkWritable(cfg.Uploads.Dir); err != nil {
		r.errorf("upload directory %s is not writable: %v", cfg.Uploads.Dir, err)
	}

	return r
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".click-write-check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(filepath.Clean(name))
}
