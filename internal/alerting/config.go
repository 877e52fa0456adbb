package alerting

import (
	"github.com/clickstudio/click/internal/config"
	"github.com/rs/zerolog"
)

// FromConfig builds an Alerter with a log notifier plus Slack and Discord
// when configured. Notifiers that fail to initialise are logged and
// skipped.
func FromConfig(cfg config.AlertConfig, log zerolog.Logger) *Alerter {
	notifiers := []Notifier{NewLogNotifier(log)}
	if cfg.SlackBotToken != "" {
		n, err := NewSlackNotifier(cfg.SlackBotToken, cfg.SlackChannel)
		if err != nil {
			log.Warn().Err(err).Msg("slack alerts disabled")
		} else {
			notifiers = append(notifiers, n)
		}
	}
	if cfg.DiscordWebhookURL != "" {
		n, err := NewDiscordNotifier(cfg.DiscordWebhookURL)
		if err != nil {
			log.Warn().Err(err).Msg("discord alerts disabled")
		} else {
			notifiers = append(notifiers, n)
		}
	}
	return New(log, Options{Cooldown: cfg.Cooldown, MaxPerHour: cfg.MaxPerHour}, notifiers...)
}
