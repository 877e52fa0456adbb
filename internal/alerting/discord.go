package alerting

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// webhookClient abstracts the discordgo method we use, enabling test mocks.
type webhookClient interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts alerts to a Discord channel webhook as embeds.
type DiscordNotifier struct {
	client    webhookClient
	webhookID string
	token     string
}

// ParseWebhookURL extracts the ID and token from a Discord webhook URL of
// the form https://discord.com/api/webhooks/<id>/<token>.
func ParseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("discord: parse webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("discord: webhook url has no /webhooks/<id>/<token> path")
}

// NewDiscordNotifier returns a DiscordNotifier for a webhook URL.
func NewDiscordNotifier(webhookURL string) (*DiscordNotifier, error) {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	// Webhook execution needs no bot token.
	sess, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	return &DiscordNotifier{client: sess, webhookID: id, token: token}, nil
}

func (d *DiscordNotifier) Name() string { return "discord" }

// Notify executes the webhook with one embed.
func (d *DiscordNotifier) Notify(ctx context.Context, a Alert) error {
	params := &discordgo.WebhookParams{
		Username: "Click alerts",
		Embeds:   []*discordgo.MessageEmbed{alertToEmbed(a)},
	}
	if _, err := d.client.WebhookExecute(d.webhookID, d.token, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: execute webhook: %w", err)
	}
	return nil
}

// alertToEmbed converts an Alert to a Discord Embed.
func alertToEmbed(a Alert) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       a.Title,
		Description: a.Message,
		Color:       parseHexColor(severityColor(a.Severity)),
	}
	if !a.Time.IsZero() {
		embed.Timestamp = a.Time.UTC().Format(time.RFC3339)
	}
	for _, f := range a.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}
	return embed
}
