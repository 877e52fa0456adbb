package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API method we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackNotifier posts alerts to a Slack channel as attachments.
type SlackNotifier struct {
	client    slackClient
	channelID string
}

// NewSlackNotifier returns a SlackNotifier using a bot token.
func NewSlackNotifier(botToken, channelID string) (*SlackNotifier, error) {
	if botToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if channelID == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}
	return &SlackNotifier{client: slackapi.New(botToken), channelID: channelID}, nil
}

func (s *SlackNotifier) Name() string { return "slack" }

// Notify posts the alert. Slack rate limits are surfaced with their retry
// delay so the Alerter's backoff can honour it.
func (s *SlackNotifier) Notify(ctx context.Context, a Alert) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channelID,
		slackapi.MsgOptionText(fmt.Sprintf("[%s] %s", a.Severity, a.Title), false),
		slackapi.MsgOptionAttachments(alertToAttachment(a)),
	)
	if err != nil {
		var rle *slackapi.RateLimitedError
		if errors.As(err, &rle) && rle.RetryAfter > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(rle.RetryAfter):
			}
		}
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// alertToAttachment converts an Alert to a Slack Attachment.
func alertToAttachment(a Alert) slackapi.Attachment {
	att := slackapi.Attachment{
		Title:    a.Title,
		Text:     a.Message,
		Color:    severityColor(a.Severity),
		Fallback: a.Title,
	}
	for _, f := range a.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return att
}
