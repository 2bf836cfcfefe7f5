package notifications

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
)

// SlackChannel implements the DeliveryChannel interface for Slack,
// posting to an incoming webhook.
type SlackChannel struct {
	webhookURL string
}

// NewSlackChannel creates a Slack delivery channel for the given
// incoming-webhook URL.
func NewSlackChannel(webhookURL string) (*SlackChannel, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("slack webhook URL is required")
	}
	return &SlackChannel{webhookURL: webhookURL}, nil
}

// Name returns the channel name
func (c *SlackChannel) Name() string {
	return "slack"
}

// Deliver posts the notification to the webhook.
func (c *SlackChannel) Deliver(ctx context.Context, n *Notification) error {
	blocks := c.buildMessageBlocks(n)
	fallbackText := fmt.Sprintf("%s: %s", n.Title, n.Message)

	msg := &slack.WebhookMessage{
		Text: fallbackText,
		Blocks: &slack.Blocks{
			BlockSet: blocks,
		},
	}

	if err := slack.PostWebhookContext(ctx, c.webhookURL, msg); err != nil {
		return fmt.Errorf("failed to post Slack webhook: %w", err)
	}

	log.Info().
		Str("notification_id", n.ID).
		Str("url", n.PageURL).
		Msg("Slack alert sent")

	return nil
}

func (c *SlackChannel) buildMessageBlocks(n *Notification) []slack.Block {
	blocks := []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(
				"mrkdwn",
				fmt.Sprintf(":x: *%s*", n.Title),
				false,
				false,
			),
			nil,
			nil,
		),
	}

	if n.Message != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", n.Message, false, false),
			nil,
			nil,
		))
	}

	if n.PageURL != "" {
		blocks = append(blocks, slack.NewContextBlock(
			"",
			slack.NewTextBlockObject("mrkdwn", n.PageURL, false, false),
		))
	}

	return blocks
}
