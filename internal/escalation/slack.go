package escalation

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/ZeroSumQuant/cake/internal/bus"
)

// slackAPI is the slice of the Slack client the notifier needs.
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier delivers escalation notices to a Slack channel.
type SlackNotifier struct {
	api     slackAPI
	channel string
}

// NewSlackNotifier creates a notifier posting to the given channel.
func NewSlackNotifier(token, channel string) *SlackNotifier {
	return &SlackNotifier{
		api:     slack.New(token),
		channel: channel,
	}
}

// Notify implements Notifier.
func (s *SlackNotifier) Notify(ctx context.Context, n *bus.EscalationNotice) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(FormatNotice(n), false),
	)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	return nil
}
