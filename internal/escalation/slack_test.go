package escalation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/slack-go/slack"

	"github.com/ZeroSumQuant/cake/internal/bus"
)

type fakeSlack struct {
	channel string
	posts   int
	err     error
}

func (f *fakeSlack) PostMessageContext(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
	f.channel = channelID
	f.posts++
	return "", "", f.err
}

func TestSlackNotifierPostsToChannel(t *testing.T) {
	api := &fakeSlack{}
	n := &SlackNotifier{api: api, channel: "#ops"}

	err := n.Notify(context.Background(), &bus.EscalationNotice{NoticeID: "n-1", TaskID: "task-1"})
	if err != nil {
		t.Fatal(err)
	}
	if api.posts != 1 || api.channel != "#ops" {
		t.Fatalf("unexpected post state: %+v", api)
	}
}

func TestSlackNotifierWrapsError(t *testing.T) {
	api := &fakeSlack{err: errors.New("rate limited")}
	n := &SlackNotifier{api: api, channel: "#ops"}

	err := n.Notify(context.Background(), &bus.EscalationNotice{NoticeID: "n-1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("cause not wrapped: %v", err)
	}
}
