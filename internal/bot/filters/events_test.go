package filters

import (
	"testing"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextFromUser(t *testing.T) {
	ev, ok := TextFromUser(webhook.MessageEvent{
		ReplyToken: "rt",
		Source:     webhook.UserSource{UserId: "U1"},
		Message:    webhook.TextMessageContent{Text: "  消費 チョコ  "},
	})
	require.True(t, ok)
	assert.Equal(t, &TextEvent{UserID: "U1", ReplyToken: "rt", Text: "消費 チョコ"}, ev)
}

func TestTextFromUser_GroupAndRoomSenders(t *testing.T) {
	tests := []struct {
		name   string
		source webhook.SourceInterface
	}{
		{"group", webhook.GroupSource{GroupId: "G1", UserId: "U7"}},
		{"room", webhook.RoomSource{RoomId: "R1", UserId: "U7"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := TextFromUser(webhook.MessageEvent{
				ReplyToken: "rt",
				Source:     tt.source,
				Message:    webhook.TextMessageContent{Text: "ヘルプ"},
			})
			require.True(t, ok)
			assert.Equal(t, &TextEvent{UserID: "U7", ReplyToken: "rt", Text: "ヘルプ"}, ev)
		})
	}
}

func TestTextFromUser_Skips(t *testing.T) {
	tests := []struct {
		name  string
		event webhook.EventInterface
	}{
		{"follow", webhook.FollowEvent{ReplyToken: "rt", Source: webhook.UserSource{UserId: "U1"}}},
		{"sticker", webhook.MessageEvent{
			Source:  webhook.UserSource{UserId: "U1"},
			Message: webhook.StickerMessageContent{PackageId: "1", StickerId: "2"},
		}},
		{"group without user id", webhook.MessageEvent{
			Source:  webhook.GroupSource{GroupId: "G1"},
			Message: webhook.TextMessageContent{Text: "一覧"},
		}},
		{"room without user id", webhook.MessageEvent{
			Source:  webhook.RoomSource{RoomId: "R1"},
			Message: webhook.TextMessageContent{Text: "一覧"},
		}},
		{"no user id", webhook.MessageEvent{
			Source:  webhook.UserSource{},
			Message: webhook.TextMessageContent{Text: "一覧"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := TextFromUser(tt.event)
			assert.False(t, ok)
		})
	}
}
