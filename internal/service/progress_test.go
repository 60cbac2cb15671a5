package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/streamfan/internal/notify"
)

func TestParseProgress(t *testing.T) {
	cases := []struct {
		in   string
		want cursor
		out  string
	}{
		{"", cursor{stage: stageStart}, ""},
		{"inboxes:", cursor{stage: stageInboxes}, "inboxes:"},
		{"inboxes:inbox/bob/overview", cursor{stage: stageInboxes, after: "inbox/bob/overview"}, "inboxes:inbox/bob/overview"},
		{"notifications:", cursor{stage: stageNotify, channel: notify.ChannelIM}, "notifications:im:"},
		{"notifications:sms:inbox/a:b/overview", cursor{stage: stageNotify, channel: notify.ChannelSMS, after: "inbox/a:b/overview"}, "notifications:sms:inbox/a:b/overview"},
		{"notifications:email:", cursor{stage: stageNotify, channel: notify.ChannelEmail}, "notifications:email:"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parseProgress(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.out, got.String())
		})
	}
}

func TestParseProgress_Invalid(t *testing.T) {
	for _, in := range []string{"bogus", "notifications:fax:", "notifications:im", "inbox:"} {
		_, err := parseProgress(in)
		assert.ErrorIs(t, err, ErrInvalidProgress, in)
	}
}

func TestNextChannel(t *testing.T) {
	ch, ok := nextChannel(notify.ChannelIM)
	assert.True(t, ok)
	assert.Equal(t, notify.ChannelSMS, ch)
	ch, ok = nextChannel(notify.ChannelSMS)
	assert.True(t, ok)
	assert.Equal(t, notify.ChannelEmail, ch)
	_, ok = nextChannel(notify.ChannelEmail)
	assert.False(t, ok)
}
