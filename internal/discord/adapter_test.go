package discord

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
)

type event struct {
	kind    string
	guildID string
	userID  string
}

type recordingSink struct {
	events []event
}

func (s *recordingSink) OnJoin(_ context.Context, guildID, userID string) {
	s.events = append(s.events, event{"join", guildID, userID})
}

func (s *recordingSink) OnLeave(_ context.Context, guildID, userID string) {
	s.events = append(s.events, event{"leave", guildID, userID})
}

func state(channelID string) *discordgo.VoiceState {
	return &discordgo.VoiceState{GuildID: "g1", UserID: "u1", ChannelID: channelID}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		before *discordgo.VoiceState
		after  *discordgo.VoiceState
		want   transition
	}{
		{"join from nothing", nil, state("c1"), transitionJoin},
		{"join from empty state", state(""), state("c1"), transitionJoin},
		{"leave", state("c1"), state(""), transitionLeave},
		{"leave with unknown previous state", nil, state(""), transitionLeave},
		{"move", state("c1"), state("c2"), transitionNone},
		{"mute in same channel", state("c1"), &discordgo.VoiceState{ChannelID: "c1", SelfMute: true}, transitionNone},
		{"no channel before or after", state(""), state(""), transitionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, classify(tt.before, tt.after))
		})
	}
}

func TestVoiceStateUpdate(t *testing.T) {
	sink := &recordingSink{}
	a := newAdapter(sink, nil)

	a.voiceStateUpdate(nil, &discordgo.VoiceStateUpdate{VoiceState: state("c1")})
	a.voiceStateUpdate(nil, &discordgo.VoiceStateUpdate{VoiceState: state("c2"), BeforeUpdate: state("c1")})
	a.voiceStateUpdate(nil, &discordgo.VoiceStateUpdate{VoiceState: state(""), BeforeUpdate: state("c2")})

	botState := state("c1")
	botState.UserID = "bot"
	botState.Member = &discordgo.Member{User: &discordgo.User{ID: "bot", Bot: true}}
	a.voiceStateUpdate(nil, &discordgo.VoiceStateUpdate{VoiceState: botState})

	require.Equal(t, []event{
		{"join", "g1", "u1"},
		{"leave", "g1", "u1"},
	}, sink.events)
}

func TestGuildCreate_Resync(t *testing.T) {
	sink := &recordingSink{}
	a := newAdapter(sink, nil)

	a.guildCreate(nil, &discordgo.GuildCreate{Guild: &discordgo.Guild{
		ID: "g1",
		Members: []*discordgo.Member{
			{User: &discordgo.User{ID: "u1"}},
			{User: &discordgo.User{ID: "bot", Bot: true}},
		},
		VoiceStates: []*discordgo.VoiceState{
			{UserID: "u1", ChannelID: "c1"},
			{UserID: "bot", ChannelID: "c1"},
			{UserID: "u2", ChannelID: "c2"},
			{UserID: "u3"},
		},
	}})

	require.Equal(t, []event{
		{"join", "g1", "u1"},
		{"join", "g1", "u2"},
	}, sink.events)
}
