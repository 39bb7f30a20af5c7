// Package discord translates gateway voice-state events into presence events.
package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/rpggio/voicetally/internal/domain/voice"
)

// transition is what a voice-state change means for accounting.
type transition int

const (
	transitionNone transition = iota
	transitionJoin
	transitionLeave
)

// Adapter forwards voice joins and leaves from the gateway to a sink.
type Adapter struct {
	session *discordgo.Session
	sink    voice.PresenceEventSink
	logger  *slog.Logger
	ctx     context.Context
}

// New creates an Adapter for a bot token. Call Open to connect.
func New(token string, sink voice.PresenceEventSink, logger *slog.Logger) (*Adapter, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	a := newAdapter(sink, logger)
	a.session = session
	session.AddHandler(a.voiceStateUpdate)
	session.AddHandler(a.guildCreate)
	return a, nil
}

func newAdapter(sink voice.PresenceEventSink, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{sink: sink, logger: logger, ctx: context.Background()}
}

// Open connects to the gateway. Events are delivered with ctx. It must be
// called after startup cleanup, since every GuildCreate re-opens sessions for
// members already in voice.
func (a *Adapter) Open(ctx context.Context) error {
	a.ctx = ctx
	if err := a.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	a.logger.Info("discord gateway connected")
	return nil
}

// Close disconnects from the gateway.
func (a *Adapter) Close() error {
	return a.session.Close()
}

func (a *Adapter) voiceStateUpdate(_ *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.VoiceState == nil || isBot(vs.Member) {
		return
	}

	switch classify(vs.BeforeUpdate, vs.VoiceState) {
	case transitionJoin:
		a.logger.Debug("voice join", "guild_id", vs.GuildID, "user_id", vs.UserID, "channel_id", vs.ChannelID)
		a.sink.OnJoin(a.ctx, vs.GuildID, vs.UserID)
	case transitionLeave:
		a.logger.Debug("voice leave", "guild_id", vs.GuildID, "user_id", vs.UserID)
		a.sink.OnLeave(a.ctx, vs.GuildID, vs.UserID)
	}
}

// guildCreate opens sessions for members who were already in voice when the
// guild became available.
func (a *Adapter) guildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Guild == nil {
		return
	}

	bots := make(map[string]bool)
	for _, m := range g.Members {
		if isBot(m) {
			bots[m.User.ID] = true
		}
	}

	resynced := 0
	for _, vs := range g.VoiceStates {
		if vs == nil || vs.ChannelID == "" || bots[vs.UserID] || isBot(vs.Member) {
			continue
		}
		a.sink.OnJoin(a.ctx, g.ID, vs.UserID)
		resynced++
	}
	a.logger.Info("guild voice state resynced", "guild_id", g.ID, "members_in_voice", resynced)
}

// classify maps a voice-state change to a join, a leave, or nothing. A move
// between channels and mute or deafen changes keep the member in voice. A
// leave is reported even when the previous state is unknown.
func classify(before, after *discordgo.VoiceState) transition {
	if after.ChannelID == "" {
		if before != nil && before.ChannelID == "" {
			return transitionNone
		}
		return transitionLeave
	}
	if before == nil || before.ChannelID == "" {
		return transitionJoin
	}
	return transitionNone
}

func isBot(m *discordgo.Member) bool {
	return m != nil && m.User != nil && m.User.Bot
}
