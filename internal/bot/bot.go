package bot

import (
	"context"
	"time"

	"honeypot-guard/internal/config"
	"honeypot-guard/internal/modules/audit"
	"honeypot-guard/internal/storage"
	"honeypot-guard/internal/sweeper"
	"honeypot-guard/internal/tracker"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const exemptPermissions = discordgo.PermissionAdministrator |
	discordgo.PermissionManageMessages |
	discordgo.PermissionModerateMembers

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	tracker   *tracker.Store
	scheduler *sweeper.Scheduler
	audit     *audit.Logger
	session   *discordgo.Session
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, trackerStore *tracker.Store, auditLogger *audit.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		tracker: trackerStore,
		audit:   auditLogger,
		session: session,
		ctx:     ctx,
		cancel:  cancel,
	}
	b.scheduler = sweeper.New(&discordGateway{session: session}, logger, auditLogger)

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	cleanup := time.Duration(b.cfg.Detection.CleanupIntervalMinutes) * time.Minute
	go b.tracker.RunCleanup(b.ctx, cleanup)
	go b.audit.RunRetention(b.ctx, 24*time.Hour, b.cfg.RetentionDays)

	return nil
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	b.cancel()
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready",
		zap.String("user", session.State.User.Username),
		zap.String("honeypot_channel", b.cfg.Detection.HoneypotChannel))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}
	if b.isExemptActor(msg.GuildID, msg.Author.ID) {
		return
	}

	channel := b.channel(msg.ChannelID)
	if channel == nil {
		return
	}
	if channel.Type != discordgo.ChannelTypeGuildText && channel.Type != discordgo.ChannelTypeGuildNews {
		return
	}

	verdict := b.tracker.Classify(channel.Name, msg.Author.ID, msg.ChannelID, msg.Content, msg.Timestamp)

	ctx := context.Background()
	switch verdict.Result {
	case tracker.Clean, tracker.Ignored:
		b.logger.Debug("message classified",
			zap.String("result", string(verdict.Result)),
			zap.String("user_id", msg.Author.ID),
			zap.String("channel", channel.Name))
	case tracker.HoneypotDetected:
		// The user is already inside an active moderation window; the monitor
		// spawned by the original trigger covers the sweep, so only the new
		// message itself needs removing.
		b.audit.Log(ctx, audit.LevelWarn, msg.GuildID, msg.Author.ID, string(verdict.Result), verdict.Reason)
		if err := session.ChannelMessageDelete(msg.ChannelID, msg.ID); err != nil {
			b.logger.Error("message delete failed",
				zap.String("channel", channel.Name),
				zap.String("message_id", msg.ID),
				zap.Error(err))
		}
	case tracker.HoneypotTriggered, tracker.DuplicateDetected:
		b.handleSpammer(ctx, msg, channel.Name, verdict)
	}
}

func (b *Bot) handleSpammer(ctx context.Context, msg *discordgo.MessageCreate, channelName string, verdict tracker.Verdict) {
	b.logger.Warn("potential spammer detected",
		zap.String("result", string(verdict.Result)),
		zap.String("user", msg.Author.Username),
		zap.String("channel", channelName))

	detail := "reason=" + verdict.Reason
	if verdict.RefChannel != "" {
		detail += " ref_channel=" + verdict.RefChannel
	}
	if domain := firstDomain(msg.Content); domain != "" {
		detail += " domain=" + domain
	}
	b.audit.Log(ctx, audit.LevelWarn, msg.GuildID, msg.Author.ID, string(verdict.Result), detail)

	if _, err := b.store.IncrementDetection(ctx, msg.GuildID, msg.Author.ID, string(verdict.Result), verdict.RefChannel); err != nil {
		b.logger.Error("detection record failed", zap.String("user_id", msg.Author.ID), zap.Error(err))
	}

	past := time.Duration(b.cfg.Sweep.PastIntervalSeconds) * time.Second
	future := time.Duration(b.cfg.Sweep.FutureIntervalSeconds) * time.Second
	window := sweeper.NewWindow(msg.Timestamp, past, future)

	go b.scheduler.Execute(b.ctx, msg.GuildID, msg.Author.ID, window)
}

func (b *Bot) channel(channelID string) *discordgo.Channel {
	channel, err := b.session.State.Channel(channelID)
	if err == nil && channel != nil {
		return channel
	}
	channel, _ = b.session.Channel(channelID)
	return channel
}

func (b *Bot) isExemptActor(guildID, userID string) bool {
	guild, err := b.session.State.Guild(guildID)
	if err != nil || guild == nil {
		guild, _ = b.session.Guild(guildID)
	}
	if guild == nil {
		return false
	}
	if guild.OwnerID == userID {
		return true
	}

	member := b.memberForUser(guildID, userID)
	if member == nil {
		return false
	}
	return guildPermissions(guild, member)&exemptPermissions != 0
}

func (b *Bot) memberForUser(guildID, userID string) *discordgo.Member {
	member, err := b.session.State.Member(guildID, userID)
	if err == nil && member != nil {
		return member
	}
	member, _ = b.session.GuildMember(guildID, userID)
	return member
}

func guildPermissions(guild *discordgo.Guild, member *discordgo.Member) int64 {
	perms := int64(0)
	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
		if role.ID == guild.ID {
			perms |= role.Permissions
		}
	}
	for _, roleID := range member.Roles {
		if role := roleMap[roleID]; role != nil {
			perms |= role.Permissions
		}
	}
	return perms
}
