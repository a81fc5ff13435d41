package sweeper

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"honeypot-guard/internal/modules/audit"

	"go.uber.org/zap"
)

const (
	// backlogFetchLimit is the history depth of the initial sweep.
	backlogFetchLimit = 100
	// monitorFetchLimit only needs to cover messages posted since the last
	// tick, so a shallow fetch is enough.
	monitorFetchLimit = 10
)

type Channel struct {
	ID   string
	Name string
}

type Message struct {
	ID       string
	AuthorID string
	Content  string
	PostedAt time.Time
}

// Gateway is the chat-platform surface the scheduler drives. Recent returns
// the newest messages first, at most limit of them.
type Gateway interface {
	Channels(guildID string) ([]Channel, error)
	Access(channelID string) (canView, canManage bool)
	Recent(channelID string, limit int) ([]Message, error)
	Delete(channelID, messageID string) error
}

// Window is the inclusive [Start, End] interval around a trigger message
// within which the offender's messages are removed.
type Window struct {
	Start time.Time
	End   time.Time
}

func NewWindow(trigger time.Time, past, future time.Duration) Window {
	return Window{Start: trigger.Add(-past), End: trigger.Add(future)}
}

func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && !ts.After(w.End)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Scheduler struct {
	gateway      Gateway
	logger       *zap.Logger
	audit        *audit.Logger
	clock        Clock
	pollInterval time.Duration
}

func New(gateway Gateway, logger *zap.Logger, auditLogger *audit.Logger) *Scheduler {
	return &Scheduler{
		gateway:      gateway,
		logger:       logger,
		audit:        auditLogger,
		clock:        realClock{},
		pollInterval: time.Second,
	}
}

func (s *Scheduler) WithClock(clock Clock) {
	s.clock = clock
}

// Execute clears the offender's backlog across all permitted channels, then
// detaches a monitor that keeps deleting new messages until the window
// closes. The call returns once the backlog sweep has finished; the monitor
// does not block the caller.
func (s *Scheduler) Execute(ctx context.Context, guildID, userID string, window Window) {
	deleted := s.sweepOnce(guildID, userID, window, backlogFetchLimit)
	s.logger.Info("backlog sweep complete",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.Int64("deleted", deleted),
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End))
	s.audit.Log(ctx, audit.LevelWarn, guildID, userID, "sweep_complete",
		"deleted="+strconv.FormatInt(deleted, 10)+" phase=backlog")

	go s.monitor(ctx, guildID, userID, window)
}

// sweepOnce fans out over every permitted channel concurrently. A failure
// fetching one channel's history or deleting one message is logged and
// isolated; it never aborts the other channels.
func (s *Scheduler) sweepOnce(guildID, userID string, window Window, limit int) int64 {
	channels, err := s.gateway.Channels(guildID)
	if err != nil {
		s.logger.Error("channel listing failed", zap.String("guild_id", guildID), zap.Error(err))
		return 0
	}

	var deleted int64
	var wg sync.WaitGroup
	for _, channel := range channels {
		canView, canManage := s.gateway.Access(channel.ID)
		if !canView || !canManage {
			continue
		}

		wg.Add(1)
		go func(channel Channel) {
			defer wg.Done()
			messages, err := s.gateway.Recent(channel.ID, limit)
			if err != nil {
				s.logger.Error("history fetch failed",
					zap.String("channel", channel.Name),
					zap.String("channel_id", channel.ID),
					zap.Error(err))
				return
			}
			for _, msg := range messages {
				if msg.AuthorID != userID || !window.Contains(msg.PostedAt) {
					continue
				}
				if err := s.gateway.Delete(channel.ID, msg.ID); err != nil {
					s.logger.Error("message delete failed",
						zap.String("channel", channel.Name),
						zap.String("message_id", msg.ID),
						zap.Error(err))
					continue
				}
				atomic.AddInt64(&deleted, 1)
				s.logger.Info("deleted message",
					zap.String("channel", channel.Name),
					zap.String("user_id", userID),
					zap.Time("posted_at", msg.PostedAt))
			}
		}(channel)
	}
	wg.Wait()

	return atomic.LoadInt64(&deleted)
}

// monitor polls the permitted channels once per interval until wall-clock
// time passes the window's end. Permissions are re-checked on every tick via
// sweepOnce; they are never cached since they can change mid-window.
func (s *Scheduler) monitor(ctx context.Context, guildID, userID string, window Window) {
	remaining := window.End.Sub(s.clock.Now())
	if remaining <= 0 {
		return
	}
	s.logger.Info("monitoring user",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.Duration("remaining", remaining))

	var deleted int64
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for s.clock.Now().Before(window.End) {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted += s.sweepOnce(guildID, userID, window, monitorFetchLimit)
		}
	}

	s.logger.Info("monitor finished",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.Int64("deleted", deleted))
	s.audit.Log(ctx, audit.LevelInfo, guildID, userID, "monitor_finished",
		"deleted="+strconv.FormatInt(deleted, 10)+" phase=monitor")
}
