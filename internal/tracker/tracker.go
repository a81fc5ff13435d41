package tracker

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"honeypot-guard/internal/utils"
)

type Result string

const (
	Clean             Result = "clean"
	Ignored           Result = "ignored"
	HoneypotTriggered Result = "honeypot_triggered"
	HoneypotDetected  Result = "honeypot_detected"
	DuplicateDetected Result = "duplicate_detected"
)

// Verdict is the classification outcome for one message. RefChannel is set
// only for DuplicateDetected and names the channel where the original copy
// was seen; empty means no reference channel.
type Verdict struct {
	Result     Result
	Reason     string
	RefChannel string
}

type Config struct {
	DeltaInterval       time.Duration
	MinMsgLength        int
	LinkRequired        bool
	SimilarityThreshold float64
	HoneypotChannel     string
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type trackedMessage struct {
	channelID string
	content   string
	postedAt  time.Time
}

type userWindow struct {
	mu       sync.Mutex
	messages []trackedMessage
}

// Store holds the per-user message windows and honeypot marks. Windows are
// guarded per user so classification calls for different users never contend;
// marks are independent entries under their own lock.
type Store struct {
	cfg   Config
	clock Clock

	mu      sync.Mutex
	windows map[string]*userWindow

	markMu sync.Mutex
	marks  map[string]time.Time
}

func New(cfg Config) *Store {
	return &Store{
		cfg:     cfg,
		clock:   realClock{},
		windows: make(map[string]*userWindow),
		marks:   make(map[string]time.Time),
	}
}

func (s *Store) WithClock(clock Clock) {
	s.clock = clock
}

// Classify runs the detection chain for one incoming message. The checks are
// a strict priority order: an active honeypot mark flags every message from
// that user before anything else is inspected, a honeypot-channel post sets
// the mark, and only messages passing the tracking filter reach the
// cross-channel duplicate scan.
func (s *Store) Classify(channelName, userID, channelID, content string, postedAt time.Time) Verdict {
	if content == "" {
		return Verdict{Result: Ignored, Reason: "no content"}
	}

	s.cleanupMarks(postedAt)

	if markedAt, ok := s.mark(userID); ok && postedAt.Sub(markedAt) <= s.cfg.DeltaInterval {
		return Verdict{Result: HoneypotDetected, Reason: "user previously posted in honeypot channel"}
	}

	if channelName == s.cfg.HoneypotChannel {
		s.setMark(userID, postedAt)
		return Verdict{Result: HoneypotTriggered, Reason: "posted in honeypot channel " + s.cfg.HoneypotChannel}
	}

	if !s.ShouldTrack(content) {
		return Verdict{Result: Ignored, Reason: "message does not meet tracking criteria"}
	}

	if ref, dup := s.scanAndTrack(userID, channelID, content, postedAt); dup {
		return Verdict{Result: DuplicateDetected, Reason: "similar message previously posted in another channel", RefChannel: ref}
	}

	return Verdict{Result: Clean, Reason: "message is clean"}
}

// ShouldTrack is the quality filter for duplicate tracking: long enough to be
// worth comparing, and carrying a link when one is required.
func (s *Store) ShouldTrack(content string) bool {
	if utf8.RuneCountInString(content) < s.cfg.MinMsgLength {
		return false
	}
	if s.cfg.LinkRequired && !utils.ContainsLink(content) {
		return false
	}
	return true
}

// scanAndTrack purges the user's window, scans it for a cross-channel
// duplicate and, when none is found, appends the message. Holding the window
// lock across scan and append serializes concurrent classifications for the
// same user.
func (s *Store) scanAndTrack(userID, channelID, content string, postedAt time.Time) (string, bool) {
	window := s.lockWindow(userID)
	defer window.mu.Unlock()

	window.purge(postedAt, s.cfg.DeltaInterval)

	for _, msg := range window.messages {
		if msg.channelID == channelID {
			continue
		}
		if postedAt.Sub(msg.postedAt) > s.cfg.DeltaInterval {
			continue
		}
		if utils.Similarity(content, msg.content) >= s.cfg.SimilarityThreshold {
			return msg.channelID, true
		}
	}

	window.messages = append(window.messages, trackedMessage{channelID: channelID, content: content, postedAt: postedAt})
	return "", false
}

// Sweep drops honeypot marks and tracked messages older than the delta
// interval, removing user entries that become empty. Runs on a fixed cadence
// so idle users do not leak memory; purge-on-access only trims a user's own
// window when that user posts again.
func (s *Store) Sweep(now time.Time) {
	s.cleanupMarks(now)

	s.mu.Lock()
	users := make([]string, 0, len(s.windows))
	for userID := range s.windows {
		users = append(users, userID)
	}
	s.mu.Unlock()

	for _, userID := range users {
		s.mu.Lock()
		window := s.windows[userID]
		s.mu.Unlock()
		if window == nil {
			continue
		}

		window.mu.Lock()
		window.purge(now, s.cfg.DeltaInterval)
		empty := len(window.messages) == 0
		if empty {
			s.mu.Lock()
			// Re-check under the outer lock: a concurrent classify may have
			// re-populated the entry since the emptiness check.
			if len(window.messages) == 0 {
				delete(s.windows, userID)
			}
			s.mu.Unlock()
		}
		window.mu.Unlock()
	}
}

// RunCleanup sweeps on the given cadence until ctx is cancelled.
func (s *Store) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.clock.Now())
		}
	}
}

// lockWindow returns the user's window with its lock held. If a concurrent
// Sweep removed the entry between lookup and lock acquisition, the lookup is
// retried so no message is ever appended to an orphaned window.
func (s *Store) lockWindow(userID string) *userWindow {
	for {
		s.mu.Lock()
		window := s.windows[userID]
		if window == nil {
			window = &userWindow{}
			s.windows[userID] = window
		}
		s.mu.Unlock()

		window.mu.Lock()
		s.mu.Lock()
		current := s.windows[userID]
		s.mu.Unlock()
		if current == window {
			return window
		}
		window.mu.Unlock()
	}
}

func (w *userWindow) purge(now time.Time, delta time.Duration) {
	kept := w.messages[:0]
	for _, msg := range w.messages {
		if now.Sub(msg.postedAt) <= delta {
			kept = append(kept, msg)
		}
	}
	w.messages = kept
}

func (s *Store) mark(userID string) (time.Time, bool) {
	s.markMu.Lock()
	defer s.markMu.Unlock()
	at, ok := s.marks[userID]
	return at, ok
}

func (s *Store) setMark(userID string, at time.Time) {
	s.markMu.Lock()
	defer s.markMu.Unlock()
	s.marks[userID] = at
}

func (s *Store) cleanupMarks(now time.Time) {
	s.markMu.Lock()
	defer s.markMu.Unlock()
	for userID, at := range s.marks {
		if now.Sub(at) > s.cfg.DeltaInterval {
			delete(s.marks, userID)
		}
	}
}
