package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// UserDetection counts spam verdicts per user and result so repeat offenders
// are visible in the diagnostic log even after their in-memory window expires.
type UserDetection struct {
	GuildID    string
	UserID     string
	Result     string
	CountTotal int
	LastAt     time.Time
	RefChannel string
}

func (s *Store) GetDetection(ctx context.Context, guildID, userID, result string) (UserDetection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, user_id, result, count_total, last_at, COALESCE(ref_channel, '')
		FROM user_detections
		WHERE guild_id = ? AND user_id = ? AND result = ?
	`, guildID, userID, result)

	var det UserDetection
	var lastAt int64
	err := row.Scan(&det.GuildID, &det.UserID, &det.Result, &det.CountTotal, &lastAt, &det.RefChannel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserDetection{}, nil
		}
		return UserDetection{}, err
	}
	det.LastAt = time.Unix(lastAt, 0)
	return det, nil
}

func (s *Store) IncrementDetection(ctx context.Context, guildID, userID, result, refChannel string) (int, error) {
	now := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var count int
	row := tx.QueryRowContext(ctx, `
		SELECT count_total
		FROM user_detections
		WHERE guild_id = ? AND user_id = ? AND result = ?
	`, guildID, userID, result)
	scanErr := row.Scan(&count)
	if scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
		err = scanErr
		return 0, err
	}

	count++
	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_detections (guild_id, user_id, result, count_total, last_at, ref_channel)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id, result) DO UPDATE SET
			count_total = excluded.count_total,
			last_at = excluded.last_at,
			ref_channel = excluded.ref_channel
	`, guildID, userID, result, count, now.Unix(), refChannel)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

type Report struct {
	Total    int
	ByResult map[string]int
}

// DetectionReport aggregates audit events per result since the given time.
func (s *Store) DetectionReport(ctx context.Context, guildID string, since time.Time) (Report, error) {
	logs, err := s.ListAuditLogs(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{ByResult: make(map[string]int)}
	for _, log := range logs {
		report.Total++
		report.ByResult[log.Event]++
	}
	return report, nil
}
