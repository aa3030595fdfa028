package points

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists point totals and achievements in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a points store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get returns a user's point total. Users with no recorded points get a zero
// total at level 1.
func (s *Store) Get(ctx context.Context, userID string) (*UserPoints, error) {
	p := &UserPoints{UserID: userID}
	err := s.pool.QueryRow(ctx,
		`SELECT total, updated_at FROM user_points WHERE user_id = $1`, userID).
		Scan(&p.Total, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		p.Level = Level(0)
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading points: %w", err)
	}
	p.Level = Level(p.Total)
	return p, nil
}

// Add credits points to a user, creating the row on first award. The second
// return reports whether the award crossed a level boundary.
func (s *Store) Add(ctx context.Context, userID string, amount int) (*UserPoints, bool, error) {
	p := &UserPoints{UserID: userID}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO user_points (user_id, total) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
			SET total = user_points.total + EXCLUDED.total, updated_at = now()
		RETURNING total, updated_at`,
		userID, amount).Scan(&p.Total, &p.UpdatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("adding points: %w", err)
	}
	p.Level = Level(p.Total)
	leveledUp := p.Level > Level(p.Total-amount)
	return p, leveledUp, nil
}

// ListAchievements returns the full achievement catalog ordered by
// threshold.
func (s *Store) ListAchievements(ctx context.Context) ([]*Achievement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, code, title, description, icon, threshold FROM achievements ORDER BY threshold`)
	if err != nil {
		return nil, fmt.Errorf("listing achievements: %w", err)
	}
	defer rows.Close()

	var out []*Achievement
	for rows.Next() {
		var a Achievement
		if err := rows.Scan(&a.ID, &a.Code, &a.Title, &a.Description, &a.Icon, &a.Threshold); err != nil {
			return nil, fmt.Errorf("scanning achievement: %w", err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing achievements: %w", err)
	}
	return out, nil
}

// ListEarned returns the ids of achievements the user has earned.
func (s *Store) ListEarned(ctx context.Context, userID string) ([]*UserAchievement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, achievement_id, earned_at FROM user_achievements WHERE user_id = $1 ORDER BY earned_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("listing earned achievements: %w", err)
	}
	defer rows.Close()

	var out []*UserAchievement
	for rows.Next() {
		var ua UserAchievement
		if err := rows.Scan(&ua.UserID, &ua.AchievementID, &ua.EarnedAt); err != nil {
			return nil, fmt.Errorf("scanning earned achievement: %w", err)
		}
		out = append(out, &ua)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing earned achievements: %w", err)
	}
	return out, nil
}

// Grant marks an achievement as earned. Returns false when the user already
// had it.
func (s *Store) Grant(ctx context.Context, userID, achievementID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id) VALUES ($1, $2)
		ON CONFLICT (user_id, achievement_id) DO NOTHING`,
		userID, achievementID)
	if err != nil {
		return false, fmt.Errorf("granting achievement: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertAchievement installs or refreshes a catalog entry, keyed by code.
// Used by the seed command.
func (s *Store) UpsertAchievement(ctx context.Context, a *Achievement) (*Achievement, error) {
	var out Achievement
	err := s.pool.QueryRow(ctx, `
		INSERT INTO achievements (code, title, description, icon, threshold)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			icon = EXCLUDED.icon,
			threshold = EXCLUDED.threshold
		RETURNING id, code, title, description, icon, threshold`,
		a.Code, a.Title, a.Description, a.Icon, a.Threshold).
		Scan(&out.ID, &out.Code, &out.Title, &out.Description, &out.Icon, &out.Threshold)
	if err != nil {
		return nil, fmt.Errorf("upserting achievement %q: %w", a.Code, err)
	}
	return &out, nil
}

// UnlockedBy returns catalog achievements whose threshold the total now
// meets but the user has not earned yet.
func (s *Store) UnlockedBy(ctx context.Context, userID string, total int) ([]*Achievement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.code, a.title, a.description, a.icon, a.threshold
		FROM achievements a
		WHERE a.threshold <= $2
		  AND NOT EXISTS (
			SELECT 1 FROM user_achievements ua
			WHERE ua.user_id = $1 AND ua.achievement_id = a.id)
		ORDER BY a.threshold`,
		userID, total)
	if err != nil {
		return nil, fmt.Errorf("finding unlocked achievements: %w", err)
	}
	defer rows.Close()

	var out []*Achievement
	for rows.Next() {
		var a Achievement
		if err := rows.Scan(&a.ID, &a.Code, &a.Title, &a.Description, &a.Icon, &a.Threshold); err != nil {
			return nil, fmt.Errorf("scanning achievement: %w", err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finding unlocked achievements: %w", err)
	}
	return out, nil
}
