package points

import "time"

// pointsPerLevel is how many points advance a user one level.
const pointsPerLevel = 100

// Level derives a user's level from their lifetime point total. A fresh user
// starts at level 1.
func Level(total int) int {
	if total < 0 {
		total = 0
	}
	return total/pointsPerLevel + 1
}

// UserPoints is one user's lifetime point total.
type UserPoints struct {
	UserID    string    `json:"user_id"`
	Total     int       `json:"total"`
	Level     int       `json:"level"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Achievement is a badge granted when a user's total crosses its threshold.
type Achievement struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Threshold   int    `json:"threshold"`
}

// UserAchievement records when a user earned an achievement.
type UserAchievement struct {
	UserID        string    `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	EarnedAt      time.Time `json:"earned_at"`
}
