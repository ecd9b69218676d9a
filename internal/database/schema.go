package database

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// schema is written once for both dialects; initializeSchema swaps the
// {{...}} markers for the driver's column types.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS gamification_profiles (
		user_id BIGINT PRIMARY KEY,
		xp_total INTEGER NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 1,
		current_streak INTEGER NOT NULL DEFAULT 0,
		longest_streak INTEGER NOT NULL DEFAULT 0,
		hearts INTEGER NOT NULL DEFAULT 5,
		timezone TEXT NOT NULL DEFAULT 'UTC',
		reminder_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		reminder_hour INTEGER NOT NULL DEFAULT 9,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,

	// Target is a tagged union: exactly one kind, exactly one id
	`CREATE TABLE IF NOT EXISTS cards (
		id {{pk}},
		user_id BIGINT NOT NULL,
		target_kind TEXT NOT NULL CHECK (target_kind IN ('word', 'letter')),
		target_id BIGINT NOT NULL,
		repetitions INTEGER NOT NULL DEFAULT 0,
		interval_days INTEGER NOT NULL DEFAULT 0,
		ease_factor {{float}} NOT NULL DEFAULT 2.5,
		due_at {{ts}} NOT NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		UNIQUE (user_id, target_kind, target_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cards_user_due ON cards (user_id, due_at)`,

	`CREATE TABLE IF NOT EXISTS item_strengths (
		user_id BIGINT NOT NULL,
		word_id BIGINT NOT NULL,
		category TEXT NOT NULL DEFAULT 'General',
		strength INTEGER NOT NULL DEFAULT 0,
		last_seen {{ts}} NOT NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		PRIMARY KEY (user_id, word_id)
	)`,

	`CREATE TABLE IF NOT EXISTS daily_stats (
		id {{pk}},
		user_id BIGINT NOT NULL,
		day TEXT NOT NULL,
		minutes INTEGER NOT NULL DEFAULT 0,
		reviews INTEGER NOT NULL DEFAULT 0,
		new_items INTEGER NOT NULL DEFAULT 0,
		lessons INTEGER NOT NULL DEFAULT 0,
		xp_earned INTEGER NOT NULL DEFAULT 0,
		UNIQUE (user_id, day)
	)`,

	`CREATE TABLE IF NOT EXISTS user_badges (
		user_id BIGINT NOT NULL,
		badge_id TEXT NOT NULL,
		earned_at {{ts}} NOT NULL,
		PRIMARY KEY (user_id, badge_id)
	)`,

	`CREATE TABLE IF NOT EXISTS mission_templates (
		id {{pk}},
		title TEXT NOT NULL UNIQUE,
		mission_type TEXT NOT NULL CHECK (mission_type IN ('review', 'lesson', 'new_item', 'time')),
		required_count INTEGER NOT NULL DEFAULT 1,
		xp_reward INTEGER NOT NULL DEFAULT 10,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,

	`CREATE TABLE IF NOT EXISTS mission_progress (
		id {{pk}},
		user_id BIGINT NOT NULL,
		mission_id BIGINT NOT NULL REFERENCES mission_templates(id),
		day TEXT NOT NULL,
		current_progress INTEGER NOT NULL DEFAULT 0,
		is_completed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		UNIQUE (user_id, mission_id, day)
	)`,

	`CREATE TABLE IF NOT EXISTS weak_areas (
		user_id BIGINT NOT NULL,
		category TEXT NOT NULL,
		weak_count INTEGER NOT NULL DEFAULT 0,
		urgency INTEGER NOT NULL DEFAULT 0,
		updated_at {{ts}} NOT NULL,
		PRIMARY KEY (user_id, category)
	)`,

	`CREATE TABLE IF NOT EXISTS grade_events (
		user_id BIGINT NOT NULL,
		event_key TEXT NOT NULL,
		card_id BIGINT NOT NULL,
		grade INTEGER NOT NULL,
		created_at {{ts}} NOT NULL,
		PRIMARY KEY (user_id, event_key)
	)`,

	// Content tables are owned by the course platform; they are created here
	// so that a standalone SQLite deployment has something to read from.
	`CREATE TABLE IF NOT EXISTS letters (
		id {{pk}},
		symbol TEXT NOT NULL,
		ord INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS words (
		id {{pk}},
		text TEXT NOT NULL,
		category TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS lesson_words (
		lesson_id BIGINT NOT NULL,
		word_id BIGINT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (lesson_id, word_id)
	)`,
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(db *sqlx.DB) error {
	types := strings.NewReplacer(
		"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{ts}}", "TIMESTAMP",
		"{{float}}", "REAL",
	)
	if db.DriverName() == DriverPostgres {
		types = strings.NewReplacer(
			"{{pk}}", "BIGSERIAL PRIMARY KEY",
			"{{ts}}", "TIMESTAMPTZ",
			"{{float}}", "DOUBLE PRECISION",
		)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(types.Replace(stmt)); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
