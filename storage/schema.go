package storage

import (
	"context"
	"database/sql"
	"fmt"
)

func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			two_factor_secret TEXT NOT NULL DEFAULT '',
			two_factor_enabled INTEGER NOT NULL DEFAULT 0,
			current_xp INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 1,
			total_points INTEGER NOT NULL DEFAULT 0,
			current_streak INTEGER NOT NULL DEFAULT 0,
			longest_streak INTEGER NOT NULL DEFAULT 0,
			tasks_completed INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			last_active_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT 'MEDIUM',
			status TEXT NOT NULL DEFAULT 'PENDING',
			points INTEGER NOT NULL DEFAULT 0,
			category TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			due_date DATETIME,
			completed_at DATETIME,
			recurrence TEXT NOT NULL DEFAULT 'NONE',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			synced_at DATETIME,
			FOREIGN KEY(user_id) REFERENCES user(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS attachments (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			file_name TEXT NOT NULL,
			mime_type TEXT NOT NULL DEFAULT '',
			size_bytes INTEGER NOT NULL DEFAULT 0,
			type TEXT NOT NULL DEFAULT 'OTHER',
			local_path TEXT NOT NULL DEFAULT '',
			remote_path TEXT NOT NULL DEFAULT '',
			upload_status TEXT NOT NULL DEFAULT 'PENDING',
			upload_error TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			uploaded_at DATETIME,
			FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE,
			FOREIGN KEY(user_id) REFERENCES user(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS user_stats (
			user_id TEXT PRIMARY KEY,
			total_points INTEGER NOT NULL DEFAULT 0,
			weekly_points INTEGER NOT NULL DEFAULT 0,
			monthly_points INTEGER NOT NULL DEFAULT 0,
			tasks_completed_today INTEGER NOT NULL DEFAULT 0,
			tasks_completed_this_week INTEGER NOT NULL DEFAULT 0,
			tasks_completed_this_month INTEGER NOT NULL DEFAULT 0,
			total_tasks INTEGER NOT NULL DEFAULT 0,
			completed_tasks INTEGER NOT NULL DEFAULT 0,
			completion_rate REAL NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY(user_id) REFERENCES user(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS achievements (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			target INTEGER NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			points_reward INTEGER NOT NULL DEFAULT 0,
			unlocked INTEGER NOT NULL DEFAULT 0,
			unlocked_at DATETIME,
			created_at DATETIME NOT NULL,
			FOREIGN KEY(user_id) REFERENCES user(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS leaderboard (
			user_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			level INTEGER NOT NULL DEFAULT 1,
			total_points INTEGER NOT NULL DEFAULT 0,
			weekly_points INTEGER NOT NULL DEFAULT 0,
			current_streak INTEGER NOT NULL DEFAULT 0,
			rank INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY(user_id) REFERENCES user(id) ON DELETE CASCADE
		);`,
		// Points ledger. Task rows are unique per task and outlive the task;
		// bonus rows have no task. The stats rollup is recomputed from it.
		`CREATE TABLE IF NOT EXISTS task_completions (
			id TEXT PRIMARY KEY,
			task_id TEXT UNIQUE,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT 'task',
			points INTEGER NOT NULL,
			xp INTEGER NOT NULL,
			completed_at DATETIME NOT NULL,
			FOREIGN KEY(user_id) REFERENCES user(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			device_info TEXT NOT NULL DEFAULT '',
			ip_address TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			last_activity_at DATETIME NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			FOREIGN KEY(user_id) REFERENCES user(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS password_resets (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			expires_at DATETIME NOT NULL,
			used INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY(user_id) REFERENCES user(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user_status ON tasks(user_id, status);`,
		`CREATE INDEX IF NOT EXISTS idx_attachments_task ON attachments(task_id);`,
		`CREATE INDEX IF NOT EXISTS idx_attachments_status ON attachments(user_id, upload_status);`,
		`CREATE INDEX IF NOT EXISTS idx_achievements_user ON achievements(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_completions_user_date ON task_completions(user_id, completed_at);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, is_active);`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_rank ON leaderboard(rank);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
