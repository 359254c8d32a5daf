package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"taskquest/model"
)

// TaskRow is the column-level shape of a tasks row.
type TaskRow struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Priority    string
	Status      string
	Points      int
	Category    string
	Tags        string
	DueDate     sql.NullTime
	CompletedAt sql.NullTime
	Recurrence  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	SyncedAt    sql.NullTime
}

// TaskToRow never fails: tags are a plain string slice.
func TaskToRow(t model.Task) TaskRow {
	return TaskRow{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		Points:      t.Points,
		Category:    t.Category,
		Tags:        encodeTags(t.Tags),
		DueDate:     nullTime(t.DueDate),
		CompletedAt: nullTime(t.CompletedAt),
		Recurrence:  string(t.Recurrence),
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
		SyncedAt:    nullTime(t.SyncedAt),
	}
}

// TaskFromRow decodes a row. Tags are never nil after a load.
func TaskFromRow(r TaskRow) (model.Task, error) {
	tags, err := decodeTags(r.Tags)
	if err != nil {
		return model.Task{}, fmt.Errorf("task %s: %w", r.ID, err)
	}
	return model.Task{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		Priority:    model.Priority(r.Priority),
		Status:      model.TaskStatus(r.Status),
		Points:      r.Points,
		Category:    r.Category,
		Tags:        tags,
		DueDate:     timePtr(r.DueDate),
		CompletedAt: timePtr(r.CompletedAt),
		Recurrence:  model.RecurrenceType(r.Recurrence),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
		SyncedAt:    timePtr(r.SyncedAt),
	}, nil
}

func (r *TaskRow) scanArgs() []any {
	return []any{
		&r.ID, &r.UserID, &r.Title, &r.Description, &r.Priority, &r.Status,
		&r.Points, &r.Category, &r.Tags, &r.DueDate, &r.CompletedAt,
		&r.Recurrence, &r.CreatedAt, &r.UpdatedAt, &r.SyncedAt,
	}
}

func (r TaskRow) args() []any {
	return []any{
		r.ID, r.UserID, r.Title, r.Description, r.Priority, r.Status,
		r.Points, r.Category, r.Tags, r.DueDate, r.CompletedAt,
		r.Recurrence, r.CreatedAt, r.UpdatedAt, r.SyncedAt,
	}
}

const taskColumns = `id, user_id, title, description, priority, status, points, category, tags,
	due_date, completed_at, recurrence, created_at, updated_at, synced_at`

type UserRow struct {
	ID               string
	Email            string
	DisplayName      string
	AvatarURL        string
	PasswordHash     string
	TwoFactorSecret  string
	TwoFactorEnabled bool
	CurrentXP        int
	Level            int
	TotalPoints      int
	CurrentStreak    int
	LongestStreak    int
	TasksCompleted   int
	CreatedAt        time.Time
	LastActiveAt     sql.NullTime
}

func UserToRow(u model.User) UserRow {
	return UserRow{
		ID:               u.ID,
		Email:            u.Email,
		DisplayName:      u.DisplayName,
		AvatarURL:        u.AvatarURL,
		PasswordHash:     u.PasswordHash,
		TwoFactorSecret:  u.TwoFactorSecret,
		TwoFactorEnabled: u.TwoFactorEnabled,
		CurrentXP:        u.CurrentXP,
		Level:            u.Level,
		TotalPoints:      u.TotalPoints,
		CurrentStreak:    u.CurrentStreak,
		LongestStreak:    u.LongestStreak,
		TasksCompleted:   u.TasksCompleted,
		CreatedAt:        u.CreatedAt.UTC(),
		LastActiveAt:     nullTime(u.LastActiveAt),
	}
}

func UserFromRow(r UserRow) model.User {
	return model.User{
		ID:               r.ID,
		Email:            r.Email,
		DisplayName:      r.DisplayName,
		AvatarURL:        r.AvatarURL,
		PasswordHash:     r.PasswordHash,
		TwoFactorSecret:  r.TwoFactorSecret,
		TwoFactorEnabled: r.TwoFactorEnabled,
		CurrentXP:        r.CurrentXP,
		Level:            r.Level,
		TotalPoints:      r.TotalPoints,
		CurrentStreak:    r.CurrentStreak,
		LongestStreak:    r.LongestStreak,
		TasksCompleted:   r.TasksCompleted,
		CreatedAt:        r.CreatedAt.UTC(),
		LastActiveAt:     timePtr(r.LastActiveAt),
	}
}

func (r *UserRow) scanArgs() []any {
	return []any{
		&r.ID, &r.Email, &r.DisplayName, &r.AvatarURL, &r.PasswordHash,
		&r.TwoFactorSecret, &r.TwoFactorEnabled, &r.CurrentXP, &r.Level,
		&r.TotalPoints, &r.CurrentStreak, &r.LongestStreak, &r.TasksCompleted,
		&r.CreatedAt, &r.LastActiveAt,
	}
}

func (r UserRow) args() []any {
	return []any{
		r.ID, r.Email, r.DisplayName, r.AvatarURL, r.PasswordHash,
		r.TwoFactorSecret, r.TwoFactorEnabled, r.CurrentXP, r.Level,
		r.TotalPoints, r.CurrentStreak, r.LongestStreak, r.TasksCompleted,
		r.CreatedAt, r.LastActiveAt,
	}
}

const userColumns = `id, email, display_name, avatar_url, password_hash, two_factor_secret,
	two_factor_enabled, current_xp, level, total_points, current_streak, longest_streak,
	tasks_completed, created_at, last_active_at`

type AttachmentRow struct {
	ID           string
	TaskID       string
	UserID       string
	FileName     string
	MimeType     string
	SizeBytes    int64
	Type         string
	LocalPath    string
	RemotePath   string
	UploadStatus string
	UploadError  string
	CreatedAt    time.Time
	UploadedAt   sql.NullTime
}

func AttachmentToRow(a model.Attachment) AttachmentRow {
	return AttachmentRow{
		ID:           a.ID,
		TaskID:       a.TaskID,
		UserID:       a.UserID,
		FileName:     a.FileName,
		MimeType:     a.MimeType,
		SizeBytes:    a.SizeBytes,
		Type:         string(a.Type),
		LocalPath:    a.LocalPath,
		RemotePath:   a.RemotePath,
		UploadStatus: string(a.UploadStatus),
		UploadError:  a.UploadError,
		CreatedAt:    a.CreatedAt.UTC(),
		UploadedAt:   nullTime(a.UploadedAt),
	}
}

func AttachmentFromRow(r AttachmentRow) model.Attachment {
	return model.Attachment{
		ID:           r.ID,
		TaskID:       r.TaskID,
		UserID:       r.UserID,
		FileName:     r.FileName,
		MimeType:     r.MimeType,
		SizeBytes:    r.SizeBytes,
		Type:         model.AttachmentType(r.Type),
		LocalPath:    r.LocalPath,
		RemotePath:   r.RemotePath,
		UploadStatus: model.UploadStatus(r.UploadStatus),
		UploadError:  r.UploadError,
		CreatedAt:    r.CreatedAt.UTC(),
		UploadedAt:   timePtr(r.UploadedAt),
	}
}

func (r *AttachmentRow) scanArgs() []any {
	return []any{
		&r.ID, &r.TaskID, &r.UserID, &r.FileName, &r.MimeType, &r.SizeBytes,
		&r.Type, &r.LocalPath, &r.RemotePath, &r.UploadStatus, &r.UploadError,
		&r.CreatedAt, &r.UploadedAt,
	}
}

func (r AttachmentRow) args() []any {
	return []any{
		r.ID, r.TaskID, r.UserID, r.FileName, r.MimeType, r.SizeBytes,
		r.Type, r.LocalPath, r.RemotePath, r.UploadStatus, r.UploadError,
		r.CreatedAt, r.UploadedAt,
	}
}

const attachmentColumns = `id, task_id, user_id, file_name, mime_type, size_bytes, type,
	local_path, remote_path, upload_status, upload_error, created_at, uploaded_at`

type AchievementRow struct {
	ID           string
	UserID       string
	Type         string
	Title        string
	Description  string
	Target       int
	Progress     int
	PointsReward int
	Unlocked     bool
	UnlockedAt   sql.NullTime
	CreatedAt    time.Time
}

func AchievementToRow(a model.Achievement) AchievementRow {
	return AchievementRow{
		ID:           a.ID,
		UserID:       a.UserID,
		Type:         string(a.Type),
		Title:        a.Title,
		Description:  a.Description,
		Target:       a.Target,
		Progress:     a.Progress,
		PointsReward: a.PointsReward,
		Unlocked:     a.Unlocked,
		UnlockedAt:   nullTime(a.UnlockedAt),
		CreatedAt:    a.CreatedAt.UTC(),
	}
}

func AchievementFromRow(r AchievementRow) model.Achievement {
	return model.Achievement{
		ID:           r.ID,
		UserID:       r.UserID,
		Type:         model.AchievementType(r.Type),
		Title:        r.Title,
		Description:  r.Description,
		Target:       r.Target,
		Progress:     r.Progress,
		PointsReward: r.PointsReward,
		Unlocked:     r.Unlocked,
		UnlockedAt:   timePtr(r.UnlockedAt),
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

func (r *AchievementRow) scanArgs() []any {
	return []any{
		&r.ID, &r.UserID, &r.Type, &r.Title, &r.Description, &r.Target,
		&r.Progress, &r.PointsReward, &r.Unlocked, &r.UnlockedAt, &r.CreatedAt,
	}
}

const achievementColumns = `id, user_id, type, title, description, target, progress,
	points_reward, unlocked, unlocked_at, created_at`

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeTags(s string) ([]string, error) {
	tags := []string{}
	if s == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}
