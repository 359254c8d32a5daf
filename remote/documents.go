package remote

import (
	"fmt"
	"time"

	"taskquest/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Documents use camelCase keys and native BSON datetimes. BSON datetimes
// have millisecond precision.

func TaskToDocument(t model.Task) bson.M {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return bson.M{
		"_id":         t.ID,
		"userId":      t.UserID,
		"title":       t.Title,
		"description": t.Description,
		"priority":    string(t.Priority),
		"status":      string(t.Status),
		"points":      t.Points,
		"category":    t.Category,
		"tags":        tags,
		"dueDate":     dateOrNil(t.DueDate),
		"completedAt": dateOrNil(t.CompletedAt),
		"recurrence":  string(t.Recurrence),
		"createdAt":   primitive.NewDateTimeFromTime(t.CreatedAt),
		"updatedAt":   primitive.NewDateTimeFromTime(t.UpdatedAt),
	}
}

// TaskFromDocument decodes a task. SyncedAt is local-only and stays nil.
func TaskFromDocument(doc bson.M) (model.Task, error) {
	id, ok := doc["_id"].(string)
	if !ok || id == "" {
		return model.Task{}, fmt.Errorf("task document without string _id")
	}
	return model.Task{
		ID:          id,
		UserID:      str(doc, "userId"),
		Title:       str(doc, "title"),
		Description: str(doc, "description"),
		Priority:    model.Priority(str(doc, "priority")),
		Status:      model.TaskStatus(str(doc, "status")),
		Points:      integer(doc, "points"),
		Category:    str(doc, "category"),
		Tags:        stringList(doc, "tags"),
		DueDate:     datePtr(doc, "dueDate"),
		CompletedAt: datePtr(doc, "completedAt"),
		Recurrence:  model.RecurrenceType(str(doc, "recurrence")),
		CreatedAt:   date(doc, "createdAt"),
		UpdatedAt:   date(doc, "updatedAt"),
	}, nil
}

// UserToDocument leaves out credentials; they never leave the local store.
func UserToDocument(u model.User) bson.M {
	return bson.M{
		"_id":            u.ID,
		"email":          u.Email,
		"displayName":    u.DisplayName,
		"avatarUrl":      u.AvatarURL,
		"currentXP":      u.CurrentXP,
		"level":          u.Level,
		"totalPoints":    u.TotalPoints,
		"currentStreak":  u.CurrentStreak,
		"longestStreak":  u.LongestStreak,
		"tasksCompleted": u.TasksCompleted,
		"createdAt":      primitive.NewDateTimeFromTime(u.CreatedAt),
		"lastActiveAt":   dateOrNil(u.LastActiveAt),
	}
}

func UserFromDocument(doc bson.M) model.User {
	id, _ := doc["_id"].(string)
	return model.User{
		ID:             id,
		Email:          str(doc, "email"),
		DisplayName:    str(doc, "displayName"),
		AvatarURL:      str(doc, "avatarUrl"),
		CurrentXP:      integer(doc, "currentXP"),
		Level:          integer(doc, "level"),
		TotalPoints:    integer(doc, "totalPoints"),
		CurrentStreak:  integer(doc, "currentStreak"),
		LongestStreak:  integer(doc, "longestStreak"),
		TasksCompleted: integer(doc, "tasksCompleted"),
		CreatedAt:      date(doc, "createdAt"),
		LastActiveAt:   datePtr(doc, "lastActiveAt"),
	}
}

func AttachmentToDocument(a model.Attachment) bson.M {
	return bson.M{
		"_id":          a.ID,
		"taskId":       a.TaskID,
		"userId":       a.UserID,
		"fileName":     a.FileName,
		"mimeType":     a.MimeType,
		"sizeBytes":    a.SizeBytes,
		"type":         string(a.Type),
		"remotePath":   a.RemotePath,
		"uploadStatus": string(a.UploadStatus),
		"createdAt":    primitive.NewDateTimeFromTime(a.CreatedAt),
		"uploadedAt":   dateOrNil(a.UploadedAt),
	}
}

func AttachmentFromDocument(doc bson.M) model.Attachment {
	id, _ := doc["_id"].(string)
	return model.Attachment{
		ID:           id,
		TaskID:       str(doc, "taskId"),
		UserID:       str(doc, "userId"),
		FileName:     str(doc, "fileName"),
		MimeType:     str(doc, "mimeType"),
		SizeBytes:    int64(integer(doc, "sizeBytes")),
		Type:         model.AttachmentType(str(doc, "type")),
		RemotePath:   str(doc, "remotePath"),
		UploadStatus: model.UploadStatus(str(doc, "uploadStatus")),
		CreatedAt:    date(doc, "createdAt"),
		UploadedAt:   datePtr(doc, "uploadedAt"),
	}
}

func AchievementToDocument(a model.Achievement) bson.M {
	return bson.M{
		"_id":          a.ID,
		"userId":       a.UserID,
		"type":         string(a.Type),
		"title":        a.Title,
		"description":  a.Description,
		"target":       a.Target,
		"progress":     a.Progress,
		"pointsReward": a.PointsReward,
		"unlocked":     a.Unlocked,
		"unlockedAt":   dateOrNil(a.UnlockedAt),
		"createdAt":    primitive.NewDateTimeFromTime(a.CreatedAt),
	}
}

func AchievementFromDocument(doc bson.M) model.Achievement {
	id, _ := doc["_id"].(string)
	unlocked, _ := doc["unlocked"].(bool)
	return model.Achievement{
		ID:           id,
		UserID:       str(doc, "userId"),
		Type:         model.AchievementType(str(doc, "type")),
		Title:        str(doc, "title"),
		Description:  str(doc, "description"),
		Target:       integer(doc, "target"),
		Progress:     integer(doc, "progress"),
		PointsReward: integer(doc, "pointsReward"),
		Unlocked:     unlocked,
		UnlockedAt:   datePtr(doc, "unlockedAt"),
		CreatedAt:    date(doc, "createdAt"),
	}
}

func StatsToDocument(s model.UserStats) bson.M {
	return bson.M{
		"_id":                     s.UserID,
		"totalPoints":             s.TotalPoints,
		"weeklyPoints":            s.WeeklyPoints,
		"monthlyPoints":           s.MonthlyPoints,
		"tasksCompletedToday":     s.TasksCompletedToday,
		"tasksCompletedThisWeek":  s.TasksCompletedThisWeek,
		"tasksCompletedThisMonth": s.TasksCompletedThisMonth,
		"totalTasks":              s.TotalTasks,
		"completedTasks":          s.CompletedTasks,
		"completionRate":          s.CompletionRate,
		"updatedAt":               primitive.NewDateTimeFromTime(s.UpdatedAt),
	}
}

func StatsFromDocument(doc bson.M) model.UserStats {
	id, _ := doc["_id"].(string)
	rate, _ := doc["completionRate"].(float64)
	return model.UserStats{
		UserID:                  id,
		TotalPoints:             integer(doc, "totalPoints"),
		WeeklyPoints:            integer(doc, "weeklyPoints"),
		MonthlyPoints:           integer(doc, "monthlyPoints"),
		TasksCompletedToday:     integer(doc, "tasksCompletedToday"),
		TasksCompletedThisWeek:  integer(doc, "tasksCompletedThisWeek"),
		TasksCompletedThisMonth: integer(doc, "tasksCompletedThisMonth"),
		TotalTasks:              integer(doc, "totalTasks"),
		CompletedTasks:          integer(doc, "completedTasks"),
		CompletionRate:          rate,
		UpdatedAt:               date(doc, "updatedAt"),
	}
}

func RankToDocument(r model.UserRank) bson.M {
	return bson.M{
		"_id":           r.UserID,
		"rank":          r.Rank,
		"displayName":   r.DisplayName,
		"avatarUrl":     r.AvatarURL,
		"level":         r.Level,
		"totalPoints":   r.TotalPoints,
		"weeklyPoints":  r.WeeklyPoints,
		"currentStreak": r.CurrentStreak,
	}
}

func RankFromDocument(doc bson.M) model.UserRank {
	id, _ := doc["_id"].(string)
	return model.UserRank{
		Rank:          integer(doc, "rank"),
		UserID:        id,
		DisplayName:   str(doc, "displayName"),
		AvatarURL:     str(doc, "avatarUrl"),
		Level:         integer(doc, "level"),
		TotalPoints:   integer(doc, "totalPoints"),
		WeeklyPoints:  integer(doc, "weeklyPoints"),
		CurrentStreak: integer(doc, "currentStreak"),
	}
}

func dateOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return primitive.NewDateTimeFromTime(*t)
}

func str(doc bson.M, key string) string {
	s, _ := doc[key].(string)
	return s
}

// integer accepts every numeric type the driver may decode into.
func integer(doc bson.M, key string) int {
	switch v := doc[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func date(doc bson.M, key string) time.Time {
	switch v := doc[key].(type) {
	case primitive.DateTime:
		return v.Time().UTC()
	case time.Time:
		return v.UTC()
	default:
		return time.Time{}
	}
}

func datePtr(doc bson.M, key string) *time.Time {
	if _, ok := doc[key]; !ok || doc[key] == nil {
		return nil
	}
	t := date(doc, key)
	if t.IsZero() {
		return nil
	}
	return &t
}

func stringList(doc bson.M, key string) []string {
	out := []string{}
	switch v := doc[key].(type) {
	case []string:
		out = append(out, v...)
	case bson.A:
		out = appendStrings(out, v)
	case []any:
		out = appendStrings(out, v)
	}
	return out
}

func appendStrings(out []string, items []any) []string {
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
