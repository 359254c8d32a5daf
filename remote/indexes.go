package remote

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	UsersCollection        = "users"
	TasksCollection        = "tasks"
	LeaderboardCollection  = "leaderboard"
	AchievementsCollection = "achievements"
	AttachmentsCollection  = "attachments"
	StatsCollection        = "user_stats"

	// Task groupings. Declared for clients; nothing writes them yet.
	TasksDailyCollection   = "tasks_daily"
	TasksWeeklyCollection  = "tasks_weekly"
	TasksMonthlyCollection = "tasks_monthly"
)

func SetupIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName("user_email").SetUnique(true),
			},
		},
		TasksCollection: {
			{
				Keys: bson.D{
					{Key: "userId", Value: 1},
					{Key: "createdAt", Value: -1},
				},
				Options: options.Index().SetName("user_tasks_date"),
			},
			{
				Keys: bson.D{
					{Key: "userId", Value: 1},
					{Key: "status", Value: 1},
				},
				Options: options.Index().SetName("user_tasks_status"),
			},
			{
				Keys: bson.D{
					{Key: "userId", Value: 1},
					{Key: "tags", Value: 1},
				},
				Options: options.Index().SetName("user_tags"),
			},
		},
		LeaderboardCollection: {
			{
				Keys:    bson.D{{Key: "totalPoints", Value: -1}},
				Options: options.Index().SetName("leaderboard_points"),
			},
			{
				Keys:    bson.D{{Key: "weeklyPoints", Value: -1}},
				Options: options.Index().SetName("leaderboard_weekly"),
			},
		},
		AchievementsCollection: {
			{
				Keys:    bson.D{{Key: "userId", Value: 1}},
				Options: options.Index().SetName("user_achievements"),
			},
		},
		AttachmentsCollection: {
			{
				Keys: bson.D{
					{Key: "userId", Value: 1},
					{Key: "taskId", Value: 1},
				},
				Options: options.Index().SetName("user_task_attachments"),
			},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}
	return nil
}
