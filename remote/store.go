package remote

import (
	"context"
	"fmt"

	"taskquest/model"
	"taskquest/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// replaceAll upserts every document by _id in one unordered bulk write.
func (s *Store) replaceAll(ctx context.Context, collection string, docs []bson.M) error {
	if len(docs) == 0 {
		return nil
	}
	timer := utils.TrackDBOperation("bulk_upsert", collection)
	defer timer.ObserveDuration()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	models := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": doc["_id"]}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	_, err := s.collection(collection).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		utils.TrackError("remote", collection+"_upsert_failed")
		return fmt.Errorf("upsert %s: %w", collection, err)
	}
	return nil
}

func (s *Store) UpsertTasks(ctx context.Context, tasks []model.Task) error {
	docs := make([]bson.M, 0, len(tasks))
	for _, t := range tasks {
		docs = append(docs, TaskToDocument(t))
	}
	return s.replaceAll(ctx, TasksCollection, docs)
}

func (s *Store) UpsertUser(ctx context.Context, u model.User) error {
	return s.replaceAll(ctx, UsersCollection, []bson.M{UserToDocument(u)})
}

func (s *Store) UpsertStats(ctx context.Context, st model.UserStats) error {
	return s.replaceAll(ctx, StatsCollection, []bson.M{StatsToDocument(st)})
}

func (s *Store) UpsertAchievements(ctx context.Context, list []model.Achievement) error {
	docs := make([]bson.M, 0, len(list))
	for _, a := range list {
		docs = append(docs, AchievementToDocument(a))
	}
	return s.replaceAll(ctx, AchievementsCollection, docs)
}

func (s *Store) UpsertAttachment(ctx context.Context, a model.Attachment) error {
	return s.replaceAll(ctx, AttachmentsCollection, []bson.M{AttachmentToDocument(a)})
}

func (s *Store) UpsertRanks(ctx context.Context, ranks []model.UserRank) error {
	docs := make([]bson.M, 0, len(ranks))
	for _, r := range ranks {
		docs = append(docs, RankToDocument(r))
	}
	return s.replaceAll(ctx, LeaderboardCollection, docs)
}

func (s *Store) FetchTasks(ctx context.Context, userID string) ([]model.Task, error) {
	timer := utils.TrackDBOperation("find", TasksCollection)
	defer timer.ObserveDuration()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cursor, err := s.collection(TasksCollection).Find(ctx, bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		utils.TrackError("remote", "task_fetch_failed")
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		utils.TrackError("remote", "task_decode_failed")
		return nil, fmt.Errorf("decode tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(docs))
	for _, doc := range docs {
		t, err := TaskFromDocument(doc)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (s *Store) FetchRanks(ctx context.Context, limit int64) ([]model.UserRank, error) {
	timer := utils.TrackDBOperation("find", LeaderboardCollection)
	defer timer.ObserveDuration()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cursor, err := s.collection(LeaderboardCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "rank", Value: 1}}).SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("find ranks: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode ranks: %w", err)
	}
	out := make([]model.UserRank, 0, len(docs))
	for _, doc := range docs {
		out = append(out, RankFromDocument(doc))
	}
	return out, nil
}

// DeleteUser removes every document owned by userID.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	timer := utils.TrackDBOperation("delete", UsersCollection)
	defer timer.ObserveDuration()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	owned := []string{TasksCollection, AchievementsCollection, AttachmentsCollection}
	for _, name := range owned {
		if _, err := s.collection(name).DeleteMany(ctx, bson.M{"userId": userID}); err != nil {
			return fmt.Errorf("delete %s: %w", name, err)
		}
	}
	for _, name := range []string{StatsCollection, LeaderboardCollection, UsersCollection} {
		if _, err := s.collection(name).DeleteOne(ctx, bson.M{"_id": userID}); err != nil {
			return fmt.Errorf("delete %s: %w", name, err)
		}
	}
	return nil
}
