// Package blob stores attachment and avatar bytes in a GridFS bucket keyed
// by path.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"taskquest/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("blob not found")

type GridFS struct {
	db      *mongo.Database
	bucket  string
	timeout time.Duration
}

func NewGridFS(db *mongo.Database, bucket string, timeout time.Duration) *GridFS {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GridFS{db: db, bucket: bucket, timeout: timeout}
}

// open builds a bucket per call; GridFS deadlines are bucket-wide state.
func (g *GridFS) open(ctx context.Context) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(g.db, options.GridFSBucket().SetName(g.bucket))
	if err != nil {
		return nil, fmt.Errorf("open bucket: %w", err)
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(g.timeout)
	}
	if err := b.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	if err := b.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	return b, nil
}

// Upload stores r under path, replacing earlier revisions.
func (g *GridFS) Upload(ctx context.Context, path string, r io.Reader, contentType string) error {
	timer := utils.TrackDBOperation("upload", g.bucket)
	defer timer.ObserveDuration()

	b, err := g.open(ctx)
	if err != nil {
		return err
	}
	opts := options.GridFSUpload().SetMetadata(bson.M{"contentType": contentType})
	id, err := b.UploadFromStream(path, r, opts)
	if err != nil {
		utils.TrackError("blob", "upload_failed")
		return fmt.Errorf("upload %s: %w", path, err)
	}
	return g.deleteOlder(ctx, b, path, id)
}

func (g *GridFS) deleteOlder(ctx context.Context, b *gridfs.Bucket, path string, keep any) error {
	cursor, err := b.FindContext(ctx, bson.M{"filename": path, "_id": bson.M{"$ne": keep}})
	if err != nil {
		return fmt.Errorf("find revisions: %w", err)
	}
	defer cursor.Close(ctx)

	var files []gridfs.File
	if err := cursor.All(ctx, &files); err != nil {
		return fmt.Errorf("decode revisions: %w", err)
	}
	for _, f := range files {
		if err := b.DeleteContext(ctx, f.ID); err != nil {
			return fmt.Errorf("delete revision: %w", err)
		}
	}
	return nil
}

// Download writes the latest revision at path to w.
func (g *GridFS) Download(ctx context.Context, path string, w io.Writer) (int64, error) {
	timer := utils.TrackDBOperation("download", g.bucket)
	defer timer.ObserveDuration()

	b, err := g.open(ctx)
	if err != nil {
		return 0, err
	}
	n, err := b.DownloadToStreamByName(path, w)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return n, fmt.Errorf("download %s: %w", path, err)
	}
	return n, nil
}

// Delete removes every revision at path. A missing path is not an error.
func (g *GridFS) Delete(ctx context.Context, path string) error {
	return g.deleteMatching(ctx, bson.M{"filename": path})
}

// DeletePrefix removes every file under a path prefix, e.g. all of a
// user's attachments.
func (g *GridFS) DeletePrefix(ctx context.Context, prefix string) error {
	pattern := "^" + regexp.QuoteMeta(prefix)
	return g.deleteMatching(ctx, bson.M{"filename": bson.M{"$regex": pattern}})
}

func (g *GridFS) deleteMatching(ctx context.Context, filter bson.M) error {
	timer := utils.TrackDBOperation("delete", g.bucket)
	defer timer.ObserveDuration()

	b, err := g.open(ctx)
	if err != nil {
		return err
	}
	cursor, err := b.FindContext(ctx, filter)
	if err != nil {
		return fmt.Errorf("find files: %w", err)
	}
	defer cursor.Close(ctx)

	var files []gridfs.File
	if err := cursor.All(ctx, &files); err != nil {
		return fmt.Errorf("decode files: %w", err)
	}
	for _, f := range files {
		if err := b.DeleteContext(ctx, f.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("delete file: %w", err)
		}
	}
	return nil
}
