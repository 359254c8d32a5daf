package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"taskquest/model"
	"taskquest/result"
	"taskquest/storage"
	"taskquest/utils"

	"github.com/google/uuid"
)

type AttachmentRepository struct {
	base
	blob BlobStore
	dir  string
}

// UploadReport summarises one drain of the pending upload queue.
type UploadReport struct {
	Uploaded int               `json:"uploaded"`
	Failed   int               `json:"failed"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// AddAttachment copies body into the local attachment directory and queues
// it for upload.
func (r *AttachmentRepository) AddAttachment(ctx context.Context, taskID, fileName, mimeType string, body io.Reader) result.Result[model.Attachment] {
	timer := utils.TrackDBOperation("insert", "attachments")
	defer timer.ObserveDuration()

	task, err := storage.GetTask(ctx, r.store.DB(), taskID)
	if err != nil {
		return fail[model.Attachment](r.logger, "task_attachment_add", MsgUploadFailed, err, "task_id", taskID)
	}

	fileName = filepath.Base(fileName)
	a := model.Attachment{
		ID:           uuid.NewString(),
		TaskID:       taskID,
		UserID:       task.UserID,
		FileName:     fileName,
		MimeType:     mimeType,
		Type:         model.AttachmentTypeFromMIME(mimeType),
		UploadStatus: model.UploadPending,
		CreatedAt:    r.clock(),
	}
	a.LocalPath = filepath.Join(r.dir, task.UserID, a.ID+"_"+fileName)

	size, err := writeLocalFile(a.LocalPath, body)
	if err != nil {
		return fail[model.Attachment](r.logger, "attachment_add", MsgUploadFailed, err, "task_id", taskID)
	}
	a.SizeBytes = size

	if err := storage.InsertAttachment(ctx, r.store.DB(), a); err != nil {
		removeLocalFile(r.logger, a.LocalPath)
		return fail[model.Attachment](r.logger, "attachment_add", MsgUploadFailed, err, "task_id", taskID)
	}

	r.store.Notify(a.UserID, storage.TableAttachments)
	return result.Success(a)
}

func (r *AttachmentRepository) GetAttachment(ctx context.Context, id string) result.Result[model.Attachment] {
	timer := utils.TrackDBOperation("select", "attachments")
	defer timer.ObserveDuration()

	a, err := storage.GetAttachment(ctx, r.store.DB(), id)
	if err != nil {
		return fail[model.Attachment](r.logger, "attachment_get", MsgLoadFailed, err, "attachment_id", id)
	}
	return result.Success(a)
}

// GetAttachments lists the attachments userID owns on taskID. Files of
// another user's task never show up.
func (r *AttachmentRepository) GetAttachments(ctx context.Context, userID, taskID string) result.Result[[]model.Attachment] {
	timer := utils.TrackDBOperation("select", "attachments")
	defer timer.ObserveDuration()

	list, err := storage.ListOwnedAttachments(ctx, r.store.DB(), userID, taskID)
	if err != nil {
		return fail[[]model.Attachment](r.logger, "attachments_list", MsgLoadFailed, err, "task_id", taskID)
	}
	return result.Success(list)
}

func (r *AttachmentRepository) GetPendingUploads(ctx context.Context, userID string) result.Result[[]model.Attachment] {
	timer := utils.TrackDBOperation("select", "attachments")
	defer timer.ObserveDuration()

	list, err := storage.ListPendingAttachments(ctx, r.store.DB(), userID)
	if err != nil {
		return fail[[]model.Attachment](r.logger, "attachments_pending", MsgLoadFailed, err, "user_id", userID)
	}
	return result.Success(list)
}

// DeleteAttachment removes the row, the local copy and the uploaded blob.
func (r *AttachmentRepository) DeleteAttachment(ctx context.Context, id string) result.Result[struct{}] {
	timer := utils.TrackDBOperation("delete", "attachments")
	defer timer.ObserveDuration()

	a, err := storage.GetAttachment(ctx, r.store.DB(), id)
	if err != nil {
		return fail[struct{}](r.logger, "attachment_delete", MsgSaveFailed, err, "attachment_id", id)
	}
	if err := storage.DeleteAttachment(ctx, r.store.DB(), id); err != nil {
		return fail[struct{}](r.logger, "attachment_delete", MsgSaveFailed, err, "attachment_id", id)
	}

	removeLocalFile(r.logger, a.LocalPath)
	if r.blob != nil && a.RemotePath != "" {
		if err := r.blob.Delete(ctx, a.RemotePath); err != nil {
			utils.TrackError("blob", "attachment_delete_failed")
			r.logger.Warn("failed to delete uploaded file", "attachment_id", id, "error", err)
		}
	}

	r.store.Notify(a.UserID, storage.TableAttachments)
	return result.Success(struct{}{})
}

// Download copies the file into w, preferring the local copy.
func (r *AttachmentRepository) Download(ctx context.Context, id string, w io.Writer) result.Result[int64] {
	a, err := storage.GetAttachment(ctx, r.store.DB(), id)
	if err != nil {
		return fail[int64](r.logger, "attachment_download", MsgLoadFailed, err, "attachment_id", id)
	}

	if f, err := os.Open(a.LocalPath); err == nil {
		defer f.Close()
		n, err := io.Copy(w, f)
		if err != nil {
			return fail[int64](r.logger, "attachment_download", MsgLoadFailed, err, "attachment_id", id)
		}
		return result.Success(n)
	}

	if r.blob == nil || a.RemotePath == "" {
		return result.Error[int64](MsgAttachmentNotFound, ErrNotFound)
	}
	n, err := r.blob.Download(ctx, a.RemotePath, w)
	if err != nil {
		return fail[int64](r.logger, "attachment_download", MsgLoadFailed, err, "attachment_id", id)
	}
	return result.Success(n)
}

// UploadPending pushes every PENDING or FAILED attachment of the user to blob
// storage. Each item succeeds or fails on its own; failures are marked FAILED
// and picked up again by the next call.
func (r *AttachmentRepository) UploadPending(ctx context.Context, userID string) result.Result[UploadReport] {
	if r.blob == nil {
		return result.Error[UploadReport](MsgRemoteNotConfigured, ErrRemoteNotConfigured)
	}

	pending, err := storage.ListPendingAttachments(ctx, r.store.DB(), userID)
	if err != nil {
		return fail[UploadReport](r.logger, "attachments_upload_pending", MsgUploadFailed, err, "user_id", userID)
	}

	report := UploadReport{}
	for _, a := range pending {
		if err := ctx.Err(); err != nil {
			return fail[UploadReport](r.logger, "attachments_upload_pending", MsgUploadFailed, err, "user_id", userID)
		}

		path, err := r.upload(ctx, a)
		if err != nil {
			report.Failed++
			if report.Errors == nil {
				report.Errors = map[string]string{}
			}
			report.Errors[a.ID] = err.Error()
			utils.TrackAttachmentUpload("failed")
			r.logger.Warn("attachment upload failed", "attachment_id", a.ID, "error", err)
			if err := storage.MarkAttachmentFailed(ctx, r.store.DB(), a.ID, err.Error()); err != nil {
				r.logger.Error("failed to mark attachment", "attachment_id", a.ID, "error", err)
			}
			continue
		}

		now := r.clock()
		if err := storage.MarkAttachmentUploaded(ctx, r.store.DB(), a.ID, path, now); err != nil {
			report.Failed++
			r.logger.Error("failed to mark attachment uploaded", "attachment_id", a.ID, "error", err)
			continue
		}
		report.Uploaded++
		utils.TrackAttachmentUpload("uploaded")

		if r.remote != nil {
			a.RemotePath, a.UploadStatus, a.UploadError, a.UploadedAt = path, model.UploadUploaded, "", &now
			if err := r.remote.UpsertAttachment(ctx, a); err != nil {
				r.logger.Warn("attachment metadata sync failed", "attachment_id", a.ID, "error", err)
			}
		}
	}

	if len(pending) > 0 {
		r.store.Notify(userID, storage.TableAttachments)
	}
	return result.Success(report)
}

func (r *AttachmentRepository) upload(ctx context.Context, a model.Attachment) (string, error) {
	f, err := os.Open(a.LocalPath)
	if err != nil {
		return "", fmt.Errorf("open local file: %w", err)
	}
	defer f.Close()

	path := a.BlobPath()
	if err := r.blob.Upload(ctx, path, f, a.MimeType); err != nil {
		return "", err
	}
	return path, nil
}

// WatchAttachments is a live query over one task's attachments.
func (r *AttachmentRepository) WatchAttachments(ctx context.Context, userID, taskID string) *storage.Subscription[[]model.Attachment] {
	return storage.Watch(ctx, r.store, userID, []storage.Table{storage.TableAttachments},
		func(ctx context.Context) result.Result[[]model.Attachment] {
			return r.GetAttachments(ctx, userID, taskID)
		})
}

func writeLocalFile(path string, body io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create attachment dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create attachment file: %w", err)
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("write attachment file: %w", err)
	}
	return n, nil
}

func removeLocalFile(logger *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to remove local file", "path", path, "error", err)
	}
}
