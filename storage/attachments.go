package storage

import (
	"context"
	"fmt"
	"time"

	"taskquest/model"
)

func scanAttachment(s rowScanner) (model.Attachment, error) {
	var r AttachmentRow
	if err := s.Scan(r.scanArgs()...); err != nil {
		return model.Attachment{}, err
	}
	return AttachmentFromRow(r), nil
}

func queryAttachments(ctx context.Context, q Querier, query string, args ...any) ([]model.Attachment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Attachment{}
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func InsertAttachment(ctx context.Context, q Querier, a model.Attachment) error {
	r := AttachmentToRow(a)
	_, err := q.ExecContext(ctx,
		`INSERT INTO attachments (`+attachmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.args()...)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func GetAttachment(ctx context.Context, q Querier, id string) (model.Attachment, error) {
	a, err := scanAttachment(q.QueryRowContext(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE id = ?`, id))
	if err != nil {
		return model.Attachment{}, notFound(err)
	}
	return a, nil
}

func ListAttachmentsByTask(ctx context.Context, q Querier, taskID string) ([]model.Attachment, error) {
	return queryAttachments(ctx, q,
		`SELECT `+attachmentColumns+` FROM attachments WHERE task_id = ? ORDER BY created_at, id`, taskID)
}

// ListOwnedAttachments lists a task's attachments that belong to userID.
func ListOwnedAttachments(ctx context.Context, q Querier, userID, taskID string) ([]model.Attachment, error) {
	return queryAttachments(ctx, q,
		`SELECT `+attachmentColumns+` FROM attachments WHERE user_id = ? AND task_id = ? ORDER BY created_at, id`,
		userID, taskID)
}

func ListAttachmentsByUser(ctx context.Context, q Querier, userID string) ([]model.Attachment, error) {
	return queryAttachments(ctx, q,
		`SELECT `+attachmentColumns+` FROM attachments WHERE user_id = ? ORDER BY created_at, id`, userID)
}

// ListPendingAttachments returns uploads still waiting, including earlier
// failures so a manual drain retries them.
func ListPendingAttachments(ctx context.Context, q Querier, userID string) ([]model.Attachment, error) {
	return queryAttachments(ctx, q,
		`SELECT `+attachmentColumns+` FROM attachments
		WHERE user_id = ? AND upload_status IN (?, ?) ORDER BY created_at, id`,
		userID, string(model.UploadPending), string(model.UploadFailed))
}

func MarkAttachmentUploaded(ctx context.Context, q Querier, id, remotePath string, now time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE attachments SET upload_status = ?, remote_path = ?, upload_error = '', uploaded_at = ?
		WHERE id = ?`,
		string(model.UploadUploaded), remotePath, now.UTC(), id)
	if err != nil {
		return fmt.Errorf("mark attachment uploaded: %w", err)
	}
	return requireAffected(res)
}

func MarkAttachmentFailed(ctx context.Context, q Querier, id, reason string) error {
	res, err := q.ExecContext(ctx,
		`UPDATE attachments SET upload_status = ?, upload_error = ? WHERE id = ?`,
		string(model.UploadFailed), reason, id)
	if err != nil {
		return fmt.Errorf("mark attachment failed: %w", err)
	}
	return requireAffected(res)
}

func DeleteAttachment(ctx context.Context, q Querier, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	return requireAffected(res)
}
