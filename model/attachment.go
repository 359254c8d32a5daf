package model

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type AttachmentType string
type UploadStatus string

const (
	AttachmentImage    AttachmentType = "IMAGE"
	AttachmentDocument AttachmentType = "DOCUMENT"
	AttachmentAudio    AttachmentType = "AUDIO"
	AttachmentVideo    AttachmentType = "VIDEO"
	AttachmentOther    AttachmentType = "OTHER"

	UploadPending  UploadStatus = "PENDING"
	UploadUploaded UploadStatus = "UPLOADED"
	UploadFailed   UploadStatus = "FAILED"
)

// AttachmentTypeFromMIME classifies a MIME type.
func AttachmentTypeFromMIME(mime string) AttachmentType {
	mime = strings.ToLower(mime)
	switch {
	case strings.HasPrefix(mime, "image/"):
		return AttachmentImage
	case strings.HasPrefix(mime, "audio/"):
		return AttachmentAudio
	case strings.HasPrefix(mime, "video/"):
		return AttachmentVideo
	case mime == "application/pdf", strings.HasPrefix(mime, "text/"),
		strings.Contains(mime, "document"), strings.Contains(mime, "msword"),
		strings.Contains(mime, "spreadsheet"), strings.Contains(mime, "presentation"):
		return AttachmentDocument
	default:
		return AttachmentOther
	}
}

type Attachment struct {
	ID           string         `json:"id"`
	TaskID       string         `json:"task_id"`
	UserID       string         `json:"user_id"`
	FileName     string         `json:"file_name"`
	MimeType     string         `json:"mime_type"`
	SizeBytes    int64          `json:"size_bytes"`
	Type         AttachmentType `json:"type"`
	LocalPath    string         `json:"-"`
	RemotePath   string         `json:"remote_path,omitempty"`
	UploadStatus UploadStatus   `json:"upload_status"`
	UploadError  string         `json:"upload_error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UploadedAt   *time.Time     `json:"uploaded_at,omitempty"`
}

func (a Attachment) IsImage() bool {
	return a.Type == AttachmentImage
}

func (a Attachment) IsUploaded() bool {
	return a.UploadStatus == UploadUploaded
}

func (a Attachment) FormattedSize() string {
	return FormatSize(a.SizeBytes)
}

var sizePrinter = message.NewPrinter(language.Spanish)

// FormatSize renders a byte count with binary units and a Spanish decimal
// comma, e.g. "1,5 MB".
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	units := []string{"KB", "MB", "GB", "TB"}
	v := float64(bytes) / unit
	i := 0
	for v >= unit && i < len(units)-1 {
		v /= unit
		i++
	}
	return sizePrinter.Sprintf("%.1f %s", v, units[i])
}

// AttachmentPath is the blob key for an attachment uploaded at the given time.
func AttachmentPath(userID, taskID string, at time.Time, fileName string) string {
	return fmt.Sprintf("attachments/%s/%s/%d_%s", userID, taskID, at.UnixMilli(), fileName)
}

// AvatarPath is the blob key for a user's avatar.
func AvatarPath(userID, fileName string) string {
	return fmt.Sprintf("avatars/%s/%s", userID, fileName)
}

// BlobPath keys the attachment by its creation time.
func (a Attachment) BlobPath() string {
	return AttachmentPath(a.UserID, a.TaskID, a.CreatedAt, a.FileName)
}
