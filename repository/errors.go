package repository

import (
	"errors"
	"log/slog"
	"strings"

	"taskquest/result"
	"taskquest/storage"
	"taskquest/utils"
)

var (
	ErrNotFound            = storage.ErrNotFound
	ErrRemoteNotConfigured = errors.New("remote backend not configured")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailTaken          = errors.New("email already registered")
	ErrTwoFactorRequired   = errors.New("two-factor code required")
	ErrInvalidTwoFactor    = errors.New("invalid two-factor code")
	ErrInvalidResetToken   = errors.New("invalid or expired reset token")
	ErrSessionExpired      = errors.New("session expired")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrValidation          = errors.New("validation failed")
)

// User-facing messages.
const (
	MsgUnexpected          = result.DefaultErrorMessage
	MsgUserNotFound        = "Usuario no encontrado"
	MsgTaskNotFound        = "Tarea no encontrada"
	MsgAttachmentNotFound  = "Archivo adjunto no encontrado"
	MsgStatsNotFound       = "Estadísticas no encontradas"
	MsgRankNotFound        = "El usuario no aparece en la clasificación"
	MsgSessionNotFound     = "Sesión no encontrada"
	MsgRemoteNotConfigured = "Backend remoto no configurado"
	MsgInvalidTransition   = "Cambio de estado no permitido"
	MsgInvalidCredentials  = "Correo o contraseña incorrectos"
	MsgEmailTaken          = "El correo ya está registrado"
	MsgWeakPassword        = "La contraseña debe tener al menos 6 caracteres, un número y un carácter especial"
	MsgTwoFactorRequired   = "Se requiere el código de verificación"
	MsgInvalidTwoFactor    = "Código de verificación incorrecto"
	MsgTwoFactorEnabled    = "La verificación en dos pasos ya está activada"
	MsgTwoFactorDisabled   = "La verificación en dos pasos no está activada"
	MsgInvalidResetToken   = "El enlace de recuperación no es válido o ha caducado"
	MsgSessionExpired      = "La sesión ha caducado"
	MsgInvalidToken        = "Token no válido"
	MsgSaveFailed          = "No se pudieron guardar los cambios"
	MsgLoadFailed          = "No se pudieron cargar los datos"
	MsgCompleteFailed      = "No se pudo completar la tarea"
	MsgSyncFailed          = "No se pudo sincronizar con el servidor"
	MsgUploadFailed        = "No se pudo subir el archivo"
	MsgDeleteAccountFailed = "No se pudo eliminar la cuenta"
	MsgValidation          = "Datos no válidos"
	MsgInvalidPoints       = "Los puntos deben ser un número positivo"
)

// fail logs the failure, counts it and wraps it in an Error result. A
// not-found cause gets the not-found message of the entity op is named after.
func fail[T any](logger *slog.Logger, op, msg string, err error, attrs ...any) result.Result[T] {
	if errors.Is(err, ErrNotFound) {
		utils.TrackError("repository", op+"_not_found")
		return result.Error[T](notFoundMessage(op, msg), err)
	}
	utils.TrackError("repository", op)
	logger.Error("repository operation failed", append([]any{"op", op, "error", err}, attrs...)...)
	return result.Error[T](msg, err)
}

// notFoundMessage picks the not-found text for an operation's entity.
func notFoundMessage(op, fallback string) string {
	switch {
	case strings.HasPrefix(op, "task"):
		return MsgTaskNotFound
	case strings.HasPrefix(op, "attachment"):
		return MsgAttachmentNotFound
	case strings.HasPrefix(op, "stats"):
		return MsgStatsNotFound
	case strings.HasPrefix(op, "rank"):
		return MsgRankNotFound
	case strings.HasPrefix(op, "session"):
		return MsgSessionNotFound
	case strings.HasPrefix(op, "user"), strings.HasPrefix(op, "auth"):
		return MsgUserNotFound
	default:
		return fallback
	}
}
