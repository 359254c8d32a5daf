package dto

import (
	"time"

	"taskquest/model"
	"taskquest/points"
)

type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,password"`
	DisplayName string `json:"display_name" binding:"required,min=2,max=40"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Code     string `json:"two_factor_code,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type PasswordResetConfirm struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,password"`
}

type PasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,password,nefield=CurrentPassword"`
}

type ChangeEmailRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TwoFactorCode struct {
	Code string `json:"code" binding:"required,len=6,numeric"`
}

type UpdateProfileRequest struct {
	DisplayName string `json:"display_name" binding:"required,min=2,max=40"`
	AvatarURL   string `json:"avatar_url" binding:"omitempty,url"`
}

type AddPointsRequest struct {
	Points int `json:"points" binding:"required,gt=0"`
}

// UserProfileResponse adds the level progress the profile screen draws.
type UserProfileResponse struct {
	model.User
	CurrentLevelXP int     `json:"current_level_xp"`
	XPToNextLevel  int     `json:"xp_to_next_level"`
	LevelProgress  float64 `json:"level_progress"`
	XPPerLevel     int     `json:"xp_per_level"`
}

func ToUserProfileResponse(u model.User) UserProfileResponse {
	return UserProfileResponse{
		User:           u,
		CurrentLevelXP: u.CurrentLevelXP(),
		XPToNextLevel:  u.XPToNextLevel(),
		LevelProgress:  u.LevelProgress(),
		XPPerLevel:     points.XPPerLevel,
	}
}

// SessionResponse marks the session the request was made with.
type SessionResponse struct {
	model.Session
	Current bool `json:"current"`
}

func ToSessionResponses(sessions []model.Session, currentID string, now time.Time) []SessionResponse {
	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		if !s.Valid(now) {
			continue
		}
		out = append(out, SessionResponse{Session: s, Current: s.SessionID == currentID})
	}
	return out
}
