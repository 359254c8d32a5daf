package model

import (
	"fmt"
	"strings"
	"time"

	"taskquest/points"
)

type Priority string
type TaskStatus string
type RecurrenceType string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"

	StatusPending    TaskStatus = "PENDING"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
	StatusCancelled  TaskStatus = "CANCELLED"
	StatusOverdue    TaskStatus = "OVERDUE"

	RecurrenceNone    RecurrenceType = "NONE"
	RecurrenceDaily   RecurrenceType = "DAILY"
	RecurrenceWeekly  RecurrenceType = "WEEKLY"
	RecurrenceMonthly RecurrenceType = "MONTHLY"
)

// ParsePriority accepts the symbolic name or the Spanish label.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "baja":
		return PriorityLow, true
	case "medium", "media":
		return PriorityMedium, true
	case "high", "alta":
		return PriorityHigh, true
	default:
		return "", false
	}
}

func (p Priority) Valid() bool {
	_, ok := ParsePriority(string(p))
	return ok
}

func (p Priority) Label() string {
	switch p {
	case PriorityLow:
		return "Baja"
	case PriorityHigh:
		return "Alta"
	default:
		return "Media"
	}
}

// Color is the hex color the clients paint the priority chip with.
func (p Priority) Color() string {
	switch p {
	case PriorityLow:
		return "#4CAF50"
	case PriorityHigh:
		return "#F44336"
	default:
		return "#FF9800"
	}
}

// Weight orders priorities, higher first.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled, StatusOverdue:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsOpen reports whether the task can still be completed.
func (s TaskStatus) IsOpen() bool {
	return s == StatusPending || s == StatusInProgress || s == StatusOverdue
}

// CanTransitionTo encodes the task lifecycle. COMPLETED is reachable from
// every open state; CANCELLED only from PENDING.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusCompleted || next == StatusCancelled || next == StatusOverdue
	case StatusInProgress:
		return next == StatusCompleted || next == StatusOverdue
	case StatusOverdue:
		return next == StatusInProgress || next == StatusCompleted
	default:
		return false
	}
}

// OpenStatuses lists the statuses a task can be completed from.
func OpenStatuses() []TaskStatus {
	return []TaskStatus{StatusPending, StatusInProgress, StatusOverdue}
}

func (r RecurrenceType) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	default:
		return false
	}
}

type Task struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    Priority       `json:"priority"`
	Status      TaskStatus     `json:"status"`
	Points      int            `json:"points"` // 0 means the priority default
	Category    string         `json:"category"`
	Tags        []string       `json:"tags"`
	DueDate     *time.Time     `json:"due_date,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Recurrence  RecurrenceType `json:"recurrence"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	SyncedAt    *time.Time     `json:"synced_at,omitempty"`
}

func (t Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

func (t Task) IsOverdue(now time.Time) bool {
	return t.Status.IsOpen() && t.DueDate != nil && t.DueDate.Before(now)
}

func (t Task) PriorityColor() string {
	return t.Priority.Color()
}

// EffectivePoints is the override when set, otherwise the priority default.
func (t Task) EffectivePoints() int {
	if t.Points > 0 {
		return t.Points
	}
	return points.PointsForPriority(string(t.Priority))
}

var shortMonths = [...]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sep", "oct", "nov", "dic"}

// FormatDate renders a date like "15 ene 2026".
func FormatDate(d time.Time) string {
	return fmt.Sprintf("%d %s %d", d.Day(), shortMonths[d.Month()-1], d.Year())
}

func (t Task) FormattedDueDate() string {
	if t.DueDate == nil {
		return "Sin fecha"
	}
	return FormatDate(*t.DueDate)
}

// TaskStats summarises a task list the way the dashboard shows it.
type TaskStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	Cancelled int `json:"cancelled"`

	HighPriority   int `json:"high_priority"`
	MediumPriority int `json:"medium_priority"`
	LowPriority    int `json:"low_priority"`

	Overdue  int `json:"overdue"`
	DueToday int `json:"due_today"`
	Upcoming int `json:"upcoming"` // Due in next 7 days
}
