package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"taskquest/dto"
	"taskquest/model"
	"taskquest/repository"
	"taskquest/result"
	"taskquest/viewmodel"

	"github.com/google/uuid"
)

// screen receives the intents posted for one open stream.
type screen interface {
	dispatch(ctx context.Context, in dto.Intent) result.Result[any]
}

type screenEntry struct {
	userID string
	screen screen
}

// screenRegistry tracks the screens with an open stream so intents can reach
// the view model whose events the stream delivers.
type screenRegistry struct {
	mu   sync.Mutex
	byID map[string]screenEntry
}

func newScreenRegistry() *screenRegistry {
	return &screenRegistry{byID: map[string]screenEntry{}}
}

func (r *screenRegistry) add(userID string, s screen) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.byID[id] = screenEntry{userID: userID, screen: s}
	r.mu.Unlock()
	return id
}

func (r *screenRegistry) remove(id string) {
	r.mu.Lock()
	delete(r.byID, id)
	r.mu.Unlock()
}

// get hides screens owned by other users.
func (r *screenRegistry) get(id, userID string) (screen, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok || e.userID != userID {
		return nil, false
	}
	return e.screen, true
}

func (r *screenRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func anyResult[T any](r result.Result[T]) result.Result[any] {
	return result.Map(r, func(v T) any { return v })
}

func unknownAction(action string) result.Result[any] {
	return result.Error[any](repository.MsgValidation,
		fmt.Errorf("%w: unknown action %q", repository.ErrValidation, action))
}

func missing(field string) result.Result[any] {
	return result.Error[any](repository.MsgValidation,
		fmt.Errorf("%w: %s is required", repository.ErrValidation, field))
}

type homeScreen struct{ vm *viewmodel.Home }

func (s homeScreen) dispatch(ctx context.Context, in dto.Intent) result.Result[any] {
	switch in.Action {
	case "set_filter":
		s.vm.SetFilter(in.Filter)
		return result.Success[any](s.vm.State().Filter)
	case "select_task":
		if in.TaskID == "" {
			return missing("task_id")
		}
		s.vm.SelectTask(in.TaskID)
		return result.Success[any](nil)
	case "complete_task":
		return anyResult(s.vm.CompleteTask(ctx, in.TaskID))
	case "create_task":
		if in.Task == nil {
			return missing("task")
		}
		return anyResult(s.vm.CreateTask(ctx, in.Task.ToTask()))
	case "delete_task":
		return anyResult(s.vm.DeleteTask(ctx, in.TaskID))
	case "refresh":
		s.vm.Refresh(ctx)
		return result.Success[any](nil)
	case "dismiss_error":
		s.vm.DismissError()
		return result.Success[any](nil)
	default:
		return unknownAction(in.Action)
	}
}

type taskDetailScreen struct{ vm *viewmodel.TaskDetail }

func (s taskDetailScreen) dispatch(ctx context.Context, in dto.Intent) result.Result[any] {
	switch in.Action {
	case "complete":
		return anyResult(s.vm.Complete(ctx))
	case "set_status":
		if in.Status == "" {
			return missing("status")
		}
		return anyResult(s.vm.SetStatus(ctx, model.TaskStatus(in.Status)))
	case "edit":
		if in.Patch == nil {
			return missing("patch")
		}
		return anyResult(s.vm.Edit(ctx, in.Patch.ToPatch()))
	case "delete":
		return anyResult(s.vm.Delete(ctx))
	case "remove_attachment":
		return anyResult(s.vm.RemoveAttachment(ctx, in.AttachmentID))
	case "upload_pending":
		return anyResult(s.vm.UploadPending(ctx))
	default:
		return unknownAction(in.Action)
	}
}

type leaderboardScreen struct{ vm *viewmodel.Leaderboard }

func (s leaderboardScreen) dispatch(ctx context.Context, in dto.Intent) result.Result[any] {
	switch in.Action {
	case "select_tab":
		if err := s.vm.SelectTab(ctx, viewmodel.LeaderboardTab(in.Tab)); err != nil {
			var f *result.Failure
			if errors.As(err, &f) {
				return result.Error[any](f.Message, f.Cause)
			}
			return result.Error[any](repository.MsgValidation, err)
		}
		return result.Success[any](s.vm.State().Ranks)
	case "refresh":
		s.vm.Refresh(ctx)
		return result.Success[any](nil)
	default:
		return unknownAction(in.Action)
	}
}
