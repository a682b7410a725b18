package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"questbudget/internal/core"
	"questbudget/internal/storage"
)

// TaskService manages task templates and the instance lifecycle.
type TaskService struct {
	repo *storage.Repository
	now  func() time.Time
}

func NewTaskService(repo *storage.Repository) *TaskService {
	return &TaskService{repo: repo, now: time.Now}
}

// TemplateInput is the payload for creating a task template. A nil
// EXPValue falls back to the user's per-difficulty default.
type TemplateInput struct {
	Title        string
	Category     string
	Difficulty   core.Difficulty
	EXPValue     *int
	ScheduleType string
	ScheduleMeta json.RawMessage
	Active       bool
}

func (s *TaskService) CreateTemplate(ctx context.Context, userID int64, in TemplateInput) (core.TaskTemplate, error) {
	schedule, err := core.ParseSchedule(in.ScheduleType, in.ScheduleMeta)
	if err != nil {
		return core.TaskTemplate{}, err
	}

	expValue := 0
	if in.EXPValue != nil {
		expValue = *in.EXPValue
	} else {
		settings, err := s.repo.Queries().GetSettings(ctx, userID)
		if err != nil {
			return core.TaskTemplate{}, fmt.Errorf("load settings: %w", err)
		}
		expValue = settings.EXPForDifficulty(in.Difficulty)
	}

	template := core.TaskTemplate{
		UserID:     userID,
		Title:      in.Title,
		Category:   in.Category,
		Difficulty: in.Difficulty,
		EXPValue:   expValue,
		Schedule:   schedule,
		Active:     in.Active,
	}
	if err := template.Validate(); err != nil {
		return core.TaskTemplate{}, err
	}

	created, err := s.repo.Queries().CreateTemplate(ctx, template)
	if err != nil {
		return core.TaskTemplate{}, fmt.Errorf("create template: %w", err)
	}

	slog.InfoContext(ctx, "template created",
		"user_id", userID,
		"template_id", created.ID,
		"difficulty", created.Difficulty,
		"schedule_type", in.ScheduleType)
	return created, nil
}

// Generate materializes pending instances for every active template
// whose schedule matches the date. Existing instances are left alone,
// so calling it twice for the same date is a no-op.
func (s *TaskService) Generate(ctx context.Context, userID int64, date string) (int, error) {
	target, err := core.ParseDate(date)
	if err != nil {
		return 0, err
	}

	created := 0
	err = s.repo.WithTx(ctx, func(q *storage.Queries) error {
		templates, err := q.ListActiveTemplates(ctx, userID)
		if err != nil {
			return err
		}
		for _, tpl := range templates {
			if tpl.Schedule == nil || !tpl.Schedule.Matches(target) {
				continue
			}
			inserted, err := q.CreateInstanceIfAbsent(ctx, userID, tpl.ID, date)
			if err != nil {
				return err
			}
			if inserted {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "instances generated", "user_id", userID, "date", date, "created", created)
	return created, nil
}

// ListInstances returns the joined instance listing for one date.
func (s *TaskService) ListInstances(ctx context.Context, p storage.ListInstancesParams) ([]storage.InstanceWithTemplate, error) {
	if _, err := core.ParseDate(p.Date); err != nil {
		return nil, err
	}
	if p.Status != "" && !validStatus(core.InstanceStatus(p.Status)) {
		return nil, core.Validationf("unknown status %q", p.Status)
	}
	return s.repo.Queries().ListInstances(ctx, p)
}

func validStatus(st core.InstanceStatus) bool {
	switch st {
	case core.StatusPending, core.StatusCompleted, core.StatusSkipped:
		return true
	}
	return false
}

// Complete marks a pending instance as completed and awards EXP into the
// current month, truncated so the month total never exceeds the cap.
// The award can be zero when the cap is already reached; the completion
// still goes through.
func (s *TaskService) Complete(ctx context.Context, userID, instanceID int64, note string) (core.TaskInstance, float64, error) {
	if err := core.ValidateNote(note); err != nil {
		return core.TaskInstance{}, 0, err
	}
	note = strings.TrimSpace(note)

	now := s.now().UTC()
	var (
		instance core.TaskInstance
		awarded  float64
	)
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		instance, err = q.GetInstance(ctx, userID, instanceID)
		if errors.Is(err, sql.ErrNoRows) {
			return core.NotFoundf("task instance %d not found", instanceID)
		}
		if err != nil {
			return fmt.Errorf("load instance: %w", err)
		}
		if instance.Status != core.StatusPending {
			return core.ErrInstanceNotPending
		}

		template, err := q.GetTemplate(ctx, userID, instance.TemplateID)
		if err != nil {
			return fmt.Errorf("load template: %w", err)
		}

		month, err := q.GetMonth(ctx, userID, now.Year(), int(now.Month()))
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrMonthNotStarted
		}
		if err != nil {
			return fmt.Errorf("load month: %w", err)
		}

		state := core.ComputeState(month)
		awarded = math.Min(float64(template.EXPValue), state.CapRemaining())

		if err := q.CompleteInstance(ctx, instanceID, note, now); err != nil {
			return err
		}
		if awarded > 0 {
			if err := q.SetMonthEXPEarned(ctx, month.ID, core.Round2(month.EXPEarned+awarded)); err != nil {
				return err
			}
		}

		instance.Status = core.StatusCompleted
		instance.CompletionNote = note
		instance.CompletedAt = &now
		return nil
	})
	if err != nil {
		return core.TaskInstance{}, 0, err
	}

	slog.InfoContext(ctx, "instance completed",
		"user_id", userID,
		"instance_id", instanceID,
		"awarded_exp", awarded)
	return instance, awarded, nil
}

// Skip marks a pending instance as skipped. No EXP changes hands.
func (s *TaskService) Skip(ctx context.Context, userID, instanceID int64) (core.TaskInstance, error) {
	var instance core.TaskInstance
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		instance, err = q.GetInstance(ctx, userID, instanceID)
		if errors.Is(err, sql.ErrNoRows) {
			return core.NotFoundf("task instance %d not found", instanceID)
		}
		if err != nil {
			return fmt.Errorf("load instance: %w", err)
		}
		if instance.Status != core.StatusPending {
			return core.ErrInstanceNotPending
		}
		if err := q.SkipInstance(ctx, instanceID); err != nil {
			return err
		}
		instance.Status = core.StatusSkipped
		return nil
	})
	if err != nil {
		return core.TaskInstance{}, err
	}

	slog.InfoContext(ctx, "instance skipped", "user_id", userID, "instance_id", instanceID)
	return instance, nil
}
