package store

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"github.com/envlocker/envlocker/dao/model"
)

// auditListLimit caps the activity feed at the newest entries.
const auditListLimit = 200

type (
	AuditFilter struct {
		Action      string
		ProjectSlug string
		UserEmail   string
		From        *time.Time
		To          *time.Time
	}

	AuditEventOut struct {
		ID         uint              `json:"id"`
		Action     string            `json:"action"`
		ActorEmail string            `json:"actorEmail"`
		ProjectID  string            `json:"projectId"`
		TargetType string            `json:"targetType"`
		SecretName string            `json:"secretName,omitempty"`
		Meta       datatypes.JSONMap `json:"meta,omitempty"`
		CreatedAt  time.Time         `json:"createdAt"`
	}
)

func (s *Store) addAudit(projectID, actorID *uint, action, targetType string, targetID *uint, meta datatypes.JSONMap) error {
	event := model.AuditEvent{
		ProjectID:   projectID,
		ActorUserID: actorID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Meta:        meta,
	}
	return s.db.Create(&event).Error
}

// AddAuditEvent appends one entry to the activity trail.
func (s *Store) AddAuditEvent(ctx context.Context, projectID, actorID *uint, action, targetType string, targetID *uint, meta datatypes.JSONMap) error {
	event := model.AuditEvent{
		ProjectID:   projectID,
		ActorUserID: actorID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Meta:        meta,
	}
	return s.conn(ctx).Create(&event).Error
}

func (s *Store) auditEventOut(ctx context.Context, event *model.AuditEvent) AuditEventOut {
	out := AuditEventOut{
		ID:         event.ID,
		Action:     event.Action,
		ActorEmail: "unknown",
		ProjectID:  "unknown",
		TargetType: event.TargetType,
		Meta:       event.Meta,
		CreatedAt:  event.CreatedAt,
	}
	if event.ActorUserID != nil {
		var user model.User
		if err := s.conn(ctx).First(&user, *event.ActorUserID).Error; err == nil {
			out.ActorEmail = user.Email
		}
	}
	if event.ProjectID != nil {
		var project model.Project
		if err := s.conn(ctx).First(&project, *event.ProjectID).Error; err == nil {
			out.ProjectID = project.Slug
		}
	}
	if event.Meta != nil {
		if name, ok := event.Meta["secretName"].(string); ok {
			out.SecretName = name
		}
	}
	return out
}

// ListAuditEvents returns the newest matching entries, capped for the feed.
func (s *Store) ListAuditEvents(ctx context.Context, filter AuditFilter) ([]AuditEventOut, error) {
	query := s.conn(ctx).Model(&model.AuditEvent{})
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.ProjectSlug != "" {
		if projectID, ok := s.resolveProjectID(ctx, filter.ProjectSlug); ok {
			query = query.Where("project_id = ?", projectID)
		} else {
			return []AuditEventOut{}, nil
		}
	}
	if filter.UserEmail != "" {
		var user model.User
		if err := s.conn(ctx).Where("email = ?", filter.UserEmail).First(&user).Error; err == nil {
			query = query.Where("actor_user_id = ?", user.ID)
		} else {
			return []AuditEventOut{}, nil
		}
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}

	var events []model.AuditEvent
	if err := query.Order("created_at DESC, id DESC").Limit(auditListLimit).Find(&events).Error; err != nil {
		return nil, err
	}

	out := make([]AuditEventOut, 0, len(events))
	for i := range events {
		out = append(out, s.auditEventOut(ctx, &events[i]))
	}
	return out, nil
}
