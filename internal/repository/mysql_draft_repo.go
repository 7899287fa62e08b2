package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/convsync/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MySQLDraftRepo stores drafts in MySQL through gorm
type MySQLDraftRepo struct {
	db *gorm.DB
}

// NewMySQLDraftRepo creates a MySQLDraftRepo and migrates the drafts table
func NewMySQLDraftRepo(ctx context.Context, db *gorm.DB) (*MySQLDraftRepo, error) {
	if err := db.WithContext(ctx).AutoMigrate(&entity.Draft{}); err != nil {
		return nil, err
	}
	return &MySQLDraftRepo{db: db}, nil
}

// Get gets the draft for a conversation
func (r *MySQLDraftRepo) Get(ctx context.Context, conversationId string) (string, bool, error) {
	var draft entity.Draft
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		First(&draft).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return draft.Text, true, nil
}

// Set upserts the draft for a conversation
func (r *MySQLDraftRepo) Set(ctx context.Context, conversationId, text string) error {
	now := entity.NowUnixMilli()
	draft := &entity.Draft{
		ConversationId: conversationId,
		Text:           text,
		UpdatedAt:      now,
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "conversation_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"text":       text,
			"updated_at": now,
		}),
	}).Create(draft).Error
}

// Delete removes the draft for a conversation
func (r *MySQLDraftRepo) Delete(ctx context.Context, conversationId string) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Delete(&entity.Draft{}).Error
}

// Ping checks the MySQL connection
func (r *MySQLDraftRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the MySQL connection
func (r *MySQLDraftRepo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
