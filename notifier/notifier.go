// Package notifier persists flag notifications to a database and exposes a
// per-user inbox. It implements the flags.Notifier interface; deployments
// with their own delivery pipeline plug that in instead.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/openboard/modflags/flags"
)

type Notification struct {
	ID           uint   `gorm:"primarykey"`
	RecipientUID string `gorm:"column:recipient_uid;index;not null"`
	Kind         string `gorm:"not null"`
	FlagID       int64  `gorm:"column:flag_id;not null"`
	FromUID      string `gorm:"column:from_uid"`
	Body         string
	CreatedAt    time.Time
	SeenAt       *time.Time
}

type DBNotifier struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ flags.Notifier = (*DBNotifier)(nil)

func New(db *gorm.DB, logger *slog.Logger) (*DBNotifier, error) {
	if err := db.AutoMigrate(&Notification{}); err != nil {
		return nil, fmt.Errorf("migrating notification table: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DBNotifier{db: db, logger: logger}, nil
}

func (n *DBNotifier) Push(ctx context.Context, notice flags.Notice, recipientUIDs []string) error {
	if len(recipientUIDs) == 0 {
		return nil
	}
	rows := make([]Notification, 0, len(recipientUIDs))
	for _, uid := range recipientUIDs {
		rows = append(rows, Notification{
			RecipientUID: uid,
			Kind:         notice.Kind,
			FlagID:       notice.FlagID,
			FromUID:      notice.FromUID,
			Body:         notice.Body,
		})
	}
	return n.db.WithContext(ctx).Create(&rows).Error
}

// For returns a user's notifications, newest first.
func (n *DBNotifier) For(ctx context.Context, uid string) ([]Notification, error) {
	var out []Notification
	err := n.db.WithContext(ctx).
		Where("recipient_uid = ?", uid).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// MarkSeen stamps every unseen notification for the user.
func (n *DBNotifier) MarkSeen(ctx context.Context, uid string) error {
	now := time.Now()
	return n.db.WithContext(ctx).Model(&Notification{}).
		Where("recipient_uid = ? AND seen_at IS NULL", uid).
		Update("seen_at", &now).Error
}

// NullNotifier drops all notices; useful when no delivery pipeline is wired.
type NullNotifier struct{}

var _ flags.Notifier = (*NullNotifier)(nil)

func (NullNotifier) Push(ctx context.Context, notice flags.Notice, recipientUIDs []string) error {
	return nil
}
