// Package directory is a gorm-backed reference implementation of the user,
// authorization and target-resolution collaborators consumed by the flags
// engine. Deployments with an existing user service implement the interfaces
// in package flags directly instead.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/openboard/modflags/flags"
)

type User struct {
	UID         string `gorm:"column:uid;primaryKey"`
	Username    string `gorm:"not null"`
	Picture     string
	IconText    string
	IconBgColor string
	Banned      bool
	Reputation  int64
	Admin       bool
	GlobalMod   bool
}

type Post struct {
	PID     string `gorm:"column:pid;primaryKey"`
	UID     string `gorm:"column:uid;index;not null"`
	CID     string `gorm:"column:cid;index;not null"`
	Deleted bool
}

type Moderator struct {
	UID string `gorm:"column:uid;primaryKey"`
	CID string `gorm:"column:cid;primaryKey"`
}

type Directory struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ flags.UserDirectory = (*Directory)(nil)
var _ flags.Authorizer = (*Directory)(nil)
var _ flags.TargetResolver = (*Directory)(nil)

func New(db *gorm.DB, logger *slog.Logger) (*Directory, error) {
	if err := db.AutoMigrate(&User{}, &Post{}, &Moderator{}); err != nil {
		return nil, fmt.Errorf("migrating directory tables: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{db: db, logger: logger}, nil
}

func (d *Directory) Profile(ctx context.Context, uid string) (*flags.UserProfile, error) {
	var u User
	err := d.db.WithContext(ctx).First(&u, "uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &flags.UserProfile{
		UID:         u.UID,
		Username:    u.Username,
		Picture:     u.Picture,
		IconText:    u.IconText,
		IconBgColor: u.IconBgColor,
		Banned:      u.Banned,
		Reputation:  u.Reputation,
	}, nil
}

// CanFlag grants user-target reports to everyone; post targets require the
// post to be readable by the reporter (not banned, post not soft-deleted).
func (d *Directory) CanFlag(ctx context.Context, targetType, targetID, uid string) (bool, error) {
	if targetType == flags.TypeUser {
		return true, nil
	}
	profile, err := d.Profile(ctx, uid)
	if err != nil {
		return false, err
	}
	if profile == nil || profile.Banned {
		return false, nil
	}
	var p Post
	err = d.db.WithContext(ctx).First(&p, "pid = ?", targetID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return !p.Deleted, nil
}

func (d *Directory) IsAdminOrGlobalMod(ctx context.Context, uid string) (bool, error) {
	var u User
	err := d.db.WithContext(ctx).First(&u, "uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return u.Admin || u.GlobalMod, nil
}

func (d *Directory) IsModerator(ctx context.Context, uid, cid string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&Moderator{}).
		Where("uid = ? AND cid = ?", uid, cid).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Exists reports target existence. A soft-deleted post surfaces
// flags.ErrTargetDeleted so callers can report the more specific reason.
func (d *Directory) Exists(ctx context.Context, targetType, targetID string) (bool, error) {
	switch targetType {
	case flags.TypeUser:
		var count int64
		err := d.db.WithContext(ctx).Model(&User{}).Where("uid = ?", targetID).Count(&count).Error
		return count > 0, err
	case flags.TypePost:
		var p Post
		err := d.db.WithContext(ctx).First(&p, "pid = ?", targetID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		} else if err != nil {
			return false, err
		}
		if p.Deleted {
			return false, flags.ErrTargetDeleted
		}
		return true, nil
	}
	return false, nil
}

func (d *Directory) OwnerUID(ctx context.Context, targetType, targetID string) (string, error) {
	switch targetType {
	case flags.TypeUser:
		return targetID, nil
	case flags.TypePost:
		var p Post
		err := d.db.WithContext(ctx).First(&p, "pid = ?", targetID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		} else if err != nil {
			return "", err
		}
		return p.UID, nil
	}
	return "", nil
}

func (d *Directory) CategoryID(ctx context.Context, targetType, targetID string) (string, error) {
	if targetType != flags.TypePost {
		return "", nil
	}
	var p Post
	err := d.db.WithContext(ctx).First(&p, "pid = ?", targetID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	} else if err != nil {
		return "", err
	}
	return p.CID, nil
}
