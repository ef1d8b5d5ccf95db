package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/domain"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	return apperr.DB("create user", r.db.WithContext(ctx).Create(u).Error)
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.DB("find user", err)
	}
	return &u, nil
}

// FindByEmail 邮箱按小写存储
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).First(&u, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.DB("find user", err)
	}
	return &u, nil
}

func (r *UserRepo) List(ctx context.Context, q domain.UserQuery) ([]domain.User, int64, error) {
	base := func() *gorm.DB {
		tx := r.db.WithContext(ctx).Model(&domain.User{})
		if s := strings.TrimSpace(q.Search); s != "" {
			like := likeContains(s)
			tx = tx.Where("(LOWER(email)"+likeOp+" OR LOWER(first_name)"+likeOp+" OR LOWER(last_name)"+likeOp+")", like, like, like)
		}
		if q.Role != "" {
			tx = tx.Where("role = ?", q.Role)
		}
		return tx
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, apperr.DB("count users", err)
	}
	users := make([]domain.User, 0, q.Limit)
	if err := base().Offset(q.Offset).Limit(q.Limit).Order("created_at desc").Order("id").Find(&users).Error; err != nil {
		return nil, 0, apperr.DB("list users", err)
	}
	return users, total, nil
}

func (r *UserRepo) UpdateRole(ctx context.Context, id, role string) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("role", role)
	if res.Error != nil {
		return apperr.DB("update role", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

// Delete 同时删除该用户的收藏
func (r *UserRepo) Delete(ctx context.Context, id string) (bool, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&domain.SavedCurriculum{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.User{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, apperr.DB("delete user", err)
	}
	return affected > 0, nil
}
