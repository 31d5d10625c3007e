package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"goimomi/app"
	"goimomi/crud"
	"goimomi/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const minPasswordLen = 8

func NewUsers(a *app.App) *crud.Resource[models.User] {
	return &crud.Resource[models.User]{
		Name:  "user",
		App:   a,
		Order: "username",
		Scope: func(r *http.Request, q *gorm.DB) *gorm.DB {
			if s := strings.TrimSpace(r.URL.Query().Get("search")); s != "" {
				like := "%" + strings.ToLower(s) + "%"
				q = q.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", like, like)
			}
			return q
		},
		New: func() *models.User {
			return &models.User{IsStaff: true, IsActive: true}
		},
		Present: func(u *models.User) any {
			out := *u
			out.Password = ""
			return out
		},
		BeforeSave: setPassword,
	}
}

// setPassword hashes a supplied password. A new account must carry one.
func setPassword(_ *gorm.DB, u *models.User, isNew bool) error {
	if u.Password == "" {
		if isNew {
			return crud.Errorf(http.StatusBadRequest, "password is required")
		}
		return nil
	}
	if len(u.Password) < minPasswordLen {
		return crud.Errorf(http.StatusBadRequest, "password must be at least %d characters", minPasswordLen)
	}
	h, err := HashPassword(u.Password)
	if err != nil {
		return err
	}
	u.PasswordHash = h
	u.Password = ""
	return nil
}

// EnsureSuperuser creates the named superuser or resets its password and
// privileges. It reports whether the account was created.
func EnsureSuperuser(ctx context.Context, gdb *gorm.DB, username, email, password string) (bool, error) {
	if len(password) < minPasswordLen {
		return false, fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	h, err := HashPassword(password)
	if err != nil {
		return false, err
	}

	created := false
	err = gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		err := tx.Where("username = ?", username).First(&u).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			u = models.User{Username: username}
		case err != nil:
			return err
		}
		if email != "" {
			u.Email = email
		}
		u.PasswordHash = h
		u.IsStaff, u.IsSuperuser, u.IsActive = true, true, true
		return tx.Omit(clause.Associations).Save(&u).Error
	})
	return created, err
}
