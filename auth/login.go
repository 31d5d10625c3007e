// Package auth handles staff login and back-office user accounts.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"goimomi/activity"
	"goimomi/app"
	"goimomi/models"
	"goimomi/utils"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// dummyHash keeps the unknown-user path as slow as a real comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

func HashPassword(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Authenticate returns the active user matching the credentials.
func Authenticate(ctx context.Context, gdb *gorm.DB, username, password string) (*models.User, error) {
	var u models.User
	err := gdb.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func readCredentials(r *http.Request) (credentials, error) {
	var c credentials
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 16); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return c, err
		}
		c.Username, c.Password = r.FormValue("username"), r.FormValue("password")
	default:
		if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<16)).Decode(&c); err != nil {
			return c, err
		}
	}
	c.Username = strings.TrimSpace(c.Username)
	return c, nil
}

// Login handles POST /api/admin-login/. Valid credentials of a non-staff
// account are refused with 403.
func Login(a *app.App) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		c, err := readCredentials(r)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
			return
		}
		if c.Username == "" || c.Password == "" {
			utils.RespondWithError(w, http.StatusBadRequest, "Username and password are required")
			return
		}

		u, err := Authenticate(ctx, a.DB, c.Username, c.Password)
		if errors.Is(err, ErrInvalidCredentials) {
			log.Printf("failed login for %q from %s", c.Username, r.RemoteAddr)
			utils.RespondWithJSON(w, http.StatusUnauthorized, utils.M{"success": false, "error": "Invalid credentials"})
			return
		}
		if err != nil {
			utils.RespondInternal(w, "login", err)
			return
		}
		if !u.IsStaff {
			utils.RespondWithJSON(w, http.StatusForbidden, utils.M{"success": false, "error": "Access denied. Staff only."})
			return
		}

		token, err := a.Auth.IssueToken(*u)
		if err != nil {
			utils.RespondInternal(w, "issue token", err)
			return
		}
		now := time.Now().UTC()
		if err := a.DB.WithContext(ctx).Model(u).Update("last_login", now).Error; err != nil {
			log.Printf("record last_login for %s: %v", u.Username, err)
		}
		a.Activity.Record(ctx, activity.Event{
			Action:   activity.ActionLogin,
			Entity:   "user",
			EntityID: u.ID,
			Actor:    u.Username,
		})

		utils.RespondWithJSON(w, http.StatusOK, utils.M{
			"success": true,
			"user":    u.Summary(),
			"token":   token,
		})
	}
}
