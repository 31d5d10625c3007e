package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"goimomi/activity"
	"goimomi/app"
	"goimomi/models"
	"goimomi/testkit"

	"github.com/julienschmidt/httprouter"
)

func newRouter(t *testing.T) (*httprouter.Router, *app.App) {
	t.Helper()
	a := testkit.NewApp(t)
	users := NewUsers(a)
	r := httprouter.New()
	r.POST("/admin-login/", Login(a))
	r.GET("/users", a.Auth.RequireSuperuser(users.List))
	r.POST("/users", a.Auth.RequireSuperuser(users.Create))
	r.PATCH("/users/:id", a.Auth.RequireSuperuser(users.Update))
	return r, a
}

func addUser(t *testing.T, a *app.App, username, password string, staff, active bool) models.User {
	t.Helper()
	h, err := HashPassword(password)
	if err != nil {
		t.Fatal(err)
	}
	u := models.User{Username: username, Email: username + "@example.com", PasswordHash: h, IsStaff: staff, IsActive: active}
	if err := a.DB.Create(&u).Error; err != nil {
		t.Fatal(err)
	}
	return u
}

func TestLoginOutcomes(t *testing.T) {
	r, a := newRouter(t)
	addUser(t, a, "agent", "s3cret-pass", true, true)
	addUser(t, a, "customer", "s3cret-pass", false, true)
	addUser(t, a, "retired", "s3cret-pass", true, false)

	cases := []struct {
		name, username, password string
		code                     int
	}{
		{"staff", "agent", "s3cret-pass", http.StatusOK},
		{"wrong password", "agent", "nope", http.StatusUnauthorized},
		{"unknown user", "ghost", "s3cret-pass", http.StatusUnauthorized},
		{"not staff", "customer", "s3cret-pass", http.StatusForbidden},
		{"inactive", "retired", "s3cret-pass", http.StatusUnauthorized},
		{"missing password", "agent", "", http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := testkit.Do(t, r, http.MethodPost, "/admin-login/", "", map[string]string{"username": c.username, "password": c.password}, "")
			if rec.Code != c.code {
				t.Fatalf("code = %d %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestLoginReturnsSummaryTokenAndRecordsIt(t *testing.T) {
	r, a := newRouter(t)
	u := addUser(t, a, "agent", "s3cret-pass", true, true)

	rec := testkit.Do(t, r, http.MethodPost, "/admin-login/", "", strings.NewReader("username=agent&password=s3cret-pass"), "application/x-www-form-urlencoded")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body)
	}
	var out struct {
		Success bool               `json:"success"`
		User    models.UserSummary `json:"user"`
		Token   string             `json:"token"`
	}
	testkit.Decode(t, rec, &out)
	if !out.Success || out.User.ID != u.ID || out.User.Username != "agent" || out.User.IsSuperuser {
		t.Fatalf("response = %+v", out)
	}
	claims, err := a.Auth.ValidateJWT(out.Token)
	if err != nil || claims.UserID() != u.ID || !claims.Staff {
		t.Fatalf("token claims = %+v, %v", claims, err)
	}

	var stored models.User
	a.DB.First(&stored, u.ID)
	if stored.LastLogin == nil {
		t.Fatal("last_login not set")
	}
	events, _ := a.Activity.Store().Recent(context.Background(), 0, 10)
	if len(events) != 1 || events[0].Action != activity.ActionLogin || events[0].Actor != "agent" {
		t.Fatalf("events = %+v", events)
	}
}

func TestUsersRequireSuperuserAndHashPasswords(t *testing.T) {
	r, a := newRouter(t)

	body := map[string]any{"username": "newbie", "email": "n@example.com", "password": "long-enough"}
	if rec := testkit.Do(t, r, http.MethodPost, "/users", testkit.StaffToken(t, a, false), body, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("staff create: %d", rec.Code)
	}

	su := testkit.StaffToken(t, a, true)
	rec := testkit.Do(t, r, http.MethodPost, "/users", su, body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), "long-enough") {
		t.Fatal("password echoed back")
	}
	var created models.User
	testkit.Decode(t, rec, &created)
	if !created.IsStaff || !created.IsActive {
		t.Fatalf("defaults = %+v", created)
	}

	login := func(pw string) int {
		return testkit.Do(t, r, http.MethodPost, "/admin-login/", "", map[string]string{"username": "newbie", "password": pw}, "").Code
	}
	if code := login("long-enough"); code != http.StatusOK {
		t.Fatalf("login with created password: %d", code)
	}

	target := "/users/" + strconv.Itoa(int(created.ID))
	if rec := testkit.Do(t, r, http.MethodPatch, target, su, map[string]string{"first_name": "New"}, ""); rec.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", rec.Code, rec.Body)
	}
	if code := login("long-enough"); code != http.StatusOK {
		t.Fatalf("password lost on patch: %d", code)
	}
	if rec := testkit.Do(t, r, http.MethodPatch, target, su, map[string]string{"password": "changed-too"}, ""); rec.Code != http.StatusOK {
		t.Fatalf("password change: %d", rec.Code)
	}
	if code := login("changed-too"); code != http.StatusOK {
		t.Fatalf("login after change: %d", code)
	}

	if rec := testkit.Do(t, r, http.MethodPost, "/users", su, map[string]string{"username": "nopass"}, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("create without password: %d", rec.Code)
	}
}

func TestEnsureSuperuser(t *testing.T) {
	a := testkit.NewApp(t)
	ctx := context.Background()

	created, err := EnsureSuperuser(ctx, a.DB, "root", "root@example.com", "first-password")
	if err != nil || !created {
		t.Fatalf("first call = %v, %v", created, err)
	}
	created, err = EnsureSuperuser(ctx, a.DB, "root", "", "second-password")
	if err != nil || created {
		t.Fatalf("second call = %v, %v", created, err)
	}
	u, err := Authenticate(ctx, a.DB, "root", "second-password")
	if err != nil || !u.IsSuperuser || u.Email != "root@example.com" {
		t.Fatalf("reset account = %+v, %v", u, err)
	}
	if _, err := EnsureSuperuser(ctx, a.DB, "root", "", "short"); err == nil {
		t.Fatal("short password accepted")
	}
}
