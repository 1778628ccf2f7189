// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/psds-microservice/support-service/internal/database"
	"github.com/psds-microservice/support-service/internal/model"
)

// OpenDB opens a private in-memory SQLite database named after the test and
// applies migrations. The handle is closed via t.Cleanup.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open(database.DriverSQLite, "file:"+name+"?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	if err := database.MigrateUp(context.Background(), db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// SeedUser inserts a user row directly, bypassing the directory.
func SeedUser(t *testing.T, db *gorm.DB, id string, role model.Role, active bool) model.User {
	t.Helper()
	u := model.User{ID: id, DisplayName: "User " + id, Role: role, Active: active}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return u
}

// GenerateJWTHS256 returns a signed caller token with sub set to userID.
func GenerateJWTHS256(t *testing.T, secret, userID string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}
