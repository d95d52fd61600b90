package users

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/davidnajera/mentiondesk-backend/pkg/config"
	"github.com/davidnajera/mentiondesk-backend/pkg/db/models"
	pkgerrors "github.com/davidnajera/mentiondesk-backend/pkg/errors"
)

func setupUsersTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:users_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.Exec(`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`).Error)
	return conn
}

func seedUser(t *testing.T, conn *gorm.DB, email, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{Email: email, PasswordHash: string(hash)}
	require.NoError(t, NewRepository(conn).Create(context.Background(), user))
	return user
}

func testService(t *testing.T, conn *gorm.DB) *Service {
	t.Helper()
	svc, err := NewService(NewRepository(conn), config.JWTConfig{
		Secret:    "test-secret",
		ExpiresIn: time.Hour,
		Issuer:    "mentiondesk",
	})
	require.NoError(t, err)
	return svc
}

func TestLoginIssuesToken(t *testing.T) {
	conn := setupUsersTestDB(t)
	user := seedUser(t, conn, "op@example.com", "hunter22")
	svc := testService(t, conn)

	result, err := svc.Login(context.Background(), "OP@example.com ", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, user.ID, result.Actor.ID)
	assert.Equal(t, "op@example.com", result.Actor.Email)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	conn := setupUsersTestDB(t)
	seedUser(t, conn, "op@example.com", "hunter22")
	svc := testService(t, conn)

	_, err := svc.Login(context.Background(), "op@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())

	_, err = svc.Login(context.Background(), "missing@example.com", "hunter22")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestLoginValidatesInput(t *testing.T) {
	svc := testService(t, setupUsersTestDB(t))

	_, err := svc.Login(context.Background(), "", "pw")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
