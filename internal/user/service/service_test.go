package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	auditdomain "github.com/resumehub/billing/internal/audit/domain"
	auditrepo "github.com/resumehub/billing/internal/audit/repository"
	auditservice "github.com/resumehub/billing/internal/audit/service"
	userdomain "github.com/resumehub/billing/internal/user/domain"
	userrepo "github.com/resumehub/billing/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*gorm.DB, userdomain.Service) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&userdomain.User{}, &auditdomain.AuditLog{}))

	log := zaptest.NewLogger(t)
	audit := auditservice.NewService(auditservice.Params{DB: db, Log: log, Repo: auditrepo.Provide()})
	svc := NewService(Params{DB: db, Log: log, Repo: userrepo.Provide(), AuditSvc: audit})
	return db, svc
}

func TestEnsureUserCreates(t *testing.T) {
	db, svc := newService(t)

	user, err := svc.EnsureUser(context.Background(), 42, "ivan", "Иван", "Петров")
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.ID)
	assert.True(t, user.AutoRenew)
	require.NotNil(t, user.Username)
	assert.Equal(t, "ivan", *user.Username)

	var count int64
	require.NoError(t, db.Model(&auditdomain.AuditLog{}).Where("action = ?", "user.created").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEnsureUserRefreshesNamesOnly(t *testing.T) {
	db, svc := newService(t)

	_, err := svc.EnsureUser(context.Background(), 42, "ivan", "Иван", "")
	require.NoError(t, err)

	require.NoError(t, db.Exec(
		`UPDATE users SET token_balance = 100, balance_version = 3 WHERE id = 42`,
	).Error)

	user, err := svc.EnsureUser(context.Background(), 42, "vanya", "", "")
	require.NoError(t, err)
	require.NotNil(t, user.Username)
	assert.Equal(t, "vanya", *user.Username)
	assert.Equal(t, 100.0, user.Balance)
	assert.Equal(t, int64(3), user.BalanceVersion)
	// A blank first name keeps the stored one.
	require.NotNil(t, user.FirstName)
	assert.Equal(t, "Иван", *user.FirstName)
}

func TestEnsureUserRejectsZeroID(t *testing.T) {
	_, svc := newService(t)
	_, err := svc.EnsureUser(context.Background(), 0, "", "", "")
	assert.ErrorIs(t, err, userdomain.ErrInvalidID)
}

func TestGetUnknownUser(t *testing.T) {
	_, svc := newService(t)
	_, err := svc.Get(context.Background(), 404)
	assert.ErrorIs(t, err, userdomain.ErrNotFound)
}
