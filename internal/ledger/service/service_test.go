package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	auditdomain "github.com/resumehub/billing/internal/audit/domain"
	auditrepo "github.com/resumehub/billing/internal/audit/repository"
	auditservice "github.com/resumehub/billing/internal/audit/service"
	"github.com/resumehub/billing/internal/clock"
	"github.com/resumehub/billing/internal/config"
	ledgerdomain "github.com/resumehub/billing/internal/ledger/domain"
	ledgerrepo "github.com/resumehub/billing/internal/ledger/repository"
	userdomain "github.com/resumehub/billing/internal/user/domain"
	userrepo "github.com/resumehub/billing/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&userdomain.User{},
		&ledgerdomain.Transaction{},
		&auditdomain.AuditLog{},
	))
	return db
}

func newLedger(t *testing.T, db *gorm.DB, fc *clock.FakeClock) ledgerdomain.Service {
	t.Helper()
	log := zaptest.NewLogger(t)
	audit := auditservice.NewService(auditservice.Params{
		DB:   db,
		Log:  log,
		Repo: auditrepo.Provide(),
	})
	return NewService(Params{
		DB:       db,
		Log:      log,
		Clock:    fc,
		Config:   config.Config{BalanceFloor: 1000},
		Repo:     ledgerrepo.Provide(),
		UserRepo: userrepo.Provide(),
		AuditSvc: audit,
	})
}

func seedUser(t *testing.T, db *gorm.DB, u userdomain.User) {
	t.Helper()
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	require.NoError(t, db.Create(&u).Error)
}

func userByID(t *testing.T, db *gorm.DB, id int64) userdomain.User {
	t.Helper()
	var u userdomain.User
	require.NoError(t, db.First(&u, "id = ?", id).Error)
	return u
}

func TestCreditIncreasesBalance(t *testing.T) {
	db := newTestDB(t)
	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := newLedger(t, db, fc)
	seedUser(t, db, userdomain.User{ID: 1, Balance: 100})

	txn, err := svc.Credit(context.Background(), ledgerdomain.CreditRequest{
		UserID:      1,
		Amount:      50,
		Description: "Пополнение",
	})
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.TypeTopup, txn.Type)
	assert.Equal(t, 50.0, txn.TokensDelta)
	assert.Equal(t, 150.0, txn.BalanceAfter)

	u := userByID(t, db, 1)
	assert.Equal(t, 150.0, u.Balance)
	assert.Equal(t, int64(1), u.BalanceVersion)
}

func TestDebitDecreasesBalance(t *testing.T) {
	db := newTestDB(t)
	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := newLedger(t, db, fc)
	seedUser(t, db, userdomain.User{ID: 1, Balance: 100})

	txn, err := svc.Debit(context.Background(), ledgerdomain.DebitRequest{
		UserID:      1,
		Amount:      30,
		Description: "Списание",
	})
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.TypeSpend, txn.Type)
	assert.Equal(t, -30.0, txn.TokensDelta)
	assert.Equal(t, 70.0, txn.BalanceAfter)
	assert.Equal(t, 70.0, userByID(t, db, 1).Balance)
}

func TestDebitAllowsNegativeDownToFloor(t *testing.T) {
	db := newTestDB(t)
	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := newLedger(t, db, fc)
	seedUser(t, db, userdomain.User{ID: 1, Balance: 0})

	txn, err := svc.Debit(context.Background(), ledgerdomain.DebitRequest{
		UserID:      1,
		Amount:      1000,
		Description: "deferred task cost",
	})
	require.NoError(t, err)
	assert.Equal(t, -1000.0, txn.BalanceAfter)

	_, err = svc.Debit(context.Background(), ledgerdomain.DebitRequest{
		UserID:      1,
		Amount:      0.01,
		Description: "over the floor",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ledgerdomain.ErrInsufficientBalance)

	var ib *ledgerdomain.InsufficientBalanceError
	require.ErrorAs(t, err, &ib)
	assert.Equal(t, 0.01, ib.Required)
	assert.Equal(t, -1000.0, ib.Available)
	assert.Equal(t, -1000.0, userByID(t, db, 1).Balance)
}

func TestIdempotentReplayReturnsStoredTransaction(t *testing.T) {
	db := newTestDB(t)
	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := newLedger(t, db, fc)
	seedUser(t, db, userdomain.User{ID: 1, Balance: 0})

	key := "invoice:abc"
	first, err := svc.Credit(context.Background(), ledgerdomain.CreditRequest{
		UserID:         1,
		Amount:         200,
		Description:    "Пополнение",
		IdempotencyKey: &key,
	})
	require.NoError(t, err)

	second, err := svc.Credit(context.Background(), ledgerdomain.CreditRequest{
		UserID:         1,
		Amount:         200,
		Description:    "Пополнение",
		IdempotencyKey: &key,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	u := userByID(t, db, 1)
	assert.Equal(t, 200.0, u.Balance)
	assert.Equal(t, int64(1), u.BalanceVersion)

	var count int64
	require.NoError(t, db.Model(&ledgerdomain.Transaction{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestInvalidAmountRejected(t *testing.T) {
	db := newTestDB(t)
	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := newLedger(t, db, fc)
	seedUser(t, db, userdomain.User{ID: 1, Balance: 10})

	_, err := svc.Credit(context.Background(), ledgerdomain.CreditRequest{UserID: 1, Amount: 0})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)

	_, err = svc.Debit(context.Background(), ledgerdomain.DebitRequest{UserID: 1, Amount: -5})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)
}

func TestBlockedUserDebitRefused(t *testing.T) {
	db := newTestDB(t)
	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := newLedger(t, db, fc)
	seedUser(t, db, userdomain.User{ID: 1, Balance: 10, IsBlocked: true})

	_, err := svc.Debit(context.Background(), ledgerdomain.DebitRequest{UserID: 1, Amount: 1})
	assert.ErrorIs(t, err, ledgerdomain.ErrUserBlocked)
}

// A gateway-confirmed payment must land even for a blocked user; the
// block only stops spending.
func TestBlockedUserCreditLands(t *testing.T) {
	db := newTestDB(t)
	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := newLedger(t, db, fc)
	seedUser(t, db, userdomain.User{ID: 1, Balance: 10, IsBlocked: true})

	txn, err := svc.Credit(context.Background(), ledgerdomain.CreditRequest{
		UserID:      1,
		Amount:      100,
		Description: "topup",
	})
	require.NoError(t, err)
	assert.Equal(t, 110.0, txn.BalanceAfter)

	var u userdomain.User
	require.NoError(t, db.First(&u, "id = ?", 1).Error)
	assert.Equal(t, 110.0, u.Balance)
}

func TestDebitRequiresActiveSubscription(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fc := clock.NewFakeClock(now)
	svc := newLedger(t, db, fc)

	expired := now.Add(-time.Hour)
	seedUser(t, db, userdomain.User{ID: 1, Balance: 100, SubscriptionEnd: &expired})

	_, err := svc.Debit(context.Background(), ledgerdomain.DebitRequest{
		UserID:                    1,
		Amount:                    10,
		RequireActiveSubscription: true,
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrSubscriptionExpired)

	active := now.Add(24 * time.Hour)
	seedUser(t, db, userdomain.User{ID: 2, Balance: 100, SubscriptionEnd: &active})

	_, err = svc.Debit(context.Background(), ledgerdomain.DebitRequest{
		UserID:                    2,
		Amount:                    10,
		RequireActiveSubscription: true,
	})
	assert.NoError(t, err)
}

func TestUnknownUser(t *testing.T) {
	db := newTestDB(t)
	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := newLedger(t, db, fc)

	_, err := svc.Debit(context.Background(), ledgerdomain.DebitRequest{UserID: 404, Amount: 1})
	assert.True(t, errors.Is(err, userdomain.ErrNotFound))
}

func TestCreditResetsBalanceNotificationMarker(t *testing.T) {
	db := newTestDB(t)
	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := newLedger(t, db, fc)

	marker := 20
	seedUser(t, db, userdomain.User{ID: 1, Balance: 15, LastBalanceNotification: &marker})

	_, err := svc.Credit(context.Background(), ledgerdomain.CreditRequest{UserID: 1, Amount: 100})
	require.NoError(t, err)
	assert.Nil(t, userByID(t, db, 1).LastBalanceNotification)

	// A debit must not touch the marker.
	marker2 := 50
	seedUser(t, db, userdomain.User{ID: 2, Balance: 40, LastBalanceNotification: &marker2})
	_, err = svc.Debit(context.Background(), ledgerdomain.DebitRequest{UserID: 2, Amount: 10})
	require.NoError(t, err)
	require.NotNil(t, userByID(t, db, 2).LastBalanceNotification)
	assert.Equal(t, 50, *userByID(t, db, 2).LastBalanceNotification)
}

func TestHistoryNewestFirst(t *testing.T) {
	db := newTestDB(t)
	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := newLedger(t, db, fc)
	seedUser(t, db, userdomain.User{ID: 1, Balance: 0})

	for i := 0; i < 3; i++ {
		_, err := svc.Credit(context.Background(), ledgerdomain.CreditRequest{
			UserID:      1,
			Amount:      float64(i + 1),
			Description: fmt.Sprintf("topup %d", i+1),
		})
		require.NoError(t, err)
		fc.Advance(time.Minute)
	}

	history, err := svc.History(context.Background(), 1, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "topup 3", history[0].Description)
	assert.Equal(t, "topup 1", history[2].Description)
}
