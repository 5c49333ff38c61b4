package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/resumehub/billing/internal/config"
	notifierdomain "github.com/resumehub/billing/internal/notifier/domain"
	userdomain "github.com/resumehub/billing/internal/user/domain"
	userrepo "github.com/resumehub/billing/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type recordingSender struct {
	sent []notifierdomain.Notification
	err  error
}

func (r *recordingSender) Send(ctx context.Context, n notifierdomain.Notification) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func newFixture(t *testing.T) (*gorm.DB, *recordingSender, notifierdomain.Service) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&userdomain.User{}))

	sender := &recordingSender{}
	svc := NewService(Params{
		DB:       db,
		Log:      zaptest.NewLogger(t),
		Config:   config.Config{BalanceNotifyThresholds: []int{50, 20, 10, 5}},
		Sender:   sender,
		UserRepo: userrepo.Provide(),
	})
	return db, sender, svc
}

func seedUser(t *testing.T, db *gorm.DB, u userdomain.User) {
	t.Helper()
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	require.NoError(t, db.Create(&u).Error)
}

func TestShouldNotifyLowBalance(t *testing.T) {
	_, _, svc := newFixture(t)

	// First crossing announces the largest covering threshold.
	th := svc.ShouldNotifyLowBalance(45, nil)
	require.NotNil(t, th)
	assert.Equal(t, 50, *th)

	// The announced threshold suppresses itself.
	fifty := 50
	assert.Nil(t, svc.ShouldNotifyLowBalance(45, &fifty))

	// Dropping further announces the next tier exactly once.
	th = svc.ShouldNotifyLowBalance(18, &fifty)
	require.NotNil(t, th)
	assert.Equal(t, 20, *th)

	twenty := 20
	assert.Nil(t, svc.ShouldNotifyLowBalance(18, &twenty))

	th = svc.ShouldNotifyLowBalance(4.5, &twenty)
	require.NotNil(t, th)
	assert.Equal(t, 10, *th)

	// Healthy balances never notify.
	assert.Nil(t, svc.ShouldNotifyLowBalance(500, nil))
}

func TestShouldNotifyLowBalanceDescendsTierByTier(t *testing.T) {
	_, _, svc := newFixture(t)

	var last *int
	balances := []float64{48, 19, 9, 4}
	var announced []int
	for _, b := range balances {
		th := svc.ShouldNotifyLowBalance(b, last)
		if th != nil {
			announced = append(announced, *th)
			last = th
		}
	}
	assert.Equal(t, []int{50, 20, 10, 5}, announced)
}

func TestNotifyLowBalancePersistsMarker(t *testing.T) {
	db, sender, svc := newFixture(t)
	seedUser(t, db, userdomain.User{ID: 1, Balance: 45})

	svc.NotifyLowBalance(context.Background(), 1, 45)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, notifierdomain.KindLowBalance, sender.sent[0].Kind)

	var u userdomain.User
	require.NoError(t, db.First(&u, "id = ?", 1).Error)
	require.NotNil(t, u.LastBalanceNotification)
	assert.Equal(t, 50, *u.LastBalanceNotification)

	// Same tier again: silent.
	svc.NotifyLowBalance(context.Background(), 1, 44)
	assert.Len(t, sender.sent, 1)
}

func TestNotifySwallowsSenderFailures(t *testing.T) {
	_, sender, svc := newFixture(t)
	sender.err = notifierdomain.ErrBlocked

	svc.Notify(context.Background(), notifierdomain.Notification{
		UserID: 1,
		Kind:   notifierdomain.KindPaymentSuccess,
	})

	sender.err = notifierdomain.ErrMalformed
	svc.Notify(context.Background(), notifierdomain.Notification{
		UserID: 1,
		Kind:   notifierdomain.KindPaymentSuccess,
	})
	assert.Empty(t, sender.sent)
}
