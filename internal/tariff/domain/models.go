// Package domain contains the tariff catalog model.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PeriodUnit is the granularity of a tariff's subscription period.
type PeriodUnit string

const (
	PeriodUnitHour  PeriodUnit = "hour"
	PeriodUnitDay   PeriodUnit = "day"
	PeriodUnitMonth PeriodUnit = "month"
)

// Tariff is a purchasable plan. Tariffs are soft-deactivated, never
// deleted: historic invoices keep referencing them.
type Tariff struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Slug        string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name        string          `gorm:"type:varchar(100);not null"`
	Description *string         `gorm:"type:text"`
	Price       decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Tokens      int             `gorm:"not null"`
	PeriodUnit  PeriodUnit      `gorm:"type:varchar(10);not null;default:'day'"`
	PeriodValue int             `gorm:"not null;default:30"`

	// Tokens deducted when a payment activates the subscription.
	SubscriptionFee int `gorm:"not null;default:0"`
	// Subscription days granted by a classic purchase of this tariff.
	SubscriptionDays int `gorm:"not null;default:0"`
	// Minimum top-up amount in RUB.
	MinPayment decimal.Decimal `gorm:"type:numeric(10,2);not null;default:1"`

	SortOrder int       `gorm:"not null;default:0"`
	IsActive  bool      `gorm:"not null;default:true"`
	Version   int       `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Tariff) TableName() string { return "tariffs" }

// Period returns the subscription duration granted by one period of this
// tariff, anchored at base. Months use calendar arithmetic.
func (t *Tariff) Period(base time.Time) time.Time {
	switch t.PeriodUnit {
	case PeriodUnitHour:
		return base.Add(time.Duration(t.PeriodValue) * time.Hour)
	case PeriodUnitMonth:
		return base.AddDate(0, t.PeriodValue, 0)
	default:
		return base.AddDate(0, 0, t.PeriodValue)
	}
}
