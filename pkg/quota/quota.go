// Package quota limits how many schedule generations an organization may run
// per month.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arnavshah/rota-engine/pkg/apperror"
	"github.com/arnavshah/rota-engine/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gate checks and records generation usage. A limit of zero or less disables
// the quota.
type Gate struct {
	db        *gorm.DB
	limit     int
	unlimited map[string]bool
	now       func() time.Time
}

// Summary is the usage of the current month.
type Summary struct {
	Month       string                     `json:"month"`
	Generations int                        `json:"generations"`
	Limit       int                        `json:"limit"`
	Unlimited   bool                       `json:"unlimited"`
	History     []database.GenerationUsage `json:"history"`
}

// NewGate returns a gate allowing limit generations per month, except for the
// unlimited organizations.
func NewGate(db *gorm.DB, limit int, unlimited []string) *Gate {
	g := &Gate{db: db, limit: limit, unlimited: make(map[string]bool, len(unlimited)), now: time.Now}
	for _, id := range unlimited {
		g.unlimited[id] = true
	}
	return g
}

func (g *Gate) month() string {
	return g.now().UTC().Format("2006-01")
}

func (g *Gate) isUnlimited(organizationID string) bool {
	return g.limit <= 0 || g.unlimited[organizationID]
}

// Check fails with a precondition error once the monthly quota is used up.
func (g *Gate) Check(ctx context.Context, organizationID string) error {
	if g.isUnlimited(organizationID) {
		return nil
	}
	used, err := g.used(ctx, organizationID, g.month())
	if err != nil {
		return err
	}
	if used >= g.limit {
		return apperror.Precondition(fmt.Sprintf("monthly generation quota reached (%d/%d)", used, g.limit))
	}
	return nil
}

// Record counts one generation for the current month. For limited
// organizations the increment is conditional on the quota, so concurrent
// generations cannot overrun it; a refused increment is a precondition error.
func (g *Gate) Record(ctx context.Context, organizationID string) error {
	db := g.db.WithContext(ctx)
	month := g.month()
	if g.isUnlimited(organizationID) {
		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "organization_id"}, {Name: "month"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"generations": gorm.Expr("generations + ?", 1),
			}),
		}).Create(&database.GenerationUsage{
			OrganizationID: organizationID,
			Month:          month,
			Generations:    1,
		}).Error
		if err != nil {
			return fmt.Errorf("record generation usage: %w", err)
		}
		return nil
	}

	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&database.GenerationUsage{
		OrganizationID: organizationID,
		Month:          month,
	}).Error
	if err != nil {
		return fmt.Errorf("record generation usage: %w", err)
	}
	res := db.Model(&database.GenerationUsage{}).
		Where("organization_id = ? AND month = ? AND generations < ?", organizationID, month, g.limit).
		Update("generations", gorm.Expr("generations + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("record generation usage: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.Precondition(fmt.Sprintf("monthly generation quota reached (%d/%d)", g.limit, g.limit))
	}
	return nil
}

// Usage summarizes the current month and the last twelve.
func (g *Gate) Usage(ctx context.Context, organizationID string) (*Summary, error) {
	month := g.month()
	used, err := g.used(ctx, organizationID, month)
	if err != nil {
		return nil, err
	}
	var history []database.GenerationUsage
	err = g.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("month desc").
		Limit(12).
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("list generation usage: %w", err)
	}
	return &Summary{
		Month:       month,
		Generations: used,
		Limit:       g.limit,
		Unlimited:   g.isUnlimited(organizationID),
		History:     history,
	}, nil
}

func (g *Gate) used(ctx context.Context, organizationID, month string) (int, error) {
	var row database.GenerationUsage
	err := g.db.WithContext(ctx).
		Where("organization_id = ? AND month = ?", organizationID, month).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load generation usage: %w", err)
	}
	return row.Generations, nil
}
