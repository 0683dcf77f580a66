package database

import (
	"fmt"
	"time"

	"github.com/arnavshah/rota-engine/internal/config"
	"github.com/arnavshah/rota-engine/pkg/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// APIKey is an integration credential scoped to one organization.
type APIKey struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	OrganizationID string     `gorm:"type:varchar(36);index;not null" json:"organization_id"`
	Key            string     `gorm:"unique;not null" json:"-"`
	Name           string     `gorm:"not null" json:"name"`
	Revoked        bool       `gorm:"default:false" json:"revoked"`
	CreatedAt      time.Time  `json:"created_at"`
	LastUsed       *time.Time `json:"last_used"`
}

// GenerationUsage counts schedule generations per organization and month.
type GenerationUsage struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	OrganizationID string `gorm:"type:varchar(36);uniqueIndex:idx_usage_org_month;not null" json:"organization_id"`
	Month          string `gorm:"type:varchar(7);uniqueIndex:idx_usage_org_month;not null" json:"month"`
	Generations    int    `gorm:"default:0" json:"generations"`
}

// Manager is a user allowed to edit an organization's schedules.
type Manager struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrganizationID string    `gorm:"type:varchar(36);index;not null" json:"organization_id"`
	Username       string    `gorm:"unique;not null" json:"username"`
	PasswordHash   string    `gorm:"not null" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// Tables lists every migrated model.
func Tables() []any {
	return []any{
		&models.Organization{},
		&models.OrganizationSettings{},
		&models.Role{},
		&models.RoleShiftTime{},
		&models.Location{},
		&models.StaffingRequirement{},
		&models.Employee{},
		&models.EmployeeRole{},
		&models.AvailabilityPattern{},
		&models.AvailabilityException{},
		&models.TimeOff{},
		&models.Incompatibility{},
		&models.Schedule{},
		&models.Shift{},
		&APIKey{},
		&GenerationUsage{},
		&Manager{},
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Tables()...)
}

// InitDB opens Postgres when DATABASE_URL is set and SQLite otherwise, then
// migrates the schema.
func InitDB(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		PrepareStmt: false,
		Logger: gormlogger.New(zap.NewStdLog(log.Named("gorm")), gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	var (
		db  *gorm.DB
		err error
	)
	if cfg.DatabaseURL != "" {
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DatabaseURL,
			PreferSimpleProtocol: true,
		}), gormCfg)
	} else {
		db, err = gorm.Open(sqlite.Open(cfg.DataPath), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	log.Info("database ready", zap.String("dialect", db.Dialector.Name()))
	return db, nil
}
