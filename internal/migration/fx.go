package migration

import (
	"github.com/smallbiznis/inspectconnect/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply migrates the connected database with the strategy its dialect supports.
func Apply(conn *gorm.DB, log *zap.Logger) error {
	log = log.Named("migration")
	if !db.IsPostgres(conn) {
		log.Info("applying schema with auto-migrate", zap.String("dialect", conn.Dialector.Name()))
		return AutoMigrate(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if err := RunMigrations(sqlDB); err != nil {
		return err
	}
	log.Info("schema migrations applied")
	return nil
}
