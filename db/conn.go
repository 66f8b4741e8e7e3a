// Package db opens the relational store and keeps the schema migrated
package db

import (
	"fmt"
	"os"

	"bitwise74/verify-api/internal/model"
	"bitwise74/verify-api/pkg/util"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func New() (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	switch viper.GetString("database.driver") {
	case "postgres":
		db, err = gorm.Open(postgres.Open(viper.GetString("database.dsn")))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres, %w", err)
		}
	default:
		dsn := viper.GetString("database.dsn")

		// If running in a docker container don't allow the sqlite file to be created.
		// The host should instead mount it using volumes
		if util.IsRunningInDocker() {
			if _, statErr := os.Stat(dsn); statErr != nil {
				return nil, fmt.Errorf("SQLite database file not mounted, please use docker volumes to mount it to /app/%s", dsn)
			}
		}

		db, err = gorm.Open(sqlite.Open(dsn))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite database, %w", err)
		}
	}

	err = db.AutoMigrate(
		&model.User{},
		&model.Verification{},
		&model.VerificationSession{},
		&model.ResendRequest{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return db, nil
}
