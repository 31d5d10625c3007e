package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"goimomi/config"
	"goimomi/models"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Tables lists every persisted entity in migration order.
func Tables() []any {
	return []any{
		&models.Destination{},
		&models.StartingCity{},
		&models.Country{},
		&models.Nationality{},
		&models.UmrahDestination{},
		&models.ItineraryMaster{},
		&models.HolidayPackage{},
		&models.ItineraryDay{},
		&models.Inclusion{},
		&models.Exclusion{},
		&models.Highlight{},
		&models.PackageDestination{},
		&models.Supplier{},
		&models.Visa{},
		&models.VisaApplication{},
		&models.VisaApplicant{},
		&models.VisaAdditionalDocument{},
		&models.HolidayEnquiry{},
		&models.UmrahEnquiry{},
		&models.Enquiry{},
		&models.User{},
	}
}

// Open connects to the relational store selected by cfg.DBDriver.
func Open(cfg config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_CONNECTION_STRING is required for postgres")
		}
		dialector = postgres.Open(cfg.DBDSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DBDSN)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}

	if cfg.DBDriver == "sqlite" {
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		// sqlite allows a single writer; one connection keeps in-memory databases coherent.
		sqlDB.SetMaxOpenConns(1)
	}
	return gdb, nil
}

// Migrate creates or updates the schema for every table.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(Tables()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Init opens and migrates the database, failing fast like the rest of startup.
func Init(cfg config.Config) *gorm.DB {
	gdb, err := Open(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		log.Fatalf("Failed to migrate database schema: %v", err)
	}
	return gdb
}

// ConnectMongo returns nil without error when uri is empty.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}
