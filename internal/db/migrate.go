package db

import (
	"errors"
	"fmt"

	"github.com/cmstools-dev/cmstools/internal/models"
	"github.com/cmstools-dev/cmstools/internal/security"
	"gorm.io/gorm"
)

// Migrate applies the metadata schema to the given connection.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.Connection{},
		&models.Table{},
		&models.Column{},
		&models.Role{},
		&models.UserRole{},
		&models.TablePermission{},
		&models.AuditLog{},
		&models.Operator{},
	)
}

// SeedDefaultOperator creates a super-admin operator when none exists.
// It is a no-op when any operator row is already present.
func SeedDefaultOperator(conn *gorm.DB, username, password string) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if username == "" || password == "" {
		return fmt.Errorf("db: seed operator requires username and password")
	}

	var existing models.Operator
	errFind := conn.Select("id").First(&existing).Error
	if errFind == nil {
		return nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: seed operator lookup: %w", errFind)
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return fmt.Errorf("db: hash seed password: %w", errHash)
	}
	operator := models.Operator{
		Username:     username,
		Password:     hash,
		Active:       true,
		IsSuperAdmin: true,
	}
	if errCreate := conn.Create(&operator).Error; errCreate != nil {
		return fmt.Errorf("db: seed operator: %w", errCreate)
	}
	return nil
}
