// seed-admin creates or updates the warehouse admin user and makes sure the
// warehouse has a receiving location to count into.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
//
// Env:
//   SEED_WAREHOUSE_ID  warehouse to seed into (default "wh-main")
//   SEED_ADMIN_PASSWORD  override the default admin password
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/models"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"gorm.io/gorm"
)

const (
	adminUsername = "warehouseAdmin"
	adminPassword = "W@rehouseAdmin"
	adminName     = "Warehouse Admin"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	warehouseId := os.Getenv("SEED_WAREHOUSE_ID")
	if warehouseId == "" {
		warehouseId = "wh-main"
	}
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = adminPassword
	}

	ctx = utils.SetWarehouseIdInContext(ctx, warehouseId)
	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "Seed")
	ctx = utils.SetUsernameInContext(ctx, adminUsername)

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			WarehouseId: warehouseId,
			Username:    adminUsername,
			Name:        adminName,
			Password:    hashedStr,
			IsActive:    utils.NewTrue(),
			Role:        models.RoleAdmin,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q (role=Admin, warehouse=%s)\n", adminUsername, warehouseId)
	} else {
		if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).Updates(map[string]any{
			"password":     hashedStr,
			"name":         adminName,
			"is_active":    utils.NewTrue(),
			"warehouse_id": warehouseId,
			"role":         models.RoleAdmin,
		}).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated admin user: username=%q (role=Admin, warehouse=%s)\n", adminUsername, warehouseId)
	}

	// Default receiving and storage locations so sessions can start right away.
	seedLocation(ctx, db, warehouseId, "RECV-01", "Receiving Dock", models.LocationTypeReceiving)
	seedLocation(ctx, db, warehouseId, "STOR-01", "General Storage", models.LocationTypeStorage)
}

func seedLocation(ctx context.Context, db *gorm.DB, warehouseId string, code string, name string, locType models.LocationType) {
	var count int64
	err := db.WithContext(ctx).Model(&models.Location{}).
		Where("warehouse_id = ? AND code = ?", warehouseId, code).
		Count(&count).Error
	utils.ErrorPanic(err)
	if count > 0 {
		return
	}
	_, err = models.CreateLocation(ctx, &models.NewLocation{Code: code, Name: name, Type: locType})
	utils.ErrorPanic(err)
	fmt.Printf("Created location %s (%s)\n", code, locType)
}
