// Package dbtest поднимает изолированную sqlite-базу в памяти для тестов.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Leganyst/studio-booking/internal/db"
	"github.com/Leganyst/studio-booking/internal/model"
)

// Open возвращает мигрированную базу; одно соединение, чтобы все запросы видели одну память.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), db.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := model.AutoMigrate(gdb); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return gdb
}

// SeedRoom создаёт комнату с заданной ценой за час.
func SeedRoom(t testing.TB, gdb *gorm.DB, name string, pricePerHour int64) *model.Room {
	t.Helper()

	room := &model.Room{Name: name, Category: "band", PricePerHour: pricePerHour}
	if err := gdb.Create(room).Error; err != nil {
		t.Fatalf("seed room: %v", err)
	}
	return room
}
