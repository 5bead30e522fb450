package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"librarysystem/pkg/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// InitLibraryDB connects to the library database configured through
// environment variables and migrates the book, patron and loan tables.
func InitLibraryDB() *gorm.DB {
	host := GetEnv("DB_HOST", "postgres")
	port := GetEnv("DB_PORT", "5432")
	user := GetEnv("DB_USER", "program")
	password := GetEnv("DB_PASSWORD", "test")
	dbname := GetEnv("DB_NAME", "library")

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		host, user, password, dbname, port)

	log.Printf("Connecting to library database: %s@%s:%s/%s", user, host, port, dbname)

	var db *gorm.DB
	var err error
	maxRetries := 10
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			break
		}
		log.Printf("Database connection attempt %d/%d failed: %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(5 * time.Second)
		}
	}
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Database ping failed: %v", err)
	}

	err = db.AutoMigrate(&models.Book{}, &models.Patron{}, &models.Loan{})
	if err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}

	log.Println("Database connection established successfully")
	return db
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
