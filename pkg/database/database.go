package database

import (
	"edu_progress_backend/internal/config"
	"edu_progress_backend/internal/model"
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig, mode string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	logLevel := logger.Warn
	if mode == "debug" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")
	return db, nil
}

// Migrate 迁移本服务拥有或读取的表
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Enrollment{},
		&model.Lesson{},
		&model.Exercise{},
		&model.Question{},
		&model.LessonProgress{},
		&model.LessonProgressItem{},
		&model.Quiz{},
		&model.QuizCompletion{},
		&model.Assignment{},
		&model.AssignmentSubmission{},
		&model.Notification{},
	)
	if err != nil {
		return err
	}

	log.Println("Database migration completed")
	return nil
}
