package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hcmut-dev/rollcall-backend/internal/config"
	"github.com/hcmut-dev/rollcall-backend/internal/database"
	"github.com/hcmut-dev/rollcall-backend/internal/logger"
	"github.com/hcmut-dev/rollcall-backend/internal/model"
	"github.com/hcmut-dev/rollcall-backend/internal/repository"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// Seeds one lecturer, one located class and 50 enrolled students for local
// testing. Every account gets the password "password".
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	classRepo := repository.NewClassRepository(pool)

	fmt.Println("=== Seeding demo class with 50 students ===")

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	lecturer, err := userRepo.GetByUsername(ctx, "lecturer.demo")
	if err != nil {
		if err != pgx.ErrNoRows {
			log.Fatal().Err(err).Msg("Failed to look up lecturer")
		}
		lecturer = &model.User{
			Username:     "lecturer.demo",
			Name:         "Tran Van Minh",
			PasswordHash: string(hash),
			Role:         model.RoleLecturer,
			IsActive:     true,
		}
		if err := userRepo.Create(ctx, lecturer); err != nil {
			log.Fatal().Err(err).Msg("Failed to create lecturer")
		}
		fmt.Printf("Created lecturer with ID: %d\n", lecturer.ID)
	} else {
		fmt.Printf("Found existing lecturer with ID: %d\n", lecturer.ID)
	}

	var classID int
	err = pool.QueryRow(ctx, "SELECT id FROM classes WHERE code = $1 AND semester = $2", "CO1001", "2026.1").Scan(&classID)
	if err != nil {
		if err != pgx.ErrNoRows {
			log.Fatal().Err(err).Msg("Failed to check existing class")
		}
		class := &model.Class{
			Code:       "CO1001",
			Name:       "Introduction to Computing",
			LecturerID: lecturer.ID,
			Semester:   "2026.1",
			IsActive:   true,
		}
		if err := classRepo.Create(ctx, class); err != nil {
			log.Fatal().Err(err).Msg("Failed to create class")
		}
		classID = class.ID
		loc := model.Location{Lat: 10.772211, Lng: 106.657707, Radius: cfg.DefaultGeofenceRadius}
		if err := classRepo.SetLocation(ctx, classID, loc); err != nil {
			log.Fatal().Err(err).Msg("Failed to set class location")
		}
		fmt.Printf("Created class with ID: %d\n", classID)
	} else {
		fmt.Printf("Found existing class with ID: %d\n", classID)
	}

	names := []string{
		"Nguyen Van An", "Tran Thi Binh", "Le Van Cuong", "Pham Thi Dung", "Hoang Van Em",
		"Vu Thi Phuong", "Dang Van Giang", "Bui Thi Hanh", "Do Van Hung", "Ngo Thi Lan",
		"Duong Van Khoa", "Ly Thi Mai", "Truong Van Nam", "Dinh Thi Oanh", "Phan Van Phuc",
		"Vo Thi Quynh", "Mai Van Son", "Cao Thi Thao", "Luu Van Tuan", "Trinh Thi Uyen",
		"Ha Van Viet", "Ta Thi Xuan", "Chau Van Y", "Kieu Thi Anh", "Lam Van Bao",
		"Quach Thi Cam", "Thai Van Dat", "Ton Thi En", "Hua Van Phong", "Mac Thi Giau",
		"La Van Hieu", "Nghiem Thi Kim", "Khuc Van Long", "Doan Thi My", "Luong Van Nghia",
		"Tang Thi Ngoc", "Uong Van Phat", "Vuong Thi Quyen", "Ung Van Sang", "Diep Thi Tam",
		"Tieu Van Thang", "Nhan Thi Van", "Giang Van Vinh", "Hong Thi Yen", "Phung Van Binh",
		"Quan Thi Chi", "Sam Van Duc", "Thach Thi Hoa", "Vien Van Kiet", "Xa Thi Linh",
	}

	enrolled := 0
	for i, name := range names {
		username := fmt.Sprintf("student%02d", i+1)

		student, err := userRepo.GetByUsername(ctx, username)
		if err != nil {
			if err != pgx.ErrNoRows {
				log.Fatal().Err(err).Str("username", username).Msg("Failed to look up student")
			}
			student = &model.User{
				Username:     username,
				Name:         name,
				PasswordHash: string(hash),
				Role:         model.RoleStudent,
				IsActive:     true,
			}
			if err := userRepo.Create(ctx, student); err != nil {
				log.Fatal().Err(err).Str("username", username).Msg("Failed to create student")
			}
		}

		if err := classRepo.AddStudent(ctx, classID, student.ID); err != nil {
			log.Fatal().Err(err).Str("username", username).Msg("Failed to enroll student")
		}
		enrolled++
	}

	fmt.Printf("Done. %d students enrolled in class %d.\n", enrolled, classID)
	fmt.Println(strings.Repeat("=", 40))
	fmt.Println("Logins: lecturer.demo / student01..student50, password 'password'")
}
