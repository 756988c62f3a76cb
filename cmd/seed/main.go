// Command seed populates a development database with demo users, units and
// role assignments covering every approval chain.
package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/ipecgroup/budget-portal/internal/config"
	"github.com/ipecgroup/budget-portal/internal/infrastructure/persistence/sqlite"
	httpadapter "github.com/ipecgroup/budget-portal/internal/interfaces/http"
	"github.com/ipecgroup/budget-portal/pkg/utils"
)

type seedUser struct {
	username   string
	name       string
	email      string
	department string
	units      []string
	roles      []string
}

var units = []struct {
	name string
	code string
}{
	{"امور مالی", "finance"},
	{"تنخواه", "cash"},
	{"سرمایه‌ای", "capex"},
	{"پروژه‌ها", "projects"},
	{"کارگاه", "site"},
	{"دفتر مرکزی", "office"},
}

var roles = []string{
	"کارپرداز",
	"کنترل پروژه",
	"مدیر پروژه",
	"حسابدار",
	"مدیر مالی",
	"دستور پرداخت",
}

var users = []seedUser{
	{"ahmadi", "احمدی", "ahmadi@ipecgroup.net", "تدارکات",
		[]string{"office"}, []string{"کارپرداز"}},
	{"karimi", "کریمی", "karimi@ipecgroup.net", "کارگاه",
		[]string{"site"}, []string{"سرپرست کارگاه"}},
	{"rahimi", "رحیمی", "rahimi@ipecgroup.net", "کنترل پروژه",
		[]string{"projects"}, []string{"کنترل پروژه"}},
	{"hosseini", "حسینی", "hosseini@ipecgroup.net", "پروژه‌ها",
		[]string{"projects"}, []string{"مدیر پروژه"}},
	{"akbari", "اکبری", "akbari@ipecgroup.net", "امور مالی",
		[]string{"finance"}, []string{"حسابدار"}},
	{"nazari", "نظری", "nazari@ipecgroup.net", "امور مالی",
		[]string{"finance"}, []string{"مدیر مالی"}},
	{"mousavi", "موسوی", "mousavi@ipecgroup.net", "خزانه",
		[]string{"finance"}, []string{"دستور پرداخت"}},
	{"marandi", "مرندی", "marandi@ipecgroup.net", "مدیریت",
		nil, nil},
}

const seedPassword = "portal123"

func main() {
	_ = gotenv.Load()

	configPath := os.Getenv("PORTAL_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := sqlite.Open(sqlite.Options{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := sqlite.NewMigrator(db, logger)
	if err := migrator.Run(context.Background(), cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	unitIDs := make(map[string]int64)
	for _, u := range units {
		id, err := upsertUnit(db, u.name, u.code)
		if err != nil {
			logger.Fatal("Failed to seed unit", zap.String("code", u.code), zap.Error(err))
		}
		unitIDs[u.code] = id
	}

	roleIDs := make(map[string]int64)
	for _, name := range roles {
		id, err := upsertRole(db, name)
		if err != nil {
			logger.Fatal("Failed to seed role", zap.String("role", name), zap.Error(err))
		}
		roleIDs[name] = id
	}

	for _, su := range users {
		userID, err := upsertUser(db, su)
		if err != nil {
			logger.Fatal("Failed to seed user", zap.String("username", su.username), zap.Error(err))
		}
		for _, code := range su.units {
			if _, err := db.Exec(
				`INSERT OR IGNORE INTO user_units (user_id, unit_id) VALUES (?, ?)`,
				userID, unitIDs[code],
			); err != nil {
				logger.Fatal("Failed to link user unit", zap.Error(err))
			}
		}
		for _, role := range su.roles {
			roleID, ok := roleIDs[role]
			if !ok {
				id, err := upsertRole(db, role)
				if err != nil {
					logger.Fatal("Failed to seed role", zap.String("role", role), zap.Error(err))
				}
				roleIDs[role] = id
				roleID = id
			}
			if _, err := db.Exec(
				`INSERT OR IGNORE INTO user_roles (user_id, role_id) VALUES (?, ?)`,
				userID, roleID,
			); err != nil {
				logger.Fatal("Failed to link user role", zap.Error(err))
			}
		}
	}

	logger.Info("Seed complete",
		zap.Int("users", len(users)),
		zap.Int("units", len(units)),
		zap.String("password", seedPassword))
}

func upsertUnit(db *sql.DB, name, code string) (int64, error) {
	var id int64
	err := db.QueryRow(`SELECT id FROM units WHERE code = ?`, code).Scan(&id)
	if err == nil {
		return id, nil
	}
	res, err := db.Exec(`INSERT INTO units (name, code) VALUES (?, ?)`, name, code)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func upsertRole(db *sql.DB, name string) (int64, error) {
	var id int64
	err := db.QueryRow(`SELECT id FROM roles WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	res, err := db.Exec(`INSERT INTO roles (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func upsertUser(db *sql.DB, su seedUser) (int64, error) {
	var id int64
	err := db.QueryRow(`SELECT id FROM users WHERE username = ?`, su.username).Scan(&id)
	if err == nil {
		return id, nil
	}

	salt := make([]byte, 8)
	if _, err := rand.Read(salt); err != nil {
		return 0, err
	}
	hash := httpadapter.HashPassword(hex.EncodeToString(salt), seedPassword)

	res, err := db.Exec(
		`INSERT INTO users (username, email, name, department, password_hash) VALUES (?, ?, ?, ?, ?)`,
		su.username, su.email, su.name, su.department, hash,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
