package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tenant-user-api/internal/core/auth"
	"tenant-user-api/internal/core/cache"
	"tenant-user-api/internal/core/config"
	"tenant-user-api/internal/core/database"
	"tenant-user-api/internal/core/logger"
	"tenant-user-api/internal/domain"
	"tenant-user-api/internal/repo"
	"tenant-user-api/internal/service"
)

const usage = `usage: admin <command> [flags]

commands:
  migrate                                          建表 / 补列
  seed --company C --name N --email E --password P 注册公司及其首个管理员
  promote --email E                                设为 ADMIN
  demote --email E                                 设为 USER
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	_ = godotenv.Load()
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DB.Driver == "memory" {
		fmt.Fprintln(os.Stderr, "admin commands need a real database, db.driver is memory")
		os.Exit(1)
	}
	log, cleanup := logger.FromConfig(cfg.Log)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db := mustOpenDB(cfg, log)
	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "migrate":
		err = database.Migrate(db)
	case "seed":
		err = seed(ctx, cfg, db, log, args)
	case "promote":
		err = setRole(ctx, userRepo(cfg, db, log), log, domain.RoleAdmin, args)
	case "demote":
		err = setRole(ctx, userRepo(cfg, db, log), log, domain.RoleUser, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Error(cmd+" failed", zap.Error(err))
		cleanup()
		os.Exit(1)
	}
	log.Info(cmd + " done")
}

func seed(ctx context.Context, cfg *config.Config, db *gorm.DB, l *zap.Logger, args []string) error {
	fs := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	var in service.SignupInput
	fs.StringVar(&in.CompanyName, "company", "", "company name")
	fs.StringVar(&in.Name, "name", "", "admin display name")
	fs.StringVar(&in.Email, "email", "", "admin email")
	fs.StringVar(&in.Password, "password", "", "admin password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if in.CompanyName == "" || in.Name == "" || in.Email == "" || in.Password == "" {
		return errors.New("seed: --company, --name, --email and --password are required")
	}

	svc := service.NewAuthService(service.Deps{
		Users:     repo.NewUserRepo(db),
		Companies: repo.NewCompanyRepo(db),
		Hasher:    auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Log:       l,
		Company: service.CompanyDefaults{
			Type:     domain.CompanyType(cfg.Company.DefaultType),
			MaxUsers: cfg.Company.DefaultMaxUsers,
		},
		HashTimeout: time.Duration(cfg.Auth.HashTimeoutSec) * time.Second,
	})
	u, err := svc.Signup(ctx, in)
	if err != nil {
		return err
	}
	fmt.Printf("company %q created, admin %s (%s)\n", in.CompanyName, u.Email, u.ID)
	return nil
}

// userRepo 配置了 redis 时套上缓存层，改角色后顺带失效 API 进程里的鉴权缓存
func userRepo(cfg *config.Config, db *gorm.DB, l *zap.Logger) domain.UserRepository {
	users := repo.NewUserRepo(db)
	if !cfg.Redis.Enabled() {
		return users
	}
	c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	return repo.NewCachedUserRepo(users, c, time.Duration(cfg.Redis.TTLSec)*time.Second, l)
}

func setRole(ctx context.Context, users domain.UserRepository, l *zap.Logger, role domain.Role, args []string) error {
	fs := pflag.NewFlagSet(string(role), pflag.ContinueOnError)
	email := fs.String("email", "", "user email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("--email is required")
	}

	u, err := users.FindByEmail(ctx, *email)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("no user with email %s: %w", *email, domain.ErrNotFound)
	}
	if u.Role == role {
		fmt.Printf("%s is already %s\n", u.Email, role)
		return nil
	}
	next := u.Apply(domain.UserPatch{Role: &role}, time.Now().UTC())
	if _, err := users.Update(ctx, &next); err != nil {
		return err
	}
	l.Info("role changed", zap.String("user_id", u.ID), zap.String("company_id", u.CompanyID), zap.String("role", string(role)))
	fmt.Printf("%s is now %s\n", u.Email, role)
	return nil
}

func mustOpenDB(cfg *config.Config, l *zap.Logger) *gorm.DB {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		Logger:             l,
	})
	if err != nil {
		l.Fatal("db open", zap.Error(err))
	}
	return db
}
