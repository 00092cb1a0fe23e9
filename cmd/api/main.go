package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"tenant-user-api/internal/core/auth"
	"tenant-user-api/internal/core/cache"
	"tenant-user-api/internal/core/config"
	"tenant-user-api/internal/core/database"
	"tenant-user-api/internal/core/logger"
	"tenant-user-api/internal/core/server"
	"tenant-user-api/internal/domain"
	"tenant-user-api/internal/repo"
	"tenant-user-api/internal/repo/memory"
	"tenant-user-api/internal/service"
	"tenant-user-api/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, cleanup := logger.FromConfig(cfg.Log)
	defer cleanup()
	undo := logger.RedirectStdLog(log, zapcore.InfoLevel)
	defer undo()

	// 存储
	st := mustOpenStores(cfg, log)
	defer st.close()

	// 编解码 + 哈希
	codec, err := auth.NewJWTCodec(auth.JWTOptions{
		Secret:    cfg.JWT.Secret,
		Algorithm: cfg.JWT.Algorithm,
		Issuer:    cfg.JWT.Issuer,
		TTL:       cfg.JWT.TTL(),
		TokenType: cfg.JWT.TokenType,
	})
	if err != nil {
		log.Fatal("jwt codec", zap.Error(err))
	}
	deps := service.Deps{
		Users:       st.users,
		Companies:   st.companies,
		Hasher:      auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Codec:       codec,
		Log:         log,
		Company:     service.CompanyDefaults{Type: domain.CompanyType(cfg.Company.DefaultType), MaxUsers: cfg.Company.DefaultMaxUsers},
		HashTimeout: time.Duration(cfg.Auth.HashTimeoutSec) * time.Second,
	}

	// 路由（业务端）
	r := router.NewAPIEngine(router.APIDeps{
		Log:             log,
		Server:          server.Options{Name: cfg.App.Name, Mode: cfg.App.HTTP.Mode, AllowOrigins: cfg.App.HTTP.AllowOrigins},
		Limits:          cfg.Limits,
		Auth:            service.NewAuthService(deps),
		Users:           service.NewUserService(deps, service.Paging{DefaultLimit: cfg.Limits.ListDefault, MaxLimit: cfg.Limits.ListMax}),
		Codec:           codec,
		TokenType:       codec.TokenType(),
		VerifyRequester: cfg.Auth.VerifyRequester,
	})

	// HTTP Server
	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)
	opsAddr := server.Addr(cfg.App.Admin.Host, cfg.App.Admin.Port)
	ops := server.BuildServer(opsAddr, router.NewOpsEngine(log, st.ready), 5*time.Second, 10*time.Second, 60*time.Second)
	if el, err := logger.ToStdLogger(log, zapcore.WarnLevel); err == nil {
		srv.ErrorLog, ops.ErrorLog = el, el
	}

	// 启动日志
	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("user api starting",
		zap.String("addr", addr),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("ops", "http://"+opsAddr),
		zap.String("store", cfg.DB.Driver),
		zap.Bool("cache", cfg.Redis.Enabled()),
	)

	// 异步启动
	for name, s := range map[string]*http.Server{"user api": srv, "ops": ops} {
		go func() {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal(name+" start FAILED", zap.Error(err))
			}
		}()
	}
	log.Info("user api started SUCCESS")

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	_ = ops.Shutdown(ctx)
	log.Info("user api stopped gracefully")
}

type stores struct {
	users     domain.UserRepository
	companies domain.CompanyRepository
	ready     map[string]router.ReadyCheck
	closers   []func() error
}

func (s *stores) close() {
	for _, c := range s.closers {
		_ = c()
	}
}

// mustOpenStores 按 db.driver 选存储；配置了 redis 时给用户查询加一层缓存
func mustOpenStores(cfg *config.Config, l *zap.Logger) *stores {
	st := &stores{ready: map[string]router.ReadyCheck{}}
	if cfg.DB.Driver == "memory" {
		l.Warn("using in-memory stores, data is lost on restart")
		st.users, st.companies = memory.NewUserStore(), memory.NewCompanyStore()
	} else {
		db := mustOpenDB(cfg, l)
		l.Info("database connected", zap.String("driver", cfg.DB.Driver))
		if cfg.DB.AutoMigrate {
			if err := database.Migrate(db); err != nil {
				l.Fatal("automigrate failed", zap.Error(err))
			}
			l.Info("automigrate done")
		}
		st.users, st.companies = repo.NewUserRepo(db), repo.NewCompanyRepo(db)
		st.ready["db"] = func(ctx context.Context) error { return database.Ping(ctx, db) }
		if sqlDB, err := db.DB(); err == nil {
			st.closers = append(st.closers, sqlDB.Close)
		}
	}

	if cfg.Redis.Enabled() {
		c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		st.users = repo.NewCachedUserRepo(st.users, c, time.Duration(cfg.Redis.TTLSec)*time.Second, l)
		st.ready["redis"] = c.Ping
		st.closers = append(st.closers, c.Close)
		l.Info("user cache enabled", zap.String("redis", cfg.Redis.Addr))
	}
	return st
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
