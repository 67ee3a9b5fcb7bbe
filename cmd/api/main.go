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
	"gorm.io/gorm"

	"gaht-identity/internal/core/cache"
	"gaht-identity/internal/core/config"
	"gaht-identity/internal/core/database"
	"gaht-identity/internal/core/logger"
	"gaht-identity/internal/core/server"
	"gaht-identity/internal/core/token"
	"gaht-identity/internal/identity"
	"gaht-identity/internal/transport/http/handler"
	"gaht-identity/internal/transport/http/router"
	"gaht-identity/pkg/utils"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))

	var log *zap.Logger
	var cleanup func()
	if cfg.Log.File != "" {
		log, cleanup = logger.NewWithRotate(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File,
			cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays, cfg.Log.Compress)
	} else {
		log, cleanup = logger.New(cfg.Log.Level, cfg.Log.JSON)
	}
	defer cleanup()

	db := mustOpenDB(cfg, log)
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))

	store := identity.NewStore(db)
	if cfg.DB.AutoMigrate {
		if err := store.AutoMigrate(); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
		seedRoles(db, log)
		log.Info("automigrate done")
	}

	// 签名密钥缺失直接拒绝启动
	iss, err := token.New([]byte(cfg.JWT.Secret), cfg.JWT.Issuer,
		time.Duration(cfg.JWT.AccessTokenTTLHour)*time.Hour)
	if err != nil {
		log.Fatal("token issuer", zap.Error(err))
	}

	if cfg.Redis.Addr != "" {
		store = store.WithRoleCache(cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB))
		log.Info("role cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	engine := identity.NewEngine(store, iss, log)
	authH := handler.NewAuthHandler(engine, log)
	r := router.NewAPIEngine(log, authH, iss)

	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("identity api starting",
		zap.String("addr", addr),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("api_v1", baseURL+"/api/v1"),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("identity api start FAILED", zap.Error(err))
		}
	}()
	log.Info("identity api started SUCCESS")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info("identity api stopped gracefully")
}

func mustOpenDB(cfg *config.Config, l *zap.Logger) *gorm.DB {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	})
	if err != nil {
		l.Fatal("db open", zap.Error(err))
	}
	return db
}

// seedRoles inserts the default catalog on fresh dev databases. Production
// role administration goes through the admin surface.
func seedRoles(db *gorm.DB, l *zap.Logger) {
	for _, name := range []string{"Admin", "User"} {
		var n int64
		if err := db.Model(&identity.Role{}).Where("name = ?", name).Count(&n).Error; err != nil {
			l.Warn("role seed check failed", zap.String("role", name), zap.Error(err))
			continue
		}
		if n > 0 {
			continue
		}
		if err := db.Create(&identity.Role{ID: utils.NewID(), Name: name, Active: true}).Error; err != nil {
			l.Warn("role seed failed", zap.String("role", name), zap.Error(err))
		}
	}
}
