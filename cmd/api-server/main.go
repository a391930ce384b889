// Package main API Server 入口
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course-admin/internal/apiserver/auth"
	"course-admin/internal/apiserver/server"
	"course-admin/internal/config"
	"course-admin/internal/shared/cache"
	cacheredis "course-admin/internal/shared/cache/redis"
	"course-admin/internal/shared/mailer"
	objstore "course-admin/internal/shared/minio"
	"course-admin/internal/shared/storage"
	"course-admin/internal/shared/storage/driver/postgres"
	sqlitedriver "course-admin/internal/shared/storage/driver/sqlite"
	"course-admin/internal/shared/storage/mongostore"
	"course-admin/internal/shared/storage/repository"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 切换数据库等）
	cfg := config.Load()

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	// 初始化持久化存储（MongoDB 为默认，SQL 为部署选项）
	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store (%s): %v", cfg.DatabaseDriver, err)
	}
	defer store.Close()
	log.Printf("Connected to %s", cfg.DatabaseDriver)

	// 种子管理员账号（ADMIN_EMAIL/ADMIN_PASSWORD 配置时）
	if err := auth.EnsureAdminUser(store, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		log.Fatalf("Failed to ensure admin user: %v", err)
	}

	// 课程目录缓存：Redis 可选，关闭时直查数据库
	catalogCache := openCache(cfg)
	defer catalogCache.Close()

	// 对象存储（支付截图、课程缩略图）
	files, err := objstore.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("Failed to init object storage: %v", err)
	}
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := files.EnsureBucket(ctx); err != nil {
			log.Fatalf("Failed to ensure bucket %s: %v", cfg.MinIO.Bucket, err)
		}
		cancel()
	}
	log.Printf("Object storage ready [bucket=%s]", cfg.MinIO.Bucket)

	// 初始化 Handler
	mail := mailer.NewSMTPSender(cfg.SMTP)
	h := server.NewHandler(store, catalogCache, files, mail, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.StartInventoryRefresher(ctx, time.Minute)

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.APIPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}

// openStore 按配置的驱动打开持久化存储
func openStore(cfg *config.Config) (storage.PersistentStore, error) {
	switch cfg.DatabaseDriver {
	case "mongodb":
		return mongostore.NewStore(cfg.DatabaseURL, cfg.DatabaseDBName)
	case "postgres":
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		dialect := postgres.NewDialect()
		if err := dialect.AutoMigrate(db); err != nil {
			db.Close()
			return nil, err
		}
		return repository.NewStore(db, dialect), nil
	case "sqlite":
		db, err := sqlitedriver.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		dialect := sqlitedriver.NewDialect()
		if err := dialect.AutoMigrate(db); err != nil {
			db.Close()
			return nil, err
		}
		return repository.NewStore(db, dialect), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
}

// openCache 打开课程目录缓存；Redis 未启用或不可达时退化为 NoOp
func openCache(cfg *config.Config) cache.CatalogCache {
	if !cfg.Redis.Enabled {
		log.Println("Catalog cache disabled")
		return cache.NewNoOpCache()
	}
	store, err := cacheredis.NewStore(cfg.Redis.RedisAddr(), cfg.Redis.Password,
		cfg.Redis.DB, cfg.Redis.CatalogCacheTTL())
	if err != nil {
		log.Printf("Redis unavailable, catalog cache disabled: %v", err)
		return cache.NewNoOpCache()
	}
	log.Printf("Connected to Redis [%s]", cfg.Redis.RedisAddr())
	return store
}
