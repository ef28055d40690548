package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vinkalabs/membot/internal/app"
	"github.com/vinkalabs/membot/internal/config"
	"github.com/vinkalabs/membot/internal/db"
	"github.com/vinkalabs/membot/internal/store/redisstore"
	"github.com/vinkalabs/membot/internal/telegram"
)

func main() {
	cfg := config.Load()
	if cfg.TelegramBotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is required")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	gdb, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatal("db open", zap.Error(err))
	}
	if err := db.AutoMigrate(gdb); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	asm, _, _, err := app.BuildAssembler(cfg, gdb, logger)
	if err != nil {
		logger.Fatal("build engine", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Dedup is best-effort: without redis the gateway still runs, it just
	// trusts Telegram's offset tracking alone.
	var dedup *redisstore.Store
	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := rds.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, update dedup disabled", zap.Error(err))
		_ = rds.Close()
	} else {
		dedup = rds
		defer rds.Close()
	}

	client := telegram.NewClient(cfg.TelegramAPIBase, cfg.TelegramBotToken)
	gw := telegram.NewGateway(client, asm, dedup, logger)

	if err := gw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("gateway", zap.Error(err))
	}
	logger.Info("gateway stopped")
}
