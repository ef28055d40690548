package main

import (
	"log"

	"go.uber.org/zap"

	"github.com/vinkalabs/membot/internal/app"
	"github.com/vinkalabs/membot/internal/config"
	"github.com/vinkalabs/membot/internal/db"
	"github.com/vinkalabs/membot/internal/httpapi"
	"github.com/vinkalabs/membot/internal/httpapi/handlers"
	"github.com/vinkalabs/membot/internal/jobs"
	"github.com/vinkalabs/membot/internal/store/rabbitmq"
)

func main() {
	cfg := config.Load()

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

	asm, tenants, enforcer, err := app.BuildAssembler(cfg, gdb, logger)
	if err != nil {
		logger.Fatal("build engine", zap.Error(err))
	}

	// The async path is optional; without a broker the sync endpoint still works.
	var publisher *rabbitmq.Publisher
	if cfg.RabbitURL != "" {
		publisher, err = rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			logger.Warn("rabbit unavailable, async endpoint disabled", zap.Error(err))
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	h := handlers.NewHandler(cfg, asm, tenants, enforcer, jobs.NewRepo(gdb), publisher, logger)
	r := httpapi.NewRouter(h)

	logger.Info("server started", zap.String("addr", ":8080"))
	if err := r.Run(":8080"); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
}
