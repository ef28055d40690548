package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/vinkalabs/membot/internal/app"
	"github.com/vinkalabs/membot/internal/assembler"
	"github.com/vinkalabs/membot/internal/config"
	"github.com/vinkalabs/membot/internal/db"
	"github.com/vinkalabs/membot/internal/jobs"
	"github.com/vinkalabs/membot/internal/telegram"
)

type jobMsg struct {
	JobID string `json:"job_id"`
}

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

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

	asm, _, _, err := app.BuildAssembler(cfg, gdb, logger)
	if err != nil {
		logger.Fatal("build engine", zap.Error(err))
	}
	jobRepo := jobs.NewRepo(gdb)

	// Replies for telegram-sourced jobs are delivered from here.
	var tg *telegram.Client
	if cfg.TelegramBotToken != "" {
		tg = telegram.NewClient(cfg.TelegramAPIBase, cfg.TelegramBotToken)
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Fatal("rabbit dial", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("rabbit channel", zap.Error(err))
	}
	defer ch.Close()

	// Topology must match the publisher's declarations exactly.
	if _, err := ch.QueueDeclare(cfg.RabbitQueue+".dlq", true, false, false, false, nil); err != nil {
		logger.Fatal("dlq declare", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.RabbitQueue + ".dlq",
	}); err != nil {
		logger.Fatal("queue declare", zap.Error(err))
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		logger.Fatal("qos", zap.Error(err))
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		logger.Fatal("consume", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker started",
		zap.String("queue", cfg.RabbitQueue),
		zap.Int("concurrency", concurrency),
	)

	deliveries := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range deliveries {
				var m jobMsg
				if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
					logger.Warn("bad message", zap.Int("worker", workerID), zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handleJob(ctx, asm, jobRepo, tg, m.JobID); err != nil {
					logger.Error("job failed",
						zap.Int("worker", workerID),
						zap.String("job_id", m.JobID),
						zap.Duration("cost", time.Since(start)),
						zap.Error(err),
					)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					logger.Error("ack failed", zap.Int("worker", workerID), zap.String("job_id", m.JobID), zap.Error(err))
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutting down")
			close(deliveries)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				logger.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			deliveries <- d
		}
	}
}

func handleJob(ctx context.Context, asm *assembler.Assembler, repo *jobs.Repo, tg *telegram.Client, jobID string) error {
	_ = repo.MarkRunning(ctx, jobID)

	j, err := repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	reply, err := asm.Handle(ctx, j.UserID, j.Text)
	if err != nil {
		_ = repo.MarkFailed(ctx, jobID, err.Error())
		return err
	}

	if err := repo.MarkSucceeded(ctx, jobID, reply); err != nil {
		return err
	}

	if tg != nil && j.ChatID != 0 {
		// Delivery failure is logged by the caller, never retried here.
		if err := tg.SendMessage(ctx, j.ChatID, reply); err != nil {
			return err
		}
	}
	return nil
}
