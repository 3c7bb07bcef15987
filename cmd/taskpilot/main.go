package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskpilot/internal/bot"
	"taskpilot/internal/config"
	"taskpilot/internal/repository"
	"taskpilot/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.SessionDBPath)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	client := repository.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout)
	sessionRepo := repository.NewSessionRepository(db)
	taskRepo := repository.NewTaskRepository(client)
	insightRepo := repository.NewInsightRepository(client)

	telegramBot, err := bot.New(cfg.TelegramToken, sessionRepo, taskRepo, insightRepo, &cfg)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	scheduler := service.NewSchedulerService(time.Local)
	scheduled := false

	if cfg.RefreshInterval > 0 {
		if _, err := scheduler.ScheduleInterval(cfg.RefreshInterval, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			telegramBot.RefreshAll(jobCtx)
		}); err != nil {
			log.Fatalf("schedule refresh: %v", err)
		}
		scheduled = true
	}

	if cfg.DigestTime != "" {
		if _, err := scheduler.ScheduleDaily(cfg.DigestTime, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := telegramBot.SendDailyDigests(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("digest: %v", err)
			}
		}); err != nil {
			log.Fatalf("schedule digest: %v", err)
		}
		scheduled = true
	}

	if scheduled {
		scheduler.Start()
		defer scheduler.Stop()
	}

	log.Println("Taskpilot started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}
