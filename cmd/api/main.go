package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"changeTracker/internal/app"
	"changeTracker/internal/config"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("загрузка конфигурации: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg)
	if err := a.Init(ctx); err != nil {
		log.Fatalf("инициализация приложения: %v", err)
	}

	if err := a.Run(ctx); err != nil {
		log.Fatalf("остановка приложения: %v", err)
	}
}
