package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dhkang/dalbot/config"
	"github.com/dhkang/dalbot/internal/bot"
	"github.com/dhkang/dalbot/internal/clients/caldav"
	"github.com/dhkang/dalbot/internal/clients/carddav"
	"github.com/dhkang/dalbot/internal/scheduler"
	"github.com/dhkang/dalbot/internal/service"
	"github.com/dhkang/dalbot/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}
	defer store.Close()

	caldavClient := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword)
	carddavClient := carddav.NewClient(cfg.CardDAVURL, cfg.CardDAVUsername, cfg.CardDAVPassword)

	calendarSvc := service.NewCalendarService(caldavClient, cfg.Timezone, cfg.LunarYearMin, cfg.LunarYearMax, cfg.CalendarName)
	reminderSvc, err := service.NewReminderService(store, calendarSvc, cfg.Timezone, cfg.ReminderOffsets, cfg.NotifyTime, cfg.TargetChatID)
	if err != nil {
		log.Fatalf("Failed to init reminder service: %v", err)
	}
	contactSvc := service.NewContactService(carddavClient)
	aiSvc := service.NewAIService(cfg.OpenAIAPIKey, cfg.AIModel)

	tgBot, err := bot.New(cfg, store, calendarSvc, reminderSvc, contactSvc, aiSvc)
	if err != nil {
		log.Fatalf("Failed to init bot: %v", err)
	}

	sched := scheduler.New(cfg, calendarSvc, reminderSvc)
	sched.SetSender(tgBot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Printf("Scheduler error: %v", err)
		}
	}()

	go func() {
		if err := tgBot.Start(ctx); err != nil {
			log.Printf("Bot error: %v", err)
		}
	}()

	log.Println("Dalbot started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	cancel()
	sched.Stop()
	tgBot.Stop()

	log.Println("Dalbot stopped")
}
