package bot

import (
	"context"
	"fmt"
	"log"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dhkang/dalbot/config"
	"github.com/dhkang/dalbot/internal/service"
	"github.com/dhkang/dalbot/internal/storage"
)

type Bot struct {
	api             *tgbotapi.BotAPI
	cfg             *config.Config
	storage         *storage.Storage
	calendarService *service.CalendarService
	reminderService *service.ReminderService
	contactService  *service.ContactService
	aiService       *service.AIService

	// Failed password attempts per user, reset on process restart.
	mu       sync.Mutex
	attempts map[int64]int
}

func New(cfg *config.Config, storage *storage.Storage, calendarSvc *service.CalendarService, reminderSvc *service.ReminderService, contactSvc *service.ContactService, aiSvc *service.AIService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("Authorized as @%s", api.Self.UserName)

	bot := &Bot{
		api:             api,
		cfg:             cfg,
		storage:         storage,
		calendarService: calendarSvc,
		reminderService: reminderSvc,
		contactService:  contactSvc,
		aiService:       aiSvc,
		attempts:        make(map[int64]int),
	}

	bot.setCommands()

	return bot, nil
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "today", Description: "📅 오늘 일정"},
		{Command: "week", Description: "🗓 이번 주 일정"},
		{Command: "add", Description: "➕ 일정 추가"},
		{Command: "lunar", Description: "🌕 음력 날짜 변환"},
		{Command: "contact", Description: "👤 연락처 검색"},
		{Command: "help", Description: "❓ 도움말"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		log.Printf("Failed to set commands: %v", err)
	}
}

// Start runs the long-polling loop until the context is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(update)
		}
	}
}

func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
}

// SendMessage implements service.MessageSender for the scheduler.
func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	_, err := b.api.Send(msg)
	return err
}
