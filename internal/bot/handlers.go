package bot

import (
	"context"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dhkang/dalbot/config"
)

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if update.Message == nil {
		return
	}
	b.handleMessage(update.Message)
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	banned, err := b.storage.IsBanned(userID)
	if err != nil {
		log.Printf("Failed to check ban for user %d: %v", userID, err)
	}
	if banned {
		return
	}

	if !b.isAuthorized(userID) {
		b.handleUnauthorized(msg)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	b.handleChat(chatID, msg.Text)
}

func (b *Bot) isAuthorized(userID int64) bool {
	if b.cfg.IsTrustedUser(userID) || b.cfg.IsAdmin(userID) {
		return true
	}
	permitted, err := b.storage.IsPermitted(userID)
	if err != nil {
		log.Printf("Failed to check permit for user %d: %v", userID, err)
		return false
	}
	return permitted
}

// handleUnauthorized gates unknown users behind the bot password. Any
// non-command text counts as a password attempt; too many failures ban
// the user.
func (b *Bot) handleUnauthorized(msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if b.cfg.BotPassword == "" {
		b.reply(chatID, "이 봇은 비공개 봇입니다.")
		return
	}

	if msg.IsCommand() {
		b.reply(chatID, "🔒 비밀번호를 입력해 주세요.")
		return
	}

	if msg.Text == b.cfg.BotPassword {
		if err := b.storage.PermitUser(userID); err != nil {
			log.Printf("Failed to permit user %d: %v", userID, err)
			b.reply(chatID, "오류가 발생했습니다. 잠시 후 다시 시도해 주세요.")
			return
		}
		b.mu.Lock()
		delete(b.attempts, userID)
		b.mu.Unlock()
		log.Printf("User %d authorized with password", userID)
		b.reply(chatID, "✅ 인증되었습니다. /help 로 사용법을 확인하세요.")
		return
	}

	b.mu.Lock()
	b.attempts[userID]++
	n := b.attempts[userID]
	b.mu.Unlock()

	if n >= config.MaxPasswordAttempts {
		if err := b.storage.BanUser(userID); err != nil {
			log.Printf("Failed to ban user %d: %v", userID, err)
		}
		log.Printf("User %d banned after %d failed password attempts", userID, n)
		b.reply(chatID, "🚫 비밀번호를 여러 번 틀려 차단되었습니다.")
		return
	}

	b.reply(chatID, "❌ 비밀번호가 틀렸습니다. 다시 입력해 주세요.")
}

func (b *Bot) handleChat(chatID int64, text string) {
	if text == "" {
		return
	}
	if !b.aiService.IsConfigured() {
		b.reply(chatID, "명령어는 /help 에서 확인할 수 있습니다.")
		return
	}

	typing := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := b.api.Request(typing); err != nil {
		log.Printf("Failed to send chat action: %v", err)
	}

	answer, err := b.aiService.Ask(context.Background(), text)
	if err != nil {
		log.Printf("AI request failed: %v", err)
		b.reply(chatID, "답변을 가져오지 못했습니다. 잠시 후 다시 시도해 주세요.")
		return
	}
	b.reply(chatID, answer)
}

func (b *Bot) reply(chatID int64, text string) {
	if err := b.SendMessage(chatID, text); err != nil {
		log.Printf("Failed to send message to chat %d: %v", chatID, err)
	}
}

func (b *Bot) commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
