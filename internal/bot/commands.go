package bot

import (
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dhkang/dalbot/internal/domain"
	"github.com/dhkang/dalbot/internal/lunar"
)

const helpText = `🌕 <b>달봇 명령어</b>

📅 <b>일정</b>
/today - 오늘 일정
/week - 이번 주 일정
/add 2026-09-01 [14:00] 제목 - 일정 추가
/del 키워드 - 일정 삭제

🌕 <b>음력</b>
/lunar - 오늘의 음력 날짜
/lunar 2026-09-01 - 양력 날짜의 음력 변환

👤 <b>연락처</b>
/contact 이름 - 연락처 검색
/addcontact 이름 [전화] [이메일] - 연락처 추가

명령어 없이 메시지를 보내면 AI가 답변합니다.`

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		b.reply(chatID, helpText)
	case "today":
		b.cmdToday(chatID)
	case "week":
		b.cmdWeek(chatID)
	case "add":
		b.cmdAdd(chatID, args)
	case "del":
		b.cmdDel(chatID, args)
	case "lunar":
		b.cmdLunar(chatID, args)
	case "contact":
		b.cmdContact(chatID, args)
	case "addcontact":
		b.cmdAddContact(chatID, args)
	case "ban":
		b.cmdBan(msg, args)
	case "unban":
		b.cmdUnban(msg, args)
	case "banned":
		b.cmdBanned(msg)
	default:
		b.reply(chatID, "알 수 없는 명령어입니다. /help 를 확인하세요.")
	}
}

func (b *Bot) cmdToday(chatID int64) {
	ctx, cancel := b.commandContext()
	defer cancel()

	now := time.Now().In(b.cfg.Timezone)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, b.cfg.Timezone)
	to := from.AddDate(0, 0, 1)

	occs, err := b.calendarService.EventsForRange(ctx, from, to)
	if err != nil {
		log.Printf("Failed to fetch today's events: %v", err)
		b.reply(chatID, "일정을 불러오지 못했습니다.")
		return
	}

	header := fmt.Sprintf("📅 <b>오늘 일정</b> (%s)", from.Format("1월 2일"))
	if ld, err := b.calendarService.LunarToday(now); err == nil {
		header += fmt.Sprintf("\n🌕 %s", ld)
	}
	b.reply(chatID, formatOccurrences(header, occs, false))
}

func (b *Bot) cmdWeek(chatID int64) {
	ctx, cancel := b.commandContext()
	defer cancel()

	now := time.Now().In(b.cfg.Timezone)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, b.cfg.Timezone)
	to := from.AddDate(0, 0, 7)

	occs, err := b.calendarService.EventsForRange(ctx, from, to)
	if err != nil {
		log.Printf("Failed to fetch week's events: %v", err)
		b.reply(chatID, "일정을 불러오지 못했습니다.")
		return
	}

	header := fmt.Sprintf("🗓 <b>이번 주 일정</b> (%s ~ %s)",
		from.Format("1/2"), to.AddDate(0, 0, -1).Format("1/2"))
	b.reply(chatID, formatOccurrences(header, occs, true))
}

func (b *Bot) cmdAdd(chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		b.reply(chatID, "사용법: /add 2026-09-01 [14:00] 제목")
		return
	}

	date, err := time.ParseInLocation("2006-01-02", fields[0], b.cfg.Timezone)
	if err != nil {
		b.reply(chatID, "날짜 형식이 잘못되었습니다. 예: /add 2026-09-01 제사")
		return
	}

	allDay := true
	rest := fields[1:]
	if t, err := time.Parse("15:04", rest[0]); err == nil {
		date = date.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
		allDay = false
		rest = rest[1:]
	}

	title := strings.Join(rest, " ")
	if title == "" {
		b.reply(chatID, "일정 제목을 입력해 주세요.")
		return
	}

	ctx, cancel := b.commandContext()
	defer cancel()

	if err := b.calendarService.CreateEvent(ctx, title, date, allDay); err != nil {
		log.Printf("Failed to create event %q: %v", title, err)
		b.reply(chatID, "일정 추가에 실패했습니다.")
		return
	}

	when := date.Format("2006-01-02")
	if !allDay {
		when = date.Format("2006-01-02 15:04")
	}
	b.reply(chatID, fmt.Sprintf("✅ 일정 추가: <b>%s</b> (%s)", html.EscapeString(title), when))
}

func (b *Bot) cmdDel(chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "사용법: /del 키워드")
		return
	}

	ctx, cancel := b.commandContext()
	defer cancel()

	deleted, err := b.calendarService.DeleteByKeyword(ctx, time.Now(), args)
	if err != nil {
		log.Printf("Failed to delete events by %q: %v", args, err)
		b.reply(chatID, "일정 삭제에 실패했습니다.")
		return
	}
	if len(deleted) == 0 {
		b.reply(chatID, fmt.Sprintf("'%s' 에 해당하는 일정이 없습니다.", html.EscapeString(args)))
		return
	}

	var sb strings.Builder
	sb.WriteString("🗑 삭제된 일정:\n")
	for _, title := range deleted {
		fmt.Fprintf(&sb, "• %s\n", html.EscapeString(title))
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) cmdLunar(chatID int64, args string) {
	now := time.Now().In(b.cfg.Timezone)
	solar := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, b.cfg.Timezone)

	if args != "" {
		parsed, err := time.ParseInLocation("2006-01-02", args, b.cfg.Timezone)
		if err != nil {
			b.reply(chatID, "사용법: /lunar [2026-09-01]")
			return
		}
		solar = parsed
	}

	ld, err := lunar.FromSolar(solar)
	if err != nil {
		b.reply(chatID, "변환 가능한 날짜 범위를 벗어났습니다. (1900~2100)")
		return
	}

	b.reply(chatID, fmt.Sprintf("🌕 양력 %s 는 <b>%s</b> 입니다.", solar.Format("2006년 1월 2일"), ld))
}

func (b *Bot) cmdContact(chatID int64, args string) {
	if !b.contactService.IsConfigured() {
		b.reply(chatID, "연락처 기능이 설정되지 않았습니다.")
		return
	}
	if args == "" {
		b.reply(chatID, "사용법: /contact 이름")
		return
	}

	ctx, cancel := b.commandContext()
	defer cancel()

	contacts, err := b.contactService.Search(ctx, args)
	if err != nil {
		log.Printf("Contact search %q failed: %v", args, err)
		b.reply(chatID, "연락처 검색에 실패했습니다.")
		return
	}
	if len(contacts) == 0 {
		b.reply(chatID, fmt.Sprintf("'%s' 에 해당하는 연락처가 없습니다.", html.EscapeString(args)))
		return
	}

	const maxResults = 5
	var parts []string
	for i := range contacts {
		if i == maxResults {
			parts = append(parts, fmt.Sprintf("... 외 %d건", len(contacts)-maxResults))
			break
		}
		parts = append(parts, b.contactService.FormatContact(&contacts[i]))
	}
	b.reply(chatID, strings.Join(parts, "\n\n"))
}

func (b *Bot) cmdAddContact(chatID int64, args string) {
	if !b.contactService.IsConfigured() {
		b.reply(chatID, "연락처 기능이 설정되지 않았습니다.")
		return
	}

	fields := strings.Fields(args)
	if len(fields) == 0 {
		b.reply(chatID, "사용법: /addcontact 이름 [전화] [이메일]")
		return
	}

	name := fields[0]
	var phone, email string
	for _, f := range fields[1:] {
		if strings.Contains(f, "@") {
			email = f
		} else {
			phone = f
		}
	}

	ctx, cancel := b.commandContext()
	defer cancel()

	contact, err := b.contactService.Create(ctx, name, phone, email)
	if err != nil {
		log.Printf("Failed to create contact %q: %v", name, err)
		b.reply(chatID, "연락처 추가에 실패했습니다.")
		return
	}
	b.reply(chatID, "✅ 연락처 추가\n\n"+b.contactService.FormatContact(contact))
}

func (b *Bot) cmdBan(msg *tgbotapi.Message, args string) {
	chatID := msg.Chat.ID
	if !b.cfg.IsAdmin(msg.From.ID) {
		b.reply(chatID, "관리자만 사용할 수 있는 명령어입니다.")
		return
	}

	userID, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		b.reply(chatID, "사용법: /ban 사용자ID")
		return
	}

	if err := b.storage.BanUser(userID); err != nil {
		log.Printf("Failed to ban user %d: %v", userID, err)
		b.reply(chatID, "차단에 실패했습니다.")
		return
	}
	b.reply(chatID, fmt.Sprintf("🚫 사용자 %d 를 차단했습니다.", userID))
}

func (b *Bot) cmdUnban(msg *tgbotapi.Message, args string) {
	chatID := msg.Chat.ID
	if !b.cfg.IsAdmin(msg.From.ID) {
		b.reply(chatID, "관리자만 사용할 수 있는 명령어입니다.")
		return
	}

	userID, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		b.reply(chatID, "사용법: /unban 사용자ID")
		return
	}

	removed, err := b.storage.UnbanUser(userID)
	if err != nil {
		log.Printf("Failed to unban user %d: %v", userID, err)
		b.reply(chatID, "차단 해제에 실패했습니다.")
		return
	}
	if !removed {
		b.reply(chatID, fmt.Sprintf("사용자 %d 는 차단 목록에 없습니다.", userID))
		return
	}
	b.reply(chatID, fmt.Sprintf("✅ 사용자 %d 의 차단을 해제했습니다.", userID))
}

func (b *Bot) cmdBanned(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if !b.cfg.IsAdmin(msg.From.ID) {
		b.reply(chatID, "관리자만 사용할 수 있는 명령어입니다.")
		return
	}

	ids, err := b.storage.ListBanned()
	if err != nil {
		log.Printf("Failed to list banned users: %v", err)
		b.reply(chatID, "차단 목록을 불러오지 못했습니다.")
		return
	}
	if len(ids) == 0 {
		b.reply(chatID, "차단된 사용자가 없습니다.")
		return
	}

	var sb strings.Builder
	sb.WriteString("🚫 <b>차단 목록</b>\n")
	for _, id := range ids {
		fmt.Fprintf(&sb, "• %d\n", id)
	}
	b.reply(chatID, sb.String())
}

// formatOccurrences renders an occurrence list as an HTML message.
func formatOccurrences(header string, occs []domain.Occurrence, showDate bool) string {
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n\n")

	if len(occs) == 0 {
		sb.WriteString("일정이 없습니다. 🍃")
		return sb.String()
	}

	for _, occ := range occs {
		sb.WriteString("• ")
		if showDate {
			fmt.Fprintf(&sb, "%s (%s) ", occ.Date.Format("1/2"), koreanWeekday(occ.Date))
		}
		if !occ.Event.AllDay && !occ.Event.IsLunar() {
			fmt.Fprintf(&sb, "%s ", occ.Event.Start.Format("15:04"))
		}
		fmt.Fprintf(&sb, "<b>%s</b>", html.EscapeString(occ.Event.Title))
		if occ.Event.IsLunar() {
			sb.WriteString(" 🌕")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func koreanWeekday(t time.Time) string {
	return [...]string{"일", "월", "화", "수", "목", "금", "토"}[t.Weekday()]
}
