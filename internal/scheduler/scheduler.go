package scheduler

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dhkang/dalbot/config"
	"github.com/dhkang/dalbot/internal/service"
)

// Scheduler drives the periodic reminder ticks. Jobs run serialized on
// cron's single goroutine; the dedup table absorbs any overlap anyway.
type Scheduler struct {
	cron            *cron.Cron
	cfg             *config.Config
	calendarService *service.CalendarService
	reminderService *service.ReminderService
	sender          service.MessageSender
}

func New(cfg *config.Config, calendarSvc *service.CalendarService, reminderSvc *service.ReminderService) *Scheduler {
	c := cron.New(cron.WithLocation(cfg.Timezone))

	return &Scheduler{
		cron:            c,
		cfg:             cfg,
		calendarService: calendarSvc,
		reminderService: reminderSvc,
	}
}

func (s *Scheduler) SetSender(sender service.MessageSender) {
	s.sender = sender
}

func (s *Scheduler) Start(ctx context.Context) error {
	// Reminder tick. A constant delay keeps the cadence even for any
	// interval, where a */N minute spec drifts when N does not divide 60.
	tickEvery := time.Duration(s.cfg.TickInterval) * time.Minute
	s.cron.Schedule(cron.Every(tickEvery), cron.FuncJob(s.checkReminders))

	// Morning digest at notify time
	parts := strings.Split(s.cfg.NotifyTime, ":")
	digestSpec := fmt.Sprintf("%s %s * * *", parts[1], parts[0])
	if _, err := s.cron.AddFunc(digestSpec, s.morningDigest); err != nil {
		return fmt.Errorf("add morning digest: %w", err)
	}

	// Dedup table GC shortly after midnight
	if _, err := s.cron.AddFunc("10 0 * * *", s.pruneSent); err != nil {
		return fmt.Errorf("add prune job: %w", err)
	}

	s.cron.Start()
	log.Printf("Scheduler started (TZ: %s, tick: %dm, notify: %s)",
		s.cfg.Timezone, s.cfg.TickInterval, s.cfg.NotifyTime)

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

func (s *Scheduler) checkReminders() {
	if s.sender == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	now := time.Now().In(s.cfg.Timezone)
	if err := s.reminderService.RunTick(ctx, s.sender, now); err != nil {
		// Never fatal: the next tick runs regardless.
		log.Printf("Reminder tick failed: %v", err)
	}
}

func (s *Scheduler) morningDigest() {
	if s.sender == nil || s.cfg.TargetChatID == 0 || !s.calendarService.IsConfigured() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	now := time.Now().In(s.cfg.Timezone)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.cfg.Timezone)

	occs, err := s.calendarService.EventsForRange(ctx, today, today.AddDate(0, 0, 1))
	if err != nil {
		log.Printf("Error building morning digest: %v", err)
		return
	}

	lunarToday, err := s.calendarService.LunarToday(now)
	text := "☀️ <b>좋은 아침입니다!</b>\n"
	if err == nil {
		text += fmt.Sprintf("오늘은 %s입니다.\n", lunarToday.String())
	}
	text += "\n"

	if len(occs) == 0 {
		text += "오늘은 일정이 없습니다. 좋은 하루 보내세요!"
	} else {
		text += fmt.Sprintf("<b>오늘의 일정 %d건:</b>\n", len(occs))
		for _, occ := range occs {
			text += "• " + html.EscapeString(occ.Event.Title) + "\n"
		}
	}

	if err := s.sender.SendMessage(s.cfg.TargetChatID, text); err != nil {
		log.Printf("Error sending morning digest: %v", err)
	}
}

func (s *Scheduler) pruneSent() {
	if err := s.reminderService.Prune(time.Now()); err != nil {
		log.Printf("Error pruning sent notifications: %v", err)
	}
}
