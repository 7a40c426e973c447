package service

import (
	"context"
	"fmt"
	"html"
	"log"
	"time"

	"github.com/dhkang/dalbot/internal/domain"
	"github.com/dhkang/dalbot/internal/storage"
)

// MessageSender delivers a formatted notification to a chat.
type MessageSender interface {
	SendMessage(chatID int64, text string) error
}

// ReminderService decides which reminders are due and dispatches them.
// The dedup table is the sole guard against double sends.
type ReminderService struct {
	storage      *storage.Storage
	calendar     *CalendarService
	timezone     *time.Location
	offsets      []domain.Offset
	notifyHour   int
	notifyMinute int
	targetChatID int64
}

func NewReminderService(s *storage.Storage, cal *CalendarService, tz *time.Location, offsets []domain.Offset, notifyTime string, targetChatID int64) (*ReminderService, error) {
	t, err := time.Parse("15:04", notifyTime)
	if err != nil {
		return nil, fmt.Errorf("parse notify time: %w", err)
	}
	return &ReminderService{
		storage:      s,
		calendar:     cal,
		timezone:     tz,
		offsets:      offsets,
		notifyHour:   t.Hour(),
		notifyMinute: t.Minute(),
		targetChatID: targetChatID,
	}, nil
}

// triggerInstant is the moment a reminder for this occurrence and
// offset becomes due.
func (s *ReminderService) triggerInstant(occurrence time.Time, offset domain.Offset) time.Time {
	d := offset.TriggerDate(occurrence)
	return time.Date(d.Year(), d.Month(), d.Day(), s.notifyHour, s.notifyMinute, 0, 0, s.timezone)
}

// dueNow reports whether now falls inside the due window: at or after
// the trigger instant, and still on the trigger's calendar day. A tick
// that runs late in the day therefore still catches the reminder, and
// the dedup key keeps repeated ticks from re-sending it.
func (s *ReminderService) dueNow(occurrence time.Time, offset domain.Offset, now time.Time) bool {
	trigger := s.triggerInstant(occurrence, offset)
	now = now.In(s.timezone)
	if now.Before(trigger) {
		return false
	}
	y1, m1, d1 := trigger.Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// DueReminders is the evaluator: given materialized occurrences and
// now, it returns every (event, offset) pair that is due and not yet
// recorded as sent. It performs no writes, so re-running it without
// dispatching cannot diverge state.
func (s *ReminderService) DueReminders(occs []domain.Occurrence, now time.Time) ([]domain.DueReminder, error) {
	var due []domain.DueReminder
	for _, occ := range occs {
		for _, offset := range s.offsets {
			if !s.dueNow(occ.Date, offset, now) {
				continue
			}

			r := domain.DueReminder{Event: occ.Event, Offset: offset, Occurrence: occ.Date}
			uid, off, target := r.Key()
			sent, err := s.storage.HasSent(uid, off, target)
			if err != nil {
				return nil, fmt.Errorf("check sent: %w", err)
			}
			if sent {
				continue
			}
			due = append(due, r)
		}
	}
	return due, nil
}

// Dispatch sends due reminders and records them. A reminder is marked
// sent only after a successful send; a failed MarkSent is retried once,
// then left unmarked so the next tick may repeat the send. A possible
// duplicate is favored over a silent loss.
func (s *ReminderService) Dispatch(sender MessageSender, due []domain.DueReminder) int {
	sentCount := 0
	for i := range due {
		r := &due[i]

		// Re-check right before sending: an overlapping tick may have
		// dispatched this key after we evaluated.
		uid, off, target := r.Key()
		if sent, err := s.storage.HasSent(uid, off, target); err == nil && sent {
			continue
		}

		if err := sender.SendMessage(s.targetChatID, s.FormatReminder(r)); err != nil {
			log.Printf("Error sending reminder for %q: %v", r.Event.Title, err)
			continue
		}
		sentCount++

		if err := s.storage.MarkSent(uid, off, target); err != nil {
			log.Printf("MarkSent failed for %q, retrying: %v", r.Event.Title, err)
			if err := s.storage.MarkSent(uid, off, target); err != nil {
				log.Printf("MarkSent failed again for %q, reminder may repeat next tick: %v", r.Event.Title, err)
			}
		}
	}
	return sentCount
}

// RunTick is one full reminder cycle: fetch, materialize, evaluate,
// dispatch. Nothing here is fatal to the host process.
func (s *ReminderService) RunTick(ctx context.Context, sender MessageSender, now time.Time) error {
	if s.targetChatID == 0 {
		return nil
	}

	events, err := s.calendar.FetchEvents(ctx, now)
	if err != nil {
		return fmt.Errorf("tick fetch: %w", err)
	}

	occs := s.calendar.Occurrences(events, now)
	due, err := s.DueReminders(occs, now)
	if err != nil {
		return fmt.Errorf("tick evaluate: %w", err)
	}

	if n := s.Dispatch(sender, due); n > 0 {
		log.Printf("Dispatched %d reminder(s)", n)
	}
	return nil
}

// Prune drops dedup records older than the retention window.
func (s *ReminderService) Prune(now time.Time) error {
	cutoff := now.In(s.timezone).AddDate(0, 0, -90)
	n, err := s.storage.PruneSent(cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("Pruned %d sent-notification record(s)", n)
	}
	return nil
}

// FormatReminder builds the notification text, HTML formatted.
func (s *ReminderService) FormatReminder(r *domain.DueReminder) string {
	title := html.EscapeString(r.Event.Title)
	date := r.Occurrence.Format("01/02")

	var text string
	switch r.Offset {
	case domain.OffsetSameDay:
		if r.Event.IsLunar() {
			text = fmt.Sprintf("오늘은 <b>%s</b> (양력 %s) 입니다! 🎉", title, date)
		} else {
			text = fmt.Sprintf("🔔 오늘 <b>%s</b>%s 일정이 있습니다!", title, timeSuffix(&r.Event))
		}
	case domain.OffsetDayBefore:
		text = fmt.Sprintf("🔔 내일 (%s) : <b>%s</b>%s", date, title, anchorSuffix(&r.Event))
	case domain.OffsetWeekBefore:
		text = fmt.Sprintf("📌 1주일 후 (%s) : <b>%s</b>%s", date, title, anchorSuffix(&r.Event))
	case domain.OffsetMonthBefore:
		text = fmt.Sprintf("🗓️ 1개월 후 (%s) : <b>%s</b>%s", date, title, anchorSuffix(&r.Event))
	}

	if r.Event.IsBirthday() {
		text = "🎂🎉 " + text
	}
	return text
}

// anchorSuffix renders the lunar anchor after a title, e.g. " (음력 3/15)".
func anchorSuffix(e *domain.Event) string {
	if !e.IsLunar() {
		return timeSuffix(e)
	}
	leapMark := ""
	if e.Rule.Leap {
		leapMark = " 윤"
	}
	return fmt.Sprintf(" (음력%s %d/%d)", leapMark, e.Rule.Month, e.Rule.Day)
}

func timeSuffix(e *domain.Event) string {
	if e.AllDay || e.Start.IsZero() {
		return ""
	}
	return " (" + e.Start.Format("15:04") + ")"
}
