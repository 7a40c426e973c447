package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dhkang/dalbot/internal/domain"
	"github.com/dhkang/dalbot/internal/storage"
)

type fakeSender struct {
	messages []string
	chatIDs  []int64
}

func (f *fakeSender) SendMessage(chatID int64, text string) error {
	f.chatIDs = append(f.chatIDs, chatID)
	f.messages = append(f.messages, text)
	return nil
}

func newTestReminderService(t *testing.T, offsets []domain.Offset) *ReminderService {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svc, err := NewReminderService(store, nil, time.UTC, offsets, "09:00", 123)
	if err != nil {
		t.Fatalf("NewReminderService: %v", err)
	}
	return svc
}

func birthdayOccurrence() domain.Occurrence {
	return domain.Occurrence{
		Event: domain.Event{
			UID:    "uid-mom",
			Title:  "어머니 생신 (음력 3월 15일)",
			Yearly: true,
			Rule:   domain.DateRule{Kind: domain.DateLunar, Month: 3, Day: 15},
		},
		Date: day(2025, time.April, 12),
	}
}

func TestDueReminders_Boundary(t *testing.T) {
	svc := newTestReminderService(t, []domain.Offset{domain.OffsetSameDay})
	occs := []domain.Occurrence{birthdayOccurrence()}

	at := func(h, m int) time.Time {
		return time.Date(2025, time.April, 12, h, m, 0, 0, time.UTC)
	}

	// One tick interval before the trigger instant: not yet due.
	due, err := svc.DueReminders(occs, at(8, 55))
	if err != nil {
		t.Fatalf("DueReminders: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("before trigger: got %d due, want 0", len(due))
	}

	// Exactly at the trigger instant: due.
	due, _ = svc.DueReminders(occs, at(9, 0))
	if len(due) != 1 {
		t.Errorf("at trigger: got %d due, want 1", len(due))
	}

	// One tick interval later, not yet processed: still due, not missed.
	due, _ = svc.DueReminders(occs, at(9, 5))
	if len(due) != 1 {
		t.Errorf("after trigger: got %d due, want 1", len(due))
	}

	// The next day the window is closed.
	due, _ = svc.DueReminders(occs, time.Date(2025, time.April, 13, 9, 0, 0, 0, time.UTC))
	if len(due) != 0 {
		t.Errorf("next day: got %d due, want 0", len(due))
	}
}

func TestDueReminders_Offsets(t *testing.T) {
	svc := newTestReminderService(t, []domain.Offset{
		domain.OffsetSameDay, domain.OffsetDayBefore, domain.OffsetWeekBefore, domain.OffsetMonthBefore,
	})
	occs := []domain.Occurrence{birthdayOccurrence()}

	tests := []struct {
		now    time.Time
		offset domain.Offset
	}{
		{time.Date(2025, time.March, 12, 9, 0, 0, 0, time.UTC), domain.OffsetMonthBefore},
		{time.Date(2025, time.April, 5, 9, 0, 0, 0, time.UTC), domain.OffsetWeekBefore},
		{time.Date(2025, time.April, 11, 9, 0, 0, 0, time.UTC), domain.OffsetDayBefore},
		{time.Date(2025, time.April, 12, 9, 0, 0, 0, time.UTC), domain.OffsetSameDay},
	}

	for _, tt := range tests {
		due, err := svc.DueReminders(occs, tt.now)
		if err != nil {
			t.Fatalf("DueReminders: %v", err)
		}
		if len(due) != 1 {
			t.Errorf("%s: got %d due, want 1", tt.now.Format("2006-01-02"), len(due))
			continue
		}
		if due[0].Offset != tt.offset {
			t.Errorf("%s: got offset %s, want %s", tt.now.Format("2006-01-02"), due[0].Offset, tt.offset)
		}
	}
}

func TestDueReminders_Idempotent(t *testing.T) {
	svc := newTestReminderService(t, []domain.Offset{domain.OffsetSameDay})
	occs := []domain.Occurrence{birthdayOccurrence()}
	now := time.Date(2025, time.April, 12, 9, 0, 0, 0, time.UTC)

	first, err := svc.DueReminders(occs, now)
	if err != nil {
		t.Fatalf("DueReminders: %v", err)
	}
	second, err := svc.DueReminders(occs, now)
	if err != nil {
		t.Fatalf("DueReminders: %v", err)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("evaluation without dispatch must not diverge: %d vs %d", len(first), len(second))
	}

	sender := &fakeSender{}
	if n := svc.Dispatch(sender, first); n != 1 {
		t.Fatalf("Dispatch sent %d, want 1", n)
	}

	after, err := svc.DueReminders(occs, now)
	if err != nil {
		t.Fatalf("DueReminders: %v", err)
	}
	if len(after) != 0 {
		t.Errorf("after dispatch: got %d due, want 0", len(after))
	}
}

func TestDispatch_OverlappingRuns(t *testing.T) {
	svc := newTestReminderService(t, []domain.Offset{domain.OffsetSameDay})
	occs := []domain.Occurrence{birthdayOccurrence()}
	now := time.Date(2025, time.April, 12, 9, 0, 0, 0, time.UTC)

	// Two overlapping ticks evaluate before either has dispatched.
	dueA, _ := svc.DueReminders(occs, now)
	dueB, _ := svc.DueReminders(occs, now)
	if len(dueA) != 1 || len(dueB) != 1 {
		t.Fatalf("both runs must see the reminder as due")
	}

	sender := &fakeSender{}
	sentA := svc.Dispatch(sender, dueA)
	sentB := svc.Dispatch(sender, dueB)

	if sentA+sentB != 1 {
		t.Errorf("exactly one notification must be dispatched, got %d", sentA+sentB)
	}
	if len(sender.messages) != 1 {
		t.Errorf("sender received %d messages, want 1", len(sender.messages))
	}
}

func TestDispatch_TargetChat(t *testing.T) {
	svc := newTestReminderService(t, []domain.Offset{domain.OffsetSameDay})
	due, _ := svc.DueReminders([]domain.Occurrence{birthdayOccurrence()},
		time.Date(2025, time.April, 12, 9, 0, 0, 0, time.UTC))

	sender := &fakeSender{}
	svc.Dispatch(sender, due)

	if len(sender.chatIDs) != 1 || sender.chatIDs[0] != 123 {
		t.Errorf("reminder must go to the configured chat, got %v", sender.chatIDs)
	}
}

func TestFormatReminder(t *testing.T) {
	svc := newTestReminderService(t, []domain.Offset{domain.OffsetSameDay})
	occ := birthdayOccurrence()

	sameDay := svc.FormatReminder(&domain.DueReminder{
		Event: occ.Event, Offset: domain.OffsetSameDay, Occurrence: occ.Date,
	})
	if want := "🎂🎉 오늘은 <b>어머니 생신 (음력 3월 15일)</b> (양력 04/12) 입니다! 🎉"; sameDay != want {
		t.Errorf("same-day message:\n got %q\nwant %q", sameDay, want)
	}

	week := svc.FormatReminder(&domain.DueReminder{
		Event: occ.Event, Offset: domain.OffsetWeekBefore, Occurrence: occ.Date,
	})
	if want := "🎂🎉 📌 1주일 후 (04/12) : <b>어머니 생신 (음력 3월 15일)</b> (음력 3/15)"; week != want {
		t.Errorf("week message:\n got %q\nwant %q", week, want)
	}
}
