package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dhkang/dalbot/internal/domain"
	"github.com/dhkang/dalbot/internal/lunar"
)

const MaxPasswordAttempts = 3

type Config struct {
	TelegramToken  string
	TargetChatID   int64
	BotPassword    string
	TrustedUserIDs []int64

	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
	CalendarName   string // optional: restrict writes to one calendar

	CardDAVURL      string
	CardDAVUsername string
	CardDAVPassword string

	OpenAIAPIKey string
	AIModel      string

	DatabasePath string
	Timezone     *time.Location
	NotifyTime   string // HH:MM, daily digest and reminder due time
	TickInterval int    // minutes between reminder checks

	ReminderOffsets []domain.Offset
	LunarYearMin    int
	LunarYearMax    int
}

func Load() (*Config, error) {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	var targetChatID int64
	if v := os.Getenv("TARGET_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TARGET_CHAT_ID must be a number: %w", err)
		}
		targetChatID = id
	}

	var trusted []int64
	for _, part := range strings.Split(os.Getenv("TRUSTED_USER_IDS"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_USER_IDS entry %q", part)
		}
		trusted = append(trusted, id)
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/dalbot.db"
	}

	tzName := os.Getenv("TIMEZONE")
	if tzName == "" {
		tzName = "Asia/Seoul"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	notifyTime := os.Getenv("NOTIFY_TIME")
	if notifyTime == "" {
		notifyTime = "09:00"
	}
	if _, err := time.Parse("15:04", notifyTime); err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_TIME: %w", err)
	}

	tickInterval := 5
	if v := os.Getenv("TICK_INTERVAL_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid TICK_INTERVAL_MINUTES: %q", v)
		}
		tickInterval = n
	}

	offsetsStr := os.Getenv("REMINDER_OFFSETS")
	if offsetsStr == "" {
		offsetsStr = "day,week,month"
	}
	offsets, err := domain.ParseOffsets(offsetsStr)
	if err != nil {
		return nil, fmt.Errorf("REMINDER_OFFSETS: %w", err)
	}

	yearMin, yearMax, err := parseYearRange(os.Getenv("LUNAR_YEAR_RANGE"))
	if err != nil {
		return nil, err
	}

	aiModel := os.Getenv("AI_MODEL")
	if aiModel == "" {
		aiModel = "gpt-4o-mini"
	}

	return &Config{
		TelegramToken:  token,
		TargetChatID:   targetChatID,
		BotPassword:    os.Getenv("BOT_PASSWORD"),
		TrustedUserIDs: trusted,

		CalDAVURL:      os.Getenv("CALDAV_URL"),
		CalDAVUsername: os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword: os.Getenv("CALDAV_PASSWORD"),
		CalendarName:   os.Getenv("CALENDAR_NAME"),

		CardDAVURL:      os.Getenv("CARDDAV_URL"),
		CardDAVUsername: os.Getenv("CARDDAV_USERNAME"),
		CardDAVPassword: os.Getenv("CARDDAV_PASSWORD"),

		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		AIModel:      aiModel,

		DatabasePath: dbPath,
		Timezone:     tz,
		NotifyTime:   notifyTime,
		TickInterval: tickInterval,

		ReminderOffsets: offsets,
		LunarYearMin:    yearMin,
		LunarYearMax:    yearMax,
	}, nil
}

// parseYearRange parses "MIN-MAX" and clamps it to the lunar table.
func parseYearRange(s string) (int, int, error) {
	min, max := lunar.MinYear, lunar.MaxYear
	if s == "" {
		return min, max, nil
	}

	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid LUNAR_YEAR_RANGE: %q", s)
	}
	lo, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid LUNAR_YEAR_RANGE: %q", s)
	}
	hi, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid LUNAR_YEAR_RANGE: %q", s)
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("invalid LUNAR_YEAR_RANGE: %q", s)
	}

	if lo > min {
		min = lo
	}
	if hi < max {
		max = hi
	}
	return min, max, nil
}

// IsTrustedUser reports whether the user skips the password gate.
func (c *Config) IsTrustedUser(userID int64) bool {
	for _, id := range c.TrustedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user may run ban/unban commands.
func (c *Config) IsAdmin(userID int64) bool {
	return c.TargetChatID != 0 && userID == c.TargetChatID
}
