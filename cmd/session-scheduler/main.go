// Command session-scheduler generates one week of attendance sessions from
// the active recurring schedules. It is meant to run from cron once a week.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-attendance-api/internal/repository"
	"github.com/noah-isme/lms-attendance-api/internal/service"
	"github.com/noah-isme/lms-attendance-api/pkg/config"
	"github.com/noah-isme/lms-attendance-api/pkg/database"
	"github.com/noah-isme/lms-attendance-api/pkg/logger"
)

func main() {
	week := flag.String("week", "", "week start date (YYYY-MM-DD); defaults to next Monday")
	course := flag.String("course", "", "only generate sessions for this course id")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall run timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logr.Fatal("invalid scheduler timezone", zap.String("timezone", cfg.Scheduler.Timezone), zap.Error(err))
	}

	weekStart, err := resolveWeek(*week, time.Now().In(loc), loc)
	if err != nil {
		logr.Fatal("invalid week", zap.String("week", *week), zap.Error(err))
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	scheduler := service.NewSchedulerService(
		repository.NewSessionRepository(db),
		repository.NewRecurringScheduleRepository(db),
		service.NewMetricsService(),
		logr,
		service.SchedulerConfig{
			DefaultRadiusMeters: cfg.Scheduler.DefaultRadiusMeters,
			Location:            loc,
			CodePrefix:          cfg.Attendance.CodePrefix,
			CodeAttempts:        cfg.Attendance.CodeAttempts,
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := scheduler.RunWeek(ctx, weekStart, *course, "")
	if err != nil {
		logr.Fatal("generation failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logr.Error("failed to write result", zap.Error(err))
	}

	logr.Info("generation finished",
		zap.Time("week_start", result.WeekStart),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
	)
	if len(result.Errors) > 0 {
		os.Exit(2)
	}
}

// resolveWeek parses an explicit week or picks the Monday after now.
func resolveWeek(raw string, now time.Time, loc *time.Location) (time.Time, error) {
	if raw != "" {
		return time.ParseInLocation("2006-01-02", raw, loc)
	}
	days := (int(time.Monday) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	next := now.AddDate(0, 0, days)
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, loc), nil
}
