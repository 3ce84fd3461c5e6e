// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание ежемесячных напоминаний о долге.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/snack-bot/internal/common"
	"serotonyl.ru/snack-bot/internal/features/reminder"
)

// DefaultReminderSchedule — 1-е число каждого месяца, 00:00.
const DefaultReminderSchedule = "0 0 1 * *"

// reminderTimeout — сколько максимум длится один прогон напоминаний.
const reminderTimeout = 10 * time.Minute

// ReminderRunner — один прогон рассылки.
type ReminderRunner interface {
	Run(ctx context.Context) (*reminder.Summary, error)
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	reminder ReminderRunner
	schedule string
	loc      *time.Location
}

// NewScheduler создаёт планировщик в часовом поясе loc.
func NewScheduler(runner ReminderRunner, schedule string, loc *time.Location) *Scheduler {
	if schedule == "" {
		schedule = DefaultReminderSchedule
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		reminder: runner,
		schedule: schedule,
		loc:      loc,
	}
}

// Start регистрирует задачи и запускает cron.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		log.WithField("started_at", common.FormatDateTime(time.Now(), s.loc)).Info("[CRON] Ежемесячные напоминания о долге")
		runCtx, cancel := context.WithTimeout(ctx, reminderTimeout)
		defer cancel()
		summary, err := s.reminder.Run(runCtx)
		if err != nil {
			log.WithError(err).Error("[CRON] Ошибка рассылки напоминаний")
			return
		}
		log.WithFields(log.Fields{
			"success": summary.Success,
			"failure": summary.Failure,
			"total":   summary.TotalAmount,
		}).Info("[CRON] Напоминания завершены")
	})
	if err != nil {
		return fmt.Errorf("некорректное расписание %q: %w", s.schedule, err)
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"schedule": s.schedule,
		"timezone": s.loc.String(),
	}).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт текущие задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
