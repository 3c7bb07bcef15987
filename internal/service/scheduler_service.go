package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// SchedulerService runs the background jobs: periodic snapshot
// refreshes and the morning digest.
type SchedulerService struct {
	cron *cron.Cron
}

func NewSchedulerService(loc *time.Location) *SchedulerService {
	return &SchedulerService{cron: cron.New(cron.WithLocation(loc))}
}

// ScheduleInterval registers job to run every interval.
func (s *SchedulerService) ScheduleInterval(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval < time.Second {
		return 0, fmt.Errorf("interval %v is too short", interval)
	}
	return s.cron.AddFunc(fmt.Sprintf("@every %ds", int(interval.Seconds())), job)
}

// ScheduleDaily registers job to run once a day at HH:MM local time.
func (s *SchedulerService) ScheduleDaily(at string, job func()) (cron.EntryID, error) {
	hour, minute, err := parseClock(at)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(fmt.Sprintf("%d %d * * *", minute, hour), job)
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

func (s *SchedulerService) Stop() {
	<-s.cron.Stop().Done()
}

func parseClock(at string) (hour, minute int, err error) {
	parts := strings.SplitN(at, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", at)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", at)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", at)
	}
	return hour, minute, nil
}
