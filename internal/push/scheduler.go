package push

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/famille/internal/model"
	"github.com/dukerupert/famille/internal/store"
)

// Scheduler sends a daily reminder about homework due the next day.
type Scheduler struct {
	mu       sync.RWMutex
	notifier *Notifier
	homework *store.HomeworkStore
	loc      *time.Location
	hour     int
	interval time.Duration
	now      func() time.Time
	lastSent string
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a reminder scheduler firing at hour (0-23) in loc.
func NewScheduler(n *Notifier, homeworkStore *store.HomeworkStore, loc *time.Location, hour int) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		notifier: n,
		homework: homeworkStore,
		loc:      loc,
		hour:     hour,
		interval: 60 * time.Second,
		now:      time.Now,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now().In(s.loc)
	today := now.Format(time.DateOnly)

	s.mu.Lock()
	due := now.Hour() >= s.hour && s.lastSent != today
	if due {
		s.lastSent = today
	}
	s.mu.Unlock()
	if !due {
		return
	}

	tomorrow := now.AddDate(0, 0, 1).Format(time.DateOnly)
	if err := s.remindHomework(ctx, tomorrow); err != nil {
		s.notifier.logger.Error("homework reminders", "due_date", tomorrow, "error", err)
	}
}

func (s *Scheduler) remindHomework(ctx context.Context, dueDate string) error {
	if !s.notifier.service.Enabled() {
		return nil
	}
	pending, err := s.homework.ListPendingDueOn(dueDate)
	if err != nil {
		return fmt.Errorf("list homework: %w", err)
	}

	byMember := make(map[int64][]model.Homework)
	for _, h := range pending {
		byMember[h.MemberID] = append(byMember[h.MemberID], h)
	}

	for memberID, items := range byMember {
		subs, err := s.notifier.push.ListByMember(memberID)
		if err != nil {
			return fmt.Errorf("list subscriptions: %w", err)
		}
		if len(subs) == 0 {
			continue
		}
		if err := s.notifier.sendAll(ctx, subs, homeworkPayload(items)); err != nil {
			return err
		}
	}
	return nil
}

func homeworkPayload(items []model.Homework) Payload {
	p := Payload{Title: "Devoirs pour demain", URL: "/homework", Tag: "homework-due"}
	if len(items) == 1 {
		p.Body = fmt.Sprintf("%s : %s", items[0].Subject, items[0].Title)
		return p
	}
	subjects := make([]string, len(items))
	for i, h := range items {
		subjects[i] = h.Subject
	}
	p.Body = fmt.Sprintf("%d devoirs à finir : %s", len(items), strings.Join(subjects, ", "))
	return p
}

