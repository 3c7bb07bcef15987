package service

import (
	"math"
	"time"

	"taskpilot/internal/model"
)

// Derived views over a snapshot. Everything here is a pure function of
// (tasks, insights, now); nothing touches the network or the snapshot
// owner, so the same inputs always render the same dashboard.

// Counters summarises the task collection for the dashboard header.
type Counters struct {
	Total          int
	Completed      int
	Pending        int
	CompletionRate int
}

// CountTasks computes the dashboard counters. The rate is a rounded
// percentage and zero for an empty collection.
func CountTasks(tasks []model.Task) Counters {
	c := Counters{Total: len(tasks)}
	for _, t := range tasks {
		if t.Status == model.StatusCompleted {
			c.Completed++
		}
	}
	c.Pending = c.Total - c.Completed
	if c.Total > 0 {
		c.CompletionRate = int(math.Round(float64(c.Completed) / float64(c.Total) * 100))
	}
	return c
}

// DueToday returns open tasks due on the same calendar day as now.
// Completed tasks never show up here, whatever their due date.
func DueToday(tasks []model.Task, now time.Time) []model.Task {
	var due []model.Task
	for _, t := range tasks {
		if t.Status == model.StatusCompleted || t.DueDate == nil {
			continue
		}
		if sameDay(t.DueDate.Time, now) {
			due = append(due, t)
		}
	}
	return due
}

// HighPriority returns open tasks with priority 1 or 2 in their
// original order. Callers take whatever prefix they want to show.
func HighPriority(tasks []model.Task) []model.Task {
	var urgent []model.Task
	for _, t := range tasks {
		if t.Status == model.StatusCompleted {
			continue
		}
		if p := t.Priority.Normalize(); p <= model.PriorityHigh {
			urgent = append(urgent, t)
		}
	}
	return urgent
}

// IsOverdue reports whether an open task's due instant has passed.
// Unlike DueToday this compares exact instants, not calendar days.
func IsOverdue(t model.Task, now time.Time) bool {
	if t.Status == model.StatusCompleted || t.DueDate == nil {
		return false
	}
	return t.DueDate.Before(now)
}

// DueLabel renders the due date the way the task list shows it.
func DueLabel(t model.Task, now time.Time) string {
	if t.DueDate == nil {
		return "No due date"
	}
	switch {
	case sameDay(t.DueDate.Time, now):
		return "Today"
	case sameDay(t.DueDate.Time, now.AddDate(0, 0, 1)):
		return "Tomorrow"
	default:
		return t.DueDate.Format("Jan 2, 2006")
	}
}

// UpcomingHighPriority returns open priority 1-2 tasks due within the
// next three days, the set the digest nudges about.
func UpcomingHighPriority(tasks []model.Task, now time.Time) []model.Task {
	horizon := now.AddDate(0, 0, 3)
	var upcoming []model.Task
	for _, t := range HighPriority(tasks) {
		if t.DueDate == nil {
			continue
		}
		if t.DueDate.After(now) && !t.DueDate.After(horizon) {
			upcoming = append(upcoming, t)
		}
	}
	return upcoming
}

// CategoryBuckets counts open tasks per category label.
func CategoryBuckets(tasks []model.Task) map[string]int {
	buckets := make(map[string]int)
	for _, t := range tasks {
		if t.Status == model.StatusCompleted {
			continue
		}
		buckets[t.CategoryLabel()]++
	}
	return buckets
}

// Presentation pairs the icon and heading for one insight card.
type Presentation struct {
	Icon  string
	Title string
}

var insightPresentations = map[model.InsightType]Presentation{
	model.InsightProductiveTime:      {Icon: "⏰", Title: "Productive Hours"},
	model.InsightCompletionRate:      {Icon: "📊", Title: "Completion Rate"},
	model.InsightCategoryPerformance: {Icon: "📂", Title: "Category Performance"},
	model.InsightTaskRecommendations: {Icon: "🎯", Title: "Recommended Order"},
}

// PresentInsight maps any insight type onto an icon and heading.
// Unknown types get a generic card instead of failing; the server is
// free to grow new types without breaking old clients.
func PresentInsight(in model.Insight) Presentation {
	if p, ok := insightPresentations[in.Type]; ok {
		return p
	}
	return Presentation{Icon: "💡", Title: "Insight"}
}

// sameDay compares calendar days, ignoring time of day.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
