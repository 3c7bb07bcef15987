package service

import (
	"strings"
	"testing"
	"time"

	"taskpilot/internal/model"
)

func TestDigest(t *testing.T) {
	now := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Tasks: []model.Task{
			taskAt("1", model.StatusPending, now.Add(6*time.Hour), 1),
			taskAt("2", model.StatusCompleted, now, 1),
			taskAt("3", model.StatusPending, now.Add(-48*time.Hour), 3),
			{ID: "4", Title: "task 4", Status: model.StatusPending, Category: "Health"},
		},
		Insights: []model.Insight{
			{ID: 1, Type: model.InsightCompletionRate, Data: model.InsightData{Message: "You've completed 25% of your tasks"}},
		},
		LoadedAt: now,
	}

	text := Digest(snap, now)

	for _, want := range []string{
		"4 tasks · 1 done · 3 open · 25% complete",
		"1 overdue",
		"task 1",
		"Completion Rate",
		"Health: 1",
		"Uncategorized: 2",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("digest missing %q:\n%s", want, text)
		}
	}

	// Completed tasks never appear in the due-today section.
	if strings.Contains(text, "task 2") {
		t.Errorf("completed task leaked into the digest:\n%s", text)
	}
}

func TestDigestEmptySnapshot(t *testing.T) {
	now := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	text := Digest(Snapshot{}, now)
	if !strings.Contains(text, "nothing due today") {
		t.Errorf("empty digest should still render:\n%s", text)
	}
}
