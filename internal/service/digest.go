package service

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"
)

const digestInsightLimit = 3

// Digest renders the daily summary message for one snapshot.
func Digest(snap Snapshot, now time.Time) string {
	counters := CountTasks(snap.Tasks)

	var b strings.Builder
	b.WriteString("📋 <b>Daily digest</b>\n")
	fmt.Fprintf(&b, "🗓 %s\n\n", now.Format("Jan 2, 2006"))
	fmt.Fprintf(&b, "📊 %d tasks · %d done · %d open · %d%% complete\n",
		counters.Total, counters.Completed, counters.Pending, counters.CompletionRate)

	var overdue int
	for _, t := range snap.Tasks {
		if IsOverdue(t, now) {
			overdue++
		}
	}
	if overdue > 0 {
		fmt.Fprintf(&b, "⚠️ %d overdue\n", overdue)
	}

	b.WriteString("\n🔥 <b>Due today</b>\n")
	due := DueToday(snap.Tasks, now)
	if len(due) == 0 {
		b.WriteString("— nothing due today\n")
	}
	for _, t := range due {
		fmt.Fprintf(&b, "• %s <i>(%s)</i>\n",
			html.EscapeString(strings.TrimSpace(t.Title)), html.EscapeString(t.CategoryLabel()))
	}

	if upcoming := UpcomingHighPriority(snap.Tasks, now); len(upcoming) > 0 {
		b.WriteString("\n⏳ <b>High priority coming up</b>\n")
		for _, t := range upcoming {
			fmt.Fprintf(&b, "• %s · %s\n",
				html.EscapeString(strings.TrimSpace(t.Title)), DueLabel(t, now))
		}
	}

	if buckets := CategoryBuckets(snap.Tasks); len(buckets) > 0 {
		names := make([]string, 0, len(buckets))
		for name := range buckets {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("\n📂 <b>Open by category</b>\n")
		for _, name := range names {
			fmt.Fprintf(&b, "• %s: %d\n", html.EscapeString(name), buckets[name])
		}
	}

	if len(snap.Insights) > 0 {
		b.WriteString("\n💡 <b>Insights</b>\n")
		for i, in := range snap.Insights {
			if i == digestInsightLimit {
				break
			}
			p := PresentInsight(in)
			fmt.Fprintf(&b, "%s <b>%s</b>: %s\n",
				p.Icon, p.Title, html.EscapeString(in.Data.Message))
		}
	}

	return strings.TrimSpace(b.String())
}
