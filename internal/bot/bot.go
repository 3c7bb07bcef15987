package bot

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskpilot/internal/config"
	"taskpilot/internal/model"
	"taskpilot/internal/repository"
	"taskpilot/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageCategory
	stagePriority
	stageDueDate
)

const (
	cbCompletePrefix = "done:"
	cbReopenPrefix   = "open:"
	cbDeletePrefix   = "del:"

	skipWord = "skip"

	highPriorityLimit = 5
	insightLimit      = 5
	taskListLimit     = 25
)

type conversationState struct {
	stage conversationStage
	draft model.TaskDraft
}

// Bot is the Telegram presentation layer. Each chat behaves like one
// browser profile: it holds a persisted session and one sync
// coordinator whose snapshot every view renders from.
type Bot struct {
	api      *tgbotapi.BotAPI
	sessions *repository.SessionRepository
	tasks    *repository.TaskRepository
	insights *repository.InsightRepository
	config   *config.Config

	mu            sync.Mutex
	coordinators  map[int64]*service.SyncService
	conversations map[int64]*conversationState
}

func New(token string, sessions *repository.SessionRepository, tasks *repository.TaskRepository, insights *repository.InsightRepository, cfg *config.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:           api,
		sessions:      sessions,
		tasks:         tasks,
		insights:      insights,
		config:        cfg,
		coordinators:  make(map[int64]*service.SyncService),
		conversations: make(map[int64]*conversationState),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s", msg.Chat.ID, msg.Command())
		return b.handleCommand(ctx, msg)
	}
	if b.hasConversation(msg.Chat.ID) {
		return b.handleConversation(ctx, msg)
	}
	return b.sendHTML(msg.Chat.ID, "I didn't catch that. Try /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "login":
		return b.handleLogin(ctx, msg)
	case "logout":
		return b.handleLogout(ctx, msg)
	case "dashboard":
		return b.handleDashboard(ctx, msg)
	case "tasks":
		return b.handleTasks(ctx, msg)
	case "insights":
		return b.handleInsights(ctx, msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "refresh":
		return b.handleRefresh(ctx, msg)
	case "cancel":
		b.clearConversation(msg.Chat.ID)
		return b.sendHTML(msg.Chat.ID, "⏪ Cancelled.")
	default:
		return b.sendHTML(msg.Chat.ID, "Unknown command, see /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi %s!\n<b>I'm your task manager companion.</b>\n\n"+
		"Log in with <code>/login your-user-id</code>, then:\n"+
		"/dashboard — today's overview\n"+
		"/tasks — full task list\n"+
		"/insights — productivity insights\n"+
		"/newtask — add a task\n"+
		"/help — everything else", html.EscapeString(name))
	return b.sendHTML(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "<b>Commands</b>\n" +
		"/login &lt;user-id&gt; — open a session (any non-empty id works)\n" +
		"/logout — close the session and forget local data\n" +
		"/dashboard — counters, due today, top priorities, insights\n" +
		"/tasks — full list with complete/delete buttons\n" +
		"/insights — latest productivity insights\n" +
		"/newtask — add a task step by step\n" +
		"/refresh — re-sync with the server\n" +
		"/cancel — abort the current dialog"
	if b.config.DigestTime != "" {
		text += fmt.Sprintf("\n\nI also send a daily digest at %s.", b.config.DigestTime)
	}
	return b.sendHTML(msg.Chat.ID, text)
}

func (b *Bot) handleLogin(ctx context.Context, msg *tgbotapi.Message) error {
	userID := strings.TrimSpace(msg.CommandArguments())
	if userID == "" {
		return b.sendHTML(msg.Chat.ID, "Usage: <code>/login your-user-id</code>")
	}

	if err := b.sessions.Save(ctx, msg.Chat.ID, userID); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	b.dropCoordinator(msg.Chat.ID)
	svc, err := b.coordinator(ctx, msg.Chat.ID)
	if err != nil {
		return err
	}

	if _, state := svc.Current(); state != service.StateReady {
		return b.sendHTML(msg.Chat.ID, fmt.Sprintf(
			"✅ Logged in as <b>%s</b>, but the task service is unreachable right now. /refresh to retry.",
			html.EscapeString(userID)))
	}
	return b.sendHTML(msg.Chat.ID, fmt.Sprintf(
		"✅ Logged in as <b>%s</b>. Try /dashboard.", html.EscapeString(userID)))
}

func (b *Bot) handleLogout(ctx context.Context, msg *tgbotapi.Message) error {
	if err := b.sessions.Clear(ctx, msg.Chat.ID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	b.dropCoordinator(msg.Chat.ID)
	b.clearConversation(msg.Chat.ID)
	return b.sendHTML(msg.Chat.ID, "👋 Logged out. Local data discarded.")
}

func (b *Bot) handleRefresh(ctx context.Context, msg *tgbotapi.Message) error {
	svc, err := b.coordinator(ctx, msg.Chat.ID)
	if err != nil || svc == nil {
		return b.requireLogin(msg.Chat.ID, err)
	}
	if err := svc.Reload(ctx); err != nil {
		return b.sendHTML(msg.Chat.ID, "⚠️ Still can't reach the task service. Showing the last known data.")
	}
	return b.handleDashboard(ctx, msg)
}

func (b *Bot) handleDashboard(ctx context.Context, msg *tgbotapi.Message) error {
	svc, err := b.coordinator(ctx, msg.Chat.ID)
	if err != nil || svc == nil {
		return b.requireLogin(msg.Chat.ID, err)
	}
	snap, state := svc.Current()
	if state == service.StateError && snap.LoadedAt.IsZero() {
		return b.sendHTML(msg.Chat.ID, "⚠️ The task service is unreachable and nothing is cached yet. /refresh to retry.")
	}

	now := time.Now()
	counters := service.CountTasks(snap.Tasks)

	var sb strings.Builder
	sb.WriteString("📋 <b>Dashboard</b>\n")
	fmt.Fprintf(&sb, "📊 %d tasks · %d done · %d open · %d%% complete\n",
		counters.Total, counters.Completed, counters.Pending, counters.CompletionRate)

	sb.WriteString("\n🔥 <b>Due today</b>\n")
	due := service.DueToday(snap.Tasks, now)
	if len(due) == 0 {
		sb.WriteString("— nothing due today\n")
	}
	for _, t := range due {
		fmt.Fprintf(&sb, "• %s <i>(%s)</i>\n",
			html.EscapeString(strings.TrimSpace(t.Title)), html.EscapeString(t.CategoryLabel()))
	}

	sb.WriteString("\n⚡ <b>High priority</b>\n")
	urgent := service.HighPriority(snap.Tasks)
	if len(urgent) == 0 {
		sb.WriteString("— nothing urgent\n")
	}
	for i, t := range urgent {
		if i == highPriorityLimit {
			fmt.Fprintf(&sb, "… and %d more\n", len(urgent)-highPriorityLimit)
			break
		}
		fmt.Fprintf(&sb, "• %s · %s · %s\n",
			html.EscapeString(strings.TrimSpace(t.Title)), t.Priority.Label(), service.DueLabel(t, now))
	}

	if len(snap.Insights) > 0 {
		sb.WriteString("\n💡 <b>Insights</b>\n")
		for i, in := range snap.Insights {
			if i == 2 {
				break
			}
			p := service.PresentInsight(in)
			fmt.Fprintf(&sb, "%s <b>%s</b>: %s\n", p.Icon, p.Title, html.EscapeString(in.Data.Message))
		}
	}

	if state == service.StateError {
		sb.WriteString("\n⚠️ <i>Shown from the last successful sync; /refresh to retry.</i>")
	}
	return b.sendHTML(msg.Chat.ID, strings.TrimSpace(sb.String()))
}

func (b *Bot) handleTasks(ctx context.Context, msg *tgbotapi.Message) error {
	svc, err := b.coordinator(ctx, msg.Chat.ID)
	if err != nil || svc == nil {
		return b.requireLogin(msg.Chat.ID, err)
	}
	snap, state := svc.Current()
	if state == service.StateError && snap.LoadedAt.IsZero() {
		return b.sendHTML(msg.Chat.ID, "⚠️ The task service is unreachable and nothing is cached yet. /refresh to retry.")
	}
	if len(snap.Tasks) == 0 {
		return b.sendHTML(msg.Chat.ID, "No tasks yet. Add one with /newtask.")
	}

	now := time.Now()
	var sb strings.Builder
	sb.WriteString("🗂 <b>Your tasks</b>\n\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, t := range snap.Tasks {
		if i == taskListLimit {
			fmt.Fprintf(&sb, "\n… and %d more\n", len(snap.Tasks)-taskListLimit)
			break
		}
		icon := "🟢"
		switch {
		case t.Status == model.StatusCompleted:
			icon = "✅"
		case service.IsOverdue(t, now):
			icon = "⚠️"
		case t.DueDate != nil && sameCalendarDay(t.DueDate.Time, now):
			icon = "⏳"
		}
		fmt.Fprintf(&sb, "%d. %s %s <i>(%s)</i> · %s · %s\n",
			i+1, icon, html.EscapeString(strings.TrimSpace(t.Title)),
			html.EscapeString(t.CategoryLabel()), t.Priority.Label(), service.DueLabel(t, now))

		var action tgbotapi.InlineKeyboardButton
		if t.Status == model.StatusCompleted {
			action = tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("↩️ Reopen %d", i+1), cbReopenPrefix+t.ID)
		} else {
			action = tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ Done %d", i+1), cbCompletePrefix+t.ID)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			action,
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🗑 Delete %d", i+1), cbDeletePrefix+t.ID),
		))
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, strings.TrimSpace(sb.String()))
	out.ParseMode = tgbotapi.ModeHTML
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, err = b.api.Send(out)
	return err
}

func (b *Bot) handleInsights(ctx context.Context, msg *tgbotapi.Message) error {
	svc, err := b.coordinator(ctx, msg.Chat.ID)
	if err != nil || svc == nil {
		return b.requireLogin(msg.Chat.ID, err)
	}
	snap, _ := svc.Current()
	if len(snap.Insights) == 0 {
		return b.sendHTML(msg.Chat.ID, "No insights yet — they appear once the service has seen enough completed tasks.")
	}

	var sb strings.Builder
	sb.WriteString("💡 <b>Productivity insights</b>\n\n")
	for i, in := range snap.Insights {
		if i == insightLimit {
			break
		}
		p := service.PresentInsight(in)
		fmt.Fprintf(&sb, "%s <b>%s</b>\n%s\n\n", p.Icon, p.Title, html.EscapeString(in.Data.Message))
	}
	return b.sendHTML(msg.Chat.ID, strings.TrimSpace(sb.String()))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb.Message == nil {
		return nil
	}
	chatID := cb.Message.Chat.ID
	svc, err := b.coordinator(ctx, chatID)
	if err != nil || svc == nil {
		return b.requireLogin(chatID, err)
	}

	var ok bool
	var ack string
	switch {
	case strings.HasPrefix(cb.Data, cbCompletePrefix):
		ok = svc.SetStatus(ctx, strings.TrimPrefix(cb.Data, cbCompletePrefix), model.StatusCompleted)
		ack = "Marked as done"
	case strings.HasPrefix(cb.Data, cbReopenPrefix):
		ok = svc.SetStatus(ctx, strings.TrimPrefix(cb.Data, cbReopenPrefix), model.StatusPending)
		ack = "Reopened"
	case strings.HasPrefix(cb.Data, cbDeletePrefix):
		ok = svc.DeleteTask(ctx, strings.TrimPrefix(cb.Data, cbDeletePrefix))
		ack = "Deleted"
	default:
		return nil
	}

	if !ok {
		ack = "Couldn't save that — try again"
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, ack)); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	if !ok {
		return b.sendHTML(chatID, "⚠️ The change didn't reach the server. Nothing was lost locally; try again in a moment.")
	}

	// Replace the stale list under the buttons with the fresh one.
	del := tgbotapi.NewDeleteMessage(chatID, cb.Message.MessageID)
	if _, err := b.api.Request(del); err != nil {
		log.Printf("delete message: %v", err)
	}
	fake := &tgbotapi.Message{Chat: cb.Message.Chat}
	return b.handleTasks(ctx, fake)
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	svc, err := b.coordinator(ctx, msg.Chat.ID)
	if err != nil || svc == nil {
		return b.requireLogin(msg.Chat.ID, err)
	}

	b.mu.Lock()
	b.conversations[msg.Chat.ID] = &conversationState{stage: stageTitle}
	b.mu.Unlock()

	return b.sendHTML(msg.Chat.ID, "📝 What's the task? Send its title (or /cancel).")
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.Chat.ID)
	if state == nil {
		return nil
	}
	input := strings.TrimSpace(msg.Text)

	switch state.stage {
	case stageTitle:
		if input == "" {
			return b.sendHTML(msg.Chat.ID, "The title can't be empty. Try again or /cancel.")
		}
		state.draft.Title = input
		state.stage = stageCategory
		return b.sendHTML(msg.Chat.ID, "📂 Category? Send a label or <code>skip</code>.")

	case stageCategory:
		if !strings.EqualFold(input, skipWord) {
			state.draft.Category = input
		}
		state.stage = stagePriority
		return b.sendHTML(msg.Chat.ID, "⚡ Priority 1–5 (1 is most urgent), or <code>skip</code> for medium.")

	case stagePriority:
		if !strings.EqualFold(input, skipWord) {
			p, err := parsePriority(input)
			if err != nil {
				return b.sendHTML(msg.Chat.ID, "Send a number from 1 to 5, or <code>skip</code>.")
			}
			state.draft.Priority = p
		}
		state.stage = stageDueDate
		return b.sendHTML(msg.Chat.ID, "📅 Due date as <code>YYYY-MM-DD</code> (optionally <code>HH:MM</code>), or <code>skip</code>.")

	case stageDueDate:
		if !strings.EqualFold(input, skipWord) {
			due, err := parseDueDate(input)
			if err != nil {
				return b.sendHTML(msg.Chat.ID, "I couldn't read that date. Use <code>YYYY-MM-DD</code> or <code>YYYY-MM-DD HH:MM</code>, or <code>skip</code>.")
			}
			state.draft.DueDate = model.NewTime(due)
		}
		b.clearConversation(msg.Chat.ID)

		svc, err := b.coordinator(ctx, msg.Chat.ID)
		if err != nil || svc == nil {
			return b.requireLogin(msg.Chat.ID, err)
		}
		if !svc.CreateTask(ctx, state.draft) {
			return b.sendHTML(msg.Chat.ID, "⚠️ Couldn't save the task — the server didn't accept it. Try /newtask again.")
		}
		return b.sendHTML(msg.Chat.ID, fmt.Sprintf("✅ Added <b>%s</b>. See /tasks.",
			html.EscapeString(state.draft.Title)))
	}
	return nil
}

// SendDailyDigests pushes the morning digest to every chat with a
// stored session, reloading each snapshot first.
func (b *Bot) SendDailyDigests(ctx context.Context) error {
	sessions, err := b.sessions.Active(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, session := range sessions {
		svc, err := b.coordinator(ctx, session.ChatID)
		if err != nil || svc == nil {
			continue
		}
		if err := svc.Reload(ctx); err != nil {
			log.Printf("digest reload for chat %d: %v", session.ChatID, err)
			continue
		}
		snap, _ := svc.Current()
		if err := b.sendHTML(session.ChatID, service.Digest(snap, now)); err != nil {
			log.Printf("send digest to chat %d: %v", session.ChatID, err)
		}
	}
	return nil
}

// RefreshAll re-syncs every live coordinator, the client-side analog
// of the server regenerating insights on a schedule.
func (b *Bot) RefreshAll(ctx context.Context) {
	b.mu.Lock()
	live := make([]*service.SyncService, 0, len(b.coordinators))
	for _, svc := range b.coordinators {
		live = append(live, svc)
	}
	b.mu.Unlock()

	for _, svc := range live {
		if err := svc.Reload(ctx); err != nil {
			log.Printf("scheduled refresh: %v", err)
		}
	}
}

// coordinator returns the chat's sync service, creating and starting
// one from the persisted session on first use. A nil service with a
// nil error means the chat is not logged in.
func (b *Bot) coordinator(ctx context.Context, chatID int64) (*service.SyncService, error) {
	b.mu.Lock()
	if svc, ok := b.coordinators[chatID]; ok {
		b.mu.Unlock()
		return svc, nil
	}
	b.mu.Unlock()

	userID, err := b.sessions.Load(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, nil
	}

	svc := service.NewSyncService(b.tasks, b.insights)
	b.watchOverdue(chatID, svc)
	if err := svc.Start(ctx, userID); err != nil {
		// Session stays attached; the snapshot loads on a later retry.
		log.Printf("initial load for chat %d: %v", chatID, err)
	}

	b.mu.Lock()
	b.coordinators[chatID] = svc
	b.mu.Unlock()
	return svc, nil
}

// watchOverdue subscribes a nudger that pings the chat when a task
// first turns up overdue in an applied snapshot. The first snapshot
// only primes the seen set so login doesn't trigger a flood.
func (b *Bot) watchOverdue(chatID int64, svc *service.SyncService) {
	seen := make(map[string]bool)
	primed := false
	svc.Subscribe(func(snap service.Snapshot) {
		now := time.Now()
		var fresh []model.Task
		for _, t := range snap.Tasks {
			if !service.IsOverdue(t, now) {
				continue
			}
			if !seen[t.ID] && primed {
				fresh = append(fresh, t)
			}
			seen[t.ID] = true
		}
		primed = true
		if len(fresh) == 0 {
			return
		}
		var sb strings.Builder
		sb.WriteString("⚠️ <b>Now overdue</b>\n")
		for _, t := range fresh {
			fmt.Fprintf(&sb, "• %s · was due %s\n",
				html.EscapeString(strings.TrimSpace(t.Title)), t.DueDate.Format("Jan 2, 2006"))
		}
		if err := b.sendHTML(chatID, strings.TrimSpace(sb.String())); err != nil {
			log.Printf("overdue nudge for chat %d: %v", chatID, err)
		}
	})
}

func (b *Bot) dropCoordinator(chatID int64) {
	b.mu.Lock()
	svc, ok := b.coordinators[chatID]
	delete(b.coordinators, chatID)
	b.mu.Unlock()
	if ok {
		svc.Logout()
	}
}

func (b *Bot) requireLogin(chatID int64, err error) error {
	if err != nil {
		return err
	}
	return b.sendHTML(chatID, "You're not logged in. Use <code>/login your-user-id</code> first.")
}

func (b *Bot) hasConversation(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[chatID]
	return ok
}

func (b *Bot) getConversation(chatID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[chatID]
}

func (b *Bot) clearConversation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, chatID)
}

func (b *Bot) sendHTML(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func parsePriority(input string) (model.Priority, error) {
	var n int
	if _, err := fmt.Sscanf(input, "%d", &n); err != nil {
		return 0, err
	}
	p := model.Priority(n)
	if p.Normalize() != p {
		return 0, fmt.Errorf("priority %d out of range", n)
	}
	return p, nil
}

func parseDueDate(input string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, input, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", input)
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
