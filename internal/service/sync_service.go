package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"taskpilot/internal/model"
)

// State of a sync session.
type State int

const (
	StateUnauthenticated State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unauthenticated"
	}
}

// Snapshot is the client's current copy of the remote collections. It
// is always complete and belongs to exactly one user.
type Snapshot struct {
	Tasks    []model.Task
	Insights []model.Insight
	LoadedAt time.Time
}

// TaskGateway is the slice of the task repository the sync layer uses.
type TaskGateway interface {
	List(ctx context.Context, userID string) ([]model.Task, error)
	Create(ctx context.Context, draft model.TaskDraft, userID string) error
	Update(ctx context.Context, taskID string, patch model.TaskPatch, userID string) error
	Delete(ctx context.Context, taskID, userID string) error
}

// InsightGateway is the read-only insight source.
type InsightGateway interface {
	List(ctx context.Context, userID string) ([]model.Insight, error)
}

// SyncService owns the snapshot for one session and keeps it
// consistent with the remote service. Every successful mutation
// triggers a full reload of both collections; nothing is patched
// incrementally, and a mutation's success is decided by the repository
// call alone, never by the reload that follows.
//
// Reloads may overlap (two quick mutations, or a scheduled refresh
// racing a manual one). Each reload takes a ticket from a monotonic
// counter when it starts; when it finishes it is applied only if no
// newer reload has started since, so a slow stale response can never
// overwrite fresher data.
type SyncService struct {
	tasks    TaskGateway
	insights InsightGateway
	now      func() time.Time

	mu          sync.Mutex
	state       State
	userID      string
	snapshot    Snapshot
	issuedSeq   uint64
	subscribers []func(Snapshot)
}

func NewSyncService(tasks TaskGateway, insights InsightGateway) *SyncService {
	return &SyncService{
		tasks:    tasks,
		insights: insights,
		now:      time.Now,
		state:    StateUnauthenticated,
	}
}

// Subscribe registers fn to run after every applied snapshot.
// Callbacks run on the goroutine that finished the reload.
func (s *SyncService) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Current returns the latest applied snapshot and the session state.
func (s *SyncService) Current() (Snapshot, State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.state
}

// Start binds the service to a user and performs the initial load.
func (s *SyncService) Start(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	s.mu.Lock()
	s.userID = userID
	s.snapshot = Snapshot{}
	s.state = StateLoading
	s.mu.Unlock()

	return s.Reload(ctx)
}

// Logout discards the snapshot and detaches the user. Bumping the
// sequence turns any in-flight reload stale so it gets dropped.
func (s *SyncService) Logout() {
	s.mu.Lock()
	s.userID = ""
	s.snapshot = Snapshot{}
	s.state = StateUnauthenticated
	s.issuedSeq++
	s.mu.Unlock()
}

// Reload fetches both collections and applies them unless a newer
// reload started while this one was in flight. The previous snapshot
// survives any failure; a failed load only flips the state to error,
// and calling Reload again is the retry path.
func (s *SyncService) Reload(ctx context.Context) error {
	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return fmt.Errorf("no active session")
	}
	userID := s.userID
	s.issuedSeq++
	seq := s.issuedSeq
	s.state = StateLoading
	s.mu.Unlock()

	tasks, err := s.tasks.List(ctx, userID)
	if err != nil {
		return s.failLoad(seq, err)
	}
	insights, err := s.insights.List(ctx, userID)
	if err != nil {
		return s.failLoad(seq, err)
	}

	s.mu.Lock()
	if seq != s.issuedSeq {
		// A newer reload started (or the session ended) while this
		// one was in flight; its data is stale.
		s.mu.Unlock()
		return nil
	}
	s.snapshot = Snapshot{Tasks: tasks, Insights: insights, LoadedAt: s.now()}
	s.state = StateReady
	snap := s.snapshot
	subs := make([]func(Snapshot), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return nil
}

func (s *SyncService) failLoad(seq uint64, err error) error {
	s.mu.Lock()
	if seq == s.issuedSeq {
		s.state = StateError
	}
	s.mu.Unlock()
	return err
}

// CreateTask submits a draft. True means the service acknowledged the
// write; the follow-up reload never changes the result.
func (s *SyncService) CreateTask(ctx context.Context, draft model.TaskDraft) bool {
	userID, ok := s.activeUser()
	if !ok || strings.TrimSpace(draft.Title) == "" {
		return false
	}
	if err := s.tasks.Create(ctx, draft, userID); err != nil {
		log.Printf("create task: %v", err)
		return false
	}
	s.reloadAfterMutation(ctx)
	return true
}

// UpdateTask applies a partial update to one task.
func (s *SyncService) UpdateTask(ctx context.Context, taskID string, patch model.TaskPatch) bool {
	userID, ok := s.activeUser()
	if !ok || taskID == "" {
		return false
	}
	if err := s.tasks.Update(ctx, taskID, patch, userID); err != nil {
		log.Printf("update task %s: %v", taskID, err)
		return false
	}
	s.reloadAfterMutation(ctx)
	return true
}

// SetStatus flips a task between pending and completed. It owns the
// completed_at invariant: the timestamp is set exactly on completion
// and cleared with an explicit null on reopening.
func (s *SyncService) SetStatus(ctx context.Context, taskID string, status model.Status) bool {
	patch := model.TaskPatch{"status": string(status)}
	if status == model.StatusCompleted {
		patch["completed_at"] = s.now().Format(time.RFC3339)
	} else {
		patch["completed_at"] = nil
	}
	return s.UpdateTask(ctx, taskID, patch)
}

// DeleteTask removes one task.
func (s *SyncService) DeleteTask(ctx context.Context, taskID string) bool {
	userID, ok := s.activeUser()
	if !ok || taskID == "" {
		return false
	}
	if err := s.tasks.Delete(ctx, taskID, userID); err != nil {
		log.Printf("delete task %s: %v", taskID, err)
		return false
	}
	s.reloadAfterMutation(ctx)
	return true
}

func (s *SyncService) activeUser() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.userID != ""
}

func (s *SyncService) reloadAfterMutation(ctx context.Context) {
	if err := s.Reload(ctx); err != nil {
		log.Printf("reload after mutation: %v", err)
	}
}
