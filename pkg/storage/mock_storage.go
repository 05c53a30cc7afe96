package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/Aaditya-brrt/adminflow/pkg/models"
)

// mockStore implements Store with in-memory slices. It is safe for
// concurrent use so executor and scheduler tests can share one instance.
type mockStore struct {
	mu    sync.Mutex
	state *mockState
}

type mockState struct {
	workflows []models.Workflow
	steps     []models.WorkflowStep
	runs      []models.WorkflowRun
	liveSteps []models.LiveStep
	triggers  []models.WorkflowTrigger
	chats     []models.Chat
	messages  []models.ChatMessage
}

// NewMockStore returns an empty in-memory Store for tests.
func NewMockStore() Store {
	return &mockStore{state: &mockState{}}
}

// Begin returns the same store; the mock applies writes immediately and
// treats Commit/Rollback as no-ops.
func (m *mockStore) Begin() (Store, error) { return m, nil }
func (m *mockStore) Commit() error         { return nil }
func (m *mockStore) Rollback() error       { return nil }
func (m *mockStore) Close() error          { return nil }

func (m *mockStore) SaveWorkflow(w models.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.workflows = append(m.state.workflows, w)
	return nil
}

func (m *mockStore) GetWorkflow(id string) (models.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.state.workflows {
		if w.ID == id {
			return w, nil
		}
	}
	return models.Workflow{}, ErrNotFound
}

func (m *mockStore) ListWorkflows(userID string) ([]models.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Workflow
	for _, w := range m.state.workflows {
		if userID == "" || w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateWorkflow(w models.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.state.workflows {
		if m.state.workflows[i].ID == w.ID {
			w.UpdatedAt = time.Now()
			m.state.workflows[i] = w
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) DeleteWorkflow(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.state.workflows {
		if m.state.workflows[i].ID == id {
			m.state.workflows = append(m.state.workflows[:i], m.state.workflows[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) ListDueWorkflows(now time.Time) ([]models.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []models.Workflow
	for _, w := range m.state.workflows {
		if w.Active && w.Type == models.ScheduleWorkflowType && w.NextRunAt != nil && !w.NextRunAt.After(now) {
			due = append(due, w)
		}
	}
	return due, nil
}

func (m *mockStore) SaveWorkflowStep(s models.WorkflowStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.steps = append(m.state.steps, s)
	return nil
}

func (m *mockStore) ListWorkflowSteps(workflowID string) ([]models.WorkflowStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.WorkflowStep
	for _, s := range m.state.steps {
		if s.WorkflowID == workflowID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepOrder < out[j].StepOrder })
	return out, nil
}

func (m *mockStore) DeleteWorkflowSteps(workflowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.state.steps[:0]
	for _, s := range m.state.steps {
		if s.WorkflowID != workflowID {
			kept = append(kept, s)
		}
	}
	m.state.steps = kept
	return nil
}

func (m *mockStore) SaveWorkflowRun(r models.WorkflowRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.runs = append(m.state.runs, r)
	return nil
}

func (m *mockStore) GetWorkflowRun(id string) (models.WorkflowRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.state.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return models.WorkflowRun{}, ErrNotFound
}

func (m *mockStore) ListWorkflowRuns(workflowID string, limit int) ([]models.WorkflowRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.WorkflowRun
	for _, r := range m.state.runs {
		if r.WorkflowID == workflowID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) UpdateWorkflowRun(r models.WorkflowRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.state.runs {
		if m.state.runs[i].ID == r.ID {
			m.state.runs[i] = r
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) SaveLiveStep(s models.LiveStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.liveSteps = append(m.state.liveSteps, s)
	return nil
}

func (m *mockStore) ListLiveSteps(runID string) ([]models.LiveStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LiveStep
	for _, s := range m.state.liveSteps {
		if s.WorkflowRunID == runID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepNumber < out[j].StepNumber })
	return out, nil
}

func (m *mockStore) SaveTrigger(t models.WorkflowTrigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.triggers = append(m.state.triggers, t)
	return nil
}

func (m *mockStore) GetTrigger(id string) (models.WorkflowTrigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.state.triggers {
		if t.ID == id {
			return t, nil
		}
	}
	return models.WorkflowTrigger{}, ErrNotFound
}

func (m *mockStore) GetTriggerByBrokerID(workflowID, brokerTriggerID string) (models.WorkflowTrigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.state.triggers {
		if t.WorkflowID == workflowID && t.BrokerTriggerID == brokerTriggerID {
			return t, nil
		}
	}
	return models.WorkflowTrigger{}, ErrNotFound
}

func (m *mockStore) ListTriggers(workflowID string) ([]models.WorkflowTrigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.WorkflowTrigger
	for _, t := range m.state.triggers {
		if t.WorkflowID == workflowID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateTrigger(t models.WorkflowTrigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.state.triggers {
		if m.state.triggers[i].ID == t.ID {
			t.UpdatedAt = time.Now()
			m.state.triggers[i] = t
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) DeleteTrigger(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.state.triggers {
		if m.state.triggers[i].ID == id {
			m.state.triggers = append(m.state.triggers[:i], m.state.triggers[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) SaveChat(c models.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.chats = append(m.state.chats, c)
	return nil
}

func (m *mockStore) GetChat(id string) (models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.state.chats {
		if c.ID == id {
			return c, nil
		}
	}
	return models.Chat{}, ErrNotFound
}

func (m *mockStore) ListChats(userID string) ([]models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Chat
	for _, c := range m.state.chats {
		if userID == "" || c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	return out, nil
}

func (m *mockStore) UpdateChat(c models.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.state.chats {
		if m.state.chats[i].ID == c.ID {
			c.UpdatedAt = time.Now()
			m.state.chats[i] = c
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) DeleteChat(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.state.chats {
		if m.state.chats[i].ID == id {
			m.state.chats = append(m.state.chats[:i], m.state.chats[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) SaveChatMessage(msg models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.messages = append(m.state.messages, msg)
	return nil
}

func (m *mockStore) ListChatMessages(chatID string) ([]models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ChatMessage
	for _, msg := range m.state.messages {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
