package status

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/stagepipe/internal/a2a"
)

// DefaultPageSize is how many tasks one tasks/list call asks for.
const DefaultPageSize = 50

// Target names one stage and the URL it is served at.
type Target struct {
	Name string
	URL  string
}

// TaskLine is the summary of one task held by a stage.
type TaskLine struct {
	ID        string
	ContextID string
	State     a2a.TaskState
	Message   string
}

// StageStatus describes the tasks held by a single stage.
type StageStatus struct {
	Name    string
	URL     string
	Total   int
	ByState map[a2a.TaskState]int
	Tasks   []TaskLine // most recent last
	Err     error
}

// Query narrows which tasks are collected.
type Query struct {
	ContextID string
	State     a2a.TaskState
	PageSize  int
}

// Collect lists the tasks of every target in parallel, following
// pagination until each stage is exhausted. Results keep target order; a
// stage that cannot be reached carries its error instead of failing the
// whole collection.
func Collect(ctx context.Context, client a2a.Client, targets []Target, q Query) []StageStatus {
	out := make([]StageStatus, len(targets))
	var g errgroup.Group
	for i, t := range targets {
		g.Go(func() error {
			out[i] = collectStage(ctx, client, t, q)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func collectStage(ctx context.Context, client a2a.Client, t Target, q Query) StageStatus {
	st := StageStatus{Name: t.Name, URL: t.URL, ByState: make(map[a2a.TaskState]int)}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	req := a2a.ListTasksRequest{
		ContextID: q.ContextID,
		Status:    string(q.State),
		PageSize:  pageSize,
	}
	for {
		resp, err := client.ListTasks(ctx, t.URL, req)
		if err != nil {
			st.Err = fmt.Errorf("list tasks on %s: %w", t.Name, err)
			return st
		}
		for _, task := range resp.Tasks {
			st.ByState[task.Status.State]++
			line := TaskLine{ID: task.ID, ContextID: task.ContextID, State: task.Status.State}
			if task.Status.Message != nil {
				line.Message = task.Status.Message.Text()
			}
			st.Tasks = append(st.Tasks, line)
		}
		if resp.NextPageToken == "" || resp.NextPageToken == req.PageToken {
			break
		}
		req.PageToken = resp.NextPageToken
	}
	st.Total = len(st.Tasks)
	return st
}

// States returns the states present in s in a stable order.
func (s StageStatus) States() []a2a.TaskState {
	states := make([]a2a.TaskState, 0, len(s.ByState))
	for state := range s.ByState {
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })
	return states
}

// Summary renders the per-state counts, e.g. "3 tasks (completed 2, failed 1)".
func (s StageStatus) Summary() string {
	if s.Err != nil {
		return s.Err.Error()
	}
	if s.Total == 0 {
		return "no tasks"
	}
	out := fmt.Sprintf("%d tasks (", s.Total)
	if s.Total == 1 {
		out = "1 task ("
	}
	for i, state := range s.States() {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s %d", state, s.ByState[state])
	}
	return out + ")"
}
