package a2a

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// forEachStore runs fn against every TaskStore implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, store TaskStore)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryTaskStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		store, err := OpenSQLiteTaskStore(filepath.Join(t.TempDir(), "tasks.db"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		fn(t, store)
	})
}

func TestTaskStore_CreateGetRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, store TaskStore) {
		ctx := context.Background()
		task := Task{
			ID:        "task-1",
			ContextID: "ctx-1",
			Status:    TaskStatus{State: TaskStateSubmitted},
			Artifacts: []Artifact{TextArtifact("planner_output", `[{"id":1}]`)},
			History:   []Message{UserText("Plan a trip to Goa")},
		}

		require.NoError(t, store.Create(ctx, task))

		got, err := store.Get(ctx, "task-1")
		require.NoError(t, err)
		assert.Equal(t, "ctx-1", got.ContextID)
		assert.Equal(t, TaskStateSubmitted, got.Status.State)
		require.Len(t, got.Artifacts, 1)
		assert.Equal(t, "planner_output", got.Artifacts[0].Name)
		assert.Equal(t, "Plan a trip to Goa", got.UserInput())
	})
}

func TestTaskStore_DuplicateCreateReturnsError(t *testing.T) {
	forEachStore(t, func(t *testing.T, store TaskStore) {
		ctx := context.Background()
		task := Task{ID: "dup-1", ContextID: "ctx-1", Status: TaskStatus{State: TaskStateSubmitted}}
		require.NoError(t, store.Create(ctx, task))

		err := store.Create(ctx, task)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})
}

func TestTaskStore_MissingTaskIsNotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, store TaskStore) {
		ctx := context.Background()

		got, err := store.Get(ctx, "does-not-exist")
		assert.Nil(t, got)
		assert.ErrorIs(t, err, ErrTaskNotFound)

		err = store.Update(ctx, "ghost", func(t *Task) { t.Status.State = TaskStateFailed })
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}

func TestTaskStore_GetReturnsCopy(t *testing.T) {
	forEachStore(t, func(t *testing.T, store TaskStore) {
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, Task{
			ID:        "deep-1",
			ContextID: "ctx-1",
			Status:    TaskStatus{State: TaskStateWorking},
			Artifacts: []Artifact{TextArtifact("original", "original text")},
			History:   []Message{UserText("original msg")},
		}))

		got, err := store.Get(ctx, "deep-1")
		require.NoError(t, err)
		got.Status.State = TaskStateFailed
		got.Artifacts[0].Name = "mutated"
		got.Artifacts = append(got.Artifacts, Artifact{ArtifactID: "art-extra"})
		got.History[0].Parts[0].Text = "mutated msg"

		original, err := store.Get(ctx, "deep-1")
		require.NoError(t, err)
		assert.Equal(t, TaskStateWorking, original.Status.State)
		require.Len(t, original.Artifacts, 1)
		assert.Equal(t, "original", original.Artifacts[0].Name)
		assert.Equal(t, "original msg", original.History[0].Text())
	})
}

func TestTaskStore_UpdateAppliesInOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, store TaskStore) {
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, Task{ID: "um-1", ContextID: "ctx-1", Status: TaskStatus{State: TaskStateSubmitted}}))

		require.NoError(t, store.Update(ctx, "um-1", func(t *Task) {
			t.Status.State = TaskStateWorking
		}))
		require.NoError(t, store.Update(ctx, "um-1", func(t *Task) {
			t.Status.State = TaskStateCompleted
			t.Artifacts = append(t.Artifacts, TextArtifact("final_output", "done"))
		}))

		got, err := store.Get(ctx, "um-1")
		require.NoError(t, err)
		assert.Equal(t, TaskStateCompleted, got.Status.State)
		require.Len(t, got.Artifacts, 1)
		assert.Equal(t, "final_output", got.Artifacts[0].Name)

		// The state column follows the document for status filtering.
		resp, err := store.List(ctx, ListTasksRequest{Status: "completed"})
		require.NoError(t, err)
		require.Len(t, resp.Tasks, 1)
	})
}

func TestTaskStore_ListFilters(t *testing.T) {
	forEachStore(t, func(t *testing.T, store TaskStore) {
		ctx := context.Background()
		seed := []Task{
			{ID: "cf-1", ContextID: "ctx-x", Status: TaskStatus{State: TaskStateWorking}},
			{ID: "cf-2", ContextID: "ctx-x", Status: TaskStatus{State: TaskStateCompleted}},
			{ID: "cf-3", ContextID: "ctx-y", Status: TaskStatus{State: TaskStateWorking}},
			{ID: "cf-4", ContextID: "ctx-x", Status: TaskStatus{State: TaskStateWorking}},
		}
		for _, task := range seed {
			require.NoError(t, store.Create(ctx, task))
		}

		tests := []struct {
			name   string
			filter ListTasksRequest
			want   []string
		}{
			{"all", ListTasksRequest{}, []string{"cf-1", "cf-2", "cf-3", "cf-4"}},
			{"by context", ListTasksRequest{ContextID: "ctx-x"}, []string{"cf-1", "cf-2", "cf-4"}},
			{"by status", ListTasksRequest{Status: "working"}, []string{"cf-1", "cf-3", "cf-4"}},
			{"combined", ListTasksRequest{ContextID: "ctx-x", Status: "working"}, []string{"cf-1", "cf-4"}},
			{"no match", ListTasksRequest{ContextID: "ctx-z"}, []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp, err := store.List(ctx, tt.filter)
				require.NoError(t, err)
				ids := []string{}
				for _, task := range resp.Tasks {
					ids = append(ids, task.ID)
				}
				assert.Equal(t, tt.want, ids)
				assert.Equal(t, len(tt.want), resp.TotalSize)
				assert.Empty(t, resp.NextPageToken)
			})
		}
	})
}

func TestTaskStore_ListPagination(t *testing.T) {
	forEachStore(t, func(t *testing.T, store TaskStore) {
		ctx := context.Background()
		for i := 1; i <= 5; i++ {
			require.NoError(t, store.Create(ctx, Task{
				ID:        fmt.Sprintf("pg-%d", i),
				ContextID: "ctx-pg",
				Status:    TaskStatus{State: TaskStateSubmitted},
			}))
		}

		var pages [][]string
		token := ""
		for {
			resp, err := store.List(ctx, ListTasksRequest{PageSize: 2, PageToken: token})
			require.NoError(t, err)
			assert.Equal(t, 5, resp.TotalSize)

			var ids []string
			for _, task := range resp.Tasks {
				ids = append(ids, task.ID)
			}
			pages = append(pages, ids)

			if resp.NextPageToken == "" {
				break
			}
			token = resp.NextPageToken
		}

		assert.Equal(t, [][]string{{"pg-1", "pg-2"}, {"pg-3", "pg-4"}, {"pg-5"}}, pages)
	})
}

func TestTaskStore_ListInvalidPageToken(t *testing.T) {
	forEachStore(t, func(t *testing.T, store TaskStore) {
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, Task{ID: "pt-1", ContextID: "ctx-1"}))

		_, err := store.List(ctx, ListTasksRequest{PageToken: "bogus-token"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid page token")
	})
}

func TestTaskStore_ConcurrentAccess(t *testing.T) {
	forEachStore(t, func(t *testing.T, store TaskStore) {
		ctx := context.Background()
		const goroutines = 20

		var wg sync.WaitGroup
		for i := 0; i < goroutines; i++ {
			wg.Add(2)
			go func(idx int) {
				defer wg.Done()
				_ = store.Create(ctx, Task{
					ID:        fmt.Sprintf("conc-%d", idx),
					ContextID: "ctx-conc",
					Status:    TaskStatus{State: TaskStateSubmitted},
				})
			}(i)
			go func(idx int) {
				defer wg.Done()
				// Get may fail if the task hasn't been created yet.
				_, _ = store.Get(ctx, fmt.Sprintf("conc-%d", idx))
				_, _ = store.List(ctx, ListTasksRequest{ContextID: "ctx-conc"})
			}(i)
		}
		wg.Wait()

		resp, err := store.List(ctx, ListTasksRequest{ContextID: "ctx-conc"})
		require.NoError(t, err)
		assert.Len(t, resp.Tasks, goroutines)
	})
}

func TestSQLiteTaskStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "tasks.db")

	store, err := OpenSQLiteTaskStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, Task{ID: "keep-1", ContextID: "ctx-1", Status: TaskStatus{State: TaskStateCompleted}}))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLiteTaskStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "keep-1")
	require.NoError(t, err)
	assert.Equal(t, TaskStateCompleted, got.Status.State)
}

func TestSQLiteTaskStore_InMemory(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLiteTaskStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Create(ctx, Task{ID: "m-1", ContextID: "ctx-1"}))
	_, err = store.Get(ctx, "m-1")
	assert.NoError(t, err)
}

func TestNewID_Uniqueness(t *testing.T) {
	const count = 1000
	ids := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		ids[NewID()] = struct{}{}
	}
	assert.Len(t, ids, count)
}
