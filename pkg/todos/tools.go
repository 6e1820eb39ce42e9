package todos

import (
	"context"
	"fmt"
	"strings"

	"github.com/hqai/agentkit/pkg/hooks"
	"github.com/hqai/agentkit/pkg/tool"
)

// Tool names registered by Tools.
const (
	ToolCreate = "create_todos"
	ToolUpdate = "update_todos"
	ToolQuery  = "query_todos"
)

type createArgs struct {
	TodoItems []string `json:"todo_items" jsonschema:"description=Ordered task descriptions for the new list"`
}

type updateArgs struct {
	TaskID string `json:"task_id" jsonschema:"description=ID of the task to update"`
	Status string `json:"status" jsonschema:"description=New task status,enum=pending,enum=in_progress,enum=completed"`
}

type queryArgs struct {
	StatusFilter string `json:"status_filter,omitempty" jsonschema:"description=Only return tasks with this status,enum=pending,enum=in_progress,enum=completed"`
}

// Tools returns the three todo-list tool definitions backed by store. The
// returned tools read the session id injected by SessionScope; register that
// middleware alongside them.
func Tools(store *Store) ([]tool.Definition, error) {
	create, err := tool.New(ToolCreate,
		"Create a new task list for this session, replacing any existing one. Tasks start as pending with ids numbered from 1.",
		createArgs{}, createHandler(store))
	if err != nil {
		return nil, err
	}

	update, err := tool.New(ToolUpdate,
		"Update the status of one task in this session's task list.",
		updateArgs{}, updateHandler(store))
	if err != nil {
		return nil, err
	}

	query, err := tool.New(ToolQuery,
		"List this session's tasks, optionally filtered by status.",
		queryArgs{}, queryHandler(store))
	if err != nil {
		return nil, err
	}

	return []tool.Definition{create, update, query}, nil
}

func sessionID(args map[string]any) (string, error) {
	id, _ := args["session_id"].(string)
	if id == "" {
		return "", fmt.Errorf("session_id missing; SessionScope middleware is not registered")
	}
	return id, nil
}

func createHandler(store *Store) tool.Func {
	return func(ctx context.Context, args map[string]any) (any, error) {
		id, err := sessionID(args)
		if err != nil {
			return nil, err
		}

		raw, _ := args["todo_items"].([]any)
		contents := make([]string, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok {
				contents = append(contents, s)
			}
		}
		if len(contents) == 0 {
			return nil, fmt.Errorf("todo_items must contain at least one task description")
		}

		items, err := store.Create(id, contents)
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf("created todo list with %d tasks", len(items)), nil
	}
}

func updateHandler(store *Store) tool.Func {
	return func(ctx context.Context, args map[string]any) (any, error) {
		id, err := sessionID(args)
		if err != nil {
			return nil, err
		}

		taskID, _ := args["task_id"].(string)
		status, _ := args["status"].(string)

		old, err := store.Update(id, taskID, status)
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf("task %s status changed from %q to %q", taskID, old, status), nil
	}
}

func queryHandler(store *Store) tool.Func {
	return func(ctx context.Context, args map[string]any) (any, error) {
		id, err := sessionID(args)
		if err != nil {
			return nil, err
		}

		filter, _ := args["status_filter"].(string)
		items, err := store.Query(id, filter)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			if filter != "" {
				return fmt.Sprintf("no tasks with status %q", filter), nil
			}
			return "no todo list exists for this session", nil
		}

		var b strings.Builder
		b.WriteString("current tasks:\n")
		for _, item := range items {
			fmt.Fprintf(&b, "[%s] %s (%s)\n", item.ID, item.Content, item.Status)
		}
		return strings.TrimRight(b.String(), "\n"), nil
	}
}

// SessionScope injects the owning session's id into the todo tools'
// arguments so each session reads and writes its own list.
type SessionScope struct {
	hooks.Passthrough
}

func (SessionScope) BeforeToolCall(toolName string, args map[string]any, session hooks.Session) map[string]any {
	switch toolName {
	case ToolCreate, ToolUpdate, ToolQuery:
		if args == nil {
			args = map[string]any{}
		}
		args["session_id"] = session.ID()
	}
	return args
}
