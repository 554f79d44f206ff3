// Package apiv1 holds the small set of identity messages (workflow type,
// task queue name) that decorate history events. Split from commonv1 to
// mirror the teacher's separation between wire-shared types and
// API-surface types. Hand-maintained; see internal/rpc for why.
package apiv1

// WorkflowType names the registered workflow a run executes.
type WorkflowType struct {
	Name string `json:"name,omitempty"`
}

func (m *WorkflowType) GetName() string {
	if m == nil {
		return ""
	}
	return m.Name
}

// TaskQueue names a Matching queue. Unlike matchingv1.TaskQueue this
// variant carries no Kind — it decorates events, which never need to
// know whether the queue backing them was normal or sticky.
type TaskQueue struct {
	Name string `json:"name,omitempty"`
}

func (m *TaskQueue) GetName() string {
	if m == nil {
		return ""
	}
	return m.Name
}
