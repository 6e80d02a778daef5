package generate

import "fmt"

// ToolNotFoundError reports a model request for a tool that is not
// registered. The loop aborts; there is no retry and no substitute call.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("generate: tool %q not registered", e.Name)
}

// ToolExecutionError reports a registered tool that failed. The original
// failure is preserved for errors.Is/As.
type ToolExecutionError struct {
	Name string
	ID   string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("generate: tool %q (%s) failed: %v", e.Name, e.ID, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }
