package mcp

// ListTasksInput defines the input schema for the list_tasks tool.
type ListTasksInput struct {
	Session string `json:"session,omitempty" jsonschema:"only tasks from this session id"`
	Status  string `json:"status,omitempty" jsonschema:"only tasks with this status: pending, in_progress, completed"`
}

// TaskOutput is one task in a list_tasks result.
type TaskOutput struct {
	ID         string   `json:"id"`
	Subject    string   `json:"subject"`
	Status     string   `json:"status"`
	SessionID  string   `json:"session_id"`
	Owner      string   `json:"owner,omitempty"`
	ActiveForm string   `json:"active_form,omitempty"`
	BlockedBy  []string `json:"blocked_by,omitempty"`
	Blocks     []string `json:"blocks,omitempty"`
	FilePath   string   `json:"file_path"`
}

// ListTasksOutput defines the output schema for the list_tasks tool.
type ListTasksOutput struct {
	Tasks []TaskOutput `json:"tasks" jsonschema:"tasks across all sessions"`
	Count int          `json:"count"`
}

// ListPlansInput defines the input schema for the list_plans tool (no parameters).
type ListPlansInput struct{}

// SearchPlansInput defines the input schema for the search_plans tool.
type SearchPlansInput struct {
	Query string `json:"query" jsonschema:"case-insensitive text matched against plan titles and content"`
}

// PlanSummary is one plan in a list or search result. Content is omitted.
type PlanSummary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	FilePath   string `json:"file_path"`
	ModifiedAt int64  `json:"modified_at" jsonschema:"last modification, unix milliseconds"`
}

// PlansOutput defines the output schema for list_plans and search_plans.
type PlansOutput struct {
	Query string        `json:"query,omitempty"`
	Plans []PlanSummary `json:"plans"`
	Count int           `json:"count"`
}

// GetPlanInput defines the input schema for the get_plan tool.
type GetPlanInput struct {
	ID string `json:"id" jsonschema:"plan id, the file name without extension"`
}

// GetPlanOutput defines the output schema for the get_plan tool.
type GetPlanOutput struct {
	PlanSummary
	Content string `json:"content"`
}

// ListFoldersInput defines the input schema for the list_workspace_folders tool.
type ListFoldersInput struct{}

// FolderOutput is one workspace folder.
type FolderOutput struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// ListFoldersOutput defines the output schema for the list_workspace_folders tool.
type ListFoldersOutput struct {
	Folders []FolderOutput `json:"folders"`
	Count   int            `json:"count"`
}
