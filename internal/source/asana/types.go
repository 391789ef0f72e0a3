package asana

import "time"

type asanaUser struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

type asanaProject struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

// asanaTask is a task with the opt_fields the adapter requests.
type asanaTask struct {
	GID          string         `json:"gid"`
	Name         string         `json:"name"`
	Notes        string         `json:"notes"`
	DueOn        string         `json:"due_on"`
	CreatedAt    time.Time      `json:"created_at"`
	ModifiedAt   time.Time      `json:"modified_at"`
	Completed    bool           `json:"completed"`
	Assignee     *asanaUser     `json:"assignee"`
	Projects     []asanaProject `json:"projects"`
	PermalinkURL string         `json:"permalink_url"`
}

type tasksResponse struct {
	Data []asanaTask `json:"data"`
}

type taskResponse struct {
	Data asanaTask `json:"data"`
}

type userResponse struct {
	Data asanaUser `json:"data"`
}

type createTaskData struct {
	Name      string   `json:"name"`
	Notes     string   `json:"notes,omitempty"`
	Projects  []string `json:"projects,omitempty"`
	Workspace string   `json:"workspace"`
}

// createTaskRequest wraps task creation the way Asana nests request
// bodies under "data".
type createTaskRequest struct {
	Data createTaskData `json:"data"`
}
