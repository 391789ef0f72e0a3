package plane

import "time"

type planeProject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// projectsResponse is a paginated project list.
type projectsResponse struct {
	Results []planeProject `json:"results"`
}

// planeIssue is a work item with the fields the adapter reads.
type planeIssue struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	DescriptionStripped string    `json:"description_stripped"`
	Priority            string    `json:"priority"`
	TargetDate          string    `json:"target_date"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	Project             string    `json:"project"`
}

// issuesResponse is a paginated issue list.
type issuesResponse struct {
	Results []planeIssue `json:"results"`
}

// createIssueRequest is the issue-creation body.
type createIssueRequest struct {
	Name            string `json:"name"`
	DescriptionHTML string `json:"description_html,omitempty"`
	Priority        string `json:"priority,omitempty"`
}
