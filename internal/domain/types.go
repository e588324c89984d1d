package domain

import "time"

// Provenance values for derived timestamps. Downstream consumers use these
// to distinguish authoritative timeline signal from fallback values.
const (
	SourceStatusChange = "status_change"
	SourceCreated      = "created"
	SourceClosed       = "closed"
	SourceTimeline     = "timeline"
)

type Iteration struct {
	ID        string
	Title     string
	StartDate time.Time
	DueDate   time.Time
}

type Note struct {
	ID        string
	Body      string
	System    bool
	Action    string
	CreatedAt time.Time
}

// StatusChange is extracted from system notes of the form
// "set status to **<value>**", ordered by note creation time.
type StatusChange struct {
	Status    string
	Timestamp time.Time
}

type Issue struct {
	ID        string
	IID       string
	Title     string
	State     string
	Weight    *int
	CreatedAt time.Time
	ClosedAt  *time.Time
	WebURL    string
	Labels    []string
	Assignees []string
	Notes     []Note

	// Derived. InProgressAt is nil for open issues; for closed issues it is
	// either the first matching status-change note or the creation time, and
	// InProgressSource records which.
	InProgressAt     *time.Time
	InProgressSource string
	StatusChanges    []StatusChange
}

type Commit struct {
	SHA           string
	Title         string
	CommittedDate time.Time
}

type MergeRequest struct {
	ID           string
	IID          string
	Title        string
	State        string
	CreatedAt    time.Time
	MergedAt     *time.Time
	SourceBranch string
	TargetBranch string
	ProjectPath  string
	Commits      []Commit
}

type TimelineEvent struct {
	OccurredAt time.Time
	Note       string
	Tags       []string
}

// ChangeLink points at the merge request or commit a timeline note blames
// for an incident.
type ChangeLink struct {
	Type    string // "merge_request" or "commit"
	URL     string
	Project string
	IID     string
	SHA     string
}

type Incident struct {
	ID        string
	IID       string
	Title     string
	State     string
	CreatedAt time.Time
	ClosedAt  *time.Time
	UpdatedAt time.Time
	Labels    []string
	WebURL    string
	Timeline  []TimelineEvent

	ActualStartTime *time.Time
	StartTimeSource string
	ActualEndTime   *time.Time
	EndTimeSource   string

	ChangeLink *ChangeLink
	ChangeDate *time.Time
}

type Project struct {
	ID       string
	FullPath string
	Name     string
}

// IterationData is the enriched working set for one iteration.
type IterationData struct {
	Iteration     Iteration
	Issues        []Issue
	MergeRequests []MergeRequest
	Incidents     []Incident
	Projects      []Project
}

type Distribution struct {
	AvgDays float64
	P50Days float64
	P90Days float64
	Count   int
}

type Velocity struct {
	Points  float64
	Stories int
}

type DeploymentFrequency struct {
	Deployments int
	Days        int
	PerDay      float64
}

type MTTR struct {
	AvgHours  float64
	Incidents int
	Excluded  int
}

type ChangeFailureRate struct {
	Percentage    float64
	FailedChanges int
	Deployments   int
}

// Metric is one persisted aggregate per iteration.
type Metric struct {
	IterationID   string
	Title         string
	StartDate     time.Time
	DueDate       time.Time
	Velocity      Velocity
	Throughput    int
	CycleTime     Distribution
	LeadTime      Distribution
	DeployFreq    DeploymentFrequency
	MTTR          MTTR
	CFR           ChangeFailureRate
	IssueCount    int
	MergeCount    int
	IncidentCount int
	Raw           IterationData
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
