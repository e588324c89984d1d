/* Copyright (c) 2025 Brad Jones
 * SPDX-License-Identifier: BSD-3-Clause */
package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/domain"
)

// statusNoteRe matches the system-note phrasing GitLab emits for a status
// widget change. The phrasing is backend-defined; everything downstream of
// the capture group goes through the pluggable StatusMatcher.
var statusNoteRe = regexp.MustCompile(`(?i)set status to \*\*(.+?)\*\*`)

// StatusMatcher classifies a status value as "work started". Swappable so
// additional locales or synonyms never touch pagination or orchestration.
type StatusMatcher func(status string) bool

var inProgressKeywords = []string{"in progress", "in-progress", "wip", "working"}

func DefaultStatusMatcher(status string) bool {
	s := strings.ToLower(status)
	for _, kw := range inProgressKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

type labelsNode struct {
	Nodes []struct {
		Title string `json:"title"`
	} `json:"nodes"`
}

func (l labelsNode) titles() []string {
	out := make([]string, 0, len(l.Nodes))
	for _, n := range l.Nodes {
		out = append(out, n.Title)
	}
	return out
}

type noteNode struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	System    bool      `json:"system"`
	CreatedAt time.Time `json:"createdAt"`
}

func toNotes(nodes []noteNode) []domain.Note {
	out := make([]domain.Note, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, domain.Note{ID: n.ID, Body: n.Body, System: n.System, CreatedAt: n.CreatedAt})
	}
	return out
}

type issueNode struct {
	ID        string     `json:"id"`
	IID       string     `json:"iid"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	Weight    *int       `json:"weight"`
	CreatedAt time.Time  `json:"createdAt"`
	ClosedAt  *time.Time `json:"closedAt"`
	WebURL    string     `json:"webUrl"`
	Labels    labelsNode `json:"labels"`
	Assignees struct {
		Nodes []struct {
			Username string `json:"username"`
		} `json:"nodes"`
	} `json:"assignees"`
	Notes struct {
		PageInfo pageInfo   `json:"pageInfo"`
		Nodes    []noteNode `json:"nodes"`
	} `json:"notes"`
}

func (n issueNode) toDomain() domain.Issue {
	assignees := make([]string, 0, len(n.Assignees.Nodes))
	for _, a := range n.Assignees.Nodes {
		assignees = append(assignees, a.Username)
	}
	return domain.Issue{
		ID:        n.ID,
		IID:       n.IID,
		Title:     n.Title,
		State:     n.State,
		Weight:    n.Weight,
		CreatedAt: n.CreatedAt,
		ClosedAt:  n.ClosedAt,
		WebURL:    n.WebURL,
		Labels:    n.Labels.titles(),
		Assignees: assignees,
		Notes:     toNotes(n.Notes.Nodes),
	}
}

type issuesPage struct {
	Group *struct {
		Issues struct {
			PageInfo pageInfo    `json:"pageInfo"`
			Nodes    []issueNode `json:"nodes"`
		} `json:"issues"`
	} `json:"group"`
}

type fetchedIssue struct {
	issue     domain.Issue
	moreNotes bool
}

// FetchIterationIssues returns the iteration's issues (incident-typed issues
// excluded by the query) with status-transition timestamps derived from
// their system notes. The initial fetch carries a bounded note window; only
// closed issues that still lack an in-progress signal get a full note
// backfill.
func (c *Client) FetchIterationIssues(ctx context.Context, iterationID string) ([]domain.Issue, error) {
	op := fmt.Sprintf("fetch iteration issues (iteration %s)", iterationID)
	vars := map[string]any{
		"fullPath":    c.cfg.GitLabGroupPath,
		"iterationId": []string{iterationID},
		"first":       100,
		"notesFirst":  c.cfg.NoteWindow,
	}
	fetched, err := fetchAll(ctx, c, op, queryIterationIssues, vars, c.cfg.PageDelay,
		func(raw json.RawMessage) ([]fetchedIssue, pageInfo, error) {
			var page issuesPage
			if err := json.Unmarshal(raw, &page); err != nil {
				return nil, pageInfo{}, newNetworkError(op, err)
			}
			if page.Group == nil {
				return nil, pageInfo{}, newScopeNotFound(op, "group "+c.cfg.GitLabGroupPath)
			}
			out := make([]fetchedIssue, 0, len(page.Group.Issues.Nodes))
			for _, n := range page.Group.Issues.Nodes {
				out = append(out, fetchedIssue{issue: n.toDomain(), moreNotes: n.Notes.PageInfo.HasNextPage})
			}
			return out, page.Group.Issues.PageInfo, nil
		})
	if err != nil {
		return nil, err
	}

	issues := make([]domain.Issue, 0, len(fetched))
	for _, f := range fetched {
		iss := f.issue
		c.deriveInProgress(ctx, &iss, f.moreNotes)
		issues = append(issues, iss)
	}
	return issues, nil
}

// deriveInProgress fills InProgressAt and its provenance. Open issues are
// never backfilled and stay nil: cycle time only consumes closed issues, so
// guessing a start date for open work would just pollute provenance.
func (c *Client) deriveInProgress(ctx context.Context, iss *domain.Issue, moreNotes bool) {
	iss.StatusChanges = ExtractStatusChanges(iss.Notes)
	if iss.State != "closed" {
		return
	}
	ts := firstInProgress(iss.StatusChanges, c.matchStatus())
	if ts == nil && moreNotes {
		notes, err := c.fetchAllNotes(ctx, iss.WebURL, iss.IID)
		if err != nil {
			// Enrichment failure: degrade to the creation-time fallback.
			c.log.Warn().Err(err).Str("issue", iss.IID).Msg("note backfill failed")
		} else {
			iss.Notes = notes
			iss.StatusChanges = ExtractStatusChanges(iss.Notes)
			ts = firstInProgress(iss.StatusChanges, c.matchStatus())
		}
	}
	if ts != nil {
		iss.InProgressAt = ts
		iss.InProgressSource = domain.SourceStatusChange
		return
	}
	created := iss.CreatedAt
	iss.InProgressAt = &created
	iss.InProgressSource = domain.SourceCreated
}

func (c *Client) matchStatus() StatusMatcher {
	if c.statusMatcher != nil {
		return c.statusMatcher
	}
	return DefaultStatusMatcher
}

type issueNotesPage struct {
	Project *struct {
		Issue *struct {
			Notes struct {
				PageInfo pageInfo   `json:"pageInfo"`
				Nodes    []noteNode `json:"nodes"`
			} `json:"notes"`
		} `json:"issue"`
	} `json:"project"`
}

// fetchAllNotes re-reads the issue's complete note trail, unbounded.
func (c *Client) fetchAllNotes(ctx context.Context, webURL, iid string) ([]domain.Note, error) {
	projectPath, err := ProjectPathFromURL(webURL)
	if err != nil {
		return nil, err
	}
	op := fmt.Sprintf("fetch issue notes (%s#%s)", projectPath, iid)
	vars := map[string]any{"fullPath": projectPath, "iid": iid}
	return fetchAll(ctx, c, op, queryIssueNotes, vars, c.cfg.PageDelay,
		func(raw json.RawMessage) ([]domain.Note, pageInfo, error) {
			var page issueNotesPage
			if err := json.Unmarshal(raw, &page); err != nil {
				return nil, pageInfo{}, newNetworkError(op, err)
			}
			if page.Project == nil {
				return nil, pageInfo{}, newScopeNotFound(op, "project "+projectPath)
			}
			if page.Project.Issue == nil {
				return nil, pageInfo{}, newScopeNotFound(op, fmt.Sprintf("issue %s#%s", projectPath, iid))
			}
			notes := page.Project.Issue.Notes
			return toNotes(notes.Nodes), notes.PageInfo, nil
		})
}

// ExtractStatusChanges scans system notes for "set status to **<value>**"
// and returns the transitions in chronological order. The sort is stable:
// equal timestamps keep their original fetch order.
func ExtractStatusChanges(notes []domain.Note) []domain.StatusChange {
	sorted := make([]domain.Note, len(notes))
	copy(sorted, notes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	var out []domain.StatusChange
	for _, n := range sorted {
		if !n.System {
			continue
		}
		if n.Action != "" && n.Action != "status" {
			continue
		}
		m := statusNoteRe.FindStringSubmatch(n.Body)
		if m == nil {
			continue
		}
		out = append(out, domain.StatusChange{Status: m[1], Timestamp: n.CreatedAt})
	}
	return out
}

func firstInProgress(changes []domain.StatusChange, match StatusMatcher) *time.Time {
	for _, sc := range changes {
		if match(sc.Status) {
			ts := sc.Timestamp
			return &ts
		}
	}
	return nil
}

// ProjectPathFromURL derives the owning project path from a web location,
// e.g. https://gitlab.com/group/sub/app/-/issues/42 -> group/sub/app.
func ProjectPathFromURL(webURL string) (string, error) {
	idx := strings.Index(webURL, "://")
	if idx == -1 {
		return "", fmt.Errorf("invalid web url %q", webURL)
	}
	rest := webURL[idx+3:]
	slash := strings.Index(rest, "/")
	if slash == -1 {
		return "", fmt.Errorf("invalid web url %q", webURL)
	}
	path := rest[slash+1:]
	if cut := strings.Index(path, "/-/"); cut != -1 {
		path = path[:cut]
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return "", fmt.Errorf("invalid web url %q", webURL)
	}
	return path, nil
}
