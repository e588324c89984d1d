/* Copyright (c) 2025 Brad Jones
 * SPDX-License-Identifier: BSD-3-Clause */
package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/domain"
)

type commitNode struct {
	SHA           string    `json:"sha"`
	Title         string    `json:"title"`
	CommittedDate time.Time `json:"committedDate"`
}

type mergeRequestNode struct {
	ID           string     `json:"id"`
	IID          string     `json:"iid"`
	Title        string     `json:"title"`
	State        string     `json:"state"`
	CreatedAt    time.Time  `json:"createdAt"`
	MergedAt     *time.Time `json:"mergedAt"`
	SourceBranch string     `json:"sourceBranch"`
	TargetBranch string     `json:"targetBranch"`
	Project      *struct {
		FullPath string `json:"fullPath"`
	} `json:"project"`
	Commits struct {
		Nodes []commitNode `json:"nodes"`
	} `json:"commits"`
}

func (n mergeRequestNode) toDomain() domain.MergeRequest {
	mr := domain.MergeRequest{
		ID:           n.ID,
		IID:          n.IID,
		Title:        n.Title,
		State:        n.State,
		CreatedAt:    n.CreatedAt,
		MergedAt:     n.MergedAt,
		SourceBranch: n.SourceBranch,
		TargetBranch: n.TargetBranch,
	}
	if n.Project != nil {
		mr.ProjectPath = n.Project.FullPath
	}
	for _, cm := range n.Commits.Nodes {
		mr.Commits = append(mr.Commits, domain.Commit{SHA: cm.SHA, Title: cm.Title, CommittedDate: cm.CommittedDate})
	}
	return mr
}

type mergeRequestsPage struct {
	Group *struct {
		MergeRequests struct {
			PageInfo pageInfo           `json:"pageInfo"`
			Nodes    []mergeRequestNode `json:"nodes"`
		} `json:"mergeRequests"`
	} `json:"group"`
}

// FetchMergedMergeRequests returns merge requests merged inside the window,
// with their commit lists for lead-time computation.
func (c *Client) FetchMergedMergeRequests(ctx context.Context, start, end time.Time) ([]domain.MergeRequest, error) {
	op := "fetch merged merge requests"
	vars := map[string]any{
		"fullPath":     c.cfg.GitLabGroupPath,
		"mergedAfter":  start.Format(time.RFC3339),
		"mergedBefore": end.Format(time.RFC3339),
	}
	return fetchAll(ctx, c, op, queryMergedMergeRequests, vars, c.cfg.PageDelay,
		func(raw json.RawMessage) ([]domain.MergeRequest, pageInfo, error) {
			var page mergeRequestsPage
			if err := json.Unmarshal(raw, &page); err != nil {
				return nil, pageInfo{}, newNetworkError(op, err)
			}
			if page.Group == nil {
				return nil, pageInfo{}, newScopeNotFound(op, "group "+c.cfg.GitLabGroupPath)
			}
			out := make([]domain.MergeRequest, 0, len(page.Group.MergeRequests.Nodes))
			for _, n := range page.Group.MergeRequests.Nodes {
				out = append(out, n.toDomain())
			}
			return out, page.Group.MergeRequests.PageInfo, nil
		})
}

type mergeRequestDetailPage struct {
	Project *struct {
		MergeRequest *mergeRequestNode `json:"mergeRequest"`
	} `json:"project"`
}

// FetchMergeRequest resolves a single merge request, used when correlating
// an incident back to the change that caused it.
func (c *Client) FetchMergeRequest(ctx context.Context, projectPath, iid string) (*domain.MergeRequest, error) {
	op := fmt.Sprintf("fetch merge request (%s!%s)", projectPath, iid)
	vars := map[string]any{"fullPath": projectPath, "iid": iid}
	var page mergeRequestDetailPage
	if err := c.exec.Execute(ctx, op, queryMergeRequest, vars, &page); err != nil {
		return nil, err
	}
	if page.Project == nil {
		return nil, newScopeNotFound(op, "project "+projectPath)
	}
	if page.Project.MergeRequest == nil {
		return nil, newScopeNotFound(op, fmt.Sprintf("merge request %s!%s", projectPath, iid))
	}
	mr := page.Project.MergeRequest.toDomain()
	mr.ProjectPath = projectPath
	return &mr, nil
}

type commitDetailPage struct {
	Project *struct {
		Repository *struct {
			Commit *commitNode `json:"commit"`
		} `json:"repository"`
	} `json:"project"`
}

func (c *Client) FetchCommit(ctx context.Context, projectPath, sha string) (*domain.Commit, error) {
	op := fmt.Sprintf("fetch commit (%s@%s)", projectPath, sha)
	vars := map[string]any{"fullPath": projectPath, "sha": sha}
	var page commitDetailPage
	if err := c.exec.Execute(ctx, op, queryCommit, vars, &page); err != nil {
		return nil, err
	}
	if page.Project == nil {
		return nil, newScopeNotFound(op, "project "+projectPath)
	}
	if page.Project.Repository == nil || page.Project.Repository.Commit == nil {
		return nil, newScopeNotFound(op, fmt.Sprintf("commit %s@%s", projectPath, sha))
	}
	cm := page.Project.Repository.Commit
	return &domain.Commit{SHA: cm.SHA, Title: cm.Title, CommittedDate: cm.CommittedDate}, nil
}
