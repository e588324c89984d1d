package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/domain"
)

type iterationNode struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StartDate string `json:"startDate"`
	DueDate   string `json:"dueDate"`
}

type iterationsPage struct {
	Group *struct {
		Iterations struct {
			PageInfo pageInfo        `json:"pageInfo"`
			Nodes    []iterationNode `json:"nodes"`
		} `json:"iterations"`
	} `json:"group"`
}

// FetchIterations lists every iteration in the group. Callers index the
// result once per batch instead of re-fetching per iteration.
func (c *Client) FetchIterations(ctx context.Context) ([]domain.Iteration, error) {
	op := "fetch group iterations"
	vars := map[string]any{"fullPath": c.cfg.GitLabGroupPath}
	return fetchAll(ctx, c, op, queryGroupIterations, vars, c.cfg.PageDelay,
		func(raw json.RawMessage) ([]domain.Iteration, pageInfo, error) {
			var page iterationsPage
			if err := json.Unmarshal(raw, &page); err != nil {
				return nil, pageInfo{}, newNetworkError(op, err)
			}
			if page.Group == nil {
				return nil, pageInfo{}, newScopeNotFound(op, "group "+c.cfg.GitLabGroupPath)
			}
			out := make([]domain.Iteration, 0, len(page.Group.Iterations.Nodes))
			for _, n := range page.Group.Iterations.Nodes {
				start, err := parseDate(n.StartDate)
				if err != nil {
					return nil, pageInfo{}, newNetworkError(op, fmt.Errorf("iteration %s start date: %w", n.ID, err))
				}
				due, err := parseDate(n.DueDate)
				if err != nil {
					return nil, pageInfo{}, newNetworkError(op, fmt.Errorf("iteration %s due date: %w", n.ID, err))
				}
				out = append(out, domain.Iteration{ID: n.ID, Title: n.Title, StartDate: start, DueDate: due})
			}
			return out, page.Group.Iterations.PageInfo, nil
		})
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
