package gitlab

import (
	"context"
	"encoding/json"

	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/domain"
)

type projectsPage struct {
	Group *struct {
		Projects struct {
			PageInfo pageInfo `json:"pageInfo"`
			Nodes    []struct {
				ID       string `json:"id"`
				FullPath string `json:"fullPath"`
				Name     string `json:"name"`
			} `json:"nodes"`
		} `json:"projects"`
	} `json:"group"`
}

// FetchGroupProjects lists the group's projects, the deployment-frequency
// proxy source. Lighter resource, so it runs on the shorter delay budget.
func (c *Client) FetchGroupProjects(ctx context.Context) ([]domain.Project, error) {
	op := "fetch group projects"
	vars := map[string]any{"fullPath": c.cfg.GitLabGroupPath}
	return fetchAll(ctx, c, op, queryGroupProjects, vars, c.cfg.PipelineDelay,
		func(raw json.RawMessage) ([]domain.Project, pageInfo, error) {
			var page projectsPage
			if err := json.Unmarshal(raw, &page); err != nil {
				return nil, pageInfo{}, newNetworkError(op, err)
			}
			if page.Group == nil {
				return nil, pageInfo{}, newScopeNotFound(op, "group "+c.cfg.GitLabGroupPath)
			}
			out := make([]domain.Project, 0, len(page.Group.Projects.Nodes))
			for _, n := range page.Group.Projects.Nodes {
				out = append(out, domain.Project{ID: n.ID, FullPath: n.FullPath, Name: n.Name})
			}
			return out, page.Group.Projects.PageInfo, nil
		})
}
