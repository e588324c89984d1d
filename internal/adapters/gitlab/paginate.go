package gitlab

import (
	"context"
	"encoding/json"
	"time"
)

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// fetchAll follows endCursor pagination until the backend reports no next
// page, delaying between pages. extract maps one raw page onto items plus
// page info; a missing top-level container must come back from extract as a
// scope-not-found error, never as an empty page. Pages are strictly
// sequential: each cursor depends on the prior response.
func fetchAll[T any](ctx context.Context, c *Client, opContext, query string, vars map[string]any, delay time.Duration, extract func(json.RawMessage) ([]T, pageInfo, error)) ([]T, error) {
	var all []T
	for {
		var raw json.RawMessage
		if err := c.exec.Execute(ctx, opContext, query, vars, &raw); err != nil {
			return nil, err
		}
		items, pi, err := extract(raw)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if !pi.HasNextPage {
			return all, nil
		}
		vars["after"] = pi.EndCursor
		if err := c.limit.Delay(ctx, delay); err != nil {
			return nil, err
		}
	}
}
