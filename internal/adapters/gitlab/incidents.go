/* Copyright (c) 2025 Brad Jones
 * SPDX-License-Identifier: BSD-3-Clause */
package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/domain"
)

// Timeline event tags understood by the correlation rules. Matching is
// case-insensitive on tag names.
const (
	tagStartTime       = "start time"
	tagEndTime         = "end time"
	tagStopTime        = "stop time"
	tagImpactMitigated = "impact mitigated"
)

var (
	mrLinkRe     = regexp.MustCompile(`https?://[^\s/]+/(\S+?)/-/merge_requests/(\d+)`)
	commitLinkRe = regexp.MustCompile(`https?://[^\s/]+/(\S+?)/-/commit/([0-9a-fA-F]{7,40})`)
)

type incidentNode struct {
	ID        string     `json:"id"`
	IID       string     `json:"iid"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"createdAt"`
	ClosedAt  *time.Time `json:"closedAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	WebURL    string     `json:"webUrl"`
	Labels    labelsNode `json:"labels"`
}

type incidentsPage struct {
	Group *struct {
		Issues struct {
			PageInfo pageInfo       `json:"pageInfo"`
			Nodes    []incidentNode `json:"nodes"`
		} `json:"issues"`
	} `json:"group"`
}

// FetchIncidents returns the incidents relevant to [start, end], enriched
// with timeline-derived start/end times, provenance, and a resolved change
// link where one exists. The raw query window is widened below start by the
// configured lookback so incidents opened earlier but still active during
// the iteration are considered.
func (c *Client) FetchIncidents(ctx context.Context, start, end time.Time) ([]domain.Incident, error) {
	op := "fetch incidents"
	createdAfter := start.AddDate(0, 0, -c.cfg.IncidentLookbackDays)
	vars := map[string]any{
		"fullPath":      c.cfg.GitLabGroupPath,
		"createdAfter":  createdAfter.Format(time.RFC3339),
		"createdBefore": end.Format(time.RFC3339),
	}
	incidents, err := fetchAll(ctx, c, op, queryIncidents, vars, c.cfg.PageDelay,
		func(raw json.RawMessage) ([]domain.Incident, pageInfo, error) {
			var page incidentsPage
			if err := json.Unmarshal(raw, &page); err != nil {
				return nil, pageInfo{}, newNetworkError(op, err)
			}
			if page.Group == nil {
				return nil, pageInfo{}, newScopeNotFound(op, "group "+c.cfg.GitLabGroupPath)
			}
			out := make([]domain.Incident, 0, len(page.Group.Issues.Nodes))
			for _, n := range page.Group.Issues.Nodes {
				out = append(out, domain.Incident{
					ID:        n.ID,
					IID:       n.IID,
					Title:     n.Title,
					State:     n.State,
					CreatedAt: n.CreatedAt,
					ClosedAt:  n.ClosedAt,
					UpdatedAt: n.UpdatedAt,
					WebURL:    n.WebURL,
					Labels:    n.Labels.titles(),
				})
			}
			return out, page.Group.Issues.PageInfo, nil
		})
	if err != nil {
		return nil, err
	}

	// Timeline data is optional enrichment: each incident's fetch runs in
	// its own goroutine and a failure leaves the timeline empty.
	var wg sync.WaitGroup
	for i := range incidents {
		wg.Add(1)
		go func(inc *domain.Incident) {
			defer wg.Done()
			events, err := c.fetchTimelineEvents(ctx, inc.WebURL, inc.ID)
			if err != nil {
				c.log.Warn().Err(err).Str("incident", inc.IID).Msg("timeline fetch failed, continuing without timeline")
				return
			}
			inc.Timeline = events
		}(&incidents[i])
	}
	wg.Wait()

	relevant := make([]domain.Incident, 0, len(incidents))
	for _, inc := range incidents {
		resolveIncidentTimes(&inc)
		if !incidentRelevant(inc, start, end) {
			continue
		}
		c.correlateChange(ctx, &inc)
		relevant = append(relevant, inc)
	}
	return relevant, nil
}

type timelineEventsPage struct {
	Project *struct {
		Events *struct {
			PageInfo pageInfo `json:"pageInfo"`
			Nodes    []struct {
				OccurredAt time.Time `json:"occurredAt"`
				Note       string    `json:"note"`
				Tags       struct {
					Nodes []struct {
						Name string `json:"name"`
					} `json:"nodes"`
				} `json:"timelineEventTags"`
			} `json:"nodes"`
		} `json:"incidentManagementTimelineEvents"`
	} `json:"project"`
}

func (c *Client) fetchTimelineEvents(ctx context.Context, webURL, incidentID string) ([]domain.TimelineEvent, error) {
	projectPath, err := ProjectPathFromURL(webURL)
	if err != nil {
		return nil, err
	}
	op := fmt.Sprintf("fetch incident timeline (%s)", incidentID)
	vars := map[string]any{"fullPath": projectPath, "incidentId": incidentID}
	return fetchAll(ctx, c, op, queryTimelineEvents, vars, c.cfg.PageDelay,
		func(raw json.RawMessage) ([]domain.TimelineEvent, pageInfo, error) {
			var page timelineEventsPage
			if err := json.Unmarshal(raw, &page); err != nil {
				return nil, pageInfo{}, newNetworkError(op, err)
			}
			if page.Project == nil {
				return nil, pageInfo{}, newScopeNotFound(op, "project "+projectPath)
			}
			if page.Project.Events == nil {
				return nil, pageInfo{}, nil
			}
			out := make([]domain.TimelineEvent, 0, len(page.Project.Events.Nodes))
			for _, n := range page.Project.Events.Nodes {
				tags := make([]string, 0, len(n.Tags.Nodes))
				for _, t := range n.Tags.Nodes {
					tags = append(tags, t.Name)
				}
				out = append(out, domain.TimelineEvent{OccurredAt: n.OccurredAt, Note: n.Note, Tags: tags})
			}
			return out, page.Project.Events.PageInfo, nil
		})
}

// timeRule is one tier of a cascading fallback chain. Rules are evaluated
// in order and the first non-nil extraction wins, with the rule's name
// recorded as the field's provenance.
type timeRule struct {
	name    string
	extract func(inc *domain.Incident) *time.Time
}

func tagTime(tag string) func(inc *domain.Incident) *time.Time {
	return func(inc *domain.Incident) *time.Time {
		if ev := firstEventTagged(inc.Timeline, tag); ev != nil {
			ts := ev.OccurredAt
			return &ts
		}
		return nil
	}
}

var startTimeRules = []timeRule{
	{domain.SourceTimeline, tagTime(tagStartTime)},
	{domain.SourceCreated, func(inc *domain.Incident) *time.Time {
		ts := inc.CreatedAt
		return &ts
	}},
}

var endTimeRules = []timeRule{
	{"timeline_end", tagTime(tagEndTime)},
	{"timeline_stop", tagTime(tagStopTime)},
	{"timeline_mitigated", tagTime(tagImpactMitigated)},
	{domain.SourceClosed, func(inc *domain.Incident) *time.Time { return inc.ClosedAt }},
}

func resolveIncidentTimes(inc *domain.Incident) {
	for _, r := range startTimeRules {
		if ts := r.extract(inc); ts != nil {
			inc.ActualStartTime = ts
			inc.StartTimeSource = r.name
			break
		}
	}
	for _, r := range endTimeRules {
		if ts := r.extract(inc); ts != nil {
			inc.ActualEndTime = ts
			inc.EndTimeSource = r.name
			break
		}
	}
}

// incidentRelevant applies the inclusion precedence: a timeline start-time
// tag is authoritative and no other signal is consulted; without one the
// incident qualifies if it was created, closed, or updated inside the
// window.
func incidentRelevant(inc domain.Incident, start, end time.Time) bool {
	if inc.StartTimeSource == domain.SourceTimeline {
		return within(*inc.ActualStartTime, start, end)
	}
	if within(inc.CreatedAt, start, end) {
		return true
	}
	if inc.ClosedAt != nil && within(*inc.ClosedAt, start, end) {
		return true
	}
	return within(inc.UpdatedAt, start, end)
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

func firstEventTagged(events []domain.TimelineEvent, tag string) *domain.TimelineEvent {
	for i := range events {
		for _, t := range events[i].Tags {
			if strings.EqualFold(t, tag) {
				return &events[i]
			}
		}
	}
	return nil
}

// ExtractChangeLink scans note text for a merge-request URL first, then a
// commit URL; the first match wins.
func ExtractChangeLink(note string) *domain.ChangeLink {
	if m := mrLinkRe.FindStringSubmatch(note); m != nil {
		return &domain.ChangeLink{Type: "merge_request", URL: m[0], Project: m[1], IID: m[2]}
	}
	if m := commitLinkRe.FindStringSubmatch(note); m != nil {
		return &domain.ChangeLink{Type: "commit", URL: m[0], Project: m[1], SHA: m[2]}
	}
	return nil
}

// correlateChange links the incident to the change named in its start-time
// timeline note and resolves that change's merge or commit date. Resolution
// failure is enrichment failure: logged, never propagated.
func (c *Client) correlateChange(ctx context.Context, inc *domain.Incident) {
	ev := firstEventTagged(inc.Timeline, tagStartTime)
	if ev == nil {
		return
	}
	link := ExtractChangeLink(ev.Note)
	if link == nil {
		return
	}
	inc.ChangeLink = link
	switch link.Type {
	case "merge_request":
		mr, err := c.FetchMergeRequest(ctx, link.Project, link.IID)
		if err != nil {
			c.log.Warn().Err(err).Str("incident", inc.IID).Str("mr", link.URL).Msg("change link resolution failed")
			return
		}
		inc.ChangeDate = mr.MergedAt
	case "commit":
		cm, err := c.FetchCommit(ctx, link.Project, link.SHA)
		if err != nil {
			c.log.Warn().Err(err).Str("incident", inc.IID).Str("commit", link.URL).Msg("change link resolution failed")
			return
		}
		ts := cm.CommittedDate
		inc.ChangeDate = &ts
	}
}
