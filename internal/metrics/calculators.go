/* Copyright (c) 2025 Brad Jones
 * SPDX-License-Identifier: BSD-3-Clause */
package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/domain"
)

const hoursPerDay = 24.0

// Velocity sums story weight over closed issues. Missing weight counts as
// zero, not an error.
func Velocity(issues []domain.Issue) domain.Velocity {
	var v domain.Velocity
	for _, iss := range issues {
		if iss.State != "closed" {
			continue
		}
		v.Stories++
		if iss.Weight != nil {
			v.Points += float64(*iss.Weight)
		}
	}
	return v
}

// Throughput is the total issue count in the iteration, open or closed.
func Throughput(issues []domain.Issue) int { return len(issues) }

// CycleTime measures in-progress to closure per closed issue.
func CycleTime(issues []domain.Issue) domain.Distribution {
	var durations []time.Duration
	for _, iss := range issues {
		if iss.State != "closed" || iss.ClosedAt == nil || iss.InProgressAt == nil {
			continue
		}
		durations = append(durations, iss.ClosedAt.Sub(*iss.InProgressAt))
	}
	return distribution(durations)
}

// LeadTime measures first-commit to merge per merged change. A change whose
// commit list was unavailable falls back to its creation time as the start
// of the interval.
func LeadTime(mrs []domain.MergeRequest) domain.Distribution {
	var durations []time.Duration
	for _, mr := range mrs {
		if mr.MergedAt == nil {
			continue
		}
		start := mr.CreatedAt
		if first := firstCommitTime(mr.Commits); first != nil {
			start = *first
		}
		durations = append(durations, mr.MergedAt.Sub(start))
	}
	return distribution(durations)
}

func firstCommitTime(commits []domain.Commit) *time.Time {
	var first *time.Time
	for i := range commits {
		ts := commits[i].CommittedDate
		if first == nil || ts.Before(*first) {
			first = &ts
		}
	}
	return first
}

// DeployFrequency counts merged changes as a deployment proxy over the
// iteration length in days, inclusive of both endpoints.
func DeployFrequency(mrs []domain.MergeRequest, start, end time.Time) domain.DeploymentFrequency {
	deployments := 0
	for _, mr := range mrs {
		if mr.MergedAt != nil {
			deployments++
		}
	}
	days := IterationDays(start, end)
	df := domain.DeploymentFrequency{Deployments: deployments, Days: days}
	if days > 0 {
		df.PerDay = float64(deployments) / float64(days)
	}
	return df
}

// IterationDays is ceil((end-start)/day)+1, counting both endpoints.
func IterationDays(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(math.Ceil(end.Sub(start).Hours()/hoursPerDay)) + 1
}

// MeanTimeToRecovery averages actual start to actual end across incidents
// with both endpoints resolved; incidents missing either are excluded, not
// zero-filled.
func MeanTimeToRecovery(incidents []domain.Incident) domain.MTTR {
	var total time.Duration
	m := domain.MTTR{}
	for _, inc := range incidents {
		if inc.ActualStartTime == nil || inc.ActualEndTime == nil {
			m.Excluded++
			continue
		}
		total += inc.ActualEndTime.Sub(*inc.ActualStartTime)
		m.Incidents++
	}
	if m.Incidents > 0 {
		m.AvgHours = total.Hours() / float64(m.Incidents)
	}
	return m
}

// ChangeFailureRate attributes incidents to deployments by resolved change
// date. Zero deployments yields exactly zero, never NaN.
func ChangeFailureRate(incidents []domain.Incident, deployments int, start, end time.Time) domain.ChangeFailureRate {
	failed := 0
	for _, inc := range incidents {
		if inc.ChangeDate == nil {
			continue
		}
		if !inc.ChangeDate.Before(start) && !inc.ChangeDate.After(end) {
			failed++
		}
	}
	cfr := domain.ChangeFailureRate{FailedChanges: failed, Deployments: deployments}
	if deployments > 0 {
		cfr.Percentage = float64(failed) / float64(deployments) * 100
	}
	return cfr
}

// distribution reports avg/p50/p90 in days over a set of durations.
// Percentiles use the nearest-rank method (rank ceil(k/100*n)-1 on the
// ascending sort, no interpolation), so results are order-independent.
func distribution(durations []time.Duration) domain.Distribution {
	d := domain.Distribution{Count: len(durations)}
	if len(durations) == 0 {
		return d
	}
	days := make([]float64, len(durations))
	var sum float64
	for i, dur := range durations {
		days[i] = dur.Hours() / hoursPerDay
		sum += days[i]
	}
	sort.Float64s(days)
	d.AvgDays = sum / float64(len(days))
	d.P50Days = percentile(days, 50)
	d.P90Days = percentile(days, 90)
	return d
}

// percentile expects values sorted ascending.
func percentile(sorted []float64, k int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(float64(k)/100*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
