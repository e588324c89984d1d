/* Copyright (c) 2025 Brad Jones
 * SPDX-License-Identifier: BSD-3-Clause */
package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/bradnjones/gitlab-metrics-tracker-sub002/internal/domain"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tsp(s string) *time.Time {
	t := ts(s)
	return &t
}

func intp(v int) *int { return &v }

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestVelocityAndThroughput(t *testing.T) {
	issues := []domain.Issue{
		{State: "closed", Weight: intp(3)},
		{State: "closed", Weight: intp(5)},
		{State: "opened", Weight: intp(2)},
	}
	v := Velocity(issues)
	if v.Points != 8 {
		t.Errorf("points = %v, want 8", v.Points)
	}
	if v.Stories != 2 {
		t.Errorf("stories = %d, want 2", v.Stories)
	}
	if got := Throughput(issues); got != 3 {
		t.Errorf("throughput = %d, want 3 (open and closed both count)", got)
	}
}

func TestVelocityMissingWeight(t *testing.T) {
	issues := []domain.Issue{
		{State: "closed", Weight: nil},
		{State: "closed", Weight: intp(4)},
	}
	v := Velocity(issues)
	if v.Points != 4 {
		t.Errorf("points = %v, want 4 (nil weight counts as zero)", v.Points)
	}
	if v.Stories != 2 {
		t.Errorf("stories = %d, want 2 (nil weight still counts the story)", v.Stories)
	}
}

func TestCycleTime(t *testing.T) {
	issues := []domain.Issue{
		{State: "closed", InProgressAt: tsp("2025-03-02T10:00:00Z"), ClosedAt: tsp("2025-03-05T10:00:00Z")},
		{State: "closed", InProgressAt: tsp("2025-03-01T08:00:00Z"), ClosedAt: tsp("2025-03-06T08:00:00Z")},
		{State: "opened", InProgressAt: nil, ClosedAt: nil},
		{State: "closed", InProgressAt: nil, ClosedAt: tsp("2025-03-06T08:00:00Z")},
	}
	d := CycleTime(issues)
	if d.Count != 2 {
		t.Fatalf("count = %d, want 2", d.Count)
	}
	if !almostEqual(d.AvgDays, 4) {
		t.Errorf("avg = %v, want 4 days", d.AvgDays)
	}
}

func TestLeadTimeFirstCommitToMerge(t *testing.T) {
	mrs := []domain.MergeRequest{
		{
			CreatedAt: ts("2025-03-03T00:00:00Z"),
			MergedAt:  tsp("2025-03-05T00:00:00Z"),
			Commits: []domain.Commit{
				{SHA: "b", CommittedDate: ts("2025-03-02T00:00:00Z")},
				{SHA: "a", CommittedDate: ts("2025-03-01T00:00:00Z")},
			},
		},
	}
	d := LeadTime(mrs)
	if d.Count != 1 {
		t.Fatalf("count = %d, want 1", d.Count)
	}
	if !almostEqual(d.AvgDays, 4) {
		t.Errorf("avg = %v, want 4 days (earliest commit to merge)", d.AvgDays)
	}
}

func TestLeadTimeCreatedAtFallback(t *testing.T) {
	mrs := []domain.MergeRequest{
		{CreatedAt: ts("2025-03-01T00:00:00Z"), MergedAt: tsp("2025-03-03T00:00:00Z")},
		{CreatedAt: ts("2025-03-01T00:00:00Z"), MergedAt: nil},
	}
	d := LeadTime(mrs)
	if d.Count != 1 {
		t.Fatalf("count = %d, want 1 (unmerged excluded)", d.Count)
	}
	if !almostEqual(d.AvgDays, 2) {
		t.Errorf("avg = %v, want 2 days from CreatedAt", d.AvgDays)
	}
}

func TestIterationDays(t *testing.T) {
	cases := []struct {
		start, end string
		want       int
	}{
		{"2025-03-01T00:00:00Z", "2025-03-14T00:00:00Z", 14},
		{"2025-03-01T00:00:00Z", "2025-03-01T00:00:00Z", 1},
		{"2025-03-01T00:00:00Z", "2025-03-14T23:59:59Z", 15},
		{"2025-03-14T00:00:00Z", "2025-03-01T00:00:00Z", 0},
	}
	for _, tc := range cases {
		if got := IterationDays(ts(tc.start), ts(tc.end)); got != tc.want {
			t.Errorf("IterationDays(%s, %s) = %d, want %d", tc.start, tc.end, got, tc.want)
		}
	}
}

func TestDeployFrequency(t *testing.T) {
	mrs := []domain.MergeRequest{
		{MergedAt: tsp("2025-03-05T12:00:00Z")},
		{MergedAt: nil},
	}
	df := DeployFrequency(mrs, ts("2025-03-01T00:00:00Z"), ts("2025-03-14T00:00:00Z"))
	if df.Deployments != 1 {
		t.Errorf("deployments = %d, want 1", df.Deployments)
	}
	if df.Days != 14 {
		t.Errorf("days = %d, want 14", df.Days)
	}
	if !almostEqual(df.PerDay, 1.0/14.0) {
		t.Errorf("per day = %v, want 1/14", df.PerDay)
	}
}

func TestMeanTimeToRecoveryExcludesIncomplete(t *testing.T) {
	incidents := []domain.Incident{
		{ActualStartTime: tsp("2025-03-05T14:00:00Z"), ActualEndTime: tsp("2025-03-05T18:00:00Z")},
		{ActualStartTime: tsp("2025-03-07T10:00:00Z"), ActualEndTime: nil},
		{ActualStartTime: nil, ActualEndTime: nil},
	}
	m := MeanTimeToRecovery(incidents)
	if m.Incidents != 1 {
		t.Errorf("incidents = %d, want 1", m.Incidents)
	}
	if m.Excluded != 2 {
		t.Errorf("excluded = %d, want 2", m.Excluded)
	}
	if !almostEqual(m.AvgHours, 4) {
		t.Errorf("avg hours = %v, want 4", m.AvgHours)
	}
}

func TestMeanTimeToRecoveryEmpty(t *testing.T) {
	m := MeanTimeToRecovery(nil)
	if m.AvgHours != 0 || m.Incidents != 0 || m.Excluded != 0 {
		t.Errorf("got %+v, want all zero", m)
	}
}

func TestChangeFailureRate(t *testing.T) {
	start := ts("2025-03-01T00:00:00Z")
	end := ts("2025-03-14T23:59:59Z")
	incidents := []domain.Incident{
		{ChangeDate: tsp("2025-03-05T13:58:00Z")},
		{ChangeDate: tsp("2025-02-01T00:00:00Z")},
		{ChangeDate: nil},
	}
	cfr := ChangeFailureRate(incidents, 4, start, end)
	if cfr.FailedChanges != 1 {
		t.Errorf("failed changes = %d, want 1", cfr.FailedChanges)
	}
	if !almostEqual(cfr.Percentage, 25) {
		t.Errorf("percentage = %v, want 25", cfr.Percentage)
	}
}

func TestChangeFailureRateZeroDeployments(t *testing.T) {
	incidents := []domain.Incident{{ChangeDate: tsp("2025-03-05T00:00:00Z")}}
	cfr := ChangeFailureRate(incidents, 0, ts("2025-03-01T00:00:00Z"), ts("2025-03-14T00:00:00Z"))
	if cfr.Percentage != 0 {
		t.Errorf("percentage = %v, want exactly 0 with no deployments", cfr.Percentage)
	}
	if math.IsNaN(cfr.Percentage) || math.IsInf(cfr.Percentage, 0) {
		t.Error("percentage must stay finite with no deployments")
	}
}

func TestPercentileNearestRank(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(sorted, 50); got != 5 {
		t.Errorf("p50 = %v, want 5", got)
	}
	if got := percentile(sorted, 90); got != 9 {
		t.Errorf("p90 = %v, want 9", got)
	}
	if got := percentile([]float64{42}, 90); got != 42 {
		t.Errorf("single-value p90 = %v, want 42", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("empty p50 = %v, want 0", got)
	}
}

func TestDistributionOrderIndependent(t *testing.T) {
	mk := func(hours ...int) []time.Duration {
		out := make([]time.Duration, len(hours))
		for i, h := range hours {
			out[i] = time.Duration(h) * time.Hour
		}
		return out
	}
	a := distribution(mk(24, 48, 72, 96, 120))
	b := distribution(mk(96, 24, 120, 48, 72))
	if a != b {
		t.Errorf("distribution depends on input order: %+v vs %+v", a, b)
	}
	if !almostEqual(a.AvgDays, 3) || !almostEqual(a.P50Days, 3) || !almostEqual(a.P90Days, 5) {
		t.Errorf("got %+v, want avg 3 / p50 3 / p90 5", a)
	}
}
