package gitlab

const queryGroupIterations = `
query($fullPath: ID!, $after: String) {
  group(fullPath: $fullPath) {
    iterations(first: 100, after: $after) {
      pageInfo { hasNextPage endCursor }
      nodes { id title startDate dueDate }
    }
  }
}`

const queryIterationIssues = `
query($fullPath: ID!, $iterationId: [ID!], $first: Int, $notesFirst: Int, $after: String) {
  group(fullPath: $fullPath) {
    issues(iterationId: $iterationId, types: [ISSUE], includeSubgroups: true, first: $first, after: $after) {
      pageInfo { hasNextPage endCursor }
      nodes {
        id iid title state weight createdAt closedAt webUrl
        labels { nodes { title } }
        assignees { nodes { username } }
        notes(first: $notesFirst) {
          pageInfo { hasNextPage endCursor }
          nodes { id body system createdAt }
        }
      }
    }
  }
}`

const queryIssueNotes = `
query($fullPath: ID!, $iid: String!, $after: String) {
  project(fullPath: $fullPath) {
    issue(iid: $iid) {
      notes(first: 100, after: $after) {
        pageInfo { hasNextPage endCursor }
        nodes { id body system createdAt }
      }
    }
  }
}`

const queryMergedMergeRequests = `
query($fullPath: ID!, $mergedAfter: Time, $mergedBefore: Time, $after: String) {
  group(fullPath: $fullPath) {
    mergeRequests(state: merged, mergedAfter: $mergedAfter, mergedBefore: $mergedBefore, includeSubgroups: true, first: 100, after: $after) {
      pageInfo { hasNextPage endCursor }
      nodes {
        id iid title state createdAt mergedAt sourceBranch targetBranch
        project { fullPath }
        commits(first: 100) { nodes { sha title committedDate } }
      }
    }
  }
}`

const queryMergeRequest = `
query($fullPath: ID!, $iid: String!) {
  project(fullPath: $fullPath) {
    mergeRequest(iid: $iid) {
      id iid title state createdAt mergedAt sourceBranch targetBranch
    }
  }
}`

const queryCommit = `
query($fullPath: ID!, $sha: String!) {
  project(fullPath: $fullPath) {
    repository {
      commit(sha: $sha) { sha title committedDate }
    }
  }
}`

const queryIncidents = `
query($fullPath: ID!, $createdAfter: Time, $createdBefore: Time, $after: String) {
  group(fullPath: $fullPath) {
    issues(types: [INCIDENT], createdAfter: $createdAfter, createdBefore: $createdBefore, includeSubgroups: true, first: 100, after: $after) {
      pageInfo { hasNextPage endCursor }
      nodes {
        id iid title state createdAt closedAt updatedAt webUrl
        labels { nodes { title } }
      }
    }
  }
}`

const queryTimelineEvents = `
query($fullPath: ID!, $incidentId: IssueID!, $after: String) {
  project(fullPath: $fullPath) {
    incidentManagementTimelineEvents(incidentId: $incidentId, first: 100, after: $after) {
      pageInfo { hasNextPage endCursor }
      nodes {
        occurredAt note
        timelineEventTags { nodes { name } }
      }
    }
  }
}`

const queryGroupProjects = `
query($fullPath: ID!, $after: String) {
  group(fullPath: $fullPath) {
    projects(includeSubgroups: true, first: 100, after: $after) {
      pageInfo { hasNextPage endCursor }
      nodes { id fullPath name }
    }
  }
}`
