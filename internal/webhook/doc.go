// Package webhook exposes the notification endpoint that feeds changesets
// into the sync orchestrator.
//
// Routes mount under the configured path (default /hooks/content):
//   - POST {path}: GitHub push payloads (X-GitHub-Event: push) or generic
//     notifications; answers 202 with the changeset summary
//   - GET {path}/jobs/{id}: status of a deferred changeset
//
// Host applications register the routes on their own mux.
package webhook
