// Package http exposes the PapersLight action endpoint.
//
// The router serves:
//   - GET|POST <endpoint> (default /request): the action dispatcher. The action
//     is taken from the `action` query parameter and its arguments from the
//     form-encoded POST body. Recognized actions are init, adminlogin, logout,
//     gettypes, getpapers, addpaper, removepaper and getstats. Requests without
//     an action, with an unknown action, or with a missing required parameter
//     produce an empty body and no Content-Type; the session is still saved.
//   - GET /healthz: {"status":"ok"} once storage answers a ping.
//   - GET /metrics: Prometheus exposition.
//
// Result payloads are the application result types encoded as JSON.
package http
