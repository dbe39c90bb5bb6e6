// Package server runs the mock GraphQL HTTP server.
//
// A Server binds one address and answers GraphQL requests on the configured
// path with data generated from the schema. Requests never reach a real
// backend. Besides GET and POST it accepts WebSocket subscriptions
// (graphql-transport-ws and the legacy graphql-ws protocol) and serves the
// operation catalog, a health check and Prometheus metrics under
// /__qiufen/.
//
// Errors that concern a single request are reported in the response
// envelope with HTTP 200; only unreadable bodies get a 400.
package server
