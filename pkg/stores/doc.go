// Package stores persists convergence reports in SQLite.
//
// The store keeps one row per report plus one row per evaluated resource
// and per recorded event, so past passes can be listed and replayed
// without the agent process that produced them. Schema changes are
// applied with embedded golang-migrate migrations on startup.
package stores
