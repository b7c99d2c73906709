// Command aplose administers an aplose installation.
//
// It works on the SQLite database directly, so most commands are safe to run
// while aplosed is serving: schema migrations, user and token management,
// campaign and task listings, news publishing, and detector result imports.
// "aplose status" combines the preflight checks with task counts.
package main
