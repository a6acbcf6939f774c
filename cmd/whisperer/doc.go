// Package main hosts the whisperer CLI.
//
// The cobra command tree loads configuration once per invocation, builds a
// logger from it, and hands off to the runner for feed polling and episode
// processing. Maintenance commands (resolve, reprocess, status) work against
// the same on-disk layout without touching subscribers.
package main
