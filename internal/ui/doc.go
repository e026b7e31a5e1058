// Package ui styles the terminal output of the login, status, and init commands with lipgloss.
//
// Serve mode never renders through this package: stdout is the RPC channel there.
package ui
