// Package ui renders the plain (non-dashboard) CLI output: tables, status
// symbols, sparklines, a one-line spinner and the interactive device picker.
//
// Colors are ANSI codes so the output follows the terminal's own palette.
// DisableColors switches everything to plain text for --no-color and pipes.
package ui
