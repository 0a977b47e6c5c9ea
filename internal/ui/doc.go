// Package ui renders terminal output for the r2k CLI.
//
// Most commands print once and exit using the static components:
//
//   - Header: command banner showing the reader and its link settings
//   - Result: success, failure and warning boxes with details
//   - Steps: numbered step list with a progress bar, used when a profile
//     is applied setting by setting
//   - TagTable: inventory results as a bordered table
//
// Monitor is the one interactive component: a Bubble Tea program that
// keeps issuing inventory rounds and shows every tag seen with its read
// count, signal strength, antenna and channel.
//
// Printer writes the static components to any io.Writer and falls back to
// plain text when the writer is not a terminal.
package ui
