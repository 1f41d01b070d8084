// Package report renders contract scan results.
//
// Writers for the supported output formats:
//   - SimpleWriter: terminal output with optional colour per severity
//   - MarkdownWriter: GitHub Flavored Markdown with tables and a pie chart
//   - JSONWriter: the full report for tool integration
//
// FileSaver stores the JSON report of every completed scan under the
// reports directory, replacing files atomically.
package report
