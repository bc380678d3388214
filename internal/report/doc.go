// Package report renders scan reports.
//
//   - SimpleWriter: nmap style text for the terminal
//   - JSONWriter and FullJSONWriter: structured JSON for tools
//   - MarkdownWriter: Markdown built with github.com/nao1215/markdown
//
// Writers implement the Writer interface, so the CLI picks one per run
// from the requested format.
package report
