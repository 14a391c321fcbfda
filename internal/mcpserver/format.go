package mcpserver

import (
	"fmt"
	"strings"

	"github.com/jbrache/goose/internal/types"
)

const (
	sourcesHeading  = "Sources:"
	noDocumentsText = "No documents found."
	snippetIndent   = "   "
	researchHeading = "# Research Plan"
	sessionLabel    = "Session: "
)

// FormatAnswer renders an answer followed by its numbered sources.
// Sources appear in the order the backend cited them; without citations
// only the answer text is returned.
func FormatAnswer(result *types.SearchResult) string {
	if result == nil {
		return ""
	}

	var b strings.Builder
	if result.Answer == "" && len(result.SkippedReasons) > 0 {
		fmt.Fprintf(&b, "No answer was generated for this query (%s).", humanizeReasons(result.SkippedReasons))
	} else {
		b.WriteString(result.Answer)
	}

	if len(result.Citations) == 0 {
		return b.String()
	}

	b.WriteString("\n\n")
	b.WriteString(sourcesHeading)
	for i, c := range result.Citations {
		fmt.Fprintf(&b, "\n%d. %s", i+1, citationLine(c))
		if c.Snippet != "" {
			b.WriteString("\n")
			b.WriteString(snippetIndent)
			b.WriteString(c.Snippet)
		}
	}
	return b.String()
}

func citationLine(c types.Citation) string {
	switch {
	case c.Title != "" && c.URI != "" && c.Title != c.URI:
		return c.Title + " - " + c.URI
	case c.Title != "":
		return c.Title
	default:
		return c.URI
	}
}

// humanizeReasons turns ADVERSARIAL_QUERY_IGNORED into "adversarial query ignored".
func humanizeReasons(reasons []string) string {
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		out = append(out, strings.ToLower(strings.ReplaceAll(r, "_", " ")))
	}
	return strings.Join(out, ", ")
}

// FormatDocuments renders a document search result as a numbered list.
func FormatDocuments(result *types.DocumentSearchResult) string {
	if result == nil || len(result.Documents) == 0 {
		return noDocumentsText
	}

	var b strings.Builder
	if result.Summary != "" {
		b.WriteString("Summary: ")
		b.WriteString(result.Summary)
		b.WriteString("\n\n")
	}

	for i, doc := range result.Documents {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, citationLine(types.Citation{Title: doc.Title, URI: doc.URI}))
		for _, s := range doc.Snippets {
			b.WriteString("\n")
			b.WriteString(snippetIndent)
			b.WriteString(s)
		}
		for _, a := range doc.ExtractiveAnswers {
			b.WriteString("\n")
			b.WriteString(snippetIndent)
			b.WriteString("> ")
			b.WriteString(a)
		}
	}

	if result.TotalSize > int64(len(result.Documents)) {
		fmt.Fprintf(&b, "\n\nShowing %d of %d matching documents.", len(result.Documents), result.TotalSize)
	}
	return b.String()
}

// FormatResearch renders deep research replies under a plan heading, one reply
// per line, followed by the session to pass back for a follow-up turn.
func FormatResearch(result *types.ResearchResult) string {
	if result == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(researchHeading)
	b.WriteString("\n")
	if len(result.Replies) == 0 && len(result.SkippedReasons) > 0 {
		fmt.Fprintf(&b, "No research was generated for this query (%s).\n", humanizeReasons(result.SkippedReasons))
	}
	for _, reply := range result.Replies {
		b.WriteString(reply)
		b.WriteString("\n")
	}

	if result.Session != "" {
		b.WriteString("\n")
		b.WriteString(sessionLabel)
		b.WriteString(result.Session)
	}
	return b.String()
}
