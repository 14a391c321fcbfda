package discovery

import (
	"encoding/json"
	"html"
	"strconv"
	"strings"

	"google.golang.org/api/discoveryengine/v1"

	"github.com/jbrache/goose/internal/types"
)

const maxSnippetRunes = 300

var highlightReplacer = strings.NewReplacer("<b>", "", "</b>", "", "<em>", "", "</em>", "")

// convertAnswer extracts the answer text and the cited references in order of first citation.
func convertAnswer(resp *discoveryengine.GoogleCloudDiscoveryengineV1AnswerQueryResponse) (*types.SearchResult, error) {
	if resp == nil || resp.Answer == nil {
		return nil, malformed("answer is missing")
	}
	answer := resp.Answer

	result := &types.SearchResult{
		Answer:         strings.TrimSpace(answer.AnswerText),
		SkippedReasons: answer.AnswerSkippedReasons,
		Citations:      []types.Citation{},
	}
	if result.Answer == "" && len(result.SkippedReasons) == 0 {
		return nil, malformed("answer text is empty")
	}

	seen := make(map[int]bool)
	for _, citation := range answer.Citations {
		if citation == nil {
			continue
		}
		for _, source := range citation.Sources {
			if source == nil {
				continue
			}
			idx, err := strconv.Atoi(source.ReferenceId)
			if err != nil || idx < 0 || idx >= len(answer.References) {
				return nil, malformed("citation references unknown source %q", source.ReferenceId)
			}
			if seen[idx] {
				continue
			}
			seen[idx] = true

			c, ok, err := referenceToCitation(answer.References[idx])
			if err != nil {
				return nil, err
			}
			if ok {
				result.Citations = append(result.Citations, c)
			}
		}
	}

	return result, nil
}

func referenceToCitation(ref *discoveryengine.GoogleCloudDiscoveryengineV1AnswerReference) (types.Citation, bool, error) {
	if ref == nil {
		return types.Citation{}, false, nil
	}

	var c types.Citation
	switch {
	case ref.UnstructuredDocumentInfo != nil:
		info := ref.UnstructuredDocumentInfo
		c.Title = firstNonEmpty(info.Title, info.Uri, info.Document)
		c.URI = info.Uri
		for _, chunk := range info.ChunkContents {
			if chunk != nil && strings.TrimSpace(chunk.Content) != "" {
				c.Snippet = chunk.Content
				break
			}
		}
	case ref.ChunkInfo != nil:
		info := ref.ChunkInfo
		if meta := info.DocumentMetadata; meta != nil {
			c.Title = firstNonEmpty(meta.Title, meta.Uri, meta.Document)
			c.URI = meta.Uri
		}
		if c.Title == "" {
			c.Title = info.Chunk
		}
		c.Snippet = info.Content
	case ref.StructuredDocumentInfo != nil:
		info := ref.StructuredDocumentInfo
		fields, err := decodeStructFields(info.StructData)
		if err != nil {
			return types.Citation{}, false, malformed("reference %s has invalid struct data: %v", info.Document, err)
		}
		c.Title = firstNonEmpty(info.Title, fields.Title, info.Document)
		c.URI = firstNonEmpty(info.Uri, fields.Link)
	default:
		return types.Citation{}, false, nil
	}

	c.Snippet = cleanSnippet(c.Snippet)
	return c, c.Title != "" || c.URI != "", nil
}

// derivedData is the subset of derivedStructData used for unstructured documents
type derivedData struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippets []struct {
		Snippet string `json:"snippet"`
	} `json:"snippets"`
	ExtractiveAnswers []struct {
		Content string `json:"content"`
	} `json:"extractive_answers"`
}

func decodeStructFields(raw []byte) (derivedData, error) {
	var data derivedData
	if len(raw) == 0 {
		return data, nil
	}
	err := json.Unmarshal(raw, &data)
	return data, err
}

// convertSearch maps ranked results to documents.
func convertSearch(resp *discoveryengine.GoogleCloudDiscoveryengineV1SearchResponse) (*types.DocumentSearchResult, error) {
	if resp == nil {
		return nil, malformed("search response is missing")
	}

	result := &types.DocumentSearchResult{
		Documents: make([]types.DocumentResult, 0, len(resp.Results)),
		TotalSize: resp.TotalSize,
	}
	if resp.Summary != nil {
		result.Summary = strings.TrimSpace(resp.Summary.SummaryText)
	}

	for _, item := range resp.Results {
		if item == nil || item.Document == nil {
			continue
		}
		doc := item.Document

		data, err := decodeStructFields(doc.DerivedStructData)
		if err != nil {
			return nil, malformed("document %s has invalid derived data: %v", doc.Id, err)
		}

		out := types.DocumentResult{
			ID:    firstNonEmpty(item.Id, doc.Id),
			Title: firstNonEmpty(data.Title, data.Link, doc.Id, doc.Name),
			URI:   data.Link,
		}
		for _, s := range data.Snippets {
			if snippet := cleanSnippet(s.Snippet); snippet != "" {
				out.Snippets = append(out.Snippets, snippet)
			}
		}
		for _, a := range data.ExtractiveAnswers {
			if content := cleanSnippet(a.Content); content != "" {
				out.ExtractiveAnswers = append(out.ExtractiveAnswers, content)
			}
		}
		result.Documents = append(result.Documents, out)
	}

	return result, nil
}

// cleanSnippet strips highlight markup, collapses whitespace and bounds the length.
func cleanSnippet(s string) string {
	s = html.UnescapeString(highlightReplacer.Replace(s))
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > maxSnippetRunes {
		return string(runes[:maxSnippetRunes]) + "..."
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
