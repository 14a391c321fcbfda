package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	alpha "google.golang.org/api/discoveryengine/v1alpha"
	"google.golang.org/api/googleapi"

	"github.com/jbrache/goose/internal/types"
)

const answerGenerationModeResearch = "research"

// streamAssistRequest is the streamAssist body. The generated v1alpha request
// type does not carry answerGenerationMode yet.
type streamAssistRequest struct {
	Query                *alpha.GoogleCloudDiscoveryengineV1alphaQuery `json:"query"`
	Session              string                                        `json:"session,omitempty"`
	AnswerGenerationMode string                                        `json:"answerGenerationMode"`
}

// Research runs one deep research turn and collects every streamed reply.
// The call is never retried; deep research may take minutes.
func (c *Client) Research(ctx context.Context, req types.ResearchRequest) (*types.ResearchResult, error) {
	ctx, span := c.tracer.Start(ctx, "discovery.research", trace.WithAttributes(
		attribute.String("discovery.assistant", AssistantName(c.cfg)),
		attribute.String("agentspace.request_id", req.RequestID),
		attribute.Bool("discovery.session_continued", req.Session != ""),
	))
	defer span.End()

	ctx, cancel := withDeadline(ctx, c.researchTimeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.fail(span, "research", limiterError(ctx, err))
	}

	start := time.Now()
	rows, err := c.doStreamAssist(ctx, req)
	if err != nil {
		return nil, c.fail(span, "research", err)
	}

	result, err := convertResearch(rows)
	if err != nil {
		return nil, c.fail(span, "research", err)
	}

	span.SetAttributes(attribute.Int("discovery.replies", len(result.Replies)))
	c.logger.Debug("research completed",
		zap.String("request_id", req.RequestID),
		zap.Int("replies", len(result.Replies)),
		zap.String("session", result.Session),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// doStreamAssist posts the request and decodes the streamed JSON array.
// The generated StreamAssist call decodes a single object, so the array is read here.
func (c *Client) doStreamAssist(ctx context.Context, req types.ResearchRequest) ([]*alpha.GoogleCloudDiscoveryengineV1alphaStreamAssistResponse, error) {
	body, err := json.Marshal(streamAssistRequest{
		Query:                &alpha.GoogleCloudDiscoveryengineV1alphaQuery{Text: req.Query},
		Session:              req.Session,
		AnswerGenerationMode: answerGenerationModeResearch,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode stream assist request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.assistURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build stream assist request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-User-Project", c.cfg.ProjectID)

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer googleapi.CloseBody(res)
	if err := googleapi.CheckResponse(res); err != nil {
		return nil, err
	}

	var rows []*alpha.GoogleCloudDiscoveryengineV1alphaStreamAssistResponse
	if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
		return nil, malformed("stream assist response: %v", err)
	}
	return rows, nil
}

// convertResearch keeps reply texts in stream order, thoughts included, and
// the last session name the stream reported.
func convertResearch(rows []*alpha.GoogleCloudDiscoveryengineV1alphaStreamAssistResponse) (*types.ResearchResult, error) {
	if len(rows) == 0 {
		return nil, malformed("stream assist returned no responses")
	}

	result := &types.ResearchResult{Replies: []string{}}
	for _, row := range rows {
		if row == nil {
			continue
		}
		if row.SessionInfo != nil && row.SessionInfo.Session != "" {
			result.Session = row.SessionInfo.Session
		}

		answer := row.Answer
		if answer == nil {
			continue
		}
		if answer.State != "" {
			result.State = answer.State
		}
		result.SkippedReasons = append(result.SkippedReasons, answer.AssistSkippedReasons...)
		for _, reply := range answer.Replies {
			if reply == nil || reply.GroundedContent == nil || reply.GroundedContent.Content == nil {
				continue
			}
			if text := reply.GroundedContent.Content.Text; strings.TrimSpace(text) != "" {
				result.Replies = append(result.Replies, text)
			}
		}
	}

	if len(result.Replies) == 0 && len(result.SkippedReasons) == 0 {
		return nil, malformed("stream assist returned no replies")
	}
	return result, nil
}
