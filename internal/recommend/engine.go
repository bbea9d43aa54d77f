package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"biblioswap/internal/types"
)

// Suggestion is one element of the engine's reply. The reply is untrusted
// structured input: extra fields are ignored and missing optional fields
// tolerated; ids are validated later by the resolver.
type Suggestion struct {
	BookId     string `json:"bookId"`
	Reason     string `json:"reason"`
	SourceType string `json:"sourceType"`
}

type Request struct {
	Context        string
	HistorySummary string
	Candidates     []*types.Book
	OwnedTitles    []string
	Limit          int
}

type Engine interface {
	Suggest(ctx context.Context, req *Request) ([]Suggestion, error)
}

func NewOpenAIEngine(client *openai.Client, model string, l *slog.Logger) Engine {
	return &openAIEngine{client: client, model: model, l: l}
}

type openAIEngine struct {
	client *openai.Client
	model  string
	l      *slog.Logger
}

func (e *openAIEngine) Suggest(ctx context.Context, req *Request) ([]Suggestion, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		e.l.Error("Suggestion engine call failed: " + err.Error())
		return nil, fmt.Errorf("calling suggestion engine: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("suggestion engine returned no choices")
	}

	suggestions, err := decodeSuggestions([]byte(resp.Choices[0].Message.Content))
	if err != nil {
		e.l.Error("Failed to decode suggestion engine reply: " + err.Error())
		return nil, fmt.Errorf("decoding suggestion engine reply: %w", err)
	}

	return suggestions, nil
}

func buildPrompt(req *Request) string {
	candidates := make([]string, 0, len(req.Candidates))
	for _, b := range req.Candidates {
		candidates = append(candidates, b.Title+" by "+b.Author+" (ID: "+b.Id+")")
	}

	sb := strings.Builder{}
	sb.WriteString("You are the librarian for a gated-community book-sharing circle.\n\n")
	sb.WriteString("CONTEXT (relevant shelves by genre):\n")
	sb.WriteString(req.Context)
	sb.WriteString("\n\nRESIDENT READING HISTORY:\n")
	sb.WriteString(req.HistorySummary)
	sb.WriteString("\n\nTASK:\nFrom the real books listed below, select the top ")
	sb.WriteString(fmt.Sprint(req.Limit))
	sb.WriteString(" that best match the resident's genres and interests.\n")

	if len(req.OwnedTitles) > 0 {
		sb.WriteString("Never recommend a title the resident already owns: ")
		sb.WriteString(strings.Join(req.OwnedTitles, ", "))
		sb.WriteString(".\n")
	}

	sb.WriteString("\nBOOKS AVAILABLE IN THE NEIGHBORHOOD:\n[")
	sb.WriteString(strings.Join(candidates, ", "))
	sb.WriteString("]\n\n")
	sb.WriteString(`Reply with JSON: {"recommendations": [{"bookId": "...", ` +
		`"reason": "why it fits", "sourceType": "neighbor" or "catalog"}]}`)

	return sb.String()
}

// decodeSuggestions accepts either the requested wrapper object or a bare
// array, with or without markdown fences.
func decodeSuggestions(body []byte) ([]Suggestion, error) {
	text := strings.TrimSpace(string(body))
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var wrapper struct {
		Recommendations []Suggestion `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(text), &wrapper); err == nil && wrapper.Recommendations != nil {
		return wrapper.Recommendations, nil
	}

	var suggestions []Suggestion
	if err := json.Unmarshal([]byte(text), &suggestions); err != nil {
		return nil, err
	}

	return suggestions, nil
}
