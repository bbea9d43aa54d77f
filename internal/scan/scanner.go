package scan

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const instruction = "Analyze this book cover image. Extract the book title, author, " +
	"genre, a 2-sentence summary, and the ISBN if visible. Judge the physical " +
	"condition (New, Good, Vintage or Worn) when the photo allows it. " +
	"Reply with a JSON object holding title, author, genre, summary and " +
	"optionally isbn, condition and conditionNote."

// Result is what the vision engine read off a book cover. Title, author,
// genre and summary are required by the engine contract; the rest is
// optional and may be blank.
type Result struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	Isbn          string `json:"isbn"`
	Genre         string `json:"genre"`
	Summary       string `json:"summary"`
	Condition     string `json:"condition"`
	ConditionNote string `json:"conditionNote"`
}

type Scanner struct {
	client *openai.Client
	model  string
	l      *slog.Logger
}

func NewScanner(client *openai.Client, model string, l *slog.Logger) *Scanner {
	return &Scanner{client: client, model: model, l: l}
}

// Identify sends the raw image to the vision engine and decodes its JSON
// reply. The reply is untrusted: unknown fields are ignored and a body that
// is not a JSON object is an error for the caller to absorb.
func (s *Scanner) Identify(ctx context.Context, image []byte) (*Result, error) {
	mime := http.DetectContentType(image)
	dataUrl := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataUrl},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: instruction,
					},
				},
			},
		},
	})
	if err != nil {
		s.l.Error("Vision engine call failed: " + err.Error())
		return nil, fmt.Errorf("calling vision engine: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("vision engine returned no choices")
	}

	result, err := decodeResult(resp.Choices[0].Message.Content)
	if err != nil {
		s.l.Error("Failed to decode vision engine reply: " + err.Error())
		return nil, fmt.Errorf("decoding vision engine reply: %w", err)
	}

	return result, nil
}

func decodeResult(body string) (*Result, error) {
	text := strings.TrimSpace(body)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var result Result
	err := json.Unmarshal([]byte(strings.TrimSpace(text)), &result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}
