package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mindpal-api/internal/service"
)

// Client is a client for an OpenAI-compatible chat completions API, used as
// the external text generator for split generation. It implements
// service.SplitClient.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	client  *http.Client
}

var _ service.SplitClient = (*Client)(nil)

// NewClient creates a new LLM client.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		client:  http.DefaultClient,
	}
}

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents the request payload for chat completions.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

// ChatChoiceMessage represents the message in a chat choice.
type ChatChoiceMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatChoice represents a single choice in the chat response.
type ChatChoice struct {
	Index        int               `json:"index"`
	Message      ChatChoiceMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

// ChatResponse represents the response from the chat completions API.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Choices []ChatChoice `json:"choices"`
}

// complete sends one chat completion request and returns the reply text.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf("%s/v1/chat/completions", c.BaseURL)

	payload := ChatRequest{
		Model: c.Model,
		Messages: []ChatMessage{
			{
				Role:    "user",
				Content: prompt,
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// inferPromptLimit caps how much note content is sent for category analysis.
const inferPromptLimit = 2000

// InferCategories asks the model to suggest 4-7 category labels for the note.
// Short answers are padded with "Additional Notes" and long answers truncated
// so the result always has 4-7 entries.
func (c *Client) InferCategories(ctx context.Context, content string) ([]string, error) {
	excerpt := content
	if len(excerpt) > inferPromptLimit {
		excerpt = excerpt[:inferPromptLimit]
	}

	prompt := fmt.Sprintf(`You are assisting a psychologist in organizing clinical notes.

Analyze the following conceptualization note and suggest 4-7 appropriate categories
for organizing this information into separate files:

---
%s
---

Return ONLY a JSON array of category names, nothing else. Example:
["Background", "Presenting Problem", "Symptoms", "Treatment Plan"]

Categories should be:
- Clinically relevant
- Distinct from each other
- Cover the main themes in the note
- Use professional terminology
`, excerpt)

	reply, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var raw []string
	if err := json.Unmarshal([]byte(stripCodeFences(reply)), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse categories: %w", err)
	}

	categories := make([]string, 0, len(raw))
	for _, c := range raw {
		if c != "" {
			categories = append(categories, c)
		}
	}

	for len(categories) < 4 {
		categories = append(categories, "Additional Notes")
	}
	if len(categories) > 7 {
		categories = categories[:7]
	}

	return categories, nil
}

// splitEntry is the wire shape of one generated split file.
type splitEntry struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// GenerateDocuments asks the model for one markdown document per category.
// Entries are returned as received; the caller repairs missing or malformed
// ones. An unparsable reply is an error.
func (c *Client) GenerateDocuments(ctx context.Context, content string, categories []string) ([]service.SplitDocument, error) {
	var list strings.Builder
	for _, cat := range categories {
		list.WriteString("- ")
		list.WriteString(cat)
		list.WriteString("\n")
	}

	prompt := fmt.Sprintf(`You are assisting a psychologist in organizing clinical notes.

Given the following conceptualization note from a patient's initial session:

---
%s
---

Please generate %d separate clinical note files based on these categories:
%s
For each category, extract and organize the relevant information from the conceptualization note.

IMPORTANT GUIDELINES:
- Use markdown formatting
- Be thorough but concise
- Only include information actually present in the source note
- If a category has no relevant information, create a brief placeholder stating "No information available for this category yet."
- Maintain professional clinical language
- Preserve any important patient quotes or observations
- Include relevant dates, names, or specific details

Return your response as a JSON array with this EXACT structure:
[
  {
    "title": "Category Name",
    "content": "# Category Name\n\nMarkdown content here..."
  },
  ...
]

Return ONLY the JSON array, no additional text before or after.
`, content, len(categories), list.String())

	reply, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var entries []splitEntry
	if err := json.Unmarshal([]byte(stripCodeFences(reply)), &entries); err != nil {
		return nil, fmt.Errorf("failed to parse split documents: %w", err)
	}

	docs := make([]service.SplitDocument, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, service.SplitDocument{Title: e.Title, Content: e.Content})
	}
	return docs, nil
}

// stripCodeFences removes a surrounding markdown code block, which models
// frequently wrap JSON answers in despite instructions.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
