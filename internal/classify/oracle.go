package classify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	// ErrNotConfigured indicates the oracle client is not configured
	ErrNotConfigured = errors.New("classification oracle not configured")
	// ErrAPICallFailed indicates the oracle API call failed
	ErrAPICallFailed = errors.New("oracle API call failed")
	// ErrInvalidResponse indicates an invalid response from the oracle API
	ErrInvalidResponse = errors.New("invalid oracle API response")
)

// Provider represents an oracle API provider
type Provider string

const (
	// ProviderOpenAI represents the OpenAI API
	ProviderOpenAI Provider = "openai"
	// ProviderGroq represents the Groq API (OpenAI-compatible)
	ProviderGroq Provider = "groq"
	// ProviderClaude represents the Anthropic Claude API
	ProviderClaude Provider = "claude"
	// ProviderCustom represents a custom OpenAI-compatible endpoint
	ProviderCustom Provider = "custom"
)

// bodyPrefixLimit bounds how much message body is sent to the oracle.
// The full body always stays in storage; truncation happens only here.
const bodyPrefixLimit = 1000

// Oracle handles classification and reply-generation calls to the
// language-model provider. A hung call is bounded by the HTTP client
// timeout and surfaces as a failure.
type Oracle struct {
	provider   Provider
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	configured bool
}

// NewOracle creates a new Oracle instance
func NewOracle() *Oracle {
	return &Oracle{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Configure configures the oracle with provider settings. An empty baseURL
// selects the provider's default endpoint.
func (o *Oracle) Configure(provider, apiKey, model, baseURL string) {
	o.provider = Provider(strings.ToLower(provider))
	o.apiKey = apiKey
	o.model = model
	o.configured = apiKey != ""

	if baseURL != "" {
		o.baseURL = strings.TrimSuffix(baseURL, "/")
		return
	}

	switch o.provider {
	case ProviderGroq:
		o.baseURL = "https://api.groq.com/openai/v1"
		if o.model == "" {
			o.model = "llama-3.3-70b-versatile"
		}
	case ProviderClaude:
		o.baseURL = "https://api.anthropic.com/v1"
		if o.model == "" {
			o.model = "claude-3-haiku-20240307"
		}
	case ProviderOpenAI:
		o.baseURL = "https://api.openai.com/v1"
		if o.model == "" {
			o.model = "gpt-4o-mini"
		}
	default:
		o.provider = ProviderOpenAI
		o.baseURL = "https://api.openai.com/v1"
		if o.model == "" {
			o.model = "gpt-4o-mini"
		}
	}
}

// IsConfigured returns whether the oracle is configured
func (o *Oracle) IsConfigured() bool {
	return o.configured && o.apiKey != ""
}

// ChatMessage represents a message in a chat conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a chat completion request
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// sendChatRequest sends a chat completion request to the oracle API
func (o *Oracle) sendChatRequest(messages []ChatMessage, maxTokens int, temperature float64) (string, error) {
	if !o.IsConfigured() {
		return "", ErrNotConfigured
	}

	request := ChatRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}

	url := o.baseURL + "/chat/completions"
	req, err := http.NewRequest("POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}

	req.Header.Set("Content-Type", "application/json")

	switch o.provider {
	case ProviderClaude:
		req.Header.Set("x-api-key", o.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")
	default:
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrAPICallFailed, resp.StatusCode, string(respBody))
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrAPICallFailed, chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", ErrInvalidResponse
	}

	return chatResp.Choices[0].Message.Content, nil
}

// Classify asks the oracle to place an email into the closed label set and
// returns the raw free-text answer. Callers pass the result through
// NormalizeLabel; there is no guarantee the output is a valid label.
func (o *Oracle) Classify(fromName, fromAddr, subject, body string) (string, error) {
	if len(body) > bodyPrefixLimit {
		// Back off to a rune boundary so the cut never splits a multi-byte
		// character.
		cut := bodyPrefixLimit
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}

	prompt := fmt.Sprintf(`Analyze the following email and categorize it into ONE of these categories:
- Interested: The sender shows interest in a product/service/meeting
- Not Interested: The sender explicitly declines or shows no interest
- Meeting Booked: A meeting has been scheduled
- Meeting Completed: A meeting has been completed
- Spam: Promotional, unsolicited, or irrelevant content
- Closed: The conversation or deal is closed

Email Details:
From: %s <%s>
Subject: %s
Body: %s

Respond with ONLY the category name, nothing else.`, fromName, fromAddr, subject, body)

	messages := []ChatMessage{
		{
			Role:    "system",
			Content: "You are a professional email categorization assistant. Respond with only the category name.",
		},
		{
			Role:    "user",
			Content: prompt,
		},
	}

	response, err := o.sendChatRequest(messages, 50, 0.3)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(response), nil
}

// SuggestReply asks the generation oracle for a professional reply to the
// given email body. This sits outside the ingestion hot path.
func (o *Oracle) SuggestReply(emailBody string) (string, error) {
	if emailBody == "" {
		return "", ErrInvalidResponse
	}

	prompt := fmt.Sprintf(`You are a helpful email assistant. Generate a professional and contextual reply to the following email.

Email to reply to:
%s

Generate a professional reply:`, emailBody)

	messages := []ChatMessage{
		{
			Role:    "system",
			Content: "You are a professional email assistant that generates helpful, contextual replies.",
		},
		{
			Role:    "user",
			Content: prompt,
		},
	}

	response, err := o.sendChatRequest(messages, 300, 0.7)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(response), nil
}
