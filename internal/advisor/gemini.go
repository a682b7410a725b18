// Package advisor talks to the Gemini API for the spending coach. The
// coach is advisory only; nothing here can touch the ledger, and every
// failure mode degrades to a canned answer instead of an error.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent"

// FallbackResponse is returned when the model is unreachable and the
// prompt carries no usable context numbers.
const FallbackResponse = "I can give guidance, but I can't finalize spending decisions. " +
	"Check your available cash and EXP, prioritize essentials, and consider waiting if this purchase " +
	"reduces your buffer."

const promptPreamble = "You are the in-app Spending Coach for a gamified budgeting app.\n" +
	"You MUST use only APP_CONTEXT below.\n" +
	"If information is missing, ask ONE clarifying question.\n" +
	"Do NOT guess numbers.\n" +
	"Do NOT output JSON, code, or mention endpoints/DB/tokens/variables.\n" +
	"You are advisory-only: never approve purchases or change balances.\n" +
	"Keep replies under 4 sentences.\n" +
	"You MUST reference at least one number from APP_CONTEXT in your answer.\n\n"

// BuildPrompt wraps the serialized advisory context and the user's
// message in the coach preamble.
func BuildPrompt(contextJSON []byte, userMessage string) string {
	return promptPreamble +
		"APP_CONTEXT:\n" + string(contextJSON) + "\n\n" +
		"USER_MESSAGE:\n" + userMessage
}

type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// NewClient builds a Gemini client. An empty apiKey is allowed; Chat
// then answers from the prompt's own context numbers. An empty baseURL
// uses the public API endpoint.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiKey:     apiKey,
		baseURL:    baseURL,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Chat sends the prompt to the model and returns its answer. It never
// returns an error: missing key, transport failure, bad status and
// unparseable bodies all degrade to a fallback answer.
func (c *Client) Chat(ctx context.Context, prompt string) string {
	if c.apiKey == "" {
		return offlineAnswer(prompt)
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return FallbackResponse
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"?key="+c.apiKey, bytes.NewReader(body))
	if err != nil {
		return FallbackResponse
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "gemini request failed, using fallback", "error", err)
		return FallbackResponse
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		slog.WarnContext(ctx, "gemini returned an error status, using fallback", "status", resp.StatusCode)
		return FallbackResponse
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return FallbackResponse
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return FallbackResponse
	}
	return out.Candidates[0].Content.Parts[0].Text
}

// offlineAnswer digs the headline numbers out of the prompt's
// APP_CONTEXT block so the answer stays useful without the model.
func offlineAnswer(prompt string) string {
	cash, exp, pending, ok := extractContextNumbers(prompt)
	if !ok {
		return FallbackResponse
	}
	return fmt.Sprintf(
		"I can't access the AI coach right now, but you have $%.2f cash available and %.0f EXP available. "+
			"Consider completing %d task(s) to unlock more.",
		cash, exp, pending)
}

func extractContextNumbers(prompt string) (cash, exp float64, pending int, ok bool) {
	_, after, found := strings.Cut(prompt, "APP_CONTEXT:")
	if !found {
		return 0, 0, 0, false
	}
	jsonText, _, _ := strings.Cut(after, "USER_MESSAGE:")

	var ctx struct {
		MonthState struct {
			CashAvailable *float64 `json:"cash_available"`
			EXPAvailable  *float64 `json:"exp_available"`
		} `json:"month_state"`
		TaskSummary struct {
			PendingToday *int `json:"pending_today"`
		} `json:"task_summary"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(jsonText)), &ctx); err != nil {
		return 0, 0, 0, false
	}
	if ctx.MonthState.CashAvailable == nil || ctx.MonthState.EXPAvailable == nil || ctx.TaskSummary.PendingToday == nil {
		return 0, 0, 0, false
	}
	return *ctx.MonthState.CashAvailable, *ctx.MonthState.EXPAvailable, *ctx.TaskSummary.PendingToday, true
}
