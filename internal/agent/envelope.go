package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rotisserie/eris"
)

const blockedContent = "### Blocked\n\nThis request was blocked by the security guardrail."

// Envelope is the JSON document returned by the text agents.
type Envelope struct {
	Content   string   `json:"content"`
	Citations []string `json:"citations"`
}

// NewEnvelope builds an envelope; nil citations serialize as [].
func NewEnvelope(content string, citations []string) Envelope {
	if citations == nil {
		citations = []string{}
	}
	return Envelope{Content: content, Citations: citations}
}

// String renders the envelope as JSON.
func (e Envelope) String() string {
	if e.Citations == nil {
		e.Citations = []string{}
	}
	b, _ := json.Marshal(e)
	return string(b)
}

// ParseEnvelope decodes an envelope produced by String.
func ParseEnvelope(raw string) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Envelope{}, eris.Wrap(err, "agent: decode envelope")
	}
	if e.Citations == nil {
		e.Citations = []string{}
	}
	return e, nil
}

// BlockedEnvelope is what a text agent returns for input the guardrail refused.
func BlockedEnvelope() string {
	return NewEnvelope(blockedContent, nil).String()
}

// Dividend is the structured dividend analysis.
type Dividend struct {
	IsDividendStock    bool   `json:"isDividendStock"`
	HasDividendHistory bool   `json:"hasDividendHistory"`
	Analysis           string `json:"analysis"`
}

// BlockedDividend is what the dividend agent returns for refused input.
func BlockedDividend() Dividend {
	return Dividend{Analysis: blockedContent}
}

// UnavailableDividend reports that no provider produced a usable analysis.
func UnavailableDividend(ticker string, reason error) Dividend {
	return Dividend{
		Analysis: fmt.Sprintf("### Analysis Unavailable\n\nIssue processing dividend data for **%s**.\n\n**Reason:** %v", ticker, reason),
	}
}

// ParseDividend decodes model output into a Dividend. It accepts bare JSON,
// JSON inside a Markdown code fence, and as a last resort JSON that
// jsonrepair can fix (trailing commas, single quotes, truncation).
func ParseDividend(text string) (Dividend, error) {
	var d Dividend
	if err := decodeLenient(text, &d); err != nil {
		return Dividend{}, err
	}
	return d, nil
}

func decodeLenient(text string, v any) error {
	text = strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	candidate := stripFence(text)
	err := json.Unmarshal([]byte(candidate), v)
	if err == nil {
		return nil
	}

	repaired, rerr := jsonrepair.JSONRepair(candidate)
	if rerr != nil {
		return eris.Wrap(err, "agent: response is not valid JSON")
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return eris.Wrap(err, "agent: response is not valid JSON after repair")
	}
	return nil
}

// stripFence returns the body of the first ```json (or bare ```) fence, or
// text unchanged when there is none.
func stripFence(text string) string {
	marker := "```json"
	idx := strings.Index(text, marker)
	if idx < 0 {
		marker = "```"
		idx = strings.Index(text, marker)
	}
	if idx < 0 {
		return text
	}
	body := text[idx+len(marker):]
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}
