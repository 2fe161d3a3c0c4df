package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"sciquiz-service/internal/domain"
)

// BankClient fetches raw question records from the remote question-bank
// API. Responses are kept as loose maps so normalization owns all shape
// handling.
type BankClient struct {
	baseURL string
	client  *http.Client
}

func NewBankClient(baseURL string, timeout time.Duration) *BankClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BankClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Fetch queries /api/questions filtered by language, topic and level.
// A non-2xx status or an empty array is an error; the adapter treats every
// error from here as soft and moves down the fallback chain.
func (c *BankClient) Fetch(ctx context.Context, qctx domain.QuizContext) ([]map[string]any, error) {
	params := url.Values{}
	params.Set("lang", qctx.Language)
	params.Set("topic", qctx.TopicName())
	params.Set("level", qctx.Level)
	if qctx.ClassID != "" {
		params.Set("classId", qctx.ClassID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/questions?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("question bank status %d", resp.StatusCode)
	}

	var records []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode question bank response: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("question bank returned no questions for %s", qctx)
	}
	return records, nil
}
