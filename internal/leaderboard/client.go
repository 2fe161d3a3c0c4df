package leaderboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"sciquiz-service/internal/domain"
	"sciquiz-service/internal/progress"
)

// maxLocalEntries bounds each local fallback list; oldest entries are
// evicted first.
const maxLocalEntries = 500

// mergedCap bounds the merged cross-context view.
const mergedCap = 500

// Client records completed attempts against the remote leaderboard
// service, with a durable local fallback so a submission never blocks or
// loses an attempt when the service is down.
type Client struct {
	baseURL string
	client  *http.Client
	local   progress.Store
	now     func() time.Time
}

func NewClient(baseURL string, timeout time.Duration, local progress.Store) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		local:   local,
		now:     time.Now,
	}
}

// Outcome reports where a submission ended up.
type Outcome struct {
	OK     bool               `json:"ok"`
	Origin domain.EntryOrigin `json:"origin"`
}

// Submit posts the entry to the remote service. On any failure the entry
// is appended to the bounded local list for its context instead; quiz
// completion is never blocked by leaderboard trouble.
func (c *Client) Submit(ctx context.Context, qctx domain.QuizContext, entry domain.LeaderboardEntry) (Outcome, error) {
	if entry.Name == "" {
		entry.Name = "Guest"
	}
	if entry.Date.IsZero() {
		entry.Date = c.now()
	}

	serverEntry, err := c.post(ctx, entry)
	if err != nil {
		log.Printf("leaderboard submit failed, keeping entry locally: %v", err)
		entry.Origin = domain.OriginLocal
		if err := c.appendLocal(ctx, qctx, entry); err != nil {
			return Outcome{}, fmt.Errorf("local leaderboard fallback: %w", err)
		}
		return Outcome{OK: true, Origin: domain.OriginLocal}, nil
	}

	// Mirror the server's copy (its id and timestamp) locally so a later
	// merge recognizes the two as the same attempt.
	serverEntry.Origin = domain.OriginServer
	if err := c.appendLocal(ctx, qctx, serverEntry); err != nil {
		log.Printf("local mirror after server submit failed: %v", err)
	}
	return Outcome{OK: true, Origin: domain.OriginServer}, nil
}

func (c *Client) post(ctx context.Context, entry domain.LeaderboardEntry) (domain.LeaderboardEntry, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/leaderboard", bytes.NewReader(payload))
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return domain.LeaderboardEntry{}, fmt.Errorf("leaderboard status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("read leaderboard response: %w", err)
	}

	// servers echo the stored entry either wrapped ({"entry": ...}) or bare
	var wrapped struct {
		Entry *domain.LeaderboardEntry `json:"entry"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Entry != nil && wrapped.Entry.Name != "" {
		return *wrapped.Entry, nil
	}
	var bare domain.LeaderboardEntry
	if err := json.Unmarshal(data, &bare); err == nil && bare.Name != "" {
		return bare, nil
	}
	// nothing useful echoed; keep what we sent
	return entry, nil
}

// Filters narrow a List call. Zero values mean "no filter".
type Filters struct {
	ClassID string
	Level   string
	Topic   string
	Limit   int
	SortBy  string // "score" or "date"
	Order   string // "asc" or "desc"
}

// List queries the remote service; when it is unreachable the bounded
// local lists serve the request instead. Results are sorted by score
// descending, ties broken by recency.
func (c *Client) List(ctx context.Context, f Filters) ([]domain.LeaderboardEntry, error) {
	entries, err := c.fetchRemote(ctx, f)
	if err != nil {
		log.Printf("leaderboard list failed, serving local entries: %v", err)
		entries = c.localEntries(ctx, f)
	}
	sortEntries(entries)
	if f.Limit > 0 && len(entries) > f.Limit {
		entries = entries[:f.Limit]
	}
	return entries, nil
}

// Merged builds the cross-context dashboard view: remote entries plus
// every local list, de-duplicated by entry signature so an attempt stored
// both locally and on the server counts once.
func (c *Client) Merged(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	var merged []domain.LeaderboardEntry
	remote, err := c.fetchRemote(ctx, Filters{Limit: 200})
	if err != nil {
		log.Printf("leaderboard merge: remote unavailable: %v", err)
	} else {
		merged = append(merged, remote...)
	}

	keys, err := c.local.Keys(ctx, progress.LeaderboardPrefix)
	if err != nil {
		return nil, fmt.Errorf("scan local leaderboards: %w", err)
	}
	for _, key := range keys {
		merged = append(merged, c.readLocal(ctx, key)...)
	}

	seen := make(map[string]struct{}, len(merged))
	deduped := merged[:0]
	for _, e := range merged {
		sig := e.Signature()
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		deduped = append(deduped, e)
	}

	sortEntries(deduped)
	if len(deduped) > mergedCap {
		deduped = deduped[:mergedCap]
	}
	return deduped, nil
}

// Clear wipes the remote leaderboard and always clears local lists too,
// so a partially failed remote clear cannot leave a false "cleared" state.
func (c *Client) Clear(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/leaderboard/clear", nil)
	if err != nil {
		return err
	}
	var remoteErr error
	resp, err := c.client.Do(req)
	if err != nil {
		remoteErr = err
	} else {
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			remoteErr = fmt.Errorf("leaderboard clear status %d", resp.StatusCode)
		}
	}

	if _, err := c.local.DeleteByPrefix(ctx, progress.LeaderboardPrefix); err != nil {
		return fmt.Errorf("clear local leaderboards: %w", err)
	}
	if remoteErr != nil {
		return fmt.Errorf("remote clear failed (local cleared): %w", remoteErr)
	}
	return nil
}

func (c *Client) fetchRemote(ctx context.Context, f Filters) ([]domain.LeaderboardEntry, error) {
	params := url.Values{}
	if f.ClassID != "" {
		params.Set("classId", f.ClassID)
	}
	if f.Level != "" {
		params.Set("level", f.Level)
	}
	if f.Topic != "" {
		params.Set("topic", f.Topic)
	}
	if f.Limit > 0 {
		params.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.SortBy != "" {
		params.Set("sortBy", f.SortBy)
	}
	if f.Order != "" {
		params.Set("order", f.Order)
	}

	endpoint := c.baseURL + "/api/leaderboard"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("leaderboard status %d", resp.StatusCode)
	}

	var entries []domain.LeaderboardEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode leaderboard list: %w", err)
	}
	for i := range entries {
		entries[i].Origin = domain.OriginServer
	}
	return entries, nil
}

func (c *Client) appendLocal(ctx context.Context, qctx domain.QuizContext, entry domain.LeaderboardEntry) error {
	key := progress.LeaderboardKey(qctx)
	entries := c.readLocal(ctx, key)
	entries = append(entries, entry)
	if len(entries) > maxLocalEntries {
		entries = entries[len(entries)-maxLocalEntries:]
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.local.Save(ctx, key, data)
}

func (c *Client) readLocal(ctx context.Context, key string) []domain.LeaderboardEntry {
	data, ok, err := c.local.Load(ctx, key)
	if err != nil || !ok {
		return nil
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		// malformed local list: ignore rather than fail the view
		return nil
	}
	for i := range entries {
		if entries[i].Origin == "" {
			entries[i].Origin = domain.OriginLocal
		}
	}
	return entries
}

func (c *Client) localEntries(ctx context.Context, f Filters) []domain.LeaderboardEntry {
	keys, err := c.local.Keys(ctx, progress.LeaderboardPrefix)
	if err != nil {
		return nil
	}
	var out []domain.LeaderboardEntry
	for _, key := range keys {
		for _, e := range c.readLocal(ctx, key) {
			if f.ClassID != "" && e.ClassID != f.ClassID {
				continue
			}
			if f.Level != "" && e.Level != f.Level {
				continue
			}
			if f.Topic != "" && e.Topic != f.Topic {
				continue
			}
			out = append(out, e)
		}
	}
	return out
}

func sortEntries(entries []domain.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Date.After(entries[j].Date)
	})
}
