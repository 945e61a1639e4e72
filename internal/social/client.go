package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// Reader is the read-only boundary to the social platform. Results are
// eventually consistent and possibly incomplete per call; callers must not
// assume a search was exhaustive.
type Reader interface {
	// Search returns events matching query with id > sinceID, oldest first.
	// An empty sinceID means "the platform's recent window".
	Search(ctx context.Context, query string, sinceID string, limit int) ([]Event, error)
	// Replies returns replies to the given event id with id > sinceID,
	// oldest first.
	Replies(ctx context.Context, eventID string, sinceID string, limit int) ([]Event, error)
}

type Config struct {
	BaseURL     string
	BearerToken string
	Timeout     time.Duration
	PageSize    int
}

type client struct {
	http    *http.Client
	baseURL string
	token   string
	pageSize int
}

func NewClient(cfg Config) Reader {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize == 0 {
		pageSize = 50
	}
	return &client{
		http:    &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		token:   cfg.BearerToken,
		pageSize: pageSize,
	}
}

type searchResponse struct {
	Data []struct {
		ID            string    `json:"id"`
		AuthorID      string    `json:"author_id"`
		Text          string    `json:"text"`
		CreatedAt     time.Time `json:"created_at"`
		InReplyToID   string    `json:"in_reply_to_status_id,omitempty"`
		ReferencedPosts []struct {
			Type string `json:"type"` // "quoted" | "reposted" | "replied_to"
			ID   string `json:"id"`
		} `json:"referenced_posts,omitempty"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"users"`
	} `json:"includes"`
}

func (c *client) Search(ctx context.Context, query string, sinceID string, limit int) ([]Event, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("expansions", "author_id")
	params.Set("tweet.fields", "created_at,referenced_tweets")
	if sinceID != "" {
		params.Set("since_id", sinceID)
	}
	if limit <= 0 || limit > c.pageSize {
		limit = c.pageSize
	}
	params.Set("max_results", strconv.Itoa(limit))

	return c.search(ctx, params)
}

func (c *client) Replies(ctx context.Context, eventID string, sinceID string, limit int) ([]Event, error) {
	// Reply search is expressed as a conversation query; the platform
	// returns the same event shape.
	return c.Search(ctx, fmt.Sprintf("conversation_id:%s", eventID), sinceID, limit)
}

func (c *client) search(ctx context.Context, params url.Values) ([]Event, error) {
	endpoint := fmt.Sprintf("%s/2/tweets/search/recent?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("social search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("social search: status %d: %s", resp.StatusCode, string(body))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("social search: decode: %w", err)
	}

	handles := make(map[string]string, len(parsed.Includes.Users))
	for _, u := range parsed.Includes.Users {
		handles[u.ID] = u.Username
	}

	events := make([]Event, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		ev := Event{
			ID:           d.ID,
			AuthorHandle: handles[d.AuthorID],
			Text:         d.Text,
			CreatedAt:    d.CreatedAt,
			InReplyToID:  d.InReplyToID,
		}
		for _, ref := range d.ReferencedPosts {
			switch ref.Type {
			case "quoted":
				ev.QuotedEventID = ref.ID
			case "reposted":
				ev.IsRepost = true
			}
		}
		events = append(events, ev)
	}

	// Platform returns newest first; pollers advance oldest to newest.
	sort.Slice(events, func(i, j int) bool {
		return CompareIDs(events[i].ID, events[j].ID) < 0
	})
	return events, nil
}

// CompareIDs orders platform ids numerically, falling back to length-aware
// lexicographic order for ids that overflow int64.
func CompareIDs(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
