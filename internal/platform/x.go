package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"github.com/TriBrain/TweetAgent/pkg/clients"
	"github.com/TriBrain/TweetAgent/pkg/logging"
)

// XClient talks to the X (twitter) v2 API.
type XClient struct {
	baseURL      string
	bearerToken  string
	client       *http.Client
	httpExecutor failsafe.Executor[*http.Response]
	logger       logging.Logger
	maxLength    int
}

type XOption func(*XClient)

func NewXClient(bearerToken string, logger logging.Logger, opts ...XOption) *XClient {
	c := &XClient{
		baseURL:      "https://api.twitter.com/2",
		bearerToken:  bearerToken,
		client:       &http.Client{Timeout: 15 * time.Second},
		httpExecutor: clients.NewHTTPExecutor(clients.DefaultHTTPExecutorConfig()),
		logger:       logger,
		maxLength:    DefaultMaxPostLength,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithBaseURL(baseURL string) XOption {
	return func(c *XClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(httpClient *http.Client) XOption {
	return func(c *XClient) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

func (c *XClient) MaxPostLength() int {
	return c.maxLength
}

func (c *XClient) SearchPostsFromAccounts(ctx context.Context, accounts []string, notBefore time.Time) ([]FetchedPost, error) {
	if len(accounts) == 0 {
		return nil, nil
	}
	terms := make([]string, 0, len(accounts))
	for _, account := range accounts {
		terms = append(terms, "from:"+strings.TrimPrefix(account, "@"))
	}
	return c.search(ctx, strings.Join(terms, " OR "), notBefore)
}

func (c *XClient) SearchMentions(ctx context.Context, userID string, notBefore time.Time) ([]FetchedPost, error) {
	if userID == "" {
		return nil, nil
	}
	return c.search(ctx, "to:"+userID, notBefore)
}

func (c *XClient) search(ctx context.Context, query string, notBefore time.Time) ([]FetchedPost, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("max_results", "10")
	params.Set("sort_order", "recency")
	params.Set("start_time", notBefore.UTC().Format(time.RFC3339))
	params.Set("tweet.fields", "created_at,author_id,text,referenced_tweets")
	params.Set("expansions", "author_id")
	params.Set("user.fields", "username")

	var parsed xSearchResponse
	if err := c.doGet(ctx, "/tweets/search/recent?"+params.Encode(), &parsed); err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}

	usernames := make(map[string]string, len(parsed.Includes.Users))
	for _, user := range parsed.Includes.Users {
		usernames[user.ID] = user.Username
	}

	posts := make([]FetchedPost, 0, len(parsed.Data))
	for _, tweet := range parsed.Data {
		post := FetchedPost{
			PlatformID:       tweet.ID,
			AuthorID:         tweet.AuthorID,
			AuthorScreenName: usernames[tweet.AuthorID],
			Text:             tweet.Text,
			CreatedAt:        tweet.CreatedAt,
		}
		for _, ref := range tweet.ReferencedTweets {
			switch ref.Type {
			case "replied_to":
				id := ref.ID
				post.ParentPlatformID = &id
			case "quoted":
				id := ref.ID
				post.QuotedPlatformID = &id
			}
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// PublishThread publishes the chunks sequentially, each one replying to the
// previous. Returns created posts in conversation order.
func (c *XClient) PublishThread(ctx context.Context, chunks []string, replyToID, quotedID *string) ([]PublishedPost, error) {
	var published []PublishedPost
	previousID := replyToID
	for i, chunk := range chunks {
		body := xCreateTweetRequest{Text: chunk}
		if previousID != nil {
			body.Reply = &xReplyRef{InReplyToTweetID: *previousID}
		}
		if i == 0 && quotedID != nil {
			body.QuoteTweetID = *quotedID
		}

		payload, err := json.Marshal(body)
		if err != nil {
			return published, fmt.Errorf("marshal tweet request: %w", err)
		}
		var parsed xCreateTweetResponse
		if err := c.doPost(ctx, "/tweets", payload, &parsed); err != nil {
			// Return what was published so far; the caller decides how to
			// reconcile a partially created thread.
			return published, fmt.Errorf("publish chunk %d: %w", i, err)
		}

		published = append(published, PublishedPost{PlatformID: parsed.Data.ID, Text: parsed.Data.Text})
		id := parsed.Data.ID
		previousID = &id
	}

	c.logger.WithField("chunks", len(published)).Info("Published post thread")
	return published, nil
}

func (c *XClient) FetchSinglePost(ctx context.Context, platformID string) (*FetchedPost, *PostMetrics, error) {
	params := url.Values{}
	params.Set("tweet.fields", "created_at,author_id,text,public_metrics")

	var parsed xSingleTweetResponse
	if err := c.doGet(ctx, "/tweets/"+url.PathEscape(platformID)+"?"+params.Encode(), &parsed); err != nil {
		return nil, nil, fmt.Errorf("fetch post: %w", err)
	}

	post := &FetchedPost{
		PlatformID: parsed.Data.ID,
		AuthorID:   parsed.Data.AuthorID,
		Text:       parsed.Data.Text,
		CreatedAt:  parsed.Data.CreatedAt,
	}
	metrics := &PostMetrics{
		ImpressionCount: parsed.Data.PublicMetrics.ImpressionCount,
		LikeCount:       parsed.Data.PublicMetrics.LikeCount,
		RepostCount:     parsed.Data.PublicMetrics.RetweetCount + parsed.Data.PublicMetrics.QuoteCount,
		CommentCount:    parsed.Data.PublicMetrics.ReplyCount,
	}
	return post, metrics, nil
}

func (c *XClient) doGet(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *XClient) doPost(ctx context.Context, path string, payload []byte, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, payload, out)
}

func (c *XClient) do(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	resp, err := clients.ExecuteHTTP(ctx, c.httpExecutor, func() (*http.Response, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return c.client.Do(req)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type xSearchResponse struct {
	Data []struct {
		ID               string    `json:"id"`
		AuthorID         string    `json:"author_id"`
		Text             string    `json:"text"`
		CreatedAt        time.Time `json:"created_at"`
		ReferencedTweets []struct {
			Type string `json:"type"`
			ID   string `json:"id"`
		} `json:"referenced_tweets"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"users"`
	} `json:"includes"`
}

type xCreateTweetRequest struct {
	Text         string     `json:"text"`
	Reply        *xReplyRef `json:"reply,omitempty"`
	QuoteTweetID string     `json:"quote_tweet_id,omitempty"`
}

type xReplyRef struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type xCreateTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type xSingleTweetResponse struct {
	Data struct {
		ID            string    `json:"id"`
		AuthorID      string    `json:"author_id"`
		Text          string    `json:"text"`
		CreatedAt     time.Time `json:"created_at"`
		PublicMetrics struct {
			ImpressionCount int `json:"impression_count"`
			LikeCount       int `json:"like_count"`
			RetweetCount    int `json:"retweet_count"`
			QuoteCount      int `json:"quote_count"`
			ReplyCount      int `json:"reply_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}
