package platform

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/TriBrain/TweetAgent/pkg/logging"
)

// SimulatedClient is the platform used in development when no API credentials
// are configured. Searches come back empty and publishes succeed locally with
// generated ids.
type SimulatedClient struct {
	logger logging.Logger
}

func NewSimulatedClient(logger logging.Logger) *SimulatedClient {
	return &SimulatedClient{logger: logger}
}

func (c *SimulatedClient) SearchPostsFromAccounts(ctx context.Context, accounts []string, notBefore time.Time) ([]FetchedPost, error) {
	return nil, nil
}

func (c *SimulatedClient) SearchMentions(ctx context.Context, userID string, notBefore time.Time) ([]FetchedPost, error) {
	return nil, nil
}

func (c *SimulatedClient) PublishThread(ctx context.Context, chunks []string, replyToID, quotedID *string) ([]PublishedPost, error) {
	published := make([]PublishedPost, 0, len(chunks))
	for _, chunk := range chunks {
		published = append(published, PublishedPost{
			PlatformID: "simulated-" + uuid.NewString(),
			Text:       chunk,
		})
	}
	c.logger.WithField("chunks", len(published)).Info("Simulated thread publish")
	return published, nil
}

func (c *SimulatedClient) FetchSinglePost(ctx context.Context, platformID string) (*FetchedPost, *PostMetrics, error) {
	return &FetchedPost{
		PlatformID: platformID,
		AuthorID:   "simulated-author",
		Text:       "",
		CreatedAt:  time.Now(),
	}, &PostMetrics{}, nil
}

func (c *SimulatedClient) MaxPostLength() int {
	return DefaultMaxPostLength
}
