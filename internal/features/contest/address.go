package contest

import (
	"context"
	"errors"
	"strings"

	"github.com/TriBrain/TweetAgent/internal/botfeature"
	"github.com/TriBrain/TweetAgent/internal/events"
	"github.com/TriBrain/TweetAgent/internal/models"
	"github.com/TriBrain/TweetAgent/internal/store"
	"github.com/TriBrain/TweetAgent/pkg/llm"
	"github.com/TriBrain/TweetAgent/pkg/logging"
)

const TypeAddressCollector = "airdrop-address-collector"

// AddressCollectorProvider describes the payout address collector feature.
func AddressCollectorProvider() *botfeature.Provider {
	return &botfeature.Provider{
		Type:        TypeAddressCollector,
		Group:       botfeature.GroupContest,
		Title:       "Airdrop address collector",
		Description: "Extracts payout wallet addresses from mentions and stores them on the account",
		ConfigSchema: botfeature.Schema{
			"enabled": {Type: botfeature.FieldBool, Required: true},
		},
		DefaultConfig: map[string]interface{}{
			"enabled": true,
		},
		New: func(base botfeature.BaseFeature) (botfeature.Feature, error) {
			return &AddressCollector{BaseFeature: base}, nil
		},
	}
}

// AddressCollector watches mentions for wallet addresses. Accounts that
// already provided one are skipped without a model call.
type AddressCollector struct {
	botfeature.BaseFeature
}

type extractedAddress struct {
	HasAddress bool   `json:"has_address"`
	Address    string `json:"address"`
}

func (a *AddressCollector) StudyReply(ctx context.Context, mention *models.Post, parentChain []*models.Post) (string, error) {
	if !a.Bot().IsMentionedIn(mention.Text) {
		return "", nil
	}

	account, err := a.Deps.Store.GetAccount(ctx, mention.AuthorID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	if account != nil && account.AirdropAddress != nil {
		return "", nil
	}

	author := mention.AuthorID
	if account != nil {
		author = account.ScreenName
	}

	var extracted extractedAddress
	result, err := a.Invoke(ctx, llm.InvokeRequest{
		SystemPrompt: a.Prompt("airdrop_address_extract"),
		Variables: map[string]string{
			"bot_name":  a.Bot().Name,
			"author":    author,
			"post_text": mention.Text,
		},
		StructuredSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"has_address": map[string]interface{}{"type": "boolean"},
				"address":     map[string]interface{}{"type": "string"},
			},
			"required": []string{"has_address"},
		},
		StructuredOutput: &extracted,
	})
	if err != nil {
		return "", err
	}
	address := strings.TrimSpace(extracted.Address)
	if !result.Structured || !extracted.HasAddress || address == "" {
		return "", nil
	}

	if _, err := a.Deps.Store.EnsureAccount(ctx, mention.AuthorID, ""); err != nil {
		return "", err
	}
	if err := a.Deps.Store.SetAirdropAddress(ctx, mention.AuthorID, address); err != nil {
		return "", err
	}

	a.Logger().WithFields(a.Log()).WithFields(logging.Fields{
		"account": mention.AuthorID,
	}).Info("Stored airdrop address")
	a.Emit(events.TopicFeature, "address_collected", map[string]interface{}{
		"account": mention.AuthorID,
	})
	return "Your wallet address is saved for upcoming airdrops.", nil
}
