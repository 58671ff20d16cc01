package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBundleParses(t *testing.T) {
	bundle, err := Default()
	require.NoError(t, err)

	for _, name := range []string{
		"contest_judge",
		"contest_post_elector",
		"contest_quote_intro",
		"airdrop_address_request",
		"airdrop_address_extract",
		"reply_merge",
		"tweet_traits",
		"opinion_reply",
		"news_classify",
		"news_summary",
	} {
		assert.NotEmpty(t, bundle.Get(name), "prompt %s is missing", name)
	}
}

func TestGetUnknownPrompt(t *testing.T) {
	bundle := MustDefault()
	assert.Empty(t, bundle.Get("does-not-exist"))
}

func TestLoadOverlay(t *testing.T) {
	overlay, err := Load([]byte("contest_judge: overridden\n"))
	require.NoError(t, err)
	assert.Equal(t, "overridden", overlay.Get("contest_judge"))
}

func TestLoadRejectsMalformedYaml(t *testing.T) {
	_, err := Load([]byte("not: [valid"))
	require.Error(t, err)
}
