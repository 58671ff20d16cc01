package conversation

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/TriBrain/TweetAgent/internal/models"
	"github.com/TriBrain/TweetAgent/internal/store"
)

type fakePostSource struct {
	byPlatformID map[string]*models.Post
	children     map[string][]*models.Post
}

func (f *fakePostSource) PostByPlatformID(ctx context.Context, botID, platformPostID string) (*models.Post, error) {
	post, ok := f.byPlatformID[platformPostID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return post, nil
}

func (f *fakePostSource) ChildPosts(ctx context.Context, botID, parentPlatformID string) ([]*models.Post, error) {
	return f.children[parentPlatformID], nil
}

func post(platformID string, parentID *string) *models.Post {
	return &models.Post{
		ID:             "db-" + platformID,
		BotID:          "bot-1",
		PlatformPostID: &platformID,
		ParentPostID:   parentID,
		AuthorID:       "author",
		Text:           "text of " + platformID,
	}
}

func strPtr(s string) *string { return &s }

func TestParentChainOrderedRootFirst(t *testing.T) {
	a := post("A", nil)
	b := post("B", strPtr("A"))
	c := post("C", strPtr("B"))
	source := &fakePostSource{byPlatformID: map[string]*models.Post{"A": a, "B": b, "C": c}}

	chain, err := ParentChain(context.Background(), source, logrus.New(), "bot-1", "C")
	if err != nil {
		t.Fatalf("parent chain failed: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("expected 3 posts in the chain, got %d", len(chain))
	}
	for i, want := range []string{"A", "B", "C"} {
		if *chain[i].PlatformPostID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, *chain[i].PlatformPostID)
		}
	}
}

func TestParentChainSinglePost(t *testing.T) {
	a := post("A", nil)
	source := &fakePostSource{byPlatformID: map[string]*models.Post{"A": a}}

	chain, err := ParentChain(context.Background(), source, logrus.New(), "bot-1", "A")
	if err != nil {
		t.Fatalf("parent chain failed: %v", err)
	}
	if len(chain) != 1 || *chain[0].PlatformPostID != "A" {
		t.Errorf("expected the bare post as its own chain, got %v", chain)
	}
}

func TestParentChainMissingAncestorIsNotResolvable(t *testing.T) {
	c := post("C", strPtr("B"))
	source := &fakePostSource{byPlatformID: map[string]*models.Post{"C": c}}

	chain, err := ParentChain(context.Background(), source, logrus.New(), "bot-1", "C")
	if err != nil {
		t.Fatalf("expected no error for a missing ancestor, got %v", err)
	}
	if chain != nil {
		t.Errorf("expected a nil chain for an unresolvable conversation, got %v", chain)
	}
}

func TestParentChainTerminatesOnCyclicParents(t *testing.T) {
	a := post("A", strPtr("B"))
	b := post("B", strPtr("A"))
	source := &fakePostSource{byPlatformID: map[string]*models.Post{"A": a, "B": b}}

	chain, err := ParentChain(context.Background(), source, logrus.New(), "bot-1", "A")
	if err != nil {
		t.Fatalf("expected no error for a cyclic chain, got %v", err)
	}
	if chain != nil {
		t.Errorf("expected a nil chain for a cyclic conversation, got %v", chain)
	}
}

func TestParentChainTerminatesOnSelfParent(t *testing.T) {
	a := post("A", strPtr("A"))
	source := &fakePostSource{byPlatformID: map[string]*models.Post{"A": a}}

	chain, err := ParentChain(context.Background(), source, logrus.New(), "bot-1", "A")
	if err != nil {
		t.Fatalf("expected no error for a self-referencing post, got %v", err)
	}
	if chain != nil {
		t.Errorf("expected a nil chain for a self-referencing post, got %v", chain)
	}
}

func TestDescendantTreeCollectsChildren(t *testing.T) {
	root := post("A", nil)
	b := post("B", strPtr("A"))
	c := post("C", strPtr("A"))
	d := post("D", strPtr("B"))
	source := &fakePostSource{
		byPlatformID: map[string]*models.Post{"A": root, "B": b, "C": c, "D": d},
		children: map[string][]*models.Post{
			"A": {b, c},
			"B": {d},
		},
	}

	tree, err := DescendantTree(context.Background(), source, "bot-1", root)
	if err != nil {
		t.Fatalf("descendant tree failed: %v", err)
	}
	if len(tree.Children) != 2 {
		t.Fatalf("expected 2 direct children, got %d", len(tree.Children))
	}
	if len(tree.Children[0].Children) != 1 {
		t.Errorf("expected B to have one child, got %d", len(tree.Children[0].Children))
	}

	found := tree.Find(func(p *models.Post) bool {
		return p.PlatformPostID != nil && *p.PlatformPostID == "D"
	})
	if found == nil {
		t.Error("expected Find to locate the grandchild")
	}
}

func TestDescendantTreeDetectsCycles(t *testing.T) {
	a := post("A", strPtr("B"))
	b := post("B", strPtr("A"))
	source := &fakePostSource{
		byPlatformID: map[string]*models.Post{"A": a, "B": b},
		children: map[string][]*models.Post{
			"A": {b},
			"B": {a},
		},
	}

	if _, err := DescendantTree(context.Background(), source, "bot-1", a); err == nil {
		t.Fatal("expected a cycle error, got none")
	}
}
