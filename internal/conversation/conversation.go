// Package conversation rebuilds post chains and trees from the flat post
// store. Results are derived views, recomputed on every call because the
// underlying store can grow between calls.
package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/TriBrain/TweetAgent/internal/models"
	"github.com/TriBrain/TweetAgent/internal/store"
	"github.com/TriBrain/TweetAgent/pkg/logging"
)

// PostSource is the subset of the datastore the resolver reads from.
type PostSource interface {
	PostByPlatformID(ctx context.Context, botID, platformPostID string) (*models.Post, error)
	ChildPosts(ctx context.Context, botID, parentPlatformID string) ([]*models.Post, error)
}

// Tree is a post with all its stored descendants.
type Tree struct {
	Post     *models.Post
	Children []*Tree
}

// ParentChain walks parent links from the leaf up to the conversation root
// and returns the chain ordered root first. When any ancestor is missing from
// the store the chain is not resolvable yet (the fetcher may still be
// catching up): the result is nil without an error and the caller should
// retry later. Malformed parent pointers forming a cycle get the same nil
// result, so one bad row never wedges the caller's loop.
func ParentChain(ctx context.Context, posts PostSource, logger logging.Logger, botID, leafPlatformID string) ([]*models.Post, error) {
	var chain []*models.Post
	visited := map[string]bool{}
	currentID := leafPlatformID
	for currentID != "" {
		if visited[currentID] {
			logger.WithFields(logging.Fields{
				"leaf_platform_id": leafPlatformID,
				"repeated_post":    currentID,
			}).Warn("Conversation chain has a parent cycle, deferring")
			return nil, nil
		}
		visited[currentID] = true

		post, err := posts.PostByPlatformID(ctx, botID, currentID)
		if errors.Is(err, store.ErrNotFound) {
			logger.WithFields(logging.Fields{
				"leaf_platform_id": leafPlatformID,
				"missing_ancestor": currentID,
			}).Warn("Conversation chain has a missing ancestor, deferring")
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolve conversation ancestor: %w", err)
		}

		chain = append([]*models.Post{post}, chain...)
		if post.ParentPostID == nil {
			break
		}
		currentID = *post.ParentPostID
	}
	return chain, nil
}

// DescendantTree collects all stored descendants of the root post. A visited
// set guards against malformed parent pointers forming a cycle.
func DescendantTree(ctx context.Context, posts PostSource, botID string, root *models.Post) (*Tree, error) {
	if root == nil {
		return nil, errors.New("descendant tree requires a root post")
	}
	visited := map[string]bool{}
	return buildTree(ctx, posts, botID, root, visited)
}

func buildTree(ctx context.Context, posts PostSource, botID string, post *models.Post, visited map[string]bool) (*Tree, error) {
	tree := &Tree{Post: post}
	if post.PlatformPostID == nil {
		return tree, nil
	}
	if visited[*post.PlatformPostID] {
		return nil, fmt.Errorf("conversation cycle detected at post %s", *post.PlatformPostID)
	}
	visited[*post.PlatformPostID] = true

	children, err := posts.ChildPosts(ctx, botID, *post.PlatformPostID)
	if err != nil {
		return nil, fmt.Errorf("resolve child posts: %w", err)
	}
	for _, child := range children {
		subtree, err := buildTree(ctx, posts, botID, child, visited)
		if err != nil {
			return nil, err
		}
		tree.Children = append(tree.Children, subtree)
	}
	return tree, nil
}

// Find returns the first post in the tree matching the predicate, depth
// first, or nil.
func (t *Tree) Find(match func(*models.Post) bool) *models.Post {
	if t == nil {
		return nil
	}
	if match(t.Post) {
		return t.Post
	}
	for _, child := range t.Children {
		if found := child.Find(match); found != nil {
			return found
		}
	}
	return nil
}
