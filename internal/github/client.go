// Package github implements the hosting-platform collaborator interfaces:
// snapshot fetching for the poll loop, diff/file fetching for the
// orchestrator, and the publish sink for finished reviews.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/reva-dev/reva/internal/log"
	"github.com/reva-dev/reva/internal/model"
)

// ErrRateLimited indicates the GitHub API rate limit is exhausted.
var ErrRateLimited = errors.New("GitHub API rate limit exceeded")

// rateLimitLowWatermark triggers a debug warning when remaining quota dips.
const rateLimitLowWatermark = 50

// rateLimitTransport wraps an http.RoundTripper to surface GitHub rate
// limiting as ErrRateLimited instead of opaque 403s.
type rateLimitTransport struct {
	base http.RoundTripper
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		if rem, err := strconv.Atoi(remaining); err == nil && rem <= rateLimitLowWatermark && rem > 0 {
			log.Debug("rate limit low", "remaining", rem)
		}
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		if resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			return nil, ErrRateLimited
		}
	}

	return resp, nil
}

// Client wraps the GitHub API client.
type Client struct {
	client *gh.Client
	org    string
	user   string
}

// NewClient creates a client using a personal access token. The token comes
// from the argument or the GITHUB_TOKEN environment variable.
func NewClient(ctx context.Context, token, org string) (*Client, error) {
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("GitHub token not provided. Set the GITHUB_TOKEN environment variable")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	tc.Transport = &rateLimitTransport{base: tc.Transport}

	c := &Client{client: gh.NewClient(tc), org: org}

	user, _, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated user: %w", err)
	}
	c.user = user.GetLogin()

	return c, nil
}

// CurrentUser returns the authenticated user's login.
func (c *Client) CurrentUser() string {
	return c.user
}

// FetchOpenItems returns all open pull requests in the configured org along
// with the subset where the authenticated user is a requested reviewer.
func (c *Client) FetchOpenItems(ctx context.Context) ([]model.Item, map[string]bool, error) {
	items, err := c.searchPRs(ctx, fmt.Sprintf("is:pr is:open org:%s", c.org))
	if err != nil {
		return nil, nil, err
	}

	requested, err := c.searchPRs(ctx, fmt.Sprintf("is:pr is:open org:%s review-requested:%s", c.org, c.user))
	if err != nil {
		return nil, nil, err
	}

	attention := make(map[string]bool, len(requested))
	for i := range requested {
		attention[requested[i].ID()] = true
	}

	return items, attention, nil
}

// searchPRs pages through a search query and converts results to items.
func (c *Client) searchPRs(ctx context.Context, query string) ([]model.Item, error) {
	opts := &gh.SearchOptions{
		Sort:        "updated",
		Order:       "desc",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var items []model.Item
	for {
		result, resp, err := c.client.Search.Issues(ctx, query, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to search pull requests: %w", err)
		}

		for _, issue := range result.Issues {
			item, ok := issueToItem(issue)
			if ok {
				items = append(items, item)
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return items, nil
}

// GetItem fetches one pull request's full metadata, including base/head refs
// that search results do not carry.
func (c *Client) GetItem(ctx context.Context, owner, repo string, number int) (model.Item, error) {
	pr, _, err := c.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return model.Item{}, fmt.Errorf("failed to get pull request %s/%s#%d: %w", owner, repo, number, err)
	}

	return model.Item{
		Owner:     owner,
		Repo:      repo,
		Number:    number,
		Title:     pr.GetTitle(),
		Author:    pr.GetUser().GetLogin(),
		BaseRef:   pr.GetBase().GetRef(),
		HeadRef:   pr.GetHead().GetRef(),
		HTMLURL:   pr.GetHTMLURL(),
		UpdatedAt: pr.GetUpdatedAt().Time,
	}, nil
}

// FetchDiff returns the pull request's unified diff.
func (c *Client) FetchDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	diff, _, err := c.client.PullRequests.GetRaw(ctx, owner, repo, number, gh.RawOptions{Type: gh.Diff})
	if err != nil {
		return "", fmt.Errorf("failed to fetch diff for %s/%s#%d: %w", owner, repo, number, err)
	}
	return diff, nil
}

// FetchFiles returns the changed files with their per-file patches.
func (c *Client) FetchFiles(ctx context.Context, owner, repo string, number int) ([]model.FileChange, error) {
	opts := &gh.ListOptions{PerPage: 100}

	var files []model.FileChange
	for {
		page, resp, err := c.client.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list files for %s/%s#%d: %w", owner, repo, number, err)
		}

		for _, f := range page {
			files = append(files, model.FileChange{
				Filename:  f.GetFilename(),
				Patch:     f.GetPatch(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return files, nil
}

// issueToItem converts a GitHub search result to a model.Item. Returns false
// for results whose repository cannot be determined.
func issueToItem(issue *gh.Issue) (model.Item, bool) {
	owner, repo := repoFromURL(issue.GetRepositoryURL())
	if owner == "" || repo == "" {
		return model.Item{}, false
	}

	return model.Item{
		Owner:     owner,
		Repo:      repo,
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		Author:    issue.GetUser().GetLogin(),
		HTMLURL:   issue.GetHTMLURL(),
		UpdatedAt: issue.GetUpdatedAt().Time,
	}, true
}

// repoFromURL extracts owner and repo name from a GitHub API repository URL.
// URL format: https://api.github.com/repos/owner/repo
func repoFromURL(url string) (owner, repo string) {
	const prefix = "https://api.github.com/repos/"
	if len(url) <= len(prefix) || url[:len(prefix)] != prefix {
		return "", ""
	}
	rest := url[len(prefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[:i], rest[i+1:]
		}
	}
	return "", ""
}
