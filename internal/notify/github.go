package notify

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"

	"github.com/sells-group/newswatch/internal/model"
	"github.com/sells-group/newswatch/internal/resilience"
)

// GitHubOptions configures a GitHubSink.
type GitHubOptions struct {
	Token      string
	Repository string // "owner/name"
	Labels     []string
	BaseURL    string // API root override, e.g. for GitHub Enterprise
	Timeout    time.Duration
}

// GitHubSink opens one GitHub issue per alert.
type GitHubSink struct {
	client *gh.Client
	owner  string
	repo   string
	labels []string
}

// NewGitHubSink creates a GitHubSink authenticated with a static token.
func NewGitHubSink(ctx context.Context, opts GitHubOptions) (*GitHubSink, error) {
	if opts.Token == "" {
		return nil, eris.New("notify: github token is required")
	}
	owner, repo, ok := strings.Cut(opts.Repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, eris.Errorf("notify: github repository must be owner/name, got %q", opts.Repository)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = opts.Timeout
	client := gh.NewClient(tc)

	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, eris.Wrapf(err, "notify: parse github base url %s", opts.BaseURL)
		}
		client.BaseURL = u
	}

	return &GitHubSink{client: client, owner: owner, repo: repo, labels: opts.Labels}, nil
}

// Create opens the issue and returns its HTML URL.
func (s *GitHubSink) Create(ctx context.Context, rec model.NewsRecord) (string, error) {
	labels := s.issueLabels(rec)
	issue, _, err := s.client.Issues.Create(ctx, s.owner, s.repo, &gh.IssueRequest{
		Title:  gh.Ptr(IssueTitle(rec)),
		Body:   gh.Ptr(IssueBody(rec)),
		Labels: &labels,
	})
	if err != nil {
		return "", classifyGitHubError(err)
	}
	if ref := issue.GetHTMLURL(); ref != "" {
		return ref, nil
	}
	return issue.GetURL(), nil
}

// issueLabels is the configured labels plus the sentiment and ticker.
func (s *GitHubSink) issueLabels(rec model.NewsRecord) []string {
	labels := make([]string, 0, len(s.labels)+2)
	seen := make(map[string]bool)
	for _, l := range append(append([]string(nil), s.labels...), string(rec.Sentiment), rec.Ticker) {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		labels = append(labels, l)
	}
	return labels
}

// classifyGitHubError marks rate limits and server errors as transient.
func classifyGitHubError(err error) error {
	var rle *gh.RateLimitError
	var are *gh.AbuseRateLimitError
	if errors.As(err, &rle) || errors.As(err, &are) {
		return resilience.NewTransientError(eris.Wrap(err, "notify: github rate limited"), http.StatusTooManyRequests)
	}
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return resilience.StatusError("notify: github", er.Response.StatusCode, er.Message)
	}
	return eris.Wrap(err, "notify: github create issue")
}
