// Copyright 2026 The Rlsr Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package publishers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"github.com/bep/logg"
	"github.com/google/go-github/v45/github"
	"github.com/rlsr/rlsr/internal/common/templ"
	"github.com/rlsr/rlsr/internal/config"
	"github.com/rlsr/rlsr/internal/model"
	"github.com/rlsr/rlsr/internal/publishers/publishtypes"
	"golang.org/x/oauth2"
)

const githubTokenEnvVar = "GITHUB_TOKEN"

// Bodies longer than this are rejected by GitHub.
const maxReleaseBodyLength = 100000

// GitHubRelease is the release to create.
type GitHubRelease struct {
	Owner      string
	Repo       string
	Tag        string
	Commitish  string
	Name       string
	Body       string
	Draft      bool
	Prerelease bool
}

// GitHubClient creates releases and uploads release assets.
type GitHubClient interface {
	CreateRelease(ctx context.Context, r GitHubRelease) (int64, error)
	UploadAsset(ctx context.Context, owner, repo string, releaseID int64, f *os.File) error
}

// UsernameResolver resolves the login of a commit author.
type UsernameResolver interface {
	ResolveUsername(ctx context.Context, owner, repo, sha, author string) (string, error)
}

// NewGitHubClient creates a client authenticated with the GITHUB_TOKEN env var.
func NewGitHubClient(ctx context.Context, getenv func(string) string) (*GitHubAPIClient, error) {
	token := getenv(githubTokenEnvVar)
	if token == "" {
		return nil, fmt.Errorf("missing %q env var", githubTokenEnvVar)
	}

	tokenSource := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)

	httpClient := oauth2.NewClient(ctx, tokenSource)

	return &GitHubAPIClient{
		client:        github.NewClient(httpClient),
		usernameCache: make(map[string]string),
	}, nil
}

var (
	_ GitHubClient     = (*GitHubAPIClient)(nil)
	_ UsernameResolver = (*GitHubAPIClient)(nil)
	_ UsernameResolver = (*FakeGitHubClient)(nil)
	_ AuthorResolver   = (*githubPublisher)(nil)
)

// GitHubAPIClient talks to the GitHub REST API.
type GitHubAPIClient struct {
	client *github.Client

	usernameCacheMu sync.Mutex
	usernameCache   map[string]string
}

func (c *GitHubAPIClient) ResolveUsername(ctx context.Context, owner, repo, sha, author string) (string, error) {
	c.usernameCacheMu.Lock()
	defer c.usernameCacheMu.Unlock()
	if username, ok := c.usernameCache[author]; ok {
		return username, nil
	}
	r, resp, err := c.client.Repositories.GetCommit(ctx, owner, repo, sha, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnprocessableEntity) {
			return "", nil
		}
		return "", err
	}
	if resp != nil && resp.StatusCode != http.StatusOK {
		return "", nil
	}

	if r.Author == nil || r.Author.Login == nil {
		return "", nil
	}

	c.usernameCache[author] = *r.Author.Login
	return c.usernameCache[author], nil
}

func (c *GitHubAPIClient) CreateRelease(ctx context.Context, r GitHubRelease) (int64, error) {
	s := func(s string) *string {
		if s == "" {
			return nil
		}
		return github.String(s)
	}

	rel, resp, err := c.client.Repositories.CreateRelease(ctx, r.Owner, r.Repo, &github.RepositoryRelease{
		TagName:         s(r.Tag),
		TargetCommitish: s(r.Commitish),
		Name:            s(r.Name),
		Body:            s(r.Body),
		Draft:           github.Bool(r.Draft),
		Prerelease:      github.Bool(r.Prerelease),
	})
	if err != nil {
		return 0, err
	}

	if resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("github: unexpected status code: %d", resp.StatusCode)
	}

	return rel.GetID(), nil
}

func (c *GitHubAPIClient) UploadAsset(ctx context.Context, owner, repo string, releaseID int64, f *os.File) error {
	_, resp, err := c.client.Repositories.UploadReleaseAsset(
		ctx,
		owner,
		repo,
		releaseID,
		&github.UploadOptions{
			Name: filepath.Base(f.Name()),
		},
		f,
	)
	if err == nil {
		return nil
	}

	if resp != nil && !isTemporaryHTTPStatus(resp.StatusCode) {
		return err
	}

	return TemporaryError{err}
}

// isTemporaryHTTPStatus returns true if the status code is considered temporary, returning
// true if not sure.
func isTemporaryHTTPStatus(status int) bool {
	switch status {
	case http.StatusUnprocessableEntity, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return false
	default:
		return true
	}
}

type githubPublisher struct {
	cfg     config.GitHub
	client  GitHubClient
	opts    Options
	infoLog logg.LevelLogger
}

func newGitHubPublisher(ctx context.Context, cfg config.GitHub, opts Options) (*githubPublisher, error) {
	p := &githubPublisher{
		cfg:     cfg,
		opts:    opts,
		infoLog: opts.InfoLog.WithField("target", publishtypes.GitHub.String()),
	}
	if opts.Try {
		p.client = &FakeGitHubClient{}
		return p, nil
	}
	client, err := NewGitHubClient(ctx, opts.Getenv)
	if err != nil {
		return nil, err
	}
	p.client = client
	return p, nil
}

func (p *githubPublisher) Type() publishtypes.Type {
	return publishtypes.GitHub
}

// ResolveUsername returns the GitHub login of the author of commit in the target repository.
// It returns an empty string if the client cannot resolve users.
func (p *githubPublisher) ResolveUsername(ctx context.Context, commit, author string) (string, error) {
	r, ok := p.client.(UsernameResolver)
	if !ok {
		return "", nil
	}
	return r.ResolveUsername(ctx, p.cfg.Owner, p.cfg.Repo, commit, author)
}

func (p *githubPublisher) Publish(ctx context.Context, req Request) error {
	tctx := model.NewTemplateContext(req.Meta.ForBuild())

	name := req.Tag
	if p.cfg.Name != "" {
		var err error
		if name, err = templ.Sprintt(p.cfg.Name, tctx); err != nil {
			return err
		}
	}

	body := req.ReleaseNotes
	if p.cfg.ReleaseNotesFile != "" {
		b, err := os.ReadFile(p.cfg.ReleaseNotesFile)
		if err != nil {
			return err
		}
		body = string(b)
	}
	body = truncateBody(body, maxReleaseBodyLength)

	releaseID, err := p.client.CreateRelease(ctx, GitHubRelease{
		Owner:      p.cfg.Owner,
		Repo:       p.cfg.Repo,
		Tag:        req.Tag,
		Commitish:  req.Meta.FullCommit,
		Name:       name,
		Body:       body,
		Draft:      p.cfg.Draft,
		Prerelease: p.cfg.Prerelease || req.Meta.IsPrerelease,
	})
	if err != nil {
		return fmt.Errorf("create release: %w", err)
	}

	p.infoLog.Log(logg.String(fmt.Sprintf("Created release %s in %s/%s", req.Tag, p.cfg.Owner, p.cfg.Repo)))

	return p.opts.uploadAll(ctx, p.infoLog, req.Files(), func(ctx context.Context, filename string) error {
		p.infoLog.WithField("file", filename).Log(logg.String("Uploading"))
		return withRetries(func() (error, bool) {
			f, err := os.Open(filename)
			if err != nil {
				return err, false
			}
			defer f.Close()
			err = p.client.UploadAsset(ctx, p.cfg.Owner, p.cfg.Repo, releaseID, f)
			return err, err != nil && isTemporary(err)
		})
	})
}

// truncateBody shortens s to at most max bytes without splitting a rune.
func truncateBody(s string, max int) string {
	if len(s) <= max {
		return s
	}
	i := max
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i]
}
