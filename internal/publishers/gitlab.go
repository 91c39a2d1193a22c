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
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bep/logg"
	"github.com/rlsr/rlsr/internal/config"
	"github.com/rlsr/rlsr/internal/publishers/publishtypes"
	"github.com/xanzy/go-gitlab"
	"golang.org/x/exp/slices"
)

const gitlabTokenEnvVar = "GITLAB_TOKEN"

// The generic package all release files are uploaded to.
const gitlabPackageName = "release"

// GitLabAssetLink links a release to an uploaded file.
type GitLabAssetLink struct {
	Name string
	URL  string

	// "package" or "other".
	LinkType string
}

// GitLabRelease is the release to create.
type GitLabRelease struct {
	Project     string
	Tag         string
	Name        string
	Description string
	Links       []GitLabAssetLink
}

// GitLabClient uploads generic package files and creates releases.
type GitLabClient interface {
	UploadPackageFile(ctx context.Context, project, version, filename string, r io.Reader) error
	CreateRelease(ctx context.Context, r GitLabRelease) error
}

// NewGitLabClient creates a client for the GitLab instance at baseURL authenticated with the GITLAB_TOKEN env var.
func NewGitLabClient(baseURL string, getenv func(string) string) (*GitLabAPIClient, error) {
	token := getenv(gitlabTokenEnvVar)
	if token == "" {
		return nil, fmt.Errorf("missing %q env var", gitlabTokenEnvVar)
	}
	client, err := gitlab.NewClient(token, gitlab.WithBaseURL(strings.TrimSuffix(baseURL, "/")+"/api/v4"))
	if err != nil {
		return nil, err
	}
	return &GitLabAPIClient{client: client}, nil
}

var _ GitLabClient = (*GitLabAPIClient)(nil)

// GitLabAPIClient talks to the GitLab REST API.
type GitLabAPIClient struct {
	client *gitlab.Client
}

func (c *GitLabAPIClient) UploadPackageFile(ctx context.Context, project, version, filename string, r io.Reader) error {
	_, _, err := c.client.GenericPackages.PublishPackageFile(
		project,
		gitlabPackageName,
		version,
		filename,
		r,
		&gitlab.PublishPackageFileOptions{},
		gitlab.WithContext(ctx),
	)
	return err
}

func (c *GitLabAPIClient) CreateRelease(ctx context.Context, r GitLabRelease) error {
	var links []*gitlab.ReleaseAssetLinkOptions
	for _, l := range r.Links {
		linkType := gitlab.PackageLinkType
		if l.LinkType == string(gitlab.OtherLinkType) {
			linkType = gitlab.OtherLinkType
		}
		links = append(links, &gitlab.ReleaseAssetLinkOptions{
			Name:     gitlab.Ptr(l.Name),
			URL:      gitlab.Ptr(l.URL),
			LinkType: gitlab.Ptr(linkType),
		})
	}

	_, _, err := c.client.Releases.CreateRelease(r.Project, &gitlab.CreateReleaseOptions{
		Name:        gitlab.Ptr(r.Name),
		TagName:     gitlab.Ptr(r.Tag),
		Description: gitlab.Ptr(r.Description),
		Assets: &gitlab.ReleaseAssetsOptions{
			Links: links,
		},
	}, gitlab.WithContext(ctx))

	return err
}

type gitlabPublisher struct {
	cfg     config.GitLab
	client  GitLabClient
	opts    Options
	infoLog logg.LevelLogger
}

func newGitLabPublisher(cfg config.GitLab, opts Options) (*gitlabPublisher, error) {
	p := &gitlabPublisher{
		cfg:     cfg,
		opts:    opts,
		infoLog: opts.InfoLog.WithField("target", publishtypes.GitLab.String()),
	}
	if opts.Try {
		p.client = &FakeGitLabClient{}
		return p, nil
	}
	client, err := NewGitLabClient(cfg.URL, opts.Getenv)
	if err != nil {
		return nil, err
	}
	p.client = client
	return p, nil
}

func (p *gitlabPublisher) Type() publishtypes.Type {
	return publishtypes.GitLab
}

func (p *gitlabPublisher) project() string {
	return p.cfg.Owner + "/" + p.cfg.Repo
}

// PackageFileURL returns the download URL of a generic package file.
func (p *gitlabPublisher) PackageFileURL(version, filename string) string {
	return fmt.Sprintf("%s/api/v4/projects/%s/packages/generic/%s/%s/%s",
		strings.TrimSuffix(p.cfg.URL, "/"),
		url.PathEscape(p.project()),
		gitlabPackageName,
		version,
		url.PathEscape(filename),
	)
}

func (p *gitlabPublisher) Publish(ctx context.Context, req Request) error {
	version := strings.TrimPrefix(req.Tag, "v")
	project := p.project()

	var (
		mu    sync.Mutex
		links []GitLabAssetLink
	)

	err := p.opts.uploadAll(ctx, p.infoLog, req.Files(), func(ctx context.Context, filename string) error {
		f, err := os.Open(filename)
		if err != nil {
			return err
		}
		defer f.Close()

		name := filepath.Base(filename)
		p.infoLog.WithField("file", filename).Log(logg.String("Uploading"))
		if err := p.client.UploadPackageFile(ctx, project, version, name, f); err != nil {
			return err
		}

		linkType := string(gitlab.PackageLinkType)
		if filename == req.ChecksumFile {
			linkType = string(gitlab.OtherLinkType)
		}
		mu.Lock()
		links = append(links, GitLabAssetLink{Name: name, URL: p.PackageFileURL(version, name), LinkType: linkType})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}

	slices.SortFunc(links, func(a, b GitLabAssetLink) bool {
		return a.Name < b.Name
	})

	if err := p.client.CreateRelease(ctx, GitLabRelease{
		Project:     project,
		Tag:         req.Tag,
		Name:        req.Tag,
		Description: req.ReleaseNotes,
		Links:       links,
	}); err != nil {
		return fmt.Errorf("create release: %w", err)
	}

	p.infoLog.Log(logg.String(fmt.Sprintf("Created release %s in %s", req.Tag, project)))

	return nil
}
