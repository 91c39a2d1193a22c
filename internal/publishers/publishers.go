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

// Package publishers hands a finished release to the configured publish targets.
package publishers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bep/logg"
	"github.com/bep/workers"
	"github.com/rlsr/rlsr/internal/common/logging"
	"github.com/rlsr/rlsr/internal/config"
	"github.com/rlsr/rlsr/internal/model"
	"github.com/rlsr/rlsr/internal/publishers/publishtypes"
)

// Request is what a finished release publishes.
type Request struct {
	Release config.Release

	// Archive paths in the order they were produced.
	Archives []string

	// The checksum manifest, empty if not configured.
	ChecksumFile string

	// Image tags produced by buildx builds.
	ImageTags []string

	// The resolved release tag.
	Tag string

	Meta model.TemplateMeta

	// Rendered release notes, may be empty.
	ReleaseNotes string
}

// Files returns the archives followed by the checksum manifest, if any.
func (r Request) Files() []string {
	files := append([]string(nil), r.Archives...)
	if r.ChecksumFile != "" {
		files = append(files, r.ChecksumFile)
	}
	return files
}

// Publisher publishes a release to one target.
type Publisher interface {
	Type() publishtypes.Type
	Publish(ctx context.Context, req Request) error
}

// AuthorResolver is implemented by publishers that can map a commit author
// to a username on their platform, e.g. a GitHub login.
type AuthorResolver interface {
	ResolveUsername(ctx context.Context, commit, author string) (string, error)
}

// FindAuthorResolver returns the first publisher that is an AuthorResolver, or nil.
func FindAuthorResolver(publishers []Publisher) AuthorResolver {
	for _, p := range publishers {
		if r, ok := p.(AuthorResolver); ok {
			return r
		}
	}
	return nil
}

// PublishError is a failure of one publish target.
type PublishError struct {
	Type publishtypes.Type
	Err  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish: %s: %v", e.Type, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Options configures New.
type Options struct {
	InfoLog logg.LevelLogger

	// Used to upload files in parallel.
	Workforce *workers.Workforce

	// Try replaces all clients with fakes that only log.
	Try bool

	// Getenv looks up credentials. Defaults to os.Getenv.
	Getenv func(string) string
}

func (o *Options) init() {
	if o.InfoLog == nil {
		o.InfoLog = logging.Discard().WithLevel(logg.LevelInfo)
	}
	if o.Workforce == nil {
		o.Workforce = workers.New(1)
	}
	if o.Getenv == nil {
		o.Getenv = os.Getenv
	}
}

// New creates a Publisher for every target configured in targets.
func New(ctx context.Context, targets config.Targets, opts Options) ([]Publisher, error) {
	opts.init()

	var publishers []Publisher
	for _, typ := range targets.Types() {
		var (
			p   Publisher
			err error
		)
		switch typ {
		case publishtypes.GitHub:
			p, err = newGitHubPublisher(ctx, *targets.GitHub, opts)
		case publishtypes.GitLab:
			p, err = newGitLabPublisher(*targets.GitLab, opts)
		case publishtypes.Docker:
			p, err = newDockerPublisher(*targets.Docker, opts)
		case publishtypes.S3:
			p, err = newS3Publisher(*targets.S3, opts)
		default:
			err = fmt.Errorf("unsupported publish type %q", typ)
		}
		if err != nil {
			return nil, &PublishError{Type: typ, Err: err}
		}
		publishers = append(publishers, p)
	}

	return publishers, nil
}

// Publish runs every publisher, continuing past failures.
// The failures are returned joined, one *PublishError per failed target.
func Publish(ctx context.Context, publishers []Publisher, req Request) error {
	var errs []error
	for _, p := range publishers {
		if err := p.Publish(ctx, req); err != nil {
			errs = append(errs, &PublishError{Type: p.Type(), Err: err})
		}
	}
	return errors.Join(errs...)
}

// uploadAll calls upload for every file using the workforce.
// A failed upload does not stop the others; the failures are returned joined in file order.
// In try mode the files are only logged.
func (o Options) uploadAll(ctx context.Context, log logg.LevelLogger, files []string, upload func(ctx context.Context, filename string) error) error {
	if o.Try {
		for _, filename := range files {
			log.WithField("file", filename).Log(logg.String("Would upload"))
		}
		return nil
	}

	// Tasks always return nil so a failing upload never cancels its siblings.
	errs := make([]error, len(files))
	r, ctx := o.Workforce.Start(ctx)
	for i, filename := range files {
		i, filename := i, filename
		r.Run(func() error {
			if err := upload(ctx, filename); err != nil {
				errs[i] = fmt.Errorf("upload %s: %w", filepath.Base(filename), err)
			}
			return nil
		})
	}
	if err := r.Wait(); err != nil {
		return err
	}
	return errors.Join(errs...)
}
