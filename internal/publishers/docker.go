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
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/bep/logg"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/rlsr/rlsr/internal/config"
	"github.com/rlsr/rlsr/internal/publishers/publishtypes"
)

const (
	dockerUsernameEnvVar = "DOCKER_USERNAME"
	dockerPasswordEnvVar = "DOCKER_PASSWORD"
)

// DockerClient is the part of the Docker Engine API used to build and push images.
// *client.Client implements it.
type DockerClient interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	ImagePush(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error)
}

var _ DockerClient = (*client.Client)(nil)

// NewDockerClient creates a client configured from the DOCKER_* environment variables.
func NewDockerClient() (*client.Client, error) {
	c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return c, nil
}

type dockerPublisher struct {
	cfg     config.Docker
	client  DockerClient
	opts    Options
	infoLog logg.LevelLogger
}

func newDockerPublisher(cfg config.Docker, opts Options) (*dockerPublisher, error) {
	p := &dockerPublisher{
		cfg:     cfg,
		opts:    opts,
		infoLog: opts.InfoLog.WithField("target", publishtypes.Docker.String()),
	}
	if opts.Try {
		p.client = &FakeDockerClient{}
		return p, nil
	}
	client, err := NewDockerClient()
	if err != nil {
		return nil, err
	}
	p.client = client
	return p, nil
}

func (p *dockerPublisher) Type() publishtypes.Type {
	return publishtypes.Docker
}

// Publish builds and pushes <image>:<tag>, then pushes the buildx image tags if configured.
func (p *dockerPublisher) Publish(ctx context.Context, req Request) error {
	ref := p.cfg.Image + ":" + req.Tag

	if p.opts.Try {
		p.infoLog.WithField("image", ref).Log(logg.String("Would build"))
	} else if err := p.build(ctx, ref); err != nil {
		return fmt.Errorf("build %s: %w", ref, err)
	}

	refs := []string{ref}
	if p.cfg.PushBuildTags {
		refs = append(refs, req.ImageTags...)
	}

	auth, err := p.registryAuth()
	if err != nil {
		return err
	}

	var errs []error
	for _, r := range refs {
		p.infoLog.WithField("image", r).Log(logg.String("Pushing"))
		if err := p.push(ctx, r, auth); err != nil {
			errs = append(errs, fmt.Errorf("push %s: %w", r, err))
		}
	}

	return errors.Join(errs...)
}

func (p *dockerPublisher) build(ctx context.Context, ref string) error {
	p.infoLog.WithField("image", ref).Log(logg.String("Building"))

	buildCtx, err := archive.TarWithOptions(p.cfg.Context, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("create build context: %w", err)
	}
	defer buildCtx.Close()

	resp, err := p.client.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:       []string{ref},
		Dockerfile: p.cfg.Dockerfile,
		Remove:     true,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return readMessages(resp.Body)
}

func (p *dockerPublisher) push(ctx context.Context, ref, auth string) error {
	rc, err := p.client.ImagePush(ctx, ref, image.PushOptions{RegistryAuth: auth})
	if err != nil {
		return err
	}
	defer rc.Close()

	return readMessages(rc)
}

func (p *dockerPublisher) registryAuth() (string, error) {
	username := p.opts.Getenv(dockerUsernameEnvVar)
	if username == "" {
		// The daemon requires a value.
		return registry.EncodeAuthConfig(registry.AuthConfig{})
	}
	return registry.EncodeAuthConfig(registry.AuthConfig{
		Username: username,
		Password: p.opts.Getenv(dockerPasswordEnvVar),
	})
}

// readMessages drains a Docker Engine progress stream and returns the first error reported in it.
func readMessages(r io.Reader) error {
	dec := json.NewDecoder(r)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("decode docker output: %w", err)
		}
		if msg.Error != nil {
			return msg.Error
		}
	}
}
