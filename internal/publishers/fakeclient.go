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
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/minio/minio-go/v7"
)

// The fake clients below are used in -try mode and in tests.
// They print what they would have done and record it.

// FakeGitHubClient records releases and uploaded asset names.
type FakeGitHubClient struct {
	// If set, returned from CreateRelease.
	Err error

	// Maps commit author to login in ResolveUsername.
	Usernames map[string]string

	mu        sync.Mutex
	releaseID int64
	releases  []GitHubRelease
	assets    []string
}

func (c *FakeGitHubClient) CreateRelease(ctx context.Context, r GitHubRelease) (int64, error) {
	if c.Err != nil {
		return 0, c.Err
	}
	// Tests depend on this string.
	fmt.Printf("fake: github: release %s in %s/%s\n", r.Tag, r.Owner, r.Repo)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseID = rand.Int63()
	c.releases = append(c.releases, r)
	return c.releaseID, nil
}

func (c *FakeGitHubClient) UploadAsset(ctx context.Context, owner, repo string, releaseID int64, f *os.File) error {
	if f == nil {
		return fmt.Errorf("fake: nil file")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.releaseID != releaseID {
		return fmt.Errorf("fake: releaseID mismatch: %d != %d", c.releaseID, releaseID)
	}
	c.assets = append(c.assets, filepath.Base(f.Name()))
	return nil
}

func (c *FakeGitHubClient) ResolveUsername(ctx context.Context, owner, repo, sha, author string) (string, error) {
	return c.Usernames[author], nil
}

// Releases returns the created releases.
func (c *FakeGitHubClient) Releases() []GitHubRelease {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]GitHubRelease(nil), c.releases...)
}

// Assets returns the sorted names of the uploaded assets.
func (c *FakeGitHubClient) Assets() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedCopy(c.assets)
}

// FakeGitLabClient records uploaded package files and releases.
type FakeGitLabClient struct {
	mu       sync.Mutex
	files    []string
	releases []GitLabRelease
}

func (c *FakeGitLabClient) UploadPackageFile(ctx context.Context, project, version, filename string, r io.Reader) error {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = append(c.files, filename)
	return nil
}

func (c *FakeGitLabClient) CreateRelease(ctx context.Context, r GitLabRelease) error {
	fmt.Printf("fake: gitlab: release %s in %s\n", r.Tag, r.Project)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releases = append(c.releases, r)
	return nil
}

// Files returns the sorted names of the uploaded package files.
func (c *FakeGitLabClient) Files() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedCopy(c.files)
}

// Releases returns the created releases.
func (c *FakeGitLabClient) Releases() []GitLabRelease {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]GitLabRelease(nil), c.releases...)
}

// FakeDockerClient records built and pushed image references.
type FakeDockerClient struct {
	// If set, reported as an error in the push stream for this ref.
	FailPush string

	mu     sync.Mutex
	built  []string
	pushed []string
}

func (c *FakeDockerClient) ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error) {
	if _, err := io.Copy(io.Discard, buildContext); err != nil {
		return types.ImageBuildResponse{}, err
	}
	fmt.Printf("fake: docker: build %v\n", options.Tags)
	c.mu.Lock()
	c.built = append(c.built, options.Tags...)
	c.mu.Unlock()
	return types.ImageBuildResponse{Body: stream(`{"stream":"Successfully built"}`)}, nil
}

func (c *FakeDockerClient) ImagePush(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error) {
	if options.RegistryAuth == "" {
		return nil, fmt.Errorf("fake: missing registry auth")
	}
	if ref == c.FailPush {
		return stream(`{"status":"Preparing"}`, `{"errorDetail":{"message":"denied"},"error":"denied"}`), nil
	}
	fmt.Printf("fake: docker: push %s\n", ref)
	c.mu.Lock()
	c.pushed = append(c.pushed, ref)
	c.mu.Unlock()
	return stream(`{"status":"Pushed"}`), nil
}

// Built returns the image references built.
func (c *FakeDockerClient) Built() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.built...)
}

// Pushed returns the image references pushed, in push order.
func (c *FakeDockerClient) Pushed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.pushed...)
}

// FakeS3Client records the uploaded object keys.
type FakeS3Client struct {
	mu   sync.Mutex
	keys []string
}

func (c *FakeS3Client) FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	fi, err := os.Stat(filePath)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	fmt.Printf("fake: s3: put s3://%s/%s\n", bucketName, objectName)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, objectName)
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: fi.Size()}, nil
}

// Keys returns the sorted object keys.
func (c *FakeS3Client) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedCopy(c.keys)
}

func sortedCopy(s []string) []string {
	c := append([]string(nil), s...)
	sort.Strings(c)
	return c
}

func stream(lines ...string) io.ReadCloser {
	var s string
	for _, l := range lines {
		s += l + "\n"
	}
	return io.NopCloser(strings.NewReader(s))
}
