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
	"path"
	"path/filepath"

	"github.com/bep/logg"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rlsr/rlsr/internal/config"
	"github.com/rlsr/rlsr/internal/publishers/publishtypes"
)

// S3Client uploads files to a bucket.
type S3Client interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

var _ S3Client = (*minio.Client)(nil)

// NewS3Client creates a client for an S3 compatible endpoint.
// Credentials are read from the AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY env vars.
func NewS3Client(cfg config.S3, getenv func(string) string) (*minio.Client, error) {
	creds := credentials.NewStaticV4(
		getenv("AWS_ACCESS_KEY_ID"),
		getenv("AWS_SECRET_ACCESS_KEY"),
		getenv("AWS_SESSION_TOKEN"),
	)
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: !cfg.Insecure,
		Region: cfg.Region,
	})
}

type s3Publisher struct {
	cfg     config.S3
	client  S3Client
	opts    Options
	infoLog logg.LevelLogger
}

func newS3Publisher(cfg config.S3, opts Options) (*s3Publisher, error) {
	p := &s3Publisher{
		cfg:     cfg,
		opts:    opts,
		infoLog: opts.InfoLog.WithField("target", publishtypes.S3.String()),
	}
	if opts.Try {
		p.client = &FakeS3Client{}
		return p, nil
	}
	if opts.Getenv("AWS_ACCESS_KEY_ID") == "" {
		return nil, fmt.Errorf("missing %q env var", "AWS_ACCESS_KEY_ID")
	}
	client, err := NewS3Client(cfg, opts.Getenv)
	if err != nil {
		return nil, err
	}
	p.client = client
	return p, nil
}

func (p *s3Publisher) Type() publishtypes.Type {
	return publishtypes.S3
}

// ObjectName returns the key for filename, <prefix>/<tag>/<base name>.
func (p *s3Publisher) ObjectName(tag, filename string) string {
	return path.Join(p.cfg.Prefix, tag, filepath.Base(filename))
}

func (p *s3Publisher) Publish(ctx context.Context, req Request) error {
	return p.opts.uploadAll(ctx, p.infoLog, req.Files(), func(ctx context.Context, filename string) error {
		key := p.ObjectName(req.Tag, filename)
		p.infoLog.WithField("key", key).Log(logg.String("Uploading " + filename))
		_, err := p.client.FPutObject(ctx, p.cfg.Bucket, key, filename, minio.PutObjectOptions{
			ContentType: contentType(filename),
		})
		return err
	})
}

func contentType(filename string) string {
	if filepath.Ext(filename) == ".txt" {
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}
