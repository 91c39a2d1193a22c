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

// Package checksums computes file digests and writes the checksums.txt manifest.
package checksums

import (
	"bufio"
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bep/workers"
	"github.com/rlsr/rlsr/internal/checksums/checksumtypes"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// Files are read in chunks of this size.
const chunkSize = 64 * 1024

// Checksummer computes a hex encoded digest of a file.
type Checksummer struct {
	algo    checksumtypes.Algorithm
	newHash func() hash.Hash
}

// New returns a Checksummer for the given algorithm.
func New(algo checksumtypes.Algorithm) (*Checksummer, error) {
	var newHash func() hash.Hash
	switch algo {
	case checksumtypes.SHA256:
		newHash = sha256.New
	case checksumtypes.SHA512:
		newHash = sha512.New
	case checksumtypes.SHA3_256:
		newHash = sha3.New256
	case checksumtypes.SHA3_512:
		newHash = sha3.New512
	case checksumtypes.Blake2b:
		newHash = func() hash.Hash {
			h, _ := blake2b.New512(nil)
			return h
		}
	case checksumtypes.Blake2s:
		newHash = func() hash.Hash {
			h, _ := blake2s.New256(nil)
			return h
		}
	case checksumtypes.MD5:
		newHash = md5.New
	case checksumtypes.SHA1:
		newHash = sha1.New
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm %q", algo)
	}
	return &Checksummer{algo: algo, newHash: newHash}, nil
}

// Algorithm returns the algorithm in use.
func (c *Checksummer) Algorithm() checksumtypes.Algorithm {
	return c.algo
}

// Compute returns the lowercase hex digest of the file at filename.
func (c *Checksummer) Compute(filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return c.ComputeReader(f)
}

// ComputeReader returns the lowercase hex digest of everything read from r.
func (c *Checksummer) ComputeReader(r io.Reader) (string, error) {
	h := c.newHash()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// WriteManifest removes any existing manifest at filename and then appends one
// "<base name>\t<digest>\n" line per file in the order given.
// Every line is flushed before the next digest is computed, so a failure leaves a valid prefix.
func WriteManifest(c *Checksummer, filename string, files []string) error {
	if err := os.Remove(filename); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error removing checksums file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("error creating checksums file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, file := range files {
		digest, err := c.Compute(file)
		if err != nil {
			return fmt.Errorf("error computing checksum for %q: %w", file, err)
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", filepath.Base(file), digest); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("error writing checksums file: %w", err)
		}
	}

	return f.Close()
}

// CreateChecksumLines computes the digests of filenames in parallel and returns
// "<base name>\t<digest>" lines sorted by base name.
func CreateChecksumLines(ctx context.Context, w *workers.Workforce, c *Checksummer, filenames ...string) ([]string, error) {
	var mu sync.Mutex
	type line struct {
		name, digest string
	}
	var result []line

	r, _ := w.Start(ctx)

	for _, filename := range filenames {
		filename := filename
		r.Run(func() error {
			digest, err := c.Compute(filename)
			if err != nil {
				return err
			}
			mu.Lock()
			result = append(result, line{name: filepath.Base(filename), digest: digest})
			mu.Unlock()
			return nil
		})
	}

	if err := r.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].name < result[j].name
	})

	lines := make([]string, len(result))
	for i, l := range result {
		lines[i] = l.name + "\t" + l.digest
	}

	return lines, nil
}
