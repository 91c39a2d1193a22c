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

package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	c := qt.New(t)

	m := New()
	m.ObserveBuild("main", 2*time.Second, nil)
	m.ObserveBuild("main", time.Second, nil)
	m.ObserveBuild("main", time.Second, errors.New("boom"))
	m.ObservePublish("github", nil)

	c.Assert(testutil.ToFloat64(m.builds.WithLabelValues("main", OutcomeSuccess)), qt.Equals, 2.0)
	c.Assert(testutil.ToFloat64(m.builds.WithLabelValues("main", OutcomeFailure)), qt.Equals, 1.0)
	c.Assert(testutil.ToFloat64(m.publishes.WithLabelValues("github", OutcomeSuccess)), qt.Equals, 1.0)
	c.Assert(testutil.CollectAndCount(m.buildDuration), qt.Equals, 1)

	dir := t.TempDir()
	archive := filepath.Join(dir, "a.zip")
	c.Assert(os.WriteFile(archive, make([]byte, 1234), 0o644), qt.IsNil)
	c.Assert(m.AddArchive("main", archive), qt.IsNil)
	c.Assert(m.AddArchive("main", archive), qt.IsNil)
	c.Assert(testutil.ToFloat64(m.archiveBytes.WithLabelValues("main")), qt.Equals, 2468.0)
	c.Assert(m.AddArchive("main", filepath.Join(dir, "missing.zip")), qt.Not(qt.IsNil))

	c.Run("WriteFile", func(c *qt.C) {
		filename := filepath.Join(dir, "rlsr.prom")
		c.Assert(m.WriteFile(filename), qt.IsNil)
		b, err := os.ReadFile(filename)
		c.Assert(err, qt.IsNil)
		s := string(b)
		c.Assert(s, qt.Contains, `rlsr_builds_total{outcome="success",release="main"} 2`)
		c.Assert(s, qt.Contains, `rlsr_archive_bytes_total{release="main"} 2468`)
		c.Assert(strings.Contains(s, "rlsr_build_duration_seconds_bucket"), qt.IsTrue)
	})
}

func TestNilMetrics(t *testing.T) {
	c := qt.New(t)

	var m *Metrics
	m.ObserveBuild("main", time.Second, nil)
	m.ObservePublish("s3", nil)
	c.Assert(m.AddArchive("main", "does-not-exist"), qt.IsNil)
	c.Assert(m.WriteFile(filepath.Join(t.TempDir(), "x.prom")), qt.IsNil)
}
