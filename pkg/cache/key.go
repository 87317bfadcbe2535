/*
 * Copyright 2025 Scholarsys Labs.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/scholarsys/paperscout/pkg/models"
)

// Key derives the cache key for one paper and configuration pair. The
// configuration fingerprint covers every field that can affect discovery
// output and is independent of source order, so equivalent configurations
// share an entry.
func Key(paperID string, config *models.DiscoveryConfiguration) string {
	h := sha256.New()
	h.Write([]byte(paperID))
	h.Write([]byte{0})
	h.Write([]byte(configFingerprint(config)))

	return hex.EncodeToString(h.Sum(nil))
}

func configFingerprint(config *models.DiscoveryConfiguration) string {
	var b strings.Builder

	b.WriteString("mode=")
	b.WriteString(string(config.Mode))
	b.WriteString("|sources=")

	for i, source := range config.SortedSources() {
		if i > 0 {
			b.WriteByte(',')
		}

		b.WriteString(string(source))
	}

	b.WriteString("|max_per_source=")
	b.WriteString(strconv.Itoa(config.MaxPerSource))
	b.WriteString("|max_total=")
	b.WriteString(strconv.Itoa(config.MaxTotal))
	b.WriteString("|min_relevance=")
	b.WriteString(strconv.FormatFloat(config.MinRelevance, 'g', -1, 64))
	b.WriteString("|diversity=")
	b.WriteString(string(config.DiversityLevel))
	b.WriteString("|timeout=")
	b.WriteString(strconv.FormatInt(int64(config.Timeout), 10))
	b.WriteString("|parallel=")
	b.WriteString(strconv.FormatBool(config.Parallel))
	b.WriteString("|ai=")
	b.WriteString(strconv.FormatBool(config.EnableAISynthesis))

	return b.String()
}
