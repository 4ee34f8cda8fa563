/*
Copyright 2021 The Crossplane Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package feed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const simpleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <link rel="previous" href="http://example.org/feed/?marker=urn:uuid:1225c695-cfb8-4ebb-aaaa-80da344efa6a"/>
  <link rel="next" href="http://example.org/feed/?marker=urn:uuid:e5caea3a-188c-11e6-8692-acbc32badee9"/>
  <entry>
    <summary>compute.instance.update</summary>
    <category term="REGION=dfw"/>
    <category term="DATACENTER=dfw1"/>
    <updated>2003-12-13T18:30:02Z</updated>
    <content>Hello.</content>
  </entry>
</feed>`

func TestParseSimpleAtomFeed(t *testing.T) {
	f, err := Parse(strings.NewReader(simpleAtom))
	require.NoError(t, err)

	entries := Entries(f)
	require.Len(t, entries, 1)
	entry := entries[0]

	assert.Equal(t, "compute.instance.update", Summary(entry))
	assert.Equal(t, "Hello.", Content(entry))
	assert.Equal(t, "2003-12-13T18:30:02Z", Updated(entry))
	assert.Equal(t, []string{"REGION=dfw", "DATACENTER=dfw1"}, Categories(entry))
	assert.Equal(t, []string{"REGION=dfw"}, Categories(entry, "REGION="))

	assert.Equal(t,
		"http://example.org/feed/?marker=urn:uuid:1225c695-cfb8-4ebb-aaaa-80da344efa6a",
		PreviousLink(f))
	assert.Equal(t,
		"http://example.org/feed/?marker=urn:uuid:e5caea3a-188c-11e6-8692-acbc32badee9",
		NextLink(f))
}

func TestLinksAbsentReturnEmpty(t *testing.T) {
	f, err := Parse(strings.NewReader(`<feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	require.NoError(t, err)
	assert.Empty(t, NextLink(f))
	assert.Empty(t, PreviousLink(f))
}
