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

// Package feed reads the atom feeds that providers publish for externally
// triggered divergence marking (§6): entries' summary, content, updated
// timestamp and categories, plus the feed's next/previous pagination
// links. No atom or general XML parsing library appears anywhere in the
// retrieval pack, so this reads the feed with the standard library's
// encoding/xml, the one ambient concern in this module built on stdlib
// rather than a pack dependency.
package feed

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Category is an atom <category> element.
type Category struct {
	Term string `xml:"term,attr"`
}

// Link is an atom <link> element.
type Link struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

// Entry is a single atom feed entry.
type Entry struct {
	Summary    string     `xml:"summary"`
	Content    string     `xml:"content"`
	Updated    string     `xml:"updated"`
	Categories []Category `xml:"category"`
}

// Feed is a parsed atom feed.
type Feed struct {
	XMLName xml.Name `xml:"feed"`
	Entries []Entry  `xml:"entry"`
	Links   []Link   `xml:"link"`
}

// Parse decodes an atom feed document.
func Parse(r io.Reader) (*Feed, error) {
	var f Feed
	if err := xml.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Wrap(err, "cannot parse atom feed")
	}
	return &f, nil
}

// Entries returns the feed's entries, in document order.
func Entries(f *Feed) []Entry {
	return f.Entries
}

// Summary returns an entry's summary text.
func Summary(e Entry) string {
	return e.Summary
}

// Content returns an entry's content text.
func Content(e Entry) string {
	return e.Content
}

// Updated returns an entry's updated timestamp, verbatim.
func Updated(e Entry) string {
	return e.Updated
}

// Categories returns an entry's category terms. With a non-empty prefix,
// only terms starting with it are returned.
func Categories(e Entry, prefix ...string) []string {
	var want string
	if len(prefix) > 0 {
		want = prefix[0]
	}
	terms := make([]string, 0, len(e.Categories))
	for _, c := range e.Categories {
		if want == "" || strings.HasPrefix(c.Term, want) {
			terms = append(terms, c.Term)
		}
	}
	return terms
}

// NextLink returns the feed's "next" pagination link, or "" if absent.
func NextLink(f *Feed) string {
	return linkByRel(f, "next")
}

// PreviousLink returns the feed's "previous" pagination link, or "" if
// absent.
func PreviousLink(f *Feed) string {
	return linkByRel(f, "previous")
}

func linkByRel(f *Feed, rel string) string {
	for _, l := range f.Links {
		if l.Rel == rel {
			return l.Href
		}
	}
	return ""
}
