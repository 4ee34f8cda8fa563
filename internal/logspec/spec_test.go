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

package logspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageIsChanged(t *testing.T) {
	specs := map[string]Entry{"delete-server": {Template: "Deleting server"}}
	event := Event{"message": []string{"delete-server"}, "a": "b"}

	got := GetValidatedEvent(event, specs)

	require := assert.New(t)
	require.Len(got, 1)
	require.Equal([]string{"Deleting server"}, got[0]["message"])
	require.Equal("delete-server", got[0]["otter_msg_type"])
	require.Equal("b", got[0]["a"])
}

func TestMessageNotFoundIsUnchanged(t *testing.T) {
	event := Event{"message": []string{"unknown"}, "a": "b"}
	got := GetValidatedEvent(event, map[string]Entry{})
	assert.Equal(t, []Event{event}, got)
}

func TestErrorWhyIsChanged(t *testing.T) {
	specs := map[string]Entry{"delete-server": {Template: "Deleting server"}}
	event := Event{"isError": true, "why": "delete-server", "a": "b"}

	got := GetValidatedEvent(event, specs)

	require := assert.New(t)
	require.Len(got, 1)
	require.Equal("Deleting server", got[0]["why"])
	require.Equal("delete-server", got[0]["otter_msg_type"])
	require.NotContains(got[0], "message")
}

func TestErrorNoWhyButMessageFallsBackAndRewritesBoth(t *testing.T) {
	specs := map[string]Entry{"delete-server": {Template: "Deleting server"}}
	event := Event{"isError": true, "a": "b", "message": []string{"delete-server"}}

	got := GetValidatedEvent(event, specs)

	require := assert.New(t)
	require.Len(got, 1)
	require.Equal("Deleting server", got[0]["why"])
	require.Equal([]string{"Deleting server"}, got[0]["message"])
	require.Equal("delete-server", got[0]["otter_msg_type"])
}

func TestErrorNoWhyNoMessageIsUnchanged(t *testing.T) {
	event := Event{"isError": true, "a": "b"}
	got := GetValidatedEvent(event, map[string]Entry{"unused": {Template: "x"}})
	assert.Equal(t, []Event{event}, got)
}

func TestErrorNotFoundIsUnchanged(t *testing.T) {
	event := Event{"isError": true, "why": "unknown", "a": "b"}
	got := GetValidatedEvent(event, map[string]Entry{})
	assert.Equal(t, []Event{event}, got)
}

func TestCallableSpecSingleSplitOmitsSplitMessage(t *testing.T) {
	specs := map[string]Entry{
		"foo-bar": {Split: func(e Event) []Split {
			return []Split{{Event: e, Message: e["ab"].(string)}}
		}},
	}
	event := Event{"message": []string{"foo-bar"}, "ab": "cd"}

	got := GetValidatedEvent(event, specs)

	require := assert.New(t)
	require.Len(got, 1)
	require.Equal([]string{"cd"}, got[0]["message"])
	require.Equal("foo-bar", got[0]["otter_msg_type"])
	require.NotContains(got[0], "split_message")
}

func TestCallableSpecSplitEventsTagsEach(t *testing.T) {
	specs := map[string]Entry{
		"foo-bar": {Split: func(e Event) []Split {
			second := cloneEvent(e)
			return []Split{{Event: e, Message: e["ab"].(string)}, {Event: second, Message: "another"}}
		}},
	}
	event := Event{"isError": true, "why": "foo-bar", "ab": "cd"}

	got := GetValidatedEvent(event, specs)

	require := assert.New(t)
	require.Len(got, 2)
	require.Equal("cd", got[0]["why"])
	require.Equal("1 of 2", got[0]["split_message"])
	require.Equal("another", got[1]["why"])
	require.Equal("2 of 2", got[1]["split_message"])
	for _, e := range got {
		require.Equal("foo-bar", e["otter_msg_type"])
		require.Equal("cd", e["ab"])
	}
}
