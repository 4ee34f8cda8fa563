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

// Package logspec implements §4.6's log-spec wrapper: a registered table
// keyed by a log event's first message element (or, for error events, its
// "why") rewrites the event into a human-readable template and tags it
// with the message type that produced it.
package logspec

import "fmt"

// Event is a single log record: free-form fields plus the two the spec
// table keys off, "message" and, for error events, "why".
type Event map[string]any

// Split pairs a (possibly modified) event with the message or why text
// that should replace the original in that split record.
type Split struct {
	Event   Event
	Message string
}

// SplitFunc is a spec entry that turns one event into several records —
// one logical event split across multiple log lines.
type SplitFunc func(Event) []Split

// Entry is one row of the spec table. Exactly one of Template or Split is
// set: Template is a literal human-readable rewrite; Split defers to a
// function that can emit more than one record.
type Entry struct {
	Template string
	Split    SplitFunc
}

// GetValidatedEvent implements §4.6: look up event's key in specs (its
// "why" if isError and present, else the first message element) and
// rewrite message/why accordingly, tagging the result with
// otter_msg_type. An event whose key has no entry is returned unchanged.
func GetValidatedEvent(event Event, specs map[string]Entry) []Event {
	isError, _ := event["isError"].(bool)

	if isError {
		if why, ok := event["why"].(string); ok {
			return applySpec(event, specs, why, true)
		}
		if key, ok := messageKey(event); ok {
			return applySpec(event, specs, key, true)
		}
		return []Event{event}
	}

	key, ok := messageKey(event)
	if !ok {
		return []Event{event}
	}
	return applySpec(event, specs, key, false)
}

func messageKey(event Event) (string, bool) {
	msg, ok := event["message"].([]string)
	if !ok || len(msg) == 0 {
		return "", false
	}
	return msg[0], true
}

func applySpec(event Event, specs map[string]Entry, key string, isError bool) []Event {
	entry, found := specs[key]
	if !found {
		return []Event{event}
	}

	if entry.Split != nil {
		splits := entry.Split(event)
		out := make([]Event, len(splits))
		for i, s := range splits {
			e := cloneEvent(s.Event)
			e["otter_msg_type"] = key
			if isError {
				e["why"] = s.Message
			} else {
				e["message"] = []string{s.Message}
			}
			if len(splits) > 1 {
				e["split_message"] = fmt.Sprintf("%d of %d", i+1, len(splits))
			}
			out[i] = e
		}
		return out
	}

	e := cloneEvent(event)
	e["otter_msg_type"] = key
	if isError {
		e["why"] = entry.Template
		if _, hasMessage := e["message"]; hasMessage {
			e["message"] = []string{entry.Template}
		}
	} else {
		e["message"] = []string{entry.Template}
	}
	return []Event{e}
}

func cloneEvent(e Event) Event {
	out := make(Event, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// DefaultSpecs is the message-template table for the events the
// converger itself emits.
func DefaultSpecs() map[string]Entry {
	return map[string]Entry{
		"launch-servers":        {Template: "Launching {num_servers} servers"},
		"delete-server":         {Template: "Deleting {server_id} server"},
		"group-already-deleted": {Template: "Scaling group no longer exists, clearing divergence entry"},
		"already-converging":    {Template: "Convergence already in progress for this group"},
		"execute-convergence":   {Split: SplitExecuteConvergence},
	}
}
