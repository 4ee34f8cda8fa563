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

import "encoding/json"

// defaultMaxRecordBytes caps the serialized-JSON length an
// "execute-convergence" record may reach before it gets split (§4.6).
const defaultMaxRecordBytes = 65536

// NewExecuteConvergenceSplit builds a Split function for the
// "execute-convergence" message type, capping each record's serialized
// length at maxRecordBytes. When the unsplit record overflows the cap, a
// header record (everything but the two lists) is emitted first,
// followed by records chunked from whichever list is larger, then by
// records chunked from the other list, each record's serialized length
// kept at or under the cap. An empty list yields no records.
func NewExecuteConvergenceSplit(maxRecordBytes int) SplitFunc {
	return func(event Event) []Split {
		return splitExecuteConvergence(event, maxRecordBytes)
	}
}

// SplitExecuteConvergence is NewExecuteConvergenceSplit bound to the
// default cap.
var SplitExecuteConvergence = NewExecuteConvergenceSplit(defaultMaxRecordBytes)

func splitExecuteConvergence(event Event, maxRecordBytes int) []Split {
	if recordBytes(event) <= maxRecordBytes {
		return []Split{{Event: event, Message: "execute-convergence"}}
	}

	servers, _ := event["servers"].([]string)
	lbNodes, _ := event["lb_nodes"].([]string)

	header := cloneEvent(event)
	delete(header, "servers")
	delete(header, "lb_nodes")
	header["num_servers"] = len(servers)
	header["num_lb_nodes"] = len(lbNodes)
	splits := []Split{{Event: header, Message: "execute-convergence"}}

	field, items := "servers", servers
	other, otherItems := "lb_nodes", lbNodes
	if len(lbNodes) > len(servers) {
		field, items = "lb_nodes", lbNodes
		other, otherItems = "servers", servers
	}

	base := cloneEvent(event)
	delete(base, "servers")
	delete(base, "lb_nodes")

	for _, chunk := range chunkByBytes(base, field, items, maxRecordBytes) {
		splits = append(splits, Split{Event: chunk, Message: "execute-convergence"})
	}
	for _, chunk := range chunkByBytes(base, other, otherItems, maxRecordBytes) {
		splits = append(splits, Split{Event: chunk, Message: "execute-convergence"})
	}

	return splits
}

// chunkByBytes packs items into base[field], growing a chunk one item at
// a time and closing it as soon as the next item would push the
// serialized record over maxRecordBytes. A single item that alone
// exceeds the cap still gets its own record rather than being dropped or
// looping forever.
func chunkByBytes(base Event, field string, items []string, maxRecordBytes int) []Event {
	var chunks []Event
	for start := 0; start < len(items); {
		end := start + 1
		for end < len(items) {
			candidate := cloneEvent(base)
			candidate[field] = items[start : end+1]
			if recordBytes(candidate) > maxRecordBytes {
				break
			}
			end++
		}
		chunk := cloneEvent(base)
		chunk[field] = items[start:end]
		chunks = append(chunks, chunk)
		start = end
	}
	return chunks
}

func recordBytes(event Event) int {
	b, err := json.Marshal(event)
	if err != nil {
		return 0
	}
	return len(b)
}
