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
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Core decorates a zapcore.Core, rewriting each entry's message through
// the spec table before it reaches the wrapped core. This is the Go
// analogue of the observer wrapper in §4.6: it runs ahead of the sink,
// not inside it, so every downstream core (console, file, whatever) sees
// the rewritten record.
type Core struct {
	zapcore.Core
	specs map[string]Entry
}

// NewCore wraps core with the given spec table. A nil table falls back
// to DefaultSpecs.
func NewCore(core zapcore.Core, specs map[string]Entry) *Core {
	if specs == nil {
		specs = DefaultSpecs()
	}
	return &Core{Core: core, specs: specs}
}

// With preserves the decorator across zap's contextual-field chaining.
func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	return &Core{Core: c.Core.With(fields), specs: c.specs}
}

// Write rewrites ent/fields into zero or more records via GetValidatedEvent
// and forwards each to the wrapped core.
func (c *Core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	event := toEvent(ent, fields)
	for _, rewritten := range GetValidatedEvent(event, c.specs) {
		newEnt, newFields := fromEvent(ent, rewritten)
		if err := c.Core.Write(newEnt, newFields); err != nil {
			return err
		}
	}
	return nil
}

func toEvent(ent zapcore.Entry, fields []zapcore.Field) Event {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}

	event := make(Event, len(enc.Fields)+2)
	for k, v := range enc.Fields {
		event[k] = v
	}
	event["message"] = []string{ent.Message}
	if ent.Level >= zapcore.ErrorLevel {
		event["isError"] = true
		event["why"] = ent.Message
	}
	return event
}

func fromEvent(ent zapcore.Entry, event Event) (zapcore.Entry, []zapcore.Field) {
	newEnt := ent

	if isError, _ := event["isError"].(bool); isError {
		if why, ok := event["why"].(string); ok {
			newEnt.Message = why
		}
	} else if msg, ok := event["message"].([]string); ok && len(msg) > 0 {
		newEnt.Message = msg[0]
	}

	fields := make([]zapcore.Field, 0, len(event))
	for k, v := range event {
		switch k {
		case "message", "why", "isError":
			continue
		default:
			fields = append(fields, zap.Any(k, v))
		}
	}
	return newEnt, fields
}
