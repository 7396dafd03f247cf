// Package audit writes one structured line per successful mutation.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/auth"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/obs"
)

// LogEvent writes an audit entry enriched with the request id and caller.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		"type":   "audit",
		"event":  event,
		"fields": map[string]any{},
	}
	if rid := obs.RequestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if caller, ok := auth.CallerFromContext(ctx); ok {
		entry["user_id"] = caller.ID
		if caller.Email != "" {
			entry["user_email"] = caller.Email
		}
	}
	if len(fields) > 0 {
		cp := make(map[string]any, len(fields))
		for k, v := range fields {
			cp[k] = v
		}
		entry["fields"] = cp
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
