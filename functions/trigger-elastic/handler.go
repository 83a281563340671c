package main

import (
	"context"
	"log/slog"

	"github.com/letmevibethatforyou/scoutx"
	"github.com/letmevibethatforyou/scoutx/internal/ddb"
)

type action int

const (
	actionUpsert action = iota + 1
	actionDelete
)

func (a action) String() string {
	if a == actionDelete {
		return "delete"
	}
	return "upsert"
}

// Handler applies DynamoDB stream records to the search engine.
type Handler struct {
	engine scoutx.Engine
}

func NewHandler(engine scoutx.Engine) *Handler {
	return &Handler{engine: engine}
}

// HandleDynamoDBEvent groups consecutive records with the same action into
// one bulk call, so that the stream order of changes to a key is kept.
func (h *Handler) HandleDynamoDBEvent(ctx context.Context, e ddb.DynamoDBEvent) error {
	slog.InfoContext(ctx, "Processing DynamoDB stream records", "record_count", len(e.Records))

	var (
		pending []scoutx.Searchable
		current action
	)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		defer func() { pending = nil }()

		slog.InfoContext(ctx, "Applying stream batch", "action", current, "count", len(pending))
		if current == actionDelete {
			return h.engine.BulkDelete(ctx, pending)
		}
		return h.engine.BulkUpsert(ctx, pending)
	}

	for _, record := range e.Records {
		act, parsed, ok := h.parseRecord(ctx, record)
		if !ok {
			continue
		}
		if act != current {
			if err := flush(); err != nil {
				slog.ErrorContext(ctx, "Error applying stream batch", "error", err)
				return err
			}
			current = act
		}
		pending = append(pending, parsed)
	}

	if err := flush(); err != nil {
		slog.ErrorContext(ctx, "Error applying stream batch", "error", err)
		return err
	}
	return nil
}

func (h *Handler) parseRecord(ctx context.Context, record ddb.DynamoDBEventRecord) (action, scoutx.Searchable, bool) {
	switch ddb.DynamoDBOperationType(record.EventName) {
	case ddb.DynamoDBOperationTypeInsert, ddb.DynamoDBOperationTypeModify:
		if record.Change.NewImage == nil {
			slog.WarnContext(ctx, "No new image for insert/modify operation, skipping record", "event_id", record.EventID)
			return 0, nil, false
		}

		parsed, err := ddb.UnmarshalRecord(record.Change.NewImage)
		if err != nil {
			slog.WarnContext(ctx, "Failed to unmarshal record, skipping", "event_id", record.EventID, "error", err)
			return 0, nil, false
		}

		if parsed.ID == "" {
			slog.WarnContext(ctx, "Missing ID (pk) in record, skipping record", "event_id", record.EventID)
			return 0, nil, false
		}
		if parsed.IndexName == "" {
			slog.WarnContext(ctx, "Missing IndexName (sk) in record, skipping record", "event_id", record.EventID)
			return 0, nil, false
		}
		if parsed.Object == nil {
			slog.WarnContext(ctx, "Missing Object in record, skipping record", "id", parsed.ID, "index", parsed.IndexName)
			return 0, nil, false
		}
		return actionUpsert, parsed, true

	case ddb.DynamoDBOperationTypeRemove:
		parsed, err := ddb.UnmarshalRecord(record.Change.Keys)
		if err != nil {
			slog.WarnContext(ctx, "Failed to unmarshal keys for delete operation, skipping", "event_id", record.EventID, "error", err)
			return 0, nil, false
		}

		if parsed.ID == "" || parsed.IndexName == "" {
			slog.WarnContext(ctx, "Missing ID or IndexName in delete record, skipping record", "event_id", record.EventID)
			return 0, nil, false
		}
		return actionDelete, parsed, true

	default:
		slog.InfoContext(ctx, "Ignoring event type", "event_type", record.EventName)
		return 0, nil, false
	}
}
