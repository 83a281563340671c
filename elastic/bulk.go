package elastic

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/scoutx"
)

// BulkAction is the action of a bulk operation.
type BulkAction string

const (
	// BulkUpdate updates a document, inserting it when missing.
	BulkUpdate BulkAction = "update"
	// BulkDelete deletes a document.
	BulkDelete BulkAction = "delete"
)

// BulkOperation is one action line of a bulk request, plus its document for updates.
type BulkOperation struct {
	Action BulkAction
	Index  string
	ID     string
	Doc    map[string]any
}

type bulkMeta struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

type bulkUpsert struct {
	Doc         map[string]any `json:"doc"`
	DocAsUpsert bool           `json:"doc_as_upsert"`
}

// encodeBulk renders ops as newline delimited JSON.
func encodeBulk(ops []BulkOperation) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for _, op := range ops {
		meta := map[BulkAction]bulkMeta{op.Action: {Index: op.Index, ID: op.ID}}
		if err := enc.Encode(meta); err != nil {
			return nil, errors.Wrapf(err, "failed to encode bulk action for %s", op.ID)
		}
		if op.Action != BulkUpdate {
			continue
		}
		doc := op.Doc
		if doc == nil {
			doc = map[string]any{}
		}
		if err := enc.Encode(bulkUpsert{Doc: doc, DocAsUpsert: true}); err != nil {
			return nil, errors.Wrapf(err, "failed to encode document %s", op.ID)
		}
	}

	return buf.Bytes(), nil
}

type bulkResponse struct {
	Errors bool                          `json:"errors"`
	Items  []map[string]bulkResponseItem `json:"items"`
}

type bulkResponseItem struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}

// bulkItemsError reports the first failed item of a bulk response.
func bulkItemsError(body io.Reader, total int) error {
	var resp bulkResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return errors.Mark(errors.Wrap(err, "failed to decode bulk response"), scoutx.ErrTransport)
	}
	if !resp.Errors {
		return nil
	}

	var failed int
	var first error
	for _, item := range resp.Items {
		for action, result := range item {
			if result.Error == nil {
				continue
			}
			failed++
			if first == nil {
				first = errors.Newf("%s %s: [%d] %s: %s", action, result.ID, result.Status, result.Error.Type, result.Error.Reason)
			}
		}
	}
	if first == nil {
		first = errors.New("bulk response reported errors without item details")
	}

	return errors.Mark(errors.Wrapf(first, "%d of %d bulk items failed", failed, total), scoutx.ErrBulkItemFailed)
}
