// Package report keeps a per-dispatch analytics record in Elasticsearch.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"loyalty-notify/internal/common/logger"
	"loyalty-notify/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ErrReportNotFound = errors.New("REPORT_NOT_FOUND")

// Indexer writes dispatch reports, one document per notification.
// A nil client makes every call a no-op.
type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		client: client,
		index:  index,
		logger: logger.ForComponent(log, "report-indexer"),
	}
}

func (i *Indexer) Enabled() bool {
	return i != nil && i.client != nil
}

// Index stores the report. Failures are logged and returned; callers treat
// them as non-fatal.
func (i *Indexer) Index(ctx context.Context, r *models.DispatchReport) error {
	if !i.Enabled() {
		return nil
	}

	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: r.NotificationID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		i.logger.Warn("report index failed", map[string]interface{}{
			"notificationId": r.NotificationID,
			"error":          err.Error(),
		})
		return fmt.Errorf("index report: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		i.logger.Warn("report index rejected", map[string]interface{}{
			"notificationId": r.NotificationID,
			"status":         res.StatusCode,
		})
		return fmt.Errorf("index report: %s: %s", res.Status(), string(msg))
	}
	return nil
}

type getResponse struct {
	Found  bool                  `json:"found"`
	Source models.DispatchReport `json:"_source"`
}

// Get loads the report for a notification.
func (i *Indexer) Get(ctx context.Context, notificationID string) (*models.DispatchReport, error) {
	if !i.Enabled() {
		return nil, ErrReportNotFound
	}

	req := esapi.GetRequest{Index: i.index, DocumentID: notificationID}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, ErrReportNotFound
	}
	if res.IsError() {
		return nil, fmt.Errorf("get report: %s", res.Status())
	}

	var decoded getResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	if !decoded.Found {
		return nil, ErrReportNotFound
	}
	return &decoded.Source, nil
}
