package search

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"example.com/supplierportal/services/deliverynote/config"
	"example.com/supplierportal/services/deliverynote/internal/metrics"
)

// Client indexes submission audit documents so reporting can search them.
type Client interface {
	IndexSubmission(ctx context.Context, id string, document []byte) error
}

// esClient implements the Client interface
type esClient struct {
	client *elasticsearch.Client
	index  string
}

// noopClient is used when search indexing is disabled in config.
type noopClient struct{}

func (noopClient) IndexSubmission(ctx context.Context, id string, document []byte) error {
	return nil
}

// NewClient creates a new Elasticsearch client
func NewClient(cfg config.ElasticsearchConfig) (Client, error) {
	if !cfg.Enabled {
		return noopClient{}, nil
	}

	esCfg := elasticsearch.Config{
		Addresses: cfg.URLs,
	}
	if cfg.Username != "" && cfg.Password != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	esCfg.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch error: %s", res.String())
	}

	return &esClient{
		client: client,
		index:  cfg.Index,
	}, nil
}

// IndexSubmission indexes one submission document
func (e *esClient) IndexSubmission(ctx context.Context, id string, document []byte) error {
	startTime := time.Now()
	collector := metrics.GetCollector()

	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: id,
		Body:       bytes.NewReader(document),
	}

	res, err := req.Do(ctx, e.client)
	if err != nil {
		collector.RecordIndexing(false, time.Since(startTime))
		return fmt.Errorf("failed to index submission: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		collector.RecordIndexing(false, time.Since(startTime))
		var detail map[string]interface{}
		_ = json.NewDecoder(res.Body).Decode(&detail)
		return fmt.Errorf("failed to index submission %s: %s", id, res.Status())
	}

	collector.RecordIndexing(true, time.Since(startTime))
	return nil
}
