package messagebus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"example.com/supplierportal/services/deliverynote/config"
	"example.com/supplierportal/services/deliverynote/internal/metrics"
)

// Client defines the message bus operations used by the service: accepted
// submissions are pushed to the ERP so purchasing sees confirmations
// without polling.
type Client interface {
	PublishMessage(ctx context.Context, message interface{}, queueName string) error
	Close(ctx context.Context) error
}

// AzureServiceBusClient implements Client using Azure Service Bus
type AzureServiceBusClient struct {
	client *azservicebus.Client
	prefix string
}

// noopClient is used when the bus is disabled in config.
type noopClient struct{}

func (noopClient) PublishMessage(ctx context.Context, message interface{}, queueName string) error {
	return nil
}

func (noopClient) Close(ctx context.Context) error { return nil }

// NewClient creates a new message bus client
func NewClient(cfg *config.ServiceBusConfig) (Client, error) {
	if !cfg.Enabled {
		return noopClient{}, nil
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create service bus client: %w", err)
	}

	return &AzureServiceBusClient{
		client: client,
		prefix: cfg.Prefix,
	}, nil
}

func (c *AzureServiceBusClient) getQueueName(queueName string) string {
	if c.prefix == "" {
		return queueName
	}
	return fmt.Sprintf("%s-%s", c.prefix, queueName)
}

// PublishMessage publishes a message to a queue
func (c *AzureServiceBusClient) PublishMessage(ctx context.Context, message interface{}, queueName string) error {
	startTime := time.Now()
	collector := metrics.GetCollector()

	sender, err := c.client.NewSender(c.getQueueName(queueName), nil)
	if err != nil {
		collector.RecordMessagePublish(false, time.Since(startTime))
		return fmt.Errorf("failed to create sender for queue %s: %w", queueName, err)
	}
	defer sender.Close(ctx)

	messageBytes, err := json.Marshal(message)
	if err != nil {
		collector.RecordMessagePublish(false, time.Since(startTime))
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	sbMessage := &azservicebus.Message{
		Body: messageBytes,
	}

	if err := sender.SendMessage(ctx, sbMessage, nil); err != nil {
		collector.RecordMessagePublish(false, time.Since(startTime))
		return fmt.Errorf("failed to send message: %w", err)
	}

	collector.RecordMessagePublish(true, time.Since(startTime))
	return nil
}

// Close closes the underlying client
func (c *AzureServiceBusClient) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}
