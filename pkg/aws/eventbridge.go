package aws

import (
	"context"
	"errors"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
)

// EventBridgeAPI is the subset of the EventBridge client used here.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// BusEvent is a single entry put on an event bus.
type BusEvent struct {
	BusName    string
	Source     string
	DetailType string
	Detail     []byte
}

type EventBridgeClient struct {
	client EventBridgeAPI
}

func NewEventBridgeClient(cfg sdkaws.Config) *EventBridgeClient {
	return &EventBridgeClient{client: eventbridge.NewFromConfig(cfg)}
}

// NewEventBridgeClientWithAPI wraps an existing EventBridge API implementation.
func NewEventBridgeClientWithAPI(api EventBridgeAPI) *EventBridgeClient {
	return &EventBridgeClient{client: api}
}

// PutEvent puts one event on the bus and returns the event id assigned by
// EventBridge. A rejected entry is reported as an error even though the
// API call itself succeeded.
func (e *EventBridgeClient) PutEvent(ctx context.Context, evt BusEvent) (string, error) {
	if evt.BusName == "" {
		return "", errors.New("empty event bus name")
	}

	out, err := e.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{
			{
				EventBusName: sdkaws.String(evt.BusName),
				Source:       sdkaws.String(evt.Source),
				DetailType:   sdkaws.String(evt.DetailType),
				Detail:       sdkaws.String(string(evt.Detail)),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("eventbridge put events failed for bus %s: %w", evt.BusName, err)
	}
	if len(out.Entries) == 0 {
		return "", fmt.Errorf("eventbridge returned no result entries for bus %s", evt.BusName)
	}

	entry := out.Entries[0]
	if out.FailedEntryCount > 0 || entry.ErrorCode != nil {
		return "", fmt.Errorf("eventbridge rejected event on bus %s: %s: %s",
			evt.BusName, sdkaws.ToString(entry.ErrorCode), sdkaws.ToString(entry.ErrorMessage))
	}

	return sdkaws.ToString(entry.EventId), nil
}
