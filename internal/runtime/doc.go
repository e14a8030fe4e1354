/*
Package runtime provides the queue client behind the queueflow package.

# Architecture Overview

A Client maps application-facing logical queue names onto physical queues
served by one or more endpoints (account and region pairs). Publishing and
direct receives go straight through the transport; subscriptions are run by a
consumer supervisor that owns a set of polling readers per queue.

# Package Structure

## Client (client.go, publish.go, receive.go, http.go)

The Client struct wires together:
  - Endpoint resolution (endpoints)
  - The queue registry with one handle per logical queue (registry)
  - The event bus feeding logging and metrics observers (events, metrics)
  - The consumer supervisor (consumer)
  - HTTP servers for metrics and queue status

## Endpoints (endpoints/)

The Resolver turns endpoint configuration into resolved endpoints. Missing
account ids and regions come from the instance identity document, looked up
once per Resolver with concurrent callers sharing the call. Required roles are
checked against the STS caller identity.

## Registry (registry/)

Normalize turns the declared queues into canonical entries and synthesizes a
queue for every dead-letter name that is not declared itself. Build resolves
each entry to a queue URL on its endpoint. Calls wraps transport calls with
call events and error classification.

## Pipeline (pipeline/)

Encode and Decoder implement the message format: JSON or protojson bodies,
optional deflate compression flagged by the Content-Encoding attribute, and a
correlation id carried in the CorrelationId attribute. Handlers that return a
dead-letter directive get the original body republished to the dead-letter
queue.

## Consumer (consumer/)

The Supervisor starts, stops and restarts readers. Each reader long-polls its
queue, handles messages one at a time and deletes acknowledged ones. Receive
errors are classified by the transport: reconnect errors rebuild the endpoint
client, fatal errors stop the reader, transient errors back off.

## Transport (transport/)

Transport is the narrow send, receive and delete interface. SQS is backed by
aws-sdk-go-v2; Memory is an in-process implementation with visibility
timeouts for tests and local runs.

## Supporting Packages

  - attributes: Message attribute map helpers
  - config: Configuration loading, defaults and validation
  - errors: Sentinel and typed errors
  - events: Call events and observers
  - ids: ULID generation
  - jsoncodec: JSON encoding via sonic
  - logging: Logger abstractions (slog, watermill, entry adapters)
  - metrics: Prometheus collectors and dead-letter statistics

# Usage

	cfg := &queueflow.Config{
	    Queues: queueflow.Queues(map[string]queueflow.QueueSpec{
	        "orders": {Name: "orders-q", DeadLetter: "orders-dlq"},
	    }),
	}

	client, err := queueflow.NewClient(ctx, cfg, logger, queueflow.Dependencies{})
	if err != nil {
	    return err
	}

	queueflow.SubscribeJSON(ctx, client, "orders",
	    func(ctx context.Context, o Order, d queueflow.Delivery) error {
	        if o.Total <= 0 {
	            return queueflow.DeadLetter(errInvalidOrder)
	        }
	        return nil
	    }, queueflow.ConsumerOptions{})

	client.Publish(ctx, "orders", Order{ID: 1, Total: 10}, queueflow.PublishOptions{})
*/
package runtime
