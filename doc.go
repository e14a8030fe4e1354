// Package queueflow maps logical queue names onto physical SQS queues spread
// over one or more accounts and regions, and runs supervised consumers for
// them.
//
// A Config names the endpoints (account, region, optional required IAM role
// and SDK client settings) and the queues. Queues are addressed by logical
// name everywhere in application code; NewClient resolves each one to a queue
// URL on its endpoint. Endpoint account and region default to the instance
// identity document, which is fetched once per process.
//
// # Publishing
//
// Client.Publish JSON-encodes the payload (protojson for proto messages),
// stamps a correlation id and optionally deflate-compresses the body. The
// correlation id is taken from PublishOptions, the attributes, the context
// (see WithCorrelationID) or generated as a ULID, in that order.
//
// # Consuming
//
// Client.Subscribe starts the configured number of readers for a queue and
// returns once they are polling. Handlers receive a Delivery; returning nil
// deletes the message, returning an error leaves it for redelivery, and
// returning DeadLetter(err) republishes the original body to the queue's
// dead-letter queue before deleting it. Receive errors are classified: expired
// credentials rebuild the endpoint client, access and missing-queue errors
// stop the reader, anything else is retried with backoff.
//
// # Observability
//
// Every send, receive, delete and handle call is reported to observers
// registered with Client.Observe. With MetricsEnabled the same events feed
// Prometheus collectors served on MetricsPort, and StatusEnabled serves the
// reader state of every queue as JSON on /api/queues.
package queueflow
