// Package webhooks relays inbound tenant events to their configured destinations.
//
// The Gateway authenticates an event by the account secret in the CL-X-TOKEN
// header, drops repeats of the CL-X-EVENT-ID header within the dedup window
// and queues the event without waiting for delivery. The Dispatcher drains
// the queue on a bounded worker pool: every destination of the account gets
// one request and one DeliveryLog row.
//
//	gateway := webhooks.NewGateway(accountStore, backend, 60*time.Second, dispatcher, metrics, logger)
//	receipt, err := gateway.Submit(ctx, r.Header, body)
//
// GET destinations receive the event data as query parameters; every other
// method receives it as a JSON body. Any 2xx response counts as success.
// Failed deliveries are recorded and never retried.
//
// Retention purges old delivery logs on a cron schedule.
package webhooks
