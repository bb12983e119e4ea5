/*
Package metrics provides Prometheus metrics collection and exposition for
Aiko Services. Metrics are registered at package init and exposed via
Handler() for scraping.

# Metrics

Event loop:

	aiko_eventloop_tick_latency_seconds   histogram  time spent draining one tick
	aiko_eventloop_queue_depth            gauge      items waiting in the queue

EC (eventual-consistency state sharing):

	aiko_ec_snapshot_items                histogram  item count sent per snapshot
	aiko_ec_consumer_time_to_ready_seconds histogram time from subscribe to ready

Registrar:

	aiko_registrar_service_count          gauge      catalog entry count
	aiko_registrar_election_duration_seconds histogram time spent in primary_search

Pipeline:

	aiko_pipeline_frames_processed_total  counter    frames by pipeline and terminal event
	aiko_stream_lease_remaining_seconds   gauge      time left before a stream's lease expires

# Usage

	http.Handle("/metrics", metrics.Handler())

	timer := metrics.NewTimer()
	// ... do work ...
	timer.ObserveDuration(metrics.TickLatency)

Queue depth and tick latency have no natural call site to update them from,
so a Collector polls the event loops that own them:

	c := metrics.NewCollector(loop)
	c.Start()
	defer c.Stop()

Health and readiness are served separately via HealthHandler, ReadyHandler
and LivenessHandler, tracking named components (e.g. "registrar",
"transport", "eventloop") through RegisterComponent/UpdateComponent.
*/
package metrics
