// Package observe runs the background half of a deliberation round:
// after the reply has been returned, each persona that spoke gets a
// chance to record an observation about the participant. Work items
// travel through a queue (memory, Redis, or RabbitMQ) and a bounded
// worker pool processes them off the hot path.
package observe
