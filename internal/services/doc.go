// Package services builds the components of pm from configuration and
// hands them out through a Registry.
//
// Build wires the whole pipeline: scrubber, AI client, classifier,
// extractor, Jira client, store, NATS events, metrics and telemetry. The
// smaller constructors serve commands that need only part of it, such as
// classification without tracker credentials.
package services
