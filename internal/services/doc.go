// Package services assembles the troubleshootd components on top of a store.
//
// New builds the text matcher, similarity scorer, diagnostic rule engine,
// feedback service and suggestion engine from one configuration, so the CLI
// and the HTTP server share a single wiring.
package services
