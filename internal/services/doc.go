// Package services provides the centralized service registry for paddockd.
//
// Registry pattern for accessing the core services (answer pipeline,
// session registry, ingestion, stats, vectorstore). Use NewRegistry() to
// create a registry with service instances, then accessor methods to
// retrieve individual services.
package services
