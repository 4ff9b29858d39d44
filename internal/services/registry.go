package services

import (
	"github.com/fyrsmithlabs/paddockd/internal/answer"
	"github.com/fyrsmithlabs/paddockd/internal/ingest"
	"github.com/fyrsmithlabs/paddockd/internal/session"
	"github.com/fyrsmithlabs/paddockd/internal/stats"
	"github.com/fyrsmithlabs/paddockd/internal/vectorstore"
)

// Registry provides access to all paddockd services.
// Use accessor methods to retrieve individual services.
type Registry interface {
	Answer() *answer.Service
	Sessions() *session.Registry
	Ingest() *ingest.Service
	Stats() *stats.Client
	VectorStore() vectorstore.Store
}

// Options configures the registry with service instances.
type Options struct {
	Answer      *answer.Service
	Sessions    *session.Registry
	Ingest      *ingest.Service
	Stats       *stats.Client
	VectorStore vectorstore.Store
}

// registry is the concrete implementation of Registry.
type registry struct {
	answer      *answer.Service
	sessions    *session.Registry
	ingest      *ingest.Service
	stats       *stats.Client
	vectorStore vectorstore.Store
}

// NewRegistry creates a new service registry.
func NewRegistry(opts Options) Registry {
	return &registry{
		answer:      opts.Answer,
		sessions:    opts.Sessions,
		ingest:      opts.Ingest,
		stats:       opts.Stats,
		vectorStore: opts.VectorStore,
	}
}

func (r *registry) Answer() *answer.Service          { return r.answer }
func (r *registry) Sessions() *session.Registry      { return r.sessions }
func (r *registry) Ingest() *ingest.Service          { return r.ingest }
func (r *registry) Stats() *stats.Client             { return r.stats }
func (r *registry) VectorStore() vectorstore.Store   { return r.vectorStore }
