// Package app composes the studio application.
//
// # Layout
//
//	internal/app/
//	├── application.go      # Application struct, wiring and lifecycle
//	├── domain/             # Records shared by services and stores
//	├── storage/            # Store interfaces and the memory, postgres,
//	│                       # supabase and redis implementations
//	├── services/           # Business rules, one package per studio tool
//	├── media/              # Data-URL decoding and image sinks
//	├── metrics/            # Prometheus collectors
//	├── httpapi/            # gorilla/mux router and handlers
//	└── system/             # Lifecycle manager for background runners
//
// # Dependency Direction
//
//	cmd/studio-server, cmd/studioctl
//	      │
//	      ▼
//	internal/app (composition)
//	      │
//	      ├──► internal/app/services ──► internal/app/storage
//	      │
//	      └──► internal/app/httpapi ──► internal/middleware
//
// Every service method takes the studio id first; records of one studio are
// never visible through another.
package app
