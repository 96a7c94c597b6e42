// Package app composes the marketplace services into a running application.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── business/       # Directory profiles
//	│   ├── capability/     # Supply offers
//	│   ├── need/           # Demand posts
//	│   ├── connection/     # Buyer/supplier connection lifecycle
//	│   ├── lead/           # Externally discovered businesses
//	│   └── impact/         # Community impact snapshot
//	├── storage/            # Store interfaces and implementations
//	│   ├── interfaces.go   # BusinessStore, CapabilityStore, ...
//	│   ├── memory/         # In-memory implementation for tests and defaults
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business logic per domain
//	│   ├── matching/       # Need/capability scoring and ranking
//	│   ├── connections/    # Connection state machine + notifications
//	│   ├── discovery/      # External web search, dedupe, lead saves
//	│   └── impact/         # Snapshot computation + scheduled refresh
//	├── httpapi/            # HTTP handlers and routing
//	├── system/             # Service lifecycle management
//	└── metrics/            # Prometheus instrumentation
//
// Services hold stores behind the interfaces in storage; the Application
// wires them together, defaulting any nil store to the shared in-memory
// implementation so the whole stack runs without external dependencies.
package app
