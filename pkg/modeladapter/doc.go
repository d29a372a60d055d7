// Package modeladapter defines the contract shared by every vendor adapter.
//
// It contains:
//   - [Adapter] interface for buffered calls, streamed calls and stream chunk parsing
//   - embeddable [ModelAdapter] base struct with auth, custom headers, per-call timeouts and JSON/stream POST helpers
//   - typed faults: [ConfigError], [TransportError], [ProtocolError] and [EmptyContentError]
//   - [github.com/germanamz/promptforge/pkg/modeladapter/usage] for thread-safe token accounting
//
// This package contains no vendor-specific code. Concrete adapters live in
// pkg/providers and import modeladapter.
package modeladapter
