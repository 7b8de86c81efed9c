// Package gateway implements the Connection Gateway component.
//
// The gateway:
//   - Upgrades HTTP requests to WebSocket connections
//   - Validates bearer credentials and resolves the target entity
//   - Consults the admission gate before registering a connection
//   - Assigns a role (organizer, participant, spectator) per entity
//   - Dispatches inbound messages by their type field
//   - Runs a per-connection heartbeat and tears down stale connections
//
// It is the only component that touches raw connections; everything
// else operates on room-level deliveries.
package gateway
