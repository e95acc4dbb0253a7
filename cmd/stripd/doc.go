// Package main is the demo host for the strip widget.
//
// It wires the proxy coordinator to two goja-backed content surfaces
// and exposes a websocket bridge a host UI can connect to.
//
// Architecture:
//
//	Host UI (websocket) → Bridge → Proxy Coordinator → Strip surface
//	                                                 → Story surface
//
// The coordinator relays string messages between the surfaces,
// negotiates the unit height, and pushes unit_ready / display_story /
// hide_story frames to the connected host. Inbound frames trigger the
// host-supplied show and hide scripts on the story surface.
//
// Configuration:
//   - .env file, if present
//   - Environment variables (STRIP_TOKEN, STRIP_BASE_URL, ...)
//   - Defaults for development
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
