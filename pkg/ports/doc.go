/*
Package ports defines the driven-side interfaces of the Espalier engine.

Following Hexagonal Architecture, the engine core depends only on these
contracts; concrete adapters (in-memory, filesystem, Redis) live under
pkg/adapters and are wired in by the host application.
*/
package ports
