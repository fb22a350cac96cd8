// Package endpoint turns provider configuration into ready-to-use
// endpoints. It picks the vendor client for a wire protocol and wires the
// credential provider, the HTTP transport chain, telemetry and rate
// limiting around it.
package endpoint
