// Package httpserver runs the quota API over a http.Server with
// graceful shutdown.
//
// Run blocks until the context is canceled, SIGINT/SIGTERM arrives,
// or the listener fails, then drains in-flight requests within the
// configured shutdown timeout. Configuration is described by the
// env-tagged Config struct.
package httpserver
