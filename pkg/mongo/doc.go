// Package mongo connects the recommendation store to a MongoDB
// deployment.
//
// Connect wraps the official driver with retry and ping verification.
// ConnectDatabase returns a handle to a named database in one call,
// and Healthcheck exposes a ping closure for health endpoints.
package mongo
