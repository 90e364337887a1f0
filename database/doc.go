// Package database provides MongoDB connection management, configuration
// types, logging, command monitoring and metrics, error classification,
// index management, migrations and seed data built on top of the official
// mongo-driver.
package database
