// Package itscli carries the version identity of the its-cli tool.
package itscli

const (
	// Version is the CLI release version.
	Version = "0.1.0"

	// SupportedSchemaVersion is the newest template specification version
	// this build understands.
	SupportedSchemaVersion = "1.0"
)
