// Package memory provides in-process implementations of the configuration
// and index snapshot stores. They back tests and ephemeral runs where nothing
// should touch the filesystem.
package memory
