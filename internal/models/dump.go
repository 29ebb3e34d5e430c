package models

import "time"

// DumpRequest carries everything the dump executor needs for one run.
// Instances are built per call and discarded.
type DumpRequest struct {
	Target         Target
	Password       string
	Destination    string
	Compress       bool
	ExcludeTables  []string
	Flags          []string
	ExecutablePath string
}

// DumpResult holds the outcome of a successful dump.
type DumpResult struct {
	Destination string
	SizeBytes   int64
	Duration    time.Duration
	Compressed  bool
}

// ProbeResult reports whether the exporter could reach the target.
// A refused connection is a normal result, not an error.
type ProbeResult struct {
	OK      bool
	Message string
}
