package output

import "github.com/ericogr/rfid-deck/pkg/telemetry"

// Output is a telemetry sink fed with periodic snapshots.
type Output interface {
	Publish(telemetry.Snapshot) error
	Close() error
}

// helper constructors are in subpackages
