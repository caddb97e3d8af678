package console

import (
	"fmt"
	"strings"
	"time"

	"github.com/ericogr/rfid-deck/pkg/output"
	"github.com/ericogr/rfid-deck/pkg/telemetry"
)

type ConsoleOutput struct{}

func NewConsole() output.Output { return &ConsoleOutput{} }

func (c *ConsoleOutput) Publish(s telemetry.Snapshot) error {
	var b strings.Builder
	b.WriteString(s.Timestamp.Format(time.RFC3339))
	for _, smp := range s.Samples {
		fmt.Fprintf(&b, " %s=%d", smp.Name, smp.Value)
	}
	b.WriteByte('\n')
	_, err := fmt.Print(b.String())
	return err
}

func (c *ConsoleOutput) Close() error { return nil }
