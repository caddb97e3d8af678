package console

import (
	"bytes"
	"io"
	"os"
	"testing"
	"time"

	"github.com/ericogr/rfid-deck/pkg/telemetry"
)

func captureStdout(f func()) string {
	r, w, _ := os.Pipe()
	stdout := os.Stdout
	os.Stdout = w
	outC := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outC <- buf.String()
	}()
	f()
	_ = w.Close()
	os.Stdout = stdout
	return <-outC
}

func TestConsolePublish(t *testing.T) {
	c := NewConsole()
	ts := time.Date(2025, 9, 19, 14, 41, 54, 0, time.UTC)
	snap := telemetry.Snapshot{Timestamp: ts, Samples: []telemetry.Sample{
		{Name: "rfid.delay", Kind: telemetry.KindUint32, Value: 50},
		{Name: "rfid.value", Kind: telemetry.KindUint16, Value: 3600},
	}}
	out := captureStdout(func() { _ = c.Publish(snap) })
	want := "2025-09-19T14:41:54Z rfid.delay=50 rfid.value=3600\n"
	if out != want {
		t.Fatalf("console output mismatch:\n got: %q\nwant: %q", out, want)
	}
}
