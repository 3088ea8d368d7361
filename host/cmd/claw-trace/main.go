// Command claw-trace prints the scheduler trace a cabinet streams over its
// debug UART.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/inhies/go-bytesize"
	"github.com/mattn/go-colorable"

	"claw/host/serial"
	"claw/host/trace"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud    = flag.Int("baud", serial.DefaultBaud, "Baud rate of the trace UART")
	quiet   = flag.Bool("quiet", false, "Print only the summary on exit")
	timeout = flag.Int("timeout", 100, "Read timeout in milliseconds")
	color   = flag.Bool("color", true, "Highlight halts, overruns and phase changes")
)

func main() {
	flag.Parse()

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud
	cfg.ReadTimeout = *timeout

	port, err := serial.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := port.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: flush failed: %v\n", err)
	}
	fmt.Printf("Reading trace from %s at %d baud (Ctrl-C to stop)\n", *device, *baud)

	// Closing the port on Ctrl-C ends the decode loop below
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		port.Close()
	}()

	out := colorable.NewColorableStdout()
	dec := trace.NewDecoder(port)
	summary := trace.Summary{}
	for {
		e, err := dec.Next()
		if errors.Is(err, io.EOF) {
			// Quiet line; the read timed out
			continue
		}
		if err != nil {
			if !errors.Is(err, os.ErrClosed) {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			break
		}
		summary.Add(e)
		switch {
		case *quiet:
		case *color:
			fmt.Fprintln(out, trace.Highlight(e))
		default:
			fmt.Fprintln(out, trace.Format(e))
		}
	}

	st := dec.Stats()
	fmt.Fprintf(out, "\n%s read, %d blocks, %d events, %d resyncs, %d lost, %d corrupt\n",
		bytesize.New(float64(st.Bytes)), st.Blocks, st.Events, st.Resyncs, st.Lost, st.Corrupt)
	summary.WriteTo(out)
}
