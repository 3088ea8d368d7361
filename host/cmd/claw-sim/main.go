// Command claw-sim plays scripted rounds on a simulated cabinet and prints
// the scheduler trace the firmware would have sent.
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/inhies/go-bytesize"
	"github.com/mattn/go-colorable"

	"claw/config"
	"claw/core"
	"claw/game"
	"claw/host/trace"
	"claw/sim"
	"claw/uplink"
)

var (
	configPath = flag.String("config", "", "Machine config JSON (default: built-in Pico layout)")
	rounds     = flag.Int("rounds", 1, "Rounds to play")
	holdX      = flag.Duration("x", 40*time.Millisecond, "How long to push the X joystick each round")
	holdY      = flag.Duration("y", 20*time.Millisecond, "How long to push the Y joystick each round")
	idleGrab   = flag.Bool("timeout", false, "Never press grab; let the game timer end each round")
	showTrace  = flag.Bool("trace", false, "Print every trace event")
	verbose    = flag.Bool("verbose", false, "Print game debug messages")
)

type logGripper struct {
	board *sim.Board
}

func (g logGripper) Open()  { fmt.Printf("%12v gripper open\n", g.board.Now()) }
func (g logGripper) Close() { fmt.Printf("%12v gripper close\n", g.board.Now()) }

func loadConfig() (*config.MachineConfig, error) {
	if *configPath == "" {
		return config.Default(), nil
	}
	data, err := os.ReadFile(*configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return config.LoadConfig(data)
}

func tick(hz uint64) time.Duration {
	return time.Second / time.Duration(hz)
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(cfg.Axes) < 2 {
		fmt.Fprintf(os.Stderr, "Error: the script needs an X and a Y axis, config has %d\n", len(cfg.Axes))
		os.Exit(1)
	}

	b := sim.NewBoard()
	b.Limit = time.Duration(*rounds+1) * (cfg.GameTimeout() + cfg.HomingTimeout())

	// Pull-ups: released switches read the opposite of pressed
	released := !cfg.SwitchPressed
	b.Pins.Set(core.GPIOPin(cfg.StartPin), released)
	b.Pins.Set(core.GPIOPin(cfg.GrabPin), released)
	gantries := make([]*sim.Gantry, len(cfg.Axes))
	for i, a := range cfg.Axes {
		b.Pins.Set(core.GPIOPin(a.JoystickPositive), released)
		b.Pins.Set(core.GPIOPin(a.JoystickNegative), released)
		gantries[i] = b.NewGantry(core.GPIOPin(a.Stepper.StepPin), core.GPIOPin(a.Stepper.DirPin),
			core.GPIOPin(a.HomePin), cfg.SwitchPressed, 0)
	}

	phw := b.NewTimer(tick(cfg.Precision.TickHz), cfg.Precision.MaxCompare)
	ghw := b.NewTimer(tick(cfg.Generic.TickHz), cfg.Generic.MaxCompare)
	m := game.New(cfg, game.Hardware{
		Pins:      b.Pins,
		Precision: phw,
		Generic:   ghw,
		Gripper:   logGripper{board: b},
		Idle:      b.WaitForInterrupt,
	})
	phw.Attach(m.Precision().HandleInterrupt)
	ghw.Attach(m.Generic().HandleInterrupt)
	b.Pins.OnChange(m.Buttons().HandleInterrupt, core.GPIOPin(cfg.StartPin), core.GPIOPin(cfg.GrabPin))
	for _, a := range cfg.Axes {
		b.Pins.OnChange(m.Joystick().HandleInterrupt, core.GPIOPin(a.JoystickPositive), core.GPIOPin(a.JoystickNegative))
		b.Pins.OnChange(m.Limits().HandleInterrupt, core.GPIOPin(a.HomePin))
	}

	if *verbose {
		core.SetDebugEnabled(true)
		core.SetDebugWriter(func(s string) { fmt.Printf("%12v %s\n", b.Now(), s) })
	}

	var wire bytes.Buffer
	var up *uplink.Uplink
	core.SetTimingEnabled(cfg.TraceEnabled)
	if cfg.TraceEnabled {
		core.SetTimingClock(func() uint32 { return uint32(m.Precision().Now()) })
		up = uplink.New(&wire, m.Generic(), uplink.DefaultPeriod)
		m.AddBackground(up)
	}

	m.Start()

	press := func(pin uint32, at, hold time.Duration) {
		b.Drive(at, core.GPIOPin(pin), cfg.SwitchPressed)
		b.Drive(at+hold, core.GPIOPin(pin), released)
	}
	for int(m.Rounds()) < *rounds {
		if m.Phase() == game.PhaseIdle {
			now := b.Now()
			yAt := 100*time.Millisecond + *holdX + 50*time.Millisecond
			grabAt := yAt + *holdY + 50*time.Millisecond
			press(cfg.StartPin, now+10*time.Millisecond, 50*time.Millisecond)
			press(cfg.Axes[0].JoystickPositive, now+100*time.Millisecond, *holdX)
			press(cfg.Axes[1].JoystickPositive, now+yAt, *holdY)
			if !*idleGrab {
				press(cfg.GrabPin, now+grabAt, 50*time.Millisecond)
			}
		}
		phase := m.Phase()
		next := m.Step()
		fmt.Printf("%12v %s -> %s", b.Now(), game.PhaseName(phase), game.PhaseName(next))
		if phase == game.PhaseRunning {
			fmt.Printf(" (x=%d y=%d)", gantries[0].Position, gantries[1].Position)
		}
		fmt.Println()
	}

	if up == nil {
		return
	}
	if err := up.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: uplink: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nuplink sent %d blocks, %s\n", up.Blocks(), bytesize.New(float64(wire.Len())))

	out := colorable.NewColorableStdout()
	dec := trace.NewDecoder(&wire)
	summary := trace.Summary{}
	for {
		e, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: decode: %v\n", err)
			os.Exit(1)
		}
		summary.Add(e)
		if *showTrace {
			fmt.Fprintln(out, trace.Highlight(e))
		}
	}
	st := dec.Stats()
	fmt.Printf("%d events in %d blocks, %d lost\n", st.Events, st.Blocks, st.Lost)
	summary.WriteTo(out)
}
