// Command gocnc is the REPL/file-runner front end for the motion kernel,
// grounded on _examples/original_source/cnc/main.py's do_line/main shape
// (read a line, parse, dispatch, print OK/ERROR, loop) but built on
// github.com/spf13/cobra rather than the teacher's bare flag package
// (host/cmd/gopper-host/main.go), per SPEC_FULL.md §1.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gocnc/internal/clilog"
	"gocnc/internal/config"
	"gocnc/internal/gcode"
	"gocnc/internal/hal"
	"gocnc/internal/hal/dma"
	"gocnc/internal/hal/virtual"
	"gocnc/internal/machine"
	"gocnc/internal/thermistor"
)

var (
	configPath  string
	deviceName  string
	baudRate    int
	virtualFlag bool
	verboseFlag bool
	extruderI2C int
	bedI2C      int
)

func main() {
	root := &cobra.Command{
		Use:   "gocnc [gcode-file]",
		Short: "Software CNC/3D-printer motion kernel",
		Long: "gocnc parses G-code from a file, stdin, or a serial device and\n" +
			"drives a stepper-motor CNC/3D-printer, either over real Raspberry Pi\n" +
			"GPIO or an in-memory virtual machine.",
		Args: cobra.MaximumNArgs(1),
		RunE: run,
	}
	root.Flags().StringVar(&configPath, "config", "", "path to an INI config file (spec CONTROL/WORKPLACE/AXIS/TEMPERATURE sections); defaults to the built-in configuration")
	root.Flags().StringVar(&deviceName, "device", "", "read G-code from this serial device instead of stdin/file")
	root.Flags().IntVar(&baudRate, "baud", 115200, "baud rate for --device")
	root.Flags().BoolVar(&virtualFlag, "virtual", false, "force the virtual HAL even when a real config is supplied")
	root.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "start at debug log level (same effect as M111 at runtime)")
	root.Flags().IntVar(&extruderI2C, "extruder-adc-channel", -1, "ADS1115 channel for the extruder thermistor (real HAL only, -1 disables)")
	root.Flags().IntVar(&bedI2C, "bed-adc-channel", -1, "ADS1115 channel for the bed thermistor (real HAL only, -1 disables)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level := zapcore.InfoLevel
	if verboseFlag {
		level = zapcore.DebugLevel
	}
	log, atom := clilog.New(level)
	defer log.Sync()

	cfg, isReal, err := loadConfig()
	if err != nil {
		return err
	}

	h, err := buildHAL(cfg, isReal, log)
	if err != nil {
		return err
	}
	if err := h.Init(); err != nil {
		return fmt.Errorf("initializing HAL: %w", err)
	}

	m := machine.New(cfg, h, log, atom)

	sessionID := uuid.New().String()
	log.Infow("session starting", "session", sessionID, "real_hal", isReal)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, closeIn, err := openInput(args)
	if err != nil {
		return err
	}
	defer closeIn()

	runLoop(ctx, m, in, len(args) > 0)

	log.Infow("session ending", "session", sessionID)
	if err := m.Release(); err != nil {
		log.Errorw("release failed", "error", err)
	}
	return nil
}

// loadConfig mirrors PyCNC's always-available DEFAULT config: an INI path
// is optional, and a real HAL only gets built when one is both requested
// (--config given) and not overridden by --virtual.
func loadConfig() (cfg *config.MachineConfig, isReal bool, err error) {
	isReal = !virtualFlag && configPath != ""
	if configPath == "" {
		return config.Default(), isReal, nil
	}
	cfg, err = config.Load(configPath)
	if err != nil {
		return nil, false, err
	}
	return cfg, isReal, nil
}

func buildHAL(cfg *config.MachineConfig, isReal bool, log *zap.SugaredLogger) (hal.HAL, error) {
	if !isReal {
		return virtual.New(cfg), nil
	}

	var extruderADC, bedADC thermistor.VoltageReader
	if extruderI2C >= 0 {
		adc, err := thermistor.OpenADS1115("1", extruderI2C)
		if err != nil {
			return nil, fmt.Errorf("opening extruder ADC: %w", err)
		}
		extruderADC = adc
	}
	if bedI2C >= 0 {
		adc, err := thermistor.OpenADS1115("1", bedI2C)
		if err != nil {
			return nil, fmt.Errorf("opening bed ADC: %w", err)
		}
		bedADC = adc
	}
	log.Infow("building real HAL", "extruder_adc_channel", extruderI2C, "bed_adc_channel", bedI2C)
	return dma.New(cfg, extruderADC, bedADC), nil
}

// openInput picks the G-code source: the optional --device serial
// transport (from SPEC_FULL.md's ambient stack) first, then an explicit
// file argument, then stdin.
func openInput(args []string) (r io.Reader, closeFn func(), err error) {
	switch {
	case deviceName != "":
		mode := &serial.Mode{
			BaudRate: baudRate,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
		port, err := serial.Open(deviceName, mode)
		if err != nil {
			return nil, nil, fmt.Errorf("opening serial device %s: %w", deviceName, err)
		}
		return port, func() { port.Close() }, nil
	case len(args) > 0:
		f, err := os.Open(args[0])
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", args[0], err)
		}
		return f, func() { f.Close() }, nil
	default:
		return os.Stdin, func() {}, nil
	}
}

// runLoop is the direct translation of main.py's do_line loop: parse,
// dispatch, print "OK"/"ERROR <msg>", with an interactive "> " prompt
// only in the stdin REPL case (fromFile suppresses it, matching PyCNC's
// file-mode "> " echo of the line itself instead).
func runLoop(ctx context.Context, m *machine.Machine, in io.Reader, fromFile bool) {
	if !fromFile {
		fmt.Println("*************** Welcome to gocnc! ***************")
	}
	scanner := bufio.NewScanner(in)
	for {
		if !fromFile {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if fromFile {
			fmt.Println("> " + line)
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed == "quit" || trimmed == "exit" {
			break
		}
		if !doLine(ctx, m, trimmed) && fromFile {
			break
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func doLine(ctx context.Context, m *machine.Machine, line string) bool {
	cmd, err := gcode.ParseLine(line)
	if err != nil {
		fmt.Println("ERROR " + err.Error())
		return false
	}
	if err := m.Execute(ctx, cmd); err != nil {
		fmt.Println("ERROR " + err.Error())
		return false
	}
	fmt.Println("OK")
	return true
}

