// Command emu loads and executes a cpu64 binary, or inspects one
// without running it.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"cpu64/core"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// logTracer emits one structured log line per executed step when
// --trace is set. The zero value is never used directly; newLogTracer
// always returns a ready instance.
type logTracer struct {
	log *logrus.Logger
}

func newLogTracer() *logTracer {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return &logTracer{log: log}
}

func (t *logTracer) OnStep(before core.Snapshot, instr core.DecodedInstr, after core.Snapshot) {
	t.log.WithFields(logrus.Fields{
		"pc":    fmt.Sprintf("0x%04X", before.PC),
		"instr": core.DisassembleOne(instr),
		"z":     after.Z,
		"sp":    fmt.Sprintf("0x%04X", after.SP),
	}).Info("step")
}

func main() {
	root := &cobra.Command{
		Use:   "emu",
		Short: "Run or inspect a cpu64 binary",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newHexdumpCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func newRunCmd() *cobra.Command {
	var (
		startFlag    string
		maxSteps     int
		trace        bool
		dumpRegs     bool
		dumpMemFlag  string
		configPath   string
		hexInput     bool
	)

	cmd := &cobra.Command{
		Use:          "run <program>",
		Short:        "Load and execute a binary (or hex-string program with --hex)",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				cfg, err := core.LoadRunConfig(configPath)
				if err != nil {
					return errors.Wrapf(err, "reading %s", configPath)
				}
				if !cmd.Flags().Changed("max-steps") && cfg.MaxSteps > 0 {
					maxSteps = cfg.MaxSteps
				}
				if !cmd.Flags().Changed("trace") && cfg.Trace {
					trace = true
				}
				if !cmd.Flags().Changed("dump-regs") && cfg.DumpRegs {
					dumpRegs = true
				}
			}

			program, err := loadProgram(args[0], hexInput)
			if err != nil {
				return err
			}

			start, err := parseHexAddr(startFlag)
			if err != nil {
				return errors.Wrap(err, "invalid --start")
			}

			mem := core.NewMemory()
			if err := mem.Load(int(start), program); err != nil {
				return errors.Wrap(err, "loading program")
			}

			state := core.NewState()
			state.PC = start

			var tracer core.Tracer
			if trace {
				tracer = newLogTracer()
			}

			steps := 0
			budgetExceeded := false
			for !state.Halt.Halted {
				if maxSteps > 0 && steps >= maxSteps {
					budgetExceeded = true
					break
				}
				core.Step(state, mem, tracer)
				steps++
			}

			if dumpRegs {
				fmt.Print(core.FormatSnapshot(state.Snapshot()))
			}
			if dumpMemFlag != "" {
				addr, n, err := parseDumpMemRange(dumpMemFlag)
				if err != nil {
					return err
				}
				data, err := mem.ReadSlice(addr, n)
				if err != nil {
					return errors.Wrap(err, "--dump-mem")
				}
				fmt.Print(core.FormatHexDump(addr, data))
			}

			switch {
			case budgetExceeded:
				os.Exit(2)
			case state.Halt.Reason == core.HaltFault:
				fmt.Fprintln(os.Stderr, state.Halt.Fault.Error())
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&startFlag, "start", "0x0000", "entry PC")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "abort after N steps (0 = unbounded)")
	cmd.Flags().BoolVar(&trace, "trace", false, "log every executed step")
	cmd.Flags().BoolVar(&dumpRegs, "dump-regs", false, "print the register file after halting")
	cmd.Flags().StringVar(&dumpMemFlag, "dump-mem", "", "ADDR,SIZE to hex-dump after halting")
	cmd.Flags().StringVar(&configPath, "config", "", "optional emu.toml run configuration")
	cmd.Flags().BoolVar(&hexInput, "hex", false, "treat <program> as a literal hex string, not a file path")

	return cmd
}

func newHexdumpCmd() *cobra.Command {
	var annotate bool
	var baseFlag string

	cmd := &cobra.Command{
		Use:          "hexdump <binary>",
		Short:        "Hex-dump a binary, optionally annotated with decoded mnemonics",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "reading %s", args[0])
			}
			base, err := parseHexAddr(baseFlag)
			if err != nil {
				return errors.Wrap(err, "invalid --base")
			}
			if annotate {
				for _, line := range core.Binary(data).Disassemble(base) {
					fmt.Println(line)
				}
				return nil
			}
			fmt.Print(core.FormatHexDump(int(base), data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&annotate, "annotate", false, "decode each word as a mnemonic instead of raw hex")
	cmd.Flags().StringVar(&baseFlag, "base", "0x0000", "base address for displayed offsets")
	return cmd
}

func loadProgram(arg string, hexInput bool) ([]byte, error) {
	if hexInput {
		clean := strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\t' {
				return -1
			}
			return r
		}, arg)
		data, err := hex.DecodeString(clean)
		if err != nil {
			return nil, errors.Wrap(err, "decoding hex program")
		}
		return data, nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", arg)
	}
	return data, nil
}

func parseHexAddr(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"), 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func parseDumpMemRange(s string) (int, int, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("--dump-mem expects ADDR,SIZE, got %q", s)
	}
	addr, err := parseHexAddr(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, errors.Wrap(err, "--dump-mem address")
	}
	size, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, errors.Wrap(err, "--dump-mem size")
	}
	return int(addr), size, nil
}
