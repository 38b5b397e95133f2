// Command yan85 drives the machine, assembler, disassembler, and
// debugger over a single variant configuration, plumbed identically
// into the Machine, Assembler, and Disassembler.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"yan85/vm"
)

func main() {
	var (
		configPath string
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:   "yan85",
		Short: "yan85 toolchain: assemble, disassemble, run, and debug a pedagogical virtual architecture",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a JSON Encoding Config (default: built-in variant)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	loadConfig := func() (vm.Config, error) {
		if configPath == "" {
			return vm.Default(), nil
		}
		data, err := os.ReadFile(configPath)
		if err != nil {
			return vm.Config{}, fmt.Errorf("reading config: %w", err)
		}
		var cfg vm.Config
		if err := json.Unmarshal(data, &cfg); err != nil {
			return vm.Config{}, fmt.Errorf("parsing config: %w", err)
		}
		return cfg, nil
	}

	var (
		asmIn, asmOut string
	)
	assembleCmd := &cobra.Command{
		Use:   "assemble",
		Short: "Assemble yan85 source into a hex-dump byte image",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			src, err := readInput(asmIn)
			if err != nil {
				return err
			}
			code, err := vm.Assemble(src, cfg)
			if err != nil {
				return fmt.Errorf("assemble: %w", err)
			}
			return writeOutput(asmOut, hexDumpLines(code))
		},
	}
	assembleCmd.Flags().StringVar(&asmIn, "in", "", "source file (default: stdin)")
	assembleCmd.Flags().StringVar(&asmOut, "out", "", "output hex-dump file (default: stdout)")

	var disasmIn string
	disasmCmd := &cobra.Command{
		Use:   "disasm",
		Short: "Disassemble a hex-dump byte image",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dump, err := readInput(disasmIn)
			if err != nil {
				return err
			}
			m, err := vm.New(cfg)
			if err != nil {
				return err
			}
			if err := m.LoadCode(dump); err != nil {
				return err
			}
			entities := vm.Disassemble(m, nil, -1)
			fmt.Print(vm.Render(entities))
			return nil
		},
	}
	disasmCmd.Flags().StringVar(&disasmIn, "in", "", "hex-dump file (default: stdin)")

	var (
		runIn    string
		runStdin string
	)
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Load and run a program to completion (no single-stepping)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dump, err := readInput(runIn)
			if err != nil {
				return err
			}
			m, err := vm.New(cfg)
			if err != nil {
				return err
			}
			if err := m.LoadCode(dump); err != nil {
				return err
			}
			m.SetStdin([]byte(runStdin))

			var halted bool
			m.SetTrapHandler(func(t vm.TrapType) {
				halted = true
				if t != vm.TrapProgramExit {
					fmt.Fprintf(cmd.ErrOrStderr(), "halted: %s\n", t)
				}
			})
			for !halted {
				m.RunLoop()
			}
			return nil
		},
	}
	runCmd.Flags().StringVar(&runIn, "in", "", "hex-dump file (default: stdin)")
	runCmd.Flags().StringVar(&runStdin, "stdin", "", "bytes available to read_memory syscalls")

	var (
		debugIn    string
		debugStdin string
	)
	debugCmd := &cobra.Command{
		Use:   "debug",
		Short: "Interactive time-travel debugger REPL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dump, err := readInput(debugIn)
			if err != nil {
				return err
			}
			m, err := vm.New(cfg)
			if err != nil {
				return err
			}
			if err := m.LoadCode(dump); err != nil {
				return err
			}
			m.SetStdin([]byte(debugStdin))
			return runDebugRepl(m)
		},
	}
	debugCmd.Flags().StringVar(&debugIn, "in", "", "hex-dump file (default: stdin)")
	debugCmd.Flags().StringVar(&debugStdin, "stdin", "", "bytes available to read_memory syscalls")

	var hexdumpIn string
	hexdumpCmd := &cobra.Command{
		Use:   "hexdump",
		Short: "Print a byte image as a hex/ASCII dump",
		RunE: func(cmd *cobra.Command, args []string) error {
			dump, err := readInput(hexdumpIn)
			if err != nil {
				return err
			}
			data, err := parseHexDump(dump)
			if err != nil {
				return err
			}
			fmt.Print(vm.Hexdump(data))
			return nil
		},
	}
	hexdumpCmd.Flags().StringVar(&hexdumpIn, "in", "", "hex-dump file (default: stdin)")

	rootCmd.AddCommand(assembleCmd, disasmCmd, runCmd, debugCmd, hexdumpCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readInput(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

func writeOutput(path string, content string) error {
	if path == "" {
		fmt.Print(content)
		return nil
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func hexDumpLines(code []byte) string {
	var b strings.Builder
	for i, by := range code {
		fmt.Fprintf(&b, "%02x ", by)
		if (i+1)%16 == 0 {
			b.WriteByte('\n')
		}
	}
	if len(code)%16 != 0 {
		b.WriteByte('\n')
	}
	return b.String()
}

func parseHexDump(dump string) ([]byte, error) {
	var out []byte
	for _, line := range strings.Split(dump, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, field := range strings.Fields(line) {
			v, err := strconv.ParseUint(field, 16, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid hex byte %q: %w", field, err)
			}
			out = append(out, byte(v))
		}
	}
	return out, nil
}

// runDebugRepl is a minimal line-oriented console driving vm.Debugger
// (n/next, r/reverse, c/continue, b/break <addr>, x/context, q/quit), not a TUI — no
// panes, scrolling, or key bindings here, just a read-eval-print loop.
func runDebugRepl(m *vm.Machine) error {
	d := vm.NewDebugger(m, nil, nil)
	reader := bufio.NewReader(os.Stdin)

	print := func() {
		fmt.Print(vm.Render(d.Disassemble()))
		fmt.Println(d.Context())
		if t := d.TrapReached(); t != vm.TrapNone {
			fmt.Printf("reached unhandled trap: %s\n", t)
		}
	}
	print()

	for {
		fmt.Print("(yan85-debug) ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "n", "next":
			if err := d.Step(); err != nil {
				fmt.Println(err)
			}
			print()
		case "r", "reverse":
			if err := d.ReverseStep(); err != nil {
				fmt.Println(err)
			}
			print()
		case "c", "continue":
			if err := d.Continue(); err != nil {
				fmt.Println(err)
			}
			print()
		case "b", "break":
			if len(fields) != 2 {
				fmt.Println("usage: break <address>")
				continue
			}
			addr, err := strconv.ParseUint(fields[1], 0, 16)
			if err != nil {
				fmt.Println(err)
				continue
			}
			nowSet := d.ToggleBreakpoint(int(addr))
			fmt.Printf("breakpoint at %#x: %v\n", addr, nowSet)
		case "x", "context":
			fmt.Println(d.Context())
		case "q", "quit":
			return nil
		default:
			fmt.Println("commands: n(ext) r(everse) c(ontinue) b(reak) <addr> x (context) q(uit)")
		}
	}
}
