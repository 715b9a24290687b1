// Command asm assembles a source program into a flat binary of 8-byte
// instruction words.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"cpu64/core"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func main() {
	var (
		outputPath string
		baseFlag   string
		configPath string
	)

	root := &cobra.Command{
		Use:          "asm <input.asm>",
		Short:        "Assemble a program into a flat cpu64 binary",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := resolveBase(baseFlag, configPath)
			if err != nil {
				return err
			}

			src, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "reading %s", args[0])
			}

			binary, err := assemble(string(src), args[0], base)
			if err != nil {
				reportAsmError(err)
				os.Exit(2)
			}

			if outputPath == "" {
				outputPath = strings.TrimSuffix(args[0], ".asm") + ".bin"
			}
			if err := os.WriteFile(outputPath, binary, 0o644); err != nil {
				return errors.Wrapf(err, "writing %s", outputPath)
			}
			fmt.Printf("wrote %d bytes to %s\n", len(binary), outputPath)
			return nil
		},
	}

	root.Flags().StringVarP(&outputPath, "output", "o", "", "output binary path (default: <input> with .bin extension)")
	root.Flags().StringVar(&baseFlag, "base", "0x0000", "base address programs are assembled at")
	root.Flags().StringVar(&configPath, "config", "", "optional asm.toml run configuration")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

// assemble runs the full lex/parse/assemble pipeline over src, tagging
// positions with file for diagnostic output.
func assemble(src, file string, base uint16) (core.Binary, error) {
	tokens, err := core.Lex(src, file)
	if err != nil {
		return nil, err
	}
	lines, err := core.Parse(tokens)
	if err != nil {
		return nil, err
	}
	binary, _, err := core.Assemble(lines, base)
	if err != nil {
		return nil, err
	}
	return binary, nil
}

// resolveBase merges the --base flag with an optional config file,
// the flag always wins unless left at its default.
func resolveBase(baseFlag, configPath string) (uint16, error) {
	base := baseFlag
	if configPath != "" {
		cfg, err := core.LoadRunConfig(configPath)
		if err != nil {
			return 0, errors.Wrapf(err, "reading %s", configPath)
		}
		if base == "0x0000" && cfg.BaseAddr != "" {
			base = cfg.BaseAddr
		}
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimPrefix(base, "0x"), "0X"), 16, 16)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid --base value %q", baseFlag)
	}
	return uint16(v), nil
}

// reportAsmError prints an assembly error in the "file:line:col: CODE:
// message" format, with an optional hint line, to stderr.
func reportAsmError(err error) {
	if asmErr, ok := err.(*core.AsmError); ok {
		fmt.Fprintln(os.Stderr, asmErr.Error())
		return
	}
	fmt.Fprintln(os.Stderr, err)
}
