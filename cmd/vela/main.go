// cmd/vela/main.go
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"vela/internal/compiler"
)

var root = &cobra.Command{
	Use:   "vela",
	Short: "Vela compiler core: lexer, parser and target-module emitter",
}

var buildCmd = &cobra.Command{
	Use:   "build <file.vl>",
	Short: "compile a Vela source file to a target module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		_, err := buildFile(args[0], out)
		return err
	},
}

var runCmd = &cobra.Command{
	Use:   "run <file.vl>",
	Short: "compile a Vela source file and report where the module was written",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		modPath, err := buildFile(args[0], out)
		if err != nil {
			return err
		}
		fmt.Printf("compiled %s -> %s\nexecution requires a WebAssembly host; this binary only compiles\n", args[0], modPath)
		return nil
	},
}

func buildFile(path, out string) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	mod, err := compiler.Compile(string(src))
	if err != nil {
		return "", err
	}

	if out == "" {
		ext := filepath.Ext(path)
		out = strings.TrimSuffix(path, ext) + ".wasm"
	}
	if err := os.WriteFile(out, mod, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", out, err)
	}
	return out, nil
}

func init() {
	buildCmd.Flags().StringP("output", "o", "", "output module path (default: <file> with .wasm extension)")
	runCmd.Flags().StringP("output", "o", "", "output module path (default: <file> with .wasm extension)")
	root.AddCommand(buildCmd, runCmd)
}

func main() {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
