// Command pygo is a minimal embedded-interpreter shell: it loads the
// shared interpreter library, evaluates one-shot expressions or script
// files, and offers a line-based REPL on a terminal.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	"golang.org/x/term"

	"github.com/mkysylov/pygo"
	"github.com/mkysylov/pygo/runtime/libpython"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	var (
		library    string
		configPath string
		expr       string
		verbosity  int
	)

	cmd := &cobra.Command{
		Use:   "pygo [flags] [script]",
		Short: "Run Python code through the pygo bridge",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			commonlog.Configure(verbosity, nil)

			cfg := libpython.Config{Library: library}
			if configPath != "" {
				loaded, err := libpython.LoadConfig(configPath)
				if err != nil {
					return err
				}
				loaded.Library = firstOf(library, loaded.Library)
				cfg = loaded
			}

			bridge, err := libpython.Open(cfg)
			if err != nil {
				return err
			}
			defer bridge.Close()

			py, err := pygo.New(bridge.Table())
			if err != nil {
				return err
			}

			switch {
			case expr != "":
				return evalAndPrint(py, expr)
			case len(args) == 1:
				source, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				return py.Run(string(source))
			case term.IsTerminal(int(os.Stdin.Fd())):
				return repl(py)
			default:
				source, err := io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
				return py.Run(string(source))
			}
		},
	}

	cmd.Flags().StringVar(&library, "library", "", "path to the shared interpreter library")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a pygo.toml config file")
	cmd.Flags().StringVarP(&expr, "eval", "c", "", "evaluate a single expression and print the result")
	cmd.Flags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// evalAndPrint evaluates an expression and prints anything that is not
// None, mirroring interactive interpreter behavior.
func evalAndPrint(py *pygo.Python, expr string) error {
	result, err := py.Eval(expr)
	if err != nil {
		return err
	}
	defer result.Close()
	if eq, err := result.Equal(py.None()); err == nil && eq {
		return nil
	}
	text, err := result.Str()
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}

// repl reads one line at a time. Each line is tried as an expression
// first; lines that do not parse as expressions run as statements.
func repl(py *pygo.Python) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(">>> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if err := evalAndPrint(py, line); err != nil {
			if runErr := py.Run(line); runErr != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		}
	}
}
