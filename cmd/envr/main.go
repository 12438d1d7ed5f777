package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/lctr/record-envr/pkg/driver"
	"github.com/lctr/record-envr/pkg/envr"
)

const cliToolVersion = "envr 0.1.0-dev"

const (
	exitOK      = 0
	exitFailure = 1
	exitMissing = 2
)

type cli struct {
	stdout io.Writer
	stderr io.Writer
}

func main() {
	c := &cli{stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(c.run(os.Args[1:]))
}

func (c *cli) run(args []string) int {
	if len(args) == 0 {
		c.printUsage(c.stderr)
		return exitFailure
	}

	switch args[0] {
	case "--help", "-h", "help":
		c.printUsage(c.stdout)
		return exitOK
	case "--version", "-V", "version":
		fmt.Fprintln(c.stdout, cliToolVersion)
		return exitOK
	case "show":
		return c.runShow(args[1:], false)
	case "debug":
		return c.runShow(args[1:], true)
	case "get":
		return c.runGet(args[1:])
	case "keys":
		return c.runKeys(args[1:])
	case "stack":
		return c.runStack(args[1:])
	case "flatten":
		return c.runFlatten(args[1:])
	case "diff":
		return c.runDiff(args[1:])
	case "size":
		return c.runSize(args[1:])
	default:
		fmt.Fprintf(c.stderr, "unknown command %q\n", args[0])
		c.printUsage(c.stderr)
		return exitFailure
	}
}

func (c *cli) printUsage(w io.Writer) {
	fmt.Fprintln(w, `usage: envr <command> [arguments]

commands:
  show <doc>            print the resolved scope chain
  debug <doc>           print the structural form of the chain
  get <doc> <key>       print the visible value of key
  keys [--levels] <doc> print every key (or each level's keys, innermost first)
  stack <doc> <key>     print every value bound to key, innermost first
  flatten <doc>         print the chain merged into one level
  diff <doc> <other>    print bindings of doc whose keys other lacks
  size <doc>            print binding and level counts

environment:
  ENVR_HOME   cache directory for git-hosted documents (default ~/.envr)
  ENVR_DEBUG  set to 1 to trace document resolution on stderr`)
}

func (c *cli) load(path string) (*envr.Env[string, any], error) {
	resolver := &driver.Resolver{}
	if os.Getenv("ENVR_DEBUG") == "1" {
		resolver.Trace = c.stderr
	}
	home, err := driver.ResolveHome()
	if err != nil {
		fmt.Fprintf(c.stderr, "warning: git sources disabled: %v\n", err)
	} else {
		resolver.Git = driver.NewGitFetcher(home)
	}
	return resolver.ResolvePath(context.Background(), path)
}

// expect checks the positional argument count and loads the first one.
func (c *cli) expect(cmd string, args []string, names ...string) (*envr.Env[string, any], int) {
	if len(args) != len(names) {
		fmt.Fprintf(c.stderr, "envr %s requires %s (received %d arguments)\n", cmd, strings.Join(names, " "), len(args))
		return nil, exitFailure
	}
	env, err := c.load(args[0])
	if err != nil {
		fmt.Fprintf(c.stderr, "failed to load %s: %v\n", args[0], err)
		return nil, exitFailure
	}
	return env, exitOK
}

func (c *cli) runShow(args []string, debug bool) int {
	cmd := "show"
	if debug {
		cmd = "debug"
	}
	env, code := c.expect(cmd, args, "<doc>")
	if env == nil {
		return code
	}
	if debug {
		fmt.Fprintf(c.stdout, "%#v\n", env)
	} else {
		fmt.Fprintln(c.stdout, env)
	}
	return exitOK
}

func (c *cli) runGet(args []string) int {
	env, code := c.expect("get", args, "<doc>", "<key>")
	if env == nil {
		return code
	}
	v, ok := env.Get(args[1])
	if !ok {
		fmt.Fprintf(c.stderr, "%s is not bound\n", args[1])
		return exitMissing
	}
	fmt.Fprintln(c.stdout, v)
	return exitOK
}

func (c *cli) runKeys(args []string) int {
	levels := false
	if len(args) > 0 && args[0] == "--levels" {
		levels = true
		args = args[1:]
	}
	env, code := c.expect("keys", args, "<doc>")
	if env == nil {
		return code
	}
	if !levels {
		keys := make([]string, 0)
		for k := range env.Keyset() {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintln(c.stdout, k)
		}
		return exitOK
	}
	for i, seq := range env.Keylist() {
		fmt.Fprintf(c.stdout, "%d: %s\n", i, strings.Join(slices.Sorted(seq), " "))
	}
	return exitOK
}

func (c *cli) runStack(args []string) int {
	env, code := c.expect("stack", args, "<doc>", "<key>")
	if env == nil {
		return code
	}
	values, ok := env.Stack()[args[1]]
	if !ok {
		fmt.Fprintf(c.stderr, "%s is not bound\n", args[1])
		return exitMissing
	}
	for _, v := range values {
		fmt.Fprintln(c.stdout, v)
	}
	return exitOK
}

func (c *cli) runFlatten(args []string) int {
	env, code := c.expect("flatten", args, "<doc>")
	if env == nil {
		return code
	}
	fmt.Fprintln(c.stdout, env.Flatten())
	return exitOK
}

func (c *cli) runDiff(args []string) int {
	env, code := c.expect("diff", args, "<doc>", "<other>")
	if env == nil {
		return code
	}
	other, err := c.load(args[1])
	if err != nil {
		fmt.Fprintf(c.stderr, "failed to load %s: %v\n", args[1], err)
		return exitFailure
	}
	fmt.Fprintln(c.stdout, env.Difference(other))
	return exitOK
}

func (c *cli) runSize(args []string) int {
	env, code := c.expect("size", args, "<doc>")
	if env == nil {
		return code
	}
	fmt.Fprintf(c.stdout, "bindings: %d\nlevels: %d\n", env.Size(), env.Depth())
	return exitOK
}
