package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"slip/interpreter-go/pkg/driver"
	"slip/interpreter-go/pkg/interpreter"
	"slip/interpreter-go/pkg/reader"
	"slip/interpreter-go/pkg/runtime"
)

const cliToolVersion = "slip 0.1.0-dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		return runRepl()
	}
	switch args[0] {
	case "--help", "-h", "help":
		printUsage()
		return 0
	case "--version", "-V", "version":
		fmt.Fprintln(os.Stdout, cliToolVersion)
		return 0
	case "repl":
		return runRepl()
	case "deps":
		return runDeps()
	case "run":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "slip run requires exactly one source file")
			return 1
		}
		return runFile(args[1])
	default:
		return runFile(args[0])
	}
}

func printUsage() {
	fmt.Fprintln(os.Stdout, `Usage: slip [command]

Commands:
  run <file>   evaluate a source file
  repl         start an interactive session (default with no arguments)
  deps         fetch manifest libraries
  version      print the version

A slip.yml manifest in the current directory or above configures runtime
limits and prelude libraries.`)
}

// newSession builds an interpreter from the nearest manifest (if any) and
// loads its prelude libraries into the global environment.
func newSession() (*interpreter.Interpreter, *driver.Manifest, error) {
	manifest, err := loadNearbyManifest()
	if err != nil {
		return nil, nil, err
	}

	cfg := runtime.Config{}
	if manifest != nil {
		cfg = manifest.Runtime.Config()
	}
	interp, err := interpreter.New(cfg)
	if err != nil {
		return nil, nil, err
	}

	if manifest != nil && len(manifest.Libraries) > 0 {
		fetcher := driver.NewFetcher(cacheDir())
		paths, err := fetcher.ResolveAll(manifest)
		if err != nil {
			return nil, nil, err
		}
		for _, path := range paths {
			if err := evalFile(interp, path); err != nil {
				return nil, nil, fmt.Errorf("prelude %s: %w", path, err)
			}
		}
	}
	return interp, manifest, nil
}

func loadNearbyManifest() (*driver.Manifest, error) {
	path, err := driver.FindManifest(".")
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return driver.LoadManifest(path)
}

func cacheDir() string {
	if base, err := os.UserCacheDir(); err == nil {
		return filepath.Join(base, "slip", "libraries")
	}
	return filepath.Join(os.TempDir(), "slip-libraries")
}

// evalFile reads and evaluates every form in path against the global
// environment, stopping at the first error.
func evalFile(interp *interpreter.Interpreter, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	heap := interp.Heap()
	mark := heap.SaveRoots()
	defer heap.RestoreRoots(mark)

	r := reader.New(heap, interp.Symbols(), string(src))
	for {
		form, ok, err := r.Read()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if _, err := interp.Eval(form, interp.GlobalEnvironment()); err != nil {
			return err
		}
	}
}

func runFile(path string) int {
	interp, _, err := newSession()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if err := evalFile(interp, path); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		return 1
	}
	return 0
}

func runDeps() int {
	manifest, err := loadNearbyManifest()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if manifest == nil {
		fmt.Fprintln(os.Stderr, "slip deps requires a slip.yml manifest")
		return 1
	}
	fetcher := driver.NewFetcher(cacheDir())
	paths, err := fetcher.ResolveAll(manifest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	for idx, lib := range manifest.Libraries {
		fmt.Fprintf(os.Stdout, "%s %s\n", lib.Name, paths[idx])
	}
	return 0
}
