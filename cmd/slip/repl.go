package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"slip/interpreter-go/pkg/reader"
)

const (
	historyFile = ".slip_history"
	promptMain  = "slip> "
	promptCont  = "  ... "
)

func runRepl() int {
	interp, _, err := newSession()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stdout, "%s\nCtrl+D exits. :gc collects, :quit exits.\n", cliToolVersion)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}
	defer func() {
		if histPath == "" {
			return
		}
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	heap := interp.Heap()
	for {
		src, ok := readBalanced(ln)
		if !ok {
			return 0
		}
		trimmed := strings.TrimSpace(src)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(trimmed)

		switch trimmed {
		case ":quit", ":q":
			return 0
		case ":gc":
			stats := interp.Collect()
			fmt.Fprintf(os.Stdout, "freed %d, retained %d\n", stats.Freed, stats.Retained)
			continue
		}

		mark := heap.SaveRoots()
		r := reader.New(heap, interp.Symbols(), trimmed)
		for {
			form, more, err := r.Read()
			if err != nil {
				fmt.Fprintf(os.Stderr, "read error: %v\n", err)
				break
			}
			if !more {
				break
			}
			val, err := interp.Eval(form, interp.GlobalEnvironment())
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				break
			}
			fmt.Fprintln(os.Stdout, interp.Render(val))
		}
		heap.RestoreRoots(mark)
	}
}

// readBalanced keeps prompting for continuation lines until the input has
// no unclosed lists, so multi-line forms can be typed naturally.
func readBalanced(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "input error: %v\n", err)
			return "", false
		}
		b.WriteString(line)
		b.WriteByte('\n')
		if reader.Balanced(b.String()) {
			return b.String(), true
		}
	}
}
