// Command pageinspect browses the pages of a clustered table file.
//
// Usage:
//
//	pageinspect -file orders.dat -schema int,string,int -key 0
package main

import (
	"flag"
	"fmt"
	"os"

	"clustore/pkg/logging"
	"clustore/pkg/memory"
	"clustore/pkg/primitives"
	"clustore/pkg/storage/btree"
	"clustore/pkg/storage/page"
	"clustore/pkg/tuple"

	tea "github.com/charmbracelet/bubbletea"
)

type options struct {
	file     string
	pageSize int
	schema   string
	key      int
	logPath  string
}

func main() {
	opts := parseFlags()

	if err := logging.Init(logging.Config{
		Level:      logging.LevelWarn,
		OutputPath: opts.logPath,
		Format:     "zap",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Close()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.file, "file", "", "Table file to inspect")
	flag.IntVar(&opts.pageSize, "page-size", page.DefaultPageSize, "Page size the file was written with")
	flag.StringVar(&opts.schema, "schema", "int,int", "Comma separated row field types (int, string, bool, float)")
	flag.IntVar(&opts.key, "key", 0, "Index of the key field")
	flag.StringVar(&opts.logPath, "log", os.DevNull, "Log file; the terminal belongs to the UI")
	flag.Parse()

	if opts.file == "" {
		flag.Usage()
		os.Exit(2)
	}
	return opts
}

func run(opts options) error {
	td, err := tuple.ParseSchema(opts.schema)
	if err != nil {
		return err
	}

	path := primitives.Filepath(opts.file)
	if !path.Exists() {
		return fmt.Errorf("table file %s does not exist", path)
	}

	pool, err := memory.NewBufferPool(nil, memory.DefaultConfig())
	if err != nil {
		return err
	}
	defer pool.Close()

	cfg := btree.DefaultConfig()
	cfg.PageSize = opts.pageSize
	file, err := btree.Open(path, td, opts.key, pool, cfg)
	if err != nil {
		return err
	}

	p := tea.NewProgram(newInspectModel(file, pool), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
