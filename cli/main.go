package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"seqfile"
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".exit"),
	readline.PcItem("TABLES"),
	readline.PcItem("CREATE"),
	readline.PcItem("INSERT"),
	readline.PcItem("SCAN"),
	readline.PcItem("RANGE"),
	readline.PcItem("FIELD"),
	readline.PcItem("JOIN"),
)

const helpText = `
seqfile - sorted sequential record files.

Usage:
  seqfile [options]

Options:
  -dir string             - Data directory (default "./data")
  -block-size int         - Block size of table files (default 40)
  -compression string     - Catalog compression: snappy, none, lz4, zstd (default "snappy")
  -mirror                 - Mirror inserts into a bolt store for cross-checking (default true)
  -cache int              - Block cache size in bytes, 0 disables
  -v                      - Debug logging

Commands:
  .help                           - Show this help message
  .exit                           - Exit the program
  TABLES                          - List tables and their fields
  CREATE name,f1,...,fN,s1,...,sN - Create a table; f1 is the search key
  INSERT table rec [rec ...]      - Insert records, values separated by ';', null for null
  SCAN table                      - Print every record in key order
  RANGE table field start end     - Print records with start <= field <= end
  FIELD table field               - Print one field of every record
  JOIN left right                 - Sort-merge join on the search keys
`

type config struct {
	dir         string
	blockSize   int
	compression string
	mirror      bool
	cacheSize   int64
	verbose     bool
}

func parseFlags() config {
	var cfg config
	flag.Usage = func() { fmt.Fprint(os.Stderr, helpText) }
	flag.StringVar(&cfg.dir, "dir", "./data", "data directory")
	flag.IntVar(&cfg.blockSize, "block-size", seqfile.DefaultBlockSize, "block size of table files")
	flag.StringVar(&cfg.compression, "compression", seqfile.CompSnappy.String(), "catalog compression")
	flag.BoolVar(&cfg.mirror, "mirror", true, "mirror inserts into a bolt store")
	flag.Int64Var(&cfg.cacheSize, "cache", 0, "block cache size in bytes")
	flag.BoolVar(&cfg.verbose, "v", false, "debug logging")
	flag.Parse()
	return cfg
}

type shell struct {
	db      *seqfile.DB
	catalog *seqfile.FileCatalog
	mirror  *seqfile.Mirror
	out     io.Writer
}

func main() {
	cfg := parseFlags()
	logger := log.New()
	logger.SetOutput(os.Stderr)
	if cfg.verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}

	sh, err := open(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %s\n", cfg.dir, err)
		os.Exit(1)
	}
	defer sh.close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "seqfile> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".seqfile_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %s\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Println("Enter .help for usage hints.")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading input: %s\n", err)
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == ".exit" {
			break
		}
		if err := sh.exec(line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
	}
}

func open(cfg config, logger *log.Logger) (*shell, error) {
	if err := os.MkdirAll(cfg.dir, 0755); err != nil {
		return nil, err
	}
	comp, err := seqfile.ParseCompressAlgorithm(cfg.compression)
	if err != nil {
		return nil, err
	}
	catalog, err := seqfile.OpenFileCatalog(seqfile.DefaultCatalogPath(cfg.dir), comp)
	if err != nil {
		return nil, err
	}
	db, err := seqfile.Open(cfg.dir, catalog, &seqfile.Options{
		BlockSize:      cfg.blockSize,
		BlockCacheSize: cfg.cacheSize,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	sh := &shell{db: db, catalog: catalog, out: os.Stdout}
	if cfg.mirror {
		sh.mirror, err = seqfile.OpenMirror(filepath.Join(cfg.dir, "mirror.bolt"), logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		db.AddHook(sh.mirror)
	}
	return sh, nil
}

func (sh *shell) close() {
	if sh.mirror != nil {
		_ = sh.mirror.Close()
	}
	_ = sh.db.Close()
}

func (sh *shell) exec(line string) error {
	parts := strings.Fields(line)
	cmd := strings.ToUpper(parts[0])
	args := parts[1:]
	switch cmd {
	case ".HELP":
		fmt.Fprint(sh.out, helpText)
		return nil
	case "TABLES":
		return sh.tables()
	case "CREATE":
		if len(args) != 1 {
			return errors.New("usage: CREATE name,f1,...,fN,s1,...,sN")
		}
		return sh.create(args[0])
	case "INSERT":
		if len(args) < 2 {
			return errors.New("usage: INSERT table rec [rec ...]")
		}
		return sh.insert(args[0], args[1:])
	case "SCAN":
		if len(args) != 1 {
			return errors.New("usage: SCAN table")
		}
		return sh.scan(args[0])
	case "RANGE":
		if len(args) != 4 {
			return errors.New("usage: RANGE table field start end")
		}
		rows, err := sh.db.RangeScan(args[0], args[1], args[2], args[3])
		if err != nil {
			return err
		}
		return sh.print(rows)
	case "FIELD":
		if len(args) != 2 {
			return errors.New("usage: FIELD table field")
		}
		return sh.field(args[0], args[1])
	case "JOIN":
		if len(args) == 1 {
			args = strings.Split(args[0], ",")
		}
		if len(args) != 2 {
			return errors.New("usage: JOIN left right")
		}
		return sh.join(args[0], args[1])
	}
	return errors.Errorf("unknown command %s, try .help", parts[0])
}

func (sh *shell) tables() error {
	for _, name := range sh.catalog.Tables() {
		schema, err := sh.catalog.Fields(name)
		if err != nil {
			return err
		}
		fields := make([]string, len(schema))
		for i, f := range schema {
			fields[i] = fmt.Sprintf("%s(%d)", f.Name, f.Size)
		}
		fmt.Fprintf(sh.out, "%s: %s\n", name, strings.Join(fields, ", "))
	}
	return nil
}

func (sh *shell) create(def string) error {
	name, schema, err := seqfile.ParseTableDef(def)
	if err != nil {
		return err
	}
	if err := sh.catalog.Define(name, schema); err != nil {
		return err
	}
	if err := sh.db.CreateTable(name); err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Created %s; %s is the search key\n", name, schema[0].Name)
	return nil
}

func (sh *shell) insert(table string, lines []string) error {
	schema, err := sh.catalog.Fields(table)
	if err != nil {
		return err
	}
	for _, line := range lines {
		rec := seqfile.ParseRecord(schema, line)
		off, err := sh.db.Insert(table, rec.Row)
		var hookErr *seqfile.HookError
		if errors.As(err, &hookErr) {
			fmt.Fprintf(sh.out, "Inserted at offset %d, mirror failed: %s\n", off, hookErr.Err)
			continue
		} else if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "Inserted at offset %d\n", off)
	}
	return nil
}

func (sh *shell) scan(table string) error {
	s, err := sh.db.Scan(table)
	if err != nil {
		return err
	}
	defer s.Close()
	w := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "OFFSET\t%s\n", strings.Join(s.Schema().Names(), "\t"))
	for s.Next() {
		fmt.Fprintf(w, "%d\t%s\n", s.Offset(), strings.Join(s.Row().Strings(), "\t"))
	}
	if err := s.Err(); err != nil {
		return err
	}
	return w.Flush()
}

func (sh *shell) field(table, field string) error {
	values, err := sh.db.FieldValues(table, field)
	if err != nil {
		return err
	}
	for i, v := range values {
		s := v.String
		if v.IsNull() {
			s = "NULL"
		}
		fmt.Fprintf(sh.out, "%d: %s\n", i+1, s)
	}
	return nil
}

func (sh *shell) join(left, right string) error {
	rows, err := sh.db.Join(left, right)
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, "-- sort-merge join")
	if err := sh.print(rows); err != nil {
		return err
	}
	if sh.mirror == nil {
		return nil
	}
	mrows, err := sh.mirror.Join(left, right)
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, "-- mirror join")
	return sh.print(mrows)
}

func (sh *shell) print(rows []seqfile.Row) error {
	if len(rows) == 0 {
		fmt.Fprintln(sh.out, "(0 rows)")
		return nil
	}
	w := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	names := make([]string, len(rows[0]))
	for i, c := range rows[0] {
		names[i] = c.Name
	}
	fmt.Fprintf(w, "#\t%s\n", strings.Join(names, "\t"))
	for i, row := range rows {
		fmt.Fprintf(w, "%d\t%s\n", i+1, strings.Join(row.Strings(), "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "(%d rows)\n", len(rows))
	return nil
}
