// Package main implements the meridian catalog binary. It opens the
// configured storage engine, initializes the catalog over it, and executes
// one schema operation per invocation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/meridiandb/meridian/internal/catalog"
	"github.com/meridiandb/meridian/internal/config"
	"github.com/meridiandb/meridian/internal/engine"
	"github.com/meridiandb/meridian/internal/idgen"
	"github.com/meridiandb/meridian/pkg/types"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		engineType  string
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&engineType, "engine", "", "Storage engine: sqlite, s3, memory")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Printf("meridian version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(configFile, dataDir, engineType)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	eng, err := openEngine(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open storage engine: %v", err)
	}

	cat := catalog.New(eng, idgen.New())
	if err := cat.Init(ctx); err != nil {
		eng.Close()
		log.Fatalf("Failed to initialize catalog: %v", err)
	}
	defer cat.Close()

	if err := runCommand(ctx, cat, args[0], args[1:]); err != nil {
		log.Fatalf("%v", err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Meridian - Relational Catalog Over Key-Ordered Storage\n\n")
	fmt.Fprintf(os.Stderr, "Usage: meridian [options] <command> [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  create-table <name> <col:type[:pk|notnull|unique]>...\n")
	fmt.Fprintf(os.Stderr, "  drop-table <name>\n")
	fmt.Fprintf(os.Stderr, "  describe <name>\n")
	fmt.Fprintf(os.Stderr, "  tables [-all]\n")
	fmt.Fprintf(os.Stderr, "  partitions <table>\n")
	fmt.Fprintf(os.Stderr, "  set-partition <table> <column> <list|range|hash>\n")
	fmt.Fprintf(os.Stderr, "  add-partition <table> <partition> <value>...\n")
	fmt.Fprintf(os.Stderr, "  add-constraint <partition> <column>=<value>\n")
	fmt.Fprintf(os.Stderr, "  check [-repair]\n")
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  meridian create-table orders id:integer:pk region:text:notnull total:real\n")
	fmt.Fprintf(os.Stderr, "  meridian set-partition orders region list\n")
	fmt.Fprintf(os.Stderr, "  meridian add-partition orders orders_east NY MA\n")
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  MERIDIAN_DATA_DIR      Base directory for data files\n")
	fmt.Fprintf(os.Stderr, "  MERIDIAN_ENGINE_TYPE   Storage engine (sqlite, s3, memory)\n")
	fmt.Fprintf(os.Stderr, "  MERIDIAN_S3_BUCKET     S3 bucket for the s3 engine\n")
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, engineType string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	// Command line flags take highest priority.
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if engineType != "" {
		cfg.Engine.Type = engineType
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openEngine(ctx context.Context, cfg *config.Config) (engine.Engine, error) {
	switch cfg.Engine.Type {
	case "sqlite":
		return engine.NewSQLiteEngine(cfg.CatalogPath())
	case "s3":
		return engine.NewS3Engine(ctx, cfg.Engine.S3.Bucket, engine.S3Config{
			Region:       cfg.Engine.S3.Region,
			Endpoint:     cfg.Engine.S3.Endpoint,
			UsePathStyle: cfg.Engine.S3.Endpoint != "",
			Root:         cfg.Engine.S3.Root,
		})
	case "memory":
		return engine.NewMemoryEngine(), nil
	default:
		return nil, fmt.Errorf("unknown engine type: %s", cfg.Engine.Type)
	}
}

func runCommand(ctx context.Context, cat *catalog.Catalog, command string, args []string) error {
	switch command {
	case "create-table":
		return cmdCreateTable(ctx, cat, args)
	case "drop-table":
		return cmdDropTable(ctx, cat, args)
	case "describe":
		return cmdDescribe(cat, args)
	case "tables":
		return cmdTables(cat, args)
	case "partitions":
		return cmdPartitions(cat, args)
	case "set-partition":
		return cmdSetPartition(ctx, cat, args)
	case "add-partition":
		return cmdAddPartition(ctx, cat, args)
	case "add-constraint":
		return cmdAddConstraint(ctx, cat, args)
	case "check":
		return cmdCheck(ctx, cat, args)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func cmdCreateTable(ctx context.Context, cat *catalog.Catalog, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: create-table <name> <col:type[:pk|notnull|unique]>...")
	}

	columns := make([]types.Column, 0, len(args)-1)
	for _, spec := range args[1:] {
		column, err := parseColumnSpec(spec)
		if err != nil {
			return err
		}
		columns = append(columns, column)
	}

	table, err := cat.CreateTable(ctx, args[0], columns)
	if err != nil {
		return err
	}
	fmt.Printf("created table %s (id %d) with %d columns\n", table.Name, table.ID, len(table.Columns))
	return nil
}

// parseColumnSpec parses "name:type" with optional pk, notnull and unique
// modifiers, e.g. "id:integer:pk" or "region:text:notnull".
func parseColumnSpec(spec string) (types.Column, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 {
		return types.Column{}, fmt.Errorf("invalid column spec %q, want name:type[:modifiers]", spec)
	}

	column := types.Column{
		Name: parts[0],
		Type: types.ColumnType(strings.ToUpper(parts[1])),
	}
	if !column.Type.Valid() {
		return types.Column{}, fmt.Errorf("invalid column type %q in spec %q", parts[1], spec)
	}

	for _, modifier := range parts[2:] {
		switch strings.ToLower(modifier) {
		case "pk":
			column.PrimaryKey = true
			column.NotNull = true
		case "notnull":
			column.NotNull = true
		case "unique":
			column.Unique = true
		default:
			return types.Column{}, fmt.Errorf("unknown column modifier %q in spec %q", modifier, spec)
		}
	}
	return column, nil
}

func cmdDropTable(ctx context.Context, cat *catalog.Catalog, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: drop-table <name>")
	}
	if err := cat.DropTable(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("dropped table %s\n", args[0])
	return nil
}

func cmdDescribe(cat *catalog.Catalog, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: describe <name>")
	}

	table, err := cat.GetTable(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("table %s (id %d)\n", table.Name, table.ID)
	for _, column := range table.Columns {
		var modifiers []string
		if column.PrimaryKey {
			modifiers = append(modifiers, "pk")
		}
		if column.NotNull {
			modifiers = append(modifiers, "notnull")
		}
		if column.Unique {
			modifiers = append(modifiers, "unique")
		}
		suffix := ""
		if len(modifiers) > 0 {
			suffix = " " + strings.Join(modifiers, ",")
		}
		fmt.Printf("  %-20s %s%s\n", column.Name, column.Type, suffix)
	}
	if table.Partitioned() {
		fmt.Printf("partitioned by %s (%s)\n", table.PartitionColumn, table.Strategy)
		partitions, err := cat.ListPartitions(table.Name)
		if err != nil {
			return err
		}
		for _, partition := range partitions {
			fmt.Printf("  partition %s: %s\n", partition.Name, strings.Join(partition.Values, ", "))
		}
	}
	return nil
}

func cmdTables(cat *catalog.Catalog, args []string) error {
	fs := flag.NewFlagSet("tables", flag.ContinueOnError)
	includeSystem := fs.Bool("all", false, "Include system tables")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tables, err := cat.ListTables(*includeSystem)
	if err != nil {
		return err
	}
	for _, table := range tables {
		marker := ""
		if table.System {
			marker = " (system)"
		}
		fmt.Printf("%-30s id=%d cols=%d strategy=%s%s\n",
			table.Name, table.ID, len(table.Columns), table.Strategy, marker)
	}
	return nil
}

func cmdPartitions(cat *catalog.Catalog, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: partitions <table>")
	}

	partitions, err := cat.ListPartitions(args[0])
	if err != nil {
		return err
	}
	for _, partition := range partitions {
		fmt.Printf("%-30s values=[%s] constraints=%d\n",
			partition.Name, strings.Join(partition.Values, ","), len(partition.Constraints))
	}
	return nil
}

func cmdSetPartition(ctx context.Context, cat *catalog.Catalog, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: set-partition <table> <column> <list|range|hash>")
	}

	strategy, err := types.ParseStrategy(args[2])
	if err != nil {
		return err
	}
	if err := cat.SetPartition(ctx, args[0], args[1], strategy); err != nil {
		return err
	}
	fmt.Printf("table %s partitioned by %s (%s)\n", args[0], args[1], strategy)
	return nil
}

func cmdAddPartition(ctx context.Context, cat *catalog.Catalog, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: add-partition <table> <partition> <value>...")
	}

	partition, err := cat.AddListPartition(ctx, args[0], args[1], args[2:])
	if err != nil {
		return err
	}
	fmt.Printf("created partition %s on %s with %d values\n",
		partition.Name, partition.Table, len(partition.Values))
	return nil
}

func cmdAddConstraint(ctx context.Context, cat *catalog.Catalog, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: add-constraint <partition> <column>=<value>")
	}

	column, value, ok := strings.Cut(args[1], "=")
	if !ok || column == "" {
		return fmt.Errorf("invalid constraint %q, want column=value", args[1])
	}
	constraint := types.Constraint{Column: column, Value: value}
	if err := cat.AddPartitionConstraint(ctx, args[0], constraint); err != nil {
		return err
	}
	fmt.Printf("added constraint %s=%s to partition %s\n", column, value, args[0])
	return nil
}

func cmdCheck(ctx context.Context, cat *catalog.Catalog, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	repair := fs.Bool("repair", false, "Remove orphaned partitions and reload missing tables")
	if err := fs.Parse(args); err != nil {
		return err
	}

	report, err := cat.Reconcile(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("checked %d table records, %d partition records\n",
		report.TotalTables, report.TotalPartitions)
	if !report.HasIssues() {
		fmt.Println("no issues found")
		return nil
	}

	for _, name := range report.MissingDurable {
		fmt.Printf("missing durable record: table %s\n", name)
	}
	for _, name := range report.Unloaded {
		fmt.Printf("unloaded durable record: table %s\n", name)
	}
	for _, name := range report.OrphanedPartitions {
		fmt.Printf("orphaned partition: %s\n", name)
	}
	for _, key := range report.CorruptRecords {
		fmt.Printf("corrupt record: %s\n", key)
	}

	if *repair {
		removed, err := cat.RepairOrphans(ctx, report)
		if err != nil {
			return err
		}
		fmt.Printf("repair removed %d orphaned partitions\n", removed)
	}
	return nil
}
