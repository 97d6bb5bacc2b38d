package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/minehattan/whitelister/internal/whitelist/common/log"
	"github.com/minehattan/whitelister/internal/whitelist/config"
	"github.com/minehattan/whitelister/internal/whitelist/domain"
	"github.com/minehattan/whitelister/internal/whitelist/gateways/mojang"
	"github.com/minehattan/whitelister/internal/whitelist/repos/profilecache"
	"github.com/minehattan/whitelister/internal/whitelist/repos/store"
	boltstore "github.com/minehattan/whitelister/internal/whitelist/repos/store/bolt"
	"github.com/minehattan/whitelister/internal/whitelist/repos/store/flatfile"
	"github.com/minehattan/whitelister/internal/whitelist/repos/store/sqlstore"
	"github.com/minehattan/whitelister/internal/whitelist/services/resolve"
)

const (
	version = "0.1.0-dev"
	appName = "whitelisterd"
)

func usage() {
	fmt.Fprintf(os.Stderr, `%s %s - manages the server whitelist

Usage:
  %s [flags] <command> [args]

Commands:
  add <name>       add the player of the given name to the whitelist
  remove <name>    remove the player of the given name from the whitelist
  rm <name>        alias for remove
  check <name>     check whether the player of the given name is whitelisted
  list             list all whitelist entries
  export [file]    export all entries as CSV (default whitelistExport.csv)

Configuration is read from WL_* environment variables.

Flags:
%s`, appName, version, appName, flag.CommandLine.FlagUsages())
}

func main() {
	showVersion := flag.BoolP("version", "v", false, "print the version and exit")
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", appName, version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	st, err := buildStore(cfg)
	if err != nil {
		log.Fatal(map[string]any{"backend": cfg.Backend, "error": err.Error()}, "failed to open whitelist store")
	}
	defer st.Close()

	resolver, err := buildResolver(cfg, st)
	if err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "failed to build name resolver")
	}

	ctx := context.Background()
	if err := dispatch(ctx, args, st, resolver); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildStore opens the configured backend.
func buildStore(cfg *config.AppConfig) (store.Store, error) {
	switch cfg.Backend {
	case "flatfile":
		return flatfile.New(flatfile.Options{
			Path:          cfg.Flatfile.Path,
			CaseSensitive: cfg.Flatfile.CaseSensitive,
			// Admin commands are one-shot; polling only matters for a
			// long-lived gate process, so it stays off here.
		})
	case "sql":
		s, err := sqlstore.New(sqlstore.Options{
			Driver: cfg.SQL.Driver,
			DSN:    cfg.SQL.DSN,
			Table:  cfg.SQL.Table,
		})
		if err != nil {
			return nil, err
		}
		if cfg.SQL.Driver == "sqlite" {
			if err := s.EnsureSchema(context.Background()); err != nil {
				s.Close()
				return nil, err
			}
		}
		return s, nil
	case "bolt":
		return boltstore.New(cfg.Bolt.Path, nil)
	case "none":
		return store.NewNop(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// buildResolver assembles the resolution chain: the whitelist store first
// (no network cost for known players), then the external profile API behind
// an LRU of positive results.
func buildResolver(cfg *config.AppConfig, st store.Store) (resolve.Resolver, error) {
	external, err := profilecache.Wrap(mojang.New(mojang.Options{
		BaseURL: cfg.Resolver.ProfileURL,
		Timeout: time.Duration(cfg.Resolver.TimeoutSeconds) * time.Second,
	}), cfg.Resolver.CacheSize)
	if err != nil {
		return nil, err
	}
	return resolve.NewChain(resolve.FromStore(st), external), nil
}

func dispatch(ctx context.Context, args []string, st store.Store, resolver resolve.Resolver) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "add":
		return cmdAdd(ctx, rest, st, resolver)
	case "remove", "rm":
		return cmdRemove(ctx, rest, st, resolver)
	case "check":
		return cmdCheck(ctx, rest, st, resolver)
	case "list":
		return cmdList(ctx, st)
	case "export":
		return cmdExport(ctx, rest, st)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// resolveName maps a display name to an identifier through the chain,
// turning a miss into a user-facing failure.
func resolveName(ctx context.Context, resolver resolve.Resolver, name string) (domain.Identifier, error) {
	p, ok, err := resolver.FindByName(ctx, name)
	if err != nil {
		return domain.NilIdentifier, fmt.Errorf("failed to look up an identifier for '%s': %w", name, err)
	}
	if !ok {
		return domain.NilIdentifier, fmt.Errorf("'%s' could not be associated with an identifier - is it a valid account?", name)
	}
	return p.ID, nil
}

func cmdAdd(ctx context.Context, args []string, st store.Store, resolver resolve.Resolver) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: add <name>")
	}
	name := args[0]
	id, err := resolveName(ctx, resolver, name)
	if err != nil {
		return err
	}
	if st.Check(ctx, domain.Entry{ID: id, Name: name}).OnWhitelist {
		return fmt.Errorf("'%s' is already on the whitelist", name)
	}
	if err := st.Add(ctx, domain.Entry{ID: id, Name: name}); err != nil {
		return err
	}
	fmt.Printf("'%s' was added to the whitelist.\n", name)
	return nil
}

func cmdRemove(ctx context.Context, args []string, st store.Store, resolver resolve.Resolver) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: remove <name>")
	}
	name := args[0]
	id, err := resolveName(ctx, resolver, name)
	if err != nil {
		return err
	}
	if !st.Check(ctx, domain.Entry{ID: id, Name: name}).OnWhitelist {
		return fmt.Errorf("'%s' is not on the whitelist", name)
	}
	if err := st.Remove(ctx, domain.Entry{ID: id, Name: name}); err != nil {
		return err
	}
	fmt.Printf("'%s' was removed from the whitelist.\n", name)
	return nil
}

func cmdCheck(ctx context.Context, args []string, st store.Store, resolver resolve.Resolver) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: check <name>")
	}
	name := args[0]
	id, err := resolveName(ctx, resolver, name)
	if err != nil {
		return err
	}
	result := st.Check(ctx, domain.Entry{ID: id, Name: name})
	switch {
	case !result.OnWhitelist:
		fmt.Printf("'%s' is not on the whitelist.\n", name)
	case result.WhitelistedName != name:
		fmt.Printf("'%s' is on the whitelist, but with a different name ('%s').\n", name, result.WhitelistedName)
	default:
		fmt.Printf("'%s' is on the whitelist.\n", name)
	}
	return nil
}

func cmdList(ctx context.Context, st store.Store) error {
	entries, err := st.Snapshot(ctx)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	fmt.Printf("Whitelist (%d entries):\n", len(entries))
	for _, e := range entries {
		if e.ID.IsNil() {
			fmt.Printf("  %s\n", e.Name)
			continue
		}
		fmt.Printf("  %s - %s\n", e.Name, e.ID)
	}
	return nil
}

func cmdExport(ctx context.Context, args []string, st store.Store) error {
	path := "whitelistExport.csv"
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("the export file '%s' already exists", path)
	}

	entries, err := st.Snapshot(ctx)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create the export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, e := range entries {
		if err := w.Write([]string{e.Name, e.ID.String()}); err != nil {
			return fmt.Errorf("failed to write the export file: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write the export file: %w", err)
	}
	fmt.Printf("Whitelist entries successfully exported to '%s'.\n", path)
	return nil
}
