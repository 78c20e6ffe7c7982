package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/conorfennell/knolimport/internal/config"
	"github.com/conorfennell/knolimport/internal/domain"
	"github.com/conorfennell/knolimport/internal/importer"
	"github.com/conorfennell/knolimport/internal/mapping"
	"github.com/conorfennell/knolimport/internal/source"
	"github.com/conorfennell/knolimport/internal/storage"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	setupLogger(cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("import failed", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func run(cfg *config.Config) error {
	db, err := storage.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Debug("database opened", "path", cfg.DB)

	var model *domain.Model
	if cfg.Model != "" {
		model, err = db.ModelByName(cfg.Model)
	} else {
		model, err = db.CurrentModel()
	}
	if err != nil {
		return err
	}

	collected, err := source.Collect(cfg.Input, source.Options{
		Format:    source.Format(cfg.Format),
		Delimiter: cfg.DelimiterRune(),
		Header:    cfg.Header,
		ReposDir:  cfg.ReposDir,
		Progress:  os.Stderr,
	})
	if err != nil {
		return err
	}
	for _, e := range collected.Errors {
		slog.Warn("skipped deck file", "error", e)
	}

	order, err := importer.ParseCardOrder(cfg.NewCardOrder)
	if err != nil {
		return err
	}
	opts := importer.Options{
		TagsToAdd:     cfg.Tags,
		TagDuplicates: cfg.TagDuplicates,
		NewCardOrder:  order,
	}
	if cfg.UpdateEnabled() {
		f, ok := model.FieldByName(cfg.Update.Field)
		if !ok {
			return fmt.Errorf("model %q has no field %q to update by", model.Name, cfg.Update.Field)
		}
		opts.UpdateKey = &domain.UpdateKey{Slot: cfg.Update.Slot, Field: f.ID}
	}

	var m mapping.Mapping
	if len(cfg.Mapping) > 0 {
		if m, err = mapping.Resolve(model, cfg.Mapping); err != nil {
			return err
		}
	}

	var res *importer.Result
	err = db.WithTx(func(tx *storage.Tx) error {
		imp := importer.New(tx, model, domain.FieldCount(collected.Records), opts)
		if m != nil {
			imp.SetMapping(m)
		}
		slog.Debug("field mapping", "slots", imp.Mapping().Names())
		var runErr error
		res, runErr = imp.Run(collected.Records)
		return runErr
	})
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d notes, updated %d, from %d records in %d files.\n",
		res.Imported, res.Updated, len(collected.Records), collected.Files)
	if len(res.Log) > 0 {
		fmt.Println("\nSkipped:")
		for _, line := range res.Log {
			fmt.Printf("- %s\n", line)
		}
	}
	return nil
}
