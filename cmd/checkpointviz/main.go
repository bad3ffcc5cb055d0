package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/astromechza/cwse/internal/server"
	"github.com/astromechza/cwse/pkg/viz"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	sqlitePath := flag.String("sqlite", "", "path to a sqlite checkpoint store")
	postgresDSN := flag.String("postgres", "", "postgres DSN of a checkpoint store")
	out := flag.String("out", "", "output SVG path; defaults to a temp file")
	flag.Parse()

	if *sqlitePath == "" && *postgresDSN == "" {
		return fmt.Errorf("one of -sqlite or -postgres is required")
	}

	ctx := context.Background()

	var store server.CheckpointStore
	switch {
	case *sqlitePath != "":
		s, err := server.OpenSQLiteCheckpointStore(*sqlitePath)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	case *postgresDSN != "":
		s, err := server.OpenPostgresCheckpointStore(ctx, *postgresDSN)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	metas, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list checkpoints: %w", err)
	}

	nodes := make([]viz.Lineage, 0, len(metas))
	for _, meta := range metas {
		shapes, err := store.Fetch(ctx, meta.Number)
		if err != nil {
			return fmt.Errorf("fetch checkpoint %d: %w", meta.Number, err)
		}
		nodes = append(nodes, viz.Lineage{Number: meta.Number, Shapes: shapes, CreatedAt: meta.CreatedAt})
	}

	if *out != "" {
		if err := viz.RenderLineageToSvg(nodes, *out); err != nil {
			return err
		}
		slog.Info("rendered", "path", *out)
		return nil
	}

	path, err := viz.RenderLineageToTemp(nodes)
	if err != nil {
		return err
	}
	slog.Info("rendered", "path", "file://"+path)
	return nil
}
