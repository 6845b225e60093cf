package main

import (
	"context"

	"github.com/Brownie44l1/fabric-inspector/internal/annotate"
	"github.com/Brownie44l1/fabric-inspector/internal/config"
	"github.com/Brownie44l1/fabric-inspector/internal/history"
	"github.com/Brownie44l1/fabric-inspector/internal/logging"
	"github.com/Brownie44l1/fabric-inspector/internal/model"
	"github.com/Brownie44l1/fabric-inspector/internal/pipeline"
	"github.com/Brownie44l1/fabric-inspector/internal/storage"
	"github.com/rs/zerolog"
)

// app bundles everything a command needs to classify images.
type app struct {
	model     *model.Server
	store     *storage.Store
	history   history.Store
	processor *pipeline.Processor
	closers   []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg config.Config, log zerolog.Logger) (*app, error) {
	a := &app{}

	log.Info().Str("model", cfg.ModelPath).Msg("loading model")

	server, err := model.NewServer(model.Options{
		ModelPath:         cfg.ModelPath,
		MetadataPath:      cfg.MetadataPath,
		SharedLibraryPath: cfg.SharedLibraryPath,
		TopK:              cfg.TopK,
	})
	if err != nil {
		return nil, err
	}
	a.model = server
	a.closers = append(a.closers, server.Close)

	log.Info().Strs("classes", server.Metadata.Classes).Int("image_size", server.Metadata.ImageSize).Msg("model loaded")

	a.store, err = storage.New(cfg.UploadDir, cfg.AnnotatedDir)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.DatabaseURL != "" {
		pg, err := history.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.history = pg
		a.closers = append(a.closers, pg.Close)
		log.Info().Msg("recording prediction history in postgres")
	} else {
		a.history = history.NewMemory(200)
	}

	a.processor = pipeline.New(
		a.store,
		server,
		annotate.New(cfg.AnnotateOptions()),
		a.history,
		logging.For(log, "pipeline"),
	)

	return a, nil
}
