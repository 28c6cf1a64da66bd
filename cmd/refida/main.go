// Command refida builds and searches the semantic and lexical indexes of the
// research case study dataset.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kingsdigitallab/refida/internal/adapters/driven/ai"
	"github.com/kingsdigitallab/refida/internal/adapters/driven/config/file"
	"github.com/kingsdigitallab/refida/internal/adapters/driven/dataset/csvfile"
	"github.com/kingsdigitallab/refida/internal/adapters/driven/dataset/watcher"
	"github.com/kingsdigitallab/refida/internal/adapters/driven/segmenter/rules"
	"github.com/kingsdigitallab/refida/internal/adapters/driven/storage"
	"github.com/kingsdigitallab/refida/internal/adapters/driven/storage/memory"
	"github.com/kingsdigitallab/refida/internal/adapters/driving/cli"
	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
	"github.com/kingsdigitallab/refida/internal/core/ports/driving"
	"github.com/kingsdigitallab/refida/internal/core/services"
	"github.com/kingsdigitallab/refida/internal/logger"
)

// version is set by the linker: -ldflags "-X main.version=1.2.3".
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetInitializer(initialize)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// initialize wires the adapters and services for one run.
func initialize(_ context.Context, opts cli.Options) (*cli.Services, error) {
	logger.SetVerbose(opts.Verbose)

	configDir, err := resolveConfigDir(opts.ConfigDir)
	if err != nil {
		return nil, err
	}
	configStore := openConfigStore(configDir)

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	if opts.DataDir != "" {
		settings.DataDir = opts.DataDir
	}
	logger.Debug("data dir: %s, config: %s", settings.DataDir, configStore.Path())

	embedder := ai.NewLazyEmbeddingService(&settings.Embedding, ai.Options{
		ModelCacheDir: filepath.Join(configDir, "models"),
	})
	if embedder == nil {
		logger.Warn("no embedding provider configured: only lexical search is available")
	}

	factory, err := storage.NewFactory(storage.Config{
		DataDir:         settings.DataDir,
		Backend:         settings.Vector.Backend,
		HighlightBefore: settings.Search.HighlightBefore,
		HighlightAfter:  settings.Search.HighlightAfter,
	}, embedder)
	if err != nil {
		return nil, fmt.Errorf("configuring index storage: %w", err)
	}

	cache := services.NewIndexCache()
	segmenter := rules.New()
	lexical := services.NewLexicalIndex(factory, cache)

	var (
		documents *services.DocumentIndex
		sentences *services.SentenceIndex
		explainer *services.Explainer
		indexes   []driving.Index
	)
	if embedder != nil {
		documents = services.NewDocumentIndex(factory, cache)
		derived := documents
		if opts.DirectDocs {
			derived = nil
		}
		sentences = services.NewSentenceIndex(factory, cache, embedder, segmenter, derived)
		explainer = services.NewExplainer(services.ExplainerConfig{
			Strategy:        settings.Search.ExplainStrategy,
			MaxSnippets:     settings.Search.MaxSnippets,
			HighlightBefore: settings.Search.HighlightBefore,
			HighlightAfter:  settings.Search.HighlightAfter,
		}, documents, sentences, segmenter)

		indexes = append(indexes, sentences)
		if opts.DirectDocs {
			indexes = append(indexes, documents)
		}
	}
	indexes = append(indexes, lexical)

	reader := csvfile.NewDefault(settings.DataDir)
	if opts.Dataset != "" {
		reader = csvfile.New(opts.Dataset)
	}

	// Typed nil pointers must not reach the service as non-nil interfaces.
	var docIndex, sentIndex driving.Index
	if embedder != nil {
		docIndex, sentIndex = documents, sentences
	}
	search := services.NewSearchService(docIndex, sentIndex, lexical, explainer)
	search.SetDefaultLimit(settings.Search.Limit)

	return &cli.Services{
		Search:      search,
		Reindex:     services.NewReindexService(reader, settings.Search.Column, indexes...),
		Settings:    settingsService,
		DatasetPath: reader.Path(),
		NewWatcher: func(path string) (driven.DatasetWatcher, error) {
			w, err := watcher.New(path, watcher.DefaultDebounce)
			if err != nil {
				return nil, err
			}
			return w, nil
		},
		Close: func() error {
			err := cache.Close()
			if embedder != nil {
				if cerr := embedder.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}
			return err
		},
	}, nil
}

func resolveConfigDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, file.DefaultDirName), nil
}

// openConfigStore opens config.toml in dir, falling back to an in-memory
// store with defaults when the directory cannot be used.
func openConfigStore(dir string) driven.ConfigStore {
	store, err := file.NewConfigStore(dir)
	if err != nil {
		logger.Warn("cannot use config in %s (%v): using defaults, changes will not be saved", dir, err)
		return memory.NewConfigStore()
	}
	return store
}
