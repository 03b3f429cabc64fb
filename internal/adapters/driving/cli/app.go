package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/stackqa/internal/adapters/driven/ai"
	configfile "github.com/custodia-labs/stackqa/internal/adapters/driven/config/file"
	"github.com/custodia-labs/stackqa/internal/adapters/driven/corpus/csv"
	"github.com/custodia-labs/stackqa/internal/adapters/driven/storage/bolt"
	storagefile "github.com/custodia-labs/stackqa/internal/adapters/driven/storage/file"
	"github.com/custodia-labs/stackqa/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/stackqa/internal/adapters/driven/vectorindex/flat"
	"github.com/custodia-labs/stackqa/internal/connectors/stackexchange"
	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
	"github.com/custodia-labs/stackqa/internal/core/ports/driving"
	"github.com/custodia-labs/stackqa/internal/core/services"
	"github.com/custodia-labs/stackqa/internal/logger"
	"github.com/custodia-labs/stackqa/internal/normalisers/html"
)

// EnvStackExchangeKey names the environment variable holding a StackExchange API key.
const EnvStackExchangeKey = "STACKEXCHANGE_KEY"

// indexDirName is the default index directory under the config directory.
const indexDirName = "index"

// Services used by commands. Set by the composition root below, or directly by tests.
var (
	settingsService   driving.SettingsService
	retrievalService  driving.RetrievalService
	askService        driving.AskService
	indexService      driving.IndexService
	corpusService     driving.CorpusService
	evaluationService driving.EvaluationService

	// promptStore is nil when services were injected.
	promptStore *configfile.PromptStore

	closers []func() error
)

// snapshotStore hands out per-partition index stores.
type snapshotStore interface {
	IndexStore(partition string) driven.IndexStore
	Close() error
}

// resolveConfigDir returns --config-dir or the default directory.
func resolveConfigDir() (string, error) {
	if configDir != "" {
		return configDir, nil
	}
	return configfile.DefaultDir()
}

// initSettings creates the settings service and prompt store once.
func initSettings() error {
	if settingsService != nil {
		return nil
	}

	dir, err := resolveConfigDir()
	if err != nil {
		return err
	}
	store, err := configfile.NewConfigStore(dir)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	settingsService = services.NewSettingsService(store, ai.NewConfigValidator())

	promptStore, err = configfile.NewPromptStore(filepath.Join(dir, configfile.PromptsDir))
	if err != nil {
		return fmt.Errorf("open prompts: %w", err)
	}
	return nil
}

// initServices wires the retrieval stack from settings. It does not load or
// build indexes; commands call indexService.Ensure when they need them.
func initServices(_ context.Context) error {
	if indexService != nil {
		return nil
	}
	if err := initSettings(); err != nil {
		return err
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	if err := settingsService.Validate(); err != nil {
		return err
	}

	logger.Section("Initialising services")
	aiServices, err := ai.Init(settings)
	if err != nil {
		return err
	}
	closers = append(closers, func() error { aiServices.Close(); return nil })

	store, err := openSnapshotStore(settings)
	if err != nil {
		return err
	}
	closers = append(closers, store.Close)

	reader := csv.NewReader(html.New(), csv.Config{AllowMissingLink: true})
	var partitions []services.Partition
	for language, path := range corpusPartitions(settings) {
		idx := flat.New(aiServices.EmbeddingService, store.IndexStore(language), flat.Config{
			Language:    language,
			Backend:     settings.Index.Backend.String(),
			BatchSize:   settings.Index.BatchSize,
			Concurrency: settings.Index.Concurrency,
		})
		partitions = append(partitions, services.Partition{Language: language, CorpusPath: path, Index: idx})
	}
	indexer := services.NewIndexService(reader, partitions)
	closers = append(closers, indexer.Close)
	indexService = indexer

	retrieval := services.NewRetrievalService(aiServices.EmbeddingService, indexer.Indexes(),
		services.RetrievalConfigFromSettings(settings))
	retrievalService = retrieval

	var generator driven.AnswerGenerator
	if aiServices.LLMService != nil {
		generator = services.NewAnswerGenerator(aiServices.LLMService, promptStore)
	}
	asker := services.NewAskService(retrieval, generator, settings.Answer.Language)
	askService = asker
	evaluationService = services.NewEvaluationService(aiServices.LLMService, promptStore, asker, 0)

	logger.Info("embedding %s, %d partition(s), llm configured: %t",
		aiServices.EmbeddingService.ModelName(), len(partitions), aiServices.LLMService != nil)
	return nil
}

// initCorpusService wires the StackExchange fetcher and CSV writer.
func initCorpusService() {
	if corpusService != nil {
		return
	}
	client := stackexchange.NewClient(stackexchange.Config{Key: os.Getenv(EnvStackExchangeKey)})
	corpusService = services.NewCorpusService(stackexchange.NewFetcher(client), csv.NewWriter())
}

// openSnapshotStore opens the index backend selected in settings.
func openSnapshotStore(settings *domain.AppSettings) (snapshotStore, error) {
	dir := settings.Index.Dir
	if dir == "" {
		base, err := resolveConfigDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, indexDirName)
	}

	var (
		store snapshotStore
		err   error
	)
	switch settings.Index.Backend {
	case domain.IndexBackendSQLite:
		store, err = sqlite.NewStore(dir)
	case domain.IndexBackendBolt:
		store, err = bolt.NewStore(dir)
	case domain.IndexBackendFile, "":
		store, err = storagefile.NewStore(dir)
	default:
		return nil, fmt.Errorf("%w: unknown index backend %q", domain.ErrInvalidInput, settings.Index.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s index store: %w", settings.Index.Backend, err)
	}
	logger.Debug("index store: %s in %s", settings.Index.Backend, dir)
	return store, nil
}

// corpusPartitions returns language to corpus path, with corpus.path serving
// the default language unless it has an explicit partition.
func corpusPartitions(settings *domain.AppSettings) map[string]string {
	out := make(map[string]string, len(settings.Corpus.Partitions)+1)
	for language, path := range settings.Corpus.Partitions {
		out[language] = path
	}
	if _, ok := out[settings.Corpus.DefaultLanguage]; !ok && settings.Corpus.Path != "" {
		out[settings.Corpus.DefaultLanguage] = settings.Corpus.Path
	}
	return out
}

// shutdown releases everything the composition root opened, newest first.
func shutdown() {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	closers = nil
	if err := errors.Join(errs...); err != nil {
		logger.Warn("shutdown: %v", err)
	}
}
