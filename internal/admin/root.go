package admin

import (
	"context"
	"fmt"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/enums"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/structs"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/eventlog"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/infra"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/logger"
	"github.com/spf13/cobra"
)

// LogOpener connects to the configured event log. The returned func releases it.
type LogOpener func(ctx context.Context) (eventlog.Log, *structs.Configs, func(), error)

const rootLongDesc = `Operational commands for the catalog similarity pipeline.

Events are appended to the same stream the indexing consumers read, pending
counts come from the consumer group, and similarity lookups go through a
running serving API.`

// NewRootCmd builds the admin CLI. open is swapped in tests.
func NewRootCmd(open LogOpener) *cobra.Command {
	if open == nil {
		open = OpenConfiguredLog
	}
	cmd := &cobra.Command{
		Use:           "catalog-sync-admin",
		Short:         "Catalog similarity pipeline admin",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(NewPublishCmd(open), NewPendingCmd(open), NewSimilarCmd())
	return cmd
}

// OpenConfiguredLog loads the environment configuration and opens its event log.
func OpenConfiguredLog(ctx context.Context) (eventlog.Log, *structs.Configs, func(), error) {
	appConfig, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	cfg := &appConfig.Configs
	logger.InitLogger(cfg.AppName, cfg.AppLogLevel)
	if enums.EventLogType(cfg.EventLogType) != enums.EventLogRedis {
		return nil, nil, nil, fmt.Errorf("event log %s is process local, nothing to inspect", cfg.EventLogType)
	}
	client, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	l, err := eventlog.NewRepository(cfg, client)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, err
	}
	return l, cfg, func() {
		_ = l.Close()
		_ = client.Close()
	}, nil
}
