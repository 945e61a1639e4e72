package poller

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tiplinehq/tipline/internal/chain"
	"github.com/tiplinehq/tipline/internal/command"
	"github.com/tiplinehq/tipline/internal/identity"
	"github.com/tiplinehq/tipline/internal/ledger"
	"github.com/tiplinehq/tipline/internal/social"
	"github.com/tiplinehq/tipline/internal/transfer"
	"github.com/tiplinehq/tipline/pkg/common/config"
	"github.com/tiplinehq/tipline/pkg/common/logger"
	"github.com/tiplinehq/tipline/pkg/events"
	"github.com/tiplinehq/tipline/pkg/infra"
	"github.com/tiplinehq/tipline/pkg/model"
	"github.com/tiplinehq/tipline/pkg/repository"
	"github.com/tiplinehq/tipline/pkg/seencache"
	"github.com/tiplinehq/tipline/pkg/store/cursorstore"
)

// CreateManagerWithPollers wires repositories, the social and chain clients,
// and the processing pipeline into a manager with every enabled poller.
func CreateManagerWithPollers(
	ctx context.Context,
	cfg *config.Config,
	kvstore infra.KVStore,
	db *gorm.DB,
	seen *seencache.Cache,
	emitter events.Emitter,
	redisClient infra.RedisClient,
) (*Manager, error) {
	recordRepo := repository.NewRepository[model.TransactionRecord](db)
	profileRepo := repository.NewRepository[model.Profile](db)
	campaignRepo := repository.NewRepository[model.Campaign](db)

	maxAmount, err := decimal.NewFromString(cfg.Bot.MaxAmount)
	if err != nil {
		return nil, err
	}

	reader := social.NewClient(social.Config{
		BaseURL:     cfg.Social.BaseURL,
		BearerToken: cfg.Social.BearerToken,
		Timeout:     cfg.Social.Timeout,
		PageSize:    cfg.Social.PageSize,
	})

	wallet := chain.NewClient(chain.Config{
		BaseURL:        cfg.Chain.WalletURL,
		APIKey:         cfg.Chain.WalletAPIKey,
		RequestTimeout: cfg.Chain.RequestTimeout,
		ConfirmTimeout: cfg.Chain.ConfirmTimeout,
	})

	executor := transfer.NewExecutor(wallet, transfer.Config{
		ChainName:       cfg.Chain.Name,
		AssetDecimals:   cfg.Chain.AssetDecimals,
		FeeBps:          cfg.Chain.FeeBps,
		RouterAddress:   cfg.Chain.RouterAddress,
		TreasuryAddress: cfg.Chain.TreasuryAddr,
		SourceAddress:   cfg.Chain.SourceAddress,
	})

	cursors := cursorstore.New(kvstore)
	manager := NewManager(ctx, kvstore, cursors, emitter, redisClient)

	deps := Deps{
		ChainName:    cfg.Chain.Name,
		Keywords:     cfg.Bot.Keywords,
		Social:       reader,
		Parser:       command.NewParser(cfg.Bot.Handles, maxAmount),
		Resolver:     identity.NewResolver(profileRepo),
		Recorder:     ledger.NewRecorder(recordRepo, campaignRepo, seen),
		Executor:     executor,
		Cursors:      cursors,
		Campaigns:    campaignRepo,
		Emitter:      emitter,
		FailureQueue: NewRedisFailureQueue(redisClient),
	}

	if cfg.Pollers.Command.Enabled {
		cmdDeps := deps
		cmdDeps.Config = cfg.Pollers.Command
		manager.AddPollers(NewCommandPoller(ctx, cmdDeps))
		logger.Info("Poller enabled", "kind", "command", "interval", cmdDeps.Config.PollInterval)
	} else {
		logger.Info("Poller disabled", "kind", "command")
	}

	if cfg.Pollers.Campaign.Enabled {
		campDeps := deps
		campDeps.Config = cfg.Pollers.Campaign
		manager.AddPollers(NewCampaignPoller(ctx, campDeps))
		logger.Info("Poller enabled", "kind", "campaign", "interval", campDeps.Config.PollInterval)
	} else {
		logger.Info("Poller disabled", "kind", "campaign")
	}

	return manager, nil
}
