package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Salvionied/apollo/constants"
	base "github.com/Salvionied/apollo/txBuilding/Backend/Base"
	"github.com/Salvionied/apollo/txBuilding/Backend/BlockFrostChainContext"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mgpai22/txsim"
	"github.com/mgpai22/txsim/internal/config"
	"github.com/mgpai22/txsim/koios"
	"github.com/mgpai22/txsim/ogmios"
)

// draftFlags selects where the transaction draft comes from.
type draftFlags struct {
	file string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "read the draft from a cardano-cli text envelope")
}

func (f *draftFlags) draft(args []string) (string, error) {
	switch {
	case f.file != "" && len(args) > 0:
		return "", errors.New("pass either a draft or --file, not both")
	case f.file != "":
		return txsim.LoadDraftFile(f.file)
	case len(args) == 1:
		return strings.TrimSpace(args[0]), nil
	default:
		return "", errors.New("no transaction draft given")
	}
}

// session bundles what a command needs to process one draft.
type session struct {
	cfg      *config.Config
	logger   *zap.Logger
	resolver *txsim.Resolver
	cleanup  func()
}

func newSession(ctx context.Context, withSimulator bool) (*session, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return nil, errors.New("no config found in context")
	}
	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	network, err := cfg.NetworkID()
	if err != nil {
		return nil, err
	}

	indexer, err := newIndexer(cfg, network, logger)
	if err != nil {
		return nil, err
	}

	rt := &session{
		cfg:     cfg,
		logger:  logger,
		cleanup: func() { _ = logger.Sync() },
	}
	var simulator txsim.Simulator
	if withSimulator {
		simulator, err = newSimulator(ctx, cfg, rt, logger)
		if err != nil {
			return nil, err
		}
	}

	rt.resolver = txsim.NewResolver(txsim.Config{
		PlutusVersion: txsim.PlutusVersion(cfg.PlutusVersion),
		Network:       network,
		Debug:         cfg.Debug,
		Logger:        logger,
	}, indexer, simulator)
	return rt, nil
}

func newIndexer(cfg *config.Config, network txsim.NetworkID, logger *zap.Logger) (txsim.Indexer, error) {
	if cfg.UtxoFile != "" {
		return txsim.LoadStaticIndexer(cfg.UtxoFile)
	}
	switch cfg.Indexer {
	case config.IndexerOgmios:
		opts := []ogmios.Option{ogmios.WithLogger(logger)}
		if cfg.OgmiosEndpoint != "" {
			opts = append(opts, ogmios.WithEndpoint(cfg.OgmiosEndpoint))
		}
		return ogmios.New(opts...), nil
	case config.IndexerBlockfrost:
		return newBlockfrostIndexer(cfg, logger), nil
	default:
		opts := []koios.Option{koios.WithLogger(logger)}
		if cfg.KoiosEndpoint != "" {
			opts = append(opts, koios.WithEndpoint(cfg.KoiosEndpoint))
		}
		return koios.New(network, opts...), nil
	}
}

// blockfrostNetworks pairs each network name with Apollo's network id and
// public Blockfrost endpoint.
var blockfrostNetworks = map[string]struct {
	network constants.Network
	baseURL string
}{
	"mainnet": {constants.MAINNET, constants.BLOCKFROST_BASE_URL_MAINNET},
	"testnet": {constants.TESTNET, constants.BLOCKFROST_BASE_URL_TESTNET},
	"preview": {constants.PREVIEW, constants.BLOCKFROST_BASE_URL_PREVIEW},
	"preprod": {constants.PREPROD, constants.BLOCKFROST_BASE_URL_PREPROD},
}

// newBlockfrostIndexer defers building the Blockfrost chain context to the
// first lookup, since Apollo fetches epoch and protocol parameters on
// construction.
func newBlockfrostIndexer(cfg *config.Config, logger *zap.Logger) *txsim.ChainContextIndexer {
	network := blockfrostNetworks[cfg.Network]
	baseURL := network.baseURL
	if cfg.BlockfrostEndpoint != "" {
		baseURL = strings.TrimRight(cfg.BlockfrostEndpoint, "/")
	}
	return &txsim.ChainContextIndexer{
		Connect: func() (base.ChainContext, error) {
			if cfg.BlockfrostProjectID == "" {
				return nil, errors.New("no Blockfrost project ID configured")
			}
			logger.Debug("connecting to Blockfrost", zap.String("endpoint", baseURL))
			chainContext := BlockFrostChainContext.NewBlockfrostChainContext(baseURL, int(network.network), cfg.BlockfrostProjectID)
			return &chainContext, nil
		},
	}
}

func newSimulator(ctx context.Context, cfg *config.Config, sess *session, logger *zap.Logger) (txsim.Simulator, error) {
	if cfg.Simulator != config.SimulatorWasm {
		return &txsim.AikenSimulator{Path: cfg.AikenPath, Logger: logger}, nil
	}
	var costModels []byte
	if cfg.CostModelsFile != "" {
		data, err := os.ReadFile(cfg.CostModelsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read cost models: %w", err)
		}
		if costModels, err = txsim.DecodeHex(strings.TrimSpace(string(data))); err != nil {
			return nil, fmt.Errorf("invalid cost models file: %w", err)
		}
	}
	wasm, err := txsim.NewWasmSimulator(ctx, txsim.EvaluatorConfig{
		WasmFile:     cfg.WasmFile,
		CostModels:   costModels,
		MaxTxExSteps: cfg.MaxTxExSteps,
		MaxTxExMem:   cfg.MaxTxExMem,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load evaluator: %w", err)
	}
	prev := sess.cleanup
	sess.cleanup = func() {
		wasm.Close(context.Background())
		prev()
	}
	return wasm, nil
}

// withTimeout bounds one command run by the configured timeout.
func withTimeout(ctx context.Context, cfg *config.Config) (context.Context, context.CancelFunc, error) {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}
