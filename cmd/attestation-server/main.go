package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"zk-attestation/internal/app/challenge"
	"zk-attestation/internal/app/circuits"
	"zk-attestation/internal/app/config"
	"zk-attestation/internal/app/engine"
	"zk-attestation/internal/app/handlers"
	"zk-attestation/internal/app/prover"
	"zk-attestation/internal/app/verifier"
	"zk-attestation/internal/app/workers"
	appbuilder "zk-attestation/pkg/app_builder"
	"zk-attestation/pkg/database"
	"zk-attestation/pkg/logger"
	"zk-attestation/pkg/rabbitmq"
	"zk-attestation/pkg/rest"
	"zk-attestation/pkg/zkp"

	"github.com/joho/godotenv"
)

var version = "dev"

const (
	applicationName   = "attestation-server"
	defaultConfigPath = "config.json"

	ledgerPublisherAlias rabbitmq.PublisherAlias = "LedgerPublisher"
	logPublisherAlias    rabbitmq.PublisherAlias = "LogPublisher"
)

// @title           ZK Attestation API
// @version         1.0
// @description     Zero-knowledge attestations and challenge-response verification
// @BasePath        /v1
func main() {
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	builder := appbuilder.New[config.AppConfigJson, config.AppConfig]().
		InitLogger(logger.GlobalLoggerConfig{
			Args: []logger.LoggerArg{
				{Key: "application", Value: applicationName},
				{Key: "version", Value: version},
			},
		}).
		LoadConfig(configPath).
		InitRabbitmqConnection(ctx).
		InitRabbitmqRegistries()

	cfg := builder.Config()
	log := builder.Logger()
	registry := builder.Registry()

	if logPublisher := registry.GetPublisher(logPublisherAlias); logPublisher != nil {
		logger.AddSinkToLoggerInstance(log, rabbitmq.CreateRabbitmqLoggerSink(logPublisher))
	}

	// ----- PROVING -----
	circuitRegistry := circuits.NewRegistry(prover.NewArtifactLoader(cfg.CircuitsConf, log), log)
	groth16 := prover.NewGroth16Prover(log)
	attestationEngine := engine.New(circuitRegistry, zkp.MiMCCommitter{}, groth16, cfg.EngineConf.Engine, log)

	// ----- CHALLENGES -----
	codec, err := challengeCodec(cfg.ChallengeConf, log)
	if err != nil {
		log.Fatal(err, "Failed to initialize challenge codec")
	}
	protocol := challenge.NewProtocol(attestationEngine, codec, log,
		challenge.WithDefaultTTL(cfg.ChallengeConf.DefaultTTLSeconds))

	store, err := challengeStore(cfg.DatabaseConf, log)
	if err != nil {
		log.Fatal(err, "Failed to initialize challenge store")
	}

	verifierOpts := []verifier.Option{
		verifier.WithProofVerification(circuitRegistry, groth16),
	}
	if ledger := registry.GetPublisher(ledgerPublisherAlias); ledger != nil {
		verifierOpts = append(verifierOpts, verifier.WithPublisher(ledger))
	}
	verifierService := verifier.NewService(protocol, store, store, cfg.VerifierConf, log, verifierOpts...)

	handler := handlers.NewHandler(verifierService, protocol, attestationEngine, circuitRegistry, log)

	app := builder.
		AddWorkerServices(
			workers.NewBatchWorker(registry, attestationEngine, log),
			workers.NewCacheSweeper(attestationEngine, verifierService, cfg.EngineConf.SweepSchedule, log),
		).
		AddMiddlewares(
			rest.NewMiddleware("", rest.RequestLogger(log)),
			rest.NewMiddleware("", rest.CORSMiddleware(cfg.RestConf.CORSOrigin)),
		).
		AddGinRoutes(handler.Routes()...).
		AddSwagger().
		InitGinRouter().
		Build()

	if err := app.Start(ctx); err != nil {
		log.Fatal(err, "Application stopped with error")
	}
}

func challengeCodec(cfg config.ChallengeConfig, log *logger.Logger) (challenge.Codec, error) {
	seed, err := cfg.SigningSeed()
	if err != nil {
		return nil, err
	}
	if seed == nil {
		log.Warn("No challenge signing key configured, challenges are encoded unsigned")
		return challenge.Base64Codec{}, nil
	}
	return challenge.NewJWSCodec(seed)
}

type challengeStoreLedger interface {
	verifier.ChallengeStore
	verifier.NullifierLedger
}

func challengeStore(cfg database.DatabaseConfig, log *logger.Logger) (challengeStoreLedger, error) {
	if !cfg.Persistent() {
		log.Info("Using in-memory challenge store")
		return verifier.NewInMemoryStore(), nil
	}

	db, err := database.ConnectToDatabase(cfg, log, verifier.Models()...)
	if err != nil {
		return nil, err
	}
	return verifier.NewGormStore(db), nil
}
