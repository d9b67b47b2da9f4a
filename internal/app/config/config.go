package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"zk-attestation/internal/app/attestation"
	"zk-attestation/internal/app/engine"
	"zk-attestation/internal/app/prover"
	"zk-attestation/internal/app/verifier"
	"zk-attestation/pkg/database"
	"zk-attestation/pkg/logger"
	"zk-attestation/pkg/rabbitmq"
	"zk-attestation/pkg/zkp"
)

const DefaultRestApiPort uint16 = 9000

const (
	DefaultArtifactDir   = "artifacts"
	DefaultSweepSchedule = "@every 1m"
)

type AppConfigJson struct {
	LoggerConf    logger.LoggerConfigJson     `json:"logger"`
	RestConf      RestConfigJson              `json:"rest"`
	RabbitmqConf  rabbitmq.RabbitmqConfigJson `json:"rabbitmq"`
	EngineConf    EngineConfigJson            `json:"engine"`
	CircuitsConf  CircuitsConfigJson          `json:"circuits"`
	ChallengeConf ChallengeConfigJson         `json:"challenge"`
	VerifierConf  VerifierConfigJson          `json:"verifier"`
	DatabaseConf  database.DatabaseConfigJson `json:"database"`
}

type AppConfig struct {
	LoggerConf    logger.LoggerConfig
	RestConf      RestConfig
	RabbitmqConf  rabbitmq.RabbitmqConfig
	EngineConf    EngineConfig
	CircuitsConf  prover.ArtifactLoaderConfig
	ChallengeConf ChallengeConfig
	VerifierConf  verifier.Config
	DatabaseConf  database.DatabaseConfig
}

func (acj AppConfigJson) ConvertToDomain() AppConfig {
	return AppConfig{
		LoggerConf:    acj.LoggerConf.ConvertToDomain(),
		RestConf:      acj.RestConf.ConvertToDomain(),
		RabbitmqConf:  acj.RabbitmqConf.ConvertToDomain(),
		EngineConf:    acj.EngineConf.ConvertToDomain(),
		CircuitsConf:  acj.CircuitsConf.ConvertToDomain(),
		ChallengeConf: acj.ChallengeConf.ConvertToDomain(),
		VerifierConf:  acj.VerifierConf.ConvertToDomain(),
		DatabaseConf:  acj.DatabaseConf.ConvertToDomain(),
	}
}

func (ac AppConfig) GetLoggerConfig() logger.LoggerConfig {
	return ac.LoggerConf
}

func (ac AppConfig) GetRabbitmqConfig() rabbitmq.RabbitmqConfig {
	return ac.RabbitmqConf
}

func (ac AppConfig) GetRestApiPort() uint16 {
	return ac.RestConf.Port
}

type RestConfigJson struct {
	Port       uint16 `json:"port"`
	CORSOrigin string `json:"cors_origin"`
}

type RestConfig struct {
	Port       uint16
	CORSOrigin string
}

func (rcj RestConfigJson) ConvertToDomain() RestConfig {
	port := rcj.Port
	if port == 0 {
		port = DefaultRestApiPort
	}
	return RestConfig{Port: port, CORSOrigin: strings.TrimSpace(rcj.CORSOrigin)}
}

type EngineConfigJson struct {
	CacheTTLSeconds int            `json:"cache_ttl_seconds"`
	BatchGroupSize  int            `json:"batch_group_size"`
	TimeoutsMs      map[string]int `json:"timeouts_ms"`
	SweepSchedule   string         `json:"sweep_schedule"`
}

type EngineConfig struct {
	Engine        engine.Config
	SweepSchedule string
}

// ConvertToDomain leaves unset values zero; the engine fills its own defaults.
// Timeouts for unknown kinds are ignored.
func (ecj EngineConfigJson) ConvertToDomain() EngineConfig {
	cfg := engine.Config{
		CacheTTL:       time.Duration(ecj.CacheTTLSeconds) * time.Second,
		BatchGroupSize: ecj.BatchGroupSize,
	}
	for name, ms := range ecj.TimeoutsMs {
		kind, err := attestation.ParseKind(strings.ToLower(strings.TrimSpace(name)))
		if err != nil || ms <= 0 {
			continue
		}
		if cfg.Timeouts == nil {
			cfg.Timeouts = map[attestation.Kind]time.Duration{}
		}
		cfg.Timeouts[kind] = time.Duration(ms) * time.Millisecond
	}

	schedule := strings.TrimSpace(ecj.SweepSchedule)
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return EngineConfig{Engine: cfg, SweepSchedule: schedule}
}

type ArtifactPathsJson struct {
	ConstraintSystem string `json:"constraint_system"`
	ProvingKey       string `json:"proving_key"`
	VerifyingKey     string `json:"verifying_key"`
}

type CircuitsConfigJson struct {
	ArtifactDir      string                       `json:"artifact_dir"`
	SetupIfMissing   bool                         `json:"setup_if_missing"`
	PersistGenerated bool                         `json:"persist_generated"`
	Artifacts        map[string]ArtifactPathsJson `json:"artifacts"`
}

func (ccj CircuitsConfigJson) ConvertToDomain() prover.ArtifactLoaderConfig {
	dir := ccj.ArtifactDir
	if dir == "" {
		dir = DefaultArtifactDir
	}
	cfg := prover.ArtifactLoaderConfig{
		Dir:              dir,
		SetupIfMissing:   ccj.SetupIfMissing,
		PersistGenerated: ccj.PersistGenerated,
	}
	for name, p := range ccj.Artifacts {
		kind, err := attestation.ParseKind(strings.ToLower(strings.TrimSpace(name)))
		if err != nil {
			continue
		}
		if cfg.Paths == nil {
			cfg.Paths = map[attestation.Kind]zkp.ArtifactPaths{}
		}
		cfg.Paths[kind] = zkp.ArtifactPaths{
			ConstraintSystem: p.ConstraintSystem,
			ProvingKey:       p.ProvingKey,
			VerifyingKey:     p.VerifyingKey,
		}
	}
	return cfg
}

type ChallengeConfigJson struct {
	DefaultTTLSeconds int    `json:"default_ttl_seconds"`
	SigningKeySeedHex string `json:"signing_key_seed_hex"`
}

type ChallengeConfig struct {
	DefaultTTLSeconds int
	SigningKeySeedHex string
}

func (ccj ChallengeConfigJson) ConvertToDomain() ChallengeConfig {
	return ChallengeConfig{
		DefaultTTLSeconds: ccj.DefaultTTLSeconds,
		SigningKeySeedHex: strings.TrimSpace(ccj.SigningKeySeedHex),
	}
}

// SigningSeed decodes the configured Ed25519 seed. A nil seed with a nil
// error means challenges travel unsigned.
func (cc ChallengeConfig) SigningSeed() ([]byte, error) {
	if cc.SigningKeySeedHex == "" {
		return nil, nil
	}
	seed, err := hex.DecodeString(cc.SigningKeySeedHex)
	if err != nil {
		return nil, fmt.Errorf("decode signing_key_seed_hex: %w", err)
	}
	return seed, nil
}

type VerifierConfigJson struct {
	VerifyProofs     bool `json:"verify_proofs"`
	RetentionSeconds int  `json:"retention_seconds"`
	WebhookTimeoutMs int  `json:"webhook_timeout_ms"`
}

func (vcj VerifierConfigJson) ConvertToDomain() verifier.Config {
	return verifier.Config{
		VerifyProofs:   vcj.VerifyProofs,
		Retention:      time.Duration(vcj.RetentionSeconds) * time.Second,
		WebhookTimeout: time.Duration(vcj.WebhookTimeoutMs) * time.Millisecond,
	}
}
