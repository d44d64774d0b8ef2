// Package config loads and validates the antimet configuration from file
// and environment.  Defaults are production-safe; every field can be
// overridden through ANTIMET_* environment variables or a YAML file.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/turtacn/antimet/internal/domain/fingerprint"
	"github.com/turtacn/antimet/internal/domain/index"
	"github.com/turtacn/antimet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/antimet/pkg/errors"
)

// envPrefix namespaces environment overrides, e.g. ANTIMET_INDEX_FORMAT.
const envPrefix = "ANTIMET"

// DatabaseConfig connects the postgres compound source.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int    `mapstructure:"max_conns"`
}

// RedisConfig connects the fingerprint cache.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MinIOConfig connects the snapshot object store.  When disabled, snapshots
// go to the local SnapshotDir instead.
type MinIOConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
}

// IndexConfig tunes the fingerprint index build.
type IndexConfig struct {
	Format      string `mapstructure:"format"`
	Solubility  string `mapstructure:"solubility"`
	ChunkSize   int    `mapstructure:"chunk_size"`
	ShardSize   int    `mapstructure:"shard_size"`
	Workers     int    `mapstructure:"workers"`
	SnapshotDir string `mapstructure:"snapshot_dir"`
}

// ScreeningConfig tunes the candidate filter pipeline.
type ScreeningConfig struct {
	FpCut         float64       `mapstructure:"fp_cut"`
	AtomsDiff     int           `mapstructure:"atoms_diff"`
	BondsDiff     int           `mapstructure:"bonds_diff"`
	SimilarityCut float64       `mapstructure:"similarity_cut"`
	MatchFraction float64       `mapstructure:"match_fraction"`
	MCSTimeout    time.Duration `mapstructure:"mcs_timeout"`
	CompareVolume bool          `mapstructure:"compare_volume"`
	VolumeCut     float64       `mapstructure:"volume_cut"`
	Workers       int           `mapstructure:"workers"`
}

// DesignConfig tunes the knockout search.
type DesignConfig struct {
	MinCarbons        int      `mapstructure:"min_carbons"`
	Compartments      []string `mapstructure:"compartments"`
	Fraction          float64  `mapstructure:"fraction"`
	PopulationSize    int      `mapstructure:"population_size"`
	MaxEvaluations    int      `mapstructure:"max_evaluations"`
	MaxTargets        int      `mapstructure:"max_targets"`
	ArchiveSize       int      `mapstructure:"archive_size"`
	Seed              int64    `mapstructure:"seed"`
	IgnoreTransport   bool     `mapstructure:"ignore_transport"`
	AllowAccumulation bool     `mapstructure:"allow_accumulation"`
}

// Config is the root configuration.
type Config struct {
	Log       logging.Config  `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Index     IndexConfig     `mapstructure:"index"`
	Screening ScreeningConfig `mapstructure:"screening"`
	Design    DesignConfig    `mapstructure:"design"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "antimet")
	v.SetDefault("database.database", "antimet")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 8)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.bucket", "antimet-snapshots")

	v.SetDefault("index.format", string(fingerprint.FormatMACCS))
	v.SetDefault("index.solubility", string(index.SolubilityAll))
	v.SetDefault("index.chunk_size", 1000)
	v.SetDefault("index.shard_size", 50000)
	v.SetDefault("index.workers", 0) // 0 selects NumCPU
	v.SetDefault("index.snapshot_dir", "snapshots")

	v.SetDefault("screening.fp_cut", 0.5)
	v.SetDefault("screening.atoms_diff", 5)
	v.SetDefault("screening.bonds_diff", 5)
	v.SetDefault("screening.similarity_cut", 0.6)
	v.SetDefault("screening.match_fraction", 0.6)
	v.SetDefault("screening.mcs_timeout", time.Minute)
	v.SetDefault("screening.compare_volume", false)
	v.SetDefault("screening.volume_cut", 0.5)
	v.SetDefault("screening.workers", 8)

	v.SetDefault("design.min_carbons", 2)
	v.SetDefault("design.compartments", []string{"c"})
	v.SetDefault("design.fraction", 0.0)
	v.SetDefault("design.population_size", 50)
	v.SetDefault("design.max_evaluations", 2000)
	v.SetDefault("design.max_targets", 5)
	v.SetDefault("design.archive_size", 100)
	v.SetDefault("design.ignore_transport", true)
	v.SetDefault("design.allow_accumulation", true)
}

// Load reads the configuration from an optional file path plus environment
// overrides and validates it.  An empty path skips the file entirely.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid,
				"cannot read config file").WithDetail(path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "cannot unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fails fast on invalid enumerations and ranges, before any
// expensive work starts.
func (c *Config) Validate() error {
	if _, err := fingerprint.ParseFormat(c.Index.Format); err != nil {
		return err
	}
	if _, err := index.ParseSolubilityBucket(c.Index.Solubility); err != nil {
		return err
	}
	if c.Screening.FpCut < 0 || c.Screening.FpCut > 1 {
		return errors.New(errors.ErrCodeConfigInvalid, "screening.fp_cut out of range").
			WithDetailf("got %g, want [0, 1]", c.Screening.FpCut)
	}
	if c.Screening.SimilarityCut < 0 || c.Screening.SimilarityCut > 1 {
		return errors.New(errors.ErrCodeConfigInvalid, "screening.similarity_cut out of range").
			WithDetailf("got %g, want [0, 1]", c.Screening.SimilarityCut)
	}
	if c.Screening.MatchFraction < 0 || c.Screening.MatchFraction > 1 {
		return errors.New(errors.ErrCodeConfigInvalid, "screening.match_fraction out of range").
			WithDetailf("got %g, want [0, 1]", c.Screening.MatchFraction)
	}
	if c.Design.Fraction < 0 || c.Design.Fraction > 1 {
		return errors.New(errors.ErrCodeConfigInvalid, "design.fraction out of range").
			WithDetailf("got %g, want [0, 1]", c.Design.Fraction)
	}
	if c.Design.MinCarbons < 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "design.min_carbons must be non-negative").
			WithDetailf("got %d", c.Design.MinCarbons)
	}
	return nil
}

// IndexFormat returns the validated fingerprint format.
func (c *Config) IndexFormat() fingerprint.Format {
	f, _ := fingerprint.ParseFormat(c.Index.Format)
	return f
}

// IndexBucket returns the validated solubility bucket.
func (c *Config) IndexBucket() index.SolubilityBucket {
	b, _ := index.ParseSolubilityBucket(c.Index.Solubility)
	return b
}
