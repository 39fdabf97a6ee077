// Package config resolves run settings from defaults, an optional YAML file,
// GRANTFLOW_* environment variables and bound CLI flags, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/haricheung/grantflow/internal/history"
	"github.com/haricheung/grantflow/internal/llm"
	"github.com/haricheung/grantflow/internal/stage"
	"github.com/haricheung/grantflow/internal/types"
)

// ErrInvalid marks a configuration that fails Validate.
var ErrInvalid = errors.New("config: invalid")

// EnvPrefix is prepended to every environment override, e.g. GRANTFLOW_LANGUAGE.
const EnvPrefix = "GRANTFLOW"

// FileName is the config file looked up in the working directory when no
// explicit path is given.
const FileName = "grantflow"

// History selects the run-history backend.
type History struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// Log configures the process logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the resolved configuration of one invocation.
type Config struct {
	Language           string                    `mapstructure:"language"`
	MaxIterations      int                       `mapstructure:"max_iterations"`
	MinScorePercentage int                       `mapstructure:"min_score_percentage"`
	BusinessContext    string                    `mapstructure:"business_context"`
	Provider           string                    `mapstructure:"provider"`
	Timeout            time.Duration             `mapstructure:"timeout"`
	ArtifactsRoot      string                    `mapstructure:"artifacts_root"`
	RunLogDir          string                    `mapstructure:"runlog_dir"`
	History            History                   `mapstructure:"history"`
	Log                Log                       `mapstructure:"log"`
	Stages             map[string]stage.Settings `mapstructure:"stages"`
}

// SetDefaults registers every key with its default, so AutomaticEnv can
// override any of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("language", string(types.LangEnglish))
	v.SetDefault("max_iterations", 2)
	v.SetDefault("min_score_percentage", 70)
	v.SetDefault("business_context", "")
	v.SetDefault("provider", string(llm.ProviderAnthropic))
	v.SetDefault("timeout", 10*time.Minute)
	v.SetDefault("artifacts_root", "output")
	v.SetDefault("runlog_dir", filepath.Join(".grantflow", "runs"))
	v.SetDefault("history.backend", history.BackendLevelDB)
	v.SetDefault("history.path", filepath.Join(".grantflow", "history"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	for _, s := range types.Stages {
		d := stage.DefaultSettings(s)
		key := "stages." + string(s)
		v.SetDefault(key+".model", d.Model)
		v.SetDefault(key+".max_tokens", d.MaxTokens)
	}
}

// Load resolves the configuration into v. file may be empty, in which case
// grantflow.yaml in the working directory is used if present. An explicit
// file that does not exist is an error.
//
// Expectations:
//   - Defaults apply when no file and no environment are present
//   - GRANTFLOW_<KEY> overrides file values; nested keys use "_" for "."
//   - <STAGE>_MODEL (e.g. REVIEW_MODEL) overrides a stage's model
//   - stages.<name>.temperature is rejected; sampling temperature is fixed
//   - The result is validated; failures wrap ErrInvalid
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, s := range types.Stages {
		key := "stages." + string(s) + ".model"
		_ = v.BindEnv(key, EnvPrefix+"_STAGES_"+s.Label()+"_MODEL", s.Label()+"_MODEL")
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", describe(file), err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	for _, s := range types.Stages {
		if key := "stages." + string(s) + ".temperature"; v.IsSet(key) {
			return nil, fmt.Errorf("%w: %s is not configurable (every stage samples at %g)", ErrInvalid, key, stage.Temperature)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func describe(file string) string {
	if file == "" {
		return FileName + ".yaml"
	}
	return file
}

// Validate checks the closed option sets and numeric ranges, reporting every
// problem at once.
func (c *Config) Validate() error {
	var problems []string
	if !types.Language(c.Language).Valid() {
		problems = append(problems, fmt.Sprintf("language %q (want en, ru or uk)", c.Language))
	}
	if c.MaxIterations <= 0 {
		problems = append(problems, fmt.Sprintf("max_iterations %d (must be > 0)", c.MaxIterations))
	}
	if c.MinScorePercentage < 1 || c.MinScorePercentage > 100 {
		problems = append(problems, fmt.Sprintf("min_score_percentage %d (must be 1-100)", c.MinScorePercentage))
	}
	switch llm.Provider(c.Provider) {
	case llm.ProviderAnthropic, llm.ProviderOpenAI:
	default:
		problems = append(problems, fmt.Sprintf("provider %q (want anthropic or openai)", c.Provider))
	}
	switch c.History.Backend {
	case history.BackendLevelDB, history.BackendSQLite:
	default:
		problems = append(problems, fmt.Sprintf("history.backend %q (want leveldb or sqlite)", c.History.Backend))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q (want text or json)", c.Log.Format))
	}
	for _, s := range types.Stages {
		st := c.Stage(s)
		if st.Model == "" {
			problems = append(problems, fmt.Sprintf("stages.%s.model is empty", s))
		}
		if st.MaxTokens <= 0 {
			problems = append(problems, fmt.Sprintf("stages.%s.max_tokens %d (must be > 0)", s, st.MaxTokens))
		}
	}
	for name := range c.Stages {
		if !types.Stage(name).Valid() {
			problems = append(problems, fmt.Sprintf("stages.%s is not a stage", name))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}

// Stage returns the model settings of s, falling back to the built-in
// defaults for anything the configuration leaves unset.
func (c *Config) Stage(s types.Stage) stage.Settings {
	d := stage.DefaultSettings(s)
	st, ok := c.Stages[string(s)]
	if !ok {
		return d
	}
	if st.Model == "" {
		st.Model = d.Model
	}
	if st.MaxTokens == 0 {
		st.MaxTokens = d.MaxTokens
	}
	return st
}

// Model returns the client configuration of stage s. Credentials come from
// the environment: <STAGE>_API_KEY first, then the provider's shared variable.
func (c *Config) Model(s types.Stage) llm.Config {
	mc := llm.ConfigFromEnv(llm.Provider(c.Provider), s.Label())
	mc.Timeout = c.Timeout
	return mc
}

// Lang returns the configured prompt language.
func (c *Config) Lang() types.Language { return types.ParseLanguage(c.Language) }

// ResolveBusinessContext returns the business context text. A value starting
// with "@" names a file whose contents are used instead.
func (c *Config) ResolveBusinessContext() (string, error) {
	bc := strings.TrimSpace(c.BusinessContext)
	if !strings.HasPrefix(bc, "@") {
		return bc, nil
	}
	path := strings.TrimPrefix(bc, "@")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: business context: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
