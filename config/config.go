// Copyright 2024 filmatch Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration of the recommendation server.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Server    ServerConfig    `mapstructure:"server"`
	Recommend RecommendConfig `mapstructure:"recommend"`
}

type DatabaseConfig struct {
	// DataStore holds the catalog and the rating history. Supported schemes
	// are mysql://, postgres://, postgresql:// and sqlite://.
	DataStore string `mapstructure:"data_store" validate:"required"`
}

type ArtifactsConfig struct {
	// Path is the directory holding svd.bin, similarity.bin and the
	// optional popularity.bin, produced by the offline training pipeline.
	Path string `mapstructure:"path" validate:"required"`
}

type ServerConfig struct {
	HttpHost string `mapstructure:"http_host"`
	HttpPort int    `mapstructure:"http_port" validate:"gte=0"`
	// DefaultN is the default number of returned recommendations.
	DefaultN int `mapstructure:"default_n" validate:"gt=0"`
}

type RecommendConfig struct {
	// Alpha is the weight of the factor-model signal in hybrid scores.
	Alpha float64 `mapstructure:"alpha" validate:"gte=0,lte=1"`
	// ContentTopK is the number of neighbors averaged into the content
	// signal of one movie.
	ContentTopK int `mapstructure:"content_top_k" validate:"gt=0"`
	// CandidateSize is the number of factor-model predictions seeding the
	// hybrid candidate set.
	CandidateSize int `mapstructure:"candidate_size" validate:"gt=0"`
	// MinCandidates pads the candidate set from the catalog when seeding
	// falls short.
	MinCandidates int `mapstructure:"min_candidates" validate:"gte=0"`
	// HistoryTimeout bounds the rating-history query. On expiry the
	// history is treated as empty instead of failing the request.
	HistoryTimeout time.Duration `mapstructure:"history_timeout" validate:"gt=0"`
}

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DataStore: "sqlite://data.db",
		},
		Artifacts: ArtifactsConfig{
			Path: "models",
		},
		Server: ServerConfig{
			HttpHost: "127.0.0.1",
			HttpPort: 8087,
			DefaultN: 10,
		},
		Recommend: RecommendConfig{
			Alpha:          0.7,
			ContentTopK:    50,
			CandidateSize:  500,
			MinCandidates:  50,
			HistoryTimeout: 200 * time.Millisecond,
		},
	}
}

func setDefault() {
	defaultConfig := GetDefaultConfig()
	viper.SetDefault("database.data_store", defaultConfig.Database.DataStore)
	viper.SetDefault("artifacts.path", defaultConfig.Artifacts.Path)
	viper.SetDefault("server.http_host", defaultConfig.Server.HttpHost)
	viper.SetDefault("server.http_port", defaultConfig.Server.HttpPort)
	viper.SetDefault("server.default_n", defaultConfig.Server.DefaultN)
	viper.SetDefault("recommend.alpha", defaultConfig.Recommend.Alpha)
	viper.SetDefault("recommend.content_top_k", defaultConfig.Recommend.ContentTopK)
	viper.SetDefault("recommend.candidate_size", defaultConfig.Recommend.CandidateSize)
	viper.SetDefault("recommend.min_candidates", defaultConfig.Recommend.MinCandidates)
	viper.SetDefault("recommend.history_timeout", defaultConfig.Recommend.HistoryTimeout)
}

type configBinding struct {
	key string
	env string
}

func bindEnv() {
	bindings := []configBinding{
		{"database.data_store", "FILMATCH_DATA_STORE"},
		{"artifacts.path", "FILMATCH_ARTIFACTS_PATH"},
		{"server.http_host", "FILMATCH_SERVER_HTTP_HOST"},
		{"server.http_port", "FILMATCH_SERVER_HTTP_PORT"},
		{"server.default_n", "FILMATCH_SERVER_DEFAULT_N"},
		{"recommend.alpha", "FILMATCH_RECOMMEND_ALPHA"},
		{"recommend.content_top_k", "FILMATCH_RECOMMEND_CONTENT_TOP_K"},
		{"recommend.candidate_size", "FILMATCH_RECOMMEND_CANDIDATE_SIZE"},
		{"recommend.min_candidates", "FILMATCH_RECOMMEND_MIN_CANDIDATES"},
		{"recommend.history_timeout", "FILMATCH_RECOMMEND_HISTORY_TIMEOUT"},
	}
	for _, binding := range bindings {
		err := viper.BindEnv(binding.key, binding.env)
		if err != nil {
			panic(err)
		}
	}
}

// LoadConfig loads the configuration from a TOML file and FILMATCH_*
// environment variables. Environment variables win over file values.
func LoadConfig(path string) (*Config, error) {
	// set default config
	setDefault()

	// bind environment variables
	bindEnv()

	// load config file
	viper.SetConfigType("toml")
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return nil, errors.Trace(err)
	}

	// unmarshal config file
	var conf Config
	if err := viper.Unmarshal(&conf, func(decoderConfig *mapstructure.DecoderConfig) {
		decoderConfig.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// Validate checks the configuration against struct tags.
func (config *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fieldError := validationErrors[0]
			return errors.Errorf("invalid config: %s fails on %s",
				strings.ToLower(fieldError.Namespace()), fieldError.Tag())
		}
		return errors.Trace(err)
	}
	return nil
}
