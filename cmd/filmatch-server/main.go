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

package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/emicklei/go-restful/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	_ "net/http/pprof"

	"github.com/filmatch/filmatch/base/log"
	"github.com/filmatch/filmatch/cmd/version"
	"github.com/filmatch/filmatch/config"
	"github.com/filmatch/filmatch/logics"
	"github.com/filmatch/filmatch/model/similarity"
	"github.com/filmatch/filmatch/model/svd"
	"github.com/filmatch/filmatch/server"
	"github.com/filmatch/filmatch/storage/data"
)

var serverCommand = &cobra.Command{
	Use:   "filmatch-server",
	Short: "The movie recommendation server of filmatch.",
	Run: func(cmd *cobra.Command, args []string) {
		// show version
		showVersion, _ := cmd.PersistentFlags().GetBool("version")
		if showVersion {
			fmt.Println(version.BuildInfo())
			return
		}
		// setup logger
		debug, _ := cmd.PersistentFlags().GetBool("debug")
		log.SetLogger(cmd.PersistentFlags(), debug)

		// load config
		configPath, _ := cmd.PersistentFlags().GetString("config")
		conf, err := config.LoadConfig(configPath)
		if err != nil {
			log.Logger().Fatal("failed to load config", zap.String("config", configPath), zap.Error(err))
		}

		// connect data store, an unreachable store degrades the catalog
		// and the rating history instead of blocking startup
		dataStore, err := data.Open(conf.Database.DataStore)
		if err == nil {
			err = dataStore.Init()
		}
		if err != nil {
			log.Logger().Error("failed to connect data store, serving degraded",
				zap.String("data_store", log.RedactDBURL(conf.Database.DataStore)), zap.Error(err))
			dataStore = data.NoDatabase{}
		}
		movies, err := dataStore.GetMovies(context.Background())
		if err != nil {
			log.Logger().Error("failed to load movie catalog", zap.Error(err))
		}
		catalog := logics.NewCatalog(movies)
		log.Logger().Info("loaded movie catalog", zap.Int("n_movies", catalog.Count()))

		// load model artifacts, a missing model degrades its signal
		// instead of blocking startup
		factor, err := svd.Load(filepath.Join(conf.Artifacts.Path, "svd.bin"))
		if err != nil {
			log.Logger().Error("failed to load factor model", zap.Error(err))
		}
		content, err := similarity.Load(filepath.Join(conf.Artifacts.Path, "similarity.bin"))
		if err != nil {
			log.Logger().Error("failed to load similarity matrix", zap.Error(err))
		}
		popularity, err := logics.LoadPopularity(filepath.Join(conf.Artifacts.Path, "popularity.bin"))
		if err != nil {
			log.Logger().Error("failed to load popularity ranking", zap.Error(err))
		}

		// start server
		s := &server.RestServer{
			Config:      conf,
			Recommender: logics.NewRecommender(conf, factor, content, catalog, popularity, dataStore),
			DataStore:   dataStore,
			HttpHost:    conf.Server.HttpHost,
			HttpPort:    conf.Server.HttpPort,
			WebService:  new(restful.WebService),
		}
		s.StartHttpServer()
	},
}

func init() {
	serverCommand.PersistentFlags().BoolP("version", "v", false, "filmatch version")
	serverCommand.PersistentFlags().StringP("config", "c", "config.toml", "configuration file path")
	serverCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	log.AddFlags(serverCommand.PersistentFlags())
}

func main() {
	if err := serverCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
