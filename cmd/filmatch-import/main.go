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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/filmatch/filmatch/base/log"
	"github.com/filmatch/filmatch/cmd/version"
	"github.com/filmatch/filmatch/importer"
	"github.com/filmatch/filmatch/storage/data"
)

var importCommand = &cobra.Command{
	Use:   "filmatch-import",
	Short: "Import MovieLens-style CSV dumps into the filmatch data store.",
	Run: func(cmd *cobra.Command, args []string) {
		// show version
		showVersion, _ := cmd.PersistentFlags().GetBool("version")
		if showVersion {
			fmt.Println(version.BuildInfo())
			return
		}
		dataStorePath, _ := cmd.PersistentFlags().GetString("data-store")
		moviesPath, _ := cmd.PersistentFlags().GetString("movies")
		ratingsPath, _ := cmd.PersistentFlags().GetString("ratings")
		if moviesPath == "" && ratingsPath == "" {
			log.Logger().Fatal("nothing to import, pass --movies or --ratings")
		}

		// open data store
		database, err := data.Open(dataStorePath)
		if err != nil {
			log.Logger().Fatal("failed to connect data store",
				zap.String("data_store", log.RedactDBURL(dataStorePath)), zap.Error(err))
		}
		defer database.Close()
		if err = database.Init(); err != nil {
			log.Logger().Fatal("failed to init data store", zap.Error(err))
		}

		ctx := context.Background()
		if moviesPath != "" {
			count, err := importer.ImportMovies(ctx, database, moviesPath)
			if err != nil {
				log.Logger().Fatal("failed to import movies", zap.Error(err))
			}
			log.Logger().Info("imported movies", zap.Int("n_movies", count))
		}
		if ratingsPath != "" {
			count, err := importer.ImportRatings(ctx, database, ratingsPath)
			if err != nil {
				log.Logger().Fatal("failed to import ratings", zap.Error(err))
			}
			log.Logger().Info("imported ratings", zap.Int("n_ratings", count))
		}
	},
}

func init() {
	importCommand.PersistentFlags().BoolP("version", "v", false, "filmatch version")
	importCommand.PersistentFlags().String("data-store", "sqlite://data.db", "database for the imported data")
	importCommand.PersistentFlags().String("movies", "", "path of movies.csv")
	importCommand.PersistentFlags().String("ratings", "", "path of ratings.csv")
}

func main() {
	if err := importCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
