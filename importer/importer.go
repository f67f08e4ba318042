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

// Package importer loads MovieLens-style CSV dumps into the data store in
// bounded batches, so arbitrarily large rating files import in constant
// memory.
package importer

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"

	"github.com/filmatch/filmatch/storage/data"
)

const batchSize = 10000

// ImportMovies imports a movies.csv file with columns movieId,title,...
// and returns the number of imported movies. A header row is skipped.
func ImportMovies(ctx context.Context, database data.Database, path string) (int, error) {
	reader, closer, err := openCSV(path, "Importing movies")
	if err != nil {
		return 0, errors.Trace(err)
	}
	defer closer.Close()
	count := 0
	movies := make([]data.Movie, 0, batchSize)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return count, errors.Trace(err)
		}
		if len(record) < 2 {
			return count, errors.NotValidf("movie record %v", record)
		}
		movieId, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			// header row
			if count == 0 && len(movies) == 0 {
				continue
			}
			return count, errors.Trace(err)
		}
		movies = append(movies, data.Movie{MovieId: movieId, Title: record[1]})
		if len(movies) == batchSize {
			if err = database.BatchInsertMovies(ctx, movies); err != nil {
				return count, errors.Trace(err)
			}
			count += len(movies)
			movies = movies[:0]
		}
	}
	if len(movies) > 0 {
		if err = database.BatchInsertMovies(ctx, movies); err != nil {
			return count, errors.Trace(err)
		}
		count += len(movies)
	}
	return count, nil
}

// ImportRatings imports a ratings.csv file with columns userId,movieId,...
// and returns the number of imported ratings. A header row is skipped and
// duplicated pairs are ignored by the data store.
func ImportRatings(ctx context.Context, database data.Database, path string) (int, error) {
	reader, closer, err := openCSV(path, "Importing ratings")
	if err != nil {
		return 0, errors.Trace(err)
	}
	defer closer.Close()
	count := 0
	ratings := make([]data.Rating, 0, batchSize)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return count, errors.Trace(err)
		}
		if len(record) < 2 {
			return count, errors.NotValidf("rating record %v", record)
		}
		userId, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			if count == 0 && len(ratings) == 0 {
				continue
			}
			return count, errors.Trace(err)
		}
		movieId, err := strconv.ParseInt(record[1], 10, 64)
		if err != nil {
			return count, errors.Trace(err)
		}
		ratings = append(ratings, data.Rating{UserId: userId, MovieId: movieId})
		if len(ratings) == batchSize {
			if err = database.BatchInsertRatings(ctx, ratings); err != nil {
				return count, errors.Trace(err)
			}
			count += len(ratings)
			ratings = ratings[:0]
		}
	}
	if len(ratings) > 0 {
		if err = database.BatchInsertRatings(ctx, ratings); err != nil {
			return count, errors.Trace(err)
		}
		count += len(ratings)
	}
	return count, nil
}

func openCSV(path, description string) (*csv.Reader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, errors.Trace(err)
	}
	pbReader := progressbar.NewReader(f, progressbar.DefaultBytes(stat.Size(), description))
	reader := csv.NewReader(&pbReader)
	reader.FieldsPerRecord = -1
	return reader, f, nil
}
