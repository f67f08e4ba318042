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

package data

import (
	"context"
	"strings"

	"github.com/filmatch/filmatch/storage"
	"github.com/juju/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	ErrMovieNotExist = errors.NotFoundf("movie")
	ErrNoDatabase    = errors.NotAssignedf("database")
)

// Movie stores display metadata about a movie.
type Movie struct {
	MovieId int64  `gorm:"column:movie_id;primaryKey"`
	Title   string `gorm:"column:title"`
}

// Rating records that a user has rated a movie. The engine only ever asks
// "which movies has this user rated", so the value itself is not stored.
type Rating struct {
	UserId  int64 `gorm:"column:user_id;primaryKey;index:idx_user"`
	MovieId int64 `gorm:"column:movie_id;primaryKey"`
}

// Database is the read-mostly store backing the catalog and the interaction
// history. Implementations must keep user lookups indexed: the engine queries
// the rating history of one user per request.
type Database interface {
	Init() error
	Ping() error
	Close() error
	Purge() error
	BatchInsertMovies(ctx context.Context, movies []Movie) error
	GetMovie(ctx context.Context, movieId int64) (Movie, error)
	GetMovies(ctx context.Context) ([]Movie, error)
	BatchInsertRatings(ctx context.Context, ratings []Rating) error
	GetUserMovies(ctx context.Context, userId int64) ([]int64, error)
	CountRatings(ctx context.Context) (int64, error)
}

// Open a connection to a database. Supported schemes are mysql://,
// postgres://, postgresql:// and sqlite://.
func Open(path string) (Database, error) {
	if strings.HasPrefix(path, storage.MySQLPrefix) {
		dsn := path[len(storage.MySQLPrefix):]
		gormDB, err := gorm.Open(mysql.Open(dsn), gormConfig())
		if err != nil {
			return nil, errors.Trace(err)
		}
		return &SQLDatabase{gormDB: gormDB}, nil
	} else if strings.HasPrefix(path, storage.PostgresPrefix) || strings.HasPrefix(path, storage.PostgreSQLPrefix) {
		gormDB, err := gorm.Open(postgres.Open(path), gormConfig())
		if err != nil {
			return nil, errors.Trace(err)
		}
		return &SQLDatabase{gormDB: gormDB}, nil
	} else if strings.HasPrefix(path, storage.SQLitePrefix) {
		dsn := path[len(storage.SQLitePrefix):]
		gormDB, err := gorm.Open(sqlite.Open(dsn), gormConfig())
		if err != nil {
			return nil, errors.Trace(err)
		}
		return &SQLDatabase{gormDB: gormDB}, nil
	}
	return nil, errors.Errorf("unknown database scheme: %s", path)
}
