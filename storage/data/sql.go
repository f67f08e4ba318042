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

	"github.com/juju/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const batchSize = 1000

func gormConfig() *gorm.Config {
	return &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
		Logger: logger.Default.LogMode(logger.Silent),
	}
}

// SQLDatabase stores movies and ratings in a SQL database.
type SQLDatabase struct {
	gormDB *gorm.DB
}

// Init creates tables and indices.
func (d *SQLDatabase) Init() error {
	return errors.Trace(d.gormDB.AutoMigrate(Movie{}, Rating{}))
}

// Ping checks the database connection.
func (d *SQLDatabase) Ping() error {
	db, err := d.gormDB.DB()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(db.Ping())
}

// Close the database connection.
func (d *SQLDatabase) Close() error {
	db, err := d.gormDB.DB()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(db.Close())
}

// Purge removes all rows from all tables.
func (d *SQLDatabase) Purge() error {
	for _, model := range []any{Movie{}, Rating{}} {
		if err := d.gormDB.Where("1 = 1").Delete(model).Error; err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// BatchInsertMovies inserts movies, replacing existing rows.
func (d *SQLDatabase) BatchInsertMovies(ctx context.Context, movies []Movie) error {
	if len(movies) == 0 {
		return nil
	}
	err := d.gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(movies, batchSize).Error
	return errors.Trace(err)
}

// GetMovie returns a movie by id.
func (d *SQLDatabase) GetMovie(ctx context.Context, movieId int64) (Movie, error) {
	var movie Movie
	err := d.gormDB.WithContext(ctx).Where("movie_id = ?", movieId).First(&movie).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Movie{}, errors.Annotatef(ErrMovieNotExist, "%d", movieId)
		}
		return Movie{}, errors.Trace(err)
	}
	return movie, nil
}

// GetMovies returns the entire catalog in primary key order.
func (d *SQLDatabase) GetMovies(ctx context.Context) ([]Movie, error) {
	var movies []Movie
	err := d.gormDB.WithContext(ctx).Order("movie_id").Find(&movies).Error
	return movies, errors.Trace(err)
}

// BatchInsertRatings inserts ratings, ignoring duplicates.
func (d *SQLDatabase) BatchInsertRatings(ctx context.Context, ratings []Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	err := d.gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(ratings, batchSize).Error
	return errors.Trace(err)
}

// GetUserMovies returns the ids of all movies rated by a user.
func (d *SQLDatabase) GetUserMovies(ctx context.Context, userId int64) ([]int64, error) {
	var movieIds []int64
	err := d.gormDB.WithContext(ctx).Model(&Rating{}).
		Where("user_id = ?", userId).
		Pluck("movie_id", &movieIds).Error
	return movieIds, errors.Trace(err)
}

// CountRatings returns the number of rating rows.
func (d *SQLDatabase) CountRatings(ctx context.Context) (int64, error) {
	var count int64
	err := d.gormDB.WithContext(ctx).Model(&Rating{}).Count(&count).Error
	return count, errors.Trace(err)
}
