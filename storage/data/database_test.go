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
	"fmt"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type SQLiteTestSuite struct {
	suite.Suite
	Database
}

func (suite *SQLiteTestSuite) SetupSuite() {
	var err error
	suite.Database, err = Open(fmt.Sprintf("sqlite://%s/data.db", suite.T().TempDir()))
	suite.NoError(err)
	suite.NoError(suite.Database.Init())
}

func (suite *SQLiteTestSuite) TearDownSuite() {
	suite.NoError(suite.Database.Close())
}

func (suite *SQLiteTestSuite) SetupTest() {
	suite.NoError(suite.Database.Purge())
}

func (suite *SQLiteTestSuite) TestMovies() {
	ctx := context.Background()
	movies := []Movie{
		{MovieId: 3, Title: "Grumpier Old Men (1995)"},
		{MovieId: 1, Title: "Toy Story (1995)"},
		{MovieId: 2, Title: "Jumanji (1995)"},
	}
	suite.NoError(suite.Database.BatchInsertMovies(ctx, movies))
	// fetch one
	movie, err := suite.Database.GetMovie(ctx, 2)
	suite.NoError(err)
	suite.Equal("Jumanji (1995)", movie.Title)
	// missing movie
	_, err = suite.Database.GetMovie(ctx, 42)
	suite.True(errors.Is(err, ErrMovieNotExist))
	// fetch all in id order
	all, err := suite.Database.GetMovies(ctx)
	suite.NoError(err)
	suite.Equal([]Movie{
		{MovieId: 1, Title: "Toy Story (1995)"},
		{MovieId: 2, Title: "Jumanji (1995)"},
		{MovieId: 3, Title: "Grumpier Old Men (1995)"},
	}, all)
	// upsert keeps one row per id
	suite.NoError(suite.Database.BatchInsertMovies(ctx, []Movie{{MovieId: 1, Title: "Toy Story"}}))
	movie, err = suite.Database.GetMovie(ctx, 1)
	suite.NoError(err)
	suite.Equal("Toy Story", movie.Title)
}

func (suite *SQLiteTestSuite) TestRatings() {
	ctx := context.Background()
	ratings := []Rating{
		{UserId: 1, MovieId: 1},
		{UserId: 1, MovieId: 2},
		{UserId: 2, MovieId: 1},
	}
	suite.NoError(suite.Database.BatchInsertRatings(ctx, ratings))
	// duplicates are ignored
	suite.NoError(suite.Database.BatchInsertRatings(ctx, ratings[:1]))
	count, err := suite.Database.CountRatings(ctx)
	suite.NoError(err)
	suite.Equal(int64(3), count)
	// per-user history
	movieIds, err := suite.Database.GetUserMovies(ctx, 1)
	suite.NoError(err)
	suite.ElementsMatch([]int64{1, 2}, movieIds)
	movieIds, err = suite.Database.GetUserMovies(ctx, 3)
	suite.NoError(err)
	suite.Empty(movieIds)
}

func TestSQLite(t *testing.T) {
	suite.Run(t, new(SQLiteTestSuite))
}

func TestNoDatabase(t *testing.T) {
	ctx := context.Background()
	var database NoDatabase
	assert.ErrorIs(t, database.Ping(), ErrNoDatabase)
	_, err := database.GetUserMovies(ctx, 1)
	assert.ErrorIs(t, err, ErrNoDatabase)
}

func TestOpenUnknownScheme(t *testing.T) {
	_, err := Open("unknown://somewhere")
	assert.Error(t, err)
}
