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

package logics

import (
	"context"
	"fmt"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/filmatch/filmatch/config"
	"github.com/filmatch/filmatch/dataset"
	"github.com/filmatch/filmatch/model/similarity"
	"github.com/filmatch/filmatch/model/svd"
	"github.com/filmatch/filmatch/storage/data"
)

func newTestFactorModel(t *testing.T) *svd.Model {
	users := lo.Must(dataset.NewDict([]int64{1, 2}))
	items := lo.Must(dataset.NewDict([]int64{10, 20, 30}))
	m := &svd.Model{
		Users:    users,
		Items:    items,
		U:        [][]float32{{1, 0}, {0.5, 0.5}},
		Sigma:    []float32{1, 1},
		Vt:       [][]float32{{1, 0, 0}, {0, 1, 0}},
		UserMean: []float32{0, 0.5},
	}
	assert.NoError(t, m.Validate())
	return m
}

func newTestSimilarityMatrix(t *testing.T) *similarity.Matrix {
	// row 10 = {20: 0.9, 30: 0.4}, row 20 = {10: 0.9}, row 30 empty
	m := &similarity.Matrix{
		Items:   lo.Must(dataset.NewDict([]int64{10, 20, 30})),
		RowPtr:  []int32{0, 2, 3, 3},
		Indices: []int32{1, 2, 0},
		Values:  []float32{0.9, 0.4, 0.9},
	}
	assert.NoError(t, m.Validate())
	return m
}

func newTestCatalog() *Catalog {
	return NewCatalog([]data.Movie{
		{MovieId: 10, Title: "Toy Story (1995)"},
		{MovieId: 20, Title: "Jumanji (1995)"},
		{MovieId: 30, Title: "Heat (1995)"},
		{MovieId: 40, Title: "Toy Story 2 (1999)"},
	})
}

type RecommenderTestSuite struct {
	suite.Suite
	dataStore   data.Database
	recommender *Recommender
}

func (suite *RecommenderTestSuite) SetupSuite() {
	var err error
	suite.dataStore, err = data.Open(fmt.Sprintf("sqlite://%s/data.db", suite.T().TempDir()))
	suite.NoError(err)
	suite.NoError(suite.dataStore.Init())
	suite.recommender = NewRecommender(config.GetDefaultConfig(),
		newTestFactorModel(suite.T()), newTestSimilarityMatrix(suite.T()),
		newTestCatalog(), NewPopularity([]int64{30, 10}), suite.dataStore)
}

func (suite *RecommenderTestSuite) TearDownSuite() {
	suite.NoError(suite.dataStore.Close())
}

func (suite *RecommenderTestSuite) SetupTest() {
	suite.NoError(suite.dataStore.Purge())
}

func (suite *RecommenderTestSuite) TestHybrid() {
	ctx := context.Background()
	recommendation, err := suite.recommender.Hybrid(ctx, 1, 10, 0.7)
	suite.NoError(err)
	suite.Equal(SourcePersonalized, recommendation.Source)
	suite.Equal([]int64{10, 20, 30}, movieIds(recommendation.Movies))
	// factor and content both present: alpha*factor + (1-alpha)*content
	suite.InDelta(0.7*1.0+0.3*0.65, recommendation.Movies[0].Score, 1e-6)
	suite.InDelta(0.7*0.0+0.3*0.9, recommendation.Movies[1].Score, 1e-6)
	// content absent: factor signal alone
	suite.InDelta(0.0, recommendation.Movies[2].Score, 1e-6)
	suite.Equal("Toy Story (1995)", recommendation.Movies[0].Title)

	// idempotence
	again, err := suite.recommender.Hybrid(ctx, 1, 10, 0.7)
	suite.NoError(err)
	suite.Equal(recommendation, again)
}

func (suite *RecommenderTestSuite) TestHybridExcludesHistory() {
	ctx := context.Background()
	suite.NoError(suite.dataStore.BatchInsertRatings(ctx, []data.Rating{{UserId: 1, MovieId: 10}}))
	recommendation, err := suite.recommender.Hybrid(ctx, 1, 10, 0.7)
	suite.NoError(err)
	suite.NotContains(movieIds(recommendation.Movies), int64(10))
}

func (suite *RecommenderTestSuite) TestHybridColdStart() {
	recommendation, err := suite.recommender.Hybrid(context.Background(), 999, 10, 0.7)
	suite.NoError(err)
	suite.Equal(SourcePopularity, recommendation.Source)
	suite.Equal([]int64{30, 10}, movieIds(recommendation.Movies))

	// alpha must not change the fallback
	again, err := suite.recommender.Hybrid(context.Background(), 999, 10, 0.2)
	suite.NoError(err)
	suite.Equal(recommendation, again)
}

func (suite *RecommenderTestSuite) TestCollaborative() {
	recommendation, err := suite.recommender.Collaborative(context.Background(), 2, 2)
	suite.NoError(err)
	suite.Equal(SourcePersonalized, recommendation.Source)
	// user 2 predicts [1.0, 1.0, 0.5], the tie breaks by ascending movie id
	suite.Equal([]int64{10, 20}, movieIds(recommendation.Movies))
	suite.InDelta(1.0, recommendation.Movies[0].Score, 1e-6)
	suite.InDelta(1.0, recommendation.Movies[1].Score, 1e-6)
}

func (suite *RecommenderTestSuite) TestCollaborativeColdStart() {
	recommendation, err := suite.recommender.Collaborative(context.Background(), 999, 1)
	suite.NoError(err)
	suite.Equal(SourcePopularity, recommendation.Source)
	suite.Equal([]int64{30}, movieIds(recommendation.Movies))
}

func (suite *RecommenderTestSuite) TestContentBased() {
	scores := suite.recommender.ContentBased("toy story", 10)
	suite.Equal([]int64{20, 30}, lo.Map(scores, func(score MovieScore, _ int) int64 { return score.MovieId }))
	suite.InDelta(0.9, scores[0].Score, 1e-6)
	suite.Equal("Jumanji (1995)", scores[0].Title)
	// unmatched title
	suite.Empty(suite.recommender.ContentBased("no such movie", 10))
	// movie without neighbors
	suite.Empty(suite.recommender.ContentBased("heat", 10))
}

func (suite *RecommenderTestSuite) TestUsersForItem() {
	scores := suite.recommender.UsersForItem("jumanji", 10)
	// column 20 predicts user 1 -> 0, user 2 -> 1.0
	suite.Equal([]int64{2, 1}, lo.Map(scores, func(score UserScore, _ int) int64 { return score.UserId }))
	suite.InDelta(1.0, scores[0].Score, 1e-6)
	suite.Empty(suite.recommender.UsersForItem("no such movie", 10))
}

func (suite *RecommenderTestSuite) TestPopular() {
	recommendation := suite.recommender.Popular(1)
	suite.Equal(SourcePopularity, recommendation.Source)
	suite.Equal([]int64{30}, movieIds(recommendation.Movies))
	suite.Equal("Heat (1995)", recommendation.Movies[0].Title)
}

func TestRecommenderTestSuite(t *testing.T) {
	suite.Run(t, new(RecommenderTestSuite))
}

func movieIds(movies []MovieScore) []int64 {
	return lo.Map(movies, func(movie MovieScore, _ int) int64 { return movie.MovieId })
}

// slowDatabase blocks rating-history queries until the context expires.
type slowDatabase struct {
	data.Database
}

func (d slowDatabase) GetUserMovies(ctx context.Context, userId int64) ([]int64, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestHistoryTimeout(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Recommend.HistoryTimeout = 10 * time.Millisecond
	recommender := NewRecommender(cfg, newTestFactorModel(t), newTestSimilarityMatrix(t),
		newTestCatalog(), nil, slowDatabase{})
	// a slow history query degrades to an empty history
	recommendation, err := recommender.Hybrid(context.Background(), 1, 10, 0.7)
	assert.NoError(t, err)
	assert.Equal(t, SourcePersonalized, recommendation.Source)
	assert.Equal(t, []int64{10, 20, 30}, movieIds(recommendation.Movies))
}

func TestDegradedSignals(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Recommend.HistoryTimeout = 10 * time.Millisecond

	// no content model: hybrid ranks on the factor signal alone
	recommender := NewRecommender(cfg, newTestFactorModel(t), nil,
		newTestCatalog(), NewPopularity([]int64{30}), slowDatabase{})
	recommendation, err := recommender.Hybrid(context.Background(), 1, 10, 0.7)
	assert.NoError(t, err)
	assert.Equal(t, SourcePersonalized, recommendation.Source)
	assert.Equal(t, []int64{10, 20, 30}, movieIds(recommendation.Movies))
	assert.InDelta(t, 1.0, recommendation.Movies[0].Score, 1e-6)

	// no factor model: every user falls back to popularity
	recommender = NewRecommender(cfg, nil, newTestSimilarityMatrix(t),
		newTestCatalog(), NewPopularity([]int64{30}), slowDatabase{})
	recommendation, err = recommender.Hybrid(context.Background(), 1, 10, 0.7)
	assert.NoError(t, err)
	assert.Equal(t, SourcePopularity, recommendation.Source)
	assert.Empty(t, recommender.UsersForItem("toy story", 10))
}

func TestHybridScore(t *testing.T) {
	for _, alpha := range []float32{0, 0.3, 0.7, 1} {
		score, ok := hybridScore(0.8, true, 0.5, true, alpha)
		assert.True(t, ok)
		assert.InDelta(t, alpha*0.8+(1-alpha)*0.5, score, 1e-9)
		// exactly one signal present: that signal alone
		score, ok = hybridScore(0.8, true, 0, false, alpha)
		assert.True(t, ok)
		assert.Equal(t, float32(0.8), score)
		score, ok = hybridScore(0, false, 0.5, true, alpha)
		assert.True(t, ok)
		assert.Equal(t, float32(0.5), score)
		// no signal at all: not scorable
		_, ok = hybridScore(0, false, 0, false, alpha)
		assert.False(t, ok)
	}
}

func TestCandidatePadding(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Recommend.CandidateSize = 2
	cfg.Recommend.MinCandidates = 4
	recommender := NewRecommender(cfg, newTestFactorModel(t), newTestSimilarityMatrix(t),
		newTestCatalog(), nil, slowDatabase{})
	row := lo.Must(recommender.factor.PredictRow(2))
	candidates := recommender.candidates(row, mapset.NewThreadUnsafeSet[int64]())
	// 2 seeded from the factor ranking, padded from the catalog up to 4
	assert.Len(t, candidates, 4)
	assert.ElementsMatch(t, []int64{10, 20, 30, 40}, candidates)
}
