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
	"time"

	"github.com/bits-and-blooms/bitset"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/filmatch/filmatch/base/heap"
	"github.com/filmatch/filmatch/base/log"
	"github.com/filmatch/filmatch/config"
	"github.com/filmatch/filmatch/dataset"
	"github.com/filmatch/filmatch/model/similarity"
	"github.com/filmatch/filmatch/model/svd"
	"github.com/filmatch/filmatch/storage/data"
)

// Recommender blends the factor model and the content similarity model
// into ranked movie lists. The models, catalog and popularity ranking are
// loaded once and shared read-only by all requests, so no locking is
// needed. Per-request state, the predicted row above all, stays on the
// request's own stack.
type Recommender struct {
	factor     *svd.Model
	content    *similarity.Matrix
	catalog    *Catalog
	popularity *Popularity
	dataStore  data.Database

	contentTopK    int
	candidateSize  int
	minCandidates  int
	historyTimeout time.Duration
}

// NewRecommender assembles a recommender. factor, content and popularity
// may be nil when the corresponding artifact failed to load, the affected
// signal then degrades to absent instead of failing requests.
func NewRecommender(cfg *config.Config, factor *svd.Model, content *similarity.Matrix,
	catalog *Catalog, popularity *Popularity, dataStore data.Database) *Recommender {
	if popularity == nil {
		popularity = NewPopularity(nil)
	}
	return &Recommender{
		factor:         factor,
		content:        content,
		catalog:        catalog,
		popularity:     popularity,
		dataStore:      dataStore,
		contentTopK:    cfg.Recommend.ContentTopK,
		candidateSize:  cfg.Recommend.CandidateSize,
		minCandidates:  cfg.Recommend.MinCandidates,
		historyTimeout: cfg.Recommend.HistoryTimeout,
	}
}

// FactorLoaded reports whether the factor model artifact loaded.
func (r *Recommender) FactorLoaded() bool {
	return r.factor != nil
}

// ContentLoaded reports whether the similarity matrix artifact loaded.
func (r *Recommender) ContentLoaded() bool {
	return r.content != nil
}

// PopularityLoaded reports whether a non-empty popularity ranking loaded.
func (r *Recommender) PopularityLoaded() bool {
	return !r.popularity.Empty()
}

// history returns the set of movies the user already rated. The query is
// bounded by the history timeout. On failure or expiry the history is
// treated as empty so the request still completes.
func (r *Recommender) history(ctx context.Context, userId int64) mapset.Set[int64] {
	seen := mapset.NewThreadUnsafeSet[int64]()
	ctx, cancel := context.WithTimeout(ctx, r.historyTimeout)
	defer cancel()
	movieIds, err := r.dataStore.GetUserMovies(ctx, userId)
	if err != nil {
		log.Logger().Warn("failed to load rating history, treating as empty",
			zap.Int64("user_id", userId), zap.Error(err))
		return seen
	}
	seen.Append(movieIds...)
	return seen
}

// candidates seeds the candidate set with the best predictions of the
// user's row, skipping already rated movies, then pads it from the
// catalog until it holds at least minCandidates movies.
func (r *Recommender) candidates(row []float32, seen mapset.Set[int64]) []int64 {
	// seed from the factor model ranking
	filter := heap.NewTopKFilter[int64, float32](r.candidateSize)
	members := bitset.New(uint(len(row)))
	for index, score := range row {
		movieId, ok := r.factor.Items.External(int32(index))
		if !ok || seen.Contains(movieId) {
			continue
		}
		filter.Push(movieId, score)
	}
	candidates := filter.PopAllValues()
	for _, movieId := range candidates {
		if index := r.factor.Items.Id(movieId); index != dataset.NotFound {
			members.Set(uint(index))
		}
	}
	// pad from the catalog
	padded := mapset.NewThreadUnsafeSet[int64]()
	for _, movie := range r.catalog.Movies() {
		if len(candidates) >= r.minCandidates {
			break
		}
		if seen.Contains(movie.MovieId) || padded.Contains(movie.MovieId) {
			continue
		}
		if index := r.factor.Items.Id(movie.MovieId); index != dataset.NotFound && members.Test(uint(index)) {
			continue
		}
		padded.Add(movie.MovieId)
		candidates = append(candidates, movie.MovieId)
	}
	return candidates
}

// hybridScore combines the factor and content signals of one candidate.
// With both signals absent the candidate is not scorable. With exactly
// one present that signal alone is the score. With both present the
// score is alpha*factor + (1-alpha)*content.
func hybridScore(factor float32, hasFactor bool, content float32, hasContent bool, alpha float32) (float32, bool) {
	switch {
	case hasFactor && hasContent:
		return alpha*factor + (1-alpha)*content, true
	case hasFactor:
		return factor, true
	case hasContent:
		return content, true
	default:
		return 0, false
	}
}

func (r *Recommender) joinTitles(movieIds []int64, scores []float32) []MovieScore {
	result := make([]MovieScore, 0, len(movieIds))
	for i, movieId := range movieIds {
		title, _ := r.catalog.Title(movieId)
		result = append(result, MovieScore{MovieId: movieId, Title: title, Score: scores[i]})
	}
	return result
}

// fallback returns the top-n popular movies tagged as a non-personalized
// result.
func (r *Recommender) fallback(n int) *Recommendation {
	movieIds := r.popularity.TopN(n)
	movies := make([]MovieScore, 0, len(movieIds))
	for _, movieId := range movieIds {
		title, _ := r.catalog.Title(movieId)
		movies = append(movies, MovieScore{MovieId: movieId, Title: title})
	}
	return &Recommendation{Source: SourcePopularity, Movies: movies}
}

// Hybrid recommends n movies for a user by blending the factor model and
// the content model over a bounded candidate set. Users unknown to the
// factor model fall back to the popularity ranking.
func (r *Recommender) Hybrid(ctx context.Context, userId int64, n int, alpha float32) (*Recommendation, error) {
	if r.factor == nil {
		return r.fallback(n), nil
	}
	row, err := r.factor.PredictRow(userId)
	if err != nil {
		if errors.Is(err, svd.ErrUserNotFound) {
			return r.fallback(n), nil
		}
		return nil, errors.Trace(err)
	}
	seen := r.history(ctx, userId)
	scores := make([]MovieScore, 0, r.candidateSize)
	for _, movieId := range r.candidates(row, seen) {
		var factor, content float32
		var hasFactor, hasContent bool
		if index := r.factor.Items.Id(movieId); index != dataset.NotFound {
			factor, hasFactor = row[index], true
		}
		if r.content != nil {
			content, hasContent = r.content.MeanTopK(movieId, r.contentTopK)
		}
		if score, ok := hybridScore(factor, hasFactor, content, hasContent, alpha); ok {
			title, _ := r.catalog.Title(movieId)
			scores = append(scores, MovieScore{MovieId: movieId, Title: title, Score: score})
		}
	}
	return &Recommendation{Source: SourcePersonalized, Movies: TopMovies(scores, n)}, nil
}

// Collaborative recommends n movies for a user by the factor model alone.
// Users unknown to the factor model fall back to the popularity ranking.
func (r *Recommender) Collaborative(ctx context.Context, userId int64, n int) (*Recommendation, error) {
	if r.factor == nil {
		return r.fallback(n), nil
	}
	row, err := r.factor.PredictRow(userId)
	if err != nil {
		if errors.Is(err, svd.ErrUserNotFound) {
			return r.fallback(n), nil
		}
		return nil, errors.Trace(err)
	}
	seen := r.history(ctx, userId)
	scores := make([]MovieScore, 0, len(row))
	for index, score := range row {
		movieId, ok := r.factor.Items.External(int32(index))
		if !ok || seen.Contains(movieId) {
			continue
		}
		title, _ := r.catalog.Title(movieId)
		scores = append(scores, MovieScore{MovieId: movieId, Title: title, Score: score})
	}
	return &Recommendation{Source: SourcePersonalized, Movies: TopMovies(scores, n)}, nil
}

// ContentBased returns the n most similar movies to the first catalog
// movie whose title contains the query. An unmatched query or a movie
// without similarity neighbors yields an empty list.
func (r *Recommender) ContentBased(query string, n int) []MovieScore {
	movie, exist := r.catalog.Find(query)
	if !exist || r.content == nil {
		return nil
	}
	neighbors := r.content.SimilarItems(movie.MovieId, n)
	scores := make([]MovieScore, 0, len(neighbors))
	for _, neighbor := range neighbors {
		title, _ := r.catalog.Title(neighbor.ItemId)
		scores = append(scores, MovieScore{MovieId: neighbor.ItemId, Title: title, Score: neighbor.Score})
	}
	return scores
}

// UsersForItem returns the n users the factor model predicts the highest
// rating for, for the first catalog movie whose title contains the query.
func (r *Recommender) UsersForItem(query string, n int) []UserScore {
	movie, exist := r.catalog.Find(query)
	if !exist || r.factor == nil {
		return nil
	}
	column, err := r.factor.PredictUsersForItem(movie.MovieId)
	if err != nil {
		if !errors.Is(err, svd.ErrItemNotFound) {
			log.Logger().Error("failed to predict users", zap.Error(err))
		}
		return nil
	}
	scores := make([]UserScore, 0, len(column))
	for index, score := range column {
		userId, ok := r.factor.Users.External(int32(index))
		if !ok {
			continue
		}
		scores = append(scores, UserScore{UserId: userId, Score: score})
	}
	return TopUsers(scores, n)
}

// Popular returns the top-n popular movies.
func (r *Recommender) Popular(n int) *Recommendation {
	return r.fallback(n)
}
