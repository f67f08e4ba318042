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
	"sort"

	"github.com/chewxy/math32"
)

// Source tags how a recommendation list was produced, so callers branch
// explicitly instead of inspecting the list shape.
type Source string

const (
	SourcePersonalized Source = "personalized"
	SourcePopularity   Source = "popularity"
)

type MovieScore struct {
	MovieId int64   `json:"movie_id"`
	Title   string  `json:"title"`
	Score   float32 `json:"score"`
}

type UserScore struct {
	UserId int64   `json:"user_id"`
	Score  float32 `json:"score"`
}

// Recommendation is a ranked movie list together with its source tag.
type Recommendation struct {
	Source Source       `json:"source"`
	Movies []MovieScore `json:"movies"`
}

// TopMovies sorts scores descending and truncates to n. Ties are broken
// by ascending movie id so repeated calls return identical orders.
// Candidates with a NaN score are dropped.
func TopMovies(scores []MovieScore, n int) []MovieScore {
	filtered := scores[:0]
	for _, score := range scores {
		if !math32.IsNaN(score.Score) {
			filtered = append(filtered, score)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Score != filtered[j].Score {
			return filtered[i].Score > filtered[j].Score
		}
		return filtered[i].MovieId < filtered[j].MovieId
	})
	if n > len(filtered) {
		n = len(filtered)
	}
	return filtered[:n]
}

// TopUsers is the user-side counterpart of TopMovies.
func TopUsers(scores []UserScore, n int) []UserScore {
	filtered := scores[:0]
	for _, score := range scores {
		if !math32.IsNaN(score.Score) {
			filtered = append(filtered, score)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Score != filtered[j].Score {
			return filtered[i].Score > filtered[j].Score
		}
		return filtered[i].UserId < filtered[j].UserId
	})
	if n > len(filtered) {
		n = len(filtered)
	}
	return filtered[:n]
}
