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
	"strings"

	"github.com/filmatch/filmatch/storage/data"
)

// Catalog is an in-memory movie lookup table. Movies keep the order they
// were loaded in, which decides both substring-match ambiguity and
// candidate padding order. Immutable after construction.
type Catalog struct {
	movies []data.Movie
	titles map[int64]string
}

func NewCatalog(movies []data.Movie) *Catalog {
	titles := make(map[int64]string, len(movies))
	for _, movie := range movies {
		titles[movie.MovieId] = movie.Title
	}
	return &Catalog{movies: movies, titles: titles}
}

func (c *Catalog) Count() int {
	return len(c.movies)
}

func (c *Catalog) Title(movieId int64) (string, bool) {
	title, exist := c.titles[movieId]
	return title, exist
}

// Movies returns all movies in catalog order. The returned slice must not
// be modified.
func (c *Catalog) Movies() []data.Movie {
	return c.movies
}

// Find returns the first movie in catalog order whose title contains the
// query, compared case-insensitively. Multiple matches are not ranked.
func (c *Catalog) Find(query string) (data.Movie, bool) {
	query = strings.ToLower(query)
	for _, movie := range c.movies {
		if strings.Contains(strings.ToLower(movie.Title), query) {
			return movie, true
		}
	}
	return data.Movie{}, false
}
