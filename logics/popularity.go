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
	"os"

	"github.com/juju/errors"

	"github.com/filmatch/filmatch/base/encoding"
)

// Popularity is an optional precomputed ranking of generally popular
// movies, served to users unknown to the factor model.
type Popularity struct {
	movieIds []int64
}

func NewPopularity(movieIds []int64) *Popularity {
	return &Popularity{movieIds: movieIds}
}

// LoadPopularity reads a popularity ranking from disk. A missing file is
// not an error, it yields an empty ranking.
func LoadPopularity(path string) (*Popularity, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewPopularity(nil), nil
		}
		return nil, errors.Trace(err)
	}
	defer f.Close()
	var movieIds []int64
	if err = encoding.ReadGob(f, &movieIds); err != nil {
		return nil, errors.Trace(err)
	}
	return NewPopularity(movieIds), nil
}

func (p *Popularity) Empty() bool {
	return len(p.movieIds) == 0
}

// TopN returns the first n movie ids of the ranking unchanged.
func (p *Popularity) TopN(n int) []int64 {
	if n > len(p.movieIds) {
		n = len(p.movieIds)
	}
	return p.movieIds[:n]
}
