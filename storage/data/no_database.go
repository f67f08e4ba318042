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

import "context"

// NoDatabase means that no database is attached. Every query fails with
// ErrNoDatabase so callers degrade instead of dereferencing nil.
type NoDatabase struct{}

func (NoDatabase) Init() error {
	return ErrNoDatabase
}

func (NoDatabase) Ping() error {
	return ErrNoDatabase
}

func (NoDatabase) Close() error {
	return ErrNoDatabase
}

func (NoDatabase) Purge() error {
	return ErrNoDatabase
}

func (NoDatabase) BatchInsertMovies(_ context.Context, _ []Movie) error {
	return ErrNoDatabase
}

func (NoDatabase) GetMovie(_ context.Context, _ int64) (Movie, error) {
	return Movie{}, ErrNoDatabase
}

func (NoDatabase) GetMovies(_ context.Context) ([]Movie, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) BatchInsertRatings(_ context.Context, _ []Rating) error {
	return ErrNoDatabase
}

func (NoDatabase) GetUserMovies(_ context.Context, _ int64) ([]int64, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) CountRatings(_ context.Context) (int64, error) {
	return 0, ErrNoDatabase
}
