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
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/emicklei/go-restful/v3"
	"github.com/samber/lo"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/filmatch/filmatch/config"
	"github.com/filmatch/filmatch/dataset"
	"github.com/filmatch/filmatch/logics"
	"github.com/filmatch/filmatch/model/similarity"
	"github.com/filmatch/filmatch/model/svd"
	"github.com/filmatch/filmatch/storage/data"
)

type ServerTestSuite struct {
	suite.Suite
	RestServer
	handler *restful.Container
}

func (suite *ServerTestSuite) SetupSuite() {
	// open database
	var err error
	suite.Config = config.GetDefaultConfig()
	suite.DataStore, err = data.Open(fmt.Sprintf("sqlite://%s/data.db", suite.T().TempDir()))
	suite.NoError(err)
	suite.NoError(suite.DataStore.Init())

	// load a small fixture: two users, three movies
	factor := &svd.Model{
		Users:    lo.Must(dataset.NewDict([]int64{1, 2})),
		Items:    lo.Must(dataset.NewDict([]int64{10, 20, 30})),
		U:        [][]float32{{1, 0}, {0.5, 0.5}},
		Sigma:    []float32{1, 1},
		Vt:       [][]float32{{1, 0, 0}, {0, 1, 0}},
		UserMean: []float32{0, 0.5},
	}
	suite.NoError(factor.Validate())
	content := &similarity.Matrix{
		Items:   lo.Must(dataset.NewDict([]int64{10, 20, 30})),
		RowPtr:  []int32{0, 2, 3, 3},
		Indices: []int32{1, 2, 0},
		Values:  []float32{0.9, 0.4, 0.9},
	}
	suite.NoError(content.Validate())
	catalog := logics.NewCatalog([]data.Movie{
		{MovieId: 10, Title: "Toy Story (1995)"},
		{MovieId: 20, Title: "Jumanji (1995)"},
		{MovieId: 30, Title: "Heat (1995)"},
	})
	suite.Recommender = logics.NewRecommender(suite.Config, factor, content, catalog,
		logics.NewPopularity([]int64{30, 10}), suite.DataStore)

	suite.WebService = new(restful.WebService)
	suite.CreateWebService()
	suite.handler = restful.NewContainer()
	suite.handler.Add(suite.WebService)
}

func (suite *ServerTestSuite) TearDownSuite() {
	suite.NoError(suite.DataStore.Close())
}

func (suite *ServerTestSuite) SetupTest() {
	suite.NoError(suite.DataStore.Purge())
}

func (suite *ServerTestSuite) marshal(v interface{}) string {
	s, err := json.Marshal(v)
	suite.NoError(err)
	return string(s)
}

func (suite *ServerTestSuite) TestHybrid() {
	recommendation, err := suite.Recommender.Hybrid(context.Background(), 1, 2, 0.7)
	suite.NoError(err)
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/hybrid/1").
		Query("n", "2").
		Expect(suite.T()).
		Status(http.StatusOK).
		Body(suite.marshal(recommendation)).
		End()
	// unknown user falls back to the popularity ranking
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/hybrid/999").
		Expect(suite.T()).
		Status(http.StatusOK).
		Body(suite.marshal(logics.Recommendation{
			Source: logics.SourcePopularity,
			Movies: []logics.MovieScore{
				{MovieId: 30, Title: "Heat (1995)"},
				{MovieId: 10, Title: "Toy Story (1995)"},
			},
		})).
		End()
	// invalid parameters
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/hybrid/not-a-number").
		Expect(suite.T()).
		Status(http.StatusBadRequest).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/hybrid/1").
		Query("alpha", "2").
		Expect(suite.T()).
		Status(http.StatusBadRequest).
		End()
}

func (suite *ServerTestSuite) TestCollaborative() {
	recommendation, err := suite.Recommender.Collaborative(context.Background(), 2, 10)
	suite.NoError(err)
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/user/2").
		Expect(suite.T()).
		Status(http.StatusOK).
		Body(suite.marshal(recommendation)).
		End()
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/user/2").
		Query("n", "-1").
		Expect(suite.T()).
		Status(http.StatusBadRequest).
		End()
}

func (suite *ServerTestSuite) TestContentBased() {
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/movie/toy story").
		Query("n", "1").
		Expect(suite.T()).
		Status(http.StatusOK).
		Body(suite.marshal([]logics.MovieScore{
			{MovieId: 20, Title: "Jumanji (1995)", Score: 0.9},
		})).
		End()
	// unmatched titles yield an empty list, not an error
	apitest.New().
		Handler(suite.handler).
		Get("/api/recommend/movie/casablanca").
		Expect(suite.T()).
		Status(http.StatusOK).
		Body(`[]`).
		End()
}

func (suite *ServerTestSuite) TestUsersForMovie() {
	scores := suite.Recommender.UsersForItem("jumanji", 10)
	apitest.New().
		Handler(suite.handler).
		Get("/api/users/movie/jumanji").
		Expect(suite.T()).
		Status(http.StatusOK).
		Body(suite.marshal(scores)).
		End()
}

func (suite *ServerTestSuite) TestPopular() {
	apitest.New().
		Handler(suite.handler).
		Get("/api/popular").
		Query("n", "1").
		Expect(suite.T()).
		Status(http.StatusOK).
		Body(suite.marshal(logics.Recommendation{
			Source: logics.SourcePopularity,
			Movies: []logics.MovieScore{{MovieId: 30, Title: "Heat (1995)"}},
		})).
		End()
}

func (suite *ServerTestSuite) TestHealth() {
	apitest.New().
		Handler(suite.handler).
		Get("/api/health").
		Expect(suite.T()).
		Status(http.StatusOK).
		Body(suite.marshal(HealthStatus{
			Ready:                 true,
			FactorModelLoaded:     true,
			SimilarityModelLoaded: true,
			PopularityListLoaded:  true,
		})).
		End()
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func TestParseInt(t *testing.T) {
	n, err := parseInt("", 10)
	assert.NoError(t, err)
	assert.Equal(t, 10, n)
	n, err = parseInt("5", 10)
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	_, err = parseInt("-1", 10)
	assert.Error(t, err)
	_, err = parseInt("abc", 10)
	assert.Error(t, err)
}
