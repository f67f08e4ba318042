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
	"fmt"
	"net/http"
	"strconv"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/filmatch/filmatch/base/log"
	"github.com/filmatch/filmatch/config"
	"github.com/filmatch/filmatch/logics"
	"github.com/filmatch/filmatch/storage/data"
)

// RestServer serves the recommendation API over HTTP.
type RestServer struct {
	Config      *config.Config
	Recommender *logics.Recommender
	DataStore   data.Database
	HttpHost    string
	HttpPort    int
	WebService  *restful.WebService
}

// HealthStatus reports which artifacts loaded and whether the data store
// answers. The server keeps serving with degraded signals, so Ready is
// informational, not a liveness gate.
type HealthStatus struct {
	Ready                 bool   `json:"ready"`
	FactorModelLoaded     bool   `json:"factor_model_loaded"`
	SimilarityModelLoaded bool   `json:"similarity_model_loaded"`
	PopularityListLoaded  bool   `json:"popularity_list_loaded"`
	DataStoreError        string `json:"data_store_error,omitempty"`
}

// StartHttpServer starts the REST-ful API server.
func (s *RestServer) StartHttpServer() {
	// register restful APIs
	s.CreateWebService()
	restful.DefaultContainer.Add(s.WebService)
	// register swagger UI
	specConfig := restfulspec.Config{
		WebServices: restful.RegisteredWebServices(),
		APIPath:     "/apidocs.json",
	}
	restful.DefaultContainer.Add(restfulspec.NewOpenAPIService(specConfig))
	// register prometheus
	http.Handle("/metrics", promhttp.Handler())

	log.Logger().Info("start http server",
		zap.String("url", fmt.Sprintf("http://%s:%d", s.HttpHost, s.HttpPort)))
	log.Logger().Fatal("failed to start http server",
		zap.Error(http.ListenAndServe(fmt.Sprintf("%s:%d", s.HttpHost, s.HttpPort), nil)))
}

func LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	chain.ProcessFilter(req, resp)
	responseTime := time.Since(start)
	log.Logger().Info(fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL),
		zap.Int("status_code", resp.StatusCode()),
		zap.Duration("response_time", responseTime))
	RestAPIRequestSecondsVec.WithLabelValues(
		fmt.Sprintf("%s %s", req.Request.Method, req.SelectedRoutePath())).
		Observe(responseTime.Seconds())
}

// CreateWebService creates web service.
func (s *RestServer) CreateWebService() {
	ws := s.WebService
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/api/")
	ws.Filter(LogFilter)

	// Get collaborative-filtering recommendations for a user
	ws.Route(ws.GET("/recommend/user/{user-id}").To(s.getCollaborative).
		Doc("Get collaborative-filtering recommendations for a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommend"}).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.QueryParameter("n", "number of returned movies").DataType("integer")).
		Writes(logics.Recommendation{}))
	// Get hybrid recommendations for a user
	ws.Route(ws.GET("/recommend/hybrid/{user-id}").To(s.getHybrid).
		Doc("Get hybrid recommendations for a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommend"}).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.QueryParameter("n", "number of returned movies").DataType("integer")).
		Param(ws.QueryParameter("alpha", "weight of the factor-model signal").DataType("number")).
		Writes(logics.Recommendation{}))
	// Get similar movies by title
	ws.Route(ws.GET("/recommend/movie/{title}").To(s.getContentBased).
		Doc("Get movies similar to the first movie whose title contains the query.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommend"}).
		Param(ws.PathParameter("title", "title query of the movie").DataType("string")).
		Param(ws.QueryParameter("n", "number of returned movies").DataType("integer")).
		Writes([]logics.MovieScore{}))
	// Get users predicted to like a movie
	ws.Route(ws.GET("/users/movie/{title}").To(s.getUsersForMovie).
		Doc("Get the users predicted to rate a movie the highest.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommend"}).
		Param(ws.PathParameter("title", "title query of the movie").DataType("string")).
		Param(ws.QueryParameter("n", "number of returned users").DataType("integer")).
		Writes([]logics.UserScore{}))
	// Get popular movies
	ws.Route(ws.GET("/popular").To(s.getPopular).
		Doc("Get popular movies.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommend"}).
		Param(ws.QueryParameter("n", "number of returned movies").DataType("integer")).
		Writes(logics.Recommendation{}))
	// Health check
	ws.Route(ws.GET("/health").To(s.getHealth).
		Doc("Check the health of the server.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Writes(HealthStatus{}))
}

func (s *RestServer) getN(request *restful.Request) (int, error) {
	return parseInt(request.QueryParameter("n"), s.Config.Server.DefaultN)
}

func parseInt(value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if n < 0 {
		return 0, errors.NotValidf("negative n")
	}
	return n, nil
}

func (s *RestServer) getCollaborative(request *restful.Request, response *restful.Response) {
	userId, err := strconv.ParseInt(request.PathParameter("user-id"), 10, 64)
	if err != nil {
		BadRequest(response, err)
		return
	}
	n, err := s.getN(request)
	if err != nil {
		BadRequest(response, err)
		return
	}
	recommendation, err := s.Recommender.Collaborative(request.Request.Context(), userId, n)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, recommendation)
}

func (s *RestServer) getHybrid(request *restful.Request, response *restful.Response) {
	userId, err := strconv.ParseInt(request.PathParameter("user-id"), 10, 64)
	if err != nil {
		BadRequest(response, err)
		return
	}
	n, err := s.getN(request)
	if err != nil {
		BadRequest(response, err)
		return
	}
	alpha := float32(s.Config.Recommend.Alpha)
	if value := request.QueryParameter("alpha"); value != "" {
		parsed, err := strconv.ParseFloat(value, 32)
		if err != nil || parsed < 0 || parsed > 1 {
			BadRequest(response, errors.NotValidf("alpha %v", value))
			return
		}
		alpha = float32(parsed)
	}
	recommendation, err := s.Recommender.Hybrid(request.Request.Context(), userId, n, alpha)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, recommendation)
}

func (s *RestServer) getContentBased(request *restful.Request, response *restful.Response) {
	n, err := s.getN(request)
	if err != nil {
		BadRequest(response, err)
		return
	}
	scores := s.Recommender.ContentBased(request.PathParameter("title"), n)
	if scores == nil {
		scores = []logics.MovieScore{}
	}
	Ok(response, scores)
}

func (s *RestServer) getUsersForMovie(request *restful.Request, response *restful.Response) {
	n, err := s.getN(request)
	if err != nil {
		BadRequest(response, err)
		return
	}
	scores := s.Recommender.UsersForItem(request.PathParameter("title"), n)
	if scores == nil {
		scores = []logics.UserScore{}
	}
	Ok(response, scores)
}

func (s *RestServer) getPopular(request *restful.Request, response *restful.Response) {
	n, err := s.getN(request)
	if err != nil {
		BadRequest(response, err)
		return
	}
	Ok(response, s.Recommender.Popular(n))
}

func (s *RestServer) getHealth(request *restful.Request, response *restful.Response) {
	status := HealthStatus{
		FactorModelLoaded:     s.Recommender.FactorLoaded(),
		SimilarityModelLoaded: s.Recommender.ContentLoaded(),
		PopularityListLoaded:  s.Recommender.PopularityLoaded(),
	}
	if err := s.DataStore.Ping(); err != nil {
		status.DataStoreError = err.Error()
	}
	status.Ready = status.FactorModelLoaded && status.SimilarityModelLoaded && status.DataStoreError == ""
	Ok(response, status)
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.Logger().Error("bad request", zap.Error(err))
	if err = response.WriteError(http.StatusBadRequest, err); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// InternalServerError returns a internal server error.
func InternalServerError(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.Logger().Error("internal server error", zap.Error(err))
	if err = response.WriteError(http.StatusInternalServerError, err); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content interface{}) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteAsJson(content); err != nil {
		log.Logger().Error("failed to write json", zap.Error(err))
	}
}
