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

package svd

import (
	"io"
	"os"

	"github.com/filmatch/filmatch/base/encoding"
	"github.com/filmatch/filmatch/common/floats"
	"github.com/filmatch/filmatch/dataset"
	"github.com/juju/errors"
)

var (
	ErrUserNotFound = errors.NotFoundf("user")
	ErrItemNotFound = errors.NotFoundf("item")
)

// Model is a truncated SVD factorization of the user-item rating matrix,
// trained offline and loaded as an immutable artifact. A predicted rating for
// user index u and item index i is dot(U[u]*Sigma, Vt[:,i]) + UserMean[u].
// Raw predictions are relative ranking signals and are never clipped or
// rounded.
type Model struct {
	Users    *dataset.Dict
	Items    *dataset.Dict
	U        [][]float32 // users x factors
	Sigma    []float32   // factors
	Vt       [][]float32 // factors x items
	UserMean []float32   // users
}

// Validate checks the shape invariants between factor matrices and
// dictionaries.
func (m *Model) Validate() error {
	k := len(m.Sigma)
	if len(m.U) != int(m.Users.Count()) {
		return errors.Errorf("U has %d rows for %d users", len(m.U), m.Users.Count())
	}
	if len(m.UserMean) != int(m.Users.Count()) {
		return errors.Errorf("user mean has %d entries for %d users", len(m.UserMean), m.Users.Count())
	}
	if len(m.Vt) != k {
		return errors.Errorf("Vt has %d rows for %d factors", len(m.Vt), k)
	}
	for _, row := range m.U {
		if len(row) != k {
			return errors.Errorf("U row has %d columns for %d factors", len(row), k)
		}
	}
	for _, row := range m.Vt {
		if len(row) != int(m.Items.Count()) {
			return errors.Errorf("Vt row has %d columns for %d items", len(row), m.Items.Count())
		}
	}
	return nil
}

// Factors returns the number of latent dimensions.
func (m *Model) Factors() int {
	return len(m.Sigma)
}

// PredictRow reconstructs predicted ratings for one user against every item.
// The result is a fresh dense vector indexed by item dense-index, computed as
// one weighted sum over the rows of Vt rather than an item-by-item loop. It
// returns ErrUserNotFound when the user has no row in the factor model.
func (m *Model) PredictRow(userId int64) ([]float32, error) {
	userIndex := m.Users.Id(userId)
	if userIndex == dataset.NotFound {
		return nil, errors.Trace(ErrUserNotFound)
	}
	return m.predictRow(userIndex), nil
}

func (m *Model) predictRow(userIndex int32) []float32 {
	weights := make([]float32, m.Factors())
	floats.MulTo(m.U[userIndex], m.Sigma, weights)
	predictions := make([]float32, m.Items.Count())
	for factor, row := range m.Vt {
		floats.MulConstAdd(row, weights[factor], predictions)
	}
	floats.AddConst(predictions, m.UserMean[userIndex])
	return predictions
}

// PredictEntry reconstructs the predicted rating for a single user-item pair.
// The second return value is false if either identifier is absent from the
// factor model.
func (m *Model) PredictEntry(userId, itemId int64) (float32, bool) {
	userIndex := m.Users.Id(userId)
	itemIndex := m.Items.Id(itemId)
	if userIndex == dataset.NotFound || itemIndex == dataset.NotFound {
		return 0, false
	}
	var prediction float32
	for factor, row := range m.Vt {
		prediction += m.U[userIndex][factor] * m.Sigma[factor] * row[itemIndex]
	}
	return prediction + m.UserMean[userIndex], true
}

// PredictUsersForItem is the transposed reconstruction: predicted ratings of
// every user for one item, dot(U, Sigma*Vt[:,i]) + UserMean. It returns
// ErrItemNotFound when the item has no column in the factor model.
func (m *Model) PredictUsersForItem(itemId int64) ([]float32, error) {
	itemIndex := m.Items.Id(itemId)
	if itemIndex == dataset.NotFound {
		return nil, errors.Trace(ErrItemNotFound)
	}
	weights := make([]float32, m.Factors())
	for factor, row := range m.Vt {
		weights[factor] = m.Sigma[factor] * row[itemIndex]
	}
	predictions := make([]float32, m.Users.Count())
	for userIndex := range m.U {
		predictions[userIndex] = floats.Dot(m.U[userIndex], weights) + m.UserMean[userIndex]
	}
	return predictions, nil
}

// Marshal writes the model to byte stream.
func (m *Model) Marshal(w io.Writer) error {
	if err := m.Users.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := m.Items.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, int32(m.Factors())); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteMatrix(w, m.U); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteVector(w, m.Sigma); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteMatrix(w, m.Vt); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(encoding.WriteVector(w, m.UserMean))
}

// Unmarshal reads a model from byte stream.
func Unmarshal(r io.Reader) (*Model, error) {
	m := new(Model)
	var err error
	if m.Users, err = dataset.UnmarshalDict(r); err != nil {
		return nil, errors.Trace(err)
	}
	if m.Items, err = dataset.UnmarshalDict(r); err != nil {
		return nil, errors.Trace(err)
	}
	var factors int32
	if err = encoding.ReadGob(r, &factors); err != nil {
		return nil, errors.Trace(err)
	}
	m.U = newMatrix(int(m.Users.Count()), int(factors))
	if err = encoding.ReadMatrix(r, m.U); err != nil {
		return nil, errors.Trace(err)
	}
	m.Sigma = make([]float32, factors)
	if err = encoding.ReadVector(r, m.Sigma); err != nil {
		return nil, errors.Trace(err)
	}
	m.Vt = newMatrix(int(factors), int(m.Items.Count()))
	if err = encoding.ReadMatrix(r, m.Vt); err != nil {
		return nil, errors.Trace(err)
	}
	m.UserMean = make([]float32, m.Users.Count())
	if err = encoding.ReadVector(r, m.UserMean); err != nil {
		return nil, errors.Trace(err)
	}
	if err = m.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}

// Load reads a model from a file.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	return Unmarshal(f)
}

func newMatrix(rows, cols int) [][]float32 {
	m := make([][]float32, rows)
	for i := range m {
		m[i] = make([]float32, cols)
	}
	return m
}
