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

package similarity

import (
	"io"
	"os"
	"sort"

	"github.com/filmatch/filmatch/base/encoding"
	"github.com/filmatch/filmatch/dataset"
	"github.com/juju/errors"
)

// Neighbor is one entry of an item's similarity row.
type Neighbor struct {
	ItemId int64
	Score  float32
}

// Matrix is an item-item similarity matrix in compressed sparse row layout.
// Row i holds the nonzero similarities of item with dense index i. Only row
// slicing is exposed; the matrix is immutable after load.
type Matrix struct {
	Items   *dataset.Dict
	RowPtr  []int32
	Indices []int32
	Values  []float32
}

// Validate checks the CSR shape invariants.
func (m *Matrix) Validate() error {
	if len(m.RowPtr) != int(m.Items.Count())+1 {
		return errors.Errorf("row pointer has %d entries for %d items", len(m.RowPtr), m.Items.Count())
	}
	if len(m.Indices) != len(m.Values) {
		return errors.Errorf("%d indices for %d values", len(m.Indices), len(m.Values))
	}
	if m.RowPtr[0] != 0 || int(m.RowPtr[len(m.RowPtr)-1]) != len(m.Values) {
		return errors.New("row pointer is not a prefix sum of row lengths")
	}
	for i := 1; i < len(m.RowPtr); i++ {
		if m.RowPtr[i] < m.RowPtr[i-1] {
			return errors.New("row pointer is not monotonic")
		}
	}
	return nil
}

// row returns the stored indices and values of one row.
func (m *Matrix) row(index int32) ([]int32, []float32) {
	begin, end := m.RowPtr[index], m.RowPtr[index+1]
	return m.Indices[begin:end], m.Values[begin:end]
}

// SimilarItems returns up to limit content neighbors of an item, sorted
// descending by similarity with ties broken by ascending item id. The item
// itself is excluded from its own neighbor list. An unknown item or an empty
// row yields an empty result, never an error.
func (m *Matrix) SimilarItems(itemId int64, limit int) []Neighbor {
	index := m.Items.Id(itemId)
	if index == dataset.NotFound {
		return nil
	}
	indices, values := m.row(index)
	neighbors := make([]Neighbor, 0, len(indices))
	for i, neighborIndex := range indices {
		if neighborIndex == index {
			continue
		}
		external, ok := m.Items.External(neighborIndex)
		if !ok {
			continue
		}
		neighbors = append(neighbors, Neighbor{ItemId: external, Score: values[i]})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Score != neighbors[j].Score {
			return neighbors[i].Score > neighbors[j].Score
		}
		return neighbors[i].ItemId < neighbors[j].ItemId
	})
	if limit >= 0 && len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}
	return neighbors
}

// MeanTopK returns the mean of the k largest nonzero similarities in an
// item's row. The second return value is false when the item is unknown or
// its row is empty.
func (m *Matrix) MeanTopK(itemId int64, k int) (float32, bool) {
	index := m.Items.Id(itemId)
	if index == dataset.NotFound {
		return 0, false
	}
	_, values := m.row(index)
	if len(values) == 0 || k <= 0 {
		return 0, false
	}
	sorted := make([]float32, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	var sum float32
	for _, value := range sorted {
		sum += value
	}
	return sum / float32(len(sorted)), true
}

// Marshal writes the matrix to byte stream.
func (m *Matrix) Marshal(w io.Writer) error {
	if err := m.Items.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, m.RowPtr); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, m.Indices); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(encoding.WriteVector(w, m.Values))
}

// Unmarshal reads a matrix from byte stream.
func Unmarshal(r io.Reader) (*Matrix, error) {
	m := new(Matrix)
	var err error
	if m.Items, err = dataset.UnmarshalDict(r); err != nil {
		return nil, errors.Trace(err)
	}
	if err = encoding.ReadGob(r, &m.RowPtr); err != nil {
		return nil, errors.Trace(err)
	}
	if err = encoding.ReadGob(r, &m.Indices); err != nil {
		return nil, errors.Trace(err)
	}
	m.Values = make([]float32, len(m.Indices))
	if err = encoding.ReadVector(r, m.Values); err != nil {
		return nil, errors.Trace(err)
	}
	if err = m.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}

// Load reads a matrix from a file.
func Load(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	return Unmarshal(f)
}
