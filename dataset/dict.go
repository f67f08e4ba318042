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

package dataset

import (
	"io"

	"github.com/filmatch/filmatch/base/encoding"
	"github.com/juju/errors"
)

// NotFound is returned by Dict.Id for identifiers absent from the dictionary.
const NotFound = int32(-1)

// Dict maps external identifiers to dense indices and back. The two mappings
// are exact inverses: every dense index in [0, Count()) resolves to exactly
// one external identifier. A Dict is built once at load time and never
// mutated afterwards, so it is safe to share between requests without locks.
type Dict struct {
	si map[int64]int32
	is []int64
}

// NewDict builds a dictionary from external identifiers in dense-index order.
func NewDict(ids []int64) (*Dict, error) {
	d := &Dict{
		si: make(map[int64]int32, len(ids)),
		is: make([]int64, len(ids)),
	}
	for i, id := range ids {
		if _, exist := d.si[id]; exist {
			return nil, errors.Errorf("duplicate identifier %d", id)
		}
		d.si[id] = int32(i)
		d.is[i] = id
	}
	return d, nil
}

// Count returns the number of identifiers in the dictionary.
func (d *Dict) Count() int32 {
	return int32(len(d.is))
}

// Id returns the dense index of an external identifier, or NotFound.
func (d *Dict) Id(external int64) int32 {
	if index, exist := d.si[external]; exist {
		return index
	}
	return NotFound
}

// External returns the external identifier of a dense index.
func (d *Dict) External(index int32) (int64, bool) {
	if index < 0 || index >= d.Count() {
		return 0, false
	}
	return d.is[index], true
}

// Marshal writes the dictionary to byte stream.
func (d *Dict) Marshal(w io.Writer) error {
	return errors.Trace(encoding.WriteGob(w, d.is))
}

// UnmarshalDict reads a dictionary from byte stream.
func UnmarshalDict(r io.Reader) (*Dict, error) {
	var ids []int64
	if err := encoding.ReadGob(r, &ids); err != nil {
		return nil, errors.Trace(err)
	}
	return NewDict(ids)
}
