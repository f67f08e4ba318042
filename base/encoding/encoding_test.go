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

package encoding

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteReadMatrix(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	m := [][]float32{{1, 2, 3}, {4, 5, 6}}
	err := WriteMatrix(buf, m)
	assert.NoError(t, err)
	decoded := [][]float32{make([]float32, 3), make([]float32, 3)}
	err = ReadMatrix(buf, decoded)
	assert.NoError(t, err)
	assert.Equal(t, m, decoded)
}

func TestWriteReadVector(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	v := []float32{0.5, -1.5, 2.25}
	err := WriteVector(buf, v)
	assert.NoError(t, err)
	decoded := make([]float32, 3)
	err = ReadVector(buf, decoded)
	assert.NoError(t, err)
	assert.Equal(t, v, decoded)
}

func TestWriteReadString(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	err := WriteString(buf, "Toy Story (1995)")
	assert.NoError(t, err)
	decoded, err := ReadString(buf)
	assert.NoError(t, err)
	assert.Equal(t, "Toy Story (1995)", decoded)
}

func TestWriteReadGob(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	v := map[int64]int32{1: 0, 2: 1, 3: 2}
	err := WriteGob(buf, v)
	assert.NoError(t, err)
	var decoded map[int64]int32
	err = ReadGob(buf, &decoded)
	assert.NoError(t, err)
	assert.Equal(t, v, decoded)
}

func TestFormatFloat32(t *testing.T) {
	assert.Equal(t, "0.65", FormatFloat32(0.65))
}
