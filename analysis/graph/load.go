// Copyright The taintflow Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Load reads a graph document from a file and constructs the graph. Files
// ending in .zst are decompressed with zstd before decoding.
func Load(filename string) (*Graph, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not open graph file: %w", err)
	}
	defer f.Close()
	return Read(f, strings.HasSuffix(filename, ".zst"))
}

// Read decodes a graph document from r and constructs the graph.
func Read(r io.Reader, compressed bool) (*Graph, error) {
	if compressed {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("could not open zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}
	var doc Document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("could not decode graph document: %w", err)
	}
	return FromDocument(&doc)
}

// Write encodes the document to w, compressing with zstd when requested. It is
// the inverse of Read and is used by extractors and tests.
func Write(w io.Writer, doc *Document, compressed bool) error {
	if compressed {
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("could not open zstd writer: %w", err)
		}
		if err := json.NewEncoder(zw).Encode(doc); err != nil {
			zw.Close()
			return fmt.Errorf("could not encode graph document: %w", err)
		}
		return zw.Close()
	}
	return json.NewEncoder(w).Encode(doc)
}
