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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	archive, err := txtar.ParseFile(filepath.Join("testdata", "documents.txtar"))
	require.NoError(t, err)
	for _, f := range archive.Files {
		if f.Name == name {
			return f.Data
		}
	}
	t.Fatalf("no fixture %s in archive", name)
	return nil
}

func TestReadValidDocument(t *testing.T) {
	g, err := Read(bytes.NewReader(fixture(t, "valid.json")), false)
	require.NoError(t, err)
	assert.Equal(t, 4, g.NumNodes())
	assert.NotNil(t, g.Proc("f"))
	assert.NotNil(t, g.Site("s1"))
	assert.Equal(t, Parameter, g.Node("f.p").Kind)
}

func TestReadRejectsDanglingStep(t *testing.T) {
	_, err := Read(bytes.NewReader(fixture(t, "dangling-step.json")), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dangling")
}

func TestReadRejectsUnknownFields(t *testing.T) {
	_, err := Read(bytes.NewReader(fixture(t, "unknown-field.json")), false)
	require.Error(t, err)
}

func TestLoadCompressed(t *testing.T) {
	plain, err := Read(bytes.NewReader(fixture(t, "valid.json")), false)
	require.NoError(t, err)

	doc := validDoc()
	name := filepath.Join(t.TempDir(), "graph.json.zst")
	f, err := os.Create(name)
	require.NoError(t, err)
	require.NoError(t, Write(f, doc, true))
	require.NoError(t, f.Close())

	loaded, err := Load(name)
	require.NoError(t, err)
	assert.Equal(t, plain.Fingerprint(), loaded.Fingerprint())
}

func TestLoadUncompressed(t *testing.T) {
	name := filepath.Join(t.TempDir(), "graph.json")
	f, err := os.Create(name)
	require.NoError(t, err)
	require.NoError(t, Write(f, validDoc(), false))
	require.NoError(t, f.Close())

	g, err := Load(name)
	require.NoError(t, err)
	assert.Equal(t, 4, g.NumNodes())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
