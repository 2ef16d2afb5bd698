// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/go-highway/clmatmul/kernels"
	"github.com/go-highway/clmatmul/matmul"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func TestParseDimensions(t *testing.T) {
	a, b, err := parseDimensions([]string{"2", "3", "3", "4"})
	require.NoError(t, err)
	assert.Equal(t, matmul.Dimensions{Rows: 2, Cols: 3}, a)
	assert.Equal(t, matmul.Dimensions{Rows: 3, Cols: 4}, b)

	_, _, err = parseDimensions([]string{"3", "4", "5", "6"})
	require.ErrorIs(t, err, matmul.ErrIncompatibleDimensions)

	for _, bad := range []string{"0", "-1", "x", "1.5"} {
		_, _, err = parseDimensions([]string{"2", bad, "2", "2"})
		require.Error(t, err, bad)
		assert.Contains(t, err.Error(), "A_COLUMNS")
	}
}

func TestNoFlagsPrintsNothing(t *testing.T) {
	out, err := execute(t, "4", "4", "4", "4")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestOutputOrder(t *testing.T) {
	out, err := execute(t, "5", "3", "3", "2", "-t", "-n", "-p", "--seed", "1")
	require.NoError(t, err)
	got := lines(out)
	require.Len(t, got, 6)
	for i, l := range got[:4] {
		d, err := strconv.ParseFloat(l, 64)
		require.NoError(t, err, "line %d", i)
		assert.GreaterOrEqual(t, d, 0.0)
	}
	low, err := strconv.ParseFloat(got[4], 64)
	require.NoError(t, err)
	high, err := strconv.ParseFloat(got[5], 64)
	require.NoError(t, err)
	assert.LessOrEqual(t, -low, 1e-3)
	assert.LessOrEqual(t, high, 1e-3)
}

func TestVerboseLabels(t *testing.T) {
	out, err := execute(t, "2", "2", "2", "2", "-tvp", "--naive", "--type", "int")
	require.NoError(t, err)
	got := lines(out)
	require.Len(t, got, 5)
	assert.True(t, strings.HasPrefix(got[0], "Buffer copy time onto device: "), got[0])
	assert.True(t, strings.HasPrefix(got[1], "Matrix multiplication execution time: "), got[1])
	assert.Equal(t, "Accuracy lower bound: 0", got[3])
	assert.Equal(t, "Accuracy higher bound: 0", got[4])
}

func TestSentenceCase(t *testing.T) {
	c := cases.Title(language.English)
	assert.Equal(t, "Buffer copy time off device", sentenceCase(c, "buffer copy time off device"))
	assert.Equal(t, "Accuracy", sentenceCase(c, "accuracy"))
}

func TestNaiveIgnoresWorkGroups(t *testing.T) {
	out, err := execute(t, "4", "3", "3", "5", "-p", "--naive", "--work-groups", "12")
	require.NoError(t, err)
	require.Len(t, lines(out), 2)
}

func TestJobs(t *testing.T) {
	out, err := execute(t, "8", "8", "8", "8", "-p", "--jobs", "3", "--work-groups", "4")
	require.NoError(t, err)
	got := lines(out)
	require.Len(t, got, 6)
	assert.True(t, strings.HasPrefix(got[0], "job 0: "))
	assert.True(t, strings.HasPrefix(got[5], "job 2: "))
}

func TestInvalidInvocations(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
		want error
	}{
		{"incompatible", []string{"3", "4", "5", "6"}, matmul.ErrIncompatibleDimensions},
		{"tiled int", []string{"2", "2", "2", "2", "--type", "int"}, matmul.ErrUnsupportedType},
		{"bad type", []string{"2", "2", "2", "2", "--naive", "--type", "double"}, matmul.ErrUnsupportedType},
		{"work groups", []string{"2", "2", "2", "2", "--work-groups", "3"}, matmul.ErrInvalidOption},
		{"missing kernels", []string{"2", "2", "2", "2", "--kernels", t.TempDir()}, kernels.ErrNoProgram},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, tc.args...)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := execute(t, "2", "2", "2")
	require.Error(t, err)
	_, err = execute(t, "2", "2", "2", "2", "--jobs", "0")
	require.Error(t, err)
}
