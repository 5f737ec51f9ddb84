/*
 * Copyright 2023 The Cinder Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package hir

import (
    `testing`

    `github.com/stretchr/testify/require`
)

func TestPhiElimination_TrivialPhi(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadArg<0>
    v1 = LoadConst<1>
    v2 = CompareBool<Lt> v0 v1
    CondBranch v2 bb1 bb2
  }
  bb 1 {
    Branch bb3
  }
  bb 2 {
    Branch bb3
  }
  bb 3 (preds 1, 2) {
    v3 = Phi bb1:v0 bb2:v0
    Return v3
  }
}
`)
    runPass(t, fn, new(PhiElimination))

    blocks := fn.Blocks()
    merge := blocks[len(blocks) - 1]
    require.Empty(t, merge.Phi)
    require.Equal(t, "Return v0", merge.Term.String())
}

func TestPhiElimination_NonTrivialPhiStays(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadArg<0>
    v1 = LoadConst<1>
    v2 = CompareBool<Lt> v0 v1
    CondBranch v2 bb1 bb2
  }
  bb 1 {
    v3 = LoadConst<10>
    Branch bb3
  }
  bb 2 {
    v4 = LoadConst<20>
    Branch bb3
  }
  bb 3 (preds 1, 2) {
    v5 = Phi bb1:v3 bb2:v4
    Return v5
  }
}
`)
    runPass(t, fn, new(PhiElimination))

    blocks := fn.Blocks()
    merge := blocks[len(blocks) - 1]
    require.Len(t, merge.Phi, 1)
    require.Equal(t, "Return v5", merge.Term.String())
}

func TestPhiElimination_CascadingRemoval(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadArg<0>
    v1 = LoadConst<1>
    v2 = CompareBool<Lt> v0 v1
    CondBranch v2 bb1 bb2
  }
  bb 1 {
    Branch bb3
  }
  bb 2 {
    Branch bb3
  }
  bb 3 (preds 1, 2) {
    v3 = Phi bb1:v0 bb2:v0
    v4 = CompareBool<Lt> v3 v1
    CondBranch v4 bb4 bb5
  }
  bb 4 {
    Branch bb6
  }
  bb 5 {
    Branch bb6
  }
  bb 6 (preds 4, 5) {
    v5 = Phi bb4:v3 bb5:v3
    Return v5
  }
}
`)
    runPass(t, fn, new(PhiElimination))

    for _, bb := range fn.Blocks() {
        require.Empty(t, bb.Phi)
    }
}
