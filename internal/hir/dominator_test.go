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

    `github.com/dmitryvinn/cinder/internal/rt`
)

func TestDominatorTree_Diamond(t *testing.T) {
    fn, err := ParseFunc("test", `
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
    Return v0
  }
}
`)
    require.NoError(t, err)

    blocks := make(map[int]*BasicBlock, 4)
    for _, bb := range fn.Blocks() {
        blocks[bb.Id] = bb
    }

    dom := BuildDominatorTree(fn.Entry)
    require.Equal(t, blocks[0], dom.DominatedBy[1])
    require.Equal(t, blocks[0], dom.DominatedBy[2])
    require.Equal(t, blocks[0], dom.DominatedBy[3])

    require.True(t, dom.Dominates(blocks[0], blocks[3]))
    require.True(t, dom.Dominates(blocks[3], blocks[3]))
    require.False(t, dom.Dominates(blocks[1], blocks[3]))
    require.False(t, dom.Dominates(blocks[3], blocks[0]))
}

func TestCheckFunc_Violations(t *testing.T) {
    fn, err := ParseFunc("test", `
fun test {
  bb 0 {
    v0 = LoadConst<1>
    Return v0
  }
}
`)
    require.NoError(t, err)
    require.NotPanics(t, func() { CheckFunc(fn) })

    /* double definition */
    fn.Entry.Append(&IrLoadConst{R: 0, V: rt.NewLong(2)})
    require.Panics(t, func() { CheckFunc(fn) })
}

func TestCheckFunc_UseWithoutDef(t *testing.T) {
    fn := NewFunction("test")
    fn.Entry.TermReturn(fn.Env.AllocReg())
    require.Panics(t, func() { CheckFunc(fn) })
}
