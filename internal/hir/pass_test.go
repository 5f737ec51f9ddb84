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

func TestPassRegistry_MakePass(t *testing.T) {
    reg := NewPassRegistry()
    for _, name := range DefaultPassNames {
        p, err := reg.MakePass(name)
        require.NoError(t, err)
        require.Equal(t, name, p.Name())
    }

    _, err := reg.MakePass("NoSuchPass")
    require.Error(t, err)
}

func TestPassRegistry_FreshInstances(t *testing.T) {
    reg := NewPassRegistry()

    /* a stateful pass must not share its caches between pipelines; pointer
     * identity is only meaningful for passes with fields */
    a, err := reg.MakePass("DynamicComparisonElimination")
    require.NoError(t, err)
    b, err := reg.MakePass("DynamicComparisonElimination")
    require.NoError(t, err)
    require.NotSame(t, a, b)
}

func TestPassRegistry_DuplicateRegistration(t *testing.T) {
    reg := NewPassRegistry()
    require.Panics(t, func() {
        reg.Register(func() Pass { return new(Simplify) })
    })
}

func TestPipeline_RefcountMustRunLast(t *testing.T) {
    reg := NewPassRegistry()

    _, err := NewPipeline(reg, []string{"RefcountInsertion", "Simplify"})
    require.Error(t, err)

    _, err = NewPipeline(reg, []string{"Simplify", "RefcountInsertion"})
    require.NoError(t, err)

    _, err = NewPipeline(reg, []string{"Simplify", "NoSuchPass"})
    require.Error(t, err)
}

func TestPipeline_EndToEnd(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadConst<2>
    v1 = LoadConst<3>
    v2 = Compare<Lt> v0 v1
    v3 = IsTruthy v2
    CondBranch v3 bb1 bb2
  }
  bb 1 {
    v4 = LoadArg<0>
    v5 = LoadAttr<x> v4
    Return v5
  }
  bb 2 {
    v6 = LoadConst<None>
    Return v6
  }
}
`)
    NewDefaultPipeline().Run(fn)

    /* the branch condition folds to a constant; structure stays valid
     * and every block keeps its terminator */
    CheckFunc(fn)
    for _, bb := range fn.Blocks() {
        require.NotNil(t, bb.Term)
    }
}
