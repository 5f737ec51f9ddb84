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

func TestDynamicComparisonElimination_CompareBranch(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadArg<0>
    v1 = LoadArg<1>
    v2 = Compare<Lt> v0 v1
    v3 = IsTruthy v2
    CondBranch v3 bb1 bb2
  }
  bb 1 {
    v4 = LoadConst<1>
    Return v4
  }
  bb 2 {
    v5 = LoadConst<2>
    Return v5
  }
}
`)
    runPass(t, fn, new(DynamicComparisonElimination))

    require.Len(t, fn.Entry.Ins, 3)
    require.Equal(t, "v3 = CompareBool<Lt> v0 v1", fn.Entry.Ins[2].String())
    require.Equal(t, TCBool, fn.Env.TypeOf(3))
}

func TestDynamicComparisonElimination_IsInstanceCall(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadArg<0>
    v1 = LoadConst<isinstance>
    v2 = LoadConst<int>
    v3 = VectorCall v1 (v0, v2)
    v4 = IsTruthy v3
    CondBranch v4 bb1 bb2
  }
  bb 1 {
    v5 = LoadConst<1>
    Return v5
  }
  bb 2 {
    v6 = LoadConst<2>
    Return v6
  }
}
`)
    runPass(t, fn, new(DynamicComparisonElimination))

    require.Len(t, fn.Entry.Ins, 4)
    require.Equal(t, "v4 = IsInstance v0 v2", fn.Entry.Ins[3].String())
}

func TestDynamicComparisonElimination_OtherCalleeUntouched(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadArg<0>
    v1 = LoadConst<len>
    v2 = LoadConst<int>
    v3 = VectorCall v1 (v0, v2)
    v4 = IsTruthy v3
    CondBranch v4 bb1 bb2
  }
  bb 1 {
    v5 = LoadConst<1>
    Return v5
  }
  bb 2 {
    v6 = LoadConst<2>
    Return v6
  }
}
`)
    runPass(t, fn, new(DynamicComparisonElimination))
    require.IsType(t, &IrVectorCall{}, fn.Entry.Ins[3])
    require.IsType(t, &IrIsTruthy{}, fn.Entry.Ins[4])
}

func TestDynamicComparisonElimination_MultiUseUntouched(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadArg<0>
    v1 = LoadArg<1>
    v2 = Compare<Lt> v0 v1
    v3 = IsTruthy v2
    CondBranch v3 bb1 bb2
  }
  bb 1 {
    Return v2
  }
  bb 2 {
    v4 = LoadConst<2>
    Return v4
  }
}
`)
    runPass(t, fn, new(DynamicComparisonElimination))

    /* the boxed comparison result escapes into another block, so the
     * rewrite must not fire */
    require.IsType(t, &IrCompare{}, fn.Entry.Ins[2])
    require.IsType(t, &IrIsTruthy{}, fn.Entry.Ins[3])
}
