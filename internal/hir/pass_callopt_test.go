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

func TestCallOptimization_ConstructorCall(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadConst<Point>
    v1 = LoadArg<0>
    v2 = VectorCall v0 (v1)
    Return v2
  }
}
`)
    runPass(t, fn, new(CallOptimization))

    require.Equal(t, "v2 = CallStatic<Point> (v1)", fn.Entry.Ins[2].String())
    require.Equal(t, "UserExact[Point]", fn.Env.TypeOf(2).String())
}

func TestCallOptimization_UnknownCalleeUntouched(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadArg<0>
    v1 = LoadArg<1>
    v2 = VectorCall v0 (v1)
    v3 = LoadConst<len>
    v4 = VectorCall v3 (v1)
    Return v2
  }
}
`)
    runPass(t, fn, new(CallOptimization))

    /* a dynamic callee and a builtin function are not constructors */
    require.IsType(t, &IrVectorCall{}, fn.Entry.Ins[2])
    require.IsType(t, &IrVectorCall{}, fn.Entry.Ins[4])
}
