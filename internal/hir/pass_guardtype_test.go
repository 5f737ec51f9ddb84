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

func TestGuardTypeRemoval_RedundantGuard(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadArg<0>
    v1 = GuardType<User[Point]> v0
    v2 = GuardType<User[Point]> v1
    Return v2
  }
}
`)
    runPass(t, fn, new(GuardTypeRemoval))

    require.IsType(t, &IrGuardType{}, fn.Entry.Ins[1])
    require.Equal(t, "v2 = Assign v1", fn.Entry.Ins[2].String())
}

func TestGuardTypeRemoval_DominatingGuardAcrossBlocks(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadArg<0>
    v1 = GuardType<User[Point]> v0
    v2 = LoadConst<1>
    v3 = CompareBool<Lt> v2 v2
    CondBranch v3 bb1 bb2
  }
  bb 1 {
    v4 = GuardType<User[Point]> v0
    v5 = LoadAttr<x> v4
    Return v5
  }
  bb 2 {
    v6 = LoadConst<None>
    Return v6
  }
}
`)
    runPass(t, fn, new(GuardTypeRemoval))

    require.Equal(t, "v4 = Assign v0", blockById(t, fn, 1).Ins[0].String())
}

func TestGuardTypeRemoval_UnprovenGuardStays(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadArg<0>
    v1 = GuardType<User[Point]> v0
    v2 = GuardType<User[Point3D]> v1
    Return v2
  }
}
`)
    runPass(t, fn, new(GuardTypeRemoval))

    require.IsType(t, &IrGuardType{}, fn.Entry.Ins[1])
    require.IsType(t, &IrGuardType{}, fn.Entry.Ins[2])
}

func TestGuardTypeRemoval_StaticTypeProof(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadConst<5>
    v1 = GuardType<Long> v0
    Return v1
  }
}
`)
    runPass(t, fn, new(GuardTypeRemoval))
    require.Equal(t, "v1 = Assign v0", fn.Entry.Ins[1].String())
}
