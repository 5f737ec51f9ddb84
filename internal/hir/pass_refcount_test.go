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

// walkPath symbolically executes one control-flow path and returns the
// outstanding reference count per register at its end: +1 for defining a
// managed value or an Incref, -1 for a Decref, transfer through phis,
// consumption by Return.
func walkPath(t *testing.T, fn *Function, ids ...int) map[Reg]int {
    counts := make(map[Reg]int)
    defs := fn.defs()
    ref := new(RefcountInsertion)
    managed := func(r Reg) bool { return ref.managed(fn, defs, r) }

    var prev *BasicBlock
    for _, id := range ids {
        bb := blockById(t, fn, id)

        /* phis take over the reference arriving on the taken edge */
        for _, p := range bb.Phi {
            require.NotNil(t, prev, "phi in path entry block")
            r, ok := p.V[prev]
            require.True(t, ok, "phi has no operand for taken edge")
            if managed(*r) {
                counts[*r]--
            }
            if managed(p.R) {
                counts[p.R]++
            }
        }

        for _, v := range bb.Ins {
            switch p := v.(type) {
                case *IrIncref: {
                    counts[p.V]++
                }

                case *IrDecref: {
                    counts[p.V]--
                    require.GreaterOrEqual(t, counts[p.V], 0, "released more than owned: %s", p.V)
                }

                case *IrSetAttr: {
                    /* the store consumes the reference the Incref added */
                    if managed(p.V) {
                        counts[p.V]--
                    }
                }

                default: {
                    if def, ok := v.(IrDefinitions); ok {
                        for _, r := range def.Definitions() {
                            if managed(*r) {
                                counts[*r]++
                            }
                        }
                    }
                }
            }
        }

        if p, ok := bb.Term.(*IrReturn); ok && managed(p.V) {
            counts[p.V]--
        }
        prev = bb
    }
    return counts
}

func requireBalanced(t *testing.T, counts map[Reg]int) {
    for r, n := range counts {
        require.Zero(t, n, "unbalanced references for %s", r)
    }
}

func TestRefcountInsertion_Linear(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadArg<0>
    v1 = LoadAttr<x> v0
    Return v1
  }
}
`)
    runPass(t, fn, new(RefcountInsertion))

    require.Equal(t, "v0 = LoadArg<0>", fn.Entry.Ins[0].String())
    require.Equal(t, "v1 = LoadAttr<x> v0", fn.Entry.Ins[1].String())
    require.Equal(t, "Decref v0", fn.Entry.Ins[2].String())
    requireBalanced(t, walkPath(t, fn, 0))
}

func TestRefcountInsertion_ImmortalExempt(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadConst<None>
    v1 = LoadConst<5>
    v2 = LoadConst<1000>
    Return v0
  }
}
`)
    runPass(t, fn, new(RefcountInsertion))

    /* None and small ints are immortal, the big int is not */
    for _, v := range fn.Entry.Ins {
        if p, ok := v.(*IrDecref); ok {
            require.Equal(t, Reg(2), p.V)
        }
    }
    requireBalanced(t, walkPath(t, fn, 0))
}

func TestRefcountInsertion_StoreIncref(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadArg<0>
    v1 = LoadArg<1>
    SetAttr<x> v0 v1
    v2 = LoadConst<None>
    Return v2
  }
}
`)
    runPass(t, fn, new(RefcountInsertion))

    require.Equal(t, "Incref v1", fn.Entry.Ins[2].String())
    require.Equal(t, "SetAttr<x> v0 v1", fn.Entry.Ins[3].String())
    requireBalanced(t, walkPath(t, fn, 0))
}

func TestRefcountInsertion_DiamondWithPhi(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadArg<0>
    v1 = LoadArg<1>
    v2 = CompareBool<Lt> v0 v1
    CondBranch v2 bb1 bb2
  }
  bb 1 {
    v3 = LoadAttr<x> v0
    Branch bb3
  }
  bb 2 {
    v4 = LoadAttr<y> v1
    Branch bb3
  }
  bb 3 (preds 1, 2) {
    v5 = Phi bb1:v3 bb2:v4
    Return v5
  }
}
`)
    runPass(t, fn, new(RefcountInsertion))

    requireBalanced(t, walkPath(t, fn, 0, 1, 3))
    requireBalanced(t, walkPath(t, fn, 0, 2, 3))
}

func TestRefcountInsertion_OperandLiveAfterPhi(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadArg<0>
    v1 = LoadArg<1>
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
    v3 = Phi bb1:v0 bb2:v1
    SetAttr<x> v3 v0
    v4 = LoadConst<None>
    Return v4
  }
}
`)
    runPass(t, fn, new(RefcountInsertion))

    requireBalanced(t, walkPath(t, fn, 0, 1, 3))
    requireBalanced(t, walkPath(t, fn, 0, 2, 3))
}

func TestRefcountInsertion_CriticalEdgeSplit(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadArg<0>
    v1 = LoadAttr<x> v0
    v2 = IsTruthy v1
    CondBranch v2 bb1 bb2
  }
  bb 1 {
    v3 = LoadAttr<y> v1
    Branch bb2
  }
  bb 2 (preds 0, 1) {
    v4 = LoadConst<None>
    Return v4
  }
}
`)
    runPass(t, fn, new(RefcountInsertion))

    /* the edge bb0 -> bb2 is critical and gets its own block, so the
     * release of v1 on the fallthrough path cannot also fire after the
     * path through bb1 already released it */
    require.Len(t, fn.Blocks(), 4)
    for _, v := range blockById(t, fn, 2).Ins {
        require.NotEqual(t, "Decref v1", v.String())
    }
    requireBalanced(t, walkPath(t, fn, 0, 1, 2))
    requireBalanced(t, walkPath(t, fn, 0, 3, 2))
}

func TestRefcountInsertion_BranchOnManagedValue(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadArg<0>
    CondBranch v0 bb1 bb2
  }
  bb 1 {
    v1 = LoadConst<None>
    Return v1
  }
  bb 2 {
    v2 = LoadConst<None>
    Return v2
  }
}
`)
    runPass(t, fn, new(RefcountInsertion))

    /* the branch still reads v0, its release moves past it into each
     * successor */
    require.Len(t, fn.Entry.Ins, 1)
    require.Equal(t, "Decref v0", blockById(t, fn, 1).Ins[0].String())
    require.Equal(t, "Decref v0", blockById(t, fn, 2).Ins[0].String())
    requireBalanced(t, walkPath(t, fn, 0, 1))
    requireBalanced(t, walkPath(t, fn, 0, 2))
}

func TestRefcountInsertion_Recomputation(t *testing.T) {
    fn := parseForTest(t, `
fun test {
  bb 0 {
    v0 = LoadArg<0>
    v1 = LoadAttr<x> v0
    Return v1
  }
}
`)
    runPass(t, fn, new(RefcountInsertion))
    once := PrintFunc(fn)
    runPass(t, fn, new(RefcountInsertion))
    require.Equal(t, once, PrintFunc(fn))
}
