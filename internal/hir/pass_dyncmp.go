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
    `github.com/dmitryvinn/cinder/internal/rt`
)

// DynamicComparisonElimination rewrites branch conditions that box an
// intermediate result into their primitive form. Two idioms are handled,
// both strictly within one block:
//
//   - a Compare whose boxed result is consumed by exactly one IsTruthy,
//     itself feeding the block terminator, becomes a single CompareBool;
//   - a VectorCall of the builtin isinstance consumed the same way
//     becomes an IsInstance.
//
// The builtin identity is resolved once per pass instance, on first use.
type DynamicComparisonElimination struct {
    inited     bool
    isinstance *rt.Object
}

func (self *DynamicComparisonElimination) Name() string {
    return "DynamicComparisonElimination"
}

func (self *DynamicComparisonElimination) isinstanceFunc() *rt.Object {
    if !self.inited {
        self.inited = true
        self.isinstance = rt.LookupBuiltin("isinstance")
    }
    return self.isinstance
}

func (self *DynamicComparisonElimination) Run(fn *Function) {
    uses := fn.useCount()
    for _, bb := range fn.Blocks() {
        self.rewriteBlock(fn, bb, uses)
    }
}

func (self *DynamicComparisonElimination) rewriteBlock(fn *Function, bb *BasicBlock, uses map[Reg]int) {
    cond, ok := bb.Term.(*IrCondBranch)
    if !ok {
        return
    }

    /* the condition must be a single-use IsTruthy defined here */
    ti := -1
    for i, v := range bb.Ins {
        if p, ok := v.(*IrIsTruthy); ok && p.R == cond.V {
            ti = i
            break
        }
    }
    if ti < 0 || uses[cond.V] != 1 {
        return
    }

    /* its operand must be produced in this block too, and feed nothing
     * else */
    truthy := bb.Ins[ti].(*IrIsTruthy)
    si := -1
    for i := 0; i < ti; i++ {
        if def, ok := bb.Ins[i].(IrDefinitions); ok && *def.Definitions()[0] == truthy.V {
            si = i
            break
        }
    }
    if si < 0 || uses[truthy.V] != 1 {
        return
    }

    switch p := bb.Ins[si].(type) {
        case *IrCompare: {
            bb.Ins[ti] = &IrCompareBool{R: truthy.R, Op: p.Op, X: p.X, Y: p.Y}
        }

        case *IrVectorCall: {
            if !self.isIsInstanceCall(fn, p) {
                return
            }
            bb.Ins[ti] = &IrIsInstance{R: truthy.R, V: p.Args[0], Cls: p.Args[1]}
        }

        default: {
            return
        }
    }

    /* drop the boxed producer and retype the condition */
    bb.Ins = append(bb.Ins[:si], bb.Ins[si+1:]...)
    fn.Env.SetType(truthy.R, TCBool)
}

// isIsInstanceCall reports whether a call is a 2-argument call of the
// builtin isinstance. The callee is matched by constant identity, not by
// name: a rebound name is not the builtin.
func (self *DynamicComparisonElimination) isIsInstanceCall(fn *Function, p *IrVectorCall) bool {
    if len(p.Args) != 2 {
        return false
    }
    callee := fn.Env.TypeOf(p.Fn).Object()
    return callee != nil && callee == self.isinstanceFunc()
}
