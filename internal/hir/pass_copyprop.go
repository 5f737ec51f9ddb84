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

// CopyPropagation replaces every use of a copied register with the
// original value. Copies are resolved transitively: a chain of Assigns
// collapses to its source in one run. The Assign instructions themselves
// stay in place, to be collected by DeadCodeElimination.
type CopyPropagation struct{}

func (self *CopyPropagation) Name() string {
    return "CopyPropagation"
}

func (self *CopyPropagation) Run(fn *Function) {
    copies := make(map[Reg]Reg)

    /* collect the copy bindings */
    for _, bb := range fn.Blocks() {
        for _, v := range bb.Ins {
            if p, ok := v.(*IrAssign); ok {
                copies[p.R] = p.V
            }
        }
    }

    /* nothing to propagate */
    if len(copies) == 0 {
        return
    }

    /* rewrite every use slot to the chain root, except the slot of the
     * Assign itself: the copy must keep reading its source */
    for _, bb := range fn.Blocks() {
        bb.eachInstr(func(v Instr) {
            if _, ok := v.(*IrAssign); ok {
                return
            }
            if use, ok := v.(IrUsages); ok {
                for _, r := range use.Usages() {
                    *r = resolvecopy(copies, *r)
                }
            }
        })
    }

    /* narrow types through the chains */
    for r := range copies {
        src := resolvecopy(copies, r)
        fn.Env.SetType(r, fn.Env.TypeOf(r).Meet(fn.Env.TypeOf(src)))
    }
}

// resolvecopy chases a copy chain to its root. SSA single-definition rules
// out cycles.
func resolvecopy(copies map[Reg]Reg, r Reg) Reg {
    for {
        src, ok := copies[r]
        if !ok {
            return r
        }
        r = src
    }
}
