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

// GuardTypeRemoval deletes runtime type checks that can never fail:
// either the static type of the guarded value already proves the guard, or
// a dominating guard on the same underlying value proves a type at least
// as narrow. Guards and copies forward the value they check, so "same
// value" means the same root after chasing those definitions. A removed
// guard degrades to a plain copy so downstream uses keep their register;
// CopyPropagation and DeadCodeElimination clean up after it.
type GuardTypeRemoval struct{}

type _GuardSite struct {
    g   *IrGuardType
    bb  *BasicBlock
    idx int
}

func (self *GuardTypeRemoval) Name() string {
    return "GuardTypeRemoval"
}

func (self *GuardTypeRemoval) Run(fn *Function) {
    dom := BuildDominatorTree(fn.Entry)
    defs := fn.defs()

    /* group guard sites by the underlying value they check */
    sites := make(map[Reg][]_GuardSite)
    for _, bb := range fn.Blocks() {
        for i, v := range bb.Ins {
            if g, ok := v.(*IrGuardType); ok {
                root := chaseValue(defs, g.V)
                sites[root] = append(sites[root], _GuardSite{g: g, bb: bb, idx: i})
            }
        }
    }

    /* degrade every provable guard to a copy */
    for _, group := range sites {
        for _, s := range group {
            if self.proven(fn, dom, group, s) {
                s.bb.Ins[s.idx] = &IrAssign{R: s.g.R, V: s.g.V}
            }
        }
    }
}

func (self *GuardTypeRemoval) proven(fn *Function, dom DominatorTree, group []_GuardSite, s _GuardSite) bool {
    /* static type already narrow enough */
    if fn.Env.TypeOf(s.g.V).Subtype(s.g.T) {
        return true
    }

    /* a dominating guard at least as narrow subsumes this one. The proof
     * survives even if the dominating guard is itself removed: removal
     * means it was proven in turn */
    for _, d := range group {
        if d.g != s.g && d.g.T.Subtype(s.g.T) && self.before(dom, d, s) {
            return true
        }
    }
    return false
}

// before reports whether guard a executes before guard b on every path
// reaching b.
func (self *GuardTypeRemoval) before(dom DominatorTree, a _GuardSite, b _GuardSite) bool {
    if a.bb != b.bb {
        return dom.Dominates(a.bb, b.bb)
    }
    return a.idx < b.idx
}

// chaseValue resolves a register to the root definition it forwards:
// copies and guards pass their operand through.
func chaseValue(defs map[Reg]Instr, r Reg) Reg {
    for {
        switch p := defs[r].(type) {
            case *IrAssign    : r = p.V
            case *IrGuardType : r = p.V
            default           : return r
        }
    }
}
