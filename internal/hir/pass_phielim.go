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

// PhiElimination removes phis whose every incoming value, ignoring
// self-references, is the same register, rewriting uses of the phi output
// to that register directly. Removing one phi can make another trivial, so
// the pass iterates to a fixpoint.
type PhiElimination struct{}

func (self *PhiElimination) Name() string {
    return "PhiElimination"
}

func (self *PhiElimination) Run(fn *Function) {
    for {
        if !self.removeTrivialPhis(fn) {
            break
        }
    }
}

func (self *PhiElimination) removeTrivialPhis(fn *Function) bool {
    changed := false
    for _, bb := range fn.Blocks() {
        phi := bb.Phi[:0]
        for _, p := range bb.Phi {
            if v, ok := trivialPhiValue(p); ok {
                fn.replaceUses(p.R, v)
                changed = true
            } else {
                phi = append(phi, p)
            }
        }
        bb.Phi = phi
    }
    return changed
}

// trivialPhiValue reports the single value a phi merges, when all of its
// non-self operands agree. A phi that only references itself is
// unreachable garbage and never matches.
func trivialPhiValue(p *IrPhi) (Reg, bool) {
    v := Rnone
    for _, r := range p.V {
        if *r == p.R {
            continue
        }
        if v != Rnone && v != *r {
            return Rnone, false
        }
        v = *r
    }
    return v, v != Rnone
}
