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
    `fmt`

    `github.com/davecgh/go-spew/spew`
)

// fatal reports an IR invariant violation. A malformed function at this
// stage is a compiler defect, never a user error, so the process is not
// allowed to continue.
func fatal(fn *Function, format string, args ...interface{}) {
    msg := fmt.Sprintf(format, args...)
    panic(fmt.Sprintf("hir: corrupted IR in %q: %s\n%s", fn.Name, msg, spew.Sdump(fn.Entry)))
}

// CheckFunc verifies SSA well-formedness of fn: every register defined
// exactly once, exactly one terminator per block, Phi operands matching
// predecessor edges, and symmetric edge back-references. Any violation is
// fatal.
func CheckFunc(fn *Function) {
    blocks := fn.Blocks()
    inGraph := make(map[*BasicBlock]bool, len(blocks))
    defined := make(map[Reg]int, fn.Env.NumRegs())

    for _, bb := range blocks {
        inGraph[bb] = true
    }

    for _, bb := range blocks {
        /* invariant: exactly one terminator, nothing after it */
        if bb.Term == nil {
            fatal(fn, "bb%d has no terminator", bb.Id)
        }
        for _, v := range bb.Ins {
            if _, ok := v.(IrTerminator); ok {
                fatal(fn, "bb%d contains a terminator in its body", bb.Id)
            }
        }

        /* invariant: single definition per register */
        bb.eachInstr(func(v Instr) {
            if def, ok := v.(IrDefinitions); ok {
                for _, r := range def.Definitions() {
                    if defined[*r]++; defined[*r] > 1 {
                        fatal(fn, "%s is defined more than once", *r)
                    }
                }
            }
        })

        /* invariant: symmetric successor / predecessor edges */
        for _, s := range bb.Term.Successors() {
            if !predContains(s, bb) {
                fatal(fn, "bb%d -> bb%d edge has no back-reference", bb.Id, s.Id)
            }
        }
        for _, p := range bb.Pred {
            if !succContains(p, bb) {
                fatal(fn, "bb%d lists bb%d as predecessor without an edge", bb.Id, p.Id)
            }
            if !inGraph[p] {
                fatal(fn, "bb%d has unreachable predecessor bb%d", bb.Id, p.Id)
            }
        }

        /* invariant: one Phi operand per predecessor edge */
        for _, phi := range bb.Phi {
            if len(phi.V) != len(bb.Pred) {
                fatal(fn, "phi %s in bb%d has %d operands for %d predecessors", phi.R, bb.Id, len(phi.V), len(bb.Pred))
            }
            for src := range phi.V {
                if !predContains(bb, src) {
                    fatal(fn, "phi %s in bb%d names non-predecessor bb%d", phi.R, bb.Id, src.Id)
                }
            }
        }
    }

    /* invariant: every used register has a reachable definition */
    for _, bb := range blocks {
        bb.eachUsage(func(r *Reg) {
            if defined[*r] == 0 {
                fatal(fn, "%s is used in bb%d but never defined", *r, bb.Id)
            }
        })
    }
}

func predContains(bb *BasicBlock, p *BasicBlock) bool {
    for _, v := range bb.Pred {
        if v == p {
            return true
        }
    }
    return false
}

func succContains(bb *BasicBlock, s *BasicBlock) bool {
    for _, v := range bb.Term.Successors() {
        if v == s {
            return true
        }
    }
    return false
}
