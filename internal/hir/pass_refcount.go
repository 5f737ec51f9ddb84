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
    mapset `github.com/deckarep/golang-set/v2`
    `github.com/oleiade/lane`
)

// RefcountInsertion materializes the ownership discipline as explicit
// Incref and Decref instructions. The model:
//
//   - every definition of a managed value owns one reference;
//   - ordinary uses borrow; Return consumes its operand;
//   - a phi takes over the reference of whichever operand flowed in;
//   - storing into an attribute creates a heap reference, paid for with
//     an Incref before the store;
//   - a reference not consumed by the end of its live range is released
//     with a Decref after its last use, or at the top of the successor
//     on edges where the value goes dead.
//
// Values of primitive type and constants of immortal objects take no part.
// Releases placed at the top of a block must fire on exactly one incoming
// edge, so the pass first splits every critical edge with an empty block.
//
// Any Incref/Decref already present is stripped first, so the pass is a
// recomputation, not an increment.
type RefcountInsertion struct{}

func (self *RefcountInsertion) Name() string {
    return "RefcountInsertion"
}

type _CrEdge struct {
    to   *BasicBlock
    from *BasicBlock
}

// splitCriticalEdges inserts an empty block on every edge that goes from a
// block with more than one outedge to a block with more than one inedge.
func (self *RefcountInsertion) splitCriticalEdges(fn *Function) {
    var edges []_CrEdge

    /* find all critical edges */
    for _, bb := range fn.Blocks() {
        if len(bb.Pred) > 1 {
            for _, p := range bb.Pred {
                if len(p.Term.Successors()) > 1 {
                    edges = append(edges, _CrEdge {
                        to   : bb,
                        from : p,
                    })
                }
            }
        }
    }

    /* insert an empty block between the edges */
    for _, e := range edges {
        mid := fn.NewBlock()
        mid.Term = &IrBranch{To: e.to}
        mid.Pred = []*BasicBlock{e.from}

        /* redirect one terminator edge */
        switch t := e.from.Term.(type) {
            case *IrBranch: {
                t.To = mid
            }

            case *IrCondBranch: {
                if t.T == e.to {
                    t.T = mid
                } else {
                    t.F = mid
                }
            }
        }

        /* update the predecessor back-reference */
        for i, p := range e.to.Pred {
            if p == e.from {
                e.to.Pred[i] = mid
                break
            }
        }

        /* phi operands now arrive through the new block */
        for _, p := range e.to.Phi {
            if r, ok := p.V[e.from]; ok {
                p.V[mid] = r
                delete(p.V, e.from)
            }
        }
    }
}

func (self *RefcountInsertion) Run(fn *Function) {
    self.splitCriticalEdges(fn)
    blocks := fn.Blocks()

    /* strip previous ownership ops */
    for _, bb := range blocks {
        ins := bb.Ins[:0]
        for _, v := range bb.Ins {
            switch v.(type) {
                case *IrIncref : break
                case *IrDecref : break
                default        : ins = append(ins, v)
            }
        }
        bb.Ins = ins
    }

    defs := fn.defs()
    managed := func(r Reg) bool { return self.managed(fn, defs, r) }

    /* per-block upward-exposed uses and definitions, managed values only */
    gen := make(map[int]mapset.Set[Reg], len(blocks))
    kill := make(map[int]mapset.Set[Reg], len(blocks))
    for _, bb := range blocks {
        g := mapset.NewThreadUnsafeSet[Reg]()
        k := mapset.NewThreadUnsafeSet[Reg]()
        for _, p := range bb.Phi {
            if managed(p.R) {
                k.Add(p.R)
            }
        }
        visit := func(v Instr) {
            if use, ok := v.(IrUsages); ok {
                for _, r := range use.Usages() {
                    if managed(*r) && !k.Contains(*r) {
                        g.Add(*r)
                    }
                }
            }
            if def, ok := v.(IrDefinitions); ok {
                for _, r := range def.Definitions() {
                    if managed(*r) {
                        k.Add(*r)
                    }
                }
            }
        }
        for _, v := range bb.Ins {
            visit(v)
        }
        visit(bb.Term)
        gen[bb.Id] = g
        kill[bb.Id] = k
    }

    /* backward liveness to fixpoint */
    liveIn := make(map[int]mapset.Set[Reg], len(blocks))
    liveOut := make(map[int]mapset.Set[Reg], len(blocks))
    for _, bb := range blocks {
        liveIn[bb.Id] = mapset.NewThreadUnsafeSet[Reg]()
        liveOut[bb.Id] = mapset.NewThreadUnsafeSet[Reg]()
    }
    queue := lane.NewQueue()
    queued := make(map[int]bool, len(blocks))
    for i := len(blocks) - 1; i >= 0; i-- {
        queue.Enqueue(blocks[i])
        queued[blocks[i].Id] = true
    }
    for !queue.Empty() {
        bb := queue.Dequeue().(*BasicBlock)
        queued[bb.Id] = false
        out := mapset.NewThreadUnsafeSet[Reg]()
        for _, s := range bb.Term.Successors() {
            out = out.Union(liveIn[s.Id])
            out = out.Union(self.edgeUses(bb, s, managed))
        }
        liveOut[bb.Id] = out
        in := gen[bb.Id].Union(out.Difference(kill[bb.Id]))
        if in.Equal(liveIn[bb.Id]) {
            continue
        }
        liveIn[bb.Id] = in
        for _, p := range bb.Pred {
            if !queued[p.Id] {
                queue.Enqueue(p)
                queued[p.Id] = true
            }
        }
    }

    /* rewrite every block; top-of-block releases from edge deaths are
     * collected first and applied in one final sweep */
    atTop := make(map[int][]Reg)
    for _, bb := range blocks {
        self.rewriteBlock(fn, bb, managed, liveIn, liveOut, atTop)
    }
    for _, bb := range blocks {
        rs := atTop[bb.Id]
        ins := make([]Instr, 0, len(rs) + len(bb.Ins))
        for _, r := range rs {
            ins = append(ins, &IrDecref{V: r})
        }
        bb.Ins = append(ins, bb.Ins...)
    }
}

// managed reports whether r is subject to the ownership discipline.
func (self *RefcountInsertion) managed(fn *Function, defs map[Reg]Instr, r Reg) bool {
    t := fn.Env.TypeOf(r)
    if !t.RefKinded() {
        return false
    }
    if o := t.Object(); o != nil && o.Immortal() {
        return false
    }
    if p, ok := defs[r].(*IrLoadConst); ok && p.V.Immortal() {
        return false
    }
    return true
}

// edgeUses is the set of managed values the phis of s take over on the
// edge from bb.
func (self *RefcountInsertion) edgeUses(bb *BasicBlock, s *BasicBlock, managed func(Reg) bool) mapset.Set[Reg] {
    ret := mapset.NewThreadUnsafeSet[Reg]()
    for _, p := range s.Phi {
        if r, ok := p.V[bb]; ok && managed(*r) {
            ret.Add(*r)
        }
    }
    return ret
}

func (self *RefcountInsertion) rewriteBlock(
    fn      *Function,
    bb      *BasicBlock,
    managed func(Reg) bool,
    liveIn  map[int]mapset.Set[Reg],
    liveOut map[int]mapset.Set[Reg],
    atTop   map[int][]Reg,
) {
    out := liveOut[bb.Id]

    /* last use and definition positions within the body */
    lastUse := make(map[Reg]int)
    defAt := make(map[Reg]int)
    for _, p := range bb.Phi {
        if managed(p.R) {
            defAt[p.R] = -1
        }
    }
    for i, v := range bb.Ins {
        if use, ok := v.(IrUsages); ok {
            for _, r := range use.Usages() {
                if managed(*r) {
                    lastUse[*r] = i
                }
            }
        }
        if def, ok := v.(IrDefinitions); ok {
            for _, r := range def.Definitions() {
                if managed(*r) {
                    defAt[*r] = i
                }
            }
        }
    }

    /* terminator uses count as the last position of the block */
    if use, ok := bb.Term.(IrUsages); ok {
        for _, r := range use.Usages() {
            if managed(*r) {
                lastUse[*r] = len(bb.Ins)
            }
        }
    }

    /* Return consumes the reference it hands back */
    consumed := Rnone
    if p, ok := bb.Term.(*IrReturn); ok && managed(p.V) {
        consumed = p.V
    }

    /* releases for values whose live range ends in this block */
    release := make(map[int][]Reg)
    for r := range defAt {
        if !out.Contains(r) && r != consumed {
            pos, ok := lastUse[r]
            if !ok {
                pos = defAt[r]
            }
            release[pos] = append(release[pos], r)
        }
    }
    liveIn[bb.Id].Each(func(r Reg) bool {
        if _, ok := defAt[r]; ok {
            return false
        }
        if !out.Contains(r) && r != consumed {
            if pos, ok := lastUse[r]; ok {
                release[pos] = append(release[pos], r)
            } else {
                release[-1] = append(release[-1], r)
            }
        }
        return false
    })

    /* references transferred into successor phis beyond the one this
     * block owns must be funded before the branch */
    funding := make([]Reg, 0)
    for _, s := range bb.Term.Successors() {
        takes := make(map[Reg]int)
        for _, p := range s.Phi {
            if r, ok := p.V[bb]; ok && managed(*r) {
                takes[*r]++
            }
        }
        for r, n := range takes {
            extra := n - 1
            if liveIn[s.Id].Contains(r) {
                extra++
            }
            for i := 0; i < extra; i++ {
                funding = append(funding, r)
            }
        }

        /* values reaching the edge but dead across it are released at
         * the top of the successor */
        edge := liveIn[s.Id].Union(self.edgeUses(bb, s, managed))
        out.Difference(edge).Each(func(r Reg) bool {
            atTop[s.Id] = append(atTop[s.Id], r)
            return false
        })
    }

    /* rebuild the body */
    ins := make([]Instr, 0, len(bb.Ins))
    for _, r := range release[-1] {
        ins = append(ins, &IrDecref{V: r})
    }
    for i, v := range bb.Ins {
        if p, ok := v.(*IrSetAttr); ok && managed(p.V) {
            ins = append(ins, &IrIncref{V: p.V})
        }
        ins = append(ins, v)
        for _, r := range release[i] {
            ins = append(ins, &IrDecref{V: r})
        }
    }
    /* values last read by the terminator itself cannot be released ahead
     * of it; release them at the top of every successor instead (one per
     * path, each successor has a single predecessor after edge splitting) */
    for _, r := range release[len(bb.Ins)] {
        for _, s := range bb.Term.Successors() {
            atTop[s.Id] = append(atTop[s.Id], r)
        }
    }
    for _, r := range funding {
        ins = append(ins, &IrIncref{V: r})
    }
    bb.Ins = ins
}
