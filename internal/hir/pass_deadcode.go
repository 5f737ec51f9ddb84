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
    `github.com/oleiade/lane`
)

// DeadCodeElimination removes instructions whose results are never used
// and whose execution nobody can observe. Roots are the terminators and
// every instruction with an effect; liveness flows backwards through the
// operand slots of live instructions.
type DeadCodeElimination struct{}

func (self *DeadCodeElimination) Name() string {
    return "DeadCodeElimination"
}

func (self *DeadCodeElimination) Run(fn *Function) {
    defs := fn.defs()
    live := make(map[Instr]struct{})
    queue := lane.NewQueue()

    /* mark the roots */
    for _, bb := range fn.Blocks() {
        bb.eachInstr(func(v Instr) {
            if v.Effect() != EffectPure {
                queue.Enqueue(v)
            }
        })
    }

    /* flood liveness through operand slots */
    for !queue.Empty() {
        v := queue.Dequeue().(Instr)
        if _, ok := live[v]; ok {
            continue
        }
        live[v] = struct{}{}
        if use, ok := v.(IrUsages); ok {
            for _, r := range use.Usages() {
                if def, ok := defs[*r]; ok {
                    queue.Enqueue(def)
                }
            }
        }
    }

    /* sweep the dead, terminators always stay */
    for _, bb := range fn.Blocks() {
        phi := bb.Phi[:0]
        ins := bb.Ins[:0]
        for _, p := range bb.Phi {
            if _, ok := live[p]; ok {
                phi = append(phi, p)
            }
        }
        for _, v := range bb.Ins {
            if _, ok := live[v]; ok {
                ins = append(ins, v)
            }
        }
        bb.Phi = phi
        bb.Ins = ins
    }
}
