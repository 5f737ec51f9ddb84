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
    `strconv`
)

// BasicBlock is a straight-line instruction sequence ended by exactly one
// terminator. Pred back-references are relational indices kept symmetric
// with terminator successors; they never imply ownership.
type BasicBlock struct {
    Id   int
    Phi  []*IrPhi
    Ins  []Instr
    Pred []*BasicBlock
    Term IrTerminator
}

func (self *BasicBlock) addPred(bb *BasicBlock) {
    self.Pred = append(self.Pred, bb)
}

func (self *BasicBlock) removePred(bb *BasicBlock) {
    for i, p := range self.Pred {
        if p == bb {
            self.Pred = append(self.Pred[:i], self.Pred[i+1:]...)
            return
        }
    }
    panic("hir: predecessor does not exist: bb" + strconv.Itoa(bb.Id))
}

// TermBranch installs an unconditional branch terminator, updating both
// edge directions in one step.
func (self *BasicBlock) TermBranch(to *BasicBlock) {
    self.dropTerm()
    self.Term = &IrBranch{To: to}
    to.addPred(self)
}

// TermCondBranch installs a conditional branch terminator, updating both
// edge directions in one step.
func (self *BasicBlock) TermCondBranch(v Reg, t *BasicBlock, f *BasicBlock) {
    self.dropTerm()
    self.Term = &IrCondBranch{V: v, T: t, F: f}
    t.addPred(self)
    f.addPred(self)
}

// TermReturn installs a return terminator.
func (self *BasicBlock) TermReturn(v Reg) {
    self.dropTerm()
    self.Term = &IrReturn{V: v}
}

func (self *BasicBlock) dropTerm() {
    if self.Term == nil {
        return
    }
    for _, s := range self.Term.Successors() {
        s.removePred(self)
    }
    self.Term = nil
}

// Append adds a non-terminator instruction to the block body.
func (self *BasicBlock) Append(v Instr) {
    if _, ok := v.(IrTerminator); ok {
        panic("hir: terminators must be installed with a Term* helper")
    }
    if p, ok := v.(*IrPhi); ok {
        self.Phi = append(self.Phi, p)
    } else {
        self.Ins = append(self.Ins, v)
    }
}

// eachInstr visits Phis, body instructions and the terminator in order.
func (self *BasicBlock) eachInstr(fn func(Instr)) {
    for _, p := range self.Phi {
        fn(p)
    }
    for _, v := range self.Ins {
        fn(v)
    }
    if self.Term != nil {
        fn(self.Term)
    }
}

// eachUsage visits every operand slot in the block.
func (self *BasicBlock) eachUsage(fn func(*Reg)) {
    self.eachInstr(func(v Instr) {
        if use, ok := v.(IrUsages); ok {
            for _, r := range use.Usages() {
                fn(r)
            }
        }
    })
}
