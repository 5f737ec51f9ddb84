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

// Environment allocates and owns every Register of one Function, and
// records the statically inferred type of each.
type Environment struct {
    nreg  uint32
    types map[Reg]Type
}

func NewEnvironment() *Environment {
    return &Environment {
        types: make(map[Reg]Type),
    }
}

// AllocReg returns a fresh register, unique within the function.
func (self *Environment) AllocReg() Reg {
    r := Reg(self.nreg)
    self.nreg++
    return r
}

// AllocTypedReg returns a fresh register carrying the given type.
func (self *Environment) AllocTypedReg(t Type) Reg {
    r := self.AllocReg()
    self.types[r] = t
    return r
}

// Reserve makes every register up to and including r allocated, so that
// the parser can materialize registers in source order.
func (self *Environment) Reserve(r Reg) {
    if uint32(r) >= self.nreg {
        self.nreg = uint32(r) + 1
    }
}

// TypeOf returns the static type of r, Top when nothing is known.
func (self *Environment) TypeOf(r Reg) Type {
    if t, ok := self.types[r]; ok {
        return t
    }
    return TTop
}

func (self *Environment) SetType(r Reg, t Type) {
    self.types[r] = t
}

func (self *Environment) NumRegs() int {
    return int(self.nreg)
}

// Function owns an Environment, an entry block and every block reachable
// from it. It is created once, mutated in place by passes, and consumed
// once by the back-end.
type Function struct {
    Name    string
    Env     *Environment
    Entry   *BasicBlock
    nextBid int
}

func NewFunction(name string) *Function {
    fn := &Function {
        Name: name,
        Env:  NewEnvironment(),
    }
    fn.Entry = fn.NewBlock()
    return fn
}

// NewBlock allocates a block with a function-unique ID. The block takes
// part in the CFG once an edge or the entry pointer reaches it.
func (self *Function) NewBlock() *BasicBlock {
    bb := &BasicBlock{Id: self.nextBid}
    self.nextBid++
    return bb
}

// ReserveBlockId makes every block ID up to and including id allocated.
func (self *Function) ReserveBlockId(id int) {
    if id >= self.nextBid {
        self.nextBid = id + 1
    }
}

// Blocks returns every reachable block in reverse post-order, entry first.
func (self *Function) Blocks() []*BasicBlock {
    return newBasicBlockIter(self.Entry).ReversePostOrder()
}

// defs maps every register to its defining instruction.
func (self *Function) defs() map[Reg]Instr {
    ret := make(map[Reg]Instr, self.Env.NumRegs())
    for _, bb := range self.Blocks() {
        bb.eachInstr(func(v Instr) {
            if def, ok := v.(IrDefinitions); ok {
                for _, r := range def.Definitions() {
                    ret[*r] = v
                }
            }
        })
    }
    return ret
}

// useCount maps every register to the number of operand slots reading it.
func (self *Function) useCount() map[Reg]int {
    ret := make(map[Reg]int, self.Env.NumRegs())
    for _, bb := range self.Blocks() {
        bb.eachUsage(func(r *Reg) {
            ret[*r]++
        })
    }
    return ret
}

// replaceUses rewrites every operand slot reading from with to, across the
// whole function.
func (self *Function) replaceUses(from Reg, to Reg) {
    for _, bb := range self.Blocks() {
        bb.eachUsage(func(r *Reg) {
            if *r == from {
                *r = to
            }
        })
    }
}
