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
    `sort`
    `strings`

    `github.com/dmitryvinn/cinder/internal/rt`
)

// Reg is an SSA value handle. Registers are allocated by the Environment
// of the owning Function and are defined by exactly one instruction.
type Reg uint32

const Rnone = ^Reg(0)

func (self Reg) String() string {
    return fmt.Sprintf("v%d", uint32(self))
}

// Effect classifies an instruction for removability: pure instructions may
// be dropped when unused, may-raise and observable ones may not.
type Effect uint8

const (
    EffectPure Effect = iota
    EffectMayRaise
    EffectObservable
)

type Instr interface {
    fmt.Stringer
    Effect() Effect
    irnode()
}

func (*IrLoadConst)     irnode() {}
func (*IrLoadArg)       irnode() {}
func (*IrAssign)        irnode() {}
func (*IrBinaryOp)      irnode() {}
func (*IrCompare)       irnode() {}
func (*IrCompareBool)   irnode() {}
func (*IrIsTruthy)      irnode() {}
func (*IrIsInstance)    irnode() {}
func (*IrVectorCall)    irnode() {}
func (*IrCallStatic)    irnode() {}
func (*IrGuardType)     irnode() {}
func (*IrCheckNull)     irnode() {}
func (*IrLoadTupleItem) irnode() {}
func (*IrLoadAttr)      irnode() {}
func (*IrSetAttr)       irnode() {}
func (*IrIncref)        irnode() {}
func (*IrDecref)        irnode() {}
func (*IrPhi)           irnode() {}
func (*IrBranch)        irnode() {}
func (*IrCondBranch)    irnode() {}
func (*IrReturn)        irnode() {}

func (*IrLoadConst)     Effect() Effect { return EffectPure }
func (*IrLoadArg)       Effect() Effect { return EffectPure }
func (*IrAssign)        Effect() Effect { return EffectPure }
func (*IrBinaryOp)      Effect() Effect { return EffectMayRaise }
func (*IrCompare)       Effect() Effect { return EffectMayRaise }
func (*IrCompareBool)   Effect() Effect { return EffectPure }
func (*IrIsTruthy)      Effect() Effect { return EffectMayRaise }
func (*IrIsInstance)    Effect() Effect { return EffectPure }
func (*IrVectorCall)    Effect() Effect { return EffectObservable }
func (*IrCallStatic)    Effect() Effect { return EffectObservable }
func (*IrGuardType)     Effect() Effect { return EffectMayRaise }
func (*IrCheckNull)     Effect() Effect { return EffectMayRaise }
func (*IrLoadTupleItem) Effect() Effect { return EffectMayRaise }
func (*IrLoadAttr)      Effect() Effect { return EffectMayRaise }
func (*IrSetAttr)       Effect() Effect { return EffectObservable }
func (*IrIncref)        Effect() Effect { return EffectObservable }
func (*IrDecref)        Effect() Effect { return EffectObservable }
func (*IrPhi)           Effect() Effect { return EffectPure }
func (*IrBranch)        Effect() Effect { return EffectObservable }
func (*IrCondBranch)    Effect() Effect { return EffectObservable }
func (*IrReturn)        Effect() Effect { return EffectObservable }

// IrUsages exposes the operand slots of an instruction so that passes can
// rewrite uses in place.
type IrUsages interface {
    Instr
    Usages() []*Reg
}

// IrDefinitions exposes the output slots of an instruction.
type IrDefinitions interface {
    Instr
    Definitions() []*Reg
}

type IrTerminator interface {
    Instr
    Successors() []*BasicBlock
    irterminator()
}

func (*IrBranch)     irterminator() {}
func (*IrCondBranch) irterminator() {}
func (*IrReturn)     irterminator() {}

type IrLoadConst struct {
    R Reg
    V *rt.Object
}

func (self *IrLoadConst) String() string {
    return fmt.Sprintf("%s = LoadConst<%s>", self.R, self.V)
}

func (self *IrLoadConst) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrLoadArg struct {
    R  Reg
    Id int
}

func (self *IrLoadArg) String() string {
    return fmt.Sprintf("%s = LoadArg<%d>", self.R, self.Id)
}

func (self *IrLoadArg) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrAssign is a pure register copy, the sole subject of CopyPropagation.
type IrAssign struct {
    R Reg
    V Reg
}

func (self *IrAssign) String() string {
    return fmt.Sprintf("%s = Assign %s", self.R, self.V)
}

func (self *IrAssign) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrAssign) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type BinOp uint8

const (
    OpAdd BinOp = iota
    OpSub
    OpMul
    OpAnd
    OpOr
    OpXor
)

func (self BinOp) String() string {
    switch self {
        case OpAdd : return "Add"
        case OpSub : return "Sub"
        case OpMul : return "Mul"
        case OpAnd : return "And"
        case OpOr  : return "Or"
        case OpXor : return "Xor"
        default    : panic("hir: invalid binary op")
    }
}

type IrBinaryOp struct {
    R  Reg
    Op BinOp
    X  Reg
    Y  Reg
}

func (self *IrBinaryOp) String() string {
    return fmt.Sprintf("%s = BinaryOp<%s> %s %s", self.R, self.Op, self.X, self.Y)
}

func (self *IrBinaryOp) Usages() []*Reg {
    return []*Reg { &self.X, &self.Y }
}

func (self *IrBinaryOp) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type CmpOp uint8

const (
    CmpEq CmpOp = iota
    CmpNe
    CmpLt
    CmpLe
    CmpGt
    CmpGe
    CmpIs
)

func (self CmpOp) String() string {
    switch self {
        case CmpEq : return "Eq"
        case CmpNe : return "Ne"
        case CmpLt : return "Lt"
        case CmpLe : return "Le"
        case CmpGt : return "Gt"
        case CmpGe : return "Ge"
        case CmpIs : return "Is"
        default    : panic("hir: invalid compare op")
    }
}

// IrCompare is the generic dynamically dispatched comparison; it produces
// a boxed result.
type IrCompare struct {
    R  Reg
    Op CmpOp
    X  Reg
    Y  Reg
}

func (self *IrCompare) String() string {
    return fmt.Sprintf("%s = Compare<%s> %s %s", self.R, self.Op, self.X, self.Y)
}

func (self *IrCompare) Usages() []*Reg {
    return []*Reg { &self.X, &self.Y }
}

func (self *IrCompare) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrCompareBool is the specialized comparison producing a primitive truth
// value directly, with no boxing and no dynamic dispatch.
type IrCompareBool struct {
    R  Reg
    Op CmpOp
    X  Reg
    Y  Reg
}

func (self *IrCompareBool) String() string {
    return fmt.Sprintf("%s = CompareBool<%s> %s %s", self.R, self.Op, self.X, self.Y)
}

func (self *IrCompareBool) Usages() []*Reg {
    return []*Reg { &self.X, &self.Y }
}

func (self *IrCompareBool) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrIsTruthy struct {
    R Reg
    V Reg
}

func (self *IrIsTruthy) String() string {
    return fmt.Sprintf("%s = IsTruthy %s", self.R, self.V)
}

func (self *IrIsTruthy) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrIsTruthy) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrIsInstance is the specialized form of a call to the builtin isinstance,
// producing a primitive truth value.
type IrIsInstance struct {
    R   Reg
    V   Reg
    Cls Reg
}

func (self *IrIsInstance) String() string {
    return fmt.Sprintf("%s = IsInstance %s %s", self.R, self.V, self.Cls)
}

func (self *IrIsInstance) Usages() []*Reg {
    return []*Reg { &self.V, &self.Cls }
}

func (self *IrIsInstance) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrVectorCall is the generic calling convention: any callable, dispatched
// dynamically.
type IrVectorCall struct {
    R    Reg
    Fn   Reg
    Args []Reg
}

func (self *IrVectorCall) String() string {
    return fmt.Sprintf("%s = VectorCall %s (%s)", self.R, self.Fn, regslicerepr(self.Args))
}

func (self *IrVectorCall) Usages() []*Reg {
    return append([]*Reg { &self.Fn }, regsliceref(self.Args)...)
}

func (self *IrVectorCall) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrCallStatic calls the constructor of a statically resolved class,
// bypassing dynamic dispatch.
type IrCallStatic struct {
    R    Reg
    Cls  *rt.Class
    Args []Reg
}

func (self *IrCallStatic) String() string {
    return fmt.Sprintf("%s = CallStatic<%s> (%s)", self.R, self.Cls.Name, regslicerepr(self.Args))
}

func (self *IrCallStatic) Usages() []*Reg {
    return regsliceref(self.Args)
}

func (self *IrCallStatic) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrGuardType checks at runtime that V has type T, deoptimizing on the
// failure path. The output carries the refined type.
type IrGuardType struct {
    R Reg
    T Type
    V Reg
}

func (self *IrGuardType) String() string {
    return fmt.Sprintf("%s = GuardType<%s> %s", self.R, self.T, self.V)
}

func (self *IrGuardType) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrGuardType) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrCheckNull struct {
    R Reg
    V Reg
}

func (self *IrCheckNull) String() string {
    return fmt.Sprintf("%s = CheckNull %s", self.R, self.V)
}

func (self *IrCheckNull) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrCheckNull) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrLoadTupleItem struct {
    R   Reg
    Idx int
    V   Reg
}

func (self *IrLoadTupleItem) String() string {
    return fmt.Sprintf("%s = LoadTupleItem<%d> %s", self.R, self.Idx, self.V)
}

func (self *IrLoadTupleItem) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrLoadTupleItem) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrLoadAttr struct {
    R    Reg
    Name string
    V    Reg
}

func (self *IrLoadAttr) String() string {
    return fmt.Sprintf("%s = LoadAttr<%s> %s", self.R, self.Name, self.V)
}

func (self *IrLoadAttr) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrLoadAttr) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrSetAttr struct {
    Name string
    O    Reg
    V    Reg
}

func (self *IrSetAttr) String() string {
    return fmt.Sprintf("SetAttr<%s> %s %s", self.Name, self.O, self.V)
}

func (self *IrSetAttr) Usages() []*Reg {
    return []*Reg { &self.O, &self.V }
}

type IrIncref struct {
    V Reg
}

func (self *IrIncref) String() string {
    return fmt.Sprintf("Incref %s", self.V)
}

func (self *IrIncref) Usages() []*Reg {
    return []*Reg { &self.V }
}

type IrDecref struct {
    V Reg
}

func (self *IrDecref) String() string {
    return fmt.Sprintf("Decref %s", self.V)
}

func (self *IrDecref) Usages() []*Reg {
    return []*Reg { &self.V }
}

// IrPhi joins values flowing in from each predecessor edge of its block.
type IrPhi struct {
    R Reg
    V map[*BasicBlock]*Reg
}

func (self *IrPhi) String() string {
    nb := len(self.V)
    phi := make([]struct{ b int; r Reg }, 0, nb)

    /* add each path */
    for bb, reg := range self.V {
        phi = append(phi, struct{ b int; r Reg }{b: bb.Id, r: *reg})
    }

    /* sort by basic block ID */
    sort.Slice(phi, func(i int, j int) bool {
        return phi[i].b < phi[j].b
    })

    /* dump as string */
    ret := make([]string, 0, nb)
    for _, p := range phi {
        ret = append(ret, fmt.Sprintf("bb%d:%s", p.b, p.r))
    }
    return fmt.Sprintf("%s = Phi %s", self.R, strings.Join(ret, " "))
}

func (self *IrPhi) Usages() (r []*Reg) {
    r = make([]*Reg, 0, len(self.V))
    for _, v := range self.V {
        r = append(r, v)
    }
    return
}

func (self *IrPhi) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrBranch struct {
    To *BasicBlock
}

func (self *IrBranch) String() string {
    return fmt.Sprintf("Branch bb%d", self.To.Id)
}

func (self *IrBranch) Successors() []*BasicBlock {
    return []*BasicBlock { self.To }
}

type IrCondBranch struct {
    V Reg
    T *BasicBlock
    F *BasicBlock
}

func (self *IrCondBranch) String() string {
    return fmt.Sprintf("CondBranch %s bb%d bb%d", self.V, self.T.Id, self.F.Id)
}

func (self *IrCondBranch) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrCondBranch) Successors() []*BasicBlock {
    return []*BasicBlock { self.T, self.F }
}

type IrReturn struct {
    V Reg
}

func (self *IrReturn) String() string {
    return fmt.Sprintf("Return %s", self.V)
}

func (self *IrReturn) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrReturn) Successors() []*BasicBlock {
    return nil
}

func regsliceref(v []Reg) (r []*Reg) {
    r = make([]*Reg, len(v))
    for i := range v {
        r[i] = &v[i]
    }
    return
}

func regslicerepr(v []Reg) string {
    r := make([]string, 0, len(v))
    for _, x := range v {
        r = append(r, x.String())
    }
    return strings.Join(r, ", ")
}
