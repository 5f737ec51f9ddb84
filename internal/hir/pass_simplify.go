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

// Iteration bound for the folding fixpoint. Every rewrite strictly reduces
// the amount of dynamic work in the function, so the bound is generous;
// hitting it means a rewrite oscillates.
const _SimplifyMaxRounds = 100

// Simplify folds instructions whose result is statically known into
// LoadConst, and degrades checks that provably pass into plain copies.
// One folded instruction can expose another, so the pass iterates until
// nothing changes.
type Simplify struct{}

func (self *Simplify) Name() string {
    return "Simplify"
}

func (self *Simplify) Run(fn *Function) {
    for i := 0; ; i++ {
        if i >= _SimplifyMaxRounds {
            fatal(fn, "hir: Simplify did not converge after %d rounds", i)
        }
        if !self.foldOnce(fn) {
            return
        }
    }
}

func (self *Simplify) foldOnce(fn *Function) bool {
    changed := false
    for _, bb := range fn.Blocks() {
        for i, v := range bb.Ins {
            if p := self.foldInstr(fn, v); p != nil {
                bb.Ins[i] = p
                changed = true
            }
        }
    }
    return changed
}

// foldInstr returns the replacement for v, or nil when v cannot be
// simplified. The replacement defines the same register.
func (self *Simplify) foldInstr(fn *Function, v Instr) Instr {
    switch p := v.(type) {
        case *IrBinaryOp      : return self.foldBinaryOp(fn, p)
        case *IrCompare       : return self.foldCompare(fn, p)
        case *IrIsTruthy      : return self.foldIsTruthy(fn, p)
        case *IrGuardType     : return self.foldGuardType(fn, p)
        case *IrCheckNull     : return self.foldCheckNull(fn, p)
        case *IrLoadTupleItem : return self.foldLoadTupleItem(fn, p)
        default               : return nil
    }
}

// loadconst replaces the definition of r with a constant, narrowing its
// static type to match.
func (self *Simplify) loadconst(fn *Function, r Reg, v *rt.Object) Instr {
    fn.Env.SetType(r, FromObject(v))
    return &IrLoadConst{R: r, V: v}
}

func (self *Simplify) foldBinaryOp(fn *Function, p *IrBinaryOp) Instr {
    x := fn.Env.TypeOf(p.X).Object()
    y := fn.Env.TypeOf(p.Y).Object()
    if x == nil || y == nil || x.Kind != rt.KindLong || y.Kind != rt.KindLong {
        return nil
    }
    var r int64
    switch p.Op {
        case OpAdd : r = x.Ival + y.Ival
        case OpSub : r = x.Ival - y.Ival
        case OpMul : r = x.Ival * y.Ival
        case OpAnd : r = x.Ival & y.Ival
        case OpOr  : r = x.Ival | y.Ival
        case OpXor : r = x.Ival ^ y.Ival
        default    : return nil
    }
    return self.loadconst(fn, p.R, rt.NewLong(r))
}

func (self *Simplify) foldCompare(fn *Function, p *IrCompare) Instr {
    x := fn.Env.TypeOf(p.X).Object()
    y := fn.Env.TypeOf(p.Y).Object()
    if x == nil || y == nil {
        return nil
    }
    r, ok := evalCompare(p.Op, x, y)
    if !ok {
        return nil
    }
    return self.loadconst(fn, p.R, rt.NewBool(r))
}

func (self *Simplify) foldIsTruthy(fn *Function, p *IrIsTruthy) Instr {
    v := fn.Env.TypeOf(p.V).Object()
    if v == nil {
        return nil
    }
    return self.loadconst(fn, p.R, rt.NewBool(v.Truthy()))
}

// foldGuardType removes guards the static type already proves; the
// dominance-based reasoning lives in GuardTypeRemoval.
func (self *Simplify) foldGuardType(fn *Function, p *IrGuardType) Instr {
    if !fn.Env.TypeOf(p.V).Subtype(p.T) {
        return nil
    }
    return &IrAssign{R: p.R, V: p.V}
}

func (self *Simplify) foldCheckNull(fn *Function, p *IrCheckNull) Instr {
    t := fn.Env.TypeOf(p.V)
    if t.IsBottom() || t.Kind() & K_none != 0 {
        return nil
    }
    fn.Env.SetType(p.R, fn.Env.TypeOf(p.R).Meet(t))
    return &IrAssign{R: p.R, V: p.V}
}

func (self *Simplify) foldLoadTupleItem(fn *Function, p *IrLoadTupleItem) Instr {
    v := fn.Env.TypeOf(p.V).Object()
    if v == nil || v.Kind != rt.KindTuple {
        return nil
    }
    if p.Idx < 0 || p.Idx >= len(v.Tval) {
        return nil
    }
    return self.loadconst(fn, p.R, v.Tval[p.Idx])
}

func numericKind(o *rt.Object) bool {
    return o.Kind == rt.KindLong || o.Kind == rt.KindBool
}

// evalCompare folds a comparison of two constants. Ordering is only
// defined between numbers; equality also covers strings, singletons and
// class objects.
func evalCompare(op CmpOp, x *rt.Object, y *rt.Object) (bool, bool) {
    switch op {
        case CmpIs: {
            if x == y {
                return true, true
            }
            if x.Kind != y.Kind {
                return false, true
            }

            /* within one kind, distinct interned objects cannot be
             * identical; big ints only separate on value */
            switch x.Kind {
                case rt.KindLong: {
                    if x.Ival != y.Ival {
                        return false, true
                    }
                    return false, false
                }

                case rt.KindNone, rt.KindBool, rt.KindClass, rt.KindFunc: {
                    return false, true
                }

                default: {
                    return false, false
                }
            }
        }

        case CmpEq, CmpNe: {
            if numericKind(x) && numericKind(y) {
                return (x.Ival == y.Ival) == (op == CmpEq), true
            }
            if x.Kind != y.Kind {
                return false, false
            }
            return x.Equal(y) == (op == CmpEq), true
        }

        default: {
            if !numericKind(x) || !numericKind(y) {
                return false, false
            }
        }
    }
    switch op {
        case CmpLt : return x.Ival <  y.Ival, true
        case CmpLe : return x.Ival <= y.Ival, true
        case CmpGt : return x.Ival >  y.Ival, true
        case CmpGe : return x.Ival >= y.Ival, true
        default    : return false, false
    }
}
