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
    `testing`

    `pgregory.net/rapid`

    `github.com/dmitryvinn/cinder/internal/rt`
)

// TestOptimize_ConstantChains builds random single-block functions out of
// constants and arithmetic, runs the full pipeline, and requires the
// returned value to fold to what direct evaluation gives. Structural
// invariants are enforced by the pipeline's built-in verification.
func TestOptimize_ConstantChains(t *testing.T) {
    rapid.Check(t, func(t *rapid.T) {
        fn := NewFunction("prop")
        vals := make([]int64, 0, 16)
        regs := make([]Reg, 0, 16)

        emitConst := func() {
            v := rapid.Int64Range(-50, 50).Draw(t, "const")
            r := fn.Env.AllocReg()
            fn.Entry.Append(&IrLoadConst{R: r, V: rt.NewLong(v)})
            fn.Env.SetType(r, FromObject(rt.NewLong(v)))
            vals = append(vals, v)
            regs = append(regs, r)
        }

        emitBinOp := func() {
            i := rapid.IntRange(0, len(vals) - 1).Draw(t, "lhs")
            j := rapid.IntRange(0, len(vals) - 1).Draw(t, "rhs")
            op := BinOp(rapid.IntRange(int(OpAdd), int(OpXor)).Draw(t, "op"))
            var v int64
            switch op {
                case OpAdd : v = vals[i] + vals[j]
                case OpSub : v = vals[i] - vals[j]
                case OpMul : v = vals[i] * vals[j]
                case OpAnd : v = vals[i] & vals[j]
                case OpOr  : v = vals[i] | vals[j]
                case OpXor : v = vals[i] ^ vals[j]
            }
            r := fn.Env.AllocReg()
            fn.Entry.Append(&IrBinaryOp{R: r, Op: op, X: regs[i], Y: regs[j]})
            vals = append(vals, v)
            regs = append(regs, r)
        }

        emitConst()
        n := rapid.IntRange(0, 12).Draw(t, "ops")
        for i := 0; i < n; i++ {
            if rapid.Bool().Draw(t, "isconst") {
                emitConst()
            } else {
                emitBinOp()
            }
        }
        fn.Entry.TermReturn(regs[len(regs) - 1])
        want := vals[len(vals) - 1]

        NewDefaultPipeline().Run(fn)

        ret, ok := fn.Entry.Term.(*IrReturn)
        if !ok {
            t.Fatalf("terminator changed: %s", fn.Entry.Term)
        }
        obj := fn.Env.TypeOf(ret.V).Object()
        if obj == nil {
            t.Fatalf("returned value did not fold: %s", PrintFunc(fn))
        }
        if obj.Kind != rt.KindLong || obj.Ival != want {
            t.Fatalf("folded to %s, want %d", obj, want)
        }
    })
}
