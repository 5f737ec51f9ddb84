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

// CallOptimization devirtualizes constructor calls: a VectorCall whose
// callee is statically a specific class object becomes a CallStatic of
// that class, skipping the dynamic callable dispatch. The result type is
// exact: a constructor builds an instance of its own class, never of a
// subclass.
type CallOptimization struct{}

func (self *CallOptimization) Name() string {
    return "CallOptimization"
}

func (self *CallOptimization) Run(fn *Function) {
    for _, bb := range fn.Blocks() {
        for i, v := range bb.Ins {
            p, ok := v.(*IrVectorCall)
            if !ok {
                continue
            }
            callee := fn.Env.TypeOf(p.Fn).Object()
            if callee == nil || callee.Class == nil {
                continue
            }
            bb.Ins[i] = &IrCallStatic{R: p.R, Cls: callee.Class, Args: p.Args}
            fn.Env.SetType(p.R, TExact(callee.Class))
        }
    }
}
