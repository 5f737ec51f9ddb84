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
)

// PrintFunc renders fn in the canonical textual form. The output parses
// back to an equivalent function, and printing a parsed canonical text
// reproduces it byte for byte: blocks in reverse post-order, predecessors
// and Phi operands sorted by block ID, register types in a preamble.
func PrintFunc(fn *Function) string {
    var buf strings.Builder
    blocks := fn.Blocks()

    /* function header */
    fmt.Fprintf(&buf, "fun %s {\n", fn.Name)

    /* collect the registers with a known type, in numeric order */
    defined := make([]Reg, 0, fn.Env.NumRegs())
    for _, bb := range blocks {
        bb.eachInstr(func(v Instr) {
            if def, ok := v.(IrDefinitions); ok {
                for _, r := range def.Definitions() {
                    if fn.Env.TypeOf(*r) != TTop {
                        defined = append(defined, *r)
                    }
                }
            }
        })
    }
    sort.Slice(defined, func(i int, j int) bool {
        return defined[i] < defined[j]
    })

    /* type preamble */
    if len(defined) != 0 {
        buf.WriteString("  types {\n")
        for _, r := range defined {
            fmt.Fprintf(&buf, "    %s: %s\n", r, fn.Env.TypeOf(r))
        }
        buf.WriteString("  }\n")
    }

    /* dump each block */
    for _, bb := range blocks {
        buf.WriteString(formatBlock(bb))
    }

    buf.WriteString("}\n")
    return buf.String()
}

func formatBlock(bb *BasicBlock) string {
    var buf strings.Builder

    /* header with sorted predecessor IDs */
    if len(bb.Pred) == 0 {
        fmt.Fprintf(&buf, "  bb %d {\n", bb.Id)
    } else {
        ids := make([]int, 0, len(bb.Pred))
        for _, p := range bb.Pred {
            ids = append(ids, p.Id)
        }
        sort.Ints(ids)
        ss := make([]string, 0, len(ids))
        for _, id := range ids {
            ss = append(ss, fmt.Sprintf("%d", id))
        }
        fmt.Fprintf(&buf, "  bb %d (preds %s) {\n", bb.Id, strings.Join(ss, ", "))
    }

    /* phis, body, terminator */
    bb.eachInstr(func(v Instr) {
        fmt.Fprintf(&buf, "    %s\n", v)
    })

    buf.WriteString("  }\n")
    return buf.String()
}
