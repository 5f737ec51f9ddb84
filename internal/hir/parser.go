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
    `sort`
    `strconv`
    `strings`

    `github.com/alecthomas/participle/v2`
    `github.com/alecthomas/participle/v2/lexer`
    `github.com/pkg/errors`

    `github.com/dmitryvinn/cinder/internal/rt`
)

var hirLexer = lexer.MustStateful(lexer.Rules {
    "Root": {
        { Name: "Comment"    , Pattern: `#[^\n]*` },
        { Name: "String"     , Pattern: `"(\\.|[^"])*"` },
        { Name: "Int"        , Pattern: `-?\d+` },
        { Name: "Ident"      , Pattern: `[A-Za-z_][A-Za-z0-9_]*` },
        { Name: "Punct"      , Pattern: `[{}()<>=:,|\[\]]` },
        { Name: "EOL"        , Pattern: `([ \t\r]*\n)+` },
        { Name: "Whitespace" , Pattern: `[ \t\r]+` },
    },
})

type astFile struct {
    Funcs []*astFunc `parser:"EOL? @@+"`
}

type astFunc struct {
    Name   string      `parser:"\"fun\" @Ident \"{\" EOL"`
    Types  *astTypes   `parser:"@@?"`
    Blocks []*astBlock `parser:"@@+ \"}\" EOL?"`
}

type astTypes struct {
    Decls []*astTypeDecl `parser:"\"types\" \"{\" EOL @@* \"}\" EOL"`
}

type astTypeDecl struct {
    Reg  string       `parser:"@Ident \":\""`
    Type *astTypeExpr `parser:"@@ EOL"`
}

type astTypeExpr struct {
    Atoms []*astTypeAtom `parser:"@@ (\"|\" @@)*"`
}

type astTypeAtom struct {
    Name string   `parser:"@Ident"`
    Spec *astSpec `parser:"(\"[\" @@ \"]\")?"`
}

type astSpec struct {
    Int  *int64  `parser:"  @Int"`
    Str  *string `parser:"| @String"`
    Name *string `parser:"| @Ident"`
}

type astBlock struct {
    Id    int         `parser:"\"bb\" @Int"`
    Preds []int       `parser:"(\"(\" \"preds\" @Int (\",\" @Int)* \")\")?"`
    Ins   []*astInstr `parser:"\"{\" EOL @@* \"}\" EOL"`
}

type astInstr struct {
    Out  *string       `parser:"(@Ident \"=\")?"`
    Op   string        `parser:"@Ident"`
    Imms []*astImm     `parser:"(\"<\" @@ (\",\" @@)* \">\")?"`
    Ops  []*astOperand `parser:"@@*"`
    Args []string      `parser:"(\"(\" (@Ident (\",\" @Ident)*)? \")\")? EOL"`
}

type astOperand struct {
    Pred *string `parser:"(@Ident \":\")?"`
    Name string  `parser:"@Ident"`
}

type astImm struct {
    Int   *int64       `parser:"  @Int"`
    Str   *string      `parser:"| @String"`
    Tuple []*astImm    `parser:"| \"(\" (@@ (\",\" @@)*)? \")\""`
    Type  *astTypeExpr `parser:"| @@"`
}

var hirParser = participle.MustBuild[astFile](
    participle.Lexer(hirLexer),
    participle.Elide("Whitespace", "Comment"),
    participle.UseLookahead(4),
)

// ParseFunc parses the textual form of a single function. Malformed text
// is a caller error, reported as an error value rather than a panic: text
// arrives from outside the compiler.
func ParseFunc(name string, src string) (*Function, error) {
    file, err := hirParser.ParseString(name, src)
    if err != nil {
        return nil, errors.Wrap(err, "hir: parse error")
    }
    if len(file.Funcs) != 1 {
        return nil, errors.Errorf("hir: expected exactly one function, found %d", len(file.Funcs))
    }
    return lowerFunc(file.Funcs[0])
}

type _FuncLowerer struct {
    fn     *Function
    blocks map[int]*BasicBlock
}

func lowerFunc(af *astFunc) (*Function, error) {
    self := &_FuncLowerer {
        blocks: make(map[int]*BasicBlock, len(af.Blocks)),
    }

    /* materialize every block before resolving references */
    self.fn = &Function{Name: af.Name, Env: NewEnvironment()}
    for _, ab := range af.Blocks {
        if _, ok := self.blocks[ab.Id]; ok {
            return nil, errors.Errorf("hir: duplicate block bb%d", ab.Id)
        }
        bb := &BasicBlock{Id: ab.Id}
        self.blocks[ab.Id] = bb
        self.fn.ReserveBlockId(ab.Id)
    }
    self.fn.Entry = self.blocks[af.Blocks[0].Id]

    /* register type preamble */
    if af.Types != nil {
        for _, d := range af.Types.Decls {
            r, err := self.reg(d.Reg)
            if err != nil {
                return nil, err
            }
            t, err := lowerTypeExpr(d.Type)
            if err != nil {
                return nil, err
            }
            self.fn.Env.SetType(r, t)
        }
    }

    /* lower the body of every block */
    for _, ab := range af.Blocks {
        if err := self.lowerBlock(ab); err != nil {
            return nil, err
        }
    }

    /* every block must have ended in a terminator */
    for _, ab := range af.Blocks {
        bb := self.blocks[ab.Id]
        if bb.Term == nil {
            return nil, errors.Errorf("hir: bb%d has no terminator", ab.Id)
        }
        if err := self.checkPreds(ab, bb); err != nil {
            return nil, err
        }
    }
    return self.fn, nil
}

// checkPreds validates an explicit (preds ...) clause against the edges
// reconstructed from the terminators.
func (self *_FuncLowerer) checkPreds(ab *astBlock, bb *BasicBlock) error {
    if ab.Preds == nil {
        return nil
    }
    got := make([]int, 0, len(bb.Pred))
    for _, p := range bb.Pred {
        got = append(got, p.Id)
    }
    sort.Ints(got)
    want := append([]int(nil), ab.Preds...)
    sort.Ints(want)
    if len(got) != len(want) {
        return errors.Errorf("hir: bb%d declares %d predecessors, edges give %d", ab.Id, len(want), len(got))
    }
    for i := range got {
        if got[i] != want[i] {
            return errors.Errorf("hir: bb%d predecessor list does not match its edges", ab.Id)
        }
    }
    return nil
}

func (self *_FuncLowerer) reg(name string) (Reg, error) {
    if !strings.HasPrefix(name, "v") {
        return Rnone, errors.Errorf("hir: invalid register name %q", name)
    }
    id, err := strconv.ParseUint(name[1:], 10, 32)
    if err != nil {
        return Rnone, errors.Errorf("hir: invalid register name %q", name)
    }
    r := Reg(id)
    self.fn.Env.Reserve(r)
    return r, nil
}

func (self *_FuncLowerer) block(name string) (*BasicBlock, error) {
    if !strings.HasPrefix(name, "bb") {
        return nil, errors.Errorf("hir: invalid block reference %q", name)
    }
    id, err := strconv.Atoi(name[2:])
    if err != nil {
        return nil, errors.Errorf("hir: invalid block reference %q", name)
    }
    bb, ok := self.blocks[id]
    if !ok {
        return nil, errors.Errorf("hir: reference to undefined block bb%d", id)
    }
    return bb, nil
}

func (self *_FuncLowerer) out(ai *astInstr) (Reg, error) {
    if ai.Out == nil {
        return Rnone, errors.Errorf("hir: %s requires an output register", ai.Op)
    }
    return self.reg(*ai.Out)
}

func (self *_FuncLowerer) operands(ai *astInstr, n int) ([]Reg, error) {
    if len(ai.Ops) != n {
        return nil, errors.Errorf("hir: %s takes %d operands, found %d", ai.Op, n, len(ai.Ops))
    }
    ret := make([]Reg, n)
    for i, op := range ai.Ops {
        if op.Pred != nil {
            return nil, errors.Errorf("hir: unexpected phi-style operand in %s", ai.Op)
        }
        r, err := self.reg(op.Name)
        if err != nil {
            return nil, err
        }
        ret[i] = r
    }
    return ret, nil
}

func (self *_FuncLowerer) args(ai *astInstr) ([]Reg, error) {
    ret := make([]Reg, 0, len(ai.Args))
    for _, a := range ai.Args {
        r, err := self.reg(a)
        if err != nil {
            return nil, err
        }
        ret = append(ret, r)
    }
    return ret, nil
}

func immCount(ai *astInstr, n int) error {
    if len(ai.Imms) != n {
        return errors.Errorf("hir: %s takes %d immediates, found %d", ai.Op, n, len(ai.Imms))
    }
    return nil
}

func immInt(ai *astInstr) (int64, error) {
    if err := immCount(ai, 1); err != nil {
        return 0, err
    }
    if ai.Imms[0].Int == nil {
        return 0, errors.Errorf("hir: %s requires an integer immediate", ai.Op)
    }
    return *ai.Imms[0].Int, nil
}

func immName(ai *astInstr) (string, error) {
    if err := immCount(ai, 1); err != nil {
        return "", err
    }
    t := ai.Imms[0].Type
    if t == nil || len(t.Atoms) != 1 || t.Atoms[0].Spec != nil {
        return "", errors.Errorf("hir: %s requires a name immediate", ai.Op)
    }
    return t.Atoms[0].Name, nil
}

func (self *_FuncLowerer) lowerBlock(ab *astBlock) error {
    bb := self.blocks[ab.Id]
    for _, ai := range ab.Ins {
        if bb.Term != nil {
            return errors.Errorf("hir: bb%d has instructions after its terminator", ab.Id)
        }
        if err := self.lowerInstr(bb, ai); err != nil {
            return err
        }
    }
    return nil
}

func (self *_FuncLowerer) lowerInstr(bb *BasicBlock, ai *astInstr) error {
    switch ai.Op {
        default: {
            return errors.Errorf("hir: unknown instruction %q", ai.Op)
        }

        case "LoadConst": {
            r, err := self.out(ai)
            if err != nil {
                return err
            }
            if err := immCount(ai, 1); err != nil {
                return err
            }
            v, err := lowerConst(ai.Imms[0])
            if err != nil {
                return err
            }
            bb.Append(&IrLoadConst{R: r, V: v})
            self.fn.Env.SetType(r, FromObject(v))
        }

        case "LoadArg": {
            r, err := self.out(ai)
            if err != nil {
                return err
            }
            id, err := immInt(ai)
            if err != nil {
                return err
            }
            bb.Append(&IrLoadArg{R: r, Id: int(id)})
        }

        case "Assign": {
            r, err := self.out(ai)
            if err != nil {
                return err
            }
            ops, err := self.operands(ai, 1)
            if err != nil {
                return err
            }
            bb.Append(&IrAssign{R: r, V: ops[0]})
        }

        case "BinaryOp": {
            r, err := self.out(ai)
            if err != nil {
                return err
            }
            name, err := immName(ai)
            if err != nil {
                return err
            }
            op, err := lowerBinOp(name)
            if err != nil {
                return err
            }
            ops, err := self.operands(ai, 2)
            if err != nil {
                return err
            }
            bb.Append(&IrBinaryOp{R: r, Op: op, X: ops[0], Y: ops[1]})
        }

        case "Compare", "CompareBool": {
            r, err := self.out(ai)
            if err != nil {
                return err
            }
            name, err := immName(ai)
            if err != nil {
                return err
            }
            op, err := lowerCmpOp(name)
            if err != nil {
                return err
            }
            ops, err := self.operands(ai, 2)
            if err != nil {
                return err
            }
            if ai.Op == "Compare" {
                bb.Append(&IrCompare{R: r, Op: op, X: ops[0], Y: ops[1]})
            } else {
                bb.Append(&IrCompareBool{R: r, Op: op, X: ops[0], Y: ops[1]})
                self.fn.Env.SetType(r, TCBool)
            }
        }

        case "IsTruthy": {
            r, err := self.out(ai)
            if err != nil {
                return err
            }
            ops, err := self.operands(ai, 1)
            if err != nil {
                return err
            }
            bb.Append(&IrIsTruthy{R: r, V: ops[0]})
            self.fn.Env.SetType(r, TCBool)
        }

        case "IsInstance": {
            r, err := self.out(ai)
            if err != nil {
                return err
            }
            ops, err := self.operands(ai, 2)
            if err != nil {
                return err
            }
            bb.Append(&IrIsInstance{R: r, V: ops[0], Cls: ops[1]})
            self.fn.Env.SetType(r, TCBool)
        }

        case "VectorCall": {
            r, err := self.out(ai)
            if err != nil {
                return err
            }
            ops, err := self.operands(ai, 1)
            if err != nil {
                return err
            }
            args, err := self.args(ai)
            if err != nil {
                return err
            }
            bb.Append(&IrVectorCall{R: r, Fn: ops[0], Args: args})
        }

        case "CallStatic": {
            r, err := self.out(ai)
            if err != nil {
                return err
            }
            name, err := immName(ai)
            if err != nil {
                return err
            }
            args, err := self.args(ai)
            if err != nil {
                return err
            }
            cls := rt.LookupClass(name)
            bb.Append(&IrCallStatic{R: r, Cls: cls, Args: args})
            self.fn.Env.SetType(r, TExact(cls))
        }

        case "GuardType": {
            r, err := self.out(ai)
            if err != nil {
                return err
            }
            if err := immCount(ai, 1); err != nil {
                return err
            }
            if ai.Imms[0].Type == nil {
                return errors.Errorf("hir: GuardType requires a type immediate")
            }
            t, err := lowerTypeExpr(ai.Imms[0].Type)
            if err != nil {
                return err
            }
            ops, err := self.operands(ai, 1)
            if err != nil {
                return err
            }
            bb.Append(&IrGuardType{R: r, T: t, V: ops[0]})
            self.fn.Env.SetType(r, t)
        }

        case "CheckNull": {
            r, err := self.out(ai)
            if err != nil {
                return err
            }
            ops, err := self.operands(ai, 1)
            if err != nil {
                return err
            }
            bb.Append(&IrCheckNull{R: r, V: ops[0]})
        }

        case "LoadTupleItem": {
            r, err := self.out(ai)
            if err != nil {
                return err
            }
            idx, err := immInt(ai)
            if err != nil {
                return err
            }
            ops, err := self.operands(ai, 1)
            if err != nil {
                return err
            }
            bb.Append(&IrLoadTupleItem{R: r, Idx: int(idx), V: ops[0]})
        }

        case "LoadAttr": {
            r, err := self.out(ai)
            if err != nil {
                return err
            }
            name, err := immName(ai)
            if err != nil {
                return err
            }
            ops, err := self.operands(ai, 1)
            if err != nil {
                return err
            }
            bb.Append(&IrLoadAttr{R: r, Name: name, V: ops[0]})
        }

        case "SetAttr": {
            name, err := immName(ai)
            if err != nil {
                return err
            }
            ops, err := self.operands(ai, 2)
            if err != nil {
                return err
            }
            bb.Append(&IrSetAttr{Name: name, O: ops[0], V: ops[1]})
        }

        case "Incref", "Decref": {
            ops, err := self.operands(ai, 1)
            if err != nil {
                return err
            }
            if ai.Op == "Incref" {
                bb.Append(&IrIncref{V: ops[0]})
            } else {
                bb.Append(&IrDecref{V: ops[0]})
            }
        }

        case "Phi": {
            r, err := self.out(ai)
            if err != nil {
                return err
            }
            phi := &IrPhi{R: r, V: make(map[*BasicBlock]*Reg, len(ai.Ops))}
            for _, op := range ai.Ops {
                if op.Pred == nil {
                    return errors.Errorf("hir: Phi operands must name their predecessor block")
                }
                src, err := self.block(*op.Pred)
                if err != nil {
                    return err
                }
                v, err := self.reg(op.Name)
                if err != nil {
                    return err
                }
                if _, ok := phi.V[src]; ok {
                    return errors.Errorf("hir: Phi %s has two operands for bb%d", r, src.Id)
                }
                vv := v
                phi.V[src] = &vv
            }
            bb.Append(phi)
        }

        case "Branch": {
            if len(ai.Ops) != 1 {
                return errors.Errorf("hir: Branch takes one block target")
            }
            to, err := self.block(ai.Ops[0].Name)
            if err != nil {
                return err
            }
            bb.TermBranch(to)
        }

        case "CondBranch": {
            if len(ai.Ops) != 3 {
                return errors.Errorf("hir: CondBranch takes a register and two block targets")
            }
            v, err := self.reg(ai.Ops[0].Name)
            if err != nil {
                return err
            }
            t, err := self.block(ai.Ops[1].Name)
            if err != nil {
                return err
            }
            f, err := self.block(ai.Ops[2].Name)
            if err != nil {
                return err
            }
            bb.TermCondBranch(v, t, f)
        }

        case "Return": {
            ops, err := self.operands(ai, 1)
            if err != nil {
                return err
            }
            bb.TermReturn(ops[0])
        }
    }
    return nil
}

func lowerBinOp(name string) (BinOp, error) {
    switch name {
        case "Add" : return OpAdd, nil
        case "Sub" : return OpSub, nil
        case "Mul" : return OpMul, nil
        case "And" : return OpAnd, nil
        case "Or"  : return OpOr, nil
        case "Xor" : return OpXor, nil
        default    : return 0, errors.Errorf("hir: unknown binary op %q", name)
    }
}

func lowerCmpOp(name string) (CmpOp, error) {
    switch name {
        case "Eq" : return CmpEq, nil
        case "Ne" : return CmpNe, nil
        case "Lt" : return CmpLt, nil
        case "Le" : return CmpLe, nil
        case "Gt" : return CmpGt, nil
        case "Ge" : return CmpGe, nil
        case "Is" : return CmpIs, nil
        default   : return 0, errors.Errorf("hir: unknown compare op %q", name)
    }
}

// lowerConst interprets a LoadConst immediate as a constant object.
func lowerConst(imm *astImm) (*rt.Object, error) {
    switch {
        case imm.Int != nil: {
            return rt.NewLong(*imm.Int), nil
        }

        case imm.Str != nil: {
            s, err := strconv.Unquote(*imm.Str)
            if err != nil {
                return nil, errors.Wrap(err, "hir: invalid string constant")
            }
            return rt.NewStr(s), nil
        }

        case imm.Tuple != nil: {
            vs := make([]*rt.Object, 0, len(imm.Tuple))
            for _, e := range imm.Tuple {
                v, err := lowerConst(e)
                if err != nil {
                    return nil, err
                }
                vs = append(vs, v)
            }
            return rt.NewTuple(vs...), nil
        }

        case imm.Type != nil: {
            if len(imm.Type.Atoms) != 1 || imm.Type.Atoms[0].Spec != nil {
                return nil, errors.Errorf("hir: invalid constant immediate")
            }
            return lowerConstName(imm.Type.Atoms[0].Name)
        }

        default: {
            return nil, errors.Errorf("hir: empty constant immediate")
        }
    }
}

// lowerConstName resolves a bare identifier constant: a singleton, a
// builtin function, or a class object.
func lowerConstName(name string) (*rt.Object, error) {
    switch name {
        case "None"  : return rt.None, nil
        case "True"  : return rt.True, nil
        case "False" : return rt.False, nil
    }
    if o := rt.LookupBuiltin(name); o != nil {
        return o, nil
    }
    return rt.ClassObject(rt.LookupClass(name)), nil
}

var _TypeAtomKinds = map[string]Kind {
    "Long"  : K_long,
    "Bool"  : K_bool,
    "Str"   : K_str,
    "Tuple" : K_tuple,
    "None"  : K_none,
    "Type"  : K_type,
    "Func"  : K_func,
    "User"  : K_user,
    "CBool" : K_cbool,
}

func lowerTypeExpr(expr *astTypeExpr) (Type, error) {
    ret := TBottom
    for _, atom := range expr.Atoms {
        t, err := lowerTypeAtom(atom)
        if err != nil {
            return TBottom, err
        }
        ret = ret.Join(t)
    }
    return ret, nil
}

func lowerTypeAtom(atom *astTypeAtom) (Type, error) {
    name := atom.Name
    exact := false

    /* whole-lattice names */
    switch name {
        case "Top"    : return TTop, nil
        case "Bottom" : return TBottom, nil
        case "Object" : return TObject, nil
    }

    /* Exact suffix */
    if strings.HasSuffix(name, "Exact") && len(name) > len("Exact") {
        name = name[:len(name) - len("Exact")]
        exact = true
    }

    /* base kind */
    k, ok := _TypeAtomKinds[name]
    if !ok {
        return TBottom, errors.Errorf("hir: unknown type %q", atom.Name)
    }
    t := Type{kind: k, exact: exact}
    if atom.Spec == nil {
        return t, nil
    }

    /* constant or class specialization */
    switch {
        case atom.Spec.Int != nil: {
            if k != K_long {
                return TBottom, errors.Errorf("hir: integer specialization on %q", name)
            }
            t = FromObject(rt.NewLong(*atom.Spec.Int))
        }

        case atom.Spec.Str != nil: {
            if k != K_str {
                return TBottom, errors.Errorf("hir: string specialization on %q", name)
            }
            s, err := strconv.Unquote(*atom.Spec.Str)
            if err != nil {
                return TBottom, errors.Wrap(err, "hir: invalid type specialization")
            }
            t = FromObject(rt.NewStr(s))
        }

        case atom.Spec.Name != nil: {
            switch n := *atom.Spec.Name; {
                case k == K_bool && n == "True"  : t = FromObject(rt.True)
                case k == K_bool && n == "False" : t = FromObject(rt.False)
                case k == K_none && n == "None"  : t = FromObject(rt.None)
                case k == K_func: {
                    o := rt.LookupBuiltin(n)
                    if o == nil {
                        return TBottom, errors.Errorf("hir: unknown builtin %q", n)
                    }
                    t = FromObject(o)
                }
                case k == K_type                 : t = FromObject(rt.ClassObject(rt.LookupClass(n)))
                case k == K_user                 : t = Type{kind: K_user, cls: rt.LookupClass(n)}
                default: {
                    return TBottom, errors.Errorf("hir: invalid specialization %q on %q", n, name)
                }
            }
        }
    }

    t.exact = exact
    return t, nil
}
