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
    `strings`

    `github.com/dmitryvinn/cinder/internal/rt`
)

type Kind uint16

const (
    K_long Kind = 1 << iota
    K_bool
    K_str
    K_tuple
    K_none
    K_type
    K_func
    K_user
    K_cbool
)

const (
    K_object = K_long | K_bool | K_str | K_tuple | K_none | K_type | K_func | K_user
    K_top    = K_object | K_cbool
)

var _KindNames = [...]struct{ k Kind; n string } {
    { K_long  , "Long"  },
    { K_bool  , "Bool"  },
    { K_str   , "Str"   },
    { K_tuple , "Tuple" },
    { K_none  , "None"  },
    { K_type  , "Type"  },
    { K_func  , "Func"  },
    { K_user  , "User"  },
    { K_cbool , "CBool" },
}

// Type is a lattice value describing what the optimizer knows statically
// about a register: a union of base kinds, optionally narrowed to an exact
// class, a specific class, or a single constant object.
type Type struct {
    kind  Kind
    exact bool
    cls   *rt.Class
    obj   *rt.Object
}

var (
    TBottom = Type{}
    TTop    = Type{kind: K_top}
    TObject = Type{kind: K_object}
    TLong   = Type{kind: K_long}
    TBool   = Type{kind: K_bool}
    TStr    = Type{kind: K_str}
    TTuple  = Type{kind: K_tuple}
    TNone   = Type{kind: K_none, exact: true}
    TType   = Type{kind: K_type}
    TFunc   = Type{kind: K_func}
    TUser   = Type{kind: K_user}
    TCBool  = Type{kind: K_cbool, exact: true}
)

var _ClassKinds = map[*rt.Class]Kind {
    rt.LongClass  : K_long,
    rt.BoolClass  : K_bool,
    rt.StrClass   : K_str,
    rt.TupleClass : K_tuple,
    rt.NoneClass  : K_none,
    rt.TypeClass  : K_type,
    rt.FuncClass  : K_func,
}

func kindOfClass(c *rt.Class) Kind {
    for p := c; p != nil; p = p.Base {
        if k, ok := _ClassKinds[p]; ok {
            return k
        }
    }
    return K_user
}

// TExact builds the exact instance type of a class.
func TExact(c *rt.Class) Type {
    return Type{kind: kindOfClass(c), exact: true, cls: c}
}

// TInstance builds the instance type of a class or any of its subclasses.
func TInstance(c *rt.Class) Type {
    return Type{kind: kindOfClass(c), cls: c}
}

// FromObject builds the most precise type of a single constant object.
func FromObject(o *rt.Object) Type {
    return Type{kind: kindOfClass(o.Cls), exact: true, cls: o.Cls, obj: o}
}

func (self Type) Kind() Kind           { return self.kind }
func (self Type) Exact() bool          { return self.exact }
func (self Type) Class() *rt.Class     { return self.cls }
func (self Type) Object() *rt.Object   { return self.obj }

func (self Type) IsBottom() bool { return self.kind == 0 }

// RefKinded reports whether values of this type may be managed object
// references, i.e. subject to the acquire/release discipline. A value is
// exempt only when it is provably a primitive truth value.
func (self Type) RefKinded() bool {
    return self.kind &^ K_cbool != 0
}

// Subtype reports whether every value of self is a value of other.
func (self Type) Subtype(other Type) bool {
    if self.kind &^ other.kind != 0 {
        return false
    }
    if other.obj != nil && (self.obj == nil || !self.obj.Equal(other.obj)) {
        return false
    }
    if other.cls != nil && (self.cls == nil || !self.cls.Subclasses(other.cls)) {
        return false
    }
    if other.exact && !self.exact {
        return false
    }
    return true
}

// Join computes the least upper bound of two types.
func (self Type) Join(other Type) Type {
    if self.IsBottom() {
        return other
    }
    if other.IsBottom() {
        return self
    }

    /* merge specializations */
    r := Type{kind: self.kind | other.kind}
    r.exact = self.exact && other.exact && self.kind == other.kind && self.cls == other.cls

    /* class survives only when shared */
    if self.cls == other.cls {
        r.cls = self.cls
    }

    /* constant survives only when structurally equal */
    if self.obj != nil && other.obj != nil && self.obj.Equal(other.obj) {
        r.obj = self.obj
    } else {
        r.exact = r.exact && self.obj == nil && other.obj == nil
    }
    return r
}

// Meet computes the greatest lower bound of two types.
func (self Type) Meet(other Type) Type {
    r := Type{kind: self.kind & other.kind}
    if r.kind == 0 {
        return TBottom
    }

    /* keep the narrower class */
    switch {
        case self.cls == nil                    : r.cls = other.cls
        case other.cls == nil                   : r.cls = self.cls
        case self.cls.Subclasses(other.cls)     : r.cls = self.cls
        case other.cls.Subclasses(self.cls)     : r.cls = other.cls
        default                                 : return TBottom
    }

    /* constants must agree */
    switch {
        case self.obj == nil                    : r.obj = other.obj
        case other.obj == nil                   : r.obj = self.obj
        case self.obj.Equal(other.obj)          : r.obj = self.obj
        default                                 : return TBottom
    }

    r.exact = self.exact || other.exact
    return r
}

func (self Type) String() string {
    switch self.kind {
        case 0        : return "Bottom"
        case K_top    : return "Top"
        case K_object : if self.cls == nil && self.obj == nil && !self.exact { return "Object" }
    }

    /* single-kind names carry the Exact suffix and the specialization */
    if self.kind & (self.kind - 1) == 0 {
        name := kindName(self.kind)
        if self.exact {
            name += "Exact"
        }
        if s := self.specRepr(); s != "" {
            name += "[" + s + "]"
        }
        return name
    }

    /* kind unions */
    buf := make([]string, 0, len(_KindNames))
    for _, kn := range _KindNames {
        if self.kind & kn.k != 0 {
            buf = append(buf, kn.n)
        }
    }
    return strings.Join(buf, "|")
}

func (self Type) specRepr() string {
    if self.obj != nil && self.obj.Kind != rt.KindTuple {
        return self.obj.String()
    }
    if self.cls != nil && self.cls != builtinClassOf(self.kind) {
        return self.cls.Name
    }
    return ""
}

func kindName(k Kind) string {
    for _, kn := range _KindNames {
        if kn.k == k {
            return kn.n
        }
    }
    panic(fmt.Sprintf("hir: invalid type kind: %#x", uint16(k)))
}

var _KindClasses = map[Kind]*rt.Class {
    K_long  : rt.LongClass,
    K_bool  : rt.BoolClass,
    K_str   : rt.StrClass,
    K_tuple : rt.TupleClass,
    K_none  : rt.NoneClass,
    K_type  : rt.TypeClass,
    K_func  : rt.FuncClass,
}

func builtinClassOf(k Kind) *rt.Class {
    return _KindClasses[k]
}
