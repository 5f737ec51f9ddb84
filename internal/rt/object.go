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

package rt

import (
    `fmt`
    `strconv`
    `strings`
    `sync`
)

var (
    classObjMu  sync.Mutex
    classObjTab = make(map[*Class]*Object)
)

// Class is a runtime type object. Classes form a single-inheritance
// hierarchy rooted at ObjectClass. A Final class cannot be subclassed,
// which makes every instance of it exactly-typed.
type Class struct {
    Name  string
    Base  *Class
    Final bool
}

func (self *Class) String() string {
    return self.Name
}

// Subclasses reports whether self is other or a descendant of other.
func (self *Class) Subclasses(other *Class) bool {
    for p := self; p != nil; p = p.Base {
        if p == other {
            return true
        }
    }
    return false
}

type ObjectKind uint8

const (
    KindNone ObjectKind = iota
    KindBool
    KindLong
    KindStr
    KindTuple
    KindClass
    KindFunc
)

// BuiltinFunc identifies a native builtin callable. The identity of the
// function, not its name, is what optimization passes compare against.
type BuiltinFunc func(args []*Object) *Object

// Object is a constant managed object as seen by the compiler: enough of
// the runtime representation to fold operations and resolve call targets,
// nothing more.
type Object struct {
    Cls   *Class
    Kind  ObjectKind
    Ival  int64
    Sval  string
    Tval  []*Object
    Class *Class
    Func  BuiltinFunc
    name  string
}

var (
    ObjectClass  = &Class{Name: "object"}
    LongClass    = &Class{Name: "int", Base: ObjectClass}
    BoolClass    = &Class{Name: "bool", Base: LongClass, Final: true}
    StrClass     = &Class{Name: "str", Base: ObjectClass}
    TupleClass   = &Class{Name: "tuple", Base: ObjectClass}
    NoneClass    = &Class{Name: "NoneType", Base: ObjectClass, Final: true}
    TypeClass    = &Class{Name: "type", Base: ObjectClass}
    FuncClass    = &Class{Name: "builtin_function", Base: ObjectClass, Final: true}
)

var (
    None  = &Object{Cls: NoneClass, Kind: KindNone}
    True  = &Object{Cls: BoolClass, Kind: KindBool, Ival: 1}
    False = &Object{Cls: BoolClass, Kind: KindBool, Ival: 0}
)

// Small ints share one object per value, the same range Immortal covers,
// so identity comparison on them is meaningful.
var smallLongTab = func() (tab [262]*Object) {
    for i := range tab {
        tab[i] = &Object{Cls: LongClass, Kind: KindLong, Ival: int64(i) - 5}
    }
    return
}()

func NewLong(v int64) *Object {
    if v >= -5 && v < 257 {
        return smallLongTab[v + 5]
    }
    return &Object{Cls: LongClass, Kind: KindLong, Ival: v}
}

func NewStr(v string) *Object {
    return &Object{Cls: StrClass, Kind: KindStr, Sval: v}
}

func NewTuple(vs ...*Object) *Object {
    return &Object{Cls: TupleClass, Kind: KindTuple, Tval: vs}
}

func NewBool(v bool) *Object {
    if v {
        return True
    } else {
        return False
    }
}

// ClassObject wraps a Class as a first-class type object, the callee of a
// constructor call. Class objects are interned: one Class, one Object, so
// identity comparison is meaningful.
func ClassObject(c *Class) *Object {
    classObjMu.Lock()
    defer classObjMu.Unlock()
    if o, ok := classObjTab[c]; ok {
        return o
    }
    o := &Object{Cls: TypeClass, Kind: KindClass, Class: c}
    classObjTab[c] = o
    return o
}

func newBuiltin(name string, fn BuiltinFunc) *Object {
    return &Object{Cls: FuncClass, Kind: KindFunc, Func: fn, name: name}
}

// Immortal objects live for the whole process and take no part in the
// acquire/release discipline.
func (self *Object) Immortal() bool {
    switch self.Kind {
        case KindNone  : return true
        case KindBool  : return true
        case KindClass : return true
        case KindFunc  : return true
        case KindLong  : return self.Ival >= -5 && self.Ival < 257
        default        : return false
    }
}

func (self *Object) Truthy() bool {
    switch self.Kind {
        case KindNone  : return false
        case KindBool  : return self.Ival != 0
        case KindLong  : return self.Ival != 0
        case KindStr   : return self.Sval != ""
        case KindTuple : return len(self.Tval) != 0
        default        : return true
    }
}

func (self *Object) String() string {
    switch self.Kind {
        case KindNone  : return "None"
        case KindBool  : if self.Ival != 0 { return "True" } else { return "False" }
        case KindLong  : return strconv.FormatInt(self.Ival, 10)
        case KindStr   : return strconv.Quote(self.Sval)
        case KindClass : return self.Class.Name
        case KindFunc  : return self.name
        default        : break
    }

    /* tuples are the only compound constants */
    vs := make([]string, 0, len(self.Tval))
    for _, v := range self.Tval {
        vs = append(vs, v.String())
    }
    return fmt.Sprintf("(%s)", strings.Join(vs, ", "))
}

// Equal compares two constant objects structurally. Identity is enough
// for immortal singletons but folded constants may be reconstructed.
func (self *Object) Equal(other *Object) bool {
    if self == other {
        return true
    }
    if self.Kind != other.Kind || self.Cls != other.Cls {
        return false
    }
    switch self.Kind {
        case KindLong  : return self.Ival == other.Ival
        case KindBool  : return self.Ival == other.Ival
        case KindStr   : return self.Sval == other.Sval
        case KindClass : return self.Class == other.Class
        case KindFunc  : return false
        case KindTuple : break
        default        : return true
    }
    if len(self.Tval) != len(other.Tval) {
        return false
    }
    for i, v := range self.Tval {
        if !v.Equal(other.Tval[i]) {
            return false
        }
    }
    return true
}
