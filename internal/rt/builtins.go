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
    `sync`
)

var (
    builtinsOnce sync.Once
    builtinsTab  map[string]*Object
)

func isinstanceImpl(args []*Object) *Object {
    if len(args) != 2 || args[1].Kind != KindClass {
        return None
    }
    return NewBool(args[0].Cls.Subclasses(args[1].Class))
}

func lenImpl(args []*Object) *Object {
    if len(args) != 1 {
        return None
    }
    switch args[0].Kind {
        case KindStr   : return NewLong(int64(len(args[0].Sval)))
        case KindTuple : return NewLong(int64(len(args[0].Tval)))
        default        : return None
    }
}

// Builtins returns the process-wide builtin table. It is initialized on
// first use and read-only afterwards, so sharing it across compiling
// threads needs no further synchronization.
func Builtins() map[string]*Object {
    builtinsOnce.Do(func() {
        builtinsTab = map[string]*Object {
            "isinstance": newBuiltin("isinstance", isinstanceImpl),
            "len"       : newBuiltin("len", lenImpl),
        }
    })
    return builtinsTab
}

// LookupBuiltin resolves a builtin by name, or nil if absent.
func LookupBuiltin(name string) *Object {
    return Builtins()[name]
}

// LookupClass resolves a predeclared class by name. The textual IR form
// refers to classes by name and needs this to round-trip.
func LookupClass(name string) *Class {
    for _, c := range []*Class {
        ObjectClass, LongClass, BoolClass, StrClass,
        TupleClass, NoneClass, TypeClass, FuncClass,
    } {
        if c.Name == name {
            return c
        }
    }
    return userClass(name)
}

var (
    userMu  sync.Mutex
    userTab = make(map[string]*Class)
)

// userClass interns classes that are not predeclared, so that parsing the
// same class name twice yields one identity.
func userClass(name string) *Class {
    userMu.Lock()
    defer userMu.Unlock()
    if c, ok := userTab[name]; ok {
        return c
    }
    c := &Class{Name: name, Base: ObjectClass}
    userTab[name] = c
    return c
}
