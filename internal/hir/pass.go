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
    `strings`

    `github.com/pkg/errors`
    `github.com/sirupsen/logrus`
)

// Pass is one rewrite over a function. A Pass instance is created per
// pipeline run and may carry state between blocks, but never between
// functions.
type Pass interface {
    Name() string
    Run(fn *Function)
}

// PassFactory creates a fresh instance of a pass.
type PassFactory func() Pass

// PassRegistry maps pass names to factories. Registration is append-only:
// a name, once bound, keeps its factory for the life of the registry.
type PassRegistry struct {
    tab map[string]PassFactory
}

// NewPassRegistry returns a registry pre-populated with every standard
// pass.
func NewPassRegistry() *PassRegistry {
    self := &PassRegistry{tab: make(map[string]PassFactory)}
    self.Register(func() Pass { return new(Simplify) })
    self.Register(func() Pass { return new(DynamicComparisonElimination) })
    self.Register(func() Pass { return new(CallOptimization) })
    self.Register(func() Pass { return new(CopyPropagation) })
    self.Register(func() Pass { return new(DeadCodeElimination) })
    self.Register(func() Pass { return new(GuardTypeRemoval) })
    self.Register(func() Pass { return new(PhiElimination) })
    self.Register(func() Pass { return new(RefcountInsertion) })
    return self
}

// Register binds a factory under the name of the pass it creates.
// Rebinding an existing name is an internal error.
func (self *PassRegistry) Register(fac PassFactory) {
    name := fac().Name()
    if _, ok := self.tab[name]; ok {
        panic("hir: duplicate pass registration: " + name)
    }
    self.tab[name] = fac
}

// MakePass instantiates the pass registered under name.
func (self *PassRegistry) MakePass(name string) (Pass, error) {
    if fac, ok := self.tab[name]; ok {
        return fac(), nil
    }
    return nil, errors.Errorf("hir: unknown pass %q", name)
}

// Names lists every registered pass name in sorted order.
func (self *PassRegistry) Names() []string {
    ret := make([]string, 0, len(self.tab))
    for name := range self.tab {
        ret = append(ret, name)
    }
    sort.Strings(ret)
    return ret
}

// Pipeline is an ordered sequence of passes applied to one function at a
// time. Sequencing is validated at construction, not at run time.
type Pipeline struct {
    reg    *PassRegistry
    names  []string
    checks bool
}

// DefaultPassNames is the standard optimization order. Ownership
// operations are materialized last, over a CFG no other pass will touch
// again.
var DefaultPassNames = []string {
    "Simplify",
    "DynamicComparisonElimination",
    "CallOptimization",
    "CopyPropagation",
    "DeadCodeElimination",
    "GuardTypeRemoval",
    "PhiElimination",
    "RefcountInsertion",
}

// NewPipeline builds a pipeline running the named passes in order. Every
// name must be registered, and RefcountInsertion, when present, must come
// last: passes that move or remove instructions after it would break the
// ownership balance it established.
func NewPipeline(reg *PassRegistry, names []string) (*Pipeline, error) {
    for i, name := range names {
        if _, ok := reg.tab[name]; !ok {
            return nil, errors.Errorf("hir: unknown pass %q", name)
        }
        if name == "RefcountInsertion" && i != len(names) - 1 {
            return nil, errors.Errorf("hir: %s must be the last pass, found at position %d", name, i)
        }
    }
    return &Pipeline{reg: reg, names: names, checks: true}, nil
}

// NewDefaultPipeline builds the standard pipeline over a fresh registry.
func NewDefaultPipeline() *Pipeline {
    p, err := NewPipeline(NewPassRegistry(), DefaultPassNames)
    if err != nil {
        panic(err)
    }
    return p
}

// DisableChecks turns off the structural verification run after every
// pass. Only useful when benchmarking.
func (self *Pipeline) DisableChecks() {
    self.checks = false
}

// Run applies every pass to fn in order, verifying structural invariants
// after each one. Pass instances are created fresh per run; the Pipeline
// itself stays safe for concurrent Run calls on distinct functions.
func (self *Pipeline) Run(fn *Function) {
    if self.checks {
        CheckFunc(fn)
    }
    for _, name := range self.names {
        pass, err := self.reg.MakePass(name)
        if err != nil {
            panic(err)
        }
        logrus.WithFields(logrus.Fields {
            "func": fn.Name,
            "pass": name,
        }).Debug("running pass")
        pass.Run(fn)
        if self.checks {
            CheckFunc(fn)
        }
    }
}

func (self *Pipeline) String() string {
    return strings.Join(self.names, ", ")
}
