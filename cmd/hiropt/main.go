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

package main

import (
    `fmt`
    `os`
    `path/filepath`
    `strings`

    `github.com/fatih/color`
    `github.com/sirupsen/logrus`
    `github.com/spf13/cobra`

    `github.com/dmitryvinn/cinder/internal/hir`
)

var (
    flagPasses  []string
    flagVerbose bool
)

func main() {
    root := &cobra.Command {
        Use:           "hiropt",
        Short:         "Mid-level SSA optimizer",
        SilenceUsage:  true,
        SilenceErrors: true,
        PersistentPreRun: func(_ *cobra.Command, _ []string) {
            if flagVerbose {
                logrus.SetLevel(logrus.DebugLevel)
            }
        },
    }
    root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable pass tracing")

    run := &cobra.Command {
        Use:   "run [file ...]",
        Short: "Optimize functions in textual IR form and print the result",
        Args:  cobra.MinimumNArgs(1),
        RunE:  runOptimize,
    }
    run.Flags().StringSliceVar(&flagPasses, "passes", hir.DefaultPassNames, "comma-separated pass names, in order")
    root.AddCommand(run)

    root.AddCommand(&cobra.Command {
        Use:   "passes",
        Short: "List every registered pass",
        Run: func(_ *cobra.Command, _ []string) {
            for _, name := range hir.NewPassRegistry().Names() {
                fmt.Println(name)
            }
        },
    })

    if err := root.Execute(); err != nil {
        color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "error: ")
        fmt.Fprintln(os.Stderr, err)
        os.Exit(1)
    }
}

func runOptimize(_ *cobra.Command, args []string) error {
    pipe, err := hir.NewPipeline(hir.NewPassRegistry(), flagPasses)
    if err != nil {
        return err
    }
    for _, path := range args {
        src, err := os.ReadFile(path)
        if err != nil {
            return err
        }
        name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
        fn, err := hir.ParseFunc(name, string(src))
        if err != nil {
            return err
        }
        pipe.Run(fn)
        fmt.Print(hir.PrintFunc(fn))
    }
    return nil
}
