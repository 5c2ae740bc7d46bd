// Command kate is the CLI entrypoint named in spec.md §6: it resolves a
// classpath, loads a main class, and runs its public static void
// main(String[]) method — nothing heavier. Grounded on the teacher's
// cmd/sola/main.go terse style (flag.FlagSet, small helper functions,
// os.Exit on error paths), generalized here from Sola's subcommand
// dispatch to Kate's single flat flag set, since spec.md §6 names no
// subcommands.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"kate/internal/config"
	"kate/internal/heap"
	"kate/internal/katelog"
	"kate/internal/loader"
	"kate/internal/native"
	"kate/internal/vm"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("kate", flag.ContinueOnError)
	cpFlag := fs.String("cp", "", "classpath: colon-separated list of directory roots")
	bootFlag := fs.String("boot-system", "", "boot classpath, searched after -cp for java.* classes")
	configPath := fs.String("config", "kate.toml", "path to a kate.toml configuration file")
	logLevel := fs.String("log", "", "log level: debug, info, warn, error (overrides kate.toml)")
	dumpFlag := fs.Bool("dump", false, "disassemble the main class instead of running it")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: kate [-cp dir:dir...] [-boot-system dir] [-dump] MainClass [args...]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 1
	}
	mainClass := fs.Arg(0)
	progArgs := fs.Args()[1:]

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kate: %v\n", err)
		return 1
	}
	classpath := cfg.Classpath
	if *cpFlag != "" {
		classpath = strings.Split(*cpFlag, ":")
	}
	bootSystem := cfg.BootSystem
	if *bootFlag != "" {
		bootSystem = *bootFlag
	}
	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	log := katelog.New(level)

	h := heap.New()
	ld := loader.New(classpath, bootSystem, h, log)
	natives := native.NewRegistry()
	native.RegisterBuiltins(natives)
	machine := vm.New(ld, h, natives, log)

	if *dumpFlag {
		return dump(ld, mainClass)
	}
	return machine.Run(mainClass, progArgs)
}

// dump implements the -dump diagnostic (SPEC_FULL.md supplement #1): load
// and link mainClass exactly as a normal run would, then render its methods
// with vm.Disassemble instead of executing them.
func dump(ld *loader.Loader, mainClass string) int {
	lc, err := ld.Load(mainClass)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kate: cannot load %s: %v\n", mainClass, err)
		return 1
	}
	cf := lc.CF
	if cf == nil {
		fmt.Fprintf(os.Stderr, "kate: %s has no classfile to disassemble (array or synthetic class)\n", mainClass)
		return 1
	}
	fmt.Println(vm.Disassemble(cf))
	return 0
}
