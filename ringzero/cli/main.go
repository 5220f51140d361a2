// Copyright 2026 The ringzero Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package cli is the main entrypoint for ringzero.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sys/unix"
	"ringzero.dev/ringzero/pkg/log"
	"ringzero.dev/ringzero/ringzero/cmd"
	"ringzero.dev/ringzero/ringzero/cmd/util"
	"ringzero.dev/ringzero/ringzero/config"
)

// version is set by the build.
var version = "development"

// versionFlagName is the name of a flag that triggers printing the version.
const versionFlagName = "version"

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	// Register with the main command line.
	config.RegisterFlags(flag.CommandLine)
	showVersion := flag.Bool(versionFlagName, false, "show version and exit.")

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	if *showVersion {
		fmt.Fprintf(os.Stdout, "ringzero version %s\n", version)
		os.Exit(0)
	}

	// Create a new Config from the flags.
	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		util.Fatalf("%v", err)
	}

	subcommand := flag.CommandLine.Arg(0)

	// Set up logging.
	if conf.Debug {
		log.SetLevel(log.Debug)
	}

	var emitters log.MultiEmitter
	if len(conf.DebugLog) > 0 {
		f, err := log.OpenFile(conf.DebugLog, os.O_WRONLY|os.O_CREATE|os.O_APPEND, log.PatternOpts{
			Command:   subcommand,
			Timestamp: time.Now(),
		})
		if err != nil {
			util.Fatalf("error opening debug log file in %q: %v", conf.DebugLog, err)
		}
		emitters = append(emitters, newEmitter(conf.DebugLogFormat, f))
	} else {
		// The terminal belongs to the kernel's console, just discard the
		// logs if no debug log is specified.
		emitters = append(emitters, newEmitter("text", io.Discard))
	}
	if conf.AlsoLogToStderr {
		emitters = append(emitters, newEmitter(conf.DebugLogFormat, os.Stderr))
	}

	switch len(emitters) {
	case 1:
		// Use the singular emitter to avoid needless
		// `for` loop overhead when logging to a single place.
		log.SetTarget(emitters[0])
	default:
		log.SetTarget(&emitters)
	}

	const delimString = `*************** ringzero ***************`
	log.Infof(delimString)
	log.Infof("Version %s, %s, %s, PID %d", version, runtime.Version(), runtime.GOARCH, os.Getpid())
	log.Infof("Args: %v", os.Args)
	conf.Log()
	log.Infof(delimString)

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	// Call the subcommand and pass in the configuration.
	var ws unix.WaitStatus
	subcmdCode := subcommands.Execute(ctx, conf, &ws)
	stop()
	if subcmdCode == subcommands.ExitSuccess {
		log.Infof("Exiting with status: %v", ws)
		os.Exit(ws.ExitStatus())
	}
	// Return an error that is unlikely to be used by the kernel.
	log.Warningf("Failure to execute command, err: %v", subcmdCode)
	os.Exit(128)
}

// forEachCmd invokes the passed callback for each command supported by
// ringzero.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")

	cb(new(cmd.Boot), "")
	cb(new(cmd.Test), "")

	const debugGroup = "debug"
	cb(new(cmd.Tables), debugGroup)
	cb(new(cmd.Scancodes), debugGroup)
}

func newEmitter(format string, logFile io.Writer) log.Emitter {
	switch format {
	case "text":
		return log.GoogleEmitter{Emitter: &log.Writer{Next: logFile}}
	case "json":
		return log.JSONEmitter{Writer: &log.Writer{Next: logFile}}
	case "json-k8s":
		return log.K8sJSONEmitter{Writer: &log.Writer{Next: logFile}}
	}
	util.Fatalf("invalid log format %q, must be 'text', 'json', or 'json-k8s'", format)
	panic("unreachable")
}
