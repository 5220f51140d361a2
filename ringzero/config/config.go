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
// Package config provides basic infrastructure to set configuration settings
// for ringzero. Each setting is a flag; settings may also be given in a TOML
// file named by --config, with flags set on the command line taking
// precedence.
package config

import (
	"flag"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"ringzero.dev/ringzero/pkg/log"
)

// Config holds configuration that is not part of a single command.
//
// Fields with a "flag" tag are populated from the flag of that name.
type Config struct {
	// ConfigFile is the TOML file settings were loaded from.
	ConfigFile string `flag:"config" toml:"-"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug" toml:"debug"`

	// DebugLog is the path to log debug information to, if not empty.
	DebugLog string `flag:"debug-log" toml:"debug_log"`

	// DebugLogFormat is the log format for debug: text, json or json-k8s.
	DebugLogFormat string `flag:"debug-log-format" toml:"debug_log_format"`

	// AlsoLogToStderr allows sending log messages to stderr.
	AlsoLogToStderr bool `flag:"alsologtostderr" toml:"alsologtostderr"`

	// TimerHz is the frequency of the machine's interval timer.
	TimerHz uint `flag:"timer-hz" toml:"timer_hz"`

	// BootStackSize is the size of the stack the kernel is entered on.
	BootStackSize uint64 `flag:"boot-stack-size" toml:"boot_stack_size"`

	// Timeout bounds how long a machine may run. Zero means no bound.
	Timeout time.Duration `flag:"timeout" toml:"timeout"`

	// MirrorScreen copies kernel screen output to the serial console.
	MirrorScreen bool `flag:"mirror-screen" toml:"mirror_screen"`

	// TickDots prints a dot on the screen for every timer interrupt.
	TickDots bool `flag:"tick-dots" toml:"tick_dots"`

	// MetricsFile is where machine metrics are written when it stops, in
	// Prometheus text format. Empty disables it.
	MetricsFile string `flag:"metrics-file" toml:"metrics_file"`
}

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("config", "", "TOML file to load settings from. Flags given on the command line override it.")

	// Debugging flags.
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("debug-log", "", "additional location for logs. The following variables are available: %TIMESTAMP%, %COMMAND%, %PID%.")
	flagSet.String("debug-log-format", "text", "log format: text (default), json, or json-k8s.")
	flagSet.Bool("alsologtostderr", false, "send log messages to stderr.")

	// Flags that control the machine.
	flagSet.Uint("timer-hz", 18, "interval timer frequency in Hz. 0 disables the timer.")
	flagSet.Uint64("boot-stack-size", 64<<10, "size in bytes of the stack the kernel is entered on.")
	flagSet.Duration("timeout", 0, "stop the machine after this long. 0 means no limit.")
	flagSet.String("metrics-file", "", "file to write machine metrics to when the machine stops.")

	// Flags that control the kernel.
	flagSet.Bool("mirror-screen", false, "copy screen output to the serial console.")
	flagSet.Bool("tick-dots", true, "print a dot for every timer interrupt.")
}

// NewFromFlags creates a new Config with values coming from command line
// flags and, if --config is set, the file it names.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}
	if err := conf.setFromFlags(flagSet, func(string) bool { return true }); err != nil {
		return nil, err
	}

	if conf.ConfigFile != "" {
		if _, err := toml.DecodeFile(conf.ConfigFile, conf); err != nil {
			return nil, fmt.Errorf("loading config file %q: %w", conf.ConfigFile, err)
		}
		set := make(map[string]bool)
		flagSet.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if err := conf.setFromFlags(flagSet, func(name string) bool { return set[name] }); err != nil {
			return nil, err
		}
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// setFromFlags copies the values of the flags selected by use into c.
func (c *Config) setFromFlags(flagSet *flag.FlagSet, use func(name string) bool) error {
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok || !use(name) {
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		getter, ok := fl.Value.(flag.Getter)
		if !ok {
			return fmt.Errorf("flag %q has no value getter", name)
		}
		obj.Field(i).Set(reflect.ValueOf(getter.Get()))
	}
	return nil
}

func (c *Config) validate() error {
	switch c.DebugLogFormat {
	case "text", "json", "json-k8s":
	default:
		return fmt.Errorf("invalid log format %q, must be 'text', 'json', or 'json-k8s'", c.DebugLogFormat)
	}
	if c.BootStackSize == 0 || c.BootStackSize%16 != 0 {
		return fmt.Errorf("boot stack size %d must be a non-zero multiple of 16", c.BootStackSize)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout %v must not be negative", c.Timeout)
	}
	return nil
}

// ToFlags returns a slice of flags that correspond to the given Config.
// Settings at their default value are omitted.
func (c *Config) ToFlags() []string {
	var rv []string

	// Construct a temporary set for default plumbing.
	flagSet := flag.NewFlagSet("tmp", flag.ContinueOnError)
	RegisterFlags(flagSet)

	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			continue
		}
		val := getVal(obj.Field(i))

		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		if val == fl.DefValue {
			continue
		}
		rv = append(rv, fmt.Sprintf("--%s=%s", fl.Name, val))
	}
	return rv
}

// Log logs important aspects of the configuration to the given log
// function.
func (c *Config) Log() {
	log.Infof("Config:")
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		log.Infof("\t%s: %s", st.Field(i).Name, getVal(obj.Field(i)))
	}
}

func getVal(field reflect.Value) string {
	if str, ok := field.Addr().Interface().(fmt.Stringer); ok {
		return str.String()
	}
	switch field.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(field.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(field.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(field.Uint(), 10)
	case reflect.String:
		return field.String()
	default:
		panic("unknown type " + field.Kind().String())
	}
}
