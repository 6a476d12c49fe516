// args.go parses the rwgate command line.
package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kolkov/rwgate/internal/rw/config"
)

// cliOptions holds the parsed command line. Pointer fields are nil when
// the option was not given, so the config file value survives.
type cliOptions struct {
	readers    int
	writers    int
	configPath string

	buffer        *string
	readPause     *time.Duration
	writePause    *time.Duration
	maxTasks      *int
	logLevel      *string
	racyLoopCheck bool
	noRaceCheck   bool
	quiet         bool
}

// parseArgs reads the two positional counts and the options.
//
// Options may appear before, between or after the counts, as
// "--name value" or "--name=value".
func parseArgs(args []string) (*cliOptions, error) {
	opts := &cliOptions{}
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			positional = append(positional, arg)
			continue
		}

		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		takeValue := func() (string, error) {
			if hasValue {
				return value, nil
			}
			if i+1 >= len(args) {
				return "", fmt.Errorf("option --%s needs a value", name)
			}
			i++
			return args[i], nil
		}

		switch name {
		case "racy-loop-check", "no-race-check", "quiet":
			if hasValue {
				return nil, fmt.Errorf("option --%s takes no value", name)
			}
			switch name {
			case "racy-loop-check":
				opts.racyLoopCheck = true
			case "no-race-check":
				opts.noRaceCheck = true
			default:
				opts.quiet = true
			}
		case "config", "buffer", "log-level":
			v, err := takeValue()
			if err != nil {
				return nil, err
			}
			switch name {
			case "config":
				opts.configPath = v
			case "buffer":
				opts.buffer = &v
			default:
				opts.logLevel = &v
			}
		case "read-pause", "write-pause":
			v, err := takeValue()
			if err != nil {
				return nil, err
			}
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("option --%s: %w", name, err)
			}
			if name == "read-pause" {
				opts.readPause = &d
			} else {
				opts.writePause = &d
			}
		case "max-tasks":
			v, err := takeValue()
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("option --max-tasks: %q is not an integer", v)
			}
			opts.maxTasks = &n
		default:
			return nil, fmt.Errorf("unknown option: --%s", name)
		}
	}

	if len(positional) != 2 {
		return nil, fmt.Errorf("expected <readers> <writers>, got %d argument(s)", len(positional))
	}
	var err error
	if opts.readers, err = parseCount("readers", positional[0]); err != nil {
		return nil, err
	}
	if opts.writers, err = parseCount("writers", positional[1]); err != nil {
		return nil, err
	}
	return opts, nil
}

func parseCount(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s count %q: not an integer", name, s)
	}
	return n, nil
}

// config layers Defaults, the config file and the command line, then
// validates the result.
func (o *cliOptions) config() (config.Config, error) {
	cfg := config.Defaults()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return config.Config{}, err
		}
	}

	cfg.Readers = o.readers
	cfg.Writers = o.writers
	if o.buffer != nil {
		cfg.Buffer = *o.buffer
	}
	if o.readPause != nil {
		cfg.ReadPause = *o.readPause
	}
	if o.writePause != nil {
		cfg.WritePause = *o.writePause
	}
	if o.maxTasks != nil {
		cfg.MaxTasks = *o.maxTasks
	}
	if o.logLevel != nil {
		cfg.LogLevel = *o.logLevel
	}
	if o.racyLoopCheck {
		cfg.RacyLoopCheck = true
	}
	if o.noRaceCheck {
		cfg.CheckRaces = false
	}
	if o.quiet {
		cfg.Quiet = true
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
