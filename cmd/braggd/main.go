package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	"github.com/quentinglorieux/Bragg-omega/bragg"
	"github.com/quentinglorieux/Bragg-omega/util"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "braggd.yml"
	k              = koanf.New(".")

	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
)

func setupconfig() {
	k.Load(structs.Provider(defaultConfig(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			logger.Fatal("error loading config", "err", err)
		}
	}
}

func root() {
	str := `braggd drives a two-photon Bragg spectroscopy bench: a fiber laser,
an RF synthesizer producing the differential sweep, a signal generator for the
trigger pulse and piezo control voltage, a spectrum analyzer in zero span, and
a wavemeter for bookkeeping.

Usage:
	braggd <command>

Commands:
	run
	serve
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `braggd is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

Without a configuration, the defaults are used; run "braggd conf" to see them,
or "braggd mkconf" to write them to ` + ConfigFileName + ` for editing.

"run" executes one acquisition sequence and prints the per-step records to
stdout as YAML.  "serve" connects and configures the bench, then exposes it
over HTTP (GET /status, GET /results, POST /run) until interrupted.

Addressing:
- laserAddr          telnet shell of the laser controller (host:port)
- synthPort          serial device of the RF synthesizer, e.g. /dev/ttyACM0
- genType            signal generator driver, "redpitaya" or "tektronix"
- genAddr            SCPI socket of the signal generator (host:port)
- saAddr             SCPI socket of the spectrum analyzer (host:port)
- wavemeterURL       root URL of the wavemeter HTTP API
- wavemeterChannel   fiber switch channel the seed light is patched to

The experiment section holds the physics parameters; frequencies are in Hz
and the synthesizer step time in milliseconds.`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		logger.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		logger.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		logger.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		logger.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("braggd version %v\n", Version)
}

func run() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		logger.Fatal(err)
	}
	ctl, err := buildController(c, logger)
	if err != nil {
		logger.Fatal(err)
	}
	if err := ctl.ConnectAll(); err != nil {
		logger.Fatal("connect failed", "err", err)
	}
	if err := ctl.Configure(c.Experiment.experimentConfig()); err != nil {
		logger.Fatal("configure failed", "err", err)
	}
	delay := util.SecsToDuration(c.DelaySeconds)
	results, err := ctl.Run(c.Steps, delay)
	if err != nil {
		logger.Error("acquisition failed", "err", err)
	}
	if err := ctl.Shutdown(); err != nil {
		logger.Warn("shutdown incomplete", "err", err)
	}
	if len(results) > 0 {
		if err := yml.NewEncoder(os.Stdout).Encode(results); err != nil {
			logger.Fatal(err)
		}
	}
}

func serve() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		logger.Fatal(err)
	}
	ctl, err := buildController(c, logger)
	if err != nil {
		logger.Fatal(err)
	}
	if err := ctl.ConnectAll(); err != nil {
		logger.Fatal("connect failed", "err", err)
	}
	if err := ctl.Configure(c.Experiment.experimentConfig()); err != nil {
		logger.Fatal("configure failed", "err", err)
	}
	w := bragg.NewHTTPWrapper(ctl)
	logger.Info("now listening for requests", "addr", c.HTTPAddr)
	logger.Fatal(http.ListenAndServe(c.HTTPAddr, w))
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "serve":
		serve()
		return
	case "version":
		pversion()
		return
	default:
		logger.Fatal("unknown command")
	}
}
